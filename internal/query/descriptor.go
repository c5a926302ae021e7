// Package query turns list request parameters into SQL for one entity.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"CrmAPI/internal/model"
)

const DefaultPerPage = 15

// Options bounds page sizes.
type Options struct {
	DefaultPerPage int
	MaxPerPage     int
}

// Bounds is a range filter; at least one side is set.
type Bounds struct {
	Low     any
	High    any
	HasLow  bool
	HasHigh bool
}

// Descriptor is the parsed, per-request list query. Build one with Parse and
// derive variants with the With* methods; fields are not mutated afterwards.
type Descriptor struct {
	Entity *model.Entity

	Equality map[string]any
	Sets     map[string][]any
	Ranges   map[string]Bounds
	Search   string
	With     []string

	SortField     string
	SortDirection string

	PerPage int
	Page    int

	// Scope holds equality predicates forced by the server (owner scoping, public lists).
	Scope map[string]any
}

// Parse reads the recognised parameters for e from values.
// Unknown parameters and values that cannot be coerced to the column type are ignored.
func Parse(values url.Values, e *model.Entity, opts Options) Descriptor {
	d := Descriptor{
		Entity:   e,
		Equality: map[string]any{},
		Sets:     map[string][]any{},
		Ranges:   map[string]Bounds{},
	}
	cfg := e.List

	for _, name := range cfg.Filters.Equality {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		if v, ok := e.Field(name).Coerce(raw); ok {
			d.Equality[name] = v
		}
	}

	for _, name := range cfg.Filters.Set {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		if members, ok := splitSet(e.Field(name), raw); ok {
			d.Sets[name] = members
		}
	}

	for _, r := range cfg.Filters.Range {
		f := e.Field(r.Field)
		var b Bounds
		if raw := values.Get(r.From); raw != "" {
			b.Low, b.HasLow = f.Coerce(raw)
		}
		if raw := values.Get(r.To); raw != "" {
			b.High, b.HasHigh = f.CoerceUpper(raw)
		}
		if b.HasLow || b.HasHigh {
			d.Ranges[r.Field] = b
		}
	}

	if len(cfg.Search) > 0 {
		d.Search = strings.TrimSpace(values.Get("search"))
	}

	d.With = ResolveRelations(values.Get("with"), cfg.With)
	d.SortField, d.SortDirection = ResolveSort(
		values.Get("sort_by"), values.Get("sort_direction"),
		cfg.Sort.Allowed, cfg.Sort.Default, cfg.Sort.Direction,
	)

	d.PerPage = perPage(values.Get("per_page"), opts)
	d.Page = 1
	if p, err := strconv.Atoi(strings.TrimSpace(values.Get("page"))); err == nil && p > 0 {
		d.Page = p
	}
	return d
}

// splitSet splits on "," without dropping empty members. Any member that does
// not fit the column type drops the whole filter.
func splitSet(f *model.Field, raw string) ([]any, bool) {
	parts := strings.Split(raw, ",")
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		v, ok := f.Coerce(p)
		if !ok {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func perPage(raw string, opts Options) int {
	def := opts.DefaultPerPage
	if def <= 0 {
		def = DefaultPerPage
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		n = def
	}
	if opts.MaxPerPage > 0 && n > opts.MaxPerPage {
		n = opts.MaxPerPage
	}
	return n
}

// WithScope returns a copy with an extra forced equality predicate.
func (d Descriptor) WithScope(column string, value any) Descriptor {
	scope := make(map[string]any, len(d.Scope)+1)
	for k, v := range d.Scope {
		scope[k] = v
	}
	scope[column] = value
	d.Scope = scope
	return d
}

// Offset is the row offset of the requested page. Pages past the largest
// bigint offset saturate there and yield an empty page.
func (d Descriptor) Offset() uint64 {
	if d.Page <= 1 || d.PerPage <= 0 {
		return 0
	}
	skip := uint64(d.Page - 1)
	if skip > math.MaxInt64/uint64(d.PerPage) {
		return math.MaxInt64
	}
	return skip * uint64(d.PerPage)
}
