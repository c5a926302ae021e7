// Package resolver eager-loads allow-listed relations onto fetched records.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"CrmAPI/internal/logger"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"
)

// Resolver attaches relations named by dotted paths ("contact", "contact.company").
type Resolver struct {
	db Selecter
}

func New(db Selecter) *Resolver {
	return &Resolver{db: db}
}

// Load attaches every path in paths to items in place. Each top level relation is
// fetched with one query for all parents; nested paths recurse on the loaded rows.
// belongs_to and has_one attach an object or nil, has_many attaches a list.
func (r *Resolver) Load(ctx context.Context, e *model.Entity, items []model.Record, paths []string) error {
	if len(items) == 0 || len(paths) == 0 {
		return nil
	}
	tails, err := collectTails(e, paths)
	if err != nil {
		return err
	}

	type grouped = map[any][]model.Record
	groupedByName := make(map[string]grouped, len(tails))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var rerr error

	for _, t := range tails {
		ids := parentIDs(items, t.Rel)
		if len(ids) == 0 {
			continue
		}
		wg.Add(1)
		go func(t tailSpec, ids []any) {
			defer wg.Done()

			child := t.Rel.Target()
			column := t.Rel.FK
			if t.Rel.Type == model.BelongsTo {
				column = "id"
			}
			rows, err := r.db.Select(ctx, child, query.BuildRelationQuery(child, column, ids, t.Rel.Order))
			if err == nil && len(t.Nested) > 0 {
				err = r.Load(ctx, child, rows, t.Nested)
			}
			if err != nil {
				mu.Lock()
				rerr = fmt.Errorf("tail '%s': %w", t.Name, err)
				mu.Unlock()
				return
			}

			g := make(grouped)
			for _, row := range rows {
				key := row[column]
				g[key] = append(g[key], row)
			}
			mu.Lock()
			groupedByName[t.Name] = g
			mu.Unlock()
		}(t, ids)
	}

	wg.Wait()
	if rerr != nil {
		logger.ErrorCtx(ctx, "resolver_tail_error", map[string]any{
			"entity": e.Name,
			"error":  rerr.Error(),
		})
		return rerr
	}

	for _, it := range items {
		for _, t := range tails {
			groups := groupedByName[t.Name][parentKey(it, t.Rel)]
			switch {
			case t.Rel.Many():
				if groups == nil {
					groups = []model.Record{}
				}
				it[t.Name] = groups
			case len(groups) == 0:
				it[t.Name] = nil
			default:
				it[t.Name] = groups[0]
			}
		}
	}
	return nil
}

// collectTails groups dotted paths by their first segment.
func collectTails(e *model.Entity, paths []string) ([]tailSpec, error) {
	byName := map[string]*tailSpec{}
	for _, p := range paths {
		head, rest, _ := strings.Cut(strings.TrimSpace(p), ".")
		rel := e.Relation(head)
		if rel == nil || rel.Target() == nil {
			return nil, fmt.Errorf("resolver: %s has no relation '%s'", e.Name, head)
		}
		t, ok := byName[head]
		if !ok {
			t = &tailSpec{Name: head, Rel: rel}
			byName[head] = t
		}
		if rest != "" {
			t.Nested = append(t.Nested, rest)
		}
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]tailSpec, 0, len(names))
	for _, n := range names {
		out = append(out, *byName[n])
	}
	return out, nil
}

// parentKey is the value on the parent that the child rows are matched against.
func parentKey(it model.Record, rel *model.Relation) any {
	if rel.Type == model.BelongsTo {
		return it[rel.FK]
	}
	return it["id"]
}

func parentIDs(items []model.Record, rel *model.Relation) []any {
	seen := make(map[any]struct{}, len(items))
	ids := make([]any, 0, len(items))
	for _, it := range items {
		v := parentKey(it, rel)
		if v == nil {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ids = append(ids, v)
	}
	return ids
}
