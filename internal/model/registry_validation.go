package model

import (
	"fmt"
	"sort"
	"strings"
)

// validateEntities checks that every name used by list, statistics, transition,
// guard and public settings resolves to a field or relation path.
func validateEntities(entities map[string]*Entity) error {
	names := make([]string, 0, len(entities))
	for n := range entities {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := validateEntity(entities[name]); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func validateEntity(e *Entity) error {
	for _, f := range e.Fields {
		if f.Type == TypeEnum && len(f.Values) == 0 {
			return fmt.Errorf("enum field %q has no values", f.Name)
		}
		if f.Type == TypeRef && f.References == "" {
			return fmt.Errorf("ref field %q has no references", f.Name)
		}
	}

	if e.OwnerField != "" && e.Field(e.OwnerField) == nil {
		return fmt.Errorf("owner_field %q is not a field", e.OwnerField)
	}
	if e.OwnerOnly && e.OwnerField == "" {
		return fmt.Errorf("owner_only requires owner_field")
	}
	if e.Mine != "" && e.OwnerField == "" {
		return fmt.Errorf("mine %q requires owner_field", e.Mine)
	}

	if err := validateList(e); err != nil {
		return err
	}

	if s := e.Statistics; s != nil {
		for _, g := range s.GroupBy {
			if e.Field(g) == nil {
				return fmt.Errorf("statistics group_by %q is not a field", g)
			}
		}
		for _, n := range append(append([]string{}, s.Sum...), s.Avg...) {
			f := e.Field(n)
			if f == nil || !f.IsNumeric() {
				return fmt.Errorf("statistics aggregate %q is not a numeric field", n)
			}
		}
	}

	if t := e.Transition; t != nil {
		f := e.Field(t.Field)
		if f == nil || f.Type != TypeEnum {
			return fmt.Errorf("transition field %q must be an enum field", t.Field)
		}
		if t.TimestampField != "" && e.Field(t.TimestampField) == nil {
			return fmt.Errorf("transition timestamp_field %q is not a field", t.TimestampField)
		}
		for _, v := range t.TimestampOn {
			if !f.AllowsValue(v) {
				return fmt.Errorf("transition timestamp_on %q is not a value of %s", v, t.Field)
			}
		}
	}

	for _, g := range e.Guards.DeleteBlockedBy {
		rel := e.Relation(g.Relation)
		if rel == nil || rel.Type == BelongsTo {
			return fmt.Errorf("delete guard %q must name a has_one/has_many relation", g.Relation)
		}
		if g.Message == "" {
			return fmt.Errorf("delete guard %q has no message", g.Relation)
		}
	}

	for col := range e.Public.ListWhere {
		if e.Field(col) == nil {
			return fmt.Errorf("public list_where %q is not a field", col)
		}
	}
	return nil
}

func validateList(e *Entity) error {
	l := &e.List
	if l.Sort.Default == "" {
		l.Sort.Default = "id"
	}
	if l.Sort.Direction == "" {
		l.Sort.Direction = "asc"
	}
	if d := strings.ToLower(l.Sort.Direction); d != "asc" && d != "desc" {
		return fmt.Errorf("sort direction %q must be asc or desc", l.Sort.Direction)
	}
	if e.Field(l.Sort.Default) == nil {
		return fmt.Errorf("default sort %q is not a field", l.Sort.Default)
	}
	for _, s := range l.Sort.Allowed {
		if e.Field(s) == nil {
			return fmt.Errorf("sortable %q is not a field", s)
		}
	}

	for _, w := range l.With {
		if _, ok := e.RelationChain(w); !ok {
			return fmt.Errorf("with %q is not a relation path", w)
		}
	}

	for _, n := range l.Filters.Equality {
		if e.Field(n) == nil {
			return fmt.Errorf("equality filter %q is not a field", n)
		}
	}
	for _, n := range l.Filters.Set {
		if e.Field(n) == nil {
			return fmt.Errorf("set filter %q is not a field", n)
		}
	}
	for i := range l.Filters.Range {
		r := &l.Filters.Range[i]
		if e.Field(r.Field) == nil {
			return fmt.Errorf("range filter %q is not a field", r.Field)
		}
		if r.From == "" {
			r.From = r.Field + "_from"
		}
		if r.To == "" {
			r.To = r.Field + "_to"
		}
	}

	for _, s := range l.Search {
		rels, col, ok := e.ResolveColumn(s)
		if !ok {
			return fmt.Errorf("search %q does not resolve to a column", s)
		}
		owner := e
		if len(rels) > 0 {
			owner = rels[len(rels)-1].Target()
		}
		if f := owner.Field(col); f.Type != TypeText && f.Type != TypeEnum {
			return fmt.Errorf("search %q must be a text column", s)
		}
	}
	return nil
}

// RelationChain walks a dotted relation path such as "contact.company".
func (e *Entity) RelationChain(path string) ([]*Relation, bool) {
	cur := e
	var chain []*Relation
	for _, seg := range strings.Split(path, ".") {
		rel := cur.Relation(seg)
		if rel == nil {
			return nil, false
		}
		chain = append(chain, rel)
		cur = rel.Target()
	}
	return chain, len(chain) > 0
}

// ResolveColumn splits "rel.rel.column" into its relation chain and the column of the last entity.
func (e *Entity) ResolveColumn(path string) ([]*Relation, string, bool) {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return nil, path, e.Field(path) != nil
	}
	chain, ok := e.RelationChain(path[:i])
	if !ok {
		return nil, "", false
	}
	col := path[i+1:]
	return chain, col, chain[len(chain)-1].Target().Field(col) != nil
}
