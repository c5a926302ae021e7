package model

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// Registry holds the linked entity set.
type Registry struct {
	entities map[string]*Entity
	byRoute  map[string]*Entity
}

// NewRegistry loads, links and validates entities from fsys.
func NewRegistry(fsys fs.FS) (*Registry, error) {
	entities, err := LoadEntitiesFromFS(fsys)
	if err != nil {
		return nil, fmt.Errorf("load error: %w", err)
	}
	if err := linkRelations(entities); err != nil {
		return nil, fmt.Errorf("link error: %w", err)
	}
	if err := validateEntities(entities); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	r := &Registry{entities: entities, byRoute: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if other, dup := r.byRoute[e.Route]; dup {
			return nil, fmt.Errorf("validation error: route %q used by %s and %s", e.Route, other.Name, e.Name)
		}
		r.byRoute[e.Route] = e
	}
	return r, nil
}

// InitRegistry prefers dir when it is set, otherwise the embedded declarations.
func InitRegistry(dir string, embedded fs.FS) (*Registry, error) {
	if dir != "" {
		return NewRegistry(os.DirFS(dir))
	}
	return NewRegistry(embedded)
}

func (r *Registry) Get(name string) *Entity {
	return r.entities[name]
}

// MustGet panics on an unknown entity; for wiring code only.
func (r *Registry) MustGet(name string) *Entity {
	e := r.entities[name]
	if e == nil {
		panic("model: unknown entity " + name)
	}
	return e
}

func (r *Registry) ByRoute(route string) *Entity {
	return r.byRoute[route]
}

// Names returns entity names sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entities))
	for n := range r.entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns entities sorted by name.
func (r *Registry) All() []*Entity {
	out := make([]*Entity, 0, len(r.entities))
	for _, n := range r.Names() {
		out = append(out, r.entities[n])
	}
	return out
}
