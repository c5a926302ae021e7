// Package servicetest provides an in-memory record repository for tests of the
// service and HTTP layers.
package servicetest

import (
	"context"
	"sort"
	"sync"

	"CrmAPI/internal/domain"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"

	"github.com/Masterminds/squirrel"
)

// Repo keeps records per entity in memory. A nil match value means "column is null
// or absent". Filters other than the descriptor scope are not applied.
type Repo struct {
	mu       sync.Mutex
	rows     map[string]map[int64]model.Record
	nextID   int64
	lastList query.Descriptor

	// Selected is returned by Select.
	Selected  []model.Record
	InsertErr error
	DeleteErr error
}

func NewRepo() *Repo {
	return &Repo{rows: map[string]map[int64]model.Record{}, nextID: 100}
}

// Seed stores rec as is, assigning an id when rec has none.
func (m *Repo) Seed(e *model.Entity, rec model.Record) model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[e.Name] == nil {
		m.rows[e.Name] = map[int64]model.Record{}
	}
	cp := clone(rec)
	id, ok := cp["id"].(int64)
	if !ok {
		m.nextID++
		id = m.nextID
		cp["id"] = id
	}
	m.rows[e.Name][id] = cp
	return clone(cp)
}

// Get returns a copy of the stored row, hidden columns included, or nil.
func (m *Repo) Get(e *model.Entity, id int64) model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.rows[e.Name][id]
	if rec == nil {
		return nil
	}
	return clone(rec)
}

// LastList is the descriptor of the most recent List call.
func (m *Repo) LastList() query.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastList
}

func (m *Repo) List(_ context.Context, d query.Descriptor) ([]model.Record, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = d
	out := []model.Record{}
	for _, rec := range m.sorted(d.Entity) {
		if matches(rec, d.Scope) {
			out = append(out, visible(d.Entity, rec))
		}
	}
	return out, int64(len(out)), nil
}

func (m *Repo) Select(context.Context, *model.Entity, squirrel.SelectBuilder) ([]model.Record, error) {
	return m.Selected, nil
}

func (m *Repo) Find(ctx context.Context, e *model.Entity, id int64) (model.Record, error) {
	rec, err := m.FindFull(ctx, e, id)
	if err != nil {
		return nil, err
	}
	return visible(e, rec), nil
}

func (m *Repo) FindFull(_ context.Context, e *model.Entity, id int64) (model.Record, error) {
	rec := m.Get(e, id)
	if rec == nil {
		return nil, domain.NotFound(e.Label)
	}
	return rec, nil
}

func (m *Repo) FirstBy(_ context.Context, e *model.Entity, match map[string]any) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.sorted(e) {
		if matches(rec, match) {
			return clone(rec), nil
		}
	}
	return nil, domain.NotFound(e.Label)
}

func (m *Repo) Exists(_ context.Context, e *model.Entity, match map[string]any, exceptID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.rows[e.Name] {
		if exceptID > 0 && id == exceptID {
			continue
		}
		if matches(rec, match) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Repo) Insert(_ context.Context, e *model.Entity, rec model.Record) (model.Record, error) {
	if m.InsertErr != nil {
		return nil, m.InsertErr
	}
	return visible(e, m.Seed(e, rec)), nil
}

func (m *Repo) Update(_ context.Context, e *model.Entity, id int64, rec model.Record) (model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[e.Name][id]
	if row == nil {
		return nil, domain.NotFound(e.Label)
	}
	for k, v := range rec {
		row[k] = v
	}
	return visible(e, row), nil
}

func (m *Repo) Delete(_ context.Context, e *model.Entity, id int64) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[e.Name][id] == nil {
		return domain.NotFound(e.Label)
	}
	delete(m.rows[e.Name], id)
	return nil
}

func (m *Repo) Statistics(_ context.Context, d query.Descriptor, _ *model.StatisticsConfig) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{"total": int64(len(m.rows[d.Entity.Name]))}, nil
}

func (m *Repo) sorted(e *model.Entity) []model.Record {
	ids := make([]int64, 0, len(m.rows[e.Name]))
	for id := range m.rows[e.Name] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.rows[e.Name][id])
	}
	return out
}

func matches(rec model.Record, match map[string]any) bool {
	for k, v := range match {
		if v == nil {
			if rec[k] != nil {
				return false
			}
			continue
		}
		if rec[k] != v {
			return false
		}
	}
	return true
}

func visible(e *model.Entity, rec model.Record) model.Record {
	out := model.Record{}
	for k, v := range rec {
		if f := e.Field(k); f != nil && f.Hidden {
			continue
		}
		out[k] = v
	}
	return out
}

func clone(rec model.Record) model.Record {
	out := make(model.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
