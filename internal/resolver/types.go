package resolver

import (
	"context"

	"CrmAPI/internal/model"

	"github.com/Masterminds/squirrel"
)

// Selecter runs a select and maps rows through the entity's field types.
// *store.Store satisfies it.
type Selecter interface {
	Select(ctx context.Context, e *model.Entity, sb squirrel.SelectBuilder) ([]model.Record, error)
}

// tailSpec is one relation to load for a set of parent records,
// with the nested relation paths to load below it.
type tailSpec struct {
	Name   string
	Rel    *model.Relation
	Nested []string
}
