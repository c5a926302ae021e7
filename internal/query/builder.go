package query

import (
	"fmt"

	"CrmAPI/internal/model"

	"github.com/Masterminds/squirrel"
)

func newSelect(e *model.Entity) squirrel.SelectBuilder {
	return squirrel.SelectBuilder{}.
		PlaceholderFormat(squirrel.Dollar).
		From(fmt.Sprintf("%s AS %s", e.Table, mainAlias))
}

func selectColumns(e *model.Entity, cols []string) []string {
	if len(cols) == 0 {
		cols = e.VisibleColumns()
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = qualify(mainAlias, c)
	}
	return out
}

// BuildIndexQuery selects one page of rows. cols defaults to the visible columns.
func BuildIndexQuery(d Descriptor, cols []string) squirrel.SelectBuilder {
	sb := buildOrdered(d, cols)
	if d.PerPage > 0 {
		sb = sb.Limit(uint64(d.PerPage))
	}
	if off := d.Offset(); off > 0 {
		sb = sb.Offset(off)
	}
	return sb
}

// BuildExportQuery selects every matching row up to limit (0 means unbounded).
func BuildExportQuery(d Descriptor, cols []string, limit uint64) squirrel.SelectBuilder {
	sb := buildOrdered(d, cols)
	if limit > 0 {
		sb = sb.Limit(limit)
	}
	return sb
}

func buildOrdered(d Descriptor, cols []string) squirrel.SelectBuilder {
	sb := newSelect(d.Entity).Columns(selectColumns(d.Entity, cols)...)
	if where := BuildWhereClause(d); where != nil {
		sb = sb.Where(where)
	}
	if d.SortField != "" {
		sb = sb.OrderBy(qualify(mainAlias, d.SortField) + " " + orderKeyword(d.SortDirection))
	}
	if d.SortField != "id" {
		sb = sb.OrderBy(qualify(mainAlias, "id") + " ASC")
	}
	return sb
}

// BuildCountQuery counts the filtered set; pagination is ignored.
func BuildCountQuery(d Descriptor) squirrel.SelectBuilder {
	sb := newSelect(d.Entity).Column("COUNT(*)")
	if where := BuildWhereClause(d); where != nil {
		sb = sb.Where(where)
	}
	return sb
}

// BuildFindQuery selects one row by id.
func BuildFindQuery(e *model.Entity, id int64, cols []string) squirrel.SelectBuilder {
	return newSelect(e).
		Columns(selectColumns(e, cols)...).
		Where(squirrel.Eq{qualify(mainAlias, "id"): id})
}

// BuildFindByQuery selects rows matching all column values, ordered by id.
func BuildFindByQuery(e *model.Entity, match map[string]any, cols []string) squirrel.SelectBuilder {
	sb := newSelect(e).Columns(selectColumns(e, cols)...)
	for _, col := range sortedKeys(match) {
		sb = sb.Where(squirrel.Eq{qualify(mainAlias, col): match[col]})
	}
	return sb.OrderBy(qualify(mainAlias, "id") + " ASC")
}

// BuildTotalsQuery computes COUNT plus SUM/AVG over the filtered set.
func BuildTotalsQuery(d Descriptor, sums, avgs []string) squirrel.SelectBuilder {
	sb := newSelect(d.Entity).Column("COUNT(*) AS total")
	for _, f := range sums {
		sb = sb.Column(fmt.Sprintf("COALESCE(SUM(%s), 0) AS sum_%s", qualify(mainAlias, f), f))
	}
	for _, f := range avgs {
		sb = sb.Column(fmt.Sprintf("AVG(%s) AS avg_%s", qualify(mainAlias, f), f))
	}
	if where := BuildWhereClause(d); where != nil {
		sb = sb.Where(where)
	}
	return sb
}

// BuildGroupQuery computes the same aggregates grouped by one column.
func BuildGroupQuery(d Descriptor, groupBy string, sums, avgs []string) squirrel.SelectBuilder {
	col := qualify(mainAlias, groupBy)
	sb := newSelect(d.Entity).
		Column(fmt.Sprintf("%s AS %s", col, groupBy)).
		Column("COUNT(*) AS count")
	for _, f := range sums {
		sb = sb.Column(fmt.Sprintf("COALESCE(SUM(%s), 0) AS sum_%s", qualify(mainAlias, f), f))
	}
	for _, f := range avgs {
		sb = sb.Column(fmt.Sprintf("AVG(%s) AS avg_%s", qualify(mainAlias, f), f))
	}
	if where := BuildWhereClause(d); where != nil {
		sb = sb.Where(where)
	}
	return sb.GroupBy(col).OrderBy(col + " ASC")
}

// BuildRelationQuery loads rows of target whose column is in ids.
// order is the relation's declared "column [asc|desc]" clause.
func BuildRelationQuery(target *model.Entity, column string, ids []any, order string) squirrel.SelectBuilder {
	sb := newSelect(target).
		Columns(selectColumns(target, nil)...).
		Where(squirrel.Eq{qualify(mainAlias, column): ids})
	if field, dir, ok := parseOrder(target, order); ok {
		sb = sb.OrderBy(qualify(mainAlias, field) + " " + orderKeyword(dir))
	}
	return sb.OrderBy(qualify(mainAlias, "id") + " ASC")
}

func parseOrder(e *model.Entity, order string) (string, string, bool) {
	var field, dir string
	if _, err := fmt.Sscan(order, &field, &dir); err != nil && field == "" {
		return "", "", false
	}
	if e.Field(field) == nil {
		return "", "", false
	}
	return field, dir, true
}
