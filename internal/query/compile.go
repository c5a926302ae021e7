package query

import (
	"fmt"
	"sort"
	"strings"

	"CrmAPI/internal/model"

	"github.com/Masterminds/squirrel"
)

const mainAlias = "main"

// BuildWhereClause compiles scope, equality, set, range and search predicates.
// It returns nil when nothing applies.
func BuildWhereClause(d Descriptor) squirrel.Sqlizer {
	var exprs squirrel.And

	for _, col := range sortedKeys(d.Scope) {
		exprs = append(exprs, squirrel.Eq{qualify(mainAlias, col): d.Scope[col]})
	}
	for _, col := range sortedKeys(d.Equality) {
		exprs = append(exprs, squirrel.Eq{qualify(mainAlias, col): d.Equality[col]})
	}
	for _, col := range sortedKeys(d.Sets) {
		// squirrel.Eq with a slice renders IN (...)
		exprs = append(exprs, squirrel.Eq{qualify(mainAlias, col): d.Sets[col]})
	}
	for _, col := range sortedKeys(d.Ranges) {
		if e := rangeExpr(qualify(mainAlias, col), d.Ranges[col]); e != nil {
			exprs = append(exprs, e)
		}
	}
	if d.Search != "" && d.Entity != nil && len(d.Entity.List.Search) > 0 {
		tree := buildSearchTree(d.Entity, d.Entity.List.Search)
		c := &aliasCounter{}
		exprs = append(exprs, tree.condition(mainAlias, "%"+d.Search+"%", c))
	}

	if len(exprs) == 0 {
		return nil
	}
	return exprs
}

// rangeExpr: both bounds give a closed interval, one bound a one-sided comparison.
func rangeExpr(col string, b Bounds) squirrel.Sqlizer {
	switch {
	case b.HasLow && b.HasHigh:
		return squirrel.Expr(col+" BETWEEN ? AND ?", b.Low, b.High)
	case b.HasLow:
		return squirrel.GtOrEq{col: b.Low}
	case b.HasHigh:
		return squirrel.LtOrEq{col: b.High}
	}
	return nil
}

// searchNode groups search columns by the relation path they sit behind.
type searchNode struct {
	entity   *model.Entity
	columns  []string
	children []*searchChild
}

type searchChild struct {
	name string
	rel  *model.Relation
	node *searchNode
}

func buildSearchTree(e *model.Entity, paths []string) *searchNode {
	root := &searchNode{entity: e}
	for _, p := range paths {
		rels, col, ok := e.ResolveColumn(p)
		if !ok {
			continue
		}
		segs := strings.Split(p, ".")
		node := root
		for i, rel := range rels {
			node = node.child(segs[i], rel)
		}
		node.columns = append(node.columns, col)
	}
	return root
}

func (n *searchNode) child(name string, rel *model.Relation) *searchNode {
	for _, c := range n.children {
		if c.name == name {
			return c.node
		}
	}
	c := &searchChild{name: name, rel: rel, node: &searchNode{entity: rel.Target()}}
	n.children = append(n.children, c)
	return c.node
}

type aliasCounter struct{ n int }

func (c *aliasCounter) next() string {
	c.n++
	return fmt.Sprintf("r%d", c.n)
}

// condition renders the OR-chain of this node: its own columns first, then one
// EXISTS subquery per related entity carrying the nested chain.
func (n *searchNode) condition(alias, pattern string, c *aliasCounter) squirrel.Sqlizer {
	var or squirrel.Or
	for _, col := range n.columns {
		or = append(or, squirrel.ILike{qualify(alias, col): pattern})
	}
	for _, ch := range n.children {
		sub := c.next()
		inner := ch.node.condition(sub, pattern, c)
		exists := squirrel.Select("1").
			From(fmt.Sprintf("%s AS %s", ch.node.entity.Table, sub)).
			Where(joinCondition(ch.rel, alias, sub)).
			Where(inner)
		or = append(or, squirrel.Expr("EXISTS (?)", exists))
	}
	return or
}

// joinCondition links parent alias to the related alias for one relation hop.
func joinCondition(rel *model.Relation, parent, child string) string {
	if rel.Type == model.BelongsTo {
		return fmt.Sprintf("%s.id = %s.%s", child, parent, rel.FK)
	}
	return fmt.Sprintf("%s.%s = %s.id", child, rel.FK, parent)
}

func qualify(alias, col string) string {
	return alias + "." + col
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
