package store

import (
	"context"
	"fmt"

	"CrmAPI/internal/model"
	"CrmAPI/internal/query"
)

// Statistics computes totals and per-group aggregates over the filtered set.
// The result is {total, sums, averages, by_<field>: [...]}.
func (s *Store) Statistics(ctx context.Context, d query.Descriptor, cfg *model.StatisticsConfig) (map[string]any, error) {
	totals, err := s.Select(ctx, d.Entity, query.BuildTotalsQuery(d, cfg.Sum, cfg.Avg))
	if err != nil {
		return nil, fmt.Errorf("statistics totals: %w", err)
	}
	out := map[string]any{"total": int64(0)}
	sums := map[string]any{}
	avgs := map[string]any{}
	if len(totals) == 1 {
		row := totals[0]
		out["total"] = row["total"]
		for _, f := range cfg.Sum {
			sums[f] = row["sum_"+f]
		}
		for _, f := range cfg.Avg {
			avgs[f] = row["avg_"+f]
		}
	}
	out["sums"] = sums
	out["averages"] = avgs

	for _, g := range cfg.GroupBy {
		groups, err := s.Select(ctx, d.Entity, query.BuildGroupQuery(d, g, cfg.Sum, cfg.Avg))
		if err != nil {
			return nil, fmt.Errorf("statistics by %s: %w", g, err)
		}
		out["by_"+g] = groups
	}
	return out, nil
}
