package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"CrmAPI/internal/model"
)

func scanRecords(rows *sql.Rows, e *model.Entity) ([]model.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []model.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", e.Table, err)
		}
		rec := make(model.Record, len(cols))
		for i, col := range cols {
			if f := e.Field(col); f != nil {
				rec[col] = f.FromDB(vals[i])
			} else {
				rec[col] = plainValue(vals[i])
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// plainValue normalises computed columns: numeric text becomes a number.
func plainValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return numericOrString(string(x))
	case string:
		return numericOrString(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	}
	return v
}

func numericOrString(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
