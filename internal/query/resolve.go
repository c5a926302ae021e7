package query

import "strings"

// ResolveRelations intersects a comma separated "with" value with the allow-list.
// The result follows allow-list order and never errors; unknown names are dropped.
func ResolveRelations(requested string, allowed []string) []string {
	if strings.TrimSpace(requested) == "" || len(allowed) == 0 {
		return nil
	}
	want := make(map[string]bool)
	for _, part := range strings.Split(requested, ",") {
		if p := strings.TrimSpace(part); p != "" {
			want[p] = true
		}
	}
	var out []string
	seen := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		if want[a] && !seen[a] {
			out = append(out, a)
			seen[a] = true
		}
	}
	return out
}

// ResolveSort returns the requested pair when field is allow-listed, else the defaults.
// The requested direction is passed through untouched; an empty one takes the default.
func ResolveSort(field, direction string, allowed []string, defaultField, defaultDirection string) (string, string) {
	for _, a := range allowed {
		if a == field && field != "" {
			if direction == "" {
				direction = defaultDirection
			}
			return field, direction
		}
	}
	return defaultField, defaultDirection
}

// orderKeyword maps a pass-through direction to SQL.
func orderKeyword(direction string) string {
	if strings.EqualFold(strings.TrimSpace(direction), "desc") {
		return "DESC"
	}
	return "ASC"
}
