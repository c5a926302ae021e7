package model

import (
	"fmt"
	"sort"
	"unicode"
)

func linkRelations(entities map[string]*Entity) error {
	names := make([]string, 0, len(entities))
	for n := range entities {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		ent := entities[name]
		for relName, rel := range ent.Relations {
			target, ok := entities[rel.Model]
			if !ok {
				return fmt.Errorf("invalid relation: model '%s' not found in '%s.%s'", rel.Model, name, relName)
			}
			rel.target = target

			if rel.FK == "" {
				switch rel.Type {
				case BelongsTo:
					// column on this entity
					rel.FK = relName + "_id"
				case HasOne, HasMany:
					// column on the target pointing back here
					rel.FK = toSnakeCase(name) + "_id"
				}
			}

			switch rel.Type {
			case BelongsTo:
				if ent.Field(rel.FK) == nil {
					return fmt.Errorf("relation '%s.%s': foreign key '%s' is not a field of %s", name, relName, rel.FK, name)
				}
			case HasOne, HasMany:
				if target.Field(rel.FK) == nil {
					return fmt.Errorf("relation '%s.%s': foreign key '%s' is not a field of %s", name, relName, rel.FK, target.Name)
				}
			default:
				return fmt.Errorf("relation '%s.%s' must have valid Type (has_many, has_one, belongs_to), got '%s'", name, relName, rel.Type)
			}
		}

		for _, f := range ent.Fields {
			if f.Type != TypeRef {
				continue
			}
			if _, ok := entities[f.References]; !ok {
				return fmt.Errorf("field '%s.%s' references unknown entity '%s'", name, f.Name, f.References)
			}
		}
	}
	return nil
}

func toSnakeCase(s string) string {
	var result []rune
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}
