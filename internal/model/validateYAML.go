package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Allowed keys per mapping context; nil means free form.
var allowedKeys = map[string]map[string]bool{
	"entity": {
		"table": true, "label": true, "route": true, "owner_field": true, "owner_only": true,
		"fields": true, "relations": true, "list": true, "statistics": true,
		"transition": true, "mine": true, "guards": true, "public": true,
	},
	"field": {
		"name": true, "type": true, "values": true, "references": true,
		"fillable": true, "hidden": true, "rules": true, "default": true,
		"unique": true, "blob": true,
	},
	"relation":   {"type": true, "model": true, "fk": true, "order": true},
	"list":       {"sort": true, "with": true, "filters": true, "search": true},
	"sort":       {"default": true, "direction": true, "allowed": true},
	"filters":    {"equality": true, "set": true, "range": true},
	"range":      {"field": true, "from": true, "to": true},
	"statistics": {"group_by": true, "sum": true, "avg": true},
	"transition": {"field": true, "timestamp_field": true, "timestamp_on": true},
	"guards":     {"delete_blocked_by": true},
	"guard":      {"relation": true, "message": true},
	"public":     {"create": true, "list_where": true},
}

var allowedFieldTypes = map[string]bool{
	TypeText: true, TypeEnum: true, TypeNumber: true, TypeInteger: true,
	TypeBoolean: true, TypeDate: true, TypeTimestamp: true, TypeRef: true,
}

var allowedRelationTypes = map[string]bool{BelongsTo: true, HasMany: true, HasOne: true}

// nextContext decides which key set applies to the value of key inside context.
func nextContext(context, key string) string {
	switch context {
	case "entity":
		switch key {
		case "fields":
			return "fields-seq"
		case "relations":
			return "relations-map"
		case "list", "statistics", "transition", "guards", "public":
			return key
		}
	case "relations-map":
		return "relation"
	case "list":
		switch key {
		case "sort", "filters":
			return key
		}
	case "filters":
		if key == "range" {
			return "range-seq"
		}
	case "guards":
		if key == "delete_blocked_by" {
			return "guard-seq"
		}
	}
	return "value"
}

func validateYAMLNode(node *yaml.Node, context string) error {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			if err := validateYAMLNode(child, "entity"); err != nil {
				return err
			}
		}

	case yaml.MappingNode:
		keys := allowedKeys[context]
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			val := node.Content[i+1]

			if keys != nil && !keys[key] {
				return fmt.Errorf("unknown key '%s' in %s", key, context)
			}
			if key == "type" {
				if context == "field" && !allowedFieldTypes[val.Value] {
					return fmt.Errorf("unknown field type '%s'", val.Value)
				}
				if context == "relation" && !allowedRelationTypes[val.Value] {
					return fmt.Errorf("unknown relation type '%s'", val.Value)
				}
			}
			if err := validateYAMLNode(val, nextContext(context, key)); err != nil {
				return err
			}
		}

	case yaml.SequenceNode:
		item := context
		switch context {
		case "fields-seq":
			item = "field"
		case "range-seq":
			item = "range"
		case "guard-seq":
			item = "guard"
		}
		for _, child := range node.Content {
			if err := validateYAMLNode(child, item); err != nil {
				return err
			}
		}
	}
	return nil
}
