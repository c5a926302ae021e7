package model

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"CrmAPI/internal/logger"

	"gopkg.in/yaml.v3"
)

// LoadEntitiesFromFS parses every *.yml at the root of fsys. The file name is the entity name.
func LoadEntitiesFromFS(fsys fs.FS) (map[string]*Entity, error) {
	files, err := fs.Glob(fsys, "*.yml")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	out := make(map[string]*Entity, len(files))
	for _, p := range files {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		ent, err := parseEntity(name, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out[name] = ent
		logger.Debug("entity_loaded", map[string]any{
			"entity":    name,
			"fields":    len(ent.Fields),
			"relations": len(ent.Relations),
		})
	}
	return out, nil
}

func parseEntity(name string, data []byte) (*Entity, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty YAML")
	}
	if err := validateYAMLNode(root.Content[0], "entity"); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	var ent Entity
	if err := root.Decode(&ent); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	ent.Name = name
	if ent.Label == "" {
		ent.Label = name
	}
	if ent.Table == "" {
		ent.Table = toSnakeCase(name) + "s"
	}
	if ent.Route == "" {
		ent.Route = strings.ReplaceAll(ent.Table, "_", "-")
	}
	addImplicitFields(&ent)
	return &ent, nil
}

// addImplicitFields puts id first and the timestamps last, and builds the name index.
func addImplicitFields(e *Entity) {
	declared := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		declared[f.Name] = true
	}
	fields := make([]*Field, 0, len(e.Fields)+3)
	if !declared["id"] {
		fields = append(fields, &Field{Name: "id", Type: TypeID, implicit: true})
	}
	fields = append(fields, e.Fields...)
	for _, ts := range []string{"created_at", "updated_at"} {
		if !declared[ts] {
			fields = append(fields, &Field{Name: ts, Type: TypeTimestamp, implicit: true})
		}
	}
	e.Fields = fields

	e.fieldIndex = make(map[string]*Field, len(fields))
	for _, f := range fields {
		e.fieldIndex[f.Name] = f
	}
}
