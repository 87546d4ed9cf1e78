//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package ir

// Field type kinds.
const (
	TypeString = "string"
	TypeInt    = "integer"
	TypeFloat  = "number"
	TypeBool   = "boolean"
	TypeList   = "list"
	TypeRef    = "ref"
)

// FieldType describes the type of a schema field. Kind is one of the
// Type* constants; Elem is set for lists, Ref for references to other
// named schemas.
type FieldType struct {
	Kind string
	Elem *FieldType
	Ref  string
}

// Field is one property of a structured-output schema.
type Field struct {
	Name        string
	Type        FieldType
	Optional    bool
	Description string
}

// Schema is a named structured-output contract.
type Schema struct {
	Name   string
	Fields []Field
}

// JSONSchema renders the schema as a JSON Schema document. Referenced
// schemas are inlined from the given registry; an unknown reference
// renders as an unconstrained object.
func (s *Schema) JSONSchema(registry map[string]*Schema) map[string]any {
	properties := make(map[string]any, len(s.Fields))
	var required []any
	for _, f := range s.Fields {
		prop := f.Type.jsonSchema(registry)
		if f.Optional {
			prop = nullable(prop)
		}
		if desc := f.Description; desc != "" {
			prop["description"] = desc
		}
		properties[f.Name] = prop
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// nullable widens a schema so an optional field accepts explicit null:
// bare scalar kinds get a type union, structured kinds an anyOf branch.
func nullable(doc map[string]any) map[string]any {
	if kind, ok := doc["type"].(string); ok && len(doc) == 1 {
		return map[string]any{"type": []any{kind, "null"}}
	}
	return map[string]any{"anyOf": []any{doc, map[string]any{"type": "null"}}}
}

func (t FieldType) jsonSchema(registry map[string]*Schema) map[string]any {
	switch t.Kind {
	case TypeList:
		items := map[string]any{}
		if t.Elem != nil {
			items = t.Elem.jsonSchema(registry)
		}
		return map[string]any{"type": "array", "items": items}
	case TypeRef:
		if ref, ok := registry[t.Ref]; ok {
			return ref.JSONSchema(registry)
		}
		return map[string]any{"type": "object"}
	case "":
		return map[string]any{}
	default:
		return map[string]any{"type": t.Kind}
	}
}
