//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONSchemaInlinesRefs(t *testing.T) {
	registry := map[string]*Schema{
		"task": {
			Name: "task",
			Fields: []Field{
				{Name: "title", Type: FieldType{Kind: TypeString}, Description: "task title"},
				{Name: "priority", Type: FieldType{Kind: TypeInt}, Optional: true},
			},
		},
	}
	plan := &Schema{
		Name: "plan",
		Fields: []Field{
			{Name: "goal", Type: FieldType{Kind: TypeString}},
			{Name: "tasks", Type: FieldType{
				Kind: TypeList,
				Elem: &FieldType{Kind: TypeRef, Ref: "task"},
			}},
		},
	}

	doc := plan.JSONSchema(registry)
	require.Equal(t, "object", doc["type"])
	require.Equal(t, false, doc["additionalProperties"])
	require.Equal(t, []any{"goal", "tasks"}, doc["required"])

	properties := doc["properties"].(map[string]any)
	require.Equal(t, map[string]any{"type": "string"}, properties["goal"])

	tasks := properties["tasks"].(map[string]any)
	require.Equal(t, "array", tasks["type"])

	item := tasks["items"].(map[string]any)
	require.Equal(t, "object", item["type"])
	itemProps := item["properties"].(map[string]any)
	require.Equal(t, "task title", itemProps["title"].(map[string]any)["description"])

	// Optional fields stay out of required and admit explicit null.
	require.Equal(t, []any{"title"}, item["required"])
	require.Equal(t, map[string]any{"type": []any{"integer", "null"}},
		itemProps["priority"])
}

// Optional structured fields widen through anyOf rather than a type
// union.
func TestJSONSchemaOptionalList(t *testing.T) {
	s := &Schema{
		Name: "report",
		Fields: []Field{
			{Name: "tags", Optional: true, Type: FieldType{
				Kind: TypeList,
				Elem: &FieldType{Kind: TypeString},
			}},
		},
	}
	doc := s.JSONSchema(nil)
	properties := doc["properties"].(map[string]any)
	require.Equal(t, map[string]any{
		"anyOf": []any{
			map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			map[string]any{"type": "null"},
		},
	}, properties["tags"])
	require.Nil(t, doc["required"])
}

func TestJSONSchemaUnknownRef(t *testing.T) {
	s := &Schema{
		Name: "wrapper",
		Fields: []Field{
			{Name: "payload", Type: FieldType{Kind: TypeRef, Ref: "missing"}},
		},
	}
	doc := s.JSONSchema(nil)
	properties := doc["properties"].(map[string]any)
	require.Equal(t, map[string]any{"type": "object"}, properties["payload"])
}

func TestStripVarPrefix(t *testing.T) {
	require.Equal(t, "name", StripVarPrefix("$name"))
	require.Equal(t, "name", StripVarPrefix("name"))
	require.Equal(t, "", StripVarPrefix("$"))
}
