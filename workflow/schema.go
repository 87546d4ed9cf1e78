//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/streetrace-ai/streetrace-go/workflow/ir"
)

// validator checks parsed model output against a structured-output
// schema and coerces the validated value into its typed form.
type validator struct {
	def      *ir.Schema
	registry map[string]*ir.Schema
	schema   *jsonschema.Schema
}

func newValidator(def *ir.Schema, registry map[string]*ir.Schema) (*validator, error) {
	doc := def.JSONSchema(registry)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", def.Name, err)
	}
	return &validator{def: def, registry: registry, schema: schema}, nil
}

// validate returns the validation errors, or nil when the value
// conforms.
func (v *validator) validate(value any) []string {
	err := v.schema.Validate(value)
	if err == nil {
		return nil
	}
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		return flattenValidationError(ve)
	}
	return []string{err.Error()}
}

func flattenValidationError(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		return []string{ve.Error()}
	}
	var errs []string
	for _, cause := range ve.Causes {
		errs = append(errs, flattenValidationError(cause)...)
	}
	return errs
}

// coerce converts a validated JSON object into its typed form: integer
// fields become int, optional missing fields become explicit nils, and
// nested objects and lists are converted recursively.
func (v *validator) coerce(value any) map[string]any {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return coerceObject(v.def, v.registry, obj)
}

func coerceObject(def *ir.Schema, registry map[string]*ir.Schema, obj map[string]any) map[string]any {
	out := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		raw, present := obj[f.Name]
		if !present || raw == nil {
			out[f.Name] = nil
			continue
		}
		out[f.Name] = coerceTyped(f.Type, registry, raw)
	}
	return out
}

func coerceTyped(t ir.FieldType, registry map[string]*ir.Schema, raw any) any {
	switch t.Kind {
	case ir.TypeInt:
		switch n := raw.(type) {
		case float64:
			return int(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i)
			}
		case int:
			return n
		}
		return raw
	case ir.TypeFloat:
		switch n := raw.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
		return raw
	case ir.TypeList:
		list, ok := raw.([]any)
		if !ok || t.Elem == nil {
			return raw
		}
		out := make([]any, 0, len(list))
		for _, el := range list {
			out = append(out, coerceTyped(*t.Elem, registry, el))
		}
		return out
	case ir.TypeRef:
		ref, ok := registry[t.Ref]
		if !ok {
			return raw
		}
		obj, ok := raw.(map[string]any)
		if !ok {
			return raw
		}
		return coerceObject(ref, registry, obj)
	default:
		return raw
	}
}

// schemaInstruction renders the deterministic enrichment appended to a
// schema-validated prompt.
func schemaInstruction(def *ir.Schema, registry map[string]*ir.Schema) string {
	doc, err := json.MarshalIndent(def.JSONSchema(registry), "", "  ")
	if err != nil {
		doc = []byte("{}")
	}
	return fmt.Sprintf(
		"Respond with a single JSON object that matches this JSON schema exactly. "+
			"Do not include any text outside the JSON object.\n\nSchema %q:\n%s",
		def.Name, string(doc))
}
