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
	"reflect"

	"github.com/streetrace-ai/streetrace-go/workflow/ir"
)

// eval evaluates an expression against the run's variable map.
func (ec *execContext) eval(expr ir.Expr) (any, error) {
	switch e := expr.(type) {
	case ir.Literal:
		return e.Value, nil
	case ir.VarRef:
		value, ok := ec.vars[e.Name]
		if !ok {
			return nil, fmt.Errorf("undefined variable %q", e.Name)
		}
		return value, nil
	case ir.Subject:
		if !ec.hasSubject {
			return nil, fmt.Errorf("no filter subject in scope")
		}
		return ec.subject, nil
	case ir.PropertyAccess:
		return ec.evalPropertyAccess(e)
	case ir.BinaryOp:
		return ec.evalBinaryOp(e)
	case ir.ListLiteral:
		out := make([]any, 0, len(e.Elements))
		for _, el := range e.Elements {
			v, err := ec.eval(el)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case ir.Filter:
		return ec.evalFilter(e)
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported expression %T", expr)
	}
}

func (ec *execContext) evalPropertyAccess(e ir.PropertyAccess) (any, error) {
	value, err := ec.eval(e.Base)
	if err != nil {
		return nil, err
	}
	for _, segment := range e.Path {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot access %q on %T", segment, value)
		}
		value = obj[segment]
	}
	return value, nil
}

func (ec *execContext) evalBinaryOp(e ir.BinaryOp) (any, error) {
	left, err := ec.eval(e.Left)
	if err != nil {
		return nil, err
	}
	right, err := ec.eval(e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "+":
		if l, ok := left.([]any); ok {
			r, ok := right.([]any)
			if !ok {
				return nil, fmt.Errorf("cannot add %T to a list", right)
			}
			return ListConcat(l, r), nil
		}
		return numericOp(e.Op, left, right)
	case "-":
		return numericOp(e.Op, left, right)
	case "==":
		return reflect.DeepEqual(left, right), nil
	case "!=":
		return !reflect.DeepEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return compareOp(e.Op, left, right)
	default:
		return nil, fmt.Errorf("unsupported operator %q", e.Op)
	}
}

func (ec *execContext) evalFilter(e ir.Filter) (any, error) {
	value, err := ec.eval(e.List)
	if err != nil {
		return nil, err
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("filter expects a list, got %T", value)
	}
	savedSubject, savedHas := ec.subject, ec.hasSubject
	defer func() { ec.subject, ec.hasSubject = savedSubject, savedHas }()

	out := make([]any, 0, len(list))
	for _, el := range list {
		ec.subject, ec.hasSubject = el, true
		keep, err := ec.eval(e.Where)
		if err != nil {
			return nil, err
		}
		if truthy(keep) {
			out = append(out, el)
		}
	}
	return out, nil
}

// ListConcat concatenates two lists into a fresh one. Generated flows
// accumulate results with it rather than mutating in place.
func ListConcat(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func numericOp(op string, left, right any) (any, error) {
	li, lIsInt := asInt(left)
	ri, rIsInt := asInt(right)
	if lIsInt && rIsInt {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		}
	}
	lf, lOK := asFloat(left)
	rf, rOK := asFloat(right)
	if !lOK || !rOK {
		return nil, fmt.Errorf("operator %q needs numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	}
	return nil, fmt.Errorf("unsupported numeric operator %q", op)
}

func compareOp(op string, left, right any) (any, error) {
	lf, lOK := asFloat(left)
	rf, rOK := asFloat(right)
	if !lOK || !rOK {
		return nil, fmt.Errorf("operator %q needs numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("unsupported comparison %q", op)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// truthy mirrors the workflow language's boolean coercion: nil, false,
// zero, empty strings and empty collections are falsy.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// formatValue renders a value for prompt interpolation and final
// responses: strings pass through, structured values render as JSON.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any, map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}
