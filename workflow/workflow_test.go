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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/ui"
	"github.com/streetrace-ai/streetrace-go/workflow/ir"
)

// scriptedModel replays responses in order and records every request.
type scriptedModel struct {
	responses []string
	requests  []*model.Request
}

func (m *scriptedModel) GenerateContent(_ context.Context, req *model.Request) (*model.Response, error) {
	m.requests = append(m.requests, req)
	rsp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return &model.Response{Content: rsp}, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted"} }

func scriptedFactory(m model.Model) model.Factory {
	return func(string) (model.Model, error) { return m, nil }
}

func reportSchema() *ir.Schema {
	return &ir.Schema{
		Name: "report",
		Fields: []ir.Field{
			{Name: "name", Type: ir.FieldType{Kind: ir.TypeString}},
			{Name: "count", Type: ir.FieldType{Kind: ir.TypeInt}},
		},
	}
}

func schemaProgram() *ir.Program {
	return &ir.Program{
		Name:    "test",
		Models:  map[string]string{"main": "gpt-4o"},
		Schemas: map[string]*ir.Schema{"report": reportSchema()},
		Prompts: map[string]*ir.PromptSpec{
			"p": {
				Template:   ir.Template{Body: "Summarize $input"},
				SchemaName: "report",
			},
		},
		Flows: map[string][]ir.Stmt{
			"main": {
				ir.Call{Prompt: "p", Input: ir.NewVarRef("$input"), Target: "result"},
				ir.Return{Value: ir.NewVarRef("result")},
			},
		},
	}
}

func runFlow(t *testing.T, rt *Runtime, vars map[string]any) ([]ui.Event, *Execution) {
	t.Helper()
	x := rt.Run(context.Background(), "", vars)
	var events []ui.Event
	for e := range x.Events() {
		events = append(events, e)
	}
	return events, x
}

// A response that first fails to parse, then fails validation, then
// conforms must succeed on the third attempt with a typed result.
func TestSchemaRetrySucceedsOnThirdAttempt(t *testing.T) {
	m := &scriptedModel{responses: []string{
		"not json",
		`{"name":"x"}`,
		`{"name":"x","count":1}`,
	}}
	rt := New(schemaProgram(), WithModelFactory(scriptedFactory(m)))

	events, x := runFlow(t, rt, map[string]any{"input": "the data"})
	require.NoError(t, x.Err())

	require.Len(t, m.requests, 3)

	// The final response carries the coerced object: count is an int.
	var final ui.LlmResponseEvent
	for _, e := range events {
		if ev, ok := e.(ui.LlmResponseEvent); ok && ev.IsFinal {
			final = ev
		}
	}
	require.Equal(t, `{"count":1,"name":"x"}`, final.Content)

	// Each retry carries the failed response plus corrective feedback.
	third := m.requests[2]
	last := third.Messages[len(third.Messages)-1]
	require.Equal(t, model.RoleUser, last.Role)
	require.Contains(t, strings.ToLower(last.Content), "error")

	// The first request embeds the schema enrichment.
	first := m.requests[0]
	require.Contains(t, first.Messages[0].Content, "Summarize the data")
	require.Contains(t, first.Messages[0].Content, `"report"`)
}

// Exhausting the attempt budget surfaces the schema name, the error
// list and the raw final response.
func TestSchemaRetryExhaustion(t *testing.T) {
	m := &scriptedModel{responses: []string{"invalid"}}
	rt := New(schemaProgram(), WithModelFactory(scriptedFactory(m)))

	_, x := runFlow(t, rt, map[string]any{"input": "the data"})
	require.Error(t, x.Err())

	var sve *SchemaValidationError
	require.ErrorAs(t, x.Err(), &sve)
	require.Equal(t, "report", sve.SchemaName)
	require.NotEmpty(t, sve.Errors)
	require.Equal(t, "invalid", sve.RawResponse)
	require.Len(t, m.requests, 3)
}

// An explicit null in an optional field is a conforming response, not a
// retry.
func TestSchemaOptionalFieldAcceptsNull(t *testing.T) {
	m := &scriptedModel{responses: []string{`{"name":"x","note":null}`}}
	program := &ir.Program{
		Name:   "test",
		Models: map[string]string{"main": "gpt-4o"},
		Schemas: map[string]*ir.Schema{
			"annotated": {
				Name: "annotated",
				Fields: []ir.Field{
					{Name: "name", Type: ir.FieldType{Kind: ir.TypeString}},
					{Name: "note", Type: ir.FieldType{Kind: ir.TypeString}, Optional: true},
				},
			},
		},
		Prompts: map[string]*ir.PromptSpec{
			"p": {Template: ir.Template{Body: "Annotate"}, SchemaName: "annotated"},
		},
		Flows: map[string][]ir.Stmt{
			"main": {
				ir.Call{Prompt: "p", Target: "result"},
				ir.Return{Value: ir.NewVarRef("result")},
			},
		},
	}
	rt := New(program, WithModelFactory(scriptedFactory(m)))

	events, x := runFlow(t, rt, nil)
	require.NoError(t, x.Err())
	require.Len(t, m.requests, 1)

	var final ui.LlmResponseEvent
	for _, e := range events {
		if ev, ok := e.(ui.LlmResponseEvent); ok && ev.IsFinal {
			final = ev
		}
	}
	require.Equal(t, `{"name":"x","note":null}`, final.Content)
}

func TestPlainCallStreamsEvents(t *testing.T) {
	m := &scriptedModel{responses: []string{"a plain answer"}}
	program := &ir.Program{
		Name:   "test",
		Models: map[string]string{"main": "gpt-4o"},
		Prompts: map[string]*ir.PromptSpec{
			"ask": {Template: ir.Template{Body: "Answer: $question"}},
		},
		Flows: map[string][]ir.Stmt{
			"main": {
				ir.Call{Prompt: "ask", Target: "answer"},
				ir.Return{Value: ir.NewVarRef("answer")},
			},
		},
	}
	rt := New(program, WithModelFactory(scriptedFactory(m)))

	events, x := runFlow(t, rt, map[string]any{"question": "why?"})
	require.NoError(t, x.Err())

	var kinds []string
	var final string
	for _, e := range events {
		switch ev := e.(type) {
		case ui.LlmCallEvent:
			kinds = append(kinds, "call")
			require.Equal(t, "ask", ev.PromptName)
			require.Equal(t, "gpt-4o", ev.Model)
			require.Equal(t, "Answer: why?", ev.PromptText)
		case ui.LlmResponseEvent:
			kinds = append(kinds, "response")
			if ev.IsFinal {
				final = ev.Content
			}
		}
	}
	require.Equal(t, []string{"call", "response", "response"}, kinds)
	require.Equal(t, "a plain answer", final)
}

func TestExtractJSON(t *testing.T) {
	obj, err := ExtractJSON(`  {"a": 1} `)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": float64(1)}, obj)

	obj, err = ExtractJSON("```json\n{\"a\": 1}\n```")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a": float64(1)}, obj)

	obj, err = ExtractJSON("```\n[1, 2]\n```")
	require.NoError(t, err)
	require.Equal(t, []any{float64(1), float64(2)}, obj)

	_, err = ExtractJSON("```json\n{}\n```\ntext\n```json\n{}\n```")
	var perr *JSONParseError
	require.ErrorAs(t, err, &perr)
	require.Contains(t, perr.Reason, "multiple code blocks")

	_, err = ExtractJSON("no json here")
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "no json here", perr.RawResponse)
}

func TestExpressionSemantics(t *testing.T) {
	ec := &execContext{vars: map[string]any{
		"xs": []any{1, 2},
		"ys": []any{3},
		"n":  2,
	}}

	// List + list concatenates.
	got, err := ec.eval(ir.BinaryOp{Op: "+", Left: ir.NewVarRef("xs"), Right: ir.NewVarRef("ys")})
	require.NoError(t, err)
	require.Equal(t, []any{1, 2, 3}, got)

	// Numbers add; ints stay ints.
	got, err = ec.eval(ir.BinaryOp{Op: "+", Left: ir.NewVarRef("n"), Right: ir.Literal{Value: 3}})
	require.NoError(t, err)
	require.Equal(t, 5, got)

	// Mixed list/number is a runtime error.
	_, err = ec.eval(ir.BinaryOp{Op: "+", Left: ir.NewVarRef("xs"), Right: ir.Literal{Value: 1}})
	require.Error(t, err)

	// Filter binds the element as the implicit subject.
	ec.vars["items"] = []any{
		map[string]any{"done": true, "id": "a"},
		map[string]any{"done": false, "id": "b"},
		map[string]any{"done": true, "id": "c"},
	}
	got, err = ec.eval(ir.Filter{
		List:  ir.NewVarRef("items"),
		Where: ir.PropertyAccess{Base: ir.Subject{}, Path: []string{"done"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Property access walks nested maps.
	ec.vars["obj"] = map[string]any{"inner": map[string]any{"value": "deep"}}
	got, err = ec.eval(ir.PropertyAccess{Base: ir.NewVarRef("obj"), Path: []string{"inner", "value"}})
	require.NoError(t, err)
	require.Equal(t, "deep", got)
}

func TestFlowControlStatements(t *testing.T) {
	m := &scriptedModel{responses: []string{"unused"}}
	program := &ir.Program{
		Name:   "test",
		Models: map[string]string{"main": "gpt-4o"},
		Flows: map[string][]ir.Stmt{
			"main": {
				ir.Assignment{Target: "$acc", Value: ir.ListLiteral{}},
				ir.For{
					Var:      "$item",
					Iterable: ir.NewVarRef("items"),
					Body: []ir.Stmt{
						ir.If{
							Cond: ir.BinaryOp{Op: ">", Left: ir.NewVarRef("item"), Right: ir.Literal{Value: 1}},
							Then: []ir.Stmt{
								ir.Push{Target: "acc", Value: ir.NewVarRef("item")},
							},
						},
					},
				},
				ir.Return{Value: ir.NewVarRef("acc")},
			},
		},
	}
	rt := New(program, WithModelFactory(scriptedFactory(m)))

	events, x := runFlow(t, rt, map[string]any{"items": []any{1, 2, 3}})
	require.NoError(t, x.Err())

	var final ui.LlmResponseEvent
	for _, e := range events {
		if ev, ok := e.(ui.LlmResponseEvent); ok && ev.IsFinal {
			final = ev
		}
	}
	require.Equal(t, "[2,3]", final.Content)
}

func TestSubFlowSharesContext(t *testing.T) {
	program := &ir.Program{
		Name: "test",
		Flows: map[string][]ir.Stmt{
			"main": {
				ir.Assignment{Target: "x", Value: ir.Literal{Value: 1}},
				ir.RunAgent{Agent: "helper", IsFlow: true, Target: "doubled"},
				ir.Return{Value: ir.NewVarRef("doubled")},
			},
			"helper": {
				ir.Return{Value: ir.BinaryOp{Op: "+", Left: ir.NewVarRef("x"), Right: ir.NewVarRef("x")}},
			},
		},
	}
	rt := New(program, WithModelFactory(scriptedFactory(&scriptedModel{responses: []string{""}})))

	events, x := runFlow(t, rt, nil)
	require.NoError(t, x.Err())

	var final ui.LlmResponseEvent
	for _, e := range events {
		if ev, ok := e.(ui.LlmResponseEvent); ok && ev.IsFinal {
			final = ev
		}
	}
	require.Equal(t, "2", final.Content)
}

func TestEscalateEndsRunWithoutFinal(t *testing.T) {
	var escalated string
	program := &ir.Program{
		Name: "test",
		Flows: map[string][]ir.Stmt{
			"main": {
				ir.Escalate{Message: ir.Literal{Value: "needs a human"}},
				ir.Return{Value: ir.Literal{Value: "unreachable"}},
			},
		},
	}
	rt := New(program,
		WithModelFactory(scriptedFactory(&scriptedModel{responses: []string{""}})),
		WithEscalationHandler(func(msg string) { escalated = msg }),
	)

	events, x := runFlow(t, rt, nil)
	require.NoError(t, x.Err())
	require.Equal(t, "needs a human", escalated)

	require.Len(t, events, 1)
	env, ok := events[0].(ui.AgentEventEnvelope)
	require.True(t, ok)
	require.True(t, env.Event.Escalate)
	require.Equal(t, "needs a human", env.Event.Text())
}

func TestTemplateRendering(t *testing.T) {
	tpl := ir.Template{Body: "Hello $name, you have $count tasks. Missing: $absent!"}
	out := tpl.Render(map[string]any{"name": "alice", "count": 3}, formatValue)
	require.Equal(t, "Hello alice, you have 3 tasks. Missing: !", out)
	require.Equal(t, []string{"name", "count", "absent"}, tpl.Vars())
}
