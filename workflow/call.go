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
	"fmt"

	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/ui"
	"github.com/streetrace-ai/streetrace-go/workflow/ir"
)

// maxSchemaAttempts bounds schema-validated calls: the initial attempt
// plus retries with validation feedback.
const maxSchemaAttempts = 3

// execCall renders the prompt, invokes the selected model and binds the
// result. Schema-validated calls parse, validate and coerce the
// response, feeding failures back to the model until the attempt budget
// runs out.
func (r *Runtime) execCall(ec *execContext, s ir.Call) error {
	prompt, ok := r.program.Prompts[s.Prompt]
	if !ok {
		return fmt.Errorf("prompt %q not defined", s.Prompt)
	}
	renderVars := ec.vars
	if s.Input != nil {
		input, err := ec.eval(s.Input)
		if err != nil {
			return err
		}
		renderVars = make(map[string]any, len(ec.vars)+1)
		for k, v := range ec.vars {
			renderVars[k] = v
		}
		renderVars["input"] = input
	}
	body := prompt.Template.Render(renderVars, formatValue)

	modelName := r.resolveModelRef(s.Model, prompt.ModelRef)
	if r.modelFactory == nil {
		return fmt.Errorf("no model factory configured")
	}
	m, err := r.modelFactory(modelName)
	if err != nil {
		return fmt.Errorf("prompt %q: resolve model %q: %w", s.Prompt, modelName, err)
	}

	var result any
	if prompt.SchemaName == "" {
		result, err = r.callPlain(ec, m, s.Prompt, modelName, body)
	} else {
		result, err = r.callWithSchema(ec, m, s.Prompt, modelName, body, prompt.SchemaName)
	}
	if err != nil {
		return err
	}
	ec.lastResult = result
	if s.Target != "" {
		ec.vars[ir.StripVarPrefix(s.Target)] = result
	}
	return nil
}

// resolveModelRef applies the selection priority: the statement's
// explicit model, the prompt's own ref, then the program's "main"
// alias. Refs resolve through the model table and fall back to the
// literal string.
func (r *Runtime) resolveModelRef(stmtRef, promptRef string) string {
	ref := stmtRef
	if ref == "" {
		ref = promptRef
	}
	if ref == "" {
		ref = r.program.Models["main"]
	}
	if resolved, ok := r.program.Models[ref]; ok {
		return resolved
	}
	return ref
}

func (r *Runtime) callPlain(ec *execContext, m model.Model, promptName, modelName, body string) (any, error) {
	ec.emit(ui.LlmCallEvent{PromptName: promptName, Model: modelName, PromptText: body})
	rsp, err := m.GenerateContent(ec.ctx, &model.Request{
		Model:    modelName,
		Messages: []model.Message{model.NewUserMessage(body)},
	})
	if err != nil {
		return nil, fmt.Errorf("prompt %q: %w", promptName, err)
	}
	ec.emit(ui.LlmResponseEvent{PromptName: promptName, Content: rsp.Content})
	return rsp.Content, nil
}

func (r *Runtime) callWithSchema(ec *execContext, m model.Model, promptName, modelName, body, schemaName string) (any, error) {
	def, ok := r.program.Schemas[schemaName]
	if !ok {
		return nil, fmt.Errorf("prompt %q: schema %q not defined", promptName, schemaName)
	}
	v, err := newValidator(def, r.program.Schemas)
	if err != nil {
		return nil, fmt.Errorf("prompt %q: %w", promptName, err)
	}

	messages := []model.Message{
		model.NewUserMessage(body + "\n\n" + schemaInstruction(def, r.program.Schemas)),
	}
	var lastRaw string
	var lastErrs []string
	for attempt := 0; attempt < maxSchemaAttempts; attempt++ {
		ec.emit(ui.LlmCallEvent{PromptName: promptName, Model: modelName, PromptText: body})
		rsp, err := m.GenerateContent(ec.ctx, &model.Request{
			Model:    modelName,
			Messages: messages,
		})
		if err != nil {
			return nil, fmt.Errorf("prompt %q: %w", promptName, err)
		}
		ec.emit(ui.LlmResponseEvent{PromptName: promptName, Content: rsp.Content})
		lastRaw = rsp.Content

		parsed, perr := ExtractJSON(rsp.Content)
		if perr != nil {
			lastErrs = []string{perr.Error()}
			messages = appendFeedback(messages, rsp.Content, perr.Error())
			continue
		}
		if errs := v.validate(parsed); len(errs) > 0 {
			lastErrs = errs
			messages = appendFeedback(messages, rsp.Content, fmt.Sprintf("%v", errs))
			continue
		}
		return v.coerce(parsed), nil
	}
	return nil, &SchemaValidationError{
		SchemaName:  schemaName,
		Errors:      lastErrs,
		RawResponse: lastRaw,
	}
}

// appendFeedback extends the retry conversation with the failed
// response and a correction request.
func appendFeedback(messages []model.Message, response, problem string) []model.Message {
	feedback := fmt.Sprintf(
		"The previous response had an error: %s. Respond again with only a valid JSON object matching the schema.",
		problem)
	return append(messages,
		model.NewAssistantMessage(response),
		model.NewUserMessage(feedback),
	)
}
