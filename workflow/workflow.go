//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package workflow executes compiled workflow programs statement by
// statement, streaming typed render events: direct model calls surface
// as LlmCall/LlmResponse events, agent runs as wrapped agent events.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/streetrace-ai/streetrace-go/agent"
	"github.com/streetrace-ai/streetrace-go/agent/factory"
	"github.com/streetrace-ai/streetrace-go/agent/parallelagent"
	"github.com/streetrace-ai/streetrace-go/event"
	"github.com/streetrace-ai/streetrace-go/guardrail"
	"github.com/streetrace-ai/streetrace-go/log"
	"github.com/streetrace-ai/streetrace-go/model"
	"github.com/streetrace-ai/streetrace-go/session"
	"github.com/streetrace-ai/streetrace-go/tool/provider"
	"github.com/streetrace-ai/streetrace-go/ui"
	"github.com/streetrace-ai/streetrace-go/workflow/ir"
)

// MainFlow is the entry flow of a program.
const MainFlow = "main"

// Runtime executes a compiled program.
type Runtime struct {
	program      *ir.Program
	modelFactory model.Factory
	factory      *factory.Factory
	guardrails   guardrail.Provider
	escalate     func(message string)
	bufferSize   int
}

// Option configures a Runtime.
type Option func(*options)

type options struct {
	modelFactory model.Factory
	defaultModel string
	provider     *provider.Provider
	guardrails   guardrail.Provider
	escalate     func(message string)
	bufferSize   int
}

var defaultOptions = options{bufferSize: 64}

// WithModelFactory sets the model constructor.
func WithModelFactory(f model.Factory) Option {
	return func(o *options) { o.modelFactory = f }
}

// WithDefaultModel sets the fallback model identifier.
func WithDefaultModel(name string) Option {
	return func(o *options) { o.defaultModel = name }
}

// WithToolProvider sets the tool resolver handed to the agent factory.
func WithToolProvider(p *provider.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithGuardrails sets the guardrail provider.
func WithGuardrails(g guardrail.Provider) Option {
	return func(o *options) { o.guardrails = g }
}

// WithEscalationHandler sets the callback invoked when a flow
// escalates.
func WithEscalationHandler(fn func(message string)) Option {
	return func(o *options) { o.escalate = fn }
}

// WithChannelBufferSize sets the event channel buffer size.
func WithChannelBufferSize(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// New creates a runtime over the program.
func New(program *ir.Program, opts ...Option) *Runtime {
	cfg := defaultOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	guardrails := cfg.guardrails
	if guardrails == nil {
		guardrails = guardrail.NewRegex()
	}
	return &Runtime{
		program:      program,
		modelFactory: cfg.modelFactory,
		factory: factory.New(program,
			factory.WithModelFactory(cfg.modelFactory),
			factory.WithDefaultModel(cfg.defaultModel),
			factory.WithToolProvider(cfg.provider),
		),
		guardrails: guardrails,
		escalate:   cfg.escalate,
		bufferSize: cfg.bufferSize,
	}
}

// Program returns the compiled program.
func (r *Runtime) Program() *ir.Program { return r.program }

// Guardrails returns the run's guardrail provider.
func (r *Runtime) Guardrails() guardrail.Provider { return r.guardrails }

// Execution is one in-flight flow run. Err is valid once the event
// channel has closed.
type Execution struct {
	events chan ui.Event
	err    error
}

// Events returns the run's event stream.
func (x *Execution) Events() <-chan ui.Event { return x.events }

// Err returns the error that ended the run, if any.
func (x *Execution) Err() error { return x.err }

// flowReturn unwinds a Return statement through loops up to the flow
// boundary.
type flowReturn struct {
	value any
}

func (flowReturn) Error() string { return "flow return" }

// flowEscalation unwinds an Escalate statement to the run boundary.
type flowEscalation struct {
	message string
}

func (e flowEscalation) Error() string { return "flow escalation: " + e.message }

// Run starts the named flow (empty selects "main") with the given
// initial variables. The statement executor owns the channel; aborting
// ctx stops the run at the next safe point.
func (r *Runtime) Run(ctx context.Context, flowName string, vars map[string]any) *Execution {
	if flowName == "" {
		flowName = MainFlow
	}
	x := &Execution{events: make(chan ui.Event, r.bufferSize)}
	go func() {
		defer close(x.events)
		ec := &execContext{
			ctx:     ctx,
			runtime: r,
			vars:    make(map[string]any, len(vars)),
			out:     x.events,
		}
		for k, v := range vars {
			ec.vars[ir.StripVarPrefix(k)] = v
		}
		err := r.execFlow(ec, flowName)

		var escalation flowEscalation
		switch {
		case err == nil:
			ec.emit(ui.LlmResponseEvent{
				Content: formatValue(ec.lastResult),
				IsFinal: true,
			})
		case errors.As(err, &escalation):
			if r.escalate != nil {
				r.escalate(escalation.message)
			}
			escalated := event.New("", r.program.Name,
				event.WithContent(event.Text{Text: escalation.message}),
				event.WithEscalate(),
			)
			ec.emit(ui.AgentEventEnvelope{Event: escalated})
		default:
			x.err = err
		}
	}()
	return x
}

// execContext is the per-run mutable state: the flat variable map, the
// most recent Call/RunAgent result, and the outbound event channel.
type execContext struct {
	ctx        context.Context
	runtime    *Runtime
	vars       map[string]any
	lastResult any
	subject    any
	hasSubject bool
	out        chan<- ui.Event
}

// emit forwards an event unless the run's context is gone.
func (ec *execContext) emit(e ui.Event) bool {
	select {
	case ec.out <- e:
		return true
	case <-ec.ctx.Done():
		return false
	}
}

func (r *Runtime) execFlow(ec *execContext, name string) error {
	stmts, ok := r.program.Flows[name]
	if !ok {
		return fmt.Errorf("flow %q not defined", name)
	}
	err := r.execBlock(ec, stmts)
	var ret flowReturn
	if errors.As(err, &ret) {
		ec.lastResult = ret.value
		return nil
	}
	return err
}

func (r *Runtime) execBlock(ec *execContext, stmts []ir.Stmt) error {
	for _, stmt := range stmts {
		if err := ec.ctx.Err(); err != nil {
			return err
		}
		if err := r.execStmt(ec, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) execStmt(ec *execContext, stmt ir.Stmt) error {
	switch s := stmt.(type) {
	case ir.Assignment:
		value, err := ec.eval(s.Value)
		if err != nil {
			return err
		}
		ec.vars[ir.StripVarPrefix(s.Target)] = value
		return nil
	case ir.Call:
		return r.execCall(ec, s)
	case ir.RunAgent:
		return r.execRunAgent(ec, s)
	case ir.Return:
		value, err := ec.eval(s.Value)
		if err != nil {
			return err
		}
		return flowReturn{value: value}
	case ir.If:
		cond, err := ec.eval(s.Cond)
		if err != nil {
			return err
		}
		if truthy(cond) {
			return r.execBlock(ec, s.Then)
		}
		return r.execBlock(ec, s.Else)
	case ir.For:
		return r.execFor(ec, s)
	case ir.Loop:
		for i := 0; s.MaxIter <= 0 || i < s.MaxIter; i++ {
			if err := r.execBlock(ec, s.Body); err != nil {
				return err
			}
		}
		return nil
	case ir.Parallel:
		return r.execParallel(ec, s)
	case ir.Push:
		return r.execPush(ec, s)
	case ir.Log:
		text, err := ec.evalText(s.Message)
		if err != nil {
			return err
		}
		log.Infof("%s: %s", r.program.Name, text)
		return nil
	case ir.Warn:
		text, err := ec.evalText(s.Message)
		if err != nil {
			return err
		}
		log.Warnf("%s: %s", r.program.Name, text)
		ec.emit(ui.Warn{Text: text})
		return nil
	case ir.Notify:
		text, err := ec.evalText(s.Message)
		if err != nil {
			return err
		}
		ec.emit(ui.Info{Text: text})
		return nil
	case ir.Escalate:
		text, err := ec.evalText(s.Message)
		if err != nil {
			return err
		}
		return flowEscalation{message: text}
	default:
		return fmt.Errorf("unsupported statement %T", stmt)
	}
}

func (ec *execContext) evalText(expr ir.Expr) (string, error) {
	value, err := ec.eval(expr)
	if err != nil {
		return "", err
	}
	return formatValue(value), nil
}

func (r *Runtime) execFor(ec *execContext, s ir.For) error {
	value, err := ec.eval(s.Iterable)
	if err != nil {
		return err
	}
	list, ok := value.([]any)
	if !ok {
		return fmt.Errorf("for expects an ordered sequence, got %T", value)
	}
	name := ir.StripVarPrefix(s.Var)
	for _, el := range list {
		ec.vars[name] = el
		if err := r.execBlock(ec, s.Body); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) execPush(ec *execContext, s ir.Push) error {
	value, err := ec.eval(s.Value)
	if err != nil {
		return err
	}
	name := ir.StripVarPrefix(s.Target)
	existing, ok := ec.vars[name].([]any)
	if !ok {
		return fmt.Errorf("push target %q is not a list", name)
	}
	ec.vars[name] = append(existing, value)
	return nil
}

// execRunAgent runs a named agent (or flow) and binds its final
// response. Agent events are forwarded wrapped; an escalation runs the
// statement's handler when one is attached.
func (r *Runtime) execRunAgent(ec *execContext, s ir.RunAgent) error {
	if s.IsFlow {
		if err := r.execFlow(ec, s.Agent); err != nil {
			return err
		}
		if s.Target != "" {
			ec.vars[ir.StripVarPrefix(s.Target)] = ec.lastResult
		}
		return nil
	}

	input, err := r.renderInput(ec, s.Input)
	if err != nil {
		return err
	}
	ag, err := r.factory.Build(ec.ctx, s.Agent)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ag.Close(); cerr != nil {
			log.Warnf("close agent %s: %v", s.Agent, cerr)
		}
	}()

	finalText, escalated, err := r.streamAgent(ec, ag, s.Agent, input)
	if err != nil {
		return err
	}
	ec.lastResult = finalText
	if s.Target != "" {
		ec.vars[ir.StripVarPrefix(s.Target)] = finalText
	}
	if escalated && len(s.OnEscalate) > 0 {
		return r.execBlock(ec, s.OnEscalate)
	}
	return nil
}

func (r *Runtime) streamAgent(ec *execContext, ag agent.Agent, name, input string) (finalText string, escalated bool, err error) {
	sess := session.New(r.program.Name, "workflow", name)
	msg := model.NewUserMessage(input)
	inv := agent.NewInvocation(sess, &msg)
	inv.AgentName = name

	ch, err := ag.Run(ec.ctx, inv)
	if err != nil {
		return "", false, err
	}
	for e := range ch {
		if e.Escalate {
			escalated = true
		}
		if e.IsFinalResponse() && e.HasContent() {
			finalText = e.Text()
		}
		if !ec.emit(ui.AgentEventEnvelope{Event: e}) {
			return finalText, escalated, ec.ctx.Err()
		}
	}
	return finalText, escalated, nil
}

// renderInput evaluates an agent input expression. Literal strings are
// treated as templates so $name markers interpolate from the run's
// variables.
func (r *Runtime) renderInput(ec *execContext, expr ir.Expr) (string, error) {
	if lit, ok := expr.(ir.Literal); ok {
		if body, ok := lit.Value.(string); ok {
			return ir.Template{Body: body}.Render(ec.vars, formatValue), nil
		}
	}
	return ec.evalText(expr)
}

// execParallel evaluates the run inputs eagerly, executes the agents
// concurrently inside one composite, and copies each run's result from
// its session-state slot to its target once the composite is done.
func (r *Runtime) execParallel(ec *execContext, s ir.Parallel) error {
	if len(s.Runs) == 0 {
		return nil
	}
	branches := make([]parallelagent.Branch, 0, len(s.Runs))
	outputKeys := make([]string, 0, len(s.Runs))
	for i, spec := range s.Runs {
		input, err := r.renderInput(ec, spec.Input)
		if err != nil {
			return err
		}
		ag, err := r.factory.Build(ec.ctx, spec.Agent)
		if err != nil {
			return err
		}
		msg := model.NewUserMessage(input)
		key := fmt.Sprintf("parallel_%d_%s", i, spec.Agent)
		outputKeys = append(outputKeys, key)
		branches = append(branches, parallelagent.Branch{
			Agent:     ag,
			Message:   &msg,
			OutputKey: key,
		})
	}
	composite := parallelagent.New("parallel", parallelagent.WithBranches(branches...))
	defer func() {
		if cerr := composite.Close(); cerr != nil {
			log.Warnf("close parallel composite: %v", cerr)
		}
	}()

	sess := session.New(r.program.Name, "workflow", "parallel")
	inv := agent.NewInvocation(sess, nil)
	ch, err := composite.Run(ec.ctx, inv)
	if err != nil {
		return err
	}
	for e := range ch {
		if !ec.emit(ui.AgentEventEnvelope{Event: e}) {
			return ec.ctx.Err()
		}
	}
	for i, spec := range s.Runs {
		if spec.Target == "" {
			continue
		}
		ec.vars[ir.StripVarPrefix(spec.Target)] = sess.State[outputKeys[i]]
	}
	return nil
}
