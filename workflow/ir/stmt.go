//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package ir

// Stmt is a workflow statement node.
type Stmt interface {
	stmtNode()
}

// Assignment evaluates Value and binds it to Target. Targets carry no
// "$" prefix.
type Assignment struct {
	Target string
	Value  Expr
}

// Call renders the named prompt, invokes the model, and binds the
// result to Target when set. Input, when set, is bound as the "input"
// interpolation variable; Model overrides the prompt's model ref.
type Call struct {
	Prompt string
	Input  Expr
	Model  string
	Target string
}

// RunAgent runs the named agent (or, when IsFlow is set, the named flow
// within the same context) with the evaluated input and binds its final
// response to Target when set. OnEscalate runs when the agent escalates
// instead of finishing.
type RunAgent struct {
	Agent      string
	Input      Expr
	Target     string
	IsFlow     bool
	OnEscalate []Stmt
}

// Return ends the enclosing flow with an optional value.
type Return struct {
	Value Expr
}

// If branches on the truthiness of Cond.
type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// For iterates Body once per element of Iterable, binding the element
// to Var.
type For struct {
	Var      string
	Iterable Expr
	Body     []Stmt
}

// Loop repeats Body until a Return unwinds it or MaxIter iterations
// have run. MaxIter zero means unbounded; the workflow author owns
// termination then.
type Loop struct {
	MaxIter int
	Body    []Stmt
}

// ParallelRun is one concurrent agent run inside a Parallel statement.
type ParallelRun struct {
	Agent  string
	Input  Expr
	Target string
}

// Parallel runs its entries concurrently and binds each final response
// to its target once all entries complete.
type Parallel struct {
	Runs []ParallelRun
}

// Push appends the evaluated value to the list variable Target; the
// target must already hold a list.
type Push struct {
	Target string
	Value  Expr
}

// Log writes the evaluated message to the structured log at info level.
type Log struct {
	Message Expr
}

// Warn writes the evaluated message to the log at warn level and
// surfaces it on the UI bus.
type Warn struct {
	Message Expr
}

// Notify surfaces the evaluated message on the UI bus.
type Notify struct {
	Message Expr
}

// Escalate aborts the flow, surfacing the optional message as an
// escalation.
type Escalate struct {
	Message Expr
}

func (Assignment) stmtNode() {}
func (Call) stmtNode()       {}
func (RunAgent) stmtNode()   {}
func (Return) stmtNode()     {}
func (If) stmtNode()         {}
func (For) stmtNode()        {}
func (Loop) stmtNode()       {}
func (Parallel) stmtNode()   {}
func (Push) stmtNode()       {}
func (Log) stmtNode()        {}
func (Warn) stmtNode()       {}
func (Notify) stmtNode()     {}
func (Escalate) stmtNode()   {}
