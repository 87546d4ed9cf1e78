//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package ir

// Expr is a workflow expression node.
type Expr interface {
	exprNode()
}

// Literal is a constant value: string, number, bool or nil.
type Literal struct {
	Value any
}

// VarRef reads a workflow variable. The name carries no "$" prefix.
type VarRef struct {
	Name string
}

// NewVarRef builds a VarRef, stripping any "$" prefix.
func NewVarRef(name string) VarRef {
	return VarRef{Name: StripVarPrefix(name)}
}

// Subject is the implicit element bound inside a Filter predicate.
type Subject struct{}

// PropertyAccess walks a dotted path from a base expression. Each path
// segment indexes into a mapping result.
type PropertyAccess struct {
	Base Expr
	Path []string
}

// BinaryOp applies an operator to two operands. "+" concatenates two
// sequences or adds two numbers; comparison operators yield booleans.
type BinaryOp struct {
	Op    string
	Left  Expr
	Right Expr
}

// ListLiteral builds a list from element expressions.
type ListLiteral struct {
	Elements []Expr
}

// Filter selects the elements of List for which Where is truthy. Inside
// Where, Subject refers to the element under test.
type Filter struct {
	List  Expr
	Where Expr
}

func (Literal) exprNode()        {}
func (VarRef) exprNode()         {}
func (Subject) exprNode()        {}
func (PropertyAccess) exprNode() {}
func (BinaryOp) exprNode()       {}
func (ListLiteral) exprNode()    {}
func (Filter) exprNode()         {}
