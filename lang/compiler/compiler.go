// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package compiler translates a MoonLisp syntax tree into stack-machine
// bytecode in a single depth-first pass.
//
// Evaluation order is fixed: a call pushes its callee first and then its
// arguments left to right, and CALL's operand counts the arguments only.
// Top-level forms are separated by POP so that exactly one value, the
// result of the last form, is on the stack at HALT.
//
// Forward jumps are emitted with a placeholder target and recorded in a
// fixup worklist; binding their label later patches the real address in.
package compiler

import (
	"strconv"

	mapset "github.com/deckarep/golang-set"

	"github.com/moonlisp/go-moonlisp/lang/ast"
	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/diag"
)

// DefaultMaxDepth bounds tree nesting when no WithMaxDepth option is given.
const DefaultMaxDepth = 256

// specialForm compiles a list whose head names it.
type specialForm func(c *Compiler, l *ast.List) error

var specialForms map[string]specialForm

func init() {
	// Filled here since the handlers reach compileList, which reads the table.
	specialForms = map[string]specialForm{
		"if":    (*Compiler).compileIf,
		"cond":  (*Compiler).compileCond,
		"begin": (*Compiler).compileBegin,
		"list":  (*Compiler).compileListForm,
	}
}

// SpecialForms returns the names of every special form the compiler knows.
func SpecialForms() mapset.Set {
	s := mapset.NewSet()
	for name := range specialForms {
		s.Add(name)
	}
	return s
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithMaxDepth sets the maximum tree nesting depth. Values below one are
// ignored.
func WithMaxDepth(n int) Option {
	return func(c *Compiler) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithSpecialForms restricts the enabled special forms to names. A list
// headed by a disabled form's name compiles as an ordinary call.
func WithSpecialForms(names ...string) Option {
	return func(c *Compiler) {
		c.special = mapset.NewSet()
		for _, n := range names {
			c.special.Add(n)
		}
	}
}

// Compiler holds the state of one compilation. It may be reused sequentially
// but not concurrently.
type Compiler struct {
	special  mapset.Set
	maxDepth int

	code  []bytecode.Instruction
	fix   fixups
	depth int
	err   error // first internal error, checked at the Compile boundary
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{special: SpecialForms(), maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile translates the top-level forms held by root into a program.
func (c *Compiler) Compile(root *ast.List) (*bytecode.Program, error) {
	if root == nil {
		return nil, diag.Internalf("nil syntax tree")
	}
	c.code, c.fix, c.depth, c.err = nil, fixups{}, 0, nil

	for i, form := range root.Elements {
		if i > 0 {
			c.emit(bytecode.POP, bytecode.NoOperand())
		}
		if err := c.compileNode(form); err != nil {
			return nil, err
		}
	}
	c.emit(bytecode.HALT, bytecode.NoOperand())

	if c.err != nil {
		return nil, c.err
	}
	if err := c.fix.finish(len(c.code)); err != nil {
		return nil, err
	}
	prog := &bytecode.Program{Instructions: c.code}
	if errs := bytecode.Verify(prog); len(errs) > 0 {
		return nil, diag.Internalf("emitted program fails verification: %v", errs[0].Error())
	}
	return prog, nil
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (c *Compiler) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// emit appends an instruction and returns its index.
func (c *Compiler) emit(op bytecode.Opcode, arg bytecode.Operand) int {
	ins, err := bytecode.NewInstruction(op, arg)
	if err != nil {
		c.fail(diag.Internalf("emit at %d: %v", len(c.code), err))
		ins = bytecode.Instruction{Op: op, Operand: arg}
	}
	c.code = append(c.code, ins)
	return len(c.code) - 1
}

// emitJump emits a jump to l, queueing a fixup while l is unbound.
func (c *Compiler) emitJump(op bytecode.Opcode, l *label) {
	at := c.emit(op, bytecode.Size(unresolved))
	if err := c.fix.reference(c.code, at, l); err != nil {
		c.fail(err)
	}
}

// bind places l at the next instruction index.
func (c *Compiler) bind(l *label) {
	if err := c.fix.bind(c.code, l, len(c.code)); err != nil {
		c.fail(err)
	}
}

// pushNil leaves the VM's nil value on the stack.
func (c *Compiler) pushNil() {
	c.emit(bytecode.PUSH_VALUE, bytecode.NoOperand())
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

func (c *Compiler) compileNode(n ast.Node) error {
	switch n.(type) {
	case *ast.List, *ast.Pair:
		// Only groups nest, matching the parser's count.
		c.depth++
		defer func() { c.depth-- }()
		if c.depth > c.maxDepth {
			return diag.Compilef(n.Pos(), "", "nesting exceeds maximum depth of %d", c.maxDepth)
		}
	}

	switch n := n.(type) {
	case *ast.Atom:
		return c.compileAtom(n)
	case *ast.Pair:
		if err := c.compileNode(n.Head()); err != nil {
			return err
		}
		if err := c.compileNode(n.Tail()); err != nil {
			return err
		}
		c.emit(bytecode.MAKE_PAIR, bytecode.NoOperand())
		return nil
	case *ast.List:
		return c.compileList(n)
	case nil:
		return diag.Internalf("nil node in syntax tree")
	}
	return diag.Internalf("unknown node type %T", n)
}

func (c *Compiler) compileAtom(a *ast.Atom) error {
	switch a.Type {
	case ast.NUMBER:
		v, err := strconv.ParseInt(a.Value, 10, 64)
		if err != nil {
			return diag.Compilef(a.Position, a.Value, "integer literal out of range")
		}
		c.emit(bytecode.PUSH_VALUE, bytecode.Int(v))
	case ast.FLOAT:
		v, err := strconv.ParseFloat(a.Value, 64)
		if err != nil {
			return diag.Compilef(a.Position, a.Value, "float literal out of range")
		}
		c.emit(bytecode.PUSH_VALUE, bytecode.Float(v))
	case ast.STRING:
		c.emit(bytecode.PUSH_VALUE, bytecode.Text(a.Value))
	case ast.NAME:
		c.emit(bytecode.PUSH_VARIABLE, bytecode.Text(a.Value))
	case ast.DOT:
		return diag.Compilef(a.Position, a.Value, "'.' is only valid between the two halves of a dotted pair")
	default:
		return diag.Internalf("unknown atom type %s at %s", a.Type, a.Position)
	}
	return nil
}

func (c *Compiler) compileList(l *ast.List) error {
	head, ok := l.Head().(*ast.Atom)
	switch {
	case len(l.Elements) == 0:
		c.emit(bytecode.MAKE_LIST, bytecode.Size(0))
		return nil
	case ok && head.Type.IsLiteral():
		return c.compileElements(l.Elements)
	case ok && head.Type == ast.NAME && c.special.Contains(head.Value):
		if form, known := specialForms[head.Value]; known {
			return form(c, l)
		}
	}
	return c.compileCall(l)
}

// compileElements builds a literal list out of elems.
func (c *Compiler) compileElements(elems []ast.Node) error {
	for _, e := range elems {
		if err := c.compileNode(e); err != nil {
			return err
		}
	}
	c.emit(bytecode.MAKE_LIST, bytecode.Size(uint64(len(elems))))
	return nil
}

func (c *Compiler) compileCall(l *ast.List) error {
	for _, e := range l.Elements {
		if err := c.compileNode(e); err != nil {
			return err
		}
	}
	c.emit(bytecode.CALL, bytecode.Size(uint64(len(l.Args()))))
	return nil
}

// ---------------------------------------------------------------------------
// Special forms
// ---------------------------------------------------------------------------

// compileIf compiles (if test then [else]):
//
//	    test
//	    JUMP_IF_FALSE else
//	    then
//	    JUMP end
//	else:
//	    else-branch, or PUSH_VALUE nil
//	end:
func (c *Compiler) compileIf(l *ast.List) error {
	args := l.Args()
	if len(args) != 2 && len(args) != 3 {
		return diag.Compilef(l.Position, "if", "if takes a test, a then branch and an optional else branch, got %d forms", len(args))
	}
	elseL, endL := c.fix.newLabel(), c.fix.newLabel()

	if err := c.compileNode(args[0]); err != nil {
		return err
	}
	c.emitJump(bytecode.JUMP_IF_FALSE, elseL)
	if err := c.compileNode(args[1]); err != nil {
		return err
	}
	c.emitJump(bytecode.JUMP, endL)
	c.bind(elseL)
	if len(args) == 3 {
		if err := c.compileNode(args[2]); err != nil {
			return err
		}
	} else {
		c.pushNil()
	}
	c.bind(endL)
	return nil
}

// compileCond compiles (cond (test expr)... [(else expr)]) as a chain of
// tests that all jump to one shared end label.
func (c *Compiler) compileCond(l *ast.List) error {
	args := l.Args()
	endL := c.fix.newLabel()
	hasElse := false

	for i, clause := range args {
		cl, ok := clause.(*ast.List)
		if !ok || len(cl.Elements) != 2 {
			return diag.Compilef(clause.Pos(), clause.String(), "cond clause must be a (test expression) list")
		}
		test, expr := cl.Elements[0], cl.Elements[1]
		if ast.IsName(test, "else") {
			if i != len(args)-1 {
				return diag.Compilef(cl.Position, "else", "else must be the last cond clause")
			}
			if err := c.compileNode(expr); err != nil {
				return err
			}
			hasElse = true
			break
		}
		next := c.fix.newLabel()
		if err := c.compileNode(test); err != nil {
			return err
		}
		c.emitJump(bytecode.JUMP_IF_FALSE, next)
		if err := c.compileNode(expr); err != nil {
			return err
		}
		c.emitJump(bytecode.JUMP, endL)
		c.bind(next)
	}
	if !hasElse {
		c.pushNil()
	}
	c.bind(endL)
	return nil
}

// compileBegin evaluates its forms in order and keeps the last value.
func (c *Compiler) compileBegin(l *ast.List) error {
	args := l.Args()
	if len(args) == 0 {
		return diag.Compilef(l.Position, "begin", "begin needs at least one form")
	}
	for i, e := range args {
		if i > 0 {
			c.emit(bytecode.POP, bytecode.NoOperand())
		}
		if err := c.compileNode(e); err != nil {
			return err
		}
	}
	return nil
}

// compileListForm compiles (list e1 ... en) into a literal list.
func (c *Compiler) compileListForm(l *ast.List) error {
	return c.compileElements(l.Args())
}
