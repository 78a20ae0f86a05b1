// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ast defines the s-expression tree produced by the MoonLisp parser.
//
// Design overview:
//
//   - Node is a closed sum over exactly three variants: *Atom, *List and *Pair.
//     The unexported marker method keeps other packages from adding variants,
//     so a type switch over the three is exhaustive.
//   - Children are owned exclusively by their parent; the parser never shares a
//     subtree between two parents and never mutates a node after building it.
//   - String re-serialises a node to source text that parses back to an equal
//     tree.
package ast

import (
	"fmt"
	"strings"

	"github.com/moonlisp/go-moonlisp/lang/token"
)

// Node is implemented by *Atom, *List and *Pair.
type Node interface {
	// Pos returns the position of the token that starts the node.
	Pos() token.Position

	// String returns the node as MoonLisp source text.
	String() string

	node()
}

// NodeType is the syntactic kind of an Atom.
type NodeType int

const (
	FLOAT  NodeType = iota // literal with a decimal point
	NUMBER                 // integer literal
	STRING                 // quoted literal, Value holds the decoded body
	NAME                   // identifier or operator symbol
	DOT                    // pair separator, transient inside the parser
)

var nodeTypeNames = [...]string{
	FLOAT:  "FLOAT",
	NUMBER: "NUMBER",
	STRING: "STRING",
	NAME:   "NAME",
	DOT:    "DOT",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// IsLiteral reports whether atoms of this type denote self-evaluating values.
func (t NodeType) IsLiteral() bool {
	return t == FLOAT || t == NUMBER || t == STRING
}

// Atom is a leaf holding a literal or an identifier.
type Atom struct {
	Type     NodeType
	Value    string
	Position token.Position
}

// List is a proper, delimited sequence of forms.
type List struct {
	Elements []Node
	Position token.Position
}

// Pair is a dotted cons of exactly two forms.
type Pair struct {
	Elements [2]Node
	Position token.Position
}

func (*Atom) node() {}
func (*List) node() {}
func (*Pair) node() {}

func (a *Atom) Pos() token.Position { return a.Position }
func (l *List) Pos() token.Position { return l.Position }
func (p *Pair) Pos() token.Position { return p.Position }

func (a *Atom) String() string {
	switch a.Type {
	case STRING:
		return Quote(a.Value)
	case DOT:
		return token.Dot
	}
	return a.Value
}

func (l *List) String() string {
	parts := make([]string, len(l.Elements))
	for i, e := range l.Elements {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (p *Pair) String() string {
	return "(" + p.Elements[0].String() + " . " + p.Elements[1].String() + ")"
}

// Head returns the first element of the list, or nil if it is empty.
func (l *List) Head() Node {
	if len(l.Elements) == 0 {
		return nil
	}
	return l.Elements[0]
}

// Args returns every element after the head.
func (l *List) Args() []Node {
	if len(l.Elements) == 0 {
		return nil
	}
	return l.Elements[1:]
}

// Head returns the first component of the pair.
func (p *Pair) Head() Node { return p.Elements[0] }

// Tail returns the second component of the pair.
func (p *Pair) Tail() Node { return p.Elements[1] }

// NewPair builds a pair from its two components.
func NewPair(head, tail Node, pos token.Position) *Pair {
	return &Pair{Elements: [2]Node{head, tail}, Position: pos}
}

// IsName reports whether n is a NAME atom spelled name.
func IsName(n Node, name string) bool {
	a, ok := n.(*Atom)
	return ok && a.Type == NAME && a.Value == name
}

// Program renders the top-level forms of root one per line.
func Program(root *List) string {
	var b strings.Builder
	for _, e := range root.Elements {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Quote renders s as a MoonLisp string literal.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
