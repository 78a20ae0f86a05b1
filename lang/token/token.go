// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package token defines the lexical token kinds of the MoonLisp language.
//
// The vocabulary is deliberately tiny: everything that is not a number, a
// string or a grouping symbol is a NAME, including operators such as + and <=.
package token

import "fmt"

// Token is a single lexeme produced by the lexer.
type Token struct {
	Kind Kind
	Text string // raw lexeme; strings keep their quotes and escapes
	Pos  Position
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Text)
}

// Position tracks source location.
type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position refers to a real source location.
func (p Position) IsValid() bool { return p.Line > 0 }

// Kind is the set of lexical token kinds.
type Kind int

const (
	EOF    Kind = iota // end of input
	NUMBER             // 42, -7, 3.14
	NAME               // foo, +, <=, list->vector
	STRING             // "hello"
	SYMBOL             // ( ) [ ] .
)

var kindNames = [...]string{
	EOF:    "EOF",
	NUMBER: "NUMBER",
	NAME:   "NAME",
	STRING: "STRING",
	SYMBOL: "SYMBOL",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Kinds returns every token kind in declaration order.
func Kinds() []Kind {
	return []Kind{EOF, NUMBER, NAME, STRING, SYMBOL}
}

// Reserved punctuation carried by SYMBOL tokens.
const (
	LParen   = "("
	RParen   = ")"
	LBracket = "["
	RBracket = "]"
	Dot      = "."
)

// Is reports whether t is a SYMBOL token with the given text.
func (t Token) Is(sym string) bool {
	return t.Kind == SYMBOL && t.Text == sym
}

// IsOpen reports whether t opens a group.
func (t Token) IsOpen() bool { return t.Is(LParen) || t.Is(LBracket) }

// IsClose reports whether t closes a group.
func (t Token) IsClose() bool { return t.Is(RParen) || t.Is(RBracket) }

// Closer returns the symbol that closes a group opened by open.
func Closer(open string) string {
	if open == LBracket {
		return RBracket
	}
	return RParen
}
