// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package parser implements a recursive-descent parser for MoonLisp.
//
// Grammar:
//
//	program := form* EOF
//	form    := NUMBER | STRING | NAME | group
//	group   := '(' items ')' | '[' items ']'
//	items   := form* | form '.' form
//
// The root of every parse is a List holding the top-level forms. A group that
// contains a standalone dot becomes a Pair, which must have exactly one form
// on each side of a single dot. The parser stops at the first error; lexical
// errors are passed through unchanged.
package parser

import (
	"strings"

	"github.com/moonlisp/go-moonlisp/lang/ast"
	"github.com/moonlisp/go-moonlisp/lang/diag"
	"github.com/moonlisp/go-moonlisp/lang/lexer"
	"github.com/moonlisp/go-moonlisp/lang/token"
)

// DefaultMaxDepth bounds group nesting when no WithMaxDepth option is given.
const DefaultMaxDepth = 256

// Option configures a Parser.
type Option func(*Parser)

// WithMaxDepth sets the maximum group nesting depth. Values below one are
// ignored.
func WithMaxDepth(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxDepth = n
		}
	}
}

// Parser holds the mutable state for a single parse run.
type Parser struct {
	lex      *lexer.Lexer
	cur      token.Token // current token, the only lookahead
	maxDepth int
	depth    int
}

// New creates a parser pulling tokens from lex.
func New(lex *lexer.Lexer, opts ...Option) *Parser {
	p := &Parser{lex: lex, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseString lexes and parses src in one step.
func ParseString(filename, src string, opts ...Option) (*ast.List, error) {
	return New(lexer.New(filename, src), opts...).Parse()
}

// Parse consumes every token up to and including EOF and returns the root
// List of top-level forms.
func (p *Parser) Parse() (*ast.List, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	root := &ast.List{Position: token.Position{File: p.cur.Pos.File, Line: 1, Column: 1}}
	for p.cur.Kind != token.EOF {
		if p.cur.Is(token.Dot) {
			return nil, p.unexpected("'.' outside of a group")
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		root.Elements = append(root.Elements, n)
	}
	return root, nil
}

// advance pulls the next token from the lexer.
func (p *Parser) advance() error {
	tok, err := p.lex.NextToken()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) unexpected(what string) error {
	return diag.Syntaxf(p.cur.Pos, p.cur.Text, "unexpected %s", what)
}

// parseForm parses the form starting at the current token. A standalone dot
// is returned as a DOT atom for parseGroup to interpret.
func (p *Parser) parseForm() (ast.Node, error) {
	tok := p.cur
	switch tok.Kind {
	case token.NUMBER:
		typ := ast.NUMBER
		if strings.IndexByte(tok.Text, '.') >= 0 {
			typ = ast.FLOAT
		}
		return p.atom(typ, tok.Text)

	case token.STRING:
		body, ok := lexer.Unquote(tok.Text)
		if !ok {
			return nil, diag.Internalf("lexer produced malformed string literal %s at %s", tok.Text, tok.Pos)
		}
		return p.atom(ast.STRING, body)

	case token.NAME:
		return p.atom(ast.NAME, tok.Text)

	case token.SYMBOL:
		switch {
		case tok.IsOpen():
			return p.parseGroup()
		case tok.Is(token.Dot):
			return p.atom(ast.DOT, tok.Text)
		}
		return nil, p.unexpected("closing " + quoteSym(tok.Text))

	case token.EOF:
		return nil, diag.Truncate(diag.Syntaxf(tok.Pos, "", "unexpected end of input"))
	}
	return nil, diag.Internalf("unknown token kind %s at %s", tok.Kind, tok.Pos)
}

func (p *Parser) atom(typ ast.NodeType, value string) (ast.Node, error) {
	a := &ast.Atom{Type: typ, Value: value, Position: p.cur.Pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return a, nil
}

// parseGroup parses a delimited group. The current token is the opener.
func (p *Parser) parseGroup() (ast.Node, error) {
	open := p.cur
	closer := token.Closer(open.Text)

	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		return nil, diag.Syntaxf(open.Pos, open.Text, "nesting exceeds maximum depth of %d", p.maxDepth)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var elems []ast.Node
	for {
		switch {
		case p.cur.Kind == token.EOF:
			return nil, diag.Truncate(diag.Syntaxf(open.Pos, open.Text, "unterminated group: missing %s", quoteSym(closer)))
		case p.cur.IsClose():
			if p.cur.Text != closer {
				return nil, diag.Syntaxf(p.cur.Pos, p.cur.Text,
					"mismatched %s: group opened at %s expects %s", quoteSym(p.cur.Text), open.Pos, quoteSym(closer))
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			return group(open.Pos, elems)
		}
		n, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, n)
	}
}

// group turns the children of a delimited group into a List, or into a Pair
// if a dot separates them.
func group(pos token.Position, elems []ast.Node) (ast.Node, error) {
	dot := -1
	for i, e := range elems {
		if a, ok := e.(*ast.Atom); ok && a.Type == ast.DOT {
			if dot >= 0 {
				return nil, diag.Syntaxf(a.Position, token.Dot, "more than one '.' in dotted pair")
			}
			dot = i
		}
	}
	if dot < 0 {
		return &ast.List{Elements: elems, Position: pos}, nil
	}
	at := elems[dot].Pos()
	switch {
	case dot != 1:
		return nil, diag.Syntaxf(at, token.Dot, "dotted pair needs exactly one form before '.', got %d", dot)
	case len(elems) != 3:
		return nil, diag.Syntaxf(at, token.Dot, "dotted pair needs exactly one form after '.', got %d", len(elems)-2)
	}
	return ast.NewPair(elems[0], elems[2], pos), nil
}

func quoteSym(s string) string { return "'" + s + "'" }
