// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package moonlisp wires the lexer, parser and compiler into one pipeline.
//
// Source text is normalised to Unicode NFC before lexing so that visually
// identical names compile to identical PUSH_VARIABLE operands.
package moonlisp

import (
	"golang.org/x/text/unicode/norm"

	"github.com/moonlisp/go-moonlisp/lang/ast"
	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/compiler"
	"github.com/moonlisp/go-moonlisp/lang/diag"
	"github.com/moonlisp/go-moonlisp/lang/lexer"
	"github.com/moonlisp/go-moonlisp/lang/parser"
	"github.com/moonlisp/go-moonlisp/lang/token"
	"github.com/moonlisp/go-moonlisp/log"
)

// Config bounds a compilation.
type Config struct {
	MaxInputSize int      // bytes of source accepted, after normalisation
	MaxDepth     int      // nesting limit shared by parser and compiler
	SpecialForms []string `toml:",omitempty"` // nil enables every special form
}

// DefaultConfig contains the default settings.
var DefaultConfig = Config{
	MaxInputSize: 1 << 20,
	MaxDepth:     256,
}

func (c *Config) orDefault() *Config {
	if c == nil {
		return &DefaultConfig
	}
	return c
}

func (c *Config) compilerOptions() []compiler.Option {
	opts := []compiler.Option{compiler.WithMaxDepth(c.MaxDepth)}
	if c.SpecialForms != nil {
		opts = append(opts, compiler.WithSpecialForms(c.SpecialForms...))
	}
	return opts
}

// Normalize returns src in NFC form.
func Normalize(src string) string {
	return norm.NFC.String(src)
}

func (c *Config) prepare(filename, src string) (string, error) {
	src = Normalize(src)
	if c.MaxInputSize > 0 && len(src) > c.MaxInputSize {
		pos := token.Position{File: filename, Line: 1, Column: 1}
		return "", diag.Lexicalf(pos, "", "input of %d bytes exceeds the %d byte limit", len(src), c.MaxInputSize)
	}
	return src, nil
}

// Tokenize lexes src into its token stream, ending with EOF.
func Tokenize(filename, src string, cfg *Config) ([]token.Token, error) {
	src, err := cfg.orDefault().prepare(filename, src)
	if err != nil {
		return nil, err
	}
	return lexer.New(filename, src).Tokenize()
}

// Parse parses src into its top-level forms.
func Parse(filename, src string, cfg *Config) (*ast.List, error) {
	cfg = cfg.orDefault()
	src, err := cfg.prepare(filename, src)
	if err != nil {
		return nil, err
	}
	return parser.ParseString(filename, src, parser.WithMaxDepth(cfg.MaxDepth))
}

// Compile runs the full pipeline over src. On error the program is nil and
// the error is one of the diag error kinds.
func Compile(filename, src string, cfg *Config) (*bytecode.Program, error) {
	cfg = cfg.orDefault()
	root, err := Parse(filename, src, cfg)
	if err != nil {
		log.Debug("Compilation failed", "file", filename, "stage", diag.StageOf(err), "err", err)
		return nil, err
	}
	prog, err := compiler.New(cfg.compilerOptions()...).Compile(root)
	if err != nil {
		if diag.IsInternal(err) {
			log.Error("Internal compiler error", "file", filename, "err", err)
		} else {
			log.Debug("Compilation failed", "file", filename, "stage", diag.StageOf(err), "err", err)
		}
		return nil, err
	}
	log.Debug("Compiled program", "file", filename, "forms", len(root.Elements), "instructions", prog.Len())
	return prog, nil
}
