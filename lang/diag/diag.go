// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package diag defines the stage-scoped errors shared by the lexer, the parser
// and the compiler.
//
// Every user-facing failure is exactly one of LexicalError, SyntaxError or
// CompileError. InternalError is reserved for compiler invariant violations and
// never describes a problem with the input.
package diag

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"

	"github.com/moonlisp/go-moonlisp/lang/token"
)

// Stage identifies the pipeline phase that raised an error.
type Stage int

const (
	StageUnknown Stage = iota
	StageLexical
	StageSyntax
	StageCompile
	StageInternal
)

var stageNames = [...]string{
	StageUnknown:  "unknown",
	StageLexical:  "lexical",
	StageSyntax:   "syntax",
	StageCompile:  "compile",
	StageInternal: "internal",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Error is implemented by every error in this package.
type Error interface {
	error
	Stage() Stage
	Position() token.Position
}

// Diagnostic is the payload shared by the user-facing error kinds.
type Diagnostic struct {
	Pos    token.Position
	Lexeme string // offending lexeme, may be empty
	Msg    string

	// Truncated is set when the input ended inside a construct, so that
	// appending more input could make it valid.
	Truncated bool
}

func (d *Diagnostic) truncated() bool { return d.Truncated }

// Position returns the source location of the diagnostic.
func (d *Diagnostic) Position() token.Position { return d.Pos }

func (d *Diagnostic) format(stage Stage) string {
	if d.Lexeme == "" {
		return fmt.Sprintf("%s error at %s: %s", stage, d.Pos, d.Msg)
	}
	return fmt.Sprintf("%s error at %s: %s (near %q)", stage, d.Pos, d.Msg, d.Lexeme)
}

// LexicalError is raised by the lexer.
type LexicalError struct{ Diagnostic }

func (e *LexicalError) Error() string { return e.format(StageLexical) }
func (e *LexicalError) Stage() Stage  { return StageLexical }

// SyntaxError is raised by the parser.
type SyntaxError struct{ Diagnostic }

func (e *SyntaxError) Error() string { return e.format(StageSyntax) }
func (e *SyntaxError) Stage() Stage  { return StageSyntax }

// CompileError is raised by the code generator for well-formed trees that
// have no valid translation.
type CompileError struct{ Diagnostic }

func (e *CompileError) Error() string { return e.format(StageCompile) }
func (e *CompileError) Stage() Stage  { return StageCompile }

// InternalError signals a compiler bug. Trace holds the call stack at the
// point the violated invariant was detected.
type InternalError struct {
	Msg   string
	Trace stack.CallStack
}

func (e *InternalError) Error() string            { return "internal compiler error: " + e.Msg }
func (e *InternalError) Stage() Stage             { return StageInternal }
func (e *InternalError) Position() token.Position { return token.Position{} }

// Lexicalf creates a LexicalError.
func Lexicalf(pos token.Position, lexeme, format string, args ...interface{}) error {
	return &LexicalError{Diagnostic{Pos: pos, Lexeme: lexeme, Msg: fmt.Sprintf(format, args...)}}
}

// Syntaxf creates a SyntaxError.
func Syntaxf(pos token.Position, lexeme, format string, args ...interface{}) error {
	return &SyntaxError{Diagnostic{Pos: pos, Lexeme: lexeme, Msg: fmt.Sprintf(format, args...)}}
}

// Compilef creates a CompileError.
func Compilef(pos token.Position, lexeme, format string, args ...interface{}) error {
	return &CompileError{Diagnostic{Pos: pos, Lexeme: lexeme, Msg: fmt.Sprintf(format, args...)}}
}

// Internalf creates an InternalError, recording the caller's stack.
func Internalf(format string, args ...interface{}) error {
	return &InternalError{
		Msg:   fmt.Sprintf(format, args...),
		Trace: stack.Trace().TrimBelow(stack.Caller(1)).TrimRuntime(),
	}
}

// StageOf classifies err. Errors from outside this package report
// StageUnknown.
func StageOf(err error) Stage {
	var de Error
	if errors.As(err, &de) {
		return de.Stage()
	}
	return StageUnknown
}

// IsInternal reports whether err signals a compiler bug rather than bad input.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

// Truncate marks a lexical or syntax error as caused by input that ended too
// early. Other errors are returned unchanged.
func Truncate(err error) error {
	switch e := err.(type) {
	case *LexicalError:
		e.Truncated = true
	case *SyntaxError:
		e.Truncated = true
	}
	return err
}

// IsTruncated reports whether err was caused by input that ended inside a
// string literal or group.
func IsTruncated(err error) bool {
	var t interface{ truncated() bool }
	return errors.As(err, &t) && t.truncated()
}

// WithFile returns a copy of err whose position names file. Errors without a
// source position are returned unchanged.
func WithFile(err error, file string) error {
	switch e := err.(type) {
	case *LexicalError:
		c := *e
		c.Pos.File = file
		return &c
	case *SyntaxError:
		c := *e
		c.Pos.File = file
		return &c
	case *CompileError:
		c := *e
		c.Pos.File = file
		return &c
	}
	return err
}
