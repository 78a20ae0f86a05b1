// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package lexer implements a single-pass, pull-based lexer for MoonLisp.
//
// Design principles:
//   - Byte-oriented; bytes >= 0x80 are accepted inside names so UTF-8
//     identifiers pass through untouched
//   - One token per NextToken call, no lookahead buffer
//   - ; starts a comment that runs to the end of the line
//   - The first lexical error is sticky: the lexer never produces another token
package lexer

import (
	"strings"

	"github.com/moonlisp/go-moonlisp/lang/diag"
	"github.com/moonlisp/go-moonlisp/lang/token"
)

// State is the scanning state of a Lexer.
type State int

const (
	StateScanning State = iota
	StateInString
	StateInNumber
	StateInName
	StateAtEOF
	StateFailed
)

var stateNames = [...]string{
	StateScanning: "scanning",
	StateInString: "in-string",
	StateInNumber: "in-number",
	StateInName:   "in-name",
	StateAtEOF:    "at-eof",
	StateFailed:   "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Lexer holds the state for a single tokenization run.
type Lexer struct {
	filename string
	input    []byte

	// pos is the index into input of the next byte to be loaded into ch.
	// After advance(), ch == input[pos-1] and pos points one past it.
	pos  int
	line int // 1-based current line number
	col  int // 1-based current column number

	ch  byte // current character; meaningless when eof is set
	eof bool

	state  State
	eofTok token.Token
	err    error
}

// New creates a new Lexer for the given filename and input string.
func New(filename, input string) *Lexer {
	l := &Lexer{
		filename: filename,
		input:    []byte(input),
		line:     1,
		col:      0,
	}
	l.advance() // prime l.ch with the first byte
	return l
}

// State returns the current scanning state.
func (l *Lexer) State() State { return l.state }

// advance moves to the next byte in the input, updating line/column tracking.
func (l *Lexer) advance() {
	if l.eof {
		return
	}
	if l.ch == '\n' && l.pos > 0 {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	if l.pos >= len(l.input) {
		l.ch = 0
		l.eof = true
		return
	}
	l.ch = l.input[l.pos]
	l.pos++
}

// peek returns the byte after the current character and whether one exists.
func (l *Lexer) peek() (byte, bool) {
	if l.eof || l.pos >= len(l.input) {
		return 0, false
	}
	return l.input[l.pos], true
}

// currentPos returns a token.Position for the current character.
func (l *Lexer) currentPos() token.Position {
	offset := l.pos - 1
	if l.eof {
		offset = len(l.input)
	}
	return token.Position{
		File:   l.filename,
		Line:   l.line,
		Column: l.col,
		Offset: offset,
	}
}

func (l *Lexer) fail(pos token.Position, lexeme, format string, args ...interface{}) (token.Token, error) {
	l.state = StateFailed
	l.err = diag.Lexicalf(pos, lexeme, format, args...)
	return token.Token{}, l.err
}

// truncated fails like fail and marks the error as caused by early EOF.
func (l *Lexer) truncated(pos token.Position, lexeme, msg string) (token.Token, error) {
	tok, err := l.fail(pos, lexeme, "%s", msg)
	return tok, diag.Truncate(err)
}

// skipInsignificant consumes whitespace and ; comments.
func (l *Lexer) skipInsignificant() {
	for !l.eof {
		switch {
		case isSpace(l.ch):
			l.advance()
		case l.ch == ';':
			for !l.eof && l.ch != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

// NextToken scans and returns the next token from the input. After EOF is
// reached, subsequent calls keep returning the same EOF token. After an error,
// subsequent calls keep returning the same error.
func (l *Lexer) NextToken() (token.Token, error) {
	switch l.state {
	case StateFailed:
		return token.Token{}, l.err
	case StateAtEOF:
		return l.eofTok, nil
	}
	l.state = StateScanning
	l.skipInsignificant()

	pos := l.currentPos()
	if l.eof {
		l.state = StateAtEOF
		l.eofTok = token.Token{Kind: token.EOF, Pos: pos}
		return l.eofTok, nil
	}

	ch := l.ch
	next, hasNext := l.peek()
	switch {
	case ch == '(' || ch == ')' || ch == '[' || ch == ']':
		l.advance()
		return token.Token{Kind: token.SYMBOL, Text: string(ch), Pos: pos}, nil

	case ch == '"':
		return l.lexString(pos)

	case isDigit(ch),
		(ch == '-' || ch == '+' || ch == '.') && hasNext && isDigit(next):
		return l.lexNumber(pos)

	case ch == '.' && (!hasNext || isBoundary(next)):
		l.advance()
		return token.Token{Kind: token.SYMBOL, Text: token.Dot, Pos: pos}, nil

	case isNameByte(ch):
		return l.lexName(pos)
	}
	return l.fail(pos, string(ch), "unexpected character %q", ch)
}

// Tokenize returns all tokens, including the final EOF, produced by repeated
// calls to NextToken. On error the tokens scanned so far are discarded.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

// lexName consumes a run of name bytes.
func (l *Lexer) lexName(pos token.Position) (token.Token, error) {
	l.state = StateInName
	start := l.pos - 1
	for !l.eof && isNameByte(l.ch) {
		l.advance()
	}
	l.state = StateScanning
	return token.Token{Kind: token.NAME, Text: string(l.input[start:l.offset()]), Pos: pos}, nil
}

// lexNumber consumes an optionally signed decimal literal with at most one
// decimal point. The point must be followed by a digit and the literal must
// end at a boundary.
func (l *Lexer) lexNumber(pos token.Position) (token.Token, error) {
	l.state = StateInNumber
	start := l.pos - 1
	if l.ch == '-' || l.ch == '+' {
		l.advance()
	}
	for !l.eof && isDigit(l.ch) {
		l.advance()
	}
	if !l.eof && l.ch == '.' {
		if next, ok := l.peek(); !ok || !isDigit(next) {
			return l.malformedNumber(pos, start)
		}
		l.advance()
		for !l.eof && isDigit(l.ch) {
			l.advance()
		}
	}
	if !l.eof && !isBoundary(l.ch) {
		return l.malformedNumber(pos, start)
	}
	l.state = StateScanning
	return token.Token{Kind: token.NUMBER, Text: string(l.input[start:l.offset()]), Pos: pos}, nil
}

func (l *Lexer) malformedNumber(pos token.Position, start int) (token.Token, error) {
	for !l.eof && !isBoundary(l.ch) {
		l.advance()
	}
	return l.fail(pos, string(l.input[start:l.offset()]), "malformed number literal")
}

// lexString consumes a string literal including both quotes. The literal is
// returned raw; Unquote decodes it.
func (l *Lexer) lexString(pos token.Position) (token.Token, error) {
	l.state = StateInString
	start := l.pos - 1
	l.advance() // opening quote
	for {
		if l.eof {
			return l.truncated(pos, string(l.input[start:]), "unterminated string literal")
		}
		switch l.ch {
		case '"':
			l.advance()
			l.state = StateScanning
			return token.Token{Kind: token.STRING, Text: string(l.input[start:l.offset()]), Pos: pos}, nil
		case '\\':
			escPos := l.currentPos()
			l.advance()
			if l.eof {
				return l.truncated(pos, string(l.input[start:]), "unterminated string literal")
			}
			if _, ok := escapes[l.ch]; !ok {
				return l.fail(escPos, `\`+string(l.ch), "unknown escape sequence")
			}
			l.advance()
		default:
			l.advance()
		}
	}
}

// offset is the byte offset of the current character, or len(input) at EOF.
func (l *Lexer) offset() int {
	if l.eof {
		return len(l.input)
	}
	return l.pos - 1
}

var escapes = map[byte]byte{
	'"':  '"',
	'\\': '\\',
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
}

// Unquote decodes a raw string literal as produced by the lexer. It reports
// false if raw is not a well-formed literal.
func Unquote(raw string) (string, bool) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", false
	}
	body := raw[1 : len(raw)-1]
	if strings.IndexByte(body, '\\') < 0 {
		return body, true
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", false
		}
		dec, ok := escapes[body[i]]
		if !ok {
			return "", false
		}
		b.WriteByte(dec)
	}
	return b.String(), true
}

// ---------------------------------------------------------------------------
// Character classification helpers
// ---------------------------------------------------------------------------

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == '\v'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// isBoundary reports whether ch terminates a number, a name or a dot.
func isBoundary(ch byte) bool {
	switch ch {
	case '(', ')', '[', ']', '"', ';':
		return true
	}
	return isSpace(ch)
}

func isNameByte(ch byte) bool {
	switch {
	case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', isDigit(ch), ch >= 0x80:
		return true
	}
	return strings.IndexByte("!$%&*+-./:<=>?@^_~", ch) >= 0
}
