// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package lexer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonlisp/go-moonlisp/lang/diag"
	"github.com/moonlisp/go-moonlisp/lang/lexer"
	"github.com/moonlisp/go-moonlisp/lang/token"
)

// tokenCase is a single expected token in a table-driven test.
type tokenCase struct {
	kind token.Kind
	text string
}

// runTokenize lexes input and checks that it produces exactly the expected
// sequence (plus a final EOF).
func runTokenize(t *testing.T, name, input string, want []tokenCase) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		toks, err := lexer.New("test.ml", input).Tokenize()
		require.NoError(t, err)
		require.NotEmpty(t, toks)

		last := toks[len(toks)-1]
		assert.Equal(t, token.EOF, last.Kind, "last token")
		body := toks[:len(toks)-1]

		if !assert.Len(t, body, len(want)) {
			for i, tok := range body {
				t.Logf("  [%d] %s", i, tok)
			}
			return
		}
		for i, w := range want {
			assert.Equal(t, w.kind, body[i].Kind, "token[%d] kind (text %q)", i, body[i].Text)
			assert.Equal(t, w.text, body[i].Text, "token[%d] text", i)
		}
	})
}

func TestTokenSequences(t *testing.T) {
	runTokenize(t, "call", "(+ 1 2)", []tokenCase{
		{token.SYMBOL, "("},
		{token.NAME, "+"},
		{token.NUMBER, "1"},
		{token.NUMBER, "2"},
		{token.SYMBOL, ")"},
	})
	runTokenize(t, "pair", "(a . b)", []tokenCase{
		{token.SYMBOL, "("},
		{token.NAME, "a"},
		{token.SYMBOL, "."},
		{token.NAME, "b"},
		{token.SYMBOL, ")"},
	})
	runTokenize(t, "brackets", "[x]", []tokenCase{
		{token.SYMBOL, "["},
		{token.NAME, "x"},
		{token.SYMBOL, "]"},
	})
	runTokenize(t, "numbers", "0 42 -7 +3 2.5 -0.25 .5", []tokenCase{
		{token.NUMBER, "0"},
		{token.NUMBER, "42"},
		{token.NUMBER, "-7"},
		{token.NUMBER, "+3"},
		{token.NUMBER, "2.5"},
		{token.NUMBER, "-0.25"},
		{token.NUMBER, ".5"},
	})
	runTokenize(t, "names", "foo <= list->vector set! ... - + a.b λx", []tokenCase{
		{token.NAME, "foo"},
		{token.NAME, "<="},
		{token.NAME, "list->vector"},
		{token.NAME, "set!"},
		{token.NAME, "..."},
		{token.NAME, "-"},
		{token.NAME, "+"},
		{token.NAME, "a.b"},
		{token.NAME, "λx"},
	})
	runTokenize(t, "strings", `"hello" "a \"q\" b" "multi
line" ""`, []tokenCase{
		{token.STRING, `"hello"`},
		{token.STRING, `"a \"q\" b"`},
		{token.STRING, "\"multi\nline\""},
		{token.STRING, `""`},
	})
	runTokenize(t, "comments", "; leading\n(f ; trailing\n x) ; end", []tokenCase{
		{token.SYMBOL, "("},
		{token.NAME, "f"},
		{token.NAME, "x"},
		{token.SYMBOL, ")"},
	})
	runTokenize(t, "adjacent", `(f"s"x)`, []tokenCase{
		{token.SYMBOL, "("},
		{token.NAME, "f"},
		{token.STRING, `"s"`},
		{token.NAME, "x"},
		{token.SYMBOL, ")"},
	})
	runTokenize(t, "dot at end of input", "a .", []tokenCase{
		{token.NAME, "a"},
		{token.SYMBOL, "."},
	})
	runTokenize(t, "empty", "", nil)
	runTokenize(t, "whitespace only", " \t\r\n ", nil)
}

func TestEOFIsIdempotent(t *testing.T) {
	for _, input := range []string{"", "x", "(a . b)", "  ; only a comment"} {
		l := lexer.New("test.ml", input)
		var eofs []token.Token
		for i := 0; i < 20; i++ {
			tok, err := l.NextToken()
			require.NoError(t, err)
			if tok.Kind == token.EOF {
				eofs = append(eofs, tok)
				continue
			}
			require.Empty(t, eofs, "content token %s after EOF for %q", tok, input)
		}
		require.NotEmpty(t, eofs)
		for _, e := range eofs[1:] {
			assert.Equal(t, eofs[0], e)
		}
		assert.Equal(t, lexer.StateAtEOF, l.State())
	}
}

func TestPositions(t *testing.T) {
	toks, err := lexer.New("pos.ml", "(f\n  \"s\" 12)").Tokenize()
	require.NoError(t, err)

	want := []token.Position{
		{File: "pos.ml", Line: 1, Column: 1, Offset: 0},
		{File: "pos.ml", Line: 1, Column: 2, Offset: 1},
		{File: "pos.ml", Line: 2, Column: 3, Offset: 5},
		{File: "pos.ml", Line: 2, Column: 7, Offset: 9},
		{File: "pos.ml", Line: 2, Column: 9, Offset: 11},
		{File: "pos.ml", Line: 2, Column: 10, Offset: 12},
	}
	require.Len(t, toks, len(want))
	for i, w := range want {
		assert.Equal(t, w, toks[i].Pos, "token[%d] %s", i, toks[i])
	}
	assert.Equal(t, "pos.ml:2:7", toks[3].Pos.String())
}

func TestLexicalErrors(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		line   int
		col    int
		lexeme string
	}{
		{"unterminated string", `"abc`, 1, 1, `"abc`},
		{"unterminated after escape", `(f "ab\`, 1, 4, `"ab\`},
		{"unknown escape", `"a\qb"`, 1, 3, `\q`},
		{"quote char", "'x", 1, 1, "'"},
		{"brace", "(a {b})", 1, 4, "{"},
		{"hash", "#t", 1, 1, "#"},
		{"control byte", "a \x01", 1, 3, "\x01"},
		{"trailing dot", "1.", 1, 1, "1."},
		{"two dots", "1.2.3", 1, 1, "1.2.3"},
		{"letters after digits", "(12ab)", 1, 2, "12ab"},
		{"second line", "x\n  `y", 2, 3, "`"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			toks, err := lexer.New("test.ml", c.input).Tokenize()
			require.Error(t, err)
			assert.Nil(t, toks)

			var lerr *diag.LexicalError
			require.True(t, errors.As(err, &lerr), "want *diag.LexicalError, got %T", err)
			assert.Equal(t, c.line, lerr.Pos.Line)
			assert.Equal(t, c.col, lerr.Pos.Column)
			assert.Equal(t, c.lexeme, lerr.Lexeme)
			assert.Equal(t, diag.StageLexical, diag.StageOf(err))
		})
	}
}

func TestErrorIsSticky(t *testing.T) {
	l := lexer.New("test.ml", `(a "abc`)
	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.True(t, tok.Is(token.LParen))
	_, err = l.NextToken()
	require.NoError(t, err)

	_, first := l.NextToken()
	require.Error(t, first)
	for i := 0; i < 3; i++ {
		tok, err := l.NextToken()
		assert.Equal(t, first, err)
		assert.Equal(t, token.Token{}, tok)
	}
	assert.Equal(t, lexer.StateFailed, l.State())
}

func TestUnquote(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"plain"`, "plain", true},
		{`""`, "", true},
		{`"a\"b"`, `a"b`, true},
		{`"tab\there"`, "tab\there", true},
		{`"nl\n\r\\"`, "nl\n\r\\", true},
		{`"bad\q"`, "", false},
		{`"dangling\"`, "", false},
		{`noquotes`, "", false},
		{`"`, "", false},
	}
	for _, c := range cases {
		got, ok := lexer.Unquote(c.raw)
		assert.Equal(t, c.ok, ok, "Unquote(%s)", c.raw)
		assert.Equal(t, c.want, got, "Unquote(%s)", c.raw)
	}
}
