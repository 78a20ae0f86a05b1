// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package log

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture() (Handler, *[]*Record) {
	var recs []*Record
	return FuncHandler(func(r *Record) error {
		recs = append(recs, r)
		return nil
	}), &recs
}

func TestLevelFilter(t *testing.T) {
	h, recs := capture()
	l := New()
	l.SetHandler(LvlFilterHandler(LvlInfo, h))

	l.Debug("hidden")
	l.Info("shown")
	l.Error("also shown")

	require.Len(t, *recs, 2)
	assert.Equal(t, "shown", (*recs)[0].Msg)
	assert.Equal(t, LvlError, (*recs)[1].Lvl)
}

func TestContextInheritance(t *testing.T) {
	h, recs := capture()
	l := New("module", "compiler")
	l.SetHandler(h)
	child := l.New("file", "a.ml")
	child.Info("done", "n", 3)

	require.Len(t, *recs, 1)
	assert.Equal(t, []interface{}{"module", "compiler", "file", "a.ml", "n", 3}, (*recs)[0].Ctx)
}

func TestOddContextIsNormalized(t *testing.T) {
	h, recs := capture()
	l := New()
	l.SetHandler(h)
	l.Warn("odd", "key")

	ctx := (*recs)[0].Ctx
	require.Len(t, ctx, 4)
	assert.Nil(t, ctx[1])
	assert.Equal(t, errorKey, ctx[2])
}

func TestCallSite(t *testing.T) {
	h, recs := capture()
	l := New()
	l.SetHandler(h)
	l.Info("where")

	assert.Equal(t, "log_test.go", fmt.Sprintf("%s", (*recs)[0].Call))
}

func TestLogfmtFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetHandler(StreamHandler(&buf, LogfmtFormat()))
	l.Info("compiled program", "file", "a b.ml", "ok", true, "err", errors.New("x=1"), "n", nil)

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, `lvl=info msg="compiled program" file="a b.ml" ok=true err="x=1" n=nil`)
}

func TestTerminalFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetHandler(StreamHandler(&buf, TerminalFormat(false)))
	l.Error("boom", "stage", "syntax")

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "ERROR["))
	assert.Contains(t, line, "boom")
	assert.Contains(t, line, "stage=syntax\n")
	assert.NotContains(t, line, "\x1b[")
}

func TestLvlFromString(t *testing.T) {
	for _, lvl := range []Lvl{LvlCrit, LvlError, LvlWarn, LvlInfo, LvlDebug, LvlTrace} {
		got, err := LvlFromString(lvl.String())
		require.NoError(t, err)
		assert.Equal(t, lvl, got)
	}
	_, err := LvlFromString("loud")
	assert.Error(t, err)
}
