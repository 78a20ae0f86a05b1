// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/diag"
)

func jump(op bytecode.Opcode) bytecode.Instruction {
	return bytecode.Instruction{Op: op, Operand: bytecode.Size(unresolved)}
}

func target(t *testing.T, ins bytecode.Instruction) uint64 {
	t.Helper()
	v, ok := ins.Operand.Size()
	require.True(t, ok, "%s has no size operand", ins)
	return v
}

func TestFixupForwardReference(t *testing.T) {
	var f fixups
	code := []bytecode.Instruction{jump(bytecode.JUMP_IF_FALSE), jump(bytecode.JUMP)}
	l := f.newLabel()

	require.NoError(t, f.reference(code, 0, l))
	require.NoError(t, f.reference(code, 1, l))
	assert.Len(t, f.pending, 2)
	assert.Equal(t, unresolved, target(t, code[0]))

	require.NoError(t, f.bind(code, l, 2))
	assert.Empty(t, f.pending)
	assert.Equal(t, uint64(2), target(t, code[0]))
	assert.Equal(t, uint64(2), target(t, code[1]))
	assert.NoError(t, f.finish(len(code)))
}

func TestFixupBackwardReference(t *testing.T) {
	var f fixups
	code := []bytecode.Instruction{{Op: bytecode.NOP}, jump(bytecode.JUMP)}
	l := f.newLabel()

	require.NoError(t, f.bind(code, l, 0))
	require.NoError(t, f.reference(code, 1, l))
	assert.Empty(t, f.pending)
	assert.Equal(t, uint64(0), target(t, code[1]))
}

func TestFixupKeepsOtherLabelsPending(t *testing.T) {
	var f fixups
	code := []bytecode.Instruction{jump(bytecode.JUMP), jump(bytecode.JUMP), jump(bytecode.JUMP)}
	a, b := f.newLabel(), f.newLabel()

	require.NoError(t, f.reference(code, 0, a))
	require.NoError(t, f.reference(code, 1, b))
	require.NoError(t, f.reference(code, 2, a))
	require.NoError(t, f.bind(code, a, 3))

	require.Len(t, f.pending, 1)
	assert.Equal(t, 1, f.pending[0].at)
	assert.Equal(t, unresolved, target(t, code[1]))

	err := f.finish(len(code))
	require.Error(t, err)
	assert.True(t, diag.IsInternal(err))
}

func TestFixupErrors(t *testing.T) {
	t.Run("bound twice", func(t *testing.T) {
		var f fixups
		l := f.newLabel()
		require.NoError(t, f.bind(nil, l, 0))
		assert.True(t, diag.IsInternal(f.bind(nil, l, 1)))
	})
	t.Run("not a jump", func(t *testing.T) {
		var f fixups
		code := []bytecode.Instruction{{Op: bytecode.POP}}
		l := f.newLabel()
		require.NoError(t, f.reference(code, 0, l))
		assert.True(t, diag.IsInternal(f.bind(code, l, 1)))
	})
	t.Run("out of range", func(t *testing.T) {
		var f fixups
		l := f.newLabel()
		require.NoError(t, f.bind(nil, l, 0))
		assert.True(t, diag.IsInternal(f.reference(nil, 5, l)))
	})
	t.Run("bound past end", func(t *testing.T) {
		var f fixups
		l := f.newLabel()
		require.NoError(t, f.bind(nil, l, 4))
		assert.True(t, diag.IsInternal(f.finish(2)))
	})
}
