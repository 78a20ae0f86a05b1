// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bytecode

import (
	"math"
	"testing"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ins(op Opcode, arg Operand) Instruction { return Instruction{Op: op, Operand: arg} }

func prog(code ...Instruction) *Program { return &Program{Instructions: code} }

func TestOperandShapes(t *testing.T) {
	valid := []struct {
		op  Opcode
		arg Operand
	}{
		{NOP, NoOperand()},
		{POP, NoOperand()},
		{PUSH_VALUE, Int(1)},
		{PUSH_VALUE, Float(2.5)},
		{PUSH_VALUE, Text("s")},
		{PUSH_VALUE, NoOperand()},
		{PUSH_VARIABLE, Text("x")},
		{MAKE_LIST, Size(3)},
		{MAKE_PAIR, NoOperand()},
		{CALL, Size(0)},
		{JUMP, Size(7)},
		{JUMP_IF_FALSE, Size(7)},
		{HALT, NoOperand()},
	}
	for _, c := range valid {
		_, err := NewInstruction(c.op, c.arg)
		assert.NoError(t, err, "%s with %s operand", c.op, c.arg.Kind())
	}

	invalid := []struct {
		op  Opcode
		arg Operand
	}{
		{PUSH_VARIABLE, Int(1)},
		{PUSH_VARIABLE, NoOperand()},
		{PUSH_VALUE, Size(1)},
		{MAKE_LIST, Int(3)},
		{CALL, NoOperand()},
		{JUMP, Int(-1)},
		{HALT, Size(0)},
		{Opcode(200), NoOperand()},
	}
	for _, c := range invalid {
		_, err := NewInstruction(c.op, c.arg)
		assert.Error(t, err, "%s with %s operand", c.op, c.arg.Kind())
	}
}

func TestOperandAccessors(t *testing.T) {
	s, ok := Text("name").Text()
	assert.True(t, ok)
	assert.Equal(t, "name", s)

	_, ok = Text("name").Int()
	assert.False(t, ok)

	n, ok := Size(4).Size()
	assert.True(t, ok)
	assert.Equal(t, uint64(4), n)

	assert.True(t, NoOperand().IsNone())
	assert.Nil(t, NoOperand().Value())
	assert.Equal(t, int64(-3), Int(-3).Value())
	assert.Equal(t, 0.5, Float(0.5).Value())
}

func TestInstructionString(t *testing.T) {
	assert.Equal(t, `PUSH_VARIABLE("+")`, ins(PUSH_VARIABLE, Text("+")).String())
	assert.Equal(t, "PUSH_VALUE(1)", ins(PUSH_VALUE, Int(1)).String())
	assert.Equal(t, "PUSH_VALUE(2.5)", ins(PUSH_VALUE, Float(2.5)).String())
	assert.Equal(t, "CALL(2)", ins(CALL, Size(2)).String())
	assert.Equal(t, "MAKE_PAIR", ins(MAKE_PAIR, NoOperand()).String())
	assert.Equal(t, "Opcode(99)", Opcode(99).String())
}

func TestOpcodeTable(t *testing.T) {
	ops := Opcodes()
	require.Len(t, ops, 10)
	for _, op := range ops {
		assert.NotEmpty(t, op.OperandKinds(), "%s has no operand kinds", op)
		back, ok := ParseOpcode(op.String())
		assert.True(t, ok)
		assert.Equal(t, op, back)
	}
	_, ok := ParseOpcode("LOAD")
	assert.False(t, ok)
}

func TestStackEffect(t *testing.T) {
	cases := []struct {
		ins          Instruction
		pops, pushes int
	}{
		{ins(NOP, NoOperand()), 0, 0},
		{ins(POP, NoOperand()), 1, 0},
		{ins(PUSH_VALUE, Int(1)), 0, 1},
		{ins(PUSH_VARIABLE, Text("x")), 0, 1},
		{ins(MAKE_LIST, Size(3)), 3, 1},
		{ins(MAKE_PAIR, NoOperand()), 2, 1},
		{ins(CALL, Size(2)), 3, 1},
		{ins(JUMP, Size(0)), 0, 0},
		{ins(JUMP_IF_FALSE, Size(0)), 1, 0},
		{ins(HALT, NoOperand()), 0, 0},
		{ins(MAKE_LIST, Size(math.MaxUint64)), math.MaxInt32, 1},
		{ins(CALL, Size(1 << 40)), math.MaxInt32 + 1, 1},
	}
	for _, c := range cases {
		pops, pushes := c.ins.Op.StackEffect(c.ins.Operand)
		assert.Equal(t, c.pops, pops, "%s pops", c.ins)
		assert.Equal(t, c.pushes, pushes, "%s pushes", c.ins)
	}
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

// conditional is (if c 1 2) compiled by hand.
func conditional() *Program {
	return prog(
		ins(PUSH_VARIABLE, Text("c")),
		ins(JUMP_IF_FALSE, Size(4)),
		ins(PUSH_VALUE, Int(1)),
		ins(JUMP, Size(5)),
		ins(PUSH_VALUE, Int(2)),
		ins(HALT, NoOperand()),
	)
}

func TestVerifyValid(t *testing.T) {
	assert.Empty(t, Verify(conditional()))
	assert.Empty(t, Verify(prog(ins(HALT, NoOperand()))))
	assert.Equal(t, []int{0, 1, 0, 1, 0, 1}, StackDepths(conditional()))
}

func TestVerifyRejects(t *testing.T) {
	cases := []struct {
		name string
		prog *Program
		at   int
	}{
		{"empty", prog(), 0},
		{"no halt", prog(ins(PUSH_VALUE, Int(1))), 0},
		{"jump out of bounds", prog(ins(JUMP, Size(9)), ins(HALT, NoOperand())), 0},
		{"bad operand", prog(ins(CALL, Text("f")), ins(HALT, NoOperand())), 0},
		{"unknown opcode", prog(ins(Opcode(77), NoOperand()), ins(HALT, NoOperand())), 0},
		{"underflow", prog(ins(POP, NoOperand()), ins(HALT, NoOperand())), 0},
		{"call underflow", prog(ins(PUSH_VARIABLE, Text("f")), ins(CALL, Size(1)), ins(HALT, NoOperand())), 1},
		{"huge list count", prog(ins(MAKE_LIST, Size(math.MaxUint64)), ins(HALT, NoOperand())), 0},
		{"huge call count", prog(
			ins(PUSH_VARIABLE, Text("f")),
			ins(CALL, Size(math.MaxUint64)),
			ins(HALT, NoOperand()),
		), 1},
		{"list count past depth", prog(
			ins(PUSH_VALUE, Int(1)),
			ins(MAKE_LIST, Size(2)),
			ins(HALT, NoOperand()),
		), 1},
		{"leftover values", prog(
			ins(PUSH_VALUE, Int(1)),
			ins(PUSH_VALUE, Int(2)),
			ins(HALT, NoOperand()),
		), 2},
		{"merge mismatch", prog(
			ins(PUSH_VARIABLE, Text("c")),
			ins(JUMP_IF_FALSE, Size(3)),
			ins(PUSH_VALUE, Int(1)),
			ins(HALT, NoOperand()),
		), 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			errs := Verify(c.prog)
			require.NotEmpty(t, errs)
			assert.Equal(t, c.at, errs[0].Index, "first error: %v", errs[0].Message)
		})
	}
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func TestMarshalRoundTrip(t *testing.T) {
	p := prog(
		ins(PUSH_VARIABLE, Text("λ-name")),
		ins(PUSH_VALUE, Int(math.MinInt64)),
		ins(PUSH_VALUE, Float(-0.125)),
		ins(PUSH_VALUE, Text("")),
		ins(PUSH_VALUE, NoOperand()),
		ins(MAKE_LIST, Size(4)),
		ins(CALL, Size(1)),
		ins(JUMP_IF_FALSE, Size(1<<40)),
		ins(HALT, NoOperand()),
	)
	got, err := Unmarshal(Marshal(p))
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestUnmarshalRejectsCorruptInput(t *testing.T) {
	good := Marshal(conditional())
	raw, err := snappy.Decode(nil, good)
	require.NoError(t, err)

	cases := map[string][]byte{
		"not snappy":     []byte("garbage"),
		"bad magic":      snappy.Encode(nil, append([]byte("XXXX"), raw[4:]...)),
		"bad version":    snappy.Encode(nil, append(append([]byte{}, raw[:4]...), append([]byte{9}, raw[5:]...)...)),
		"truncated":      snappy.Encode(nil, raw[:len(raw)-2]),
		"trailing bytes": snappy.Encode(nil, append(append([]byte{}, raw...), 0)),
		"bad shape":      snappy.Encode(nil, []byte{'M', 'L', 'B', 'C', 1, 1, byte(CALL), byte(KindNone)}),
	}
	for name, data := range cases {
		_, err := Unmarshal(data)
		assert.Error(t, err, name)
	}
}
