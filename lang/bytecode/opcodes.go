// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package bytecode defines the stack-machine instruction set emitted by the
// MoonLisp compiler.
//
// A program is a flat slice of instructions; an instruction's address is its
// index. Every opcode declares which operand shapes it accepts and its effect
// on the operand stack, so tools can validate and simulate a program without
// knowing anything about the compiler.
package bytecode

import (
	"fmt"
	"math"
)

// Opcode is a single VM operation.
type Opcode byte

const (
	NOP           Opcode = iota // no effect
	POP                         // discard the top of stack
	PUSH_VALUE                  // push a literal; no operand pushes nil
	PUSH_VARIABLE               // push the value bound to a name
	MAKE_LIST                   // pop n values, push a list of them
	MAKE_PAIR                   // pop tail and head, push a pair
	CALL                        // pop n arguments and the callee, push the result
	JUMP                        // continue at the target index
	JUMP_IF_FALSE               // pop a value, jump if it is false
	HALT                        // stop the machine
)

var opcodeNames = [...]string{
	NOP:           "NOP",
	POP:           "POP",
	PUSH_VALUE:    "PUSH_VALUE",
	PUSH_VARIABLE: "PUSH_VARIABLE",
	MAKE_LIST:     "MAKE_LIST",
	MAKE_PAIR:     "MAKE_PAIR",
	CALL:          "CALL",
	JUMP:          "JUMP",
	JUMP_IF_FALSE: "JUMP_IF_FALSE",
	HALT:          "HALT",
}

func (op Opcode) String() string {
	if op.IsValid() {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}

// IsValid reports whether op is a known opcode.
func (op Opcode) IsValid() bool { return int(op) < len(opcodeNames) }

// IsJump reports whether op transfers control to its operand.
func (op Opcode) IsJump() bool { return op == JUMP || op == JUMP_IF_FALSE }

// Opcodes returns every opcode in numeric order.
func Opcodes() []Opcode {
	ops := make([]Opcode, len(opcodeNames))
	for i := range ops {
		ops[i] = Opcode(i)
	}
	return ops
}

// ParseOpcode looks an opcode up by name.
func ParseOpcode(name string) (Opcode, bool) {
	for i, n := range opcodeNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}

// operandKinds maps each opcode to the operand shapes it accepts.
var operandKinds = [...][]OperandKind{
	NOP:           {KindNone},
	POP:           {KindNone},
	PUSH_VALUE:    {KindText, KindFloat, KindInt, KindNone},
	PUSH_VARIABLE: {KindText},
	MAKE_LIST:     {KindSize},
	MAKE_PAIR:     {KindNone},
	CALL:          {KindSize},
	JUMP:          {KindSize},
	JUMP_IF_FALSE: {KindSize},
	HALT:          {KindNone},
}

// OperandKinds returns the operand shapes op accepts.
func (op Opcode) OperandKinds() []OperandKind {
	if !op.IsValid() {
		return nil
	}
	return operandKinds[op]
}

// Accepts reports whether op may carry an operand of kind k.
func (op Opcode) Accepts(k OperandKind) bool {
	for _, ok := range op.OperandKinds() {
		if ok == k {
			return true
		}
	}
	return false
}

// StackEffect returns how many values the instruction pops and pushes.
func (op Opcode) StackEffect(arg Operand) (pops, pushes int) {
	switch op {
	case POP, JUMP_IF_FALSE:
		return 1, 0
	case PUSH_VALUE, PUSH_VARIABLE:
		return 0, 1
	case MAKE_LIST:
		return count(arg), 1
	case MAKE_PAIR:
		return 2, 1
	case CALL:
		return count(arg) + 1, 1
	}
	return 0, 0
}

// count converts a size operand to an int, saturating so that decoded
// counts never wrap negative.
func count(arg Operand) int {
	n, _ := arg.Size()
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Instruction is one opcode with its optional operand.
type Instruction struct {
	Op      Opcode
	Operand Operand
}

// NewInstruction builds an instruction, checking the operand shape.
func NewInstruction(op Opcode, arg Operand) (Instruction, error) {
	if !op.IsValid() {
		return Instruction{}, fmt.Errorf("unknown opcode %d", byte(op))
	}
	if !op.Accepts(arg.Kind()) {
		return Instruction{}, fmt.Errorf("%s does not take a %s operand", op, arg.Kind())
	}
	return Instruction{Op: op, Operand: arg}, nil
}

func (i Instruction) String() string {
	if i.Operand.IsNone() {
		return i.Op.String()
	}
	return fmt.Sprintf("%s(%s)", i.Op, i.Operand)
}

// Program is a compiled instruction stream.
type Program struct {
	Instructions []Instruction
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.Instructions) }

func (p *Program) String() string {
	var out []byte
	for i, ins := range p.Instructions {
		out = append(out, fmt.Sprintf("%04d %s\n", i, ins)...)
	}
	return string(out)
}
