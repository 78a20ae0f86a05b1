// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package server

import (
	"errors"

	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/diag"
)

// Response answers one compile request. Exactly one of Instructions and
// Error is set.
type Response struct {
	ID           string        `json:"id"`
	Instructions []Instruction `json:"instructions,omitempty"`
	Error        *ErrorInfo    `json:"error,omitempty"`
}

// Instruction is the JSON form of a bytecode instruction. Operand is null
// when absent.
type Instruction struct {
	Op      string      `json:"op"`
	Operand interface{} `json:"operand"`
}

// ErrorInfo is the JSON form of a compile error.
type ErrorInfo struct {
	Stage   string `json:"stage"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// NewInstructions converts a program for the wire.
func NewInstructions(p *bytecode.Program) []Instruction {
	out := make([]Instruction, len(p.Instructions))
	for i, ins := range p.Instructions {
		out[i] = Instruction{Op: ins.Op.String(), Operand: ins.Operand.Value()}
	}
	return out
}

// NewErrorInfo converts a compile error for the wire.
func NewErrorInfo(err error) *ErrorInfo {
	info := &ErrorInfo{Stage: diag.StageOf(err).String(), Message: err.Error()}
	var de diag.Error
	if errors.As(err, &de) {
		pos := de.Position()
		info.Line, info.Column = pos.Line, pos.Column
	}
	return info
}

// OpcodeInfo describes one opcode.
type OpcodeInfo struct {
	Name     string   `json:"name"`
	Operands []string `json:"operands"`
	Pops     int      `json:"pops"`
	Pushes   int      `json:"pushes"`
	Counted  bool     `json:"counted"` // pops the operand's count on top of Pops
}

// OpcodeTable describes the whole instruction set.
func OpcodeTable() []OpcodeInfo {
	var table []OpcodeInfo
	for _, op := range bytecode.Opcodes() {
		info := OpcodeInfo{Name: op.String()}
		for _, k := range op.OperandKinds() {
			info.Operands = append(info.Operands, k.String())
		}
		info.Pops, info.Pushes = op.StackEffect(bytecode.Size(0))
		basePops, _ := op.StackEffect(bytecode.Size(1))
		info.Counted = basePops != info.Pops
		table = append(table, info)
	}
	return table
}
