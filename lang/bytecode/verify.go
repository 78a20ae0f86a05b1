// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bytecode

import "fmt"

// VerifyError describes a bytecode verification failure.
type VerifyError struct {
	Index   int
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify error at %d: %s", e.Index, e.Message)
}

// MaxResultDepth is the largest operand-stack depth allowed at HALT: a
// program leaves at most its single result behind.
const MaxResultDepth = 1

// Verify checks a program for structural safety:
//  1. Every opcode is known and carries an operand of an accepted shape
//  2. Every jump target is an index inside the program, and every
//     MAKE_LIST or CALL count is smaller than the program length
//  3. The program ends with HALT
//  4. Along every control-flow path the stack depth never goes negative,
//     paths that merge agree on the depth, and HALT is reached with at most
//     MaxResultDepth values on the stack
func Verify(p *Program) []VerifyError {
	var errs []VerifyError
	code := p.Instructions
	if len(code) == 0 {
		return append(errs, VerifyError{Index: 0, Message: "empty program"})
	}

	for i, ins := range code {
		if !ins.Op.IsValid() {
			errs = append(errs, VerifyError{Index: i, Message: fmt.Sprintf("unknown opcode: %d", byte(ins.Op))})
			continue
		}
		if !ins.Op.Accepts(ins.Operand.Kind()) {
			errs = append(errs, VerifyError{
				Index:   i,
				Message: fmt.Sprintf("%s does not take a %s operand", ins.Op, ins.Operand.Kind()),
			})
			continue
		}
		if ins.Op == MAKE_LIST || ins.Op == CALL {
			// Each instruction pushes at most one value.
			if n, _ := ins.Operand.Size(); n >= uint64(len(code)) {
				errs = append(errs, VerifyError{
					Index:   i,
					Message: fmt.Sprintf("%s count %d exceeds any reachable stack depth", ins.Op, n),
				})
			}
		}
		if ins.Op.IsJump() {
			if target, _ := ins.Operand.Size(); target >= uint64(len(code)) {
				errs = append(errs, VerifyError{
					Index:   i,
					Message: fmt.Sprintf("jump target %d out of bounds (program length %d)", target, len(code)),
				})
			}
		}
	}
	if last := code[len(code)-1]; last.Op != HALT {
		errs = append(errs, VerifyError{Index: len(code) - 1, Message: "program does not end with HALT"})
	}
	if len(errs) > 0 {
		return errs
	}
	return verifyStack(code)
}

// verifyStack simulates operand-stack depth over the control-flow graph.
func verifyStack(code []Instruction) []VerifyError {
	var errs []VerifyError
	depth := make([]int, len(code))
	for i := range depth {
		depth[i] = -1
	}
	depth[0] = 0
	work := []int{0}

	visit := func(from, to, d int) {
		switch {
		case to >= len(code):
			errs = append(errs, VerifyError{Index: from, Message: "control falls off the end of the program"})
		case depth[to] < 0:
			depth[to] = d
			work = append(work, to)
		case depth[to] != d:
			errs = append(errs, VerifyError{
				Index:   to,
				Message: fmt.Sprintf("stack depth mismatch at merge: %d vs %d", depth[to], d),
			})
		}
	}
	for len(work) > 0 && len(errs) == 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]

		ins := code[pc]
		pops, pushes := ins.Op.StackEffect(ins.Operand)
		d := depth[pc]
		if d < pops {
			errs = append(errs, VerifyError{
				Index:   pc,
				Message: fmt.Sprintf("stack underflow: %s needs %d values, depth is %d", ins.Op, pops, d),
			})
			break
		}
		d = d - pops + pushes

		switch ins.Op {
		case HALT:
			if d > MaxResultDepth {
				errs = append(errs, VerifyError{
					Index:   pc,
					Message: fmt.Sprintf("%d values left on the stack at HALT", d),
				})
			}
		case JUMP:
			target, _ := ins.Operand.Size()
			visit(pc, int(target), d)
		case JUMP_IF_FALSE:
			target, _ := ins.Operand.Size()
			visit(pc, int(target), d)
			visit(pc, pc+1, d)
		default:
			visit(pc, pc+1, d)
		}
	}
	return errs
}

// StackDepths returns the operand-stack depth on entry to each instruction,
// or -1 for unreachable ones. It assumes the program passed Verify.
func StackDepths(p *Program) []int {
	code := p.Instructions
	depth := make([]int, len(code))
	for i := range depth {
		depth[i] = -1
	}
	if len(code) == 0 {
		return depth
	}
	depth[0] = 0
	work := []int{0}
	for len(work) > 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]
		ins := code[pc]
		pops, pushes := ins.Op.StackEffect(ins.Operand)
		d := depth[pc] - pops + pushes

		var next []int
		switch ins.Op {
		case HALT:
		case JUMP:
			t, _ := ins.Operand.Size()
			next = []int{int(t)}
		case JUMP_IF_FALSE:
			t, _ := ins.Operand.Size()
			next = []int{int(t), pc + 1}
		default:
			next = []int{pc + 1}
		}
		for _, n := range next {
			if n < len(code) && depth[n] < 0 {
				depth[n] = d
				work = append(work, n)
			}
		}
	}
	return depth
}
