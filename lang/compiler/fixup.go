// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/diag"
)

// unresolved is the placeholder target of a jump whose label is not bound
// yet. It is never a valid index, so a missed patch fails verification.
const unresolved = ^uint64(0)

// label is a jump target whose address becomes known after the jump that
// refers to it has been emitted.
type label struct {
	id   int
	addr int // -1 until bound
}

func (l *label) bound() bool { return l.addr >= 0 }

// fixup records a jump instruction waiting for its label's address.
type fixup struct {
	at    int // index of the jump instruction
	label *label
}

// fixups is the worklist of deferred jump targets. References to an unbound
// label are queued; binding the label patches and retires every queued
// reference to it.
type fixups struct {
	labels  []*label
	pending []fixup
}

func (f *fixups) newLabel() *label {
	l := &label{id: len(f.labels), addr: -1}
	f.labels = append(f.labels, l)
	return l
}

// reference registers the jump at index at as targeting l. References to an
// already bound label are patched immediately.
func (f *fixups) reference(code []bytecode.Instruction, at int, l *label) error {
	if l.bound() {
		return patch(code, at, l.addr)
	}
	f.pending = append(f.pending, fixup{at: at, label: l})
	return nil
}

// bind fixes l at addr and resolves every pending reference to it.
func (f *fixups) bind(code []bytecode.Instruction, l *label, addr int) error {
	if l.bound() {
		return diag.Internalf("label L%d bound twice (at %d and %d)", l.id, l.addr, addr)
	}
	l.addr = addr

	remaining := f.pending[:0]
	for _, fx := range f.pending {
		if fx.label != l {
			remaining = append(remaining, fx)
			continue
		}
		if err := patch(code, fx.at, addr); err != nil {
			return err
		}
	}
	f.pending = remaining
	return nil
}

// finish reports any reference that never got resolved.
func (f *fixups) finish(codeLen int) error {
	if len(f.pending) > 0 {
		fx := f.pending[0]
		return diag.Internalf("%d unresolved jump(s), first at %d targeting unbound label L%d",
			len(f.pending), fx.at, fx.label.id)
	}
	for _, l := range f.labels {
		if l.bound() && l.addr > codeLen {
			return diag.Internalf("label L%d bound past the end of the program (%d > %d)", l.id, l.addr, codeLen)
		}
	}
	return nil
}

func patch(code []bytecode.Instruction, at, addr int) error {
	if at < 0 || at >= len(code) {
		return diag.Internalf("fixup at %d outside program of length %d", at, len(code))
	}
	if !code[at].Op.IsJump() {
		return diag.Internalf("fixup at %d targets %s, not a jump", at, code[at].Op)
	}
	code[at].Operand = bytecode.Size(uint64(addr))
	return nil
}
