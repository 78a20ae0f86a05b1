// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bytecode

import (
	"fmt"
	"strconv"
)

// OperandKind tags the payload of an Operand.
type OperandKind byte

const (
	KindNone  OperandKind = iota // absent
	KindText                     // string literal or variable name
	KindFloat                    // float64 literal
	KindInt                      // int64 literal
	KindSize                     // element/argument count or jump target
)

var kindNames = [...]string{
	KindNone:  "none",
	KindText:  "text",
	KindFloat: "float",
	KindInt:   "int",
	KindSize:  "size",
}

func (k OperandKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("OperandKind(%d)", byte(k))
}

// Operand is an optional instruction argument. The zero value is the absent
// operand. Only the field selected by kind is meaningful.
type Operand struct {
	kind OperandKind
	text string
	num  float64
	i    int64
	size uint64
}

// NoOperand returns the absent operand.
func NoOperand() Operand { return Operand{} }

// Text returns a text operand.
func Text(s string) Operand { return Operand{kind: KindText, text: s} }

// Float returns a floating-point operand.
func Float(f float64) Operand { return Operand{kind: KindFloat, num: f} }

// Int returns a signed integer operand.
func Int(i int64) Operand { return Operand{kind: KindInt, i: i} }

// Size returns an unsigned count or address operand.
func Size(n uint64) Operand { return Operand{kind: KindSize, size: n} }

// Kind returns the operand's tag.
func (o Operand) Kind() OperandKind { return o.kind }

// IsNone reports whether the operand is absent.
func (o Operand) IsNone() bool { return o.kind == KindNone }

// Text returns the text payload.
func (o Operand) Text() (string, bool) { return o.text, o.kind == KindText }

// Float returns the floating-point payload.
func (o Operand) Float() (float64, bool) { return o.num, o.kind == KindFloat }

// Int returns the signed integer payload.
func (o Operand) Int() (int64, bool) { return o.i, o.kind == KindInt }

// Size returns the unsigned payload.
func (o Operand) Size() (uint64, bool) { return o.size, o.kind == KindSize }

// Value returns the payload as an untyped Go value: nil, string, float64,
// int64 or uint64.
func (o Operand) Value() interface{} {
	switch o.kind {
	case KindText:
		return o.text
	case KindFloat:
		return o.num
	case KindInt:
		return o.i
	case KindSize:
		return o.size
	}
	return nil
}

func (o Operand) String() string {
	switch o.kind {
	case KindText:
		return strconv.Quote(o.text)
	case KindFloat:
		return strconv.FormatFloat(o.num, 'g', -1, 64)
	case KindInt:
		return strconv.FormatInt(o.i, 10)
	case KindSize:
		return strconv.FormatUint(o.size, 10)
	}
	return "none"
}
