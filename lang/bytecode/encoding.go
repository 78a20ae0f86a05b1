// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/golang/snappy"
)

// Wire format, before snappy block compression:
//
//	magic "MLBC" | version:8 | count:uvarint | instruction*
//	instruction := opcode:8 | kind:8 | payload
//
// The payload depends on kind: none is empty, text is a uvarint length
// followed by the bytes, float is 8 little-endian bytes of IEEE-754 bits,
// int is a zigzag varint and size is a uvarint.
const (
	magic         = "MLBC"
	formatVersion = 1
)

var (
	errBadMagic = errors.New("bytecode: not a MoonLisp program")
	errTrailing = errors.New("bytecode: trailing data after last instruction")
)

// Marshal encodes and compresses a program.
func Marshal(p *Program) []byte {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)

	var scratch [binary.MaxVarintLen64]byte
	putUvarint := func(v uint64) {
		n := binary.PutUvarint(scratch[:], v)
		buf.Write(scratch[:n])
	}
	putUvarint(uint64(len(p.Instructions)))

	for _, ins := range p.Instructions {
		buf.WriteByte(byte(ins.Op))
		buf.WriteByte(byte(ins.Operand.kind))
		switch ins.Operand.kind {
		case KindText:
			putUvarint(uint64(len(ins.Operand.text)))
			buf.WriteString(ins.Operand.text)
		case KindFloat:
			binary.LittleEndian.PutUint64(scratch[:8], math.Float64bits(ins.Operand.num))
			buf.Write(scratch[:8])
		case KindInt:
			n := binary.PutVarint(scratch[:], ins.Operand.i)
			buf.Write(scratch[:n])
		case KindSize:
			putUvarint(ins.Operand.size)
		}
	}
	return snappy.Encode(nil, buf.Bytes())
}

// Unmarshal decompresses and decodes a program produced by Marshal. Every
// instruction is checked with NewInstruction.
func Unmarshal(data []byte) (*Program, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	if len(raw) < len(magic)+1 || string(raw[:len(magic)]) != magic {
		return nil, errBadMagic
	}
	if v := raw[len(magic)]; v != formatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d", v)
	}
	r := bytes.NewReader(raw[len(magic)+1:])

	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: reading instruction count: %w", err)
	}
	// Every instruction takes at least two bytes.
	if count > uint64(r.Len())/2 {
		return nil, fmt.Errorf("bytecode: instruction count %d exceeds input size", count)
	}
	prog := &Program{Instructions: make([]Instruction, 0, count)}
	for i := uint64(0); i < count; i++ {
		ins, err := readInstruction(r)
		if err != nil {
			return nil, fmt.Errorf("bytecode: instruction %d: %w", i, err)
		}
		prog.Instructions = append(prog.Instructions, ins)
	}
	if r.Len() != 0 {
		return nil, errTrailing
	}
	return prog, nil
}

func readInstruction(r *bytes.Reader) (Instruction, error) {
	op, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	kind, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	var arg Operand
	switch OperandKind(kind) {
	case KindNone:
	case KindText:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return Instruction{}, err
		}
		if n > uint64(r.Len()) {
			return Instruction{}, fmt.Errorf("text length %d exceeds input", n)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return Instruction{}, err
		}
		arg = Text(string(b))
	case KindFloat:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Instruction{}, err
		}
		arg = Float(math.Float64frombits(binary.LittleEndian.Uint64(b[:])))
	case KindInt:
		v, err := binary.ReadVarint(r)
		if err != nil {
			return Instruction{}, err
		}
		arg = Int(v)
	case KindSize:
		v, err := binary.ReadUvarint(r)
		if err != nil {
			return Instruction{}, err
		}
		arg = Size(v)
	default:
		return Instruction{}, fmt.Errorf("unknown operand kind %d", kind)
	}
	return NewInstruction(Opcode(op), arg)
}
