// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package parser

import (
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	fuzz "github.com/google/gofuzz"

	"github.com/moonlisp/go-moonlisp/lang/ast"
	"github.com/moonlisp/go-moonlisp/lang/token"
)

// randomProgram is filled in by the fuzzer with a list of top-level forms.
type randomProgram struct {
	root *ast.List
}

const (
	nameStart = "abcdefghijklmnopqrstuvwxyzABCXYZ*<>=!?_$%&^~/:@"
	nameRest  = nameStart + "0123456789+-."
)

func randomName(c fuzz.Continue) string {
	b := []byte{nameStart[c.Intn(len(nameStart))]}
	for n := c.Intn(6); n > 0; n-- {
		b = append(b, nameRest[c.Intn(len(nameRest))])
	}
	return string(b)
}

func randomAtom(c fuzz.Continue) *ast.Atom {
	switch c.Intn(4) {
	case 0:
		return &ast.Atom{Type: ast.NUMBER, Value: strconv.FormatInt(c.Int63n(2000000)-1000000, 10)}
	case 1:
		sign := ""
		if c.Intn(2) == 0 {
			sign = "-"
		}
		return &ast.Atom{Type: ast.FLOAT, Value: fmt.Sprintf("%s%d.%d", sign, c.Intn(1000), c.Intn(1000))}
	case 2:
		return &ast.Atom{Type: ast.STRING, Value: c.RandString()}
	}
	return &ast.Atom{Type: ast.NAME, Value: randomName(c)}
}

func randomNode(c fuzz.Continue, depth int) ast.Node {
	if depth >= 5 || c.Intn(3) == 0 {
		return randomAtom(c)
	}
	if c.Intn(4) == 0 {
		return ast.NewPair(randomNode(c, depth+1), randomNode(c, depth+1), token.Position{})
	}
	elems := make([]ast.Node, c.Intn(5))
	for i := range elems {
		elems[i] = randomNode(c, depth+1)
	}
	return &ast.List{Elements: elems}
}

func newTreeFuzzer(seed int64) *fuzz.Fuzzer {
	return fuzz.New().NilChance(0).RandSource(rand.NewSource(seed)).Funcs(
		func(p *randomProgram, c fuzz.Continue) {
			p.root = &ast.List{}
			for n := 1 + c.Intn(4); n > 0; n-- {
				p.root.Elements = append(p.root.Elements, randomNode(c, 0))
			}
		},
	)
}

var treeCmpOpts = []cmp.Option{
	cmpopts.IgnoreTypes(token.Position{}),
	cmpopts.EquateEmpty(),
}

func TestRoundTrip(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		var prog randomProgram
		newTreeFuzzer(seed).Fuzz(&prog)

		src := ast.Program(prog.root)
		got, err := ParseString("roundtrip.ml", src)
		if err != nil {
			t.Fatalf("seed %d: reparse failed: %v\nsource:\n%s", seed, err, src)
		}
		if diff := cmp.Diff(prog.root.Elements, got.Elements, treeCmpOpts...); diff != "" {
			t.Fatalf("seed %d: round trip mismatch (-want +got):\n%s\nsource:\n%s", seed, diff, src)
		}
		if again := ast.Program(got); again != src {
			t.Fatalf("seed %d: serialisation not stable:\nfirst:  %s\nsecond: %s", seed, src, again)
		}
	}
}

func TestRoundTripParsedSource(t *testing.T) {
	sources := []string{
		`(define (fact n) (if (<= n 1) 1 (* n (fact (- n 1)))))`,
		`[a . [b . ()]] "tab\there" -0.5 (cond ((= x 1) "one") (else "many"))`,
		`(quote (1 2.5 "three" four))`,
	}
	for _, src := range sources {
		first := mustParse(t, src)
		second := mustParse(t, ast.Program(first))
		if diff := cmp.Diff(first.Elements, second.Elements, treeCmpOpts...); diff != "" {
			t.Errorf("round trip of %q (-first +second):\n%s", src, diff)
		}
	}
}
