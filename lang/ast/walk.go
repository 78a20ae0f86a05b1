// Copyright 2024 The go-moonlisp Authors
// This file is part of the go-moonlisp library.
//
// The go-moonlisp library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package ast

import "fmt"

// Visitor is called for each node in depth-first pre-order together with its
// nesting depth. Returning false skips the node's children.
type Visitor func(n Node, depth int) bool

// Walk traverses the tree rooted at n.
func Walk(n Node, visit Visitor) {
	walk(n, 0, visit)
}

func walk(n Node, depth int, visit Visitor) {
	if !visit(n, depth) {
		return
	}
	switch n := n.(type) {
	case *List:
		for _, e := range n.Elements {
			walk(e, depth+1, visit)
		}
	case *Pair:
		walk(n.Elements[0], depth+1, visit)
		walk(n.Elements[1], depth+1, visit)
	}
}

// Depth returns the maximum nesting depth of the tree rooted at n. A lone atom
// has depth zero.
func Depth(n Node) int {
	max := 0
	Walk(n, func(_ Node, d int) bool {
		if d > max {
			max = d
		}
		return true
	})
	return max
}

// Equal reports whether a and b have the same shape and values. Positions are
// ignored.
func Equal(a, b Node) bool {
	switch a := a.(type) {
	case *Atom:
		b, ok := b.(*Atom)
		return ok && a.Type == b.Type && a.Value == b.Value
	case *List:
		b, ok := b.(*List)
		if !ok || len(a.Elements) != len(b.Elements) {
			return false
		}
		for i := range a.Elements {
			if !Equal(a.Elements[i], b.Elements[i]) {
				return false
			}
		}
		return true
	case *Pair:
		b, ok := b.(*Pair)
		return ok && Equal(a.Elements[0], b.Elements[0]) && Equal(a.Elements[1], b.Elements[1])
	case nil:
		return b == nil
	}
	panic(fmt.Sprintf("ast: unknown node type %T", a))
}
