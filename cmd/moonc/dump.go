// Copyright 2024 The go-moonlisp Authors
// This file is part of go-moonlisp.
//
// go-moonlisp is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-moonlisp is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-moonlisp. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/moonlisp/go-moonlisp/lang/ast"
	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/token"
)

const (
	formatTable = "table"
	formatPlain = "plain"
)

func checkFormat(format string) error {
	if format != formatTable && format != formatPlain {
		return fmt.Errorf("unknown listing format %q (want %s or %s)", format, formatTable, formatPlain)
	}
	return nil
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetHeaderLine(false)
	return table
}

// printTokens lists a token stream.
func printTokens(w io.Writer, toks []token.Token, format string) {
	if format == formatPlain {
		for _, tok := range toks {
			fmt.Fprintf(w, "%s\t%s\t%q\n", tok.Pos, tok.Kind, tok.Text)
		}
		return
	}
	table := newTable(w, "POS", "KIND", "TEXT")
	for _, tok := range toks {
		table.Append([]string{tok.Pos.String(), tok.Kind.String(), strconv.Quote(tok.Text)})
	}
	table.Render()
}

// printAST dumps every top-level form. Atoms print as "TYPE : value", lists
// are wrapped in parentheses and pairs in brackets, two spaces per level.
func printAST(w io.Writer, root *ast.List) {
	for _, form := range root.Elements {
		printNode(w, form, 0)
	}
}

func printNode(w io.Writer, n ast.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n := n.(type) {
	case *ast.Atom:
		fmt.Fprintf(w, "%s%s : %s\n", indent, n.Type, n.Value)
	case *ast.List:
		fmt.Fprintf(w, "%s(\n", indent)
		for _, e := range n.Elements {
			printNode(w, e, depth+1)
		}
		fmt.Fprintf(w, "%s)\n", indent)
	case *ast.Pair:
		fmt.Fprintf(w, "%s[\n", indent)
		for _, e := range n.Elements {
			printNode(w, e, depth+1)
		}
		fmt.Fprintf(w, "%s]\n", indent)
	}
}

// printProgram lists a program. The table form adds the operand-stack depth
// on entry to each instruction.
func printProgram(w io.Writer, prog *bytecode.Program, format string) {
	if format == formatPlain {
		for i, ins := range prog.Instructions {
			fmt.Fprintf(w, "%d : %s Args: %s\n", i, ins.Op, plainOperand(ins.Operand))
		}
		return
	}
	depths := bytecode.StackDepths(prog)
	table := newTable(w, "#", "OPCODE", "OPERAND", "STACK")
	for i, ins := range prog.Instructions {
		operand, stack := "", "-"
		if !ins.Operand.IsNone() {
			operand = ins.Operand.String()
		}
		if depths[i] >= 0 {
			stack = strconv.Itoa(depths[i])
		}
		table.Append([]string{strconv.Itoa(i), ins.Op.String(), operand, stack})
	}
	table.Render()
}

// plainOperand renders an operand for the plain listing: text unquoted,
// floats with six decimals and "nullptr" when absent.
func plainOperand(arg bytecode.Operand) string {
	switch arg.Kind() {
	case bytecode.KindText:
		s, _ := arg.Text()
		return s
	case bytecode.KindFloat:
		f, _ := arg.Float()
		return strconv.FormatFloat(f, 'f', 6, 64)
	case bytecode.KindInt:
		i, _ := arg.Int()
		return strconv.FormatInt(i, 10)
	case bytecode.KindSize:
		n, _ := arg.Size()
		return strconv.FormatUint(n, 10)
	}
	return "nullptr"
}
