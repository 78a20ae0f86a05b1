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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/moonlisp/go-moonlisp"
	"github.com/moonlisp/go-moonlisp/lang/diag"
)

const (
	replName     = "<repl>"
	promptMain   = "moon> "
	promptCont   = "....  "
	historyFile  = ".moonc_history"
	replHelpText = `:emit tokens|ast|bytecode  switch the printed stage
:quit                      leave`
)

var replCommand = cli.Command{
	Action:    repl,
	Name:      "repl",
	Usage:     "Compile forms interactively",
	ArgsUsage: "",
	Flags:     append([]cli.Flag{emitFlag, formatFlag}, compilerFlags...),
	Category:  "COMPILER COMMANDS",
	Description: `
Reads forms from the terminal and prints their compiled form. Input that ends
inside a string or group continues on the next line.`,
}

func repl(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	format := ctx.String(formatFlag.Name)
	if err := checkFormat(format); err != nil {
		return err
	}
	b, err := newBuilder(cfg, ctx.String(emitFlag.Name))
	if err != nil {
		return err
	}
	defer func() { b.close() }()

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	colored := useColor(ctx, os.Stderr)
	fmt.Printf("MoonLisp %s, type :help for commands\n", version)
	for {
		src, ok := readForm(ln, cfg.Compiler)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			fields := strings.Fields(trimmed)
			switch fields[0] {
			case ":quit", ":q":
				return nil
			case ":help":
				fmt.Println(replHelpText)
			case ":emit":
				if len(fields) != 2 {
					fmt.Println(replHelpText)
					continue
				}
				next, err := newBuilder(cfg, fields[1])
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				b.close()
				b = next
			default:
				fmt.Printf("unknown command %s, type :help\n", fields[0])
			}
			continue
		}

		u := &unit{name: replName, src: src}
		b.build(u)
		b.report(os.Stdout, os.Stderr, u, format, colored)
	}
}

// readForm prompts until the input no longer ends inside a string or group.
// It returns false when the user closes the input.
func readForm(ln *liner.State, cfg moonlisp.Config) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, err := moonlisp.Parse(replName, src, &cfg); err == nil || !diag.IsTruncated(err) {
			return src, true
		}
	}
}
