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
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gopkg.in/urfave/cli.v1"

	"github.com/moonlisp/go-moonlisp"
	"github.com/moonlisp/go-moonlisp/cache"
	"github.com/moonlisp/go-moonlisp/lang/ast"
	"github.com/moonlisp/go-moonlisp/lang/bytecode"
	"github.com/moonlisp/go-moonlisp/lang/diag"
	"github.com/moonlisp/go-moonlisp/lang/token"
	"github.com/moonlisp/go-moonlisp/log"
)

var (
	compileCommand = cli.Command{
		Action:    compileFiles,
		Name:      "compile",
		Usage:     "Compile MoonLisp source files",
		ArgsUsage: "[<file> ...]",
		Flags:     append(append([]cli.Flag{outputFlag}, outputFlags...), compilerFlags...),
		Category:  "COMPILER COMMANDS",
		Description: `
Compiles each file and prints the requested stage. Without file arguments the
source is read from standard input up to a line consisting of EOF.`,
	}
	disasmCommand = cli.Command{
		Action:    disassemble,
		Name:      "disasm",
		Usage:     "List encoded MoonLisp programs",
		ArgsUsage: "<file> [<file> ...]",
		Flags:     []cli.Flag{formatFlag},
		Category:  "COMPILER COMMANDS",
	}
)

// unit is one source text moving through the pipeline.
type unit struct {
	name   string
	src    string
	tokens []token.Token
	root   *ast.List
	prog   *bytecode.Program
	err    error
}

const (
	emitTokens   = "tokens"
	emitAST      = "ast"
	emitBytecode = "bytecode"
)

// builder runs compilations for one command invocation.
type builder struct {
	cfg   moonConfig
	emit  string
	cache *cache.Cache
}

func newBuilder(cfg moonConfig, emit string) (*builder, error) {
	switch emit {
	case emitTokens, emitAST, emitBytecode:
	default:
		return nil, fmt.Errorf("unknown emit stage %q (want %s, %s or %s)", emit, emitTokens, emitAST, emitBytecode)
	}
	b := &builder{cfg: cfg, emit: emit}
	if emit == emitBytecode {
		c, err := cache.New(cfg.Cache, func(src string) (*bytecode.Program, error) {
			return moonlisp.Compile("", src, &b.cfg.Compiler)
		})
		if err != nil {
			return nil, err
		}
		b.cache = c
	}
	return b, nil
}

func (b *builder) close() {
	if b.cache == nil {
		return
	}
	s := b.cache.Stats()
	log.Debug("Compile cache", "hits", s.Hits, "diskhits", s.DiskHits, "misses", s.Misses, "failures", s.Failures)
	if err := b.cache.Close(); err != nil {
		log.Warn("Failed to close compile cache", "err", err)
	}
}

// build runs the pipeline up to the requested stage and records the outcome
// in u.
func (b *builder) build(u *unit) {
	switch b.emit {
	case emitTokens:
		u.tokens, u.err = moonlisp.Tokenize(u.name, u.src, &b.cfg.Compiler)
	case emitAST:
		u.root, u.err = moonlisp.Parse(u.name, u.src, &b.cfg.Compiler)
	default:
		u.prog, u.err = b.cache.Get(u.src)
		u.err = diag.WithFile(u.err, u.name)
	}
}

// report prints a unit's result to stdout, or its diagnostic to stderr. It
// returns false if the unit failed.
func (b *builder) report(stdout, stderr io.Writer, u *unit, format string, colored bool) bool {
	if u.err != nil {
		fmt.Fprintln(stderr, diag.Render(u.err, u.src, colored))
		return false
	}
	switch b.emit {
	case emitTokens:
		printTokens(stdout, u.tokens, format)
	case emitAST:
		printAST(stdout, u.root)
	default:
		printProgram(stdout, u.prog, format)
	}
	return true
}

// buildAll loads and builds every file concurrently. Read failures abort the
// whole build; compile failures are recorded per unit.
func (b *builder) buildAll(files []string) ([]*unit, error) {
	units := make([]*unit, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			src, err := readSource(file)
			if err != nil {
				return err
			}
			u := &unit{name: file, src: src}
			b.build(u)
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}

func compileFiles(ctx *cli.Context) error {
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
	defer b.close()

	var units []*unit
	if ctx.NArg() == 0 {
		src, err := readInteractive(os.Stdin)
		if err != nil {
			return err
		}
		u := &unit{name: stdinName, src: src}
		b.build(u)
		units = []*unit{u}
	} else if units, err = b.buildAll(ctx.Args()); err != nil {
		return err
	}

	if out := ctx.String(outputFlag.Name); out != "" {
		return writeProgram(out, b, units)
	}
	colored := useColor(ctx, os.Stderr)
	failed := 0
	for _, u := range units {
		if len(units) > 1 {
			fmt.Printf("== %s ==\n", u.name)
		}
		if !b.report(os.Stdout, os.Stderr, u, format, colored) {
			failed++
		}
	}
	if failed > 0 {
		return cli.NewExitError("", 1)
	}
	return nil
}

// writeProgram stores the encoded program of a single unit.
func writeProgram(path string, b *builder, units []*unit) error {
	if b.emit != emitBytecode || len(units) != 1 {
		return fmt.Errorf("-o needs exactly one input and --emit %s", emitBytecode)
	}
	u := units[0]
	if u.err != nil {
		fmt.Fprintln(os.Stderr, diag.Render(u.err, u.src, false))
		return cli.NewExitError("", 1)
	}
	if err := os.WriteFile(path, bytecode.Marshal(u.prog), 0644); err != nil {
		return err
	}
	log.Info("Wrote program", "file", path, "instructions", u.prog.Len())
	return nil
}

func disassemble(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("disasm needs at least one file")
	}
	format := ctx.String(formatFlag.Name)
	if err := checkFormat(format); err != nil {
		return err
	}
	for _, file := range ctx.Args() {
		data, err := readFile(file)
		if err != nil {
			return err
		}
		prog, err := bytecode.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if errs := bytecode.Verify(prog); len(errs) > 0 {
			return fmt.Errorf("%s: %v", file, errs[0].Error())
		}
		if ctx.NArg() > 1 {
			fmt.Printf("== %s ==\n", file)
		}
		printProgram(os.Stdout, prog, format)
	}
	return nil
}
