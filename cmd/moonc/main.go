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

// moonc is the MoonLisp compiler.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"

	"github.com/moonlisp/go-moonlisp/log"
)

const clientIdentifier = "moonc"

var (
	version = "0.1.0"
	app     = newApp()
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = clientIdentifier
	app.Usage = "the MoonLisp compiler"
	app.Version = version
	app.Flags = []cli.Flag{
		configFileFlag,
		verbosityFlag,
		noColorFlag,
	}
	app.Commands = []cli.Command{
		compileCommand,
		disasmCommand,
		replCommand,
		watchCommand,
		serveCommand,
		dumpConfigCommand,
	}
	app.Before = setupLogging
	return app
}

// useColor reports whether output to f should be colored.
func useColor(ctx *cli.Context, f *os.File) bool {
	if ctx.GlobalBool(noColorFlag.Name) || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func setupLogging(ctx *cli.Context) error {
	lvl := log.Lvl(ctx.GlobalInt(verbosityFlag.Name))
	if lvl < log.LvlCrit || lvl > log.LvlTrace {
		return fmt.Errorf("invalid verbosity %d", lvl)
	}
	color := useColor(ctx, os.Stderr)
	output := colorable.NewColorableStderr()
	if !color {
		output = colorable.NewNonColorable(os.Stderr)
	}
	handler := log.StreamHandler(output, log.TerminalFormat(color))
	log.Root().SetHandler(log.LvlFilterHandler(lvl, handler))
	return nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		if _, ok := err.(cli.ExitCoder); !ok {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
