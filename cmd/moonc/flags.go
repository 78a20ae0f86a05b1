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
	"strings"

	"gopkg.in/urfave/cli.v1"
)

var (
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 2,
	}
	noColorFlag = cli.BoolFlag{
		Name:  "nocolor",
		Usage: "Disable colored diagnostics and logs",
	}

	// Compiler settings
	maxDepthFlag = cli.IntFlag{
		Name:  "max-depth",
		Usage: "Maximum nesting depth of a program",
	}
	maxInputFlag = cli.IntFlag{
		Name:  "max-input",
		Usage: "Maximum source size in bytes",
	}
	specialFormsFlag = cli.StringFlag{
		Name:  "special-forms",
		Usage: "Comma separated special forms to enable (default: all)",
	}
	cacheDirFlag = cli.StringFlag{
		Name:  "cache.dir",
		Usage: "Directory of the persistent compile cache",
	}
	cacheEntriesFlag = cli.IntFlag{
		Name:  "cache.entries",
		Usage: "Number of compiled programs kept in memory",
	}

	// Output settings
	emitFlag = cli.StringFlag{
		Name:  "emit",
		Usage: "Stage to emit: tokens, ast, bytecode",
		Value: "bytecode",
	}
	formatFlag = cli.StringFlag{
		Name:  "format",
		Usage: "Listing format: table, plain",
		Value: "table",
	}
	outputFlag = cli.StringFlag{
		Name:  "o",
		Usage: "Write the encoded program to this file instead of a listing",
	}

	// Service settings
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "Compile service listening address",
	}
	corsFlag = cli.StringFlag{
		Name:  "cors",
		Usage: "Comma separated list of origins allowed to call the compile service",
	}

	compilerFlags = []cli.Flag{
		maxDepthFlag,
		maxInputFlag,
		specialFormsFlag,
		cacheDirFlag,
		cacheEntriesFlag,
	}
	serverFlags = []cli.Flag{
		listenFlag,
		corsFlag,
	}
	outputFlags = []cli.Flag{
		emitFlag,
		formatFlag,
	}
)

// splitList splits a comma separated flag value, dropping empty entries.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
