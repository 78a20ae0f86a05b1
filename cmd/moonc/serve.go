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
	"context"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/moonlisp/go-moonlisp/server"
)

var serveCommand = cli.Command{
	Action:    serve,
	Name:      "serve",
	Usage:     "Run the compile service",
	ArgsUsage: "",
	Flags:     append(append([]cli.Flag{}, serverFlags...), compilerFlags...),
	Category:  "COMPILER COMMANDS",
	Description: `
Serves POST /compile, GET /opcodes and the /ws websocket. Compiled programs are
shared through the compile cache.`,
}

func serve(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	b, err := newBuilder(cfg, emitBytecode)
	if err != nil {
		return err
	}
	defer b.close()

	sigctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(cfg.Server, b.cache).ListenAndServe(sigctx)
}
