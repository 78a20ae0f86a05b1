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
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rjeczalik/notify"
	"gopkg.in/urfave/cli.v1"

	"github.com/moonlisp/go-moonlisp/log"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

var watchCommand = cli.Command{
	Action:    watch,
	Name:      "watch",
	Usage:     "Recompile source files whenever they change",
	ArgsUsage: "<file> [<file> ...]",
	Flags:     append(append([]cli.Flag{}, outputFlags...), compilerFlags...),
	Category:  "COMPILER COMMANDS",
}

func watch(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("watch needs at least one file")
	}
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

	files := make(map[string]string) // absolute path -> name as given
	for _, file := range ctx.Args() {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		files[abs] = file
	}

	events := make(chan notify.EventInfo, 16)
	dirs := make(map[string]bool)
	for abs := range files {
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := notify.Watch(dir, events, notify.Write, notify.Create, notify.Rename); err != nil {
			notify.Stop(events)
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	defer notify.Stop(events)

	colored := useColor(ctx, os.Stderr)
	rebuild := func(name string) {
		src, err := readSource(name)
		if err != nil {
			log.Warn("Failed to read source", "file", name, "err", err)
			return
		}
		u := &unit{name: name, src: src}
		b.build(u)
		fmt.Printf("== %s (%s) ==\n", name, time.Now().Format("15:04:05"))
		b.report(os.Stdout, os.Stderr, u, format, colored)
	}
	for _, name := range files {
		rebuild(name)
	}
	log.Info("Watching for changes", "files", len(files), "dirs", len(dirs))

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	pending := make(map[string]bool)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	for {
		select {
		case ev := <-events:
			if name, ok := files[ev.Path()]; ok {
				log.Debug("Source changed", "file", name, "event", ev.Event())
				pending[name] = true
				timer.Reset(watchDebounce)
			}
		case <-timer.C:
			for name := range pending {
				rebuild(name)
			}
			pending = make(map[string]bool)
		case <-sigc:
			return nil
		}
	}
}
