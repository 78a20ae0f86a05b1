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
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/moonlisp/go-moonlisp"
	"github.com/moonlisp/go-moonlisp/cache"
	"github.com/moonlisp/go-moonlisp/server"
)

var (
	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "[file]",
		Flags:       append(append([]cli.Flag{}, compilerFlags...), serverFlags...),
		Category:    "MISCELLANEOUS COMMANDS",
		Description: `The dumpconfig command shows configuration values.`,
	}

	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type moonConfig struct {
	Compiler moonlisp.Config
	Cache    cache.Config
	Server   server.Config
}

func defaultConfig() moonConfig {
	return moonConfig{
		Compiler: moonlisp.DefaultConfig,
		Cache:    cache.DefaultConfig,
		Server:   server.DefaultConfig,
	}
}

func loadConfig(file string, cfg *moonConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the defaults, then the config file, then applies flags.
func makeConfig(ctx *cli.Context) (moonConfig, error) {
	cfg := defaultConfig()
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	applyCompilerFlags(ctx, &cfg)
	applyServerFlags(ctx, &cfg)
	return cfg, nil
}

func applyCompilerFlags(ctx *cli.Context, cfg *moonConfig) {
	if ctx.IsSet(maxDepthFlag.Name) {
		cfg.Compiler.MaxDepth = ctx.Int(maxDepthFlag.Name)
	}
	if ctx.IsSet(maxInputFlag.Name) {
		cfg.Compiler.MaxInputSize = ctx.Int(maxInputFlag.Name)
	}
	if ctx.IsSet(specialFormsFlag.Name) {
		cfg.Compiler.SpecialForms = splitList(ctx.String(specialFormsFlag.Name))
	}
	if ctx.IsSet(cacheDirFlag.Name) {
		cfg.Cache.Dir = ctx.String(cacheDirFlag.Name)
	}
	if ctx.IsSet(cacheEntriesFlag.Name) {
		cfg.Cache.Entries = ctx.Int(cacheEntriesFlag.Name)
	}
	cfg.Cache.Salt = compilerSalt(cfg.Compiler)
}

func applyServerFlags(ctx *cli.Context, cfg *moonConfig) {
	if ctx.IsSet(listenFlag.Name) {
		cfg.Server.ListenAddr = ctx.String(listenFlag.Name)
	}
	if ctx.IsSet(corsFlag.Name) {
		cfg.Server.CorsOrigins = splitList(ctx.String(corsFlag.Name))
	}
}

// compilerSalt separates cache entries produced under different compiler
// settings.
func compilerSalt(cfg moonlisp.Config) string {
	forms := "all"
	if cfg.SpecialForms != nil {
		forms = fmt.Sprintf("%q", cfg.SpecialForms)
	}
	return fmt.Sprintf("input=%d depth=%d forms=%s", cfg.MaxInputSize, cfg.MaxDepth, forms)
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	// The salt is derived, not configured.
	cfg.Cache.Salt = ""

	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.Write(out)

	return nil
}
