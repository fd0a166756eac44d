// Copyright (c) 2024 John Millikin <john@john-millikin.com>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH
// REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY
// AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT,
// INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM
// LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR
// OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR
// PERFORMANCE OF THIS SOFTWARE.
//
// SPDX-License-Identifier: 0BSD

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"go.smsg-lang.org/smsg/compiler"
	"go.smsg-lang.org/smsg/encoding/smsgtext"
	"go.smsg-lang.org/smsg/schema"
	"go.smsg-lang.org/smsg/syntax"
)

type cmdCompile struct {
	configPath string
	inputDir   string
	outputDir  string
	version    string
	history    string
	verbose    bool
}

func (*cmdCompile) help() *commandHelp {
	return &commandHelp{
		usage:   "compile -i INPUT_DIR -o OUTPUT_DIR -v VERSION",
		summary: "Compile a directory of IDL files into a schema history and layouts",
	}
}

func (cmd *cmdCompile) flags(flags *pflag.FlagSet) {
	flags.StringVar(&cmd.configPath, "config", "", "YAML project file supplying default flag values")
	flags.StringVarP(&cmd.inputDir, "input", "i", "", "directory searched for *.idl files")
	flags.StringVarP(&cmd.outputDir, "output", "o", "", "directory for the history file and layouts")
	flags.StringVarP(&cmd.version, "version", "v", "", "schema version (MAJOR.MINOR.PATCH)")
	flags.StringVar(&cmd.history, "history", "", "history file (default OUTPUT/"+historyName+")")
	flags.BoolVar(&cmd.verbose, "verbose", false, "log progress")
}

func (cmd *cmdCompile) usage() int {
	fmt.Fprintln(os.Stderr, "usage: smsgc compile -i INPUT_DIR -o OUTPUT_DIR -v VERSION [--config FILE]")
	return 1
}

// applyConfig fills unset flags from the project file.
func (cmd *cmdCompile) applyConfig() error {
	if cmd.configPath == "" {
		return nil
	}
	config, err := loadConfig(cmd.configPath)
	if err != nil {
		return err
	}
	for _, field := range []struct {
		flag   *string
		config string
	}{
		{&cmd.inputDir, config.Input},
		{&cmd.outputDir, config.Output},
		{&cmd.version, config.Version},
		{&cmd.history, config.History},
	} {
		if *field.flag == "" {
			*field.flag = field.config
		}
	}
	return nil
}

func (cmd *cmdCompile) run(ctx context.Context, argv []string) int {
	if len(argv) != 0 {
		return cmd.usage()
	}
	if err := cmd.applyConfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cmd.inputDir == "" || cmd.outputDir == "" || cmd.version == "" {
		return cmd.usage()
	}
	if _, err := schema.ParseVersion(cmd.version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cmd.usage()
	}
	if info, err := os.Stat(cmd.inputDir); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "Input %q is not a directory\n", cmd.inputDir)
		return 1
	}

	historyPath := cmd.history
	if historyPath == "" {
		historyPath = filepath.Join(cmd.outputDir, historyName)
	}

	files, err := loadSources(cmd.inputDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	infof(cmd.verbose, "compiling %d files from %s", len(files), cmd.inputDir)

	result := compiler.Compile(files,
		compiler.WithHistory(historyPath),
		compiler.WithVersion(cmd.version),
	)
	for _, warn := range result.Warnings {
		printDiagnostic(warn.Path(), warn.Span(), warn.String())
	}
	if len(result.Errors) > 0 {
		for _, err := range result.Errors {
			printDiagnostic(err.Path(), err.Span(), err.Error())
		}
		return 1
	}
	s := result.Schema()

	if err := os.MkdirAll(cmd.outputDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := schema.WriteFile(historyPath, s); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	infof(cmd.verbose, "wrote %s (version %s)", historyPath, s.Version)

	for _, scope := range s.Scopes() {
		layoutPath := filepath.Join(cmd.outputDir, scopeFileName(scope))
		layout := smsgtext.EncodeScope(s, scope)
		if err := os.WriteFile(layoutPath, []byte(layout), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		infof(cmd.verbose, "wrote %s", layoutPath)
	}
	return 0
}

func printDiagnostic(path string, span syntax.Span, text string) {
	switch {
	case path == "":
		fmt.Fprintln(os.Stderr, text)
	case span.End() == 0:
		fmt.Fprintf(os.Stderr, "%s: %s\n", path, text)
	default:
		fmt.Fprintf(os.Stderr, "%s:@%d: %s\n", path, span.Start(), text)
	}
}
