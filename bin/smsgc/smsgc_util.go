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
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"go.smsg-lang.org/smsg"
	"go.smsg-lang.org/smsg/compiler"
	"go.smsg-lang.org/smsg/schema"
	"go.smsg-lang.org/smsg/syntax"
)

const (
	sourceExt   = ".idl"
	historyName = ".smsg.json"
	layoutExt   = ".layout.txt"
)

// projectConfig is the optional YAML project file. Command-line flags
// take precedence over its values.
type projectConfig struct {
	Input   string `yaml:"input"`
	Output  string `yaml:"output"`
	Version string `yaml:"version"`
	History string `yaml:"history"`
}

func loadConfig(path string) (*projectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config projectConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// Relative paths in the file are relative to the file itself.
	dir := filepath.Dir(path)
	for _, p := range []*string{&config.Input, &config.Output, &config.History} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	return &config, nil
}

// loadSources parses every source file under root. Files that fail to
// parse are reported and skipped.
func loadSources(root string) ([]*compiler.SourceFile, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), sourceExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	var files []*compiler.SourceFile
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		parsed, err := syntax.Parse(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", rel, err)
			continue
		}
		files = append(files, &compiler.SourceFile{
			Path:   rel,
			Syntax: parsed,
		})
	}
	return files, nil
}

func loadTable(historyPath string) (*smsg.TypeTable, error) {
	s, err := schema.ReadFile(historyPath)
	if err != nil {
		return nil, err
	}
	return smsg.NewTypeTable(s)
}

// scopeFileName maps a scope to its layout file name. The global scope
// is written to "global".
func scopeFileName(scope string) string {
	if scope == schema.GlobalScope {
		return "global" + layoutExt
	}
	return scope + layoutExt
}

func infof(verbose bool, format string, a ...any) {
	if verbose {
		log.Printf("[INFO ] "+format, a...)
	}
}

func warnf(format string, a ...any) {
	log.Printf("[WARN ] "+format, a...)
}
