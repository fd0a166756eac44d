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
	"encoding/binary"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.smsg-lang.org/smsg"
	"go.smsg-lang.org/smsg/encoding/smsgbin"
	"go.smsg-lang.org/smsg/internal/testutil"
	"go.smsg-lang.org/smsg/schema"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		testutil.AssertNoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		testutil.AssertNoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newProject(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/geo/point.idl": "struct Point { x: int32; y: int32; }\n",
		"src/shapes.idl": `package shapes;
import { Point } from geo.point;
struct Path { points: Point[]; name: string; }
`,
		"src/broken.idl": "struct {\n",
		"src/README.txt": "not a source file\n",
	})
	return filepath.Join(root, "src"), filepath.Join(root, "out")
}

func TestCompile(t *testing.T) {
	ctx := context.Background()
	input, output := newProject(t)

	rc := run(ctx, []string{"compile", "-i", input, "-o", output, "-v", "1.0.0"})
	testutil.AssertEq(t, 0, rc)

	s, err := schema.ReadFile(filepath.Join(output, historyName))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "1.0.0", s.Version)
	point, ok := s.StructByName("geo.point", "Point")
	testutil.AssertTrue(t, ok)
	testutil.ExpectEq(t, schema.MinUserTypeID, point.TypeID)
	_, ok = s.StructByName("shapes", "Path")
	testutil.ExpectTrue(t, ok)

	layout, err := os.ReadFile(filepath.Join(output, "shapes"+layoutExt))
	testutil.AssertNoError(t, err)
	testutil.ExpectTrue(t, strings.Contains(string(layout), "struct Path { // id 65, 24 bytes"))

	// Recompiling keeps ids and rejects older versions.
	testutil.ExpectEq(t, 0, run(ctx, []string{"compile", "-i", input, "-o", output, "-v", "1.1.0"}))
	s, err = schema.ReadFile(filepath.Join(output, historyName))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "1.1.0", s.Version)
	point, _ = s.StructByName("geo.point", "Point")
	testutil.ExpectEq(t, schema.MinUserTypeID, point.TypeID)

	testutil.ExpectEq(t, 1, run(ctx, []string{"compile", "-i", input, "-o", output, "-v", "0.9.0"}))
}

func TestCompileUsage(t *testing.T) {
	ctx := context.Background()
	input, _ := newProject(t)

	testutil.ExpectEq(t, 1, run(ctx, []string{"compile"}))
	testutil.ExpectEq(t, 1, run(ctx, []string{"compile", "-i", input}))
	testutil.ExpectEq(t, 1, run(ctx, []string{"compile", "-i", filepath.Join(input, "missing"), "-o", t.TempDir()}))
	testutil.ExpectEq(t, 1, run(ctx, nil))

	// The version is required and checked before any source is read.
	output := t.TempDir()
	testutil.ExpectEq(t, 1, run(ctx, []string{"compile", "-i", input, "-o", output}))
	testutil.ExpectEq(t, 1, run(ctx, []string{"compile", "-i", input, "-o", output, "-v", "1.x"}))
	_, err := os.Stat(filepath.Join(output, historyName))
	testutil.ExpectTrue(t, errors.Is(err, fs.ErrNotExist))
}

func TestCompileConfig(t *testing.T) {
	ctx := context.Background()
	input, output := newProject(t)
	configPath := filepath.Join(filepath.Dir(input), "smsg.yaml")
	writeFiles(t, filepath.Dir(input), map[string]string{
		"smsg.yaml": "input: src\noutput: out\nversion: 2.0.0\n",
	})

	config, err := loadConfig(configPath)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, input, config.Input)
	testutil.ExpectEq(t, output, config.Output)

	testutil.AssertEq(t, 0, run(ctx, []string{"compile", "--config", configPath}))
	s, err := schema.ReadFile(filepath.Join(output, historyName))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "2.0.0", s.Version)

	// Flags override the file.
	testutil.AssertEq(t, 0, run(ctx, []string{"compile", "--config", configPath, "-v", "3.0.0"}))
	s, err = schema.ReadFile(filepath.Join(output, historyName))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "3.0.0", s.Version)
}

func TestLoadSources(t *testing.T) {
	t.Parallel()
	input, _ := newProject(t)

	files, err := loadSources(input)
	testutil.AssertNoError(t, err)
	var paths []string
	for _, file := range files {
		paths = append(paths, file.Path)
	}
	testutil.ExpectSliceEq(t, []string{"geo/point.idl", "shapes.idl"}, paths)
}

func TestDump(t *testing.T) {
	ctx := context.Background()
	input, output := newProject(t)
	testutil.AssertEq(t, 0, run(ctx, []string{"compile", "-i", input, "-o", output, "-v", "1.0.0"}))

	historyPath := filepath.Join(output, historyName)
	table, err := loadTable(historyPath)
	testutil.AssertNoError(t, err)
	buf := testutil.MustNewBuffer(t, table, "shapes", "Path")
	name, err := buf.Root().Field("name")
	testutil.AssertNoError(t, err)
	str, err := name.AsString()
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, str.Set("triangle"))

	bufPath := filepath.Join(output, "path.bin")
	fp, err := os.Create(bufPath)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, smsgbin.Write(fp, buf))
	testutil.AssertNoError(t, fp.Close())

	testutil.ExpectEq(t, 0, run(ctx, []string{"dump", "--schema", historyPath, bufPath}))
	testutil.ExpectEq(t, 1, run(ctx, []string{"dump", bufPath}))

	testutil.AssertNoError(t, os.WriteFile(bufPath, buf.Bytes()[:smsg.HeaderSize-1], 0o644))
	testutil.ExpectEq(t, 1, run(ctx, []string{"dump", "--schema", historyPath, bufPath}))
}

func TestCodegenRequest(t *testing.T) {
	t.Parallel()
	s := testutil.MustCompile(t, "a.idl", "struct A { x: int32; }")
	cmd := &cmdCodegen{language: "go", options: map[string]string{"package": "a"}}

	buf, err := cmd.request(s)
	testutil.AssertNoError(t, err)
	testutil.AssertEq(t, uint32(len(buf)-4), binary.LittleEndian.Uint32(buf))

	var request codegenRequest
	testutil.AssertNoError(t, json.Unmarshal(buf[4:], &request))
	testutil.ExpectEq(t, "go", request.Language)
	testutil.ExpectEq(t, "a", request.Options["package"])
	decoded, err := schema.Unmarshal(request.Schema)
	testutil.AssertNoError(t, err)
	_, ok := decoded.StructByName("a", "A")
	testutil.ExpectTrue(t, ok)
}

func TestCodegenOutPath(t *testing.T) {
	t.Parallel()
	cmd := &cmdCodegen{outDir: "gen"}

	path, err := cmd.outPath(outputFile{Path: []string{"a", "b.go"}})
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, filepath.Join("gen", "a", "b.go"), path)

	for _, parts := range [][]string{
		nil,
		{""},
		{".."},
		{"a", "."},
		{"/etc"},
		{"a/b"},
	} {
		if _, err := cmd.outPath(outputFile{Path: parts}); err == nil {
			t.Errorf("outPath(%q): expected error", parts)
		}
	}
}

func TestLocatePlugin(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"smsg-codegen-go.wasm": ""})

	cmd := &cmdCodegen{language: "go", pluginPath: t.TempDir() + string(filepath.ListSeparator) + dir}
	path, err := cmd.locatePlugin()
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, filepath.Join(dir, "smsg-codegen-go.wasm"), path)

	cmd.language = "rust"
	_, err = cmd.locatePlugin()
	testutil.AssertError(t, err)
}
