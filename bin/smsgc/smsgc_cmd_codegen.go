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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	wasm "github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"go.smsg-lang.org/smsg/schema"
)

// Plugins are WebAssembly modules exporting:
//
//	smsg_codegen_allocate(len u32) -> ptr u32
//	smsg_codegen_generate/LANGUAGE(request_ptr u32, response_ptr_ptr u32) -> rc u8
//
// Requests and responses are a little-endian u32 length followed by that
// many bytes of JSON.
const (
	pluginAllocate = "smsg_codegen_allocate"
	pluginGenerate = "smsg_codegen_generate/"
	pluginPathEnv  = "SMSG_CODEGEN_PLUGIN_PATH"
)

type codegenRequest struct {
	Language string            `json:"language"`
	Schema   json.RawMessage   `json:"schema"`
	Options  map[string]string `json:"options,omitempty"`
}

type codegenResponse struct {
	Error       string       `json:"error,omitempty"`
	OutputFiles []outputFile `json:"outputFiles"`
}

type outputFile struct {
	Path    []string `json:"path"`
	Content []byte   `json:"content"`
}

type cmdCodegen struct {
	outDir     string
	pluginPath string
	language   string
	options    map[string]string
}

func (*cmdCodegen) help() *commandHelp {
	return &commandHelp{
		usage:   "codegen HISTORY_FILE",
		summary: "Generate accessors for a compiled schema with a WebAssembly plugin",
	}
}

func (cmd *cmdCodegen) flags(flags *pflag.FlagSet) {
	flags.StringVarP(&cmd.outDir, "output", "o", "", "directory for generated files")
	flags.StringVar(&cmd.pluginPath, "plugin-path", "", "colon-separated plugin directories (default $"+pluginPathEnv+")")
	flags.StringVar(&cmd.language, "language", "go", "target language")
	flags.StringToStringVar(&cmd.options, "option", nil, "plugin option KEY=VALUE")
}

func (cmd *cmdCodegen) run(ctx context.Context, argv []string) int {
	if len(argv) != 1 {
		fmt.Fprintln(os.Stderr, "usage: smsgc codegen -o OUTPUT_DIR [--language LANG] HISTORY_FILE")
		return 1
	}
	if cmd.outDir == "" {
		fmt.Fprintln(os.Stderr, "No output directory specified (set --output=)")
		return 1
	}

	s, err := schema.ReadFile(argv[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	requestBuf, err := cmd.request(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	pluginPath, err := cmd.locatePlugin()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	pluginBin, err := os.ReadFile(pluginPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	response, err := cmd.callPlugin(ctx, pluginBin, requestBuf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if response.Error != "" {
		fmt.Fprintln(os.Stderr, strings.TrimRight(response.Error, "\n"))
		return 1
	}
	if len(response.OutputFiles) == 0 {
		fmt.Fprintln(os.Stderr, "Plugin did not generate any output files")
		return 1
	}

	for _, file := range response.OutputFiles {
		outPath, err := cmd.outPath(file)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := os.WriteFile(outPath, file.Content, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	return 0
}

// request encodes the framed plugin request for s.
func (cmd *cmdCodegen) request(s *schema.Schema) ([]byte, error) {
	history, err := schema.Marshal(s)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(&codegenRequest{
		Language: cmd.language,
		Schema:   history,
		Options:  cmd.options,
	})
	if err != nil {
		return nil, err
	}
	return append(binary.LittleEndian.AppendUint32(nil, uint32(len(body))), body...), nil
}

func (cmd *cmdCodegen) callPlugin(ctx context.Context, pluginBin, requestBuf []byte) (*codegenResponse, error) {
	runtimeConfig := wasm.NewRuntimeConfigInterpreter()
	runtimeConfig = runtimeConfig.WithMemoryLimitPages(16384)
	runtime := wasm.NewRuntimeWithConfig(ctx, runtimeConfig)
	defer runtime.Close(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	pluginExe, err := runtime.CompileModule(ctx, pluginBin)
	if err != nil {
		return nil, err
	}
	moduleConfig := wasm.NewModuleConfig().WithStderr(os.Stderr)
	plugin, err := runtime.InstantiateModule(ctx, pluginExe, moduleConfig)
	if err != nil {
		return nil, err
	}
	mem := plugin.Memory()

	wasmAlloc := plugin.ExportedFunction(pluginAllocate)
	wasmGenerate := plugin.ExportedFunction(pluginGenerate + cmd.language)
	if wasmAlloc == nil || wasmGenerate == nil {
		return nil, fmt.Errorf("Plugin does not support language %q", cmd.language)
	}

	results, err := wasmAlloc.Call(ctx, uint64(len(requestBuf)))
	if err != nil {
		return nil, err
	}
	requestPtr := uint32(results[0])
	if !mem.Write(requestPtr, requestBuf) {
		return nil, fmt.Errorf("Failed to write %d byte request", len(requestBuf))
	}

	results, err = wasmAlloc.Call(ctx, 4)
	if err != nil {
		return nil, err
	}
	responsePtrPtr := uint32(results[0])

	results, err = wasmGenerate.Call(ctx, uint64(requestPtr), uint64(responsePtrPtr))
	if err != nil {
		return nil, err
	}
	rc := uint8(results[0])

	responsePtr, ok := mem.ReadUint32Le(responsePtrPtr)
	if !ok {
		return nil, fmt.Errorf("Failed to read response pointer")
	}
	responseLen, ok := mem.ReadUint32Le(responsePtr)
	if !ok {
		return nil, fmt.Errorf("Failed to read response length")
	}
	responseBuf, ok := mem.Read(responsePtr+4, responseLen)
	if !ok {
		return nil, fmt.Errorf("Failed to read response")
	}

	var response codegenResponse
	if err := json.Unmarshal(responseBuf, &response); err != nil {
		return nil, fmt.Errorf("Invalid plugin response: %w", err)
	}
	if rc != 0 && response.Error == "" {
		response.Error = fmt.Sprintf("Plugin failed with status %d", rc)
	}
	return &response, nil
}

func (cmd *cmdCodegen) locatePlugin() (string, error) {
	path := cmd.pluginPath
	if path == "" {
		path = os.Getenv(pluginPathEnv)
	}
	if path == "" {
		return "", fmt.Errorf("No plugin path set, use --plugin-path= or $%s", pluginPathEnv)
	}
	basename := fmt.Sprintf("smsg-codegen-%s.wasm", cmd.language)
	for _, dir := range filepath.SplitList(path) {
		pluginPath := filepath.Join(dir, basename)
		if _, err := os.Stat(pluginPath); err == nil {
			return pluginPath, nil
		}
	}
	return "", fmt.Errorf("Codegen plugin %s not found in plugin path", basename)
}

func (cmd *cmdCodegen) outPath(file outputFile) (string, error) {
	parts := file.Path
	if len(parts) == 0 {
		return "", fmt.Errorf("Invalid output path %#v: empty", parts)
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("Invalid output path %#v: bad path component %q", parts, part)
		}
		if part[0] == '/' || filepath.IsAbs(part) {
			return "", fmt.Errorf("Invalid output path %#v: absolute path component %q", parts, part)
		}
		if strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("Invalid output path %#v: component %q contains a separator", parts, part)
		}
	}
	return filepath.Join(append([]string{cmd.outDir}, parts...)...), nil
}
