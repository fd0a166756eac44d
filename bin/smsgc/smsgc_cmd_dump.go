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

	"github.com/spf13/pflag"

	"go.smsg-lang.org/smsg/encoding/smsgbin"
	"go.smsg-lang.org/smsg/encoding/smsgtext"
)

type cmdDump struct {
	schemaPath string
}

func (*cmdDump) help() *commandHelp {
	return &commandHelp{
		usage:   "dump --schema HISTORY_FILE BUFFER_FILE",
		summary: "Print an encoded buffer as text",
	}
}

func (cmd *cmdDump) flags(flags *pflag.FlagSet) {
	flags.StringVar(&cmd.schemaPath, "schema", "", "history file describing the buffer's types")
}

func (cmd *cmdDump) run(ctx context.Context, argv []string) int {
	if len(argv) != 1 || cmd.schemaPath == "" {
		fmt.Fprintln(os.Stderr, "usage: smsgc dump --schema HISTORY_FILE BUFFER_FILE")
		return 1
	}
	table, err := loadTable(cmd.schemaPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fp, err := os.Open(argv[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer fp.Close()
	buf, err := smsgbin.Read(table, fp)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := smsgtext.EncodeTo(buf, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if trash := buf.TrashLength(); trash > 0 {
		warnf("%d of %d bytes are unreachable", trash, buf.NextAvailable())
	}
	return 0
}
