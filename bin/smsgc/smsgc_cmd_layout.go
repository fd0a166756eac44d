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

	"go.smsg-lang.org/smsg/encoding/smsgtext"
	"go.smsg-lang.org/smsg/schema"
)

type cmdLayout struct {
	scope string
}

func (*cmdLayout) help() *commandHelp {
	return &commandHelp{
		usage:   "layout HISTORY_FILE",
		summary: "Print the struct layouts recorded in a history file",
	}
}

func (cmd *cmdLayout) flags(flags *pflag.FlagSet) {
	flags.StringVar(&cmd.scope, "scope", "", "print only this scope")
}

func (cmd *cmdLayout) run(ctx context.Context, argv []string) int {
	if len(argv) != 1 {
		fmt.Fprintln(os.Stderr, "usage: smsgc layout [--scope SCOPE] HISTORY_FILE")
		return 1
	}
	s, err := schema.ReadFile(argv[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	output := smsgtext.EncodeSchema(s)
	if cmd.scope != "" {
		output = smsgtext.EncodeScope(s, cmd.scope)
	}
	if _, err := os.Stdout.WriteString(output); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
