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

package testutil

import (
	"testing"

	"go.smsg-lang.org/smsg"
	"go.smsg-lang.org/smsg/compiler"
	"go.smsg-lang.org/smsg/schema"
)

// MustCompile compiles a single source file and fails the test on any
// error.
func MustCompile(t *testing.T, path, src string) *schema.Schema {
	t.Helper()
	result := compiler.Compile([]*compiler.SourceFile{{
		Path:   path,
		Syntax: MustParse(t, src),
	}})
	for _, err := range result.Errors {
		t.Errorf("compile error: %v", err)
	}
	if t.Failed() {
		t.FailNow()
	}
	return result.Schema()
}

func MustTypeTable(t *testing.T, path, src string) *smsg.TypeTable {
	t.Helper()
	table, err := smsg.NewTypeTable(MustCompile(t, path, src))
	if err != nil {
		t.Fatalf("NewTypeTable: %v", err)
	}
	return table
}

func MustNewBuffer(t *testing.T, table *smsg.TypeTable, scope, name string) *smsg.Buffer {
	t.Helper()
	info, ok := table.StructByName(scope, name)
	if !ok {
		t.Fatalf("struct %s.%s not found", scope, name)
	}
	buf, err := smsg.NewBuffer(table, info.ID)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf
}
