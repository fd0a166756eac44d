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

	"go.smsg-lang.org/smsg/syntax"
)

type coded interface {
	Code() uint32
}

// Codes extracts diagnostic codes, preserving order.
func Codes[E coded](diagnostics []E) []uint32 {
	out := make([]uint32, 0, len(diagnostics))
	for _, d := range diagnostics {
		out = append(out, d.Code())
	}
	return out
}

// ExpectCodes checks that diagnostics carry exactly the given codes, in
// order.
func ExpectCodes[E coded](t *testing.T, want []uint32, got []E) {
	t.Helper()
	gotCodes := Codes(got)
	ExpectSliceEq(t, want, gotCodes)
	if t.Failed() {
		for _, d := range got {
			t.Logf("diagnostic: %v", d)
		}
	}
}

func MustParse(t *testing.T, src string) *syntax.File {
	t.Helper()
	file, err := syntax.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse error: %v\nsource:\n%s", err, src)
	}
	return file
}
