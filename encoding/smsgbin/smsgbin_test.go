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

package smsgbin_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"slices"
	"testing"

	"go.smsg-lang.org/smsg"
	"go.smsg-lang.org/smsg/encoding/smsgbin"
	"go.smsg-lang.org/smsg/internal/testutil"
)

const entryIDL = `package log;

struct Entry {
	flag: bool;
	label: string;
	values: uint16[];
	index: <int32, bool>;
	choice: uint8 | string;
	next: Entry;
}
`

type fixture struct {
	table   *smsg.TypeTable
	encoded []uint8
	offsets map[string]uint32
}

func fieldOffset(t *testing.T, s smsg.Struct, name string) uint32 {
	t.Helper()
	value, err := s.Field(name)
	testutil.AssertNoError(t, err)
	return value.Offset()
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	table := testutil.MustTypeTable(t, "log.idl", entryIDL)
	buf := testutil.MustNewBuffer(t, table, "log", "Entry")
	root := buf.Root()

	offsets := make(map[string]uint32)
	for _, name := range []string{"flag", "label", "values", "index", "choice"} {
		offsets[name] = fieldOffset(t, root, name)
	}
	nextField, ok := root.Type().Field("next")
	testutil.AssertTrue(t, ok && nextField.Ref)
	offsets["next"] = smsg.RootOffset + nextField.Offset

	flag, _ := root.Field("flag")
	testutil.AssertNoError(t, smsg.Set(flag, true))

	label, _ := root.Field("label")
	str, err := label.AsString()
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, str.Set("a label stored out of line"))

	values, _ := root.Field("values")
	array, err := values.AsArray()
	testutil.AssertNoError(t, err)
	for _, v := range []uint16{1, 2, 3} {
		testutil.AssertNoError(t, smsg.ArrayAppend(array, v))
	}

	index, _ := root.Field("index")
	m, err := index.AsMap()
	testutil.AssertNoError(t, err)
	for _, key := range []int32{-1, 4, 9} {
		value, err := smsg.MapAppend(m, key)
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, smsg.Set(value, key > 0))
	}

	choice, _ := root.Field("choice")
	union, err := choice.AsUnion()
	testutil.AssertNoError(t, err)
	variant, err := union.Set(2)
	testutil.AssertNoError(t, err)
	variantStr, err := variant.AsString()
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, variantStr.Set("union string, out of line"))

	next, err := root.NewRef("next")
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, next.SetRef("next", root))
	offsets["next.values"] = fieldOffset(t, next, "values")

	var out bytes.Buffer
	testutil.AssertNoError(t, smsgbin.Write(&out, buf))
	return fixture{
		table:   table,
		encoded: out.Bytes(),
		offsets: offsets,
	}
}

func (f fixture) corrupt(edit func(data []uint8)) []uint8 {
	data := slices.Clone(f.encoded)
	edit(data)
	return data
}

func TestRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	buf, err := smsgbin.Read(f.table, bytes.NewReader(f.encoded))
	testutil.AssertNoError(t, err)
	testutil.ExpectBytesEq(t, f.encoded, buf.Bytes())

	label, err := buf.Root().Field("label")
	testutil.AssertNoError(t, err)
	str, err := label.AsString()
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "a label stored out of line", str.Get())

	next, err := buf.Root().Field("next")
	testutil.AssertNoError(t, err)
	nextStruct, err := next.AsStruct()
	testutil.AssertNoError(t, err)
	back, err := nextStruct.Field("next")
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, smsg.RootOffset, back.Offset())
}

func TestReadTruncated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := smsgbin.Read(f.table, bytes.NewReader(f.encoded[:4]))
	testutil.ExpectTrue(t, errors.Is(err, smsg.ErrInvalidHeader))

	_, err = smsgbin.Open(f.table, f.encoded[:len(f.encoded)-4])
	testutil.ExpectTrue(t, errors.Is(err, smsg.ErrInvalidHeader))
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	next := uint32(len(f.encoded))

	tests := []struct {
		name string
		edit func(data []uint8)
	}{
		{"invalid bool", func(data []uint8) {
			data[f.offsets["flag"]] = 2
		}},
		{"string past end", func(data []uint8) {
			binary.BigEndian.PutUint32(data[f.offsets["label"]:], next)
		}},
		{"string length over capacity", func(data []uint8) {
			off := f.offsets["label"]
			binary.LittleEndian.PutUint32(data[off+4:], binary.LittleEndian.Uint32(data[off+8:])+1)
		}},
		{"array size over capacity", func(data []uint8) {
			binary.LittleEndian.PutUint32(data[f.offsets["values"]+4:], 1000)
		}},
		{"array data past end", func(data []uint8) {
			binary.LittleEndian.PutUint32(data[f.offsets["values"]:], next-4)
		}},
		{"unaligned array data", func(data []uint8) {
			off := f.offsets["values"]
			binary.LittleEndian.PutUint32(data[off:], binary.LittleEndian.Uint32(data[off:])+1)
		}},
		{"map keys out of order", func(data []uint8) {
			off := f.offsets["index"]
			entries := binary.LittleEndian.Uint32(data[off+8:])
			binary.LittleEndian.PutUint32(data[entries:], 100)
		}},
		{"union tag out of range", func(data []uint8) {
			data[f.offsets["choice"]] = 3
		}},
		{"union pointer past end", func(data []uint8) {
			binary.LittleEndian.PutUint32(data[f.offsets["choice"]+4:], next)
		}},
		{"reference past end", func(data []uint8) {
			binary.LittleEndian.PutUint32(data[f.offsets["next"]:], next)
		}},
		{"nested array behind reference", func(data []uint8) {
			binary.LittleEndian.PutUint32(data[f.offsets["next.values"]+4:], 7)
		}},
		{"array data inside enclosing struct", func(data []uint8) {
			binary.LittleEndian.PutUint32(data[f.offsets["values"]:], smsg.RootOffset)
		}},
		{"union value inside enclosing struct", func(data []uint8) {
			binary.LittleEndian.PutUint32(data[f.offsets["choice"]+4:], smsg.RootOffset)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := smsgbin.Open(f.table, f.corrupt(tt.edit))
			if !errors.Is(err, smsgbin.ErrMalformed) {
				t.Errorf("Open: got error %v, want ErrMalformed", err)
			}
		})
	}
}

const treeIDL = `package tree;

struct S {
	children: S[];
	byKey: <int32, S>;
	choice: int8 | S;
}
`

// Each case points an out-of-line region back at the root struct, which
// would otherwise be visited again without end.
func TestVerifyRegionContainsItself(t *testing.T) {
	t.Parallel()
	table := testutil.MustTypeTable(t, "tree.idl", treeIDL)
	buf := testutil.MustNewBuffer(t, table, "tree", "S")
	root := buf.Root()
	_, err := buf.Alloc(64)
	testutil.AssertNoError(t, err)
	encoded := slices.Clone(buf.Bytes())

	offsets := make(map[string]uint32)
	for _, name := range []string{"children", "byKey", "choice"} {
		offsets[name] = fieldOffset(t, root, name)
	}

	tests := []struct {
		name string
		edit func(data []uint8)
	}{
		{"array", func(data []uint8) {
			off := offsets["children"]
			binary.LittleEndian.PutUint32(data[off:], smsg.RootOffset)
			binary.LittleEndian.PutUint32(data[off+4:], 1)
			binary.LittleEndian.PutUint32(data[off+8:], 1)
		}},
		{"map", func(data []uint8) {
			off := offsets["byKey"]
			binary.LittleEndian.PutUint32(data[off:], 1)
			binary.LittleEndian.PutUint32(data[off+4:], 1)
			binary.LittleEndian.PutUint32(data[off+8:], smsg.RootOffset)
		}},
		{"union", func(data []uint8) {
			off := offsets["choice"]
			data[off] = 2
			binary.LittleEndian.PutUint32(data[off+4:], smsg.RootOffset)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data := slices.Clone(encoded)
			tt.edit(data)
			_, err := smsgbin.Open(table, data)
			if !errors.Is(err, smsgbin.ErrMalformed) {
				t.Errorf("Open: got error %v, want ErrMalformed", err)
			}
		})
	}

	_, err = smsgbin.Open(table, encoded)
	testutil.ExpectNoError(t, err)
}
