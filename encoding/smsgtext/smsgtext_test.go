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

package smsgtext_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.smsg-lang.org/smsg"
	"go.smsg-lang.org/smsg/encoding/smsgtext"
	"go.smsg-lang.org/smsg/internal/testutil"
)

const shopIDL = `package shop;

enum Size : uint8 { Small = 1, Large }

struct Item {
	name: string;
	size: Size;
	price: float32;
}

struct Order {
	id: uint64;
	items: Item[];
	notes: string[];
	counts: <string, uint16>;
	extra: int16 | Item;
	parent: Order;
}
`

func mustField(t *testing.T, s smsg.Struct, name string) smsg.Value {
	t.Helper()
	value, err := s.Field(name)
	testutil.AssertNoError(t, err)
	return value
}

func TestEncodeSchema(t *testing.T) {
	t.Parallel()
	s := testutil.MustCompile(t, "shop.idl", shopIDL)

	want := strings.TrimLeft(`
// package shop

enum Size : uint8 { // id 64
	Small = 1,
	Large = 2,
}

struct Item { // id 65, 20 bytes
	name: string; // @0, 12 bytes
	size: shop.Size; // @12, 1 bytes
	price: float32; // @16, 4 bytes
}

// MA_1_65: arrayOf(shop.Item), id 67, 12 bytes

// MA_1_12: arrayOf(string), id 68, 12 bytes

// MP_12_5: mapOf(string, uint16), id 69, 12 bytes

// CB_4_65: unionOf(int16, shop.Item), id 70, 8 bytes

struct Order { // id 66, 56 bytes
	id: uint64; // @0, 8 bytes
	items: shop.Item[]; // @8, 12 bytes
	notes: string[]; // @20, 12 bytes
	counts: <string, uint16>; // @32, 12 bytes
	extra: int16 | shop.Item; // @44, 8 bytes
	parent: shop.Order; // @52, reference
}
`, "\n")
	testutil.ExpectNoDiff(t, want, smsgtext.EncodeSchema(s))
	testutil.ExpectNoDiff(t, want, smsgtext.EncodeScope(s, "shop"))
}

func TestEncodeSchemaGlobalScope(t *testing.T) {
	t.Parallel()
	s := testutil.MustCompile(t, "a.idl", `
struct A { xs: int32[]; }
`)
	s.Accessories[0].Scope = ""

	want := strings.TrimLeft(`
// global

// MA_1_6: arrayOf(int32), id 65, 12 bytes

// package a

struct A { // id 64, 12 bytes
	xs: int32[]; // @0, 12 bytes
}
`, "\n")
	testutil.ExpectNoDiff(t, want, smsgtext.EncodeSchema(s))
}

func TestEncode(t *testing.T) {
	t.Parallel()
	table := testutil.MustTypeTable(t, "shop.idl", shopIDL)
	buf := testutil.MustNewBuffer(t, table, "shop", "Order")
	root := buf.Root()

	testutil.AssertNoError(t, smsg.Set(mustField(t, root, "id"), uint64(7)))

	items, err := mustField(t, root, "items").AsArray()
	testutil.AssertNoError(t, err)
	for _, name := range []string{"widget", "a much longer gadget name"} {
		elem, err := items.Push()
		testutil.AssertNoError(t, err)
		item, err := elem.AsStruct()
		testutil.AssertNoError(t, err)
		str, err := mustField(t, item, "name").AsString()
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, str.Set(name))
		if name == "widget" {
			testutil.AssertNoError(t, smsg.Set(mustField(t, item, "size"), uint8(2)))
			testutil.AssertNoError(t, smsg.Set(mustField(t, item, "price"), float32(1.5)))
		}
	}

	counts, err := mustField(t, root, "counts").AsMap()
	testutil.AssertNoError(t, err)
	for ii, key := range []string{"a", "b"} {
		value, err := smsg.MapAppend(counts, key)
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, smsg.Set(value, uint16(ii+1)))
	}

	extra, err := mustField(t, root, "extra").AsUnion()
	testutil.AssertNoError(t, err)
	variant, err := extra.Set(1)
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, smsg.Set(variant, int16(-3)))

	parent, err := root.NewRef("parent")
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, smsg.Set(mustField(t, parent, "id"), uint64(8)))
	testutil.AssertNoError(t, parent.SetRef("parent", root))

	want := fmt.Sprintf(strings.TrimLeft(`
id = 7
items = [
	{
		name = "widget"
		size = .Large
		price = 1.5
	}
	{
		name = "a much longer gadget name"
		size = 0
		price = 0
	}
]
notes = []
counts = {
	"a": 1
	"b": 2
}
extra = int16(-3)
parent = @%d {
	id = 8
	items = []
	notes = []
	counts = {}
	extra = null
	parent = @12
}
`, "\n"), parent.Offset())
	got, err := smsgtext.Encode(buf)
	testutil.AssertNoError(t, err)
	testutil.ExpectNoDiff(t, want, got)
}

func TestEncodeUnionStruct(t *testing.T) {
	t.Parallel()
	table := testutil.MustTypeTable(t, "shop.idl", shopIDL)
	buf := testutil.MustNewBuffer(t, table, "shop", "Order")

	extra, err := mustField(t, buf.Root(), "extra").AsUnion()
	testutil.AssertNoError(t, err)
	variant, err := extra.Set(2)
	testutil.AssertNoError(t, err)
	item, err := variant.AsStruct()
	testutil.AssertNoError(t, err)
	str, err := mustField(t, item, "name").AsString()
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, str.Set("tab\there \"quoted\""))

	want := strings.TrimLeft(`
id = 0
items = []
notes = []
counts = {}
extra = shop.Item {
	name = "tab\there \"quoted\""
	size = 0
	price = 0
}
parent = null
`, "\n")
	got, err := smsgtext.Encode(buf)
	testutil.AssertNoError(t, err)
	testutil.ExpectNoDiff(t, want, got)
}

type failingWriter struct {
	written int
	limit   int
}

var errWriteFailed = errors.New("write failed")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.written+len(p) > w.limit {
		return 0, errWriteFailed
	}
	w.written += len(p)
	return len(p), nil
}

func TestEncodeWriteError(t *testing.T) {
	t.Parallel()
	table := testutil.MustTypeTable(t, "shop.idl", shopIDL)
	buf := testutil.MustNewBuffer(t, table, "shop", "Order")

	full, err := smsgtext.Encode(buf)
	testutil.AssertNoError(t, err)

	w := &failingWriter{limit: len(full) / 2}
	err = smsgtext.EncodeTo(buf, w)
	testutil.ExpectTrue(t, errors.Is(err, errWriteFailed))
	testutil.ExpectTrue(t, w.written < len(full))

	err = smsgtext.EncodeSchemaTo(table.Schema(), &failingWriter{limit: 8})
	testutil.ExpectTrue(t, errors.Is(err, errWriteFailed))
}
