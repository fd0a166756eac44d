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

package schema_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.smsg-lang.org/smsg/internal/testutil"
	"go.smsg-lang.org/smsg/schema"
)

func exampleSchema() *schema.Schema {
	int32T, _ := schema.LookupNative("int32")
	int16T, _ := schema.LookupNative("int16")
	stringT, _ := schema.LookupNative("string")
	return &schema.Schema{
		Version: "1.2.0",
		Enums: []*schema.EnumDescription{
			{
				TypeID:     64,
				Scope:      "shapes",
				Name:       "Kind",
				Underlying: int16T,
				Values: []schema.EnumValue{
					{Name: "CIRCLE", Value: 1},
					{Name: "SQUARE", Value: 2},
				},
			},
		},
		Structs: []*schema.StructDescription{
			{
				TypeID:     65,
				Scope:      "shapes",
				Name:       "Point",
				ByteLength: 8,
				Members: []*schema.Member{
					{Name: "x", Type: int32T, Offset: 0, ResolvedTypeID: 6},
					{Name: "y", Type: int32T, Offset: 4, ResolvedTypeID: 6},
				},
			},
			{
				TypeID:     66,
				Scope:      "shapes",
				Name:       "Path",
				ByteLength: 28,
				Members: []*schema.Member{
					{
						Name:           "points",
						Type:           &schema.Array{Base: &schema.UserDef{ID: 65, Scope: "shapes", Name: "Point"}, Dims: 1, Accessory: 67},
						Offset:         0,
						ResolvedTypeID: 67,
					},
					{
						Name:           "label",
						Type:           &schema.Union{Members: []schema.Type{stringT, int32T}, Accessory: 68},
						Offset:         12,
						ResolvedTypeID: 68,
					},
					{
						Name:           "next",
						Type:           &schema.UserDef{ID: 66, Scope: "shapes", Name: "Path"},
						Ref:            schema.Reference,
						Offset:         20,
						ResolvedTypeID: 66,
					},
					{
						Name:           "kind",
						Type:           &schema.UserDef{ID: 64, Scope: "shapes", Name: "Kind"},
						Offset:         24,
						ResolvedTypeID: 64,
					},
				},
				Dependences: []schema.TypeID{65, 66, 64},
			},
		},
		Accessories: []*schema.AccessoryDescription{
			{TypeID: 67, Kind: schema.ArrayOf, Name: "MA_1_65", Scope: "shapes", RelyTypes: []schema.TypeID{65}, ByteLength: 12},
			{TypeID: 68, Kind: schema.UnionOf, Name: "CB_6_12", Scope: "shapes", RelyTypes: []schema.TypeID{6, 12}, ByteLength: 8},
		},
	}
}

func TestParseVersion(t *testing.T) {
	t.Parallel()

	v, err := schema.ParseVersion("1.20.3")
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, schema.Version{Major: 1, Minor: 20, Patch: 3}, v)
	testutil.ExpectEq(t, "1.20.3", v.String())

	for _, bad := range []string{"", "1", "1.2", "1.2.3.4", "v1.2.3", "1.2.x", " 1.2.3", "1.2.-3"} {
		_, err := schema.ParseVersion(bad)
		if !errors.Is(err, schema.ErrInvalidVersion) {
			t.Errorf("ParseVersion(%q): expected ErrInvalidVersion, got %v", bad, err)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.2.0", -1},
		{"1.2.0", "1.0.0", 1},
		{"1.2.0", "1.2.0", 0},
		{"1.10.0", "1.9.0", 1},
		{"0.0.9", "0.1.0", -1},
		{"2.0.0", "1.99.99", 1},
	}
	for _, test := range tests {
		a, err := schema.ParseVersion(test.a)
		testutil.AssertNoError(t, err)
		b, err := schema.ParseVersion(test.b)
		testutil.AssertNoError(t, err)
		if got := a.Compare(b); got != test.want {
			t.Errorf("%s.Compare(%s): expected %d, got %d", test.a, test.b, test.want, got)
		}
	}
}

func TestAccessoryNames(t *testing.T) {
	t.Parallel()

	testutil.ExpectEq(t, "MA_1_6", schema.ArrayName(1, schema.TypeInt32))
	testutil.ExpectEq(t, "MA_2_70", schema.ArrayName(2, 70))
	testutil.ExpectEq(t, "MP_12_6", schema.MapName(schema.TypeString, schema.TypeInt32))

	members := []schema.TypeID{70, 12, 6}
	testutil.ExpectEq(t, "CB_6_12_70", schema.UnionName(members))
	testutil.ExpectSliceEq(t, []schema.TypeID{70, 12, 6}, members)
}

func TestNatives(t *testing.T) {
	t.Parallel()

	natives := schema.Natives()
	testutil.AssertEq(t, 12, len(natives))
	for ii, native := range natives {
		testutil.ExpectEq(t, schema.TypeID(ii+1), native.ID)
		byID, ok := schema.NativeByID(native.ID)
		testutil.ExpectTrue(t, ok)
		testutil.ExpectEq(t, native, byID)
	}

	_, ok := schema.LookupNative("int128")
	testutil.ExpectFalse(t, ok)
	_, ok = schema.NativeByID(schema.TypeArray)
	testutil.ExpectFalse(t, ok)

	tests := []struct {
		literal string
		lo      int64
		hi      uint64
	}{
		{"int8", -128, 127},
		{"uint8", 0, 255},
		{"int16", -32768, 32767},
		{"uint32", 0, 4294967295},
		{"int64", -9223372036854775808, 9223372036854775807},
		{"uint64", 0, 18446744073709551615},
	}
	for _, test := range tests {
		native, ok := schema.LookupNative(test.literal)
		testutil.AssertTrue(t, ok)
		testutil.ExpectTrue(t, native.IsInteger())
		lo, hi := native.Range()
		testutil.ExpectEq(t, test.lo, lo)
		testutil.ExpectEq(t, test.hi, hi)
	}

	float32T, _ := schema.LookupNative("float32")
	testutil.ExpectFalse(t, float32T.IsInteger())
}

func TestAlign(t *testing.T) {
	t.Parallel()

	testutil.ExpectEq(t, uint32(1), schema.Align(1))
	testutil.ExpectEq(t, uint32(2), schema.Align(2))
	testutil.ExpectEq(t, uint32(4), schema.Align(8))
	testutil.ExpectEq(t, uint32(4), schema.Align(12))

	testutil.ExpectEq(t, uint32(0), schema.AlignTo(0, 4))
	testutil.ExpectEq(t, uint32(4), schema.AlignTo(1, 4))
	testutil.ExpectEq(t, uint32(6), schema.AlignTo(5, 2))
	testutil.ExpectEq(t, uint32(5), schema.AlignTo(5, 1))
}

func TestTypeStrings(t *testing.T) {
	t.Parallel()

	int32T, _ := schema.LookupNative("int32")
	stringT, _ := schema.LookupNative("string")
	point := &schema.UserDef{ID: 70, Scope: "geo", Name: "Point"}

	testutil.ExpectEq(t, "geo.Point", point.String())
	testutil.ExpectEq(t, "int32[][]", (&schema.Array{Base: int32T, Dims: 2}).String())
	testutil.ExpectEq(t, "<string, geo.Point>", (&schema.Map{Key: stringT, Value: point}).String())
	union := &schema.Union{Members: []schema.Type{int32T, stringT}}
	testutil.ExpectEq(t, "int32 | string", union.String())
	testutil.ExpectEq(t, "(int32 | string)[]", (&schema.Array{Base: union, Dims: 1}).String())
}

func TestSchemaLookups(t *testing.T) {
	t.Parallel()
	s := exampleSchema()

	path, ok := s.StructByName("shapes", "Path")
	testutil.AssertTrue(t, ok)
	testutil.ExpectEq(t, "shapes.Path", path.QualifiedName())
	next, ok := path.Member("next")
	testutil.AssertTrue(t, ok)
	testutil.ExpectEq(t, schema.Reference, next.Ref)
	_, ok = path.Member("missing")
	testutil.ExpectFalse(t, ok)

	kind, ok := s.Enum(64)
	testutil.AssertTrue(t, ok)
	value, ok := kind.Value("SQUARE")
	testutil.ExpectTrue(t, ok)
	testutil.ExpectEq(t, int64(2), value)

	union, ok := s.AccessoryByName("CB_6_12")
	testutil.AssertTrue(t, ok)
	variant, ok := union.Variant(2)
	testutil.ExpectTrue(t, ok)
	testutil.ExpectEq(t, schema.TypeString, variant)
	_, ok = union.Variant(0)
	testutil.ExpectFalse(t, ok)
	_, ok = union.Variant(3)
	testutil.ExpectFalse(t, ok)
	tag, ok := union.VariantTag(schema.TypeInt32)
	testutil.ExpectTrue(t, ok)
	testutil.ExpectEq(t, uint8(1), tag)

	size, ok := s.SizeOf(64)
	testutil.ExpectTrue(t, ok)
	testutil.ExpectEq(t, uint32(2), size)
	size, ok = s.SizeOf(66)
	testutil.ExpectTrue(t, ok)
	testutil.ExpectEq(t, uint32(28), size)
	size, ok = s.SizeOf(schema.TypeString)
	testutil.ExpectTrue(t, ok)
	testutil.ExpectEq(t, uint32(12), size)
	_, ok = s.SizeOf(99)
	testutil.ExpectFalse(t, ok)

	testutil.ExpectEq(t, schema.TypeID(68), s.MaxTypeID())
	testutil.ExpectEq(t, schema.TypeID(63), (&schema.Schema{}).MaxTypeID())
	testutil.ExpectSliceEq(t, []string{"shapes"}, s.Scopes())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	s := exampleSchema()
	testutil.ExpectNoError(t, s.Validate())

	s.Accessories[1].TypeID = 65
	err := s.Validate()
	if !errors.Is(err, schema.ErrDuplicateTypeID) {
		t.Errorf("expected ErrDuplicateTypeID, got %v", err)
	}

	s = exampleSchema()
	s.Enums[0].TypeID = 12
	testutil.ExpectMatch(t, `reserved id 12`, s.Validate().Error())
}

func TestGenerationOrder(t *testing.T) {
	t.Parallel()
	s := exampleSchema()

	order := s.GenerationOrder()
	testutil.AssertEq(t, 5, len(order))
	position := make(map[schema.TypeID]int)
	for ii, id := range order {
		position[id] = ii
	}
	// Path depends on its array accessory, union accessory, and enum; the
	// array accessory depends on Point.
	testutil.ExpectTrue(t, position[65] < position[67])
	testutil.ExpectTrue(t, position[67] < position[66])
	testutil.ExpectTrue(t, position[68] < position[66])
	testutil.ExpectTrue(t, position[64] < position[66])
}

func TestHistoryRoundTrip(t *testing.T) {
	t.Parallel()
	s := exampleSchema()

	data, err := schema.Marshal(s)
	testutil.AssertNoError(t, err)
	testutil.ExpectTrue(t, strings.HasSuffix(string(data), "\n"))
	testutil.ExpectMatch(t, `"digest": "[0-9a-f]{64}"`, string(data))
	testutil.ExpectMatch(t, `"dataType": "int16"`, string(data))
	testutil.ExpectMatch(t, `"refKind": "reference"`, string(data))

	decoded, err := schema.Unmarshal(data)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, "1.2.0", decoded.Version)

	reencoded, err := schema.Marshal(decoded)
	testutil.AssertNoError(t, err)
	testutil.ExpectNoDiff(t, string(data), string(reencoded))

	path, ok := decoded.StructByName("shapes", "Path")
	testutil.AssertTrue(t, ok)
	points, _ := path.Member("points")
	array, ok := points.Type.(*schema.Array)
	testutil.AssertTrue(t, ok)
	testutil.ExpectEq(t, schema.TypeID(67), array.Accessory)
	testutil.ExpectEq(t, "shapes.Point", array.Base.String())
}

func TestHistoryDigestMismatch(t *testing.T) {
	t.Parallel()

	data, err := schema.Marshal(exampleSchema())
	testutil.AssertNoError(t, err)
	tampered := strings.Replace(string(data), `"byteLength": 28`, `"byteLength": 32`, 1)
	testutil.AssertTrue(t, tampered != string(data))

	_, err = schema.Unmarshal([]byte(tampered))
	if !errors.Is(err, schema.ErrDigestMismatch) {
		t.Errorf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestHistoryWithoutDigest(t *testing.T) {
	t.Parallel()

	s, err := schema.Unmarshal([]byte(`{
		"version": "0.1.0",
		"enumDefs": [],
		"structDefs": [],
		"accessories": [
			{"typeId": 64, "type": "arrayOf", "typeName": "MA_1_6", "scope": "", "relyTypes": [6], "byteLength": 12}
		]
	}`))
	testutil.AssertNoError(t, err)
	accessory, ok := s.AccessoryByName("MA_1_6")
	testutil.AssertTrue(t, ok)
	testutil.ExpectEq(t, schema.ArrayOf, accessory.Kind)
	testutil.ExpectEq(t, schema.TypeInt32, accessory.Element())
}

func TestHistoryMalformed(t *testing.T) {
	t.Parallel()

	for _, data := range []string{
		`{`,
		`{"version": "1.0.0", "extra": true}`,
		`{"version": "1.0.0", "enumDefs": [null]}`,
		`{"version": "1.0.0", "accessories": [{"type": "listOf"}]}`,
		`{"version": "1.0.0", "enumDefs": [{"typeId": 64, "dataType": "int128"}]}`,
	} {
		if _, err := schema.Unmarshal([]byte(data)); err == nil {
			t.Errorf("expected error decoding %s", data)
		}
	}
}

func TestHistoryFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, ".smsg.json")

	_, err := schema.ReadFile(path)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}

	testutil.AssertNoError(t, schema.WriteFile(path, exampleSchema()))
	s, err := schema.ReadFile(path)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, schema.TypeID(68), s.MaxTypeID())

	entries, err := os.ReadDir(dir)
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, 1, len(entries))
}
