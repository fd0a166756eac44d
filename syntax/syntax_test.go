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

package syntax_test

import (
	"testing"

	"go.smsg-lang.org/smsg/internal/testutil"
	"go.smsg-lang.org/smsg/syntax"
)

const exampleSource = `// Geometry types.
package demo.geo;

import { Color, Tag } from demo.common;

enum Shape : uint8 {
	Circle = 1,
	Square,
	Polygon = 0x10,
}

/* A point. */
struct Point {
	x: float32;
	y: float32;
}

struct Figure {
	shape: Shape;
	points: Point[];
	grid: int32[][];
	labels: <string, Tag>;
	fill: Color | (int32 | string)[];
	origin: demo.geo.Point;
}
`

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	file, err := syntax.Parse([]byte(exampleSource))
	testutil.AssertNoError(t, err)
	testutil.ExpectNoDiff(t, exampleSource, syntax.Unparse(file))
	testutil.ExpectEq(t, uint32(len(exampleSource)), file.Span().Len())
}

func TestParseStructure(t *testing.T) {
	t.Parallel()

	file, err := syntax.Parse([]byte(exampleSource), syntax.SkipTrivia())
	testutil.AssertNoError(t, err)

	testutil.ExpectEq(t, "demo.geo", file.Package().Name().Get())

	var imports []*syntax.Import
	for imp := range file.Imports() {
		imports = append(imports, imp)
	}
	testutil.AssertEq(t, 1, len(imports))
	testutil.ExpectEq(t, "demo.common", imports[0].From().Get())
	var names []string
	for name := range imports[0].ImportNames() {
		names = append(names, name.Get())
	}
	testutil.ExpectSliceEq(t, []string{"Color", "Tag"}, names)

	var decls []syntax.Node
	for decl := range file.Decls() {
		decls = append(decls, decl)
	}
	testutil.AssertEq(t, 3, len(decls))

	shape := decls[0].(*syntax.Enum)
	testutil.ExpectEq(t, "Shape", shape.Name().Get())
	testutil.ExpectEq(t, "uint8", shape.Type().Get())
	testutil.AssertEq(t, 3, len(shape.Items()))
	testutil.ExpectTrue(t, shape.Items()[1].Value() == nil)
	polygon, ok := shape.Items()[2].Value().GetInt64()
	testutil.ExpectTrue(t, ok)
	testutil.ExpectEq(t, int64(16), polygon)

	figure := decls[2].(*syntax.Struct)
	testutil.ExpectEq(t, "Figure", figure.Name().Get())
	members := figure.Members()
	testutil.AssertEq(t, 6, len(members))

	points := members[1].MemberType()
	testutil.ExpectFalse(t, points.IsUnion())
	testutil.ExpectEq(t, uint32(1), points.Terms()[0].Dims())

	grid := members[2].MemberType()
	testutil.ExpectEq(t, uint32(2), grid.Terms()[0].Dims())

	labels := members[3].MemberType().Terms()[0].Primary().(*syntax.MapType)
	testutil.ExpectEq(t, "string", syntax.Unparse(labels.Key()))
	testutil.ExpectEq(t, "Tag", syntax.Unparse(labels.Value()))

	fill := members[4].MemberType()
	testutil.ExpectTrue(t, fill.IsUnion())
	testutil.AssertEq(t, 2, len(fill.Terms()))
	nested := fill.Terms()[1]
	testutil.ExpectEq(t, uint32(1), nested.Dims())
	paren := nested.Primary().(*syntax.ParenType)
	testutil.ExpectTrue(t, paren.Inner().IsUnion())

	origin := members[5].MemberType().Terms()[0].Primary().(*syntax.TypeName)
	testutil.ExpectEq(t, "demo.geo", origin.Name().Qualifier())
	testutil.ExpectEq(t, "Point", origin.Name().Last().Get())
}

func TestParseWithoutPackage(t *testing.T) {
	t.Parallel()

	file, err := syntax.Parse([]byte("enum E { A }\nstruct S { e: E; }\n"))
	testutil.AssertNoError(t, err)
	testutil.ExpectTrue(t, file.Package() == nil)

	var count int
	for range file.Decls() {
		count++
	}
	testutil.ExpectEq(t, 2, count)
}

func TestParseEmptyStructAndEnum(t *testing.T) {
	t.Parallel()

	opts := syntax.NewParseOptions()
	st, err := opts.ParseStruct([]byte("struct Empty {}"))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, 0, len(st.Members()))

	en, err := opts.ParseEnum([]byte("enum E : int16 {}"))
	testutil.AssertNoError(t, err)
	testutil.ExpectEq(t, 0, len(en.Items()))
}

func TestParseTypeExpr(t *testing.T) {
	t.Parallel()

	opts := syntax.NewParseOptions()
	expr, err := opts.ParseTypeExpr([]byte("<int32, <string, Foo[]>>[][]"))
	testutil.AssertNoError(t, err)
	testutil.AssertEq(t, 1, len(expr.Terms()))
	term := expr.Terms()[0]
	testutil.ExpectEq(t, uint32(2), term.Dims())
	outer := term.Primary().(*syntax.MapType)
	inner := outer.Value().Terms()[0].Primary().(*syntax.MapType)
	testutil.ExpectEq(t, uint32(1), inner.Value().Terms()[0].Dims())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		code uint32
		span syntax.Span
	}{
		{"missing semicolon", "struct S { a: int32 }", 2001, syntax.NewSpan(20, 1)},
		{"missing colon", "struct S { a int32; }", 2000, syntax.NewSpan(13, 5)},
		{"bad type", "struct S { a: 5; }", 2019, syntax.NewSpan(14, 1)},
		{"unknown decl", "message M {}", 2018, syntax.NewSpan(0, 7)},
		{"not a decl", "{}", 2017, syntax.NewSpan(0, 1)},
		{"late package", "struct S { a: int8; }\npackage p;", 2022, syntax.NewSpan(22, 7)},
		{"late import", "enum E { A }\nimport { X } from p;", 2023, syntax.NewSpan(13, 6)},
		{"import without from", "import { X } p;", 2016, syntax.NewSpan(13, 1)},
		{"unclosed map", "struct S { m: <int32, int32; }", 2013, syntax.NewSpan(27, 1)},
		{"enum value", "enum E { A = B }", 2014, syntax.NewSpan(13, 1)},
		{"missing enum comma", "enum E { A B }", 2007, syntax.NewSpan(11, 1)},
		{"int overflow", "enum E { A = -99999999999999999999 }", 2020, syntax.NewSpan(13, 21)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := syntax.Parse([]byte(test.src))
			testutil.AssertError(t, err)
			parseErr := err.(*syntax.Error)
			testutil.ExpectEq(t, test.code, parseErr.Code())
			testutil.ExpectEq(t, test.span, parseErr.Span())
		})
	}
}
