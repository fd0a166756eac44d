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

package smsgtext

import (
	"fmt"
	"io"
	"strings"

	"go.smsg-lang.org/smsg/schema"
)

// EncodeSchema renders the layout of every type in s, grouped by scope
// and in generation order. Only the writer can fail, and a
// strings.Builder never does.
func EncodeSchema(s *schema.Schema) string {
	var out strings.Builder
	_ = EncodeSchemaTo(s, &out)
	return out.String()
}

func EncodeSchemaTo(s *schema.Schema, w io.Writer) error {
	e := schemaEncoder{encoder: encoder{w: w}, schema: s}
	order := s.GenerationOrder()
	for ii, scope := range s.Scopes() {
		if ii != 0 {
			e.line("")
		}
		e.visitScope(scope, order)
	}
	return e.err
}

// EncodeScope renders the layout of the types owned by one scope.
func EncodeScope(s *schema.Schema, scope string) string {
	var out strings.Builder
	e := schemaEncoder{encoder: encoder{w: &out}, schema: s}
	e.visitScope(scope, s.GenerationOrder())
	return out.String()
}

type schemaEncoder struct {
	encoder
	schema *schema.Schema
}

func (e *schemaEncoder) visitScope(scope string, order []schema.TypeID) {
	if scope == schema.GlobalScope {
		e.line("// global")
	} else {
		e.linef("// package %s", scope)
	}
	for _, id := range order {
		if desc, ok := e.schema.Enum(id); ok && desc.Scope == scope {
			e.line("")
			e.visitEnum(desc)
		}
		if desc, ok := e.schema.Struct(id); ok && desc.Scope == scope {
			e.line("")
			e.visitStruct(desc)
		}
		if desc, ok := e.schema.Accessory(id); ok && desc.Scope == scope {
			e.line("")
			e.visitAccessory(desc)
		}
	}
}

func (e *schemaEncoder) visitEnum(desc *schema.EnumDescription) {
	e.linef("enum %s : %s { // id %d", desc.Name, desc.Underlying.Literal, desc.TypeID)
	e.indent += 1
	for _, item := range desc.Values {
		e.linef("%s = %d,", item.Name, item.Value)
	}
	e.indent -= 1
	e.line("}")
}

func (e *schemaEncoder) visitStruct(desc *schema.StructDescription) {
	e.linef("struct %s { // id %d, %d bytes", desc.Name, desc.TypeID, desc.ByteLength)
	e.indent += 1
	for _, member := range desc.Members {
		if member.Ref == schema.Reference {
			e.linef("%s: %s; // @%d, reference", member.Name, member.Type, member.Offset)
			continue
		}
		size, _ := e.schema.SizeOf(member.ResolvedTypeID)
		e.linef("%s: %s; // @%d, %d bytes", member.Name, member.Type, member.Offset, size)
	}
	e.indent -= 1
	e.line("}")
}

func (e *schemaEncoder) visitAccessory(desc *schema.AccessoryDescription) {
	names := make([]string, 0, len(desc.RelyTypes))
	for _, id := range desc.RelyTypes {
		names = append(names, e.typeName(id))
	}
	e.linef("// %s: %s(%s), id %d, %d bytes",
		desc.Name, desc.Kind, strings.Join(names, ", "), desc.TypeID, desc.ByteLength)
}

func (e *schemaEncoder) typeName(id schema.TypeID) string {
	if native, ok := schema.NativeByID(id); ok {
		return native.Literal
	}
	if desc, ok := e.schema.Enum(id); ok {
		return desc.QualifiedName()
	}
	if desc, ok := e.schema.Struct(id); ok {
		return desc.QualifiedName()
	}
	if desc, ok := e.schema.Accessory(id); ok {
		return desc.Name
	}
	return fmt.Sprintf("<%d>", id)
}
