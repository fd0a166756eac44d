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

// Package schema defines the compiled form of a set of IDL files: struct
// layouts, enums, and the accessory types synthesized for arrays, maps, and
// unions.
package schema

import (
	"fmt"
	"strings"
)

type TypeID uint32

// Reserved type identifiers. Natives occupy 1 through 12; the generic
// shapes have fixed ids; declarations and accessories start at
// MinUserTypeID.
const (
	TypeBool    TypeID = 1
	TypeInt8    TypeID = 2
	TypeUint8   TypeID = 3
	TypeInt16   TypeID = 4
	TypeUint16  TypeID = 5
	TypeInt32   TypeID = 6
	TypeUint32  TypeID = 7
	TypeFloat32 TypeID = 8
	TypeInt64   TypeID = 9
	TypeUint64  TypeID = 10
	TypeFloat64 TypeID = 11
	TypeString  TypeID = 12

	TypeArray TypeID = 61
	TypeMap   TypeID = 62
	TypeUnion TypeID = 63

	MinUserTypeID TypeID = 64
)

// GlobalScope is the scope of accessories shared by more than one scope.
const GlobalScope = ""

const (
	ArrayDescriptorSize = 12
	MapDescriptorSize   = 12
	UnionDescriptorSize = 8
	StringSize          = 12
	ReferenceSize       = 4
)

// Type is one of *Native, *Array, *Map, *Union, or *UserDef.
type Type interface {
	TypeID() TypeID
	String() string
	isType()
}

type Native struct {
	ID      TypeID
	Literal string
	Size    uint32
}

type Array struct {
	Base Type
	Dims uint32

	// Accessory is the id of the outermost single-dimension array
	// accessory, or zero before deduplication.
	Accessory TypeID
}

type Map struct {
	Key       *Native
	Value     Type
	Accessory TypeID
}

type Union struct {
	Members   []Type
	Accessory TypeID
}

// UserDef refers to a declared struct or enum.
type UserDef struct {
	ID    TypeID
	Scope string
	Name  string
}

func (*Native) isType()  {}
func (*Array) isType()   {}
func (*Map) isType()     {}
func (*Union) isType()   {}
func (*UserDef) isType() {}

func (t *Native) TypeID() TypeID  { return t.ID }
func (t *Array) TypeID() TypeID   { return TypeArray }
func (t *Map) TypeID() TypeID     { return TypeMap }
func (t *Union) TypeID() TypeID   { return TypeUnion }
func (t *UserDef) TypeID() TypeID { return t.ID }

func (t *Native) String() string {
	return t.Literal
}

func (t *Array) String() string {
	base := t.Base.String()
	if _, isUnion := t.Base.(*Union); isUnion {
		base = "(" + base + ")"
	}
	return base + strings.Repeat("[]", int(t.Dims))
}

func (t *Map) String() string {
	return fmt.Sprintf("<%s, %s>", t.Key, t.Value)
}

func (t *Union) String() string {
	parts := make([]string, 0, len(t.Members))
	for _, member := range t.Members {
		parts = append(parts, member.String())
	}
	return strings.Join(parts, " | ")
}

func (t *UserDef) String() string {
	if t.Scope == "" {
		return t.Name
	}
	return t.Scope + "." + t.Name
}

// MarshalText encodes a native type as its literal, for fields such as an
// enum's underlying type.
func (t *Native) MarshalText() ([]byte, error) {
	return []byte(t.Literal), nil
}

func (t *Native) UnmarshalText(text []byte) error {
	native, ok := LookupNative(string(text))
	if !ok {
		return fmt.Errorf("unknown native type %q", text)
	}
	*t = *native
	return nil
}

func (t *Native) IsInteger() bool {
	switch t.ID {
	case TypeInt8, TypeUint8, TypeInt16, TypeUint16,
		TypeInt32, TypeUint32, TypeInt64, TypeUint64:
		return true
	}
	return false
}

func (t *Native) IsSigned() bool {
	switch t.ID {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64, TypeFloat32, TypeFloat64:
		return true
	}
	return false
}

// Range returns the inclusive value bounds of an integer native.
func (t *Native) Range() (lo int64, hi uint64) {
	bits := t.Size * 8
	if t.IsSigned() {
		return -(1 << (bits - 1)), 1<<(bits-1) - 1
	}
	if bits == 64 {
		return 0, ^uint64(0)
	}
	return 0, 1<<bits - 1
}

var natives = []*Native{
	{TypeBool, "bool", 1},
	{TypeInt8, "int8", 1},
	{TypeUint8, "uint8", 1},
	{TypeInt16, "int16", 2},
	{TypeUint16, "uint16", 2},
	{TypeInt32, "int32", 4},
	{TypeUint32, "uint32", 4},
	{TypeFloat32, "float32", 4},
	{TypeInt64, "int64", 8},
	{TypeUint64, "uint64", 8},
	{TypeFloat64, "float64", 8},
	{TypeString, "string", StringSize},
}

func LookupNative(literal string) (*Native, bool) {
	for _, native := range natives {
		if native.Literal == literal {
			return native, true
		}
	}
	return nil, false
}

func NativeByID(id TypeID) (*Native, bool) {
	if id >= TypeBool && id <= TypeString {
		return natives[id-1], true
	}
	return nil, false
}

// Natives returns the native type table in id order.
func Natives() []*Native {
	out := make([]*Native, len(natives))
	copy(out, natives)
	return out
}

// Align returns the natural alignment of a value of the given byte size.
func Align(size uint32) uint32 {
	return min(4, size)
}

// AlignTo rounds offset up to a multiple of align.
func AlignTo(offset, align uint32) uint32 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) / align * align
}
