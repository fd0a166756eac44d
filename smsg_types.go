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

package smsg

import (
	"fmt"

	"go.smsg-lang.org/smsg/schema"
)

type Kind uint8

const (
	KindNative Kind = iota + 1
	KindEnum
	KindStruct
	KindArray
	KindMap
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindEnum:
		return "enum"
	case KindStruct:
		return "struct"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindUnion:
		return "union"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// TypeInfo is the runtime layout of one type id.
type TypeInfo struct {
	ID   schema.TypeID
	Kind Kind
	Name string

	// Size is the in-place byte size: a native's size, an enum's underlying
	// size, a struct's byte length, or a container descriptor's size.
	Size uint32

	// Native is set for natives and enums (the underlying type).
	Native    *schema.Native
	Enum      *schema.EnumDescription
	Struct    *schema.StructDescription
	Accessory *schema.AccessoryDescription

	fields    map[string]*FieldInfo
	fieldList []*FieldInfo

	elem     *TypeInfo
	key      *TypeInfo
	value    *TypeInfo
	variants []*TypeInfo
}

type FieldInfo struct {
	Name   string
	Offset uint32
	Type   *TypeInfo

	// Ref is set for struct members stored as a 4-byte offset.
	Ref bool
}

// Fields returns a struct's members in layout order.
func (t *TypeInfo) Fields() []*FieldInfo {
	return t.fieldList
}

func (t *TypeInfo) Field(name string) (*FieldInfo, bool) {
	field, ok := t.fields[name]
	return field, ok
}

// Elem returns an array's element type.
func (t *TypeInfo) Elem() *TypeInfo {
	return t.elem
}

// KeyValue returns a map's key and value types.
func (t *TypeInfo) KeyValue() (*TypeInfo, *TypeInfo) {
	return t.key, t.value
}

// Variants returns a union's member types; variant i has tag i+1.
func (t *TypeInfo) Variants() []*TypeInfo {
	return t.variants
}

func (t *TypeInfo) String() string {
	return t.Name
}

// TypeTable maps type ids to runtime layouts. It is built once from a
// schema and never modified.
type TypeTable struct {
	schema *schema.Schema
	types  map[schema.TypeID]*TypeInfo
}

func NewTypeTable(s *schema.Schema) (*TypeTable, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	table := &TypeTable{
		schema: s,
		types:  make(map[schema.TypeID]*TypeInfo),
	}
	for _, native := range schema.Natives() {
		table.types[native.ID] = &TypeInfo{
			ID:     native.ID,
			Kind:   KindNative,
			Name:   native.Literal,
			Size:   native.Size,
			Native: native,
		}
	}
	for _, desc := range s.Enums {
		table.types[desc.TypeID] = &TypeInfo{
			ID:     desc.TypeID,
			Kind:   KindEnum,
			Name:   desc.QualifiedName(),
			Size:   desc.Underlying.Size,
			Native: desc.Underlying,
			Enum:   desc,
		}
	}
	for _, desc := range s.Structs {
		table.types[desc.TypeID] = &TypeInfo{
			ID:     desc.TypeID,
			Kind:   KindStruct,
			Name:   desc.QualifiedName(),
			Size:   desc.ByteLength,
			Struct: desc,
			fields: make(map[string]*FieldInfo, len(desc.Members)),
		}
	}
	for _, desc := range s.Accessories {
		info := &TypeInfo{
			ID:        desc.TypeID,
			Name:      desc.Name,
			Size:      desc.ByteLength,
			Accessory: desc,
		}
		switch desc.Kind {
		case schema.ArrayOf:
			info.Kind = KindArray
		case schema.MapOf:
			info.Kind = KindMap
		case schema.UnionOf:
			info.Kind = KindUnion
		default:
			return nil, fmt.Errorf("accessory %q: unknown kind %v", desc.Name, desc.Kind)
		}
		table.types[desc.TypeID] = info
	}

	for _, desc := range s.Accessories {
		if err := table.linkAccessory(table.types[desc.TypeID]); err != nil {
			return nil, err
		}
	}
	for _, desc := range s.Structs {
		if err := table.linkStruct(table.types[desc.TypeID]); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func (t *TypeTable) linkAccessory(info *TypeInfo) error {
	desc := info.Accessory
	rely := make([]*TypeInfo, 0, len(desc.RelyTypes))
	for _, id := range desc.RelyTypes {
		dep, ok := t.types[id]
		if !ok {
			return fmt.Errorf("accessory %q relies on type %d: %w", desc.Name, id, ErrUnknownType)
		}
		rely = append(rely, dep)
	}

	switch info.Kind {
	case KindArray:
		if len(rely) != 1 {
			return fmt.Errorf("array accessory %q has %d element types", desc.Name, len(rely))
		}
		info.elem = rely[0]
	case KindMap:
		if len(rely) != 2 || rely[0].Kind != KindNative {
			return fmt.Errorf("map accessory %q must rely on a native key and a value", desc.Name)
		}
		info.key, info.value = rely[0], rely[1]
	case KindUnion:
		if len(rely) == 0 || len(rely) > 0xFF {
			return fmt.Errorf("union accessory %q has %d variants", desc.Name, len(rely))
		}
		info.variants = rely
	}
	return nil
}

func (t *TypeTable) linkStruct(info *TypeInfo) error {
	desc := info.Struct
	for _, member := range desc.Members {
		memberType, ok := t.types[member.ResolvedTypeID]
		if !ok {
			return fmt.Errorf("struct %q member %q has type %d: %w",
				info.Name, member.Name, member.ResolvedTypeID, ErrUnknownType)
		}
		field := &FieldInfo{
			Name:   member.Name,
			Offset: member.Offset,
			Type:   memberType,
			Ref:    member.Ref == schema.Reference,
		}
		size := memberType.Size
		if field.Ref {
			if memberType.Kind != KindStruct {
				return fmt.Errorf("struct %q member %q: reference to non-struct type %q",
					info.Name, member.Name, memberType.Name)
			}
			size = schema.ReferenceSize
		}
		if uint64(field.Offset)+uint64(size) > uint64(info.Size) {
			return fmt.Errorf("struct %q member %q at offset %d overruns struct length %d: %w",
				info.Name, member.Name, field.Offset, info.Size, ErrOutOfBounds)
		}
		info.fields[member.Name] = field
		info.fieldList = append(info.fieldList, field)
	}
	return nil
}

func (t *TypeTable) Schema() *schema.Schema {
	return t.schema
}

func (t *TypeTable) Lookup(id schema.TypeID) (*TypeInfo, bool) {
	info, ok := t.types[id]
	return info, ok
}

func (t *TypeTable) StructByName(scope, name string) (*TypeInfo, bool) {
	desc, ok := t.schema.StructByName(scope, name)
	if !ok {
		return nil, false
	}
	return t.types[desc.TypeID], true
}
