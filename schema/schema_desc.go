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

package schema

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var ErrDuplicateTypeID = errors.New("duplicate type id")

type RefKind uint8

const (
	Inline RefKind = iota
	Reference
)

func (k RefKind) String() string {
	switch k {
	case Inline:
		return "inline"
	case Reference:
		return "reference"
	default:
		return fmt.Sprintf("RefKind(%d)", uint8(k))
	}
}

func (k RefKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RefKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "inline":
		*k = Inline
	case "reference":
		*k = Reference
	default:
		return fmt.Errorf("unknown member ref kind %q", text)
	}
	return nil
}

type AccessoryKind uint8

const (
	ArrayOf AccessoryKind = iota + 1
	MapOf
	UnionOf
)

func (k AccessoryKind) String() string {
	switch k {
	case ArrayOf:
		return "arrayOf"
	case MapOf:
		return "mapOf"
	case UnionOf:
		return "unionOf"
	default:
		return fmt.Sprintf("AccessoryKind(%d)", uint8(k))
	}
}

func (k AccessoryKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *AccessoryKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "arrayOf":
		*k = ArrayOf
	case "mapOf":
		*k = MapOf
	case "unionOf":
		*k = UnionOf
	default:
		return fmt.Errorf("unknown accessory kind %q", text)
	}
	return nil
}

func (k AccessoryKind) DescriptorSize() uint32 {
	if k == UnionOf {
		return UnionDescriptorSize
	}
	return ArrayDescriptorSize
}

type Member struct {
	Name string
	Type Type
	Ref  RefKind

	Offset uint32

	// ResolvedTypeID is the native id, accessory id, or declared type id
	// that the member's bytes are laid out as.
	ResolvedTypeID TypeID
}

type StructDescription struct {
	TypeID     TypeID    `json:"typeId"`
	Scope      string    `json:"scope"`
	Name       string    `json:"typeName"`
	ByteLength uint32    `json:"byteLength"`
	Members    []*Member `json:"members"`

	// Dependences lists each declared type directly referenced by a member.
	Dependences []TypeID `json:"dependences"`
}

func (s *StructDescription) Member(name string) (*Member, bool) {
	for _, member := range s.Members {
		if member.Name == name {
			return member, true
		}
	}
	return nil, false
}

func (s *StructDescription) QualifiedName() string {
	return qualify(s.Scope, s.Name)
}

type EnumValue struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

type EnumDescription struct {
	TypeID     TypeID      `json:"typeId"`
	Scope      string      `json:"scope"`
	Name       string      `json:"typeName"`
	Underlying *Native     `json:"dataType"`
	Values     []EnumValue `json:"values"`
}

func (e *EnumDescription) QualifiedName() string {
	return qualify(e.Scope, e.Name)
}

func (e *EnumDescription) Value(name string) (int64, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

type AccessoryDescription struct {
	TypeID     TypeID        `json:"typeId"`
	Kind       AccessoryKind `json:"type"`
	Name       string        `json:"typeName"`
	Scope      string        `json:"scope"`
	RelyTypes  []TypeID      `json:"relyTypes"`
	ByteLength uint32        `json:"byteLength"`
}

// Element returns the element type of an array accessory.
func (a *AccessoryDescription) Element() TypeID {
	return a.RelyTypes[0]
}

// KeyValue returns the key and value types of a map accessory.
func (a *AccessoryDescription) KeyValue() (TypeID, TypeID) {
	return a.RelyTypes[0], a.RelyTypes[1]
}

// Variant returns the member type selected by a 1-based union tag.
func (a *AccessoryDescription) Variant(tag uint8) (TypeID, bool) {
	if tag == 0 || int(tag) > len(a.RelyTypes) {
		return 0, false
	}
	return a.RelyTypes[tag-1], true
}

// VariantTag returns the 1-based union tag of a member type.
func (a *AccessoryDescription) VariantTag(id TypeID) (uint8, bool) {
	idx := slices.Index(a.RelyTypes, id)
	if idx < 0 {
		return 0, false
	}
	return uint8(idx + 1), true
}

// ArrayName, MapName, and UnionName build canonical accessory names from
// constituent type ids.
func ArrayName(dim uint32, base TypeID) string {
	return fmt.Sprintf("MA_%d_%d", dim, base)
}

func MapName(key, value TypeID) string {
	return fmt.Sprintf("MP_%d_%d", key, value)
}

func UnionName(members []TypeID) string {
	sorted := slices.Clone(members)
	slices.Sort(sorted)
	var sb strings.Builder
	sb.WriteString("CB")
	for _, id := range sorted {
		sb.WriteByte('_')
		sb.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return sb.String()
}

type Schema struct {
	Version     string
	Enums       []*EnumDescription
	Structs     []*StructDescription
	Accessories []*AccessoryDescription
}

func (s *Schema) Struct(id TypeID) (*StructDescription, bool) {
	for _, desc := range s.Structs {
		if desc.TypeID == id {
			return desc, true
		}
	}
	return nil, false
}

func (s *Schema) Enum(id TypeID) (*EnumDescription, bool) {
	for _, desc := range s.Enums {
		if desc.TypeID == id {
			return desc, true
		}
	}
	return nil, false
}

func (s *Schema) Accessory(id TypeID) (*AccessoryDescription, bool) {
	for _, desc := range s.Accessories {
		if desc.TypeID == id {
			return desc, true
		}
	}
	return nil, false
}

// StructByName finds a struct by scope and name.
func (s *Schema) StructByName(scope, name string) (*StructDescription, bool) {
	for _, desc := range s.Structs {
		if desc.Scope == scope && desc.Name == name {
			return desc, true
		}
	}
	return nil, false
}

func (s *Schema) EnumByName(scope, name string) (*EnumDescription, bool) {
	for _, desc := range s.Enums {
		if desc.Scope == scope && desc.Name == name {
			return desc, true
		}
	}
	return nil, false
}

func (s *Schema) AccessoryByName(name string) (*AccessoryDescription, bool) {
	for _, desc := range s.Accessories {
		if desc.Name == name {
			return desc, true
		}
	}
	return nil, false
}

// MaxTypeID returns the largest id assigned to any declaration or
// accessory, or MinUserTypeID-1 for an empty schema.
func (s *Schema) MaxTypeID() TypeID {
	maxID := MinUserTypeID - 1
	for _, desc := range s.Enums {
		maxID = max(maxID, desc.TypeID)
	}
	for _, desc := range s.Structs {
		maxID = max(maxID, desc.TypeID)
	}
	for _, desc := range s.Accessories {
		maxID = max(maxID, desc.TypeID)
	}
	return maxID
}

// Validate reports ids that are reserved or assigned more than once.
func (s *Schema) Validate() error {
	seen := make(map[TypeID]string)
	check := func(id TypeID, name string) error {
		if id < MinUserTypeID {
			return fmt.Errorf("type %q has reserved id %d", name, id)
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%w %d (%q and %q)", ErrDuplicateTypeID, id, prev, name)
		}
		seen[id] = name
		return nil
	}
	for _, desc := range s.Enums {
		if err := check(desc.TypeID, desc.QualifiedName()); err != nil {
			return err
		}
	}
	for _, desc := range s.Structs {
		if err := check(desc.TypeID, desc.QualifiedName()); err != nil {
			return err
		}
	}
	for _, desc := range s.Accessories {
		if err := check(desc.TypeID, desc.Name); err != nil {
			return err
		}
	}
	return nil
}

// SizeOf returns the in-place byte size of a value of the given type: the
// native size, an enum's underlying size, a struct's byte length, or an
// accessory descriptor's size.
func (s *Schema) SizeOf(id TypeID) (uint32, bool) {
	if native, ok := NativeByID(id); ok {
		return native.Size, true
	}
	if desc, ok := s.Enum(id); ok {
		return desc.Underlying.Size, true
	}
	if desc, ok := s.Struct(id); ok {
		return desc.ByteLength, true
	}
	if desc, ok := s.Accessory(id); ok {
		return desc.ByteLength, true
	}
	return 0, false
}

// GenerationOrder lists every declared type and accessory such that each
// appears after the types whose size it depends on. Reference members
// impose no ordering.
func (s *Schema) GenerationOrder() []TypeID {
	deps := make(map[TypeID][]TypeID)
	for _, desc := range s.Enums {
		deps[desc.TypeID] = nil
	}
	for _, desc := range s.Accessories {
		deps[desc.TypeID] = userIDs(desc.RelyTypes)
	}
	for _, desc := range s.Structs {
		var ids []TypeID
		for _, member := range desc.Members {
			if member.Ref == Inline {
				ids = append(ids, member.ResolvedTypeID)
			}
		}
		deps[desc.TypeID] = userIDs(ids)
	}

	ids := make([]TypeID, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[TypeID]uint8, len(deps))
	order := make([]TypeID, 0, len(ids))
	var visit func(id TypeID)
	visit = func(id TypeID) {
		if state[id] != unvisited {
			return
		}
		state[id] = visiting
		for _, dep := range deps[id] {
			if _, known := deps[dep]; known {
				visit(dep)
			}
		}
		state[id] = visited
		order = append(order, id)
	}
	for _, id := range ids {
		visit(id)
	}
	return order
}

// Scopes returns the sorted set of scopes that own at least one
// declaration or accessory.
func (s *Schema) Scopes() []string {
	set := make(map[string]struct{})
	for _, desc := range s.Enums {
		set[desc.Scope] = struct{}{}
	}
	for _, desc := range s.Structs {
		set[desc.Scope] = struct{}{}
	}
	for _, desc := range s.Accessories {
		set[desc.Scope] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for scope := range set {
		out = append(out, scope)
	}
	slices.SortFunc(out, cmp.Compare[string])
	return out
}

func userIDs(ids []TypeID) []TypeID {
	var out []TypeID
	for _, id := range ids {
		if id >= MinUserTypeID && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}
