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
	"encoding/binary"
	"fmt"
	"iter"
)

// Struct is a fixed-layout struct value. Reference members hold the
// offset of another struct, with zero meaning null.
type Struct struct {
	buf  *Buffer
	off  uint32
	info *TypeInfo
}

func (s Struct) Type() *TypeInfo {
	return s.info
}

func (s Struct) Offset() uint32 {
	return s.off
}

func (s Struct) Buffer() *Buffer {
	return s.buf
}

func (s Struct) field(name string) (*FieldInfo, error) {
	field, ok := s.info.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchField, s.info.Name, name)
	}
	return field, nil
}

// Field returns the named member. Reference members are followed.
func (s Struct) Field(name string) (Value, error) {
	field, err := s.field(name)
	if err != nil {
		return Value{}, err
	}
	return s.fieldValue(field)
}

func (s Struct) fieldValue(field *FieldInfo) (Value, error) {
	if !field.Ref {
		return Value{buf: s.buf, off: s.off + field.Offset, info: field.Type}, nil
	}
	target := leUint32(s.buf.data[s.off+field.Offset:])
	if target == 0 {
		return Value{}, fmt.Errorf("%w: %s.%s", ErrNullReference, s.info.Name, field.Name)
	}
	return Value{buf: s.buf, off: target, info: field.Type}, nil
}

// All yields each member in layout order. Null references are skipped.
func (s Struct) All() iter.Seq2[*FieldInfo, Value] {
	return func(yield func(*FieldInfo, Value) bool) {
		for _, field := range s.info.fieldList {
			value, err := s.fieldValue(field)
			if err != nil {
				continue
			}
			if !yield(field, value) {
				return
			}
		}
	}
}

func (s Struct) refField(name string) (*FieldInfo, error) {
	field, err := s.field(name)
	if err != nil {
		return nil, err
	}
	if !field.Ref {
		return nil, fmt.Errorf("%w: %s.%s is not a reference", ErrTypeMismatch, s.info.Name, name)
	}
	return field, nil
}

// IsNull reports whether a reference member is unset.
func (s Struct) IsNull(name string) (bool, error) {
	field, err := s.refField(name)
	if err != nil {
		return false, err
	}
	return leUint32(s.buf.data[s.off+field.Offset:]) == 0, nil
}

// NewRef allocates a zeroed struct and points the reference member at it.
func (s Struct) NewRef(name string) (Struct, error) {
	field, err := s.refField(name)
	if err != nil {
		return Struct{}, err
	}
	off, err := s.buf.Alloc(field.Type.Size)
	if err != nil {
		return Struct{}, err
	}
	binary.LittleEndian.PutUint32(s.buf.data[s.off+field.Offset:], off)
	return Struct{buf: s.buf, off: off, info: field.Type}, nil
}

// SetRef points the reference member at an existing struct in the same
// buffer.
func (s Struct) SetRef(name string, target Struct) error {
	field, err := s.refField(name)
	if err != nil {
		return err
	}
	if target.buf != s.buf || target.info != field.Type {
		return fmt.Errorf("%w: %s.%s cannot refer to %s", ErrTypeMismatch, s.info.Name, name, target.info)
	}
	binary.LittleEndian.PutUint32(s.buf.data[s.off+field.Offset:], target.off)
	return nil
}

func (s Struct) ClearRef(name string) error {
	field, err := s.refField(name)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s.buf.data[s.off+field.Offset:], 0)
	return nil
}
