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

	"go.smsg-lang.org/smsg/schema"
)

// Values up to this size are stored inside the union descriptor.
const maxInlineVariantSize = 4

// Union is an 8-byte [tag][pad][value or offset] descriptor. The tag is
// the 1-based index of the selected variant; zero means unset.
type Union struct {
	buf  *Buffer
	off  uint32
	info *TypeInfo
}

func (u Union) Type() *TypeInfo {
	return u.info
}

func (u Union) Tag() uint8 {
	return u.buf.data[u.off]
}

func (u Union) variant(tag uint8) (*TypeInfo, bool) {
	if tag == 0 || int(tag) > len(u.info.variants) {
		return nil, false
	}
	return u.info.variants[tag-1], true
}

// Variant returns the selected variant's type.
func (u Union) Variant() (*TypeInfo, bool) {
	return u.variant(u.Tag())
}

// Value returns the selected variant's value, or false if unset.
func (u Union) Value() (Value, bool) {
	variant, ok := u.Variant()
	if !ok {
		return Value{}, false
	}
	off := u.off + 4
	if variant.Size > maxInlineVariantSize {
		off = leUint32(u.buf.data[u.off+4:])
	}
	return Value{buf: u.buf, off: off, info: variant}, true
}

// Set selects the variant with the given tag and returns its zeroed value.
func (u Union) Set(tag uint8) (Value, error) {
	variant, ok := u.variant(tag)
	if !ok {
		return Value{}, fmt.Errorf("%s has no variant %d: %w", u.info.Name, tag, ErrOutOfBounds)
	}
	if variant.Size <= maxInlineVariantSize {
		u.Clear()
		u.buf.data[u.off] = tag
		return Value{buf: u.buf, off: u.off + 4, info: variant}, nil
	}

	off, err := u.buf.Alloc(variant.Size)
	if err != nil {
		return Value{}, err
	}
	u.Clear()
	u.buf.data[u.off] = tag
	binary.LittleEndian.PutUint32(u.buf.data[u.off+4:], off)
	return Value{buf: u.buf, off: off, info: variant}, nil
}

// SetType selects the variant with the given type id.
func (u Union) SetType(id schema.TypeID) (Value, error) {
	tag, ok := u.info.Accessory.VariantTag(id)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s has no variant of type %d", ErrTypeMismatch, u.info.Name, id)
	}
	return u.Set(tag)
}

// Clear unsets the union. An out-of-line value becomes trash.
func (u Union) Clear() {
	if variant, ok := u.Variant(); ok && variant.Size > maxInlineVariantSize {
		u.buf.addTrash(variant.Size)
	}
	clear(u.buf.data[u.off : u.off+schema.UnionDescriptorSize])
}
