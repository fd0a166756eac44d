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

const minCapacity = 64

// Buffer is a growable arena holding one message. The first HeaderSize
// bytes are [rootTypeId][trashLength][nextAvailable]; bytes past
// nextAvailable are unused capacity.
type Buffer struct {
	table *TypeTable
	data  []uint8
}

// NewBuffer returns a buffer holding a zeroed root struct of type rootID.
func NewBuffer(table *TypeTable, rootID schema.TypeID) (*Buffer, error) {
	root, err := rootInfo(table, rootID)
	if err != nil {
		return nil, err
	}
	next := HeaderSize + align4(root.Size)
	if next > MaxBufferSize {
		return nil, ErrBufferTooLarge
	}
	b := &Buffer{
		table: table,
		data:  make([]uint8, max(minCapacity, next)),
	}
	binary.LittleEndian.PutUint32(b.data[0:], uint32(rootID))
	b.setNextAvailable(next)
	return b, nil
}

// OpenBuffer wraps encoded bytes, as returned by Bytes. The buffer takes
// ownership of data.
func OpenBuffer(table *TypeTable, data []uint8) (*Buffer, error) {
	if len(data) < int(HeaderSize) {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidHeader, len(data))
	}
	if uint64(len(data)) > uint64(MaxBufferSize) {
		return nil, ErrBufferTooLarge
	}
	rootID := schema.TypeID(leUint32(data[0:]))
	root, err := rootInfo(table, rootID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	trash := leUint32(data[4:])
	next := leUint32(data[8:])
	if next > uint32(len(data)) || next < HeaderSize+root.Size || next%4 != 0 {
		return nil, fmt.Errorf("%w: next available offset %d (buffer length %d)",
			ErrInvalidHeader, next, len(data))
	}
	if trash > next-HeaderSize {
		return nil, fmt.Errorf("%w: trash length %d exceeds allocated bytes", ErrInvalidHeader, trash)
	}
	return &Buffer{
		table: table,
		data:  data,
	}, nil
}

func rootInfo(table *TypeTable, rootID schema.TypeID) (*TypeInfo, error) {
	info, ok := table.Lookup(rootID)
	if !ok {
		return nil, fmt.Errorf("root type %d: %w", rootID, ErrUnknownType)
	}
	if info.Kind != KindStruct {
		return nil, fmt.Errorf("root type %q is a %v: %w", info.Name, info.Kind, ErrTypeMismatch)
	}
	return info, nil
}

func (b *Buffer) Table() *TypeTable {
	return b.table
}

// Bytes returns the encoded message. The slice aliases the buffer until the
// next allocation.
func (b *Buffer) Bytes() []uint8 {
	return b.data[:b.NextAvailable()]
}

func (b *Buffer) Cap() uint32 {
	return uint32(len(b.data))
}

func (b *Buffer) RootTypeID() schema.TypeID {
	return schema.TypeID(leUint32(b.data[0:]))
}

// TrashLength is the number of allocated bytes no longer reachable.
func (b *Buffer) TrashLength() uint32 {
	return leUint32(b.data[4:])
}

func (b *Buffer) NextAvailable() uint32 {
	return leUint32(b.data[8:])
}

func (b *Buffer) setNextAvailable(next uint32) {
	binary.LittleEndian.PutUint32(b.data[8:], next)
}

func (b *Buffer) addTrash(n uint32) {
	binary.LittleEndian.PutUint32(b.data[4:], b.TrashLength()+align4(n))
}

func (b *Buffer) Root() Struct {
	info, _ := b.table.Lookup(b.RootTypeID())
	return Struct{buf: b, off: RootOffset, info: info}
}

// Alloc reserves n zeroed bytes, rounded up to a multiple of 4, and
// returns their offset.
func (b *Buffer) Alloc(n uint32) (uint32, error) {
	next := b.NextAvailable()
	if n > MaxBufferSize {
		return 0, fmt.Errorf("allocating %d bytes at offset %d: %w", n, next, ErrBufferTooLarge)
	}
	end := uint64(next) + uint64(align4(n))
	if end > uint64(MaxBufferSize) {
		return 0, fmt.Errorf("allocating %d bytes at offset %d: %w", n, next, ErrBufferTooLarge)
	}
	if end > uint64(len(b.data)) {
		if err := b.grow(uint32(end)); err != nil {
			return 0, err
		}
	}
	clear(b.data[next:end])
	b.setNextAvailable(uint32(end))
	return next, nil
}

// Extend resizes the region [off, off+oldLen) to newLen bytes, returning
// its new offset. A region ending at nextAvailable grows in place;
// otherwise the contents move to a fresh allocation and the old span
// becomes trash.
func (b *Buffer) Extend(off, oldLen, newLen uint32) (uint32, error) {
	oldLen, newLen = align4(oldLen), align4(newLen)
	if newLen <= oldLen {
		return off, nil
	}
	if off+oldLen == b.NextAvailable() {
		if _, err := b.Alloc(newLen - oldLen); err != nil {
			return 0, err
		}
		return off, nil
	}
	newOff, err := b.Alloc(newLen)
	if err != nil {
		return 0, err
	}
	copy(b.data[newOff:], b.data[off:off+oldLen])
	b.addTrash(oldLen)
	return newOff, nil
}

func (b *Buffer) grow(required uint32) error {
	trash := b.TrashLength()
	next := b.NextAvailable()
	if uint64(trash)*2 > uint64(next) {
		return fmt.Errorf("reclaiming %d trash bytes of %d: %w", trash, next, ErrNotImplemented)
	}
	oldCap := uint64(len(b.data))
	extra := uint64(required) - oldCap
	newCap := max(oldCap*2, oldCap+oldCap/2+extra)
	newCap = min(newCap, uint64(MaxBufferSize))
	data := make([]uint8, newCap)
	copy(data, b.data[:next])
	b.data = data
	return nil
}

// Value {{{

// Value is a typed location inside a buffer.
type Value struct {
	buf  *Buffer
	off  uint32
	info *TypeInfo
}

func (v Value) Type() *TypeInfo {
	return v.info
}

func (v Value) Offset() uint32 {
	return v.off
}

func (v Value) bytes() []uint8 {
	return v.buf.data[v.off : v.off+v.info.Size]
}

func checkScalar[T MapKey](info *TypeInfo) error {
	if info.Native == nil || info.Native.ID != scalarTypeID[T]() {
		var zero T
		return fmt.Errorf("%w: %s value accessed as %T", ErrTypeMismatch, info.Name, zero)
	}
	return nil
}

// Get reads a native or enum value.
func Get[T Scalar](v Value) (T, error) {
	if err := checkScalar[T](v.info); err != nil {
		var zero T
		return zero, err
	}
	return getScalar[T](v.bytes()), nil
}

// Set writes a native or enum value.
func Set[T Scalar](v Value, value T) error {
	if err := checkScalar[T](v.info); err != nil {
		return err
	}
	putScalar(v.bytes(), value)
	return nil
}

func (v Value) expect(kind Kind) error {
	if v.info.Kind != kind {
		return fmt.Errorf("%w: %s is a %v, not a %v", ErrTypeMismatch, v.info.Name, v.info.Kind, kind)
	}
	return nil
}

func (v Value) AsString() (String, error) {
	if v.info.Kind != KindNative || v.info.Native.ID != schema.TypeString {
		return String{}, fmt.Errorf("%w: %s is not a string", ErrTypeMismatch, v.info.Name)
	}
	return String{buf: v.buf, off: v.off}, nil
}

func (v Value) AsArray() (Array, error) {
	if err := v.expect(KindArray); err != nil {
		return Array{}, err
	}
	return Array{buf: v.buf, off: v.off, info: v.info}, nil
}

func (v Value) AsMap() (Map, error) {
	if err := v.expect(KindMap); err != nil {
		return Map{}, err
	}
	return Map{buf: v.buf, off: v.off, info: v.info}, nil
}

func (v Value) AsUnion() (Union, error) {
	if err := v.expect(KindUnion); err != nil {
		return Union{}, err
	}
	return Union{buf: v.buf, off: v.off, info: v.info}, nil
}

func (v Value) AsStruct() (Struct, error) {
	if err := v.expect(KindStruct); err != nil {
		return Struct{}, err
	}
	return Struct{buf: v.buf, off: v.off, info: v.info}, nil
}

// }}}
