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

// Array is a 12-byte [dataOffset][size][capacity] descriptor over a run of
// fixed-size elements.
type Array struct {
	buf  *Buffer
	off  uint32
	info *TypeInfo
}

func (a Array) Type() *TypeInfo {
	return a.info
}

func (a Array) Len() uint32 {
	return leUint32(a.buf.data[a.off+4:])
}

func (a Array) Cap() uint32 {
	return leUint32(a.buf.data[a.off+8:])
}

func (a Array) dataOffset() uint32 {
	return leUint32(a.buf.data[a.off:])
}

func (a Array) setLen(n uint32) {
	binary.LittleEndian.PutUint32(a.buf.data[a.off+4:], n)
}

// Reserve ensures room for at least n elements. Growth moves the elements,
// so raw offsets taken before a Reserve are stale afterwards.
func (a Array) Reserve(n uint32) error {
	oldCap := a.Cap()
	if n <= oldCap {
		return nil
	}
	newCap := max(n, min(oldCap*2, oldCap+20), oldCap+1)
	off, err := growRegion(a.buf, a.dataOffset(), oldCap, newCap, a.info.elem.Size)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(a.buf.data[a.off:], off)
	binary.LittleEndian.PutUint32(a.buf.data[a.off+8:], newCap)
	return nil
}

// growRegion moves or extends a run of oldCap elements to hold newCap.
func growRegion(buf *Buffer, off, oldCap, newCap, stride uint32) (uint32, error) {
	newLen := uint64(newCap) * uint64(stride)
	if newLen > uint64(MaxBufferSize) {
		return 0, fmt.Errorf("%d elements of %d bytes: %w", newCap, stride, ErrBufferTooLarge)
	}
	if oldCap == 0 {
		return buf.Alloc(uint32(newLen))
	}
	return buf.Extend(off, oldCap*stride, uint32(newLen))
}

// Push appends a zeroed element and returns it.
func (a Array) Push() (Value, error) {
	size := a.Len()
	if size == a.Cap() {
		if err := a.Reserve(size + 1); err != nil {
			return Value{}, err
		}
	}
	elem := a.elemAt(size)
	clear(elem.bytes())
	a.setLen(size + 1)
	return elem, nil
}

// Resize sets the length to n, zeroing any new elements.
func (a Array) Resize(n uint32) error {
	size := a.Len()
	if err := a.Reserve(n); err != nil {
		return err
	}
	if n > size {
		stride := a.info.elem.Size
		start := a.dataOffset() + size*stride
		clear(a.buf.data[start : start+(n-size)*stride])
	}
	a.setLen(n)
	return nil
}

// Clear sets the length to zero and keeps the capacity.
func (a Array) Clear() {
	a.setLen(0)
}

func (a Array) elemAt(idx uint32) Value {
	return Value{
		buf:  a.buf,
		off:  a.dataOffset() + idx*a.info.elem.Size,
		info: a.info.elem,
	}
}

func (a Array) Elem(idx uint32) (Value, error) {
	if size := a.Len(); idx >= size {
		return Value{}, fmt.Errorf("%s element %d of %d: %w", a.info.Name, idx, size, ErrOutOfBounds)
	}
	return a.elemAt(idx), nil
}

func (a Array) All() iter.Seq2[uint32, Value] {
	return func(yield func(uint32, Value) bool) {
		size := a.Len()
		for ii := uint32(0); ii < size; ii++ {
			if !yield(ii, a.elemAt(ii)) {
				return
			}
		}
	}
}

// ArrayAppend pushes a native or enum element.
func ArrayAppend[T Scalar](a Array, value T) error {
	if err := checkScalar[T](a.info.elem); err != nil {
		return err
	}
	elem, err := a.Push()
	if err != nil {
		return err
	}
	putScalar(elem.bytes(), value)
	return nil
}

// ArrayCollect reads every element of a native or enum array.
func ArrayCollect[T Scalar](a Array) ([]T, error) {
	if err := checkScalar[T](a.info.elem); err != nil {
		return nil, err
	}
	out := make([]T, 0, a.Len())
	for _, elem := range a.All() {
		out = append(out, getScalar[T](elem.bytes()))
	}
	return out, nil
}
