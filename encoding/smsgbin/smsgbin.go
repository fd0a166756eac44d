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

// Package smsgbin reads encoded smsg buffers, checking that every
// descriptor reachable from the root stays inside the buffer.
package smsgbin

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"go.smsg-lang.org/smsg"
	"go.smsg-lang.org/smsg/schema"
)

var ErrMalformed = errors.New("smsgbin: malformed buffer")

// Open wraps data as a buffer and verifies it.
func Open(table *smsg.TypeTable, data []uint8) (*smsg.Buffer, error) {
	buf, err := smsg.OpenBuffer(table, data)
	if err != nil {
		return nil, err
	}
	if err := Verify(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read reads one encoded buffer from r and verifies it.
func Read(table *smsg.TypeTable, r io.Reader) (*smsg.Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(smsg.MaxBufferSize)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > uint64(smsg.MaxBufferSize) {
		return nil, smsg.ErrBufferTooLarge
	}
	return Open(table, data)
}

// Write writes the encoded form of buf to w.
func Write(w io.Writer, buf *smsg.Buffer) error {
	_, err := w.Write(buf.Bytes())
	return err
}

// Verify checks every string, array, map, union, and reference reachable
// from the root struct.
func Verify(buf *smsg.Buffer) error {
	root := buf.Root().Type()
	v := verifier{
		data:    buf.Bytes(),
		visited: map[uint32]bool{smsg.RootOffset: true},
	}
	v.push(smsg.RootOffset, uint64(root.Size))
	return v.visit(root, smsg.RootOffset, root.Name)
}

type verifier struct {
	data    []uint8
	visited map[uint32]bool

	// Regions of the structs, arrays, maps, and unions enclosing the
	// value being visited.
	enclosing []region
}

type region struct {
	start, end uint64
}

func (v *verifier) errorf(path string, format string, a ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, path, fmt.Sprintf(format, a...))
}

func (v *verifier) u32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(v.data[off:])
}

// region checks that size bytes at off lie in the allocated area.
func (v *verifier) region(path string, off uint32, size uint64) error {
	if off < smsg.HeaderSize || off%4 != 0 {
		return v.errorf(path, "offset %d is not an aligned allocation", off)
	}
	if uint64(off)+size > uint64(len(v.data)) {
		return v.errorf(path, "%d bytes at offset %d overrun buffer of %d bytes", size, off, len(v.data))
	}
	return nil
}

func (v *verifier) push(off uint32, size uint64) {
	v.enclosing = append(v.enclosing, region{uint64(off), uint64(off) + size})
}

func (v *verifier) pop() {
	v.enclosing = v.enclosing[:len(v.enclosing)-1]
}

// enter checks an out-of-line array, map, or union region and pushes it.
// Such a region never overlaps one that encloses it.
func (v *verifier) enter(path string, off uint32, size uint64) error {
	if err := v.region(path, off, size); err != nil {
		return err
	}
	start, end := uint64(off), uint64(off)+size
	for _, r := range v.enclosing {
		if start < r.end && r.start < end {
			return v.errorf(path, "data at offset %d overlaps an enclosing value at offset %d", off, r.start)
		}
	}
	v.push(off, size)
	return nil
}

func (v *verifier) visit(info *smsg.TypeInfo, off uint32, path string) error {
	switch info.Kind {
	case smsg.KindNative:
		switch info.Native.ID {
		case schema.TypeString:
			return v.visitString(off, path)
		case schema.TypeBool:
			if b := v.data[off]; b > 1 {
				return v.errorf(path, "invalid bool %d", b)
			}
		}
		return nil
	case smsg.KindEnum:
		return nil
	case smsg.KindStruct:
		return v.visitStruct(info, off, path)
	case smsg.KindArray:
		return v.visitArray(info, off, path)
	case smsg.KindMap:
		return v.visitMap(info, off, path)
	case smsg.KindUnion:
		return v.visitUnion(info, off, path)
	}
	return v.errorf(path, "unknown kind %v", info.Kind)
}

func (v *verifier) visitString(off uint32, path string) error {
	desc := v.data[off : off+schema.StringSize]
	if desc[0]&0x80 != 0 {
		if n := desc[0] &^ 0x80; n >= schema.StringSize {
			return v.errorf(path, "inline string length %d", n)
		}
		return nil
	}
	dataOff := binary.BigEndian.Uint32(desc[0:])
	length := binary.LittleEndian.Uint32(desc[4:])
	capacity := binary.LittleEndian.Uint32(desc[8:])
	if dataOff == 0 && length == 0 && capacity == 0 {
		return nil
	}
	if length > capacity {
		return v.errorf(path, "string length %d exceeds capacity %d", length, capacity)
	}
	return v.region(path, dataOff, uint64(capacity))
}

func (v *verifier) visitStruct(info *smsg.TypeInfo, off uint32, path string) error {
	for _, field := range info.Fields() {
		fieldPath := path + "." + field.Name
		if !field.Ref {
			if err := v.visit(field.Type, off+field.Offset, fieldPath); err != nil {
				return err
			}
			continue
		}
		target := v.u32(off + field.Offset)
		if target == 0 || v.visited[target] {
			continue
		}
		if err := v.region(fieldPath, target, uint64(field.Type.Size)); err != nil {
			return err
		}
		v.visited[target] = true
		v.push(target, uint64(field.Type.Size))
		err := v.visit(field.Type, target, fieldPath)
		v.pop()
		if err != nil {
			return err
		}
	}
	return nil
}

// elements checks a [dataOffset, size, capacity] run and calls fn with the
// index and offset of each element.
func (v *verifier) elements(
	path string,
	dataOff, size, capacity, stride uint32,
	fn func(ii, off uint32) error,
) error {
	if size > capacity {
		return v.errorf(path, "size %d exceeds capacity %d", size, capacity)
	}
	if capacity == 0 {
		return nil
	}
	if err := v.enter(path, dataOff, uint64(capacity)*uint64(stride)); err != nil {
		return err
	}
	defer v.pop()
	for ii := uint32(0); ii < size; ii++ {
		if err := fn(ii, dataOff+ii*stride); err != nil {
			return err
		}
	}
	return nil
}

func (v *verifier) visitArray(info *smsg.TypeInfo, off uint32, path string) error {
	elem := info.Elem()
	return v.elements(path, v.u32(off), v.u32(off+4), v.u32(off+8), elem.Size, func(ii, elemOff uint32) error {
		return v.visit(elem, elemOff, fmt.Sprintf("%s[%d]", path, ii))
	})
}

func (v *verifier) visitMap(info *smsg.TypeInfo, off uint32, path string) error {
	key, value := info.KeyValue()
	keySize := schema.AlignTo(key.Size, 4)
	stride := keySize + schema.AlignTo(value.Size, 4)
	var prev any
	return v.elements(path, v.u32(off+8), v.u32(off), v.u32(off+4), stride, func(ii, entryOff uint32) error {
		entryPath := fmt.Sprintf("%s[%d]", path, ii)
		if err := v.visit(key, entryOff, entryPath); err != nil {
			return err
		}
		current := v.key(key.Native, entryOff)
		if ii > 0 && compareKeys(prev, current) >= 0 {
			return v.errorf(entryPath, "keys out of order")
		}
		prev = current
		return v.visit(value, entryOff+keySize, entryPath)
	})
}

// key decodes a map key as a string, int64, uint64, or float64.
func (v *verifier) key(native *schema.Native, off uint32) any {
	raw := v.data[off:]
	switch native.ID {
	case schema.TypeString:
		if raw[0]&0x80 != 0 {
			return string(raw[1 : 1+raw[0]&^0x80])
		}
		dataOff := binary.BigEndian.Uint32(raw[0:])
		length := binary.LittleEndian.Uint32(raw[4:])
		return string(v.data[dataOff : dataOff+length])
	case schema.TypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	case schema.TypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	}

	var bits uint64
	switch native.Size {
	case 1:
		bits = uint64(raw[0])
	case 2:
		bits = uint64(binary.LittleEndian.Uint16(raw))
	case 4:
		bits = uint64(binary.LittleEndian.Uint32(raw))
	case 8:
		bits = binary.LittleEndian.Uint64(raw)
	}
	if native.IsSigned() {
		shift := 64 - native.Size*8
		return int64(bits<<shift) >> shift
	}
	return bits
}

func compareKeys(a, b any) int {
	switch a := a.(type) {
	case string:
		return bytes.Compare([]byte(a), []byte(b.(string)))
	case int64:
		return cmp.Compare(a, b.(int64))
	case uint64:
		return cmp.Compare(a, b.(uint64))
	case float64:
		return cmp.Compare(a, b.(float64))
	}
	panic("unreachable")
}

func (v *verifier) visitUnion(info *smsg.TypeInfo, off uint32, path string) error {
	tag := v.data[off]
	if tag == 0 {
		return nil
	}
	variants := info.Variants()
	if int(tag) > len(variants) {
		return v.errorf(path, "tag %d of %d variants", tag, len(variants))
	}
	variant := variants[tag-1]
	if variant.Size <= 4 {
		return v.visit(variant, off+4, path)
	}
	target := v.u32(off + 4)
	if err := v.enter(path, target, uint64(variant.Size)); err != nil {
		return err
	}
	defer v.pop()
	return v.visit(variant, target, path)
}
