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

// Package smsg implements the smsg binary message format: a single growable
// buffer holding a root struct and everything reachable from it, addressed
// by buffer-relative offsets.
//
// Views (String, Array, Map, Union, Struct, Value) pair a *Buffer with an
// offset, so they remain valid when the buffer grows. A Buffer is not safe
// for concurrent use.
package smsg

import (
	"cmp"
	"encoding/binary"
	"errors"
	"math"
	"strings"

	"go.smsg-lang.org/smsg/schema"
)

const (
	// MaxBufferSize keeps every offset below 2^31, which the string
	// encoding relies on.
	MaxBufferSize uint32 = 0x7FF00000

	HeaderSize uint32 = 12

	// RootOffset is where the root struct starts.
	RootOffset = HeaderSize
)

var (
	ErrOutOfBounds    = errors.New("smsg: out of bounds")
	ErrNotImplemented = errors.New("smsg: not implemented")
	ErrUnsortedKey    = errors.New("smsg: map keys must be appended in increasing order")
	ErrTypeMismatch   = errors.New("smsg: type mismatch")
	ErrNoSuchField    = errors.New("smsg: no such field")
	ErrBufferTooLarge = errors.New("smsg: buffer too large")
	ErrInvalidHeader  = errors.New("smsg: invalid buffer header")
	ErrUnknownType    = errors.New("smsg: unknown type id")
	ErrNullReference  = errors.New("smsg: null reference")
)

func leUint16(buf []uint8) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

func leUint32(buf []uint8) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

func leUint64(buf []uint8) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

func align4(n uint32) uint32 {
	return schema.AlignTo(n, 4)
}

// Scalar is the set of Go types that native smsg values (other than
// string) are read and written as.
type Scalar interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 |
		float32 | int64 | uint64 | float64
}

// MapKey is the set of Go types usable as map keys.
type MapKey interface {
	Scalar | string
}

func scalarTypeID[T MapKey]() schema.TypeID {
	var zero T
	switch any(zero).(type) {
	case bool:
		return schema.TypeBool
	case int8:
		return schema.TypeInt8
	case uint8:
		return schema.TypeUint8
	case int16:
		return schema.TypeInt16
	case uint16:
		return schema.TypeUint16
	case int32:
		return schema.TypeInt32
	case uint32:
		return schema.TypeUint32
	case float32:
		return schema.TypeFloat32
	case int64:
		return schema.TypeInt64
	case uint64:
		return schema.TypeUint64
	case float64:
		return schema.TypeFloat64
	case string:
		return schema.TypeString
	}
	panic("unreachable")
}

func getScalar[T Scalar](buf []uint8) T {
	var zero T
	var value any
	switch any(zero).(type) {
	case bool:
		value = buf[0] != 0
	case int8:
		value = int8(buf[0])
	case uint8:
		value = buf[0]
	case int16:
		value = int16(leUint16(buf))
	case uint16:
		value = leUint16(buf)
	case int32:
		value = int32(leUint32(buf))
	case uint32:
		value = leUint32(buf)
	case float32:
		value = math.Float32frombits(leUint32(buf))
	case int64:
		value = int64(leUint64(buf))
	case uint64:
		value = leUint64(buf)
	case float64:
		value = math.Float64frombits(leUint64(buf))
	}
	return value.(T)
}

func putScalar[T Scalar](buf []uint8, value T) {
	switch v := any(value).(type) {
	case bool:
		buf[0] = 0
		if v {
			buf[0] = 1
		}
	case int8:
		buf[0] = uint8(v)
	case uint8:
		buf[0] = v
	case int16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case uint16:
		binary.LittleEndian.PutUint16(buf, v)
	case int32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case uint32:
		binary.LittleEndian.PutUint32(buf, v)
	case float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
	case int64:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case uint64:
		binary.LittleEndian.PutUint64(buf, v)
	case float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	}
}

// compareKeys orders map keys: strings byte-wise, numbers numerically,
// false before true.
func compareKeys[K MapKey](a, b K) int {
	switch a := any(a).(type) {
	case bool:
		return cmp.Compare(boolRank(a), boolRank(any(b).(bool)))
	case int8:
		return cmp.Compare(a, any(b).(int8))
	case uint8:
		return cmp.Compare(a, any(b).(uint8))
	case int16:
		return cmp.Compare(a, any(b).(int16))
	case uint16:
		return cmp.Compare(a, any(b).(uint16))
	case int32:
		return cmp.Compare(a, any(b).(int32))
	case uint32:
		return cmp.Compare(a, any(b).(uint32))
	case float32:
		return cmp.Compare(a, any(b).(float32))
	case int64:
		return cmp.Compare(a, any(b).(int64))
	case uint64:
		return cmp.Compare(a, any(b).(uint64))
	case float64:
		return cmp.Compare(a, any(b).(float64))
	case string:
		return strings.Compare(a, any(b).(string))
	}
	panic("unreachable")
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
