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
	"sort"
)

// Map is a 12-byte [size][capacity][dataOffset] descriptor over entries
// sorted by key. Each entry is a key followed by its value, both padded
// to 4 bytes.
type Map struct {
	buf  *Buffer
	off  uint32
	info *TypeInfo
}

func (m Map) Type() *TypeInfo {
	return m.info
}

func (m Map) Len() uint32 {
	return leUint32(m.buf.data[m.off:])
}

func (m Map) Cap() uint32 {
	return leUint32(m.buf.data[m.off+4:])
}

func (m Map) dataOffset() uint32 {
	return leUint32(m.buf.data[m.off+8:])
}

func (m Map) stride() uint32 {
	return align4(m.info.key.Size) + align4(m.info.value.Size)
}

func (m Map) entry(idx uint32) (Value, Value) {
	off := m.dataOffset() + idx*m.stride()
	key := Value{buf: m.buf, off: off, info: m.info.key}
	value := Value{buf: m.buf, off: off + align4(m.info.key.Size), info: m.info.value}
	return key, value
}

func (m Map) reserve(n uint32) error {
	oldCap := m.Cap()
	if n <= oldCap {
		return nil
	}
	newCap := max(n, min(oldCap*2, oldCap+20), oldCap+1)
	off, err := growRegion(m.buf, m.dataOffset(), oldCap, newCap, m.stride())
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf.data[m.off+4:], newCap)
	binary.LittleEndian.PutUint32(m.buf.data[m.off+8:], off)
	return nil
}

// All yields each entry's key and value in key order.
func (m Map) All() iter.Seq2[Value, Value] {
	return func(yield func(Value, Value) bool) {
		size := m.Len()
		for ii := uint32(0); ii < size; ii++ {
			if !yield(m.entry(ii)) {
				return
			}
		}
	}
}

func readKey[K MapKey](key Value) K {
	var zero K
	if _, isString := any(zero).(string); isString {
		str := String{buf: key.buf, off: key.off}
		return any(str.Get()).(K)
	}
	return readScalarKey[K](key)
}

func readScalarKey[K MapKey](key Value) K {
	var out any
	switch any(*new(K)).(type) {
	case bool:
		out = getScalar[bool](key.bytes())
	case int8:
		out = getScalar[int8](key.bytes())
	case uint8:
		out = getScalar[uint8](key.bytes())
	case int16:
		out = getScalar[int16](key.bytes())
	case uint16:
		out = getScalar[uint16](key.bytes())
	case int32:
		out = getScalar[int32](key.bytes())
	case uint32:
		out = getScalar[uint32](key.bytes())
	case float32:
		out = getScalar[float32](key.bytes())
	case int64:
		out = getScalar[int64](key.bytes())
	case uint64:
		out = getScalar[uint64](key.bytes())
	case float64:
		out = getScalar[float64](key.bytes())
	}
	return out.(K)
}

func writeKey[K MapKey](key Value, value K) error {
	switch v := any(value).(type) {
	case string:
		return String{buf: key.buf, off: key.off}.Set(v)
	case bool:
		putScalar(key.bytes(), v)
	case int8:
		putScalar(key.bytes(), v)
	case uint8:
		putScalar(key.bytes(), v)
	case int16:
		putScalar(key.bytes(), v)
	case uint16:
		putScalar(key.bytes(), v)
	case int32:
		putScalar(key.bytes(), v)
	case uint32:
		putScalar(key.bytes(), v)
	case float32:
		putScalar(key.bytes(), v)
	case int64:
		putScalar(key.bytes(), v)
	case uint64:
		putScalar(key.bytes(), v)
	case float64:
		putScalar(key.bytes(), v)
	}
	return nil
}

// MapAppend adds an entry with a zeroed value and returns the value. Keys
// must be appended in strictly increasing order.
func MapAppend[K MapKey](m Map, key K) (Value, error) {
	if err := checkScalar[K](m.info.key); err != nil {
		return Value{}, err
	}
	size := m.Len()
	if size > 0 {
		lastKey, _ := m.entry(size - 1)
		if last := readKey[K](lastKey); compareKeys(last, key) >= 0 {
			return Value{}, fmt.Errorf("%w: %v after %v", ErrUnsortedKey, key, last)
		}
	}
	if err := m.reserve(size + 1); err != nil {
		return Value{}, err
	}

	keyValue, _ := m.entry(size)
	clear(m.buf.data[keyValue.off : keyValue.off+m.stride()])
	if err := writeKey(keyValue, key); err != nil {
		return Value{}, err
	}
	binary.LittleEndian.PutUint32(m.buf.data[m.off:], size+1)
	_, value := m.entry(size)
	return value, nil
}

// MapLookup finds the value for key by binary search.
func MapLookup[K MapKey](m Map, key K) (Value, bool, error) {
	if err := checkScalar[K](m.info.key); err != nil {
		return Value{}, false, err
	}
	size := int(m.Len())
	idx := sort.Search(size, func(ii int) bool {
		entryKey, _ := m.entry(uint32(ii))
		return compareKeys(readKey[K](entryKey), key) >= 0
	})
	if idx == size {
		return Value{}, false, nil
	}
	entryKey, value := m.entry(uint32(idx))
	if compareKeys(readKey[K](entryKey), key) != 0 {
		return Value{}, false, nil
	}
	return value, true, nil
}
