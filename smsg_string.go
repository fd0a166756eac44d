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

const (
	inlineFlag   = 0x80
	maxInlineLen = schema.StringSize - 1
)

// String is a 12-byte string descriptor. Payloads shorter than 12 bytes
// are stored inline after a length byte with the high bit set. Longer
// payloads are stored as [dataOffset][length][capacity], with dataOffset
// big-endian so the first byte never has the high bit set.
type String struct {
	buf *Buffer
	off uint32
}

func (s String) desc() []uint8 {
	return s.buf.data[s.off : s.off+schema.StringSize]
}

func (s String) IsInline() bool {
	return s.desc()[0]&inlineFlag != 0
}

func (s String) Len() uint32 {
	desc := s.desc()
	if desc[0]&inlineFlag != 0 {
		return uint32(desc[0] &^ inlineFlag)
	}
	return leUint32(desc[4:])
}

// Cap returns the out-of-line capacity, or zero for an inline string.
func (s String) Cap() uint32 {
	desc := s.desc()
	if desc[0]&inlineFlag != 0 {
		return 0
	}
	return leUint32(desc[8:])
}

func (s String) dataOffset() uint32 {
	return binary.BigEndian.Uint32(s.desc()[0:])
}

func (s String) Get() string {
	desc := s.desc()
	if desc[0]&inlineFlag != 0 {
		return string(desc[1 : 1+desc[0]&^inlineFlag])
	}
	n := leUint32(desc[4:])
	if n == 0 {
		return ""
	}
	off := s.dataOffset()
	return string(s.buf.data[off : off+n])
}

func (s String) Set(value string) error {
	if uint64(len(value)) >= uint64(MaxBufferSize) {
		return fmt.Errorf("string of %d bytes: %w", len(value), ErrBufferTooLarge)
	}
	n := uint32(len(value))
	oldCap := s.Cap()

	if n <= maxInlineLen {
		if oldCap > 0 {
			s.buf.addTrash(oldCap)
		}
		desc := s.desc()
		clear(desc)
		desc[0] = inlineFlag | uint8(n)
		copy(desc[1:], value)
		return nil
	}

	if oldCap >= n {
		off := s.dataOffset()
		copy(s.buf.data[off:], value)
		binary.LittleEndian.PutUint32(s.desc()[4:], n)
		return nil
	}

	off, err := s.buf.Alloc(n)
	if err != nil {
		return err
	}
	if oldCap > 0 {
		s.buf.addTrash(oldCap)
	}
	copy(s.buf.data[off:], value)
	desc := s.desc()
	binary.BigEndian.PutUint32(desc[0:], off)
	binary.LittleEndian.PutUint32(desc[4:], n)
	binary.LittleEndian.PutUint32(desc[8:], align4(n))
	return nil
}
