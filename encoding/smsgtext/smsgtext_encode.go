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

// Package smsgtext renders smsg buffers and schema layouts as text.
package smsgtext

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.smsg-lang.org/smsg"
	"go.smsg-lang.org/smsg/schema"
)

// Encode renders the root struct of buf, one field per line.
func Encode(buf *smsg.Buffer) (string, error) {
	var out strings.Builder
	if err := EncodeTo(buf, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

func EncodeTo(buf *smsg.Buffer, w io.Writer) error {
	e := encoder{
		w:       w,
		visited: map[uint32]bool{smsg.RootOffset: true},
	}
	e.visitStruct(buf.Root())
	return e.err
}

type encoder struct {
	w      io.Writer
	indent int
	err    error

	// Offsets of structs already printed, so references print once.
	visited map[uint32]bool
}

func (e *encoder) line(s string) {
	if e.err != nil {
		return
	}
	if indent := strings.Repeat("\t", e.indent); indent != "" {
		if _, err := io.WriteString(e.w, indent); err != nil {
			e.err = err
			return
		}
	}
	if _, err := io.WriteString(e.w, s); err != nil {
		e.err = err
		return
	}
	if _, err := io.WriteString(e.w, "\n"); err != nil {
		e.err = err
		return
	}
}

func (e *encoder) linef(format string, a ...any) {
	e.line(fmt.Sprintf(format, a...))
}

func (e *encoder) visitStruct(s smsg.Struct) {
	for _, field := range s.Type().Fields() {
		if e.err != nil {
			return
		}
		if field.Ref {
			e.visitRef(s, field)
			continue
		}
		value, err := s.Field(field.Name)
		if err != nil {
			e.err = err
			return
		}
		e.visitValue(field.Name+" = ", value)
	}
}

func (e *encoder) visitRef(s smsg.Struct, field *smsg.FieldInfo) {
	value, err := s.Field(field.Name)
	if err != nil {
		e.linef("%s = null", field.Name)
		return
	}
	if e.visited[value.Offset()] {
		e.linef("%s = @%d", field.Name, value.Offset())
		return
	}
	e.visitValue(fmt.Sprintf("%s = @%d ", field.Name, value.Offset()), value)
}

func (e *encoder) visitValue(prefix string, value smsg.Value) {
	if scalar, ok := fmtScalar(value); ok {
		e.line(prefix + scalar)
		return
	}

	switch value.Type().Kind {
	case smsg.KindStruct:
		s, _ := value.AsStruct()
		e.visited[s.Offset()] = true
		e.line(prefix + "{")
		e.indent += 1
		e.visitStruct(s)
		e.indent -= 1
		e.line("}")
	case smsg.KindArray:
		array, _ := value.AsArray()
		e.visitArray(prefix, array)
	case smsg.KindMap:
		m, _ := value.AsMap()
		if m.Len() == 0 {
			e.line(prefix + "{}")
			return
		}
		e.line(prefix + "{")
		e.indent += 1
		for key, item := range m.All() {
			keyText, _ := fmtScalar(key)
			e.visitValue(keyText+": ", item)
		}
		e.indent -= 1
		e.line("}")
	case smsg.KindUnion:
		union, _ := value.AsUnion()
		item, ok := union.Value()
		if !ok {
			e.line(prefix + "null")
			return
		}
		if scalar, ok := fmtScalar(item); ok {
			e.linef("%s%s(%s)", prefix, item.Type().Name, scalar)
			return
		}
		e.visitValue(prefix+item.Type().Name+" ", item)
	default:
		e.err = fmt.Errorf("smsgtext: unhandled type %s (%v)", value.Type().Name, value.Type().Kind)
	}
}

func (e *encoder) visitArray(prefix string, array smsg.Array) {
	if array.Len() == 0 {
		e.line(prefix + "[]")
		return
	}
	if kind := array.Type().Elem().Kind; kind == smsg.KindNative || kind == smsg.KindEnum {
		var buf strings.Builder
		for ii, item := range array.All() {
			if ii != 0 {
				buf.WriteString(", ")
			}
			scalar, _ := fmtScalar(item)
			buf.WriteString(scalar)
		}
		e.linef("%s[%s]", prefix, buf.String())
		return
	}
	e.line(prefix + "[")
	e.indent += 1
	for _, item := range array.All() {
		e.visitValue("", item)
	}
	e.indent -= 1
	e.line("]")
}

func fmtScalar(value smsg.Value) (string, bool) {
	info := value.Type()
	switch info.Kind {
	case smsg.KindEnum:
		n := integer(value)
		for _, item := range info.Enum.Values {
			if item.Value == n {
				return "." + item.Name, true
			}
		}
		return strconv.FormatInt(n, 10), true
	case smsg.KindNative:
	default:
		return "", false
	}

	switch info.Native.ID {
	case schema.TypeBool:
		if b, _ := smsg.Get[bool](value); b {
			return ".true", true
		}
		return ".false", true
	case schema.TypeFloat32:
		f, _ := smsg.Get[float32](value)
		return strconv.FormatFloat(float64(f), 'g', -1, 32), true
	case schema.TypeFloat64:
		f, _ := smsg.Get[float64](value)
		return strconv.FormatFloat(f, 'g', -1, 64), true
	case schema.TypeUint64:
		u, _ := smsg.Get[uint64](value)
		return strconv.FormatUint(u, 10), true
	case schema.TypeString:
		str, _ := value.AsString()
		return quote(str.Get()), true
	}
	return strconv.FormatInt(integer(value), 10), true
}

// integer reads any integer native (or enum) widened to int64. uint64
// values above MaxInt64 wrap.
func integer(value smsg.Value) int64 {
	switch value.Type().Native.ID {
	case schema.TypeInt8:
		n, _ := smsg.Get[int8](value)
		return int64(n)
	case schema.TypeUint8:
		n, _ := smsg.Get[uint8](value)
		return int64(n)
	case schema.TypeInt16:
		n, _ := smsg.Get[int16](value)
		return int64(n)
	case schema.TypeUint16:
		n, _ := smsg.Get[uint16](value)
		return int64(n)
	case schema.TypeInt32:
		n, _ := smsg.Get[int32](value)
		return int64(n)
	case schema.TypeUint32:
		n, _ := smsg.Get[uint32](value)
		return int64(n)
	case schema.TypeInt64:
		n, _ := smsg.Get[int64](value)
		return n
	case schema.TypeUint64:
		n, _ := smsg.Get[uint64](value)
		return int64(n)
	}
	return 0
}

func quote(text string) string {
	var buf strings.Builder
	buf.WriteByte('"')
	for _, c := range text {
		if c == '\\' || c == '"' {
			buf.WriteByte('\\')
			buf.WriteRune(c)
			continue
		}
		if c == '\t' {
			buf.WriteString("\\t")
			continue
		}
		if c == '\n' {
			buf.WriteString("\\n")
			continue
		}
		if c < 0x20 || c == 0x7F {
			fmt.Fprintf(&buf, "\\x%02X", c)
			continue
		}
		buf.WriteRune(c)
	}
	buf.WriteByte('"')
	return buf.String()
}
