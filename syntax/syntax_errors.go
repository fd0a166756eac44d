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

package syntax

import (
	"fmt"
	"math"
	"unicode/utf8"
)

type Error struct {
	code    uint32
	message string
	span    Span
}

var _ error = (*Error)(nil)

func (err *Error) Error() string {
	return fmt.Sprintf("E%d: %s", err.code, err.message)
}

func (err *Error) Code() uint32 {
	return err.code
}

func (err *Error) Message() string {
	return err.message
}

func (err *Error) Span() Span {
	return err.span
}

func errSourceTooLong(srcLen int) error {
	lenUint32 := uint32(math.MaxUint32)
	if uint64(srcLen) < math.MaxUint32 {
		lenUint32 = uint32(srcLen)
	}
	return &Error{
		code: 1000,
		message: fmt.Sprintf(
			"Source file size (%d bytes) exceeds maximum (%d bytes)",
			srcLen, maxSrcLen,
		),
		span: Span{0, lenUint32},
	}
}

func errInvalidUtf8(src []byte) error {
	var off uint32
	for len(src) > 0 {
		r, size := utf8.DecodeRune(src)
		if r == utf8.RuneError {
			break
		}
		off += uint32(size)
		src = src[size:]
	}
	return &Error{
		code:    1001,
		message: "Source file contains invalid UTF-8",
		span:    Span{off, 1},
	}
}

func errUnexpectedCharacter(start uint32, r rune) error {
	return &Error{
		code:    1002,
		message: fmt.Sprintf("Unexpected character '%s' (U+%04X)", string(r), r),
		span:    Span{start, uint32(utf8.RuneLen(r))},
	}
}

func errForbiddenControlCharacter(start uint32, c byte) error {
	return &Error{
		code:    1003,
		message: fmt.Sprintf("Forbidden control character U+%04X", c),
		span:    Span{start, 1},
	}
}

func errTokenTooLong(start uint32, tokenLen int) error {
	lenUint32 := uint32(math.MaxUint32)
	if uint64(tokenLen) < math.MaxUint32 {
		lenUint32 = uint32(tokenLen)
	}
	return &Error{
		code: 1004,
		message: fmt.Sprintf(
			"Token size (%d bytes) exceeds maximum (%d bytes)",
			tokenLen, maxTokenLen,
		),
		span: Span{start, lenUint32},
	}
}

func errIntLitInvalid(start uint32, token []byte) error {
	tokenLen := uint32(math.MaxUint32)
	if uint64(len(token)) < math.MaxUint32 {
		tokenLen = uint32(len(token))
	}
	return &Error{
		code:    1005,
		message: fmt.Sprintf("Invalid integer literal %q", token),
		span:    Span{start, tokenLen},
	}
}

func errCommentUnterminated(start, tokenLen uint32) error {
	return &Error{
		code:    1006,
		message: "Unterminated block comment",
		span:    Span{start, tokenLen},
	}
}

func errExpectedSigil(
	wantKind TokenKind,
	gotKind TokenKind,
	gotToken string,
	span Span,
) error {
	var code uint32
	var want string
	switch wantKind {
	case T_COLON:
		code = 2000
		want = ":"
	case T_SEMICOLON:
		code = 2001
		want = ";"
	case T_COMMA:
		code = 2002
		want = ","
	case T_DOT:
		code = 2003
		want = "."
	case T_EQ:
		code = 2004
		want = "="
	case T_PIPE:
		code = 2005
		want = "|"
	case T_OPEN_CURL:
		code = 2006
		want = "{"
	case T_CLOSE_CURL:
		code = 2007
		want = "}"
	case T_OPEN_PAREN:
		code = 2008
		want = "("
	case T_CLOSE_PAREN:
		code = 2009
		want = ")"
	case T_OPEN_SQUARE:
		code = 2010
		want = "["
	case T_CLOSE_SQUARE:
		code = 2011
		want = "]"
	case T_OPEN_ANGLE:
		code = 2012
		want = "<"
	case T_CLOSE_ANGLE:
		code = 2013
		want = ">"
	default:
		panic("unreachable")
	}
	return &Error{
		code:    code,
		message: fmt.Sprintf("Expected sigil '%s', got (%s %q)", want, gotKind, gotToken),
		span:    span,
	}
}

func errExpectedIntLit(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2014,
		message: fmt.Sprintf("Expected integer literal, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedIdent(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2015,
		message: fmt.Sprintf("Expected identifier, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedKeywordFrom(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2016,
		message: fmt.Sprintf("Expected keyword 'from', got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errExpectedDeclaration(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2017,
		message: fmt.Sprintf("Expected declaration keyword, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errUnknownDeclaration(token string, span Span) error {
	return &Error{
		code:    2018,
		message: fmt.Sprintf("Unknown declaration keyword %q", token),
		span:    span,
	}
}

func errExpectedType(gotKind TokenKind, gotToken string, span Span) error {
	return &Error{
		code:    2019,
		message: fmt.Sprintf("Expected type expression, got (%s %q)", gotKind, gotToken),
		span:    span,
	}
}

func errIntLitTooPositive(token string, start uint32) error {
	return &Error{
		code: 2020,
		message: fmt.Sprintf(
			"Integer literal too positive (must be <= %d)",
			uint64(math.MaxUint64),
		),
		span: Span{
			start: start,
			len:   uint32(len(token)),
		},
	}
}

func errIntLitTooNegative(token string, start uint32) error {
	return &Error{
		code: 2021,
		message: fmt.Sprintf(
			"Integer literal too negative (must be >= %d)",
			int64(math.MinInt64),
		),
		span: Span{
			start: start,
			len:   uint32(len(token)),
		},
	}
}

func errMisplacedPackage(span Span) error {
	return &Error{
		code:    2022,
		message: "Package statement must precede imports and declarations",
		span:    span,
	}
}

func errMisplacedImport(span Span) error {
	return &Error{
		code:    2023,
		message: "Import statement must precede declarations",
		span:    span,
	}
}
