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

package syntax_test

import (
	"testing"

	"go.smsg-lang.org/smsg/internal/testutil"
	"go.smsg-lang.org/smsg/syntax"
)

type strToken struct {
	kind    string
	content string
}

func tokenize(t *testing.T, src string) ([]strToken, error) {
	t.Helper()
	t.Logf("source: %q", src)

	tokens, err := syntax.NewTokens([]byte(src))
	if err != nil {
		return nil, err
	}

	var got []strToken
	rest := src
	for {
		var token syntax.Token
		if err := tokens.Next(&token); err != nil {
			return got, err
		}
		if token.Kind == syntax.T_EOF {
			return got, nil
		}
		got = append(got, strToken{
			kind:    token.Kind.String(),
			content: rest[:token.Len],
		})
		rest = rest[token.Len:]
	}
}

func expectTokens(t *testing.T, src string, want []strToken) {
	t.Helper()
	got, err := tokenize(t, src)
	testutil.AssertNoError(t, err)
	testutil.ExpectSliceEq(t, want, got)
}

func expectTokenError(t *testing.T, src string, code uint32, span syntax.Span) {
	t.Helper()
	_, err := tokenize(t, src)
	testutil.AssertError(t, err)

	parseErr := err.(*syntax.Error)
	testutil.ExpectEq(t, code, parseErr.Code())
	testutil.ExpectEq(t, span, parseErr.Span())
}

func TestComments(t *testing.T) {
	t.Parallel()

	expectTokens(t, "// line\nx", []strToken{
		{"COMMENT", "// line"},
		{"NEWLINE", "\n"},
		{"IDENT", "x"},
	})
	expectTokens(t, "/* a\nb */x", []strToken{
		{"COMMENT", "/* a\nb */"},
		{"IDENT", "x"},
	})
	expectTokens(t, "/**/", []strToken{
		{"COMMENT", "/**/"},
	})
	expectTokenError(t, "/* open", 1006, syntax.NewSpan(0, 7))
	expectTokenError(t, "a / b", 1002, syntax.NewSpan(2, 1))
}

func TestIdents(t *testing.T) {
	t.Parallel()

	expectTokens(t, "abc _x9 A_B", []strToken{
		{"IDENT", "abc"},
		{"SPACE", " "},
		{"IDENT", "_x9"},
		{"SPACE", " "},
		{"IDENT", "A_B"},
	})
}

func TestIntLiterals(t *testing.T) {
	t.Parallel()

	expectTokens(t, "0 12 -3 0x1F 0b101 0o17 0d99 1_000", []strToken{
		{"INT_LIT", "0"},
		{"SPACE", " "},
		{"INT_LIT", "12"},
		{"SPACE", " "},
		{"INT_LIT", "-3"},
		{"SPACE", " "},
		{"HEX_INT_LIT", "0x1F"},
		{"SPACE", " "},
		{"BIN_INT_LIT", "0b101"},
		{"SPACE", " "},
		{"OCT_INT_LIT", "0o17"},
		{"SPACE", " "},
		{"DEC_INT_LIT", "0d99"},
		{"SPACE", " "},
		{"INT_LIT", "1_000"},
	})
	expectTokens(t, "0,", []strToken{
		{"INT_LIT", "0"},
		{"COMMA", ","},
	})
	expectTokenError(t, "12ab", 1005, syntax.NewSpan(0, 4))
	expectTokenError(t, "0b12", 1005, syntax.NewSpan(0, 4))
	expectTokenError(t, "-", 1005, syntax.NewSpan(0, 1))
}

func TestSigils(t *testing.T) {
	t.Parallel()

	expectTokens(t, ":;,.=|{}()[]<>", []strToken{
		{"COLON", ":"},
		{"SEMICOLON", ";"},
		{"COMMA", ","},
		{"DOT", "."},
		{"EQ", "="},
		{"PIPE", "|"},
		{"OPEN_CURL", "{"},
		{"CLOSE_CURL", "}"},
		{"OPEN_PAREN", "("},
		{"CLOSE_PAREN", ")"},
		{"OPEN_SQUARE", "["},
		{"CLOSE_SQUARE", "]"},
		{"OPEN_ANGLE", "<"},
		{"CLOSE_ANGLE", ">"},
	})
}

func TestNewlines(t *testing.T) {
	t.Parallel()

	expectTokens(t, "a\r\nb\n", []strToken{
		{"IDENT", "a"},
		{"NEWLINE", "\r\n"},
		{"IDENT", "b"},
		{"NEWLINE", "\n"},
	})
	expectTokenError(t, "a\rb", 1003, syntax.NewSpan(1, 1))
}

func TestSpaces(t *testing.T) {
	t.Parallel()

	expectTokens(t, " \t x", []strToken{
		{"SPACE", " \t "},
		{"IDENT", "x"},
	})
}

func TestMiscErrors(t *testing.T) {
	t.Parallel()

	_, err := syntax.NewTokens([]byte{'a', 0xFF})
	testutil.AssertError(t, err)
	testutil.ExpectEq(t, uint32(1001), err.(*syntax.Error).Code())
	testutil.ExpectEq(t, syntax.NewSpan(1, 1), err.(*syntax.Error).Span())

	expectTokenError(t, "a $", 1002, syntax.NewSpan(2, 1))
	expectTokenError(t, "\x01", 1003, syntax.NewSpan(0, 1))
}

func TestTokenKindStrings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind syntax.TokenKind
		want string
	}{
		{syntax.T_EOF, "EOF"},
		{syntax.T_SPACE, "SPACE"},
		{syntax.T_NEWLINE, "NEWLINE"},
		{syntax.T_COMMENT, "COMMENT"},
		{syntax.T_COLON, "COLON"},
		{syntax.T_SEMICOLON, "SEMICOLON"},
		{syntax.T_COMMA, "COMMA"},
		{syntax.T_DOT, "DOT"},
		{syntax.T_EQ, "EQ"},
		{syntax.T_PIPE, "PIPE"},
		{syntax.T_OPEN_CURL, "OPEN_CURL"},
		{syntax.T_CLOSE_CURL, "CLOSE_CURL"},
		{syntax.T_OPEN_PAREN, "OPEN_PAREN"},
		{syntax.T_CLOSE_PAREN, "CLOSE_PAREN"},
		{syntax.T_OPEN_SQUARE, "OPEN_SQUARE"},
		{syntax.T_CLOSE_SQUARE, "CLOSE_SQUARE"},
		{syntax.T_OPEN_ANGLE, "OPEN_ANGLE"},
		{syntax.T_CLOSE_ANGLE, "CLOSE_ANGLE"},
		{syntax.T_INT_LIT, "INT_LIT"},
		{syntax.T_BIN_INT_LIT, "BIN_INT_LIT"},
		{syntax.T_OCT_INT_LIT, "OCT_INT_LIT"},
		{syntax.T_DEC_INT_LIT, "DEC_INT_LIT"},
		{syntax.T_HEX_INT_LIT, "HEX_INT_LIT"},
		{syntax.T_IDENT, "IDENT"},
		{syntax.TokenKind(255), "TokenKind(255)"},
	}
	for _, test := range tests {
		t.Run("", func(t *testing.T) {
			testutil.ExpectEq(t, test.want, test.kind.String())
		})
	}
}
