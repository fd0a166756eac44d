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

package compiler

import (
	"fmt"
	"strings"

	"go.smsg-lang.org/smsg/syntax"
)

type Error struct {
	code    uint32
	message string
	path    string
	span    syntax.Span
}

var _ error = (*Error)(nil)

// Sentinels for use with errors.Is. An *Error matches a sentinel when
// their codes are equal.
var (
	ErrUndefinedType       error = &Error{code: 3000}
	ErrDuplicateType       error = &Error{code: 3001}
	ErrInvalidMapKey       error = &Error{code: 3002}
	ErrNestedUnion         error = &Error{code: 3003}
	ErrUnsupportedCycle    error = &Error{code: 3004}
	ErrNonMonotonicVersion error = &Error{code: 3005}
	ErrMissingAccessory    error = &Error{code: 3006}
	ErrHistoryParse        error = &Error{code: 3007}
	ErrEmptyStruct         error = &Error{code: 3008}
	ErrInvalidEnumType     error = &Error{code: 3009}
	ErrEnumValueOutOfRange error = &Error{code: 3010}
	ErrDuplicateMember     error = &Error{code: 3011}
	ErrInvalidVersion      error = &Error{code: 3012}
)

func (err *Error) Error() string {
	return fmt.Sprintf("E%d: %s", err.code, err.message)
}

func (err *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.code == err.code
}

func (err *Error) Code() uint32 {
	return err.code
}

func (err *Error) Message() string {
	return err.message
}

// Path is the source file (or history file) the error was found in. It is
// empty for errors not tied to a file.
func (err *Error) Path() string {
	return err.path
}

func (err *Error) Span() syntax.Span {
	return err.span
}

func errUndefinedType(name string, span syntax.Span) *Error {
	return &Error{
		code:    3000,
		message: fmt.Sprintf("Type '%s' is not defined", name),
		span:    span,
	}
}

func errUndefinedPackage(pkg string, span syntax.Span) *Error {
	return &Error{
		code:    3000,
		message: fmt.Sprintf("Package %q is not declared by any input file", pkg),
		span:    span,
	}
}

func errImportNameNotFound(pkg, name string, span syntax.Span) *Error {
	return &Error{
		code:    3000,
		message: fmt.Sprintf("Name '%s' not found in package %q", name, pkg),
		span:    span,
	}
}

func errDeclNameConflict(scope, name string, span syntax.Span) *Error {
	return &Error{
		code: 3001,
		message: fmt.Sprintf(
			"Declaration of '%s' conflicts with earlier declaration in %s",
			name, fmtScope(scope),
		),
		span: span,
	}
}

func errDeclShadowsNative(name string, span syntax.Span) *Error {
	return &Error{
		code:    3001,
		message: fmt.Sprintf("Declaration of '%s' conflicts with the native type", name),
		span:    span,
	}
}

func errImportConflictsWithDecl(pkg, name string, span syntax.Span) *Error {
	return &Error{
		code: 3001,
		message: fmt.Sprintf(
			"Import of '%s' from package %q conflicts with a local declaration",
			name, pkg,
		),
		span: span,
	}
}

func errImportNameConflict(prevPkg, pkg, name string, span syntax.Span) *Error {
	return &Error{
		code: 3001,
		message: fmt.Sprintf(
			"Import of '%s' from package %q conflicts with earlier import"+
				" of '%s' from package %q",
			name, pkg, name, prevPkg,
		),
		span: span,
	}
}

func errHistoryDuplicateTypeID(cause error) *Error {
	return &Error{
		code:    3001,
		message: fmt.Sprintf("Previous schema is inconsistent: %v", cause),
	}
}

func errSchemaInconsistent(cause error) *Error {
	return &Error{
		code:    3001,
		message: fmt.Sprintf("Compiled schema assigns a type id twice: %v", cause),
	}
}

func errInvalidMapKey(key string, span syntax.Span) *Error {
	return &Error{
		code:    3002,
		message: fmt.Sprintf("Map key type '%s' is not a native type", key),
		span:    span,
	}
}

func errNestedUnion(span syntax.Span) *Error {
	return &Error{
		code:    3003,
		message: "Union member is itself a union",
		span:    span,
	}
}

func errUnsupportedCycle(cycle []string, span syntax.Span) *Error {
	return &Error{
		code: 3004,
		message: fmt.Sprintf(
			"Struct '%s' contains itself inline (%s)",
			cycle[0], strings.Join(cycle, " -> "),
		),
		span: span,
	}
}

func errNonMonotonicVersion(prev, next string) *Error {
	return &Error{
		code: 3005,
		message: fmt.Sprintf(
			"Version %s is lower than the previously compiled version %s",
			next, prev,
		),
	}
}

func errMissingAccessory(structName, memberName string, span syntax.Span) *Error {
	return &Error{
		code: 3006,
		message: fmt.Sprintf(
			"No accessory registered for member '%s' of struct '%s'",
			memberName, structName,
		),
		span: span,
	}
}

func errHistoryParse(cause error) *Error {
	return &Error{
		code:    3007,
		message: fmt.Sprintf("Failed to load previous schema: %v", cause),
	}
}

func errEmptyStruct(name string, span syntax.Span) *Error {
	return &Error{
		code:    3008,
		message: fmt.Sprintf("Struct '%s' has no members", name),
		span:    span,
	}
}

func errInvalidEnumType(name string, span syntax.Span) *Error {
	return &Error{
		code: 3009,
		message: fmt.Sprintf(
			"Enum type '%s' is invalid (expected an integer type of at most 4 bytes)",
			name,
		),
		span: span,
	}
}

func errEnumValueOutOfRange(enumType, item, value string, span syntax.Span) *Error {
	return &Error{
		code: 3010,
		message: fmt.Sprintf(
			"Value %s of enum item '%s' is out of range for type '%s'",
			value, item, enumType,
		),
		span: span,
	}
}

func errDuplicateMember(kind, name string, span syntax.Span) *Error {
	return &Error{
		code:    3011,
		message: fmt.Sprintf("Duplicate %s '%s'", kind, name),
		span:    span,
	}
}

func errInvalidVersion(version string) *Error {
	return &Error{
		code:    3012,
		message: fmt.Sprintf("Version %q must have the form MAJOR.MINOR.PATCH", version),
	}
}

func fmtScope(scope string) string {
	if scope == "" {
		return "the global scope"
	}
	return fmt.Sprintf("package %q", scope)
}
