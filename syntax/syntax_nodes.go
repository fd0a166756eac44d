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
	"bytes"
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"
)

type Span struct {
	start, len uint32
}

func NewSpan(start, len uint32) Span {
	return Span{start, len}
}

func (s Span) Start() uint32 {
	return s.start
}

func (s Span) End() uint32 {
	return s.start + s.len
}

func (s Span) Len() uint32 {
	return s.len
}

type Node interface {
	Span() Span

	ChildNodes() iter.Seq[Node]

	privChildren() []Node

	UnparseTo(buf *bytes.Buffer)
}

func Unparse(node Node) string {
	var buf bytes.Buffer
	node.UnparseTo(&buf)
	return buf.String()
}

func Walk(node Node, walkFn func(Node) bool) {
	if node == nil || !walkFn(node) {
		return
	}
	for _, child := range node.privChildren() {
		Walk(child, walkFn)
	}
	walkFn(nil)
}

func iterChildren(childNodes []Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, child := range childNodes {
			if !yield(child) {
				return
			}
		}
	}
}

type leafNode struct{}

func (*leafNode) ChildNodes() iter.Seq[Node] {
	return func(_yield func(Node) bool) {}
}

func (*leafNode) privChildren() []Node {
	return nil
}

type branchNode struct {
	span       Span
	childNodes []Node
}

func (n *branchNode) Span() Span {
	return n.span
}

func (n *branchNode) ChildNodes() iter.Seq[Node] {
	return iterChildren(n.childNodes)
}

func (n *branchNode) privChildren() []Node {
	return n.childNodes
}

func (n *branchNode) UnparseTo(buf *bytes.Buffer) {
	for _, childNode := range n.childNodes {
		childNode.UnparseTo(buf)
	}
}

type Space struct {
	leafNode
	raw   string
	start uint32
}

var _ Node = (*Space)(nil)

func (n *Space) Span() Span {
	return Span{
		start: n.start,
		len:   uint32(len(n.raw)),
	}
}

func (n *Space) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

type Newline struct {
	leafNode
	start uint32
	crlf  bool
}

var _ Node = (*Newline)(nil)

func (n *Newline) Span() Span {
	var len uint32
	if n.crlf {
		len = 2
	} else {
		len = 1
	}
	return Span{
		start: n.start,
		len:   len,
	}
}

func (n *Newline) UnparseTo(buf *bytes.Buffer) {
	if n.crlf {
		buf.WriteString("\r\n")
	} else {
		buf.WriteByte('\n')
	}
}

type Comment struct {
	leafNode
	raw   string
	start uint32
}

var _ Node = (*Comment)(nil)

func (n *Comment) Span() Span {
	return Span{
		start: n.start,
		len:   uint32(len(n.raw)),
	}
}

func (n *Comment) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

func (n *Comment) Text() string {
	return n.raw
}

func (n *Comment) IsDocComment() bool {
	return strings.HasPrefix(n.raw, "///") || strings.HasPrefix(n.raw, "/**")
}

type IntLit struct {
	leafNode
	raw   string
	value uint64
	start uint32
}

var _ Node = (*IntLit)(nil)

func (n *IntLit) Span() Span {
	return Span{
		start: n.start,
		len:   uint32(len(n.raw)),
	}
}

func (n *IntLit) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

func newIntLit(token string, kind TokenKind, start uint32) (*IntLit, error) {
	base := 10
	valueStr := token
	if valueStr[0] == '-' {
		valueStr = valueStr[1:]
	}
	switch kind {
	case T_BIN_INT_LIT:
		base = 2
		valueStr = valueStr[2:]
	case T_OCT_INT_LIT:
		base = 8
		valueStr = valueStr[2:]
	case T_DEC_INT_LIT:
		base = 10
		valueStr = valueStr[2:]
	case T_HEX_INT_LIT:
		base = 16
		valueStr = valueStr[2:]
	}
	valueStr = strings.ReplaceAll(valueStr, "_", "")

	value, err := strconv.ParseUint(valueStr, base, 64)
	if err != nil {
		return nil, errIntLitTooPositive(token, start)
	}
	if token[0] == '-' {
		if value > (uint64(math.MaxInt64) + 1) {
			return nil, errIntLitTooNegative(token, start)
		}
		value = uint64(-int64(value))
	}

	return &IntLit{
		raw:   token,
		value: value,
		start: start,
	}, nil
}

func (n *IntLit) IsNegative() bool {
	return n.raw[0] == '-'
}

func (n *IntLit) GetUint64() (uint64, bool) {
	if n.raw[0] != '-' {
		return n.value, true
	}
	return 0, false
}

func (n *IntLit) GetInt64() (int64, bool) {
	if n.raw[0] == '-' || n.value <= math.MaxInt64 {
		return int64(n.value), true
	}
	return 0, false
}

type Sigil struct {
	leafNode
	raw   byte
	start uint32
}

var _ Node = (*Sigil)(nil)

func (n *Sigil) Span() Span {
	return Span{
		start: n.start,
		len:   1,
	}
}

func (n *Sigil) UnparseTo(buf *bytes.Buffer) {
	buf.WriteByte(n.raw)
}

type Ident struct {
	leafNode
	raw   string
	start uint32
}

var _ Node = (*Ident)(nil)

func (n *Ident) Span() Span {
	return Span{
		start: n.start,
		len:   uint32(len(n.raw)),
	}
}

func (n *Ident) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

func (n *Ident) Get() string {
	return n.raw
}

type Keyword struct {
	leafNode
	raw   string
	start uint32
}

var _ Node = (*Keyword)(nil)

func (n *Keyword) Span() Span {
	return Span{
		start: n.start,
		len:   uint32(len(n.raw)),
	}
}

func (n *Keyword) UnparseTo(buf *bytes.Buffer) {
	buf.WriteString(n.raw)
}

// A DottedName is a package path or a package-qualified type name, such
// as "a.b.c" or "a.b.Point".
type DottedName struct {
	branchNode
	parts []*Ident
}

var _ Node = (*DottedName)(nil)

func (n *DottedName) Parts() []*Ident {
	return n.parts
}

func (n *DottedName) Get() string {
	var sb strings.Builder
	for ii, part := range n.parts {
		if ii > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(part.Get())
	}
	return sb.String()
}

// Qualifier returns everything before the final component, or "" for an
// unqualified name.
func (n *DottedName) Qualifier() string {
	full := n.Get()
	if idx := strings.LastIndexByte(full, '.'); idx >= 0 {
		return full[:idx]
	}
	return ""
}

func (n *DottedName) Last() *Ident {
	return n.parts[len(n.parts)-1]
}

type File struct {
	branchNode
	pkg     *Package
	imports []*Import
	decls   []Node
}

var _ Node = (*File)(nil)

func (n *File) Package() *Package {
	return n.pkg
}

func (n *File) Imports() iter.Seq[*Import] {
	return slices.Values(n.imports)
}

// Decls yields each *Enum and *Struct in source order.
func (n *File) Decls() iter.Seq[Node] {
	return slices.Values(n.decls)
}

type Package struct {
	branchNode
	name *DottedName
}

var _ Node = (*Package)(nil)

func (n *Package) Name() *DottedName {
	return n.name
}

type Import struct {
	branchNode
	names []*Ident
	from  *DottedName
}

var _ Node = (*Import)(nil)

func (n *Import) ImportNames() iter.Seq[*Ident] {
	return slices.Values(n.names)
}

func (n *Import) From() *DottedName {
	return n.from
}

type Enum struct {
	branchNode
	name  *Ident
	type_ *Ident
	items []*EnumItem
}

var _ Node = (*Enum)(nil)

func (n *Enum) Name() *Ident {
	return n.name
}

// Type is nil when the declaration has no explicit underlying type.
func (n *Enum) Type() *Ident {
	return n.type_
}

func (n *Enum) Items() []*EnumItem {
	return n.items
}

type EnumItem struct {
	branchNode
	name  *Ident
	value *IntLit
}

var _ Node = (*EnumItem)(nil)

func (n *EnumItem) Name() *Ident {
	return n.name
}

func (n *EnumItem) Value() *IntLit {
	return n.value
}

type Struct struct {
	branchNode
	name    *Ident
	members []*StructMember
}

var _ Node = (*Struct)(nil)

func (n *Struct) Name() *Ident {
	return n.name
}

func (n *Struct) Members() []*StructMember {
	return n.members
}

type StructMember struct {
	branchNode
	name       *Ident
	memberType *TypeExpr
}

var _ Node = (*StructMember)(nil)

func (n *StructMember) Name() *Ident {
	return n.name
}

func (n *StructMember) MemberType() *TypeExpr {
	return n.memberType
}

// A TypeExpr is a '|'-separated list of terms. A single term is a plain
// type; two or more form a union.
type TypeExpr struct {
	branchNode
	terms []*TypeTerm
}

var _ Node = (*TypeExpr)(nil)

func (n *TypeExpr) Terms() []*TypeTerm {
	return n.terms
}

func (n *TypeExpr) IsUnion() bool {
	return len(n.terms) > 1
}

// A TypeTerm is a primary type (*TypeName, *MapType or *ParenType)
// followed by zero or more "[]" pairs.
type TypeTerm struct {
	branchNode
	primary Node
	dims    uint32
}

var _ Node = (*TypeTerm)(nil)

func (n *TypeTerm) Primary() Node {
	return n.primary
}

func (n *TypeTerm) Dims() uint32 {
	return n.dims
}

type TypeName struct {
	branchNode
	name *DottedName
}

var _ Node = (*TypeName)(nil)

func (n *TypeName) Name() *DottedName {
	return n.name
}

type MapType struct {
	branchNode
	key   *TypeExpr
	value *TypeExpr
}

var _ Node = (*MapType)(nil)

func (n *MapType) Key() *TypeExpr {
	return n.key
}

func (n *MapType) Value() *TypeExpr {
	return n.value
}

type ParenType struct {
	branchNode
	inner *TypeExpr
}

var _ Node = (*ParenType)(nil)

func (n *ParenType) Inner() *TypeExpr {
	return n.inner
}
