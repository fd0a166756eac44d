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
)

type ParseOption interface {
	apply(*ParseOptions)
}

type parseOption func(*ParseOptions)

func (f parseOption) apply(opts *ParseOptions) {
	f(opts)
}

// SkipTrivia discards space, newline, and comment nodes. The resulting
// tree no longer unparses to the original source.
func SkipTrivia() ParseOption {
	return parseOption(func(opts *ParseOptions) {
		opts.saveSpaces = false
		opts.saveNewlines = false
		opts.saveComments = false
	})
}

func Parse(src []uint8, opts ...ParseOption) (*File, error) {
	return NewParseOptions(opts...).ParseFile(src)
}

type ParseOptions struct {
	saveSpaces   bool
	saveNewlines bool
	saveComments bool
}

func NewParseOptions(opts ...ParseOption) *ParseOptions {
	parseOpts := &ParseOptions{
		saveSpaces:   true,
		saveNewlines: true,
		saveComments: true,
	}
	for _, opt := range opts {
		opt.apply(parseOpts)
	}
	return parseOpts
}

func (opts *ParseOptions) ParseFile(src []uint8) (*File, error) {
	ctx, err := newParseCtx[File](opts, src)
	if err != nil {
		return nil, err
	}
	return parseFile(ctx)
}

func (opts *ParseOptions) ParseImport(src []uint8) (*Import, error) {
	ctx, err := newParseCtx[Import](opts, src)
	if err != nil {
		return nil, err
	}
	return parseImport(ctx)
}

func (opts *ParseOptions) ParseEnum(src []uint8) (*Enum, error) {
	ctx, err := newParseCtx[Enum](opts, src)
	if err != nil {
		return nil, err
	}
	return parseEnum(ctx)
}

func (opts *ParseOptions) ParseStruct(src []uint8) (*Struct, error) {
	ctx, err := newParseCtx[Struct](opts, src)
	if err != nil {
		return nil, err
	}
	return parseStruct(ctx)
}

func (opts *ParseOptions) ParseTypeExpr(src []uint8) (*TypeExpr, error) {
	ctx, err := newParseCtx[TypeExpr](opts, src)
	if err != nil {
		return nil, err
	}
	return parseTypeExpr(ctx)
}

type parseCtx[T any] struct {
	src        []uint8
	opts       *ParseOptions
	tokens     *Tokens
	childNodes []Node
	haveToken  bool
	token      Token
	err        error
	consumed   uint32
	offset     uint32
}

func newParseCtx[T any](opts *ParseOptions, src []uint8) (*parseCtx[T], error) {
	tokens, err := NewTokens(src)
	if err != nil {
		return nil, err
	}
	return &parseCtx[T]{
		src:    src,
		opts:   opts,
		tokens: tokens,
	}, nil
}

func (ctx *parseCtx[T]) ensureToken() error {
	if ctx.err != nil {
		return ctx.err
	}
	if ctx.haveToken {
		return nil
	}
	if err := ctx.tokens.Next(&ctx.token); err != nil {
		ctx.err = err
		return ctx.err
	}
	ctx.haveToken = true
	return nil
}

func (ctx *parseCtx[T]) readToken() []uint8 {
	return ctx.src[:ctx.token.Len]
}

func (ctx *parseCtx[T]) consumeToken(child Node) {
	ctx.src = ctx.src[ctx.token.Len:]
	ctx.consumed += uint32(ctx.token.Len)
	ctx.offset += uint32(ctx.token.Len)
	ctx.haveToken = false
	if child != nil {
		ctx.childNodes = append(ctx.childNodes, child)
	}
}

func (ctx *parseCtx[T]) tokenSpan() Span {
	return Span{
		start: ctx.offset,
		len:   uint32(ctx.token.Len),
	}
}

func (ctx *parseCtx[T]) loop(yield func(struct{}) bool) {
	if ctx.err != nil {
		return
	}
	for {
		consumed := ctx.consumed
		if !yield(struct{}{}) {
			return
		}
		if ctx.err != nil {
			return
		}
		if consumed == ctx.consumed {
			return
		}
	}
}

func (ctx *parseCtx[T]) consumeSpace() {
	if !ctx.opts.saveSpaces {
		ctx.consumeToken(nil)
		return
	}

	tokenBytes := ctx.readToken()
	var token string
	if bytes.Equal(tokenBytes, []uint8{' '}) {
		token = " "
	} else {
		token = string(tokenBytes)
	}
	ctx.consumeToken(&Space{
		raw:   token,
		start: ctx.offset,
	})
}

// comments consumes any run of spaces, newlines, and comments.
func (ctx *parseCtx[T]) comments() {
	for _ = range ctx.loop {
		if err := ctx.ensureToken(); err != nil {
			return
		}
		switch ctx.token.Kind {
		case T_SPACE:
			ctx.consumeSpace()
		case T_NEWLINE:
			var child Node
			if ctx.opts.saveNewlines {
				child = &Newline{
					crlf:  ctx.token.Len == 2,
					start: ctx.offset,
				}
			}
			ctx.consumeToken(child)
		case T_COMMENT:
			var child Node
			if ctx.opts.saveComments {
				child = &Comment{
					raw:   string(ctx.readToken()),
					start: ctx.offset,
				}
			}
			ctx.consumeToken(child)
		default:
			return
		}
	}
}

func (ctx *parseCtx[T]) sigil(kind TokenKind) {
	if err := ctx.ensureToken(); err != nil {
		return
	}
	if ctx.token.Kind != kind {
		ctx.err = errExpectedSigil(
			kind,
			ctx.token.Kind,
			string(ctx.readToken()),
			ctx.tokenSpan(),
		)
		return
	}
	ctx.consumeToken(&Sigil{
		raw:   ctx.src[0],
		start: ctx.offset,
	})
}

func (ctx *parseCtx[T]) trySigil(kind TokenKind) bool {
	if err := ctx.ensureToken(); err != nil {
		return false
	}
	if ctx.token.Kind != kind {
		return false
	}
	ctx.consumeToken(&Sigil{
		raw:   ctx.src[0],
		start: ctx.offset,
	})
	return true
}

func (ctx *parseCtx[T]) peekKeyword(keyword string) bool {
	if err := ctx.ensureToken(); err != nil {
		return false
	}
	return ctx.token.Kind == T_IDENT && string(ctx.readToken()) == keyword
}

func (ctx *parseCtx[T]) tryKeyword(keyword string) bool {
	if !ctx.peekKeyword(keyword) {
		return false
	}
	ctx.consumeToken(&Keyword{
		raw:   keyword,
		start: ctx.offset,
	})
	return true
}

func (ctx *parseCtx[T]) ident() *Ident {
	if err := ctx.ensureToken(); err != nil {
		return nil
	}
	token := string(ctx.readToken())
	if ctx.token.Kind != T_IDENT {
		ctx.err = errExpectedIdent(ctx.token.Kind, token, ctx.tokenSpan())
		return nil
	}
	ident := &Ident{
		raw:   token,
		start: ctx.offset,
	}
	ctx.consumeToken(ident)
	return ident
}

func (ctx *parseCtx[T]) int() *IntLit {
	if err := ctx.ensureToken(); err != nil {
		return nil
	}
	token := string(ctx.readToken())

	switch ctx.token.Kind {
	case T_INT_LIT, T_BIN_INT_LIT, T_OCT_INT_LIT, T_DEC_INT_LIT, T_HEX_INT_LIT:
	default:
		ctx.err = errExpectedIntLit(ctx.token.Kind, token, ctx.tokenSpan())
		return nil
	}

	intNode, err := newIntLit(token, ctx.token.Kind, ctx.offset)
	if err != nil {
		ctx.err = err
		return nil
	}
	ctx.consumeToken(intNode)
	return intNode
}

func (ctx *parseCtx[T]) finish(
	build func(node branchNode) *T,
) (*T, error) {
	if ctx.err != nil {
		return nil, ctx.err
	}
	return build(branchNode{
		span: Span{
			start: ctx.offset - ctx.consumed,
			len:   ctx.consumed,
		},
		childNodes: ctx.childNodes,
	}), nil
}

func parseChild[P any, C any, PtrC interface {
	*C
	Node
}](
	ctx *parseCtx[P],
	parseChildFn func(*parseCtx[C]) (PtrC, error),
) (*C, bool) {
	if ctx.err != nil {
		return nil, false
	}
	childCtx := &parseCtx[C]{
		src:       ctx.src,
		opts:      ctx.opts,
		tokens:    ctx.tokens,
		haveToken: ctx.haveToken,
		token:     ctx.token,
		offset:    ctx.offset,
	}
	child, err := parseChildFn(childCtx)
	if err != nil {
		ctx.err = err
		return nil, false
	}
	ctx.haveToken = childCtx.haveToken
	ctx.token = childCtx.token

	if childCtx.consumed == 0 {
		return nil, false
	}
	ctx.src = ctx.src[childCtx.consumed:]
	ctx.consumed += childCtx.consumed
	ctx.offset = childCtx.offset
	ctx.childNodes = append(ctx.childNodes, child)
	return child, true
}

func parseFile(ctx *parseCtx[File]) (*File, error) {
	ctx.comments()
	pkg, _ := parseChild(ctx, parsePackage)

	var imports []*Import
	for _ = range ctx.loop {
		ctx.comments()
		if imp, ok := parseChild(ctx, parseImport); ok {
			imports = append(imports, imp)
		}
	}

	var decls []Node
	for _ = range ctx.loop {
		ctx.comments()
		if ctx.err != nil || ctx.token.Kind == T_EOF {
			break
		}

		var ok bool
		{
			var decl *Enum
			if decl, ok = parseChild(ctx, parseEnum); ok {
				decls = append(decls, decl)
			}
		}
		if !ok && ctx.err == nil {
			var decl *Struct
			if decl, ok = parseChild(ctx, parseStruct); ok {
				decls = append(decls, decl)
			}
		}
		if ctx.err != nil {
			return nil, ctx.err
		}
		if !ok {
			token := string(ctx.readToken())
			span := ctx.tokenSpan()
			if ctx.token.Kind == T_IDENT {
				switch token {
				case "package":
					return nil, errMisplacedPackage(span)
				case "import":
					return nil, errMisplacedImport(span)
				}
				return nil, errUnknownDeclaration(token, span)
			}
			return nil, errExpectedDeclaration(ctx.token.Kind, token, span)
		}
	}

	return ctx.finish(func(node branchNode) *File {
		return &File{
			branchNode: node,
			pkg:        pkg,
			imports:    imports,
			decls:      decls,
		}
	})
}

func parseDottedName(ctx *parseCtx[DottedName]) (*DottedName, error) {
	parts := []*Ident{ctx.ident()}
	for _ = range ctx.loop {
		if !ctx.trySigil(T_DOT) {
			break
		}
		parts = append(parts, ctx.ident())
	}
	return ctx.finish(func(node branchNode) *DottedName {
		return &DottedName{
			branchNode: node,
			parts:      parts,
		}
	})
}

func parsePackage(ctx *parseCtx[Package]) (*Package, error) {
	if !ctx.tryKeyword("package") {
		return nil, nil
	}
	ctx.comments()
	name, _ := parseChild(ctx, parseDottedName)
	ctx.comments()
	ctx.sigil(T_SEMICOLON)

	return ctx.finish(func(node branchNode) *Package {
		return &Package{
			branchNode: node,
			name:       name,
		}
	})
}

func parseImport(ctx *parseCtx[Import]) (*Import, error) {
	if !ctx.tryKeyword("import") {
		return nil, nil
	}
	ctx.comments()

	var names []*Ident
	ctx.sigil(T_OPEN_CURL)
	ctx.comments()
	for _ = range ctx.loop {
		if ctx.trySigil(T_CLOSE_CURL) {
			break
		}
		names = append(names, ctx.ident())
		ctx.comments()
		if !ctx.trySigil(T_COMMA) {
			ctx.sigil(T_CLOSE_CURL)
			break
		}
		ctx.comments()
	}
	ctx.comments()

	if ctx.err == nil && !ctx.tryKeyword("from") {
		return nil, errExpectedKeywordFrom(
			ctx.token.Kind,
			string(ctx.readToken()),
			ctx.tokenSpan(),
		)
	}
	ctx.comments()
	from, _ := parseChild(ctx, parseDottedName)
	ctx.comments()
	ctx.sigil(T_SEMICOLON)

	return ctx.finish(func(node branchNode) *Import {
		return &Import{
			branchNode: node,
			names:      names,
			from:       from,
		}
	})
}

func parseEnum(ctx *parseCtx[Enum]) (*Enum, error) {
	if !ctx.tryKeyword("enum") {
		return nil, nil
	}
	ctx.comments()
	name := ctx.ident()
	ctx.comments()

	var type_ *Ident
	if ctx.trySigil(T_COLON) {
		ctx.comments()
		type_ = ctx.ident()
		ctx.comments()
	}

	var items []*EnumItem
	ctx.sigil(T_OPEN_CURL)
	ctx.comments()
	for _ = range ctx.loop {
		if ctx.trySigil(T_CLOSE_CURL) {
			break
		}
		item, _ := parseChild(ctx, parseEnumItem)
		items = append(items, item)
		ctx.comments()
		if !ctx.trySigil(T_COMMA) {
			ctx.sigil(T_CLOSE_CURL)
			break
		}
		ctx.comments()
	}

	return ctx.finish(func(node branchNode) *Enum {
		return &Enum{
			branchNode: node,
			name:       name,
			type_:      type_,
			items:      items,
		}
	})
}

func parseEnumItem(ctx *parseCtx[EnumItem]) (*EnumItem, error) {
	name := ctx.ident()
	ctx.comments()

	var value *IntLit
	if ctx.trySigil(T_EQ) {
		ctx.comments()
		value = ctx.int()
	}

	return ctx.finish(func(node branchNode) *EnumItem {
		return &EnumItem{
			branchNode: node,
			name:       name,
			value:      value,
		}
	})
}

func parseStruct(ctx *parseCtx[Struct]) (*Struct, error) {
	if !ctx.tryKeyword("struct") {
		return nil, nil
	}
	ctx.comments()
	name := ctx.ident()
	ctx.comments()

	ctx.sigil(T_OPEN_CURL)
	ctx.comments()
	var members []*StructMember
	for _ = range ctx.loop {
		if ctx.trySigil(T_CLOSE_CURL) {
			break
		}
		member, _ := parseChild(ctx, parseStructMember)
		members = append(members, member)
		ctx.comments()
	}

	return ctx.finish(func(node branchNode) *Struct {
		return &Struct{
			branchNode: node,
			name:       name,
			members:    members,
		}
	})
}

func parseStructMember(ctx *parseCtx[StructMember]) (*StructMember, error) {
	name := ctx.ident()
	ctx.comments()
	ctx.sigil(T_COLON)
	ctx.comments()
	memberType, _ := parseChild(ctx, parseTypeExpr)
	ctx.sigil(T_SEMICOLON)

	return ctx.finish(func(node branchNode) *StructMember {
		return &StructMember{
			branchNode: node,
			name:       name,
			memberType: memberType,
		}
	})
}

func parseTypeExpr(ctx *parseCtx[TypeExpr]) (*TypeExpr, error) {
	var terms []*TypeTerm
	if term, ok := parseChild(ctx, parseTypeTerm); ok {
		terms = append(terms, term)
	}
	for _ = range ctx.loop {
		ctx.comments()
		if !ctx.trySigil(T_PIPE) {
			break
		}
		ctx.comments()
		term, _ := parseChild(ctx, parseTypeTerm)
		terms = append(terms, term)
	}

	return ctx.finish(func(node branchNode) *TypeExpr {
		return &TypeExpr{
			branchNode: node,
			terms:      terms,
		}
	})
}

func parseTypeTerm(ctx *parseCtx[TypeTerm]) (*TypeTerm, error) {
	if err := ctx.ensureToken(); err != nil {
		return nil, err
	}

	var primary Node
	switch ctx.token.Kind {
	case T_IDENT:
		primary, _ = parseChild(ctx, parseTypeName)
	case T_OPEN_ANGLE:
		primary, _ = parseChild(ctx, parseMapType)
	case T_OPEN_PAREN:
		primary, _ = parseChild(ctx, parseParenType)
	default:
		return nil, errExpectedType(
			ctx.token.Kind,
			string(ctx.readToken()),
			ctx.tokenSpan(),
		)
	}

	var dims uint32
	for _ = range ctx.loop {
		if !ctx.trySigil(T_OPEN_SQUARE) {
			break
		}
		ctx.comments()
		ctx.sigil(T_CLOSE_SQUARE)
		dims += 1
	}

	return ctx.finish(func(node branchNode) *TypeTerm {
		return &TypeTerm{
			branchNode: node,
			primary:    primary,
			dims:       dims,
		}
	})
}

func parseTypeName(ctx *parseCtx[TypeName]) (*TypeName, error) {
	name, _ := parseChild(ctx, parseDottedName)
	return ctx.finish(func(node branchNode) *TypeName {
		return &TypeName{
			branchNode: node,
			name:       name,
		}
	})
}

func parseMapType(ctx *parseCtx[MapType]) (*MapType, error) {
	ctx.sigil(T_OPEN_ANGLE)
	ctx.comments()
	key, _ := parseChild(ctx, parseTypeExpr)
	ctx.sigil(T_COMMA)
	ctx.comments()
	value, _ := parseChild(ctx, parseTypeExpr)
	ctx.sigil(T_CLOSE_ANGLE)

	return ctx.finish(func(node branchNode) *MapType {
		return &MapType{
			branchNode: node,
			key:        key,
			value:      value,
		}
	})
}

func parseParenType(ctx *parseCtx[ParenType]) (*ParenType, error) {
	ctx.sigil(T_OPEN_PAREN)
	ctx.comments()
	inner, _ := parseChild(ctx, parseTypeExpr)
	ctx.sigil(T_CLOSE_PAREN)

	return ctx.finish(func(node branchNode) *ParenType {
		return &ParenType{
			branchNode: node,
			inner:      inner,
		}
	})
}
