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
	"go.smsg-lang.org/smsg/schema"
	"go.smsg-lang.org/smsg/syntax"
)

type resolveCtx struct {
	scope *scopeInfo
	file  *SourceFile
}

// resolveTypeExpr returns false if the expression could not be resolved;
// the cause has already been reported.
func (c *compiler) resolveTypeExpr(
	ctx *resolveCtx,
	expr *syntax.TypeExpr,
	inUnion bool,
) (schema.Type, bool) {
	if !expr.IsUnion() {
		return c.resolveTypeTerm(ctx, expr.Terms()[0], inUnion)
	}
	if inUnion {
		c.err(ctx.file, errNestedUnion(expr.Span()))
		return nil, false
	}

	union := &schema.Union{}
	seen := make(map[string]struct{})
	ok := true
	for _, term := range expr.Terms() {
		member, termOk := c.resolveTypeTerm(ctx, term, true)
		if !termOk {
			ok = false
			continue
		}
		key := member.String()
		if _, dup := seen[key]; dup {
			c.warn(ctx.file, warnDuplicateUnionMember(key, term.Span()))
			continue
		}
		seen[key] = struct{}{}
		union.Members = append(union.Members, member)
	}
	if !ok {
		return nil, false
	}
	return union, true
}

func (c *compiler) resolveTypeTerm(
	ctx *resolveCtx,
	term *syntax.TypeTerm,
	inUnion bool,
) (schema.Type, bool) {
	var base schema.Type
	var ok bool
	switch primary := term.Primary().(type) {
	case *syntax.TypeName:
		base, ok = c.resolveTypeName(ctx, primary.Name())
	case *syntax.MapType:
		base, ok = c.resolveMapType(ctx, primary)
	case *syntax.ParenType:
		// "(A | B)[]" is an array, not a union, so it may appear in a union.
		base, ok = c.resolveTypeExpr(ctx, primary.Inner(), inUnion && term.Dims() == 0)
	default:
		panic("unreachable")
	}
	if !ok || term.Dims() == 0 {
		return base, ok
	}
	if array, isArray := base.(*schema.Array); isArray {
		return &schema.Array{
			Base: array.Base,
			Dims: array.Dims + term.Dims(),
		}, true
	}
	return &schema.Array{Base: base, Dims: term.Dims()}, true
}

func (c *compiler) resolveMapType(
	ctx *resolveCtx,
	node *syntax.MapType,
) (schema.Type, bool) {
	key, keyOk := c.resolveTypeExpr(ctx, node.Key(), false)
	value, valueOk := c.resolveTypeExpr(ctx, node.Value(), false)
	if !keyOk || !valueOk {
		return nil, false
	}
	native, isNative := key.(*schema.Native)
	if !isNative {
		c.err(ctx.file, errInvalidMapKey(key.String(), node.Key().Span()))
		return nil, false
	}
	return &schema.Map{Key: native, Value: value}, true
}

// resolveTypeName looks a name up in the native table, then the scope's
// own declarations, then the names imported into the scope. A qualified
// name is looked up directly in the named package.
func (c *compiler) resolveTypeName(
	ctx *resolveCtx,
	name *syntax.DottedName,
) (schema.Type, bool) {
	if qualifier := name.Qualifier(); qualifier != "" {
		if scope, ok := c.scopesByName[qualifier]; ok {
			if decl, ok := scope.decls[name.Last().Get()]; ok {
				return decl.userDef(), true
			}
		}
		c.err(ctx.file, errUndefinedType(name.Get(), name.Span()))
		return nil, false
	}

	ident := name.Get()
	if native, ok := schema.LookupNative(ident); ok {
		return native, true
	}
	if decl, ok := ctx.scope.decls[ident]; ok {
		return decl.userDef(), true
	}
	if imported, ok := ctx.scope.imports[ident]; ok {
		imported.used = true
		return imported.decl.userDef(), true
	}
	c.err(ctx.file, errUndefinedType(ident, name.Span()))
	return nil, false
}

// collectUserDefs lists the declared types a type refers to, at any depth,
// in first-seen order.
func collectUserDefs(t schema.Type) []schema.TypeID {
	var ids []schema.TypeID
	var walk func(t schema.Type)
	walk = func(t schema.Type) {
		switch t := t.(type) {
		case *schema.UserDef:
			ids = append(ids, t.ID)
		case *schema.Array:
			walk(t.Base)
		case *schema.Map:
			walk(t.Value)
		case *schema.Union:
			for _, member := range t.Members {
				walk(member)
			}
		}
	}
	walk(t)
	return ids
}
