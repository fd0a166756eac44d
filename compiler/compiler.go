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

// Package compiler resolves parsed IDL files into a laid-out schema:
// type expressions are resolved per scope, generic shapes are deduplicated
// into accessory types, structs are laid out, and type ids are reconciled
// with a previously compiled schema.
package compiler

import (
	"cmp"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.smsg-lang.org/smsg/schema"
	"go.smsg-lang.org/smsg/syntax"
)

// SourceFile is one parsed input file. Path is relative to the input root;
// a file without a package statement takes its scope from Path.
type SourceFile struct {
	Path   string
	Syntax *syntax.File
}

// ScopeFromPath derives a scope name from a file path relative to the input
// root: "a/b/c.idl" is scope "a.b.c".
func ScopeFromPath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimSuffix(path, filepath.Ext(path))
	path = strings.TrimPrefix(path, "./")
	return strings.ReplaceAll(path, "/", ".")
}

type CompileOption interface {
	apply(*CompileOptions)
}

type compileOption func(*CompileOptions)

func (f compileOption) apply(opts *CompileOptions) { f(opts) }

type CompileOptions struct {
	previous    *schema.Schema
	historyPath string
	version     string
}

// WithPrevious supplies the previously compiled schema, whose type ids are
// reused for declarations and accessories that still exist.
func WithPrevious(previous *schema.Schema) CompileOption {
	return compileOption(func(opts *CompileOptions) {
		opts.previous = previous
	})
}

// WithHistory loads the previously compiled schema from a history file. A
// missing file means there is no previous schema.
func WithHistory(path string) CompileOption {
	return compileOption(func(opts *CompileOptions) {
		opts.historyPath = path
	})
}

// WithVersion sets the version of the compiled schema. Without it, the
// previous schema's version is kept (or "0.0.0" if there is none).
func WithVersion(version string) CompileOption {
	return compileOption(func(opts *CompileOptions) {
		opts.version = version
	})
}

type CompileResult struct {
	schema *schema.Schema

	Errors   []*Error
	Warnings []*Warning
}

// Schema returns the compiled schema, or nil if compilation failed.
func (r *CompileResult) Schema() *schema.Schema {
	return r.schema
}

func Compile(files []*SourceFile, opts ...CompileOption) CompileResult {
	return NewCompileOptions(opts...).Compile(files)
}

func NewCompileOptions(opts ...CompileOption) *CompileOptions {
	compileOptions := &CompileOptions{}
	for _, opt := range opts {
		opt.apply(compileOptions)
	}
	return compileOptions
}

func (opts *CompileOptions) Compile(files []*SourceFile) CompileResult {
	c := compiler{
		opts:              opts,
		scopesByName:      make(map[string]*scopeInfo),
		declsByID:         make(map[schema.TypeID]*declInfo),
		accessoriesByName: make(map[string]*schema.AccessoryDescription),
		accessoriesByID:   make(map[schema.TypeID]*schema.AccessoryDescription),
	}
	s := c.compileSchema(files)
	if len(c.errors) > 0 {
		return CompileResult{
			Errors:   c.errors,
			Warnings: c.warnings,
		}
	}
	return CompileResult{
		schema:   s,
		Warnings: c.warnings,
	}
}

type compiler struct {
	opts     *CompileOptions
	errors   []*Error
	warnings []*Warning

	// Set by loadPrevious()
	version string
	ids     *idAllocator

	// Set by registerScopes()
	scopes       []*scopeInfo
	scopesByName map[string]*scopeInfo
	decls        []*declInfo
	declsByID    map[schema.TypeID]*declInfo

	// Set by instantiate()
	accessories       []*schema.AccessoryDescription
	accessoriesByName map[string]*schema.AccessoryDescription
	accessoriesByID   map[schema.TypeID]*schema.AccessoryDescription
}

type scopeInfo struct {
	name  string
	files []*SourceFile
	decls map[string]*declInfo

	// Set by expandImports()
	imports     map[string]*importedName
	importOrder []*importedName
}

type importedName struct {
	pkg  string
	decl *declInfo
	file *SourceFile
	node *syntax.Ident
	used bool
}

type declInfo struct {
	scope *scopeInfo
	file  *SourceFile
	name  *syntax.Ident
	id    schema.TypeID

	// Exactly one of enumNode and structNode is set.
	enumNode   *syntax.Enum
	structNode *syntax.Struct

	// Set by compileEnum() or compileStruct()
	enumDesc    *schema.EnumDescription
	structDesc  *schema.StructDescription
	memberNodes []*syntax.StructMember

	layout layoutState
}

func (d *declInfo) userDef() *schema.UserDef {
	return &schema.UserDef{
		ID:    d.id,
		Scope: d.scope.name,
		Name:  d.name.Get(),
	}
}

func (c *compiler) err(file *SourceFile, err *Error) {
	if file != nil {
		err.path = file.Path
	}
	c.errors = append(c.errors, err)
}

func (c *compiler) warn(file *SourceFile, warning *Warning) {
	if file != nil {
		warning.path = file.Path
	}
	c.warnings = append(c.warnings, warning)
}

func (c *compiler) compileSchema(files []*SourceFile) *schema.Schema {
	c.loadPrevious()
	c.registerScopes(files)
	c.assignIDs()
	c.expandImports()
	for _, decl := range c.decls {
		if decl.enumNode != nil {
			c.compileEnum(decl)
		} else {
			c.compileStruct(decl)
		}
	}
	c.checkUnusedImports()
	if len(c.errors) > 0 {
		return nil
	}

	c.instantiateAccessories()
	c.layoutStructs()
	c.verifyLayout()
	if len(c.errors) > 0 {
		return nil
	}
	return c.buildSchema()
}

func (c *compiler) registerScopes(files []*SourceFile) {
	sorted := slices.Clone(files)
	slices.SortFunc(sorted, func(a, b *SourceFile) int {
		return cmp.Compare(a.Path, b.Path)
	})

	for _, file := range sorted {
		if file == nil || file.Syntax == nil {
			continue
		}
		name := ScopeFromPath(file.Path)
		if pkg := file.Syntax.Package(); pkg != nil {
			name = pkg.Name().Get()
		}
		scope, ok := c.scopesByName[name]
		if !ok {
			scope = &scopeInfo{
				name:    name,
				decls:   make(map[string]*declInfo),
				imports: make(map[string]*importedName),
			}
			c.scopesByName[name] = scope
			c.scopes = append(c.scopes, scope)
		}
		scope.files = append(scope.files, file)
	}
	slices.SortFunc(c.scopes, func(a, b *scopeInfo) int {
		return cmp.Compare(a.name, b.name)
	})

	for _, scope := range c.scopes {
		for _, file := range scope.files {
			for node := range file.Syntax.Decls() {
				c.registerDecl(scope, file, node)
			}
		}
	}
}

func (c *compiler) registerDecl(scope *scopeInfo, file *SourceFile, node syntax.Node) {
	decl := &declInfo{scope: scope, file: file}
	switch node := node.(type) {
	case *syntax.Enum:
		decl.enumNode = node
		decl.name = node.Name()
	case *syntax.Struct:
		decl.structNode = node
		decl.name = node.Name()
	default:
		return
	}

	name := decl.name.Get()
	if _, isNative := schema.LookupNative(name); isNative {
		c.err(file, errDeclShadowsNative(name, decl.name.Span()))
		return
	}
	if _, conflict := scope.decls[name]; conflict {
		c.err(file, errDeclNameConflict(scope.name, name, decl.name.Span()))
		return
	}
	scope.decls[name] = decl
	c.decls = append(c.decls, decl)
}

func (c *compiler) assignIDs() {
	for _, decl := range c.decls {
		decl.id = c.ids.declID(decl.scope.name, decl.name.Get())
		c.declsByID[decl.id] = decl
	}
}

func (c *compiler) expandImports() {
	for _, scope := range c.scopes {
		for _, file := range scope.files {
			for node := range file.Syntax.Imports() {
				c.expandImport(scope, file, node)
			}
		}
	}
}

func (c *compiler) expandImport(scope *scopeInfo, file *SourceFile, node *syntax.Import) {
	pkg := node.From().Get()
	from, ok := c.scopesByName[pkg]
	if !ok {
		c.err(file, errUndefinedPackage(pkg, node.From().Span()))
		return
	}
	for nameNode := range node.ImportNames() {
		name := nameNode.Get()
		decl, ok := from.decls[name]
		if !ok {
			c.err(file, errImportNameNotFound(pkg, name, nameNode.Span()))
			continue
		}
		if local, conflict := scope.decls[name]; conflict && local != decl {
			c.err(file, errImportConflictsWithDecl(pkg, name, nameNode.Span()))
			continue
		}
		if prev, conflict := scope.imports[name]; conflict {
			if prev.decl == decl {
				c.warn(file, warnDuplicateImport(pkg, name, nameNode.Span()))
			} else {
				c.err(file, errImportNameConflict(prev.pkg, pkg, name, nameNode.Span()))
			}
			continue
		}
		imported := &importedName{
			pkg:  pkg,
			decl: decl,
			file: file,
			node: nameNode,
		}
		scope.imports[name] = imported
		scope.importOrder = append(scope.importOrder, imported)
	}
}

func (c *compiler) checkUnusedImports() {
	for _, scope := range c.scopes {
		for _, imported := range scope.importOrder {
			if !imported.used {
				c.warn(imported.file, warnUnusedImport(
					imported.pkg,
					imported.node.Get(),
					imported.node.Span(),
				))
			}
		}
	}
}

func (c *compiler) compileEnum(decl *declInfo) {
	node := decl.enumNode
	underlying, _ := schema.LookupNative("int32")
	if typeNode := node.Type(); typeNode != nil {
		native, ok := schema.LookupNative(typeNode.Get())
		if !ok || !native.IsInteger() || native.Size > 4 {
			c.err(decl.file, errInvalidEnumType(typeNode.Get(), typeNode.Span()))
		} else {
			underlying = native
		}
	}
	lo, hi := underlying.Range()

	desc := &schema.EnumDescription{
		TypeID:     decl.id,
		Scope:      decl.scope.name,
		Name:       decl.name.Get(),
		Underlying: underlying,
	}
	names := make(map[string]struct{})
	namesByValue := make(map[int64]string)
	next := int64(1)
	for _, item := range node.Items() {
		itemName := item.Name().Get()
		if _, conflict := names[itemName]; conflict {
			c.err(decl.file, errDuplicateMember("enum item", itemName, item.Name().Span()))
			continue
		}
		names[itemName] = struct{}{}

		value := next
		valueText := strconv.FormatInt(next, 10)
		span := item.Name().Span()
		if lit := item.Value(); lit != nil {
			valueText = syntax.Unparse(lit)
			span = lit.Span()
			v, ok := lit.GetInt64()
			if !ok {
				c.err(decl.file, errEnumValueOutOfRange(underlying.Literal, itemName, valueText, span))
				continue
			}
			value = v
		}
		next = value + 1
		if value < lo || (value >= 0 && uint64(value) > hi) {
			c.err(decl.file, errEnumValueOutOfRange(underlying.Literal, itemName, valueText, span))
			continue
		}

		if prevName, conflict := namesByValue[value]; conflict {
			c.warn(decl.file, warnDuplicateEnumValue(itemName, prevName, value, span))
		} else {
			namesByValue[value] = itemName
		}
		desc.Values = append(desc.Values, schema.EnumValue{
			Name:  itemName,
			Value: value,
		})
	}
	decl.enumDesc = desc
}

func (c *compiler) compileStruct(decl *declInfo) {
	desc := &schema.StructDescription{
		TypeID: decl.id,
		Scope:  decl.scope.name,
		Name:   decl.name.Get(),
	}
	ctx := &resolveCtx{scope: decl.scope, file: decl.file}
	names := make(map[string]struct{})
	for _, node := range decl.structNode.Members() {
		name := node.Name().Get()
		if _, conflict := names[name]; conflict {
			c.err(decl.file, errDuplicateMember("struct member", name, node.Name().Span()))
			continue
		}
		names[name] = struct{}{}

		memberType, ok := c.resolveTypeExpr(ctx, node.MemberType(), false)
		if !ok {
			continue
		}
		desc.Members = append(desc.Members, &schema.Member{
			Name: name,
			Type: memberType,
		})
		decl.memberNodes = append(decl.memberNodes, node)
		for _, id := range collectUserDefs(memberType) {
			if !slices.Contains(desc.Dependences, id) {
				desc.Dependences = append(desc.Dependences, id)
			}
		}
	}
	decl.structDesc = desc
}

func (c *compiler) buildSchema() *schema.Schema {
	s := &schema.Schema{
		Version:     c.version,
		Accessories: c.accessories,
	}
	for _, decl := range c.decls {
		if decl.enumDesc != nil {
			s.Enums = append(s.Enums, decl.enumDesc)
		} else {
			s.Structs = append(s.Structs, decl.structDesc)
		}
	}
	if err := s.Validate(); err != nil {
		c.err(nil, errSchemaInconsistent(err))
		return nil
	}
	return s
}
