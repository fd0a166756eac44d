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
)

type layoutState uint8

const (
	layoutPending layoutState = iota
	layoutActive
	layoutDone
)

func (c *compiler) layoutStructs() {
	c.markReferences()
	for _, decl := range c.decls {
		if decl.structDesc != nil {
			c.layoutStruct(decl)
		}
	}
}

// markReferences picks the struct members stored as references. A member
// of struct X with struct type Y is a reference when Y reaches X through
// struct-typed members and Y's type id is not greater than X's. Every cycle
// has such an edge at its highest id, and the choice depends only on the
// cycle's own ids, so unrelated declarations never change it.
func (c *compiler) markReferences() {
	edges := make(map[*declInfo][]*declInfo)
	for _, decl := range c.decls {
		if decl.structDesc == nil {
			continue
		}
		for _, member := range decl.structDesc.Members {
			if dep := c.structOf(member); dep != nil {
				edges[decl] = append(edges[decl], dep)
			}
		}
	}

	reach := make(map[*declInfo]map[*declInfo]bool)
	reachable := func(from *declInfo) map[*declInfo]bool {
		if seen, ok := reach[from]; ok {
			return seen
		}
		seen := make(map[*declInfo]bool)
		stack := []*declInfo{from}
		for len(stack) > 0 {
			decl := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, dep := range edges[decl] {
				if !seen[dep] {
					seen[dep] = true
					stack = append(stack, dep)
				}
			}
		}
		reach[from] = seen
		return seen
	}

	for _, decl := range c.decls {
		if decl.structDesc == nil {
			continue
		}
		for _, member := range decl.structDesc.Members {
			dep := c.structOf(member)
			if dep == nil {
				continue
			}
			if dep.id <= decl.id && (dep == decl || reachable(dep)[decl]) {
				member.Ref = schema.Reference
			}
		}
	}
}

// structOf returns the struct declaration of a struct-typed member.
func (c *compiler) structOf(member *schema.Member) *declInfo {
	t, ok := member.Type.(*schema.UserDef)
	if !ok {
		return nil
	}
	dep, ok := c.declsByID[t.ID]
	if !ok || dep.structDesc == nil {
		return nil
	}
	return dep
}

// layoutStruct assigns member offsets and the byte length of a struct,
// laying out inline struct members first.
func (c *compiler) layoutStruct(decl *declInfo) {
	if decl.layout != layoutPending {
		return
	}
	decl.layout = layoutActive

	desc := decl.structDesc
	var offset uint32
	maxAlign := uint32(1)
	for ii, member := range desc.Members {
		size, align, ok := c.layoutMember(decl, member, ii)
		if !ok {
			continue
		}
		offset = schema.AlignTo(offset, align)
		member.Offset = offset
		offset += size
		maxAlign = max(maxAlign, align)
	}
	desc.ByteLength = schema.AlignTo(offset, maxAlign)
	decl.layout = layoutDone

	if desc.ByteLength == 0 {
		c.err(decl.file, errEmptyStruct(desc.Name, decl.name.Span()))
	}
}

func (c *compiler) layoutMember(
	decl *declInfo,
	member *schema.Member,
	idx int,
) (size, align uint32, ok bool) {
	switch t := member.Type.(type) {
	case *schema.Native:
		member.ResolvedTypeID = t.ID
		return t.Size, schema.Align(t.Size), true
	case *schema.Array, *schema.Map, *schema.Union:
		accessory, found := c.accessoryOf(t)
		if !found {
			node := decl.memberNodes[idx]
			c.err(decl.file, errMissingAccessory(
				decl.name.Get(),
				member.Name,
				node.Name().Span(),
			))
			return 0, 0, false
		}
		member.ResolvedTypeID = accessory.TypeID
		return accessory.ByteLength, 4, true
	case *schema.UserDef:
		dep := c.declsByID[t.ID]
		member.ResolvedTypeID = dep.id
		if dep.enumDesc != nil {
			size := dep.enumDesc.Underlying.Size
			return size, schema.Align(size), true
		}
		if member.Ref == schema.Reference {
			return schema.ReferenceSize, 4, true
		}
		// An inline member still being laid out is reported by verifyLayout.
		c.layoutStruct(dep)
		return dep.structDesc.ByteLength, 4, true
	}
	panic("unreachable")
}

// verifyLayout checks that no struct contains itself through inline
// members, which would give it an unbounded size.
func (c *compiler) verifyLayout() {
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[*declInfo]uint8)
	var stack []*declInfo
	var visit func(decl *declInfo)
	visit = func(decl *declInfo) {
		state[decl] = visiting
		stack = append(stack, decl)
		for _, member := range decl.structDesc.Members {
			if member.Ref != schema.Inline {
				continue
			}
			dep, ok := c.declsByID[member.ResolvedTypeID]
			if !ok || dep.structDesc == nil {
				continue
			}
			switch state[dep] {
			case unvisited:
				visit(dep)
			case visiting:
				var cycle []string
				start := len(stack) - 1
				for stack[start] != dep {
					start--
				}
				for _, d := range stack[start:] {
					cycle = append(cycle, d.structDesc.QualifiedName())
				}
				cycle = append(cycle, dep.structDesc.QualifiedName())
				c.err(dep.file, errUnsupportedCycle(cycle, dep.name.Span()))
			}
		}
		stack = stack[:len(stack)-1]
		state[decl] = visited
	}
	for _, decl := range c.decls {
		if decl.structDesc != nil && state[decl] == unvisited {
			visit(decl)
		}
	}
}
