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
	"slices"

	"go.smsg-lang.org/smsg/schema"
)

func (c *compiler) instantiateAccessories() {
	for _, decl := range c.decls {
		if decl.structDesc == nil {
			continue
		}
		for _, member := range decl.structDesc.Members {
			c.instantiate(member.Type, decl.scope.name)
		}
	}
}

// instantiate returns the id a value of type t is laid out as, registering
// accessories for every array, map, and union shape it contains. The
// accessory id is also recorded on the type.
func (c *compiler) instantiate(t schema.Type, scope string) schema.TypeID {
	switch t := t.(type) {
	case *schema.Native:
		return t.ID
	case *schema.UserDef:
		return t.ID
	case *schema.Array:
		baseID := c.instantiate(t.Base, scope)
		id := baseID
		for dim := uint32(1); dim <= t.Dims; dim++ {
			id = c.registerAccessory(
				schema.ArrayOf,
				schema.ArrayName(dim, baseID),
				[]schema.TypeID{id},
				scope,
			)
		}
		t.Accessory = id
		return id
	case *schema.Map:
		valueID := c.instantiate(t.Value, scope)
		t.Accessory = c.registerAccessory(
			schema.MapOf,
			schema.MapName(t.Key.ID, valueID),
			[]schema.TypeID{t.Key.ID, valueID},
			scope,
		)
		return t.Accessory
	case *schema.Union:
		ids := make([]schema.TypeID, 0, len(t.Members))
		for _, member := range t.Members {
			ids = append(ids, c.instantiate(member, scope))
		}
		slices.Sort(ids)
		ids = slices.Compact(ids)
		t.Accessory = c.registerAccessory(
			schema.UnionOf,
			schema.UnionName(ids),
			ids,
			scope,
		)
		return t.Accessory
	}
	panic("unreachable")
}

// registerAccessory returns the id of the accessory with the given
// canonical name, creating it if needed. An accessory used from more than
// one scope moves to the global scope.
func (c *compiler) registerAccessory(
	kind schema.AccessoryKind,
	name string,
	relyTypes []schema.TypeID,
	scope string,
) schema.TypeID {
	if desc, ok := c.accessoriesByName[name]; ok {
		if desc.Scope != scope {
			desc.Scope = schema.GlobalScope
		}
		return desc.TypeID
	}
	desc := &schema.AccessoryDescription{
		TypeID:     c.ids.accessoryID(name),
		Kind:       kind,
		Name:       name,
		Scope:      scope,
		RelyTypes:  relyTypes,
		ByteLength: kind.DescriptorSize(),
	}
	c.accessories = append(c.accessories, desc)
	c.accessoriesByName[name] = desc
	c.accessoriesByID[desc.TypeID] = desc
	return desc.TypeID
}

func (c *compiler) accessoryOf(t schema.Type) (*schema.AccessoryDescription, bool) {
	var id schema.TypeID
	switch t := t.(type) {
	case *schema.Array:
		id = t.Accessory
	case *schema.Map:
		id = t.Accessory
	case *schema.Union:
		id = t.Accessory
	}
	desc, ok := c.accessoriesByID[id]
	return desc, ok
}
