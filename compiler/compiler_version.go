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
	"errors"
	"io/fs"

	"go.smsg-lang.org/smsg/schema"
)

// loadPrevious reads the previous schema, checks the requested version
// against it, and seeds the id allocator.
func (c *compiler) loadPrevious() {
	historyFile := &SourceFile{Path: c.opts.historyPath}
	previous := c.opts.previous
	if previous == nil && c.opts.historyPath != "" {
		loaded, err := schema.ReadFile(c.opts.historyPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			c.err(historyFile, errHistoryParse(err))
		default:
			previous = loaded
		}
	}
	if previous != nil {
		if err := previous.Validate(); err != nil {
			if errors.Is(err, schema.ErrDuplicateTypeID) {
				c.err(historyFile, errHistoryDuplicateTypeID(err))
			} else {
				c.err(historyFile, errHistoryParse(err))
			}
			previous = nil
		}
	}

	c.version = c.opts.version
	if c.version == "" {
		c.version = "0.0.0"
		if previous != nil {
			c.version = previous.Version
		}
	}
	next, err := schema.ParseVersion(c.version)
	if err != nil {
		c.err(nil, errInvalidVersion(c.version))
	} else if previous != nil {
		prev, err := schema.ParseVersion(previous.Version)
		if err != nil {
			c.err(historyFile, errHistoryParse(err))
		} else if next.Compare(prev) < 0 {
			c.err(nil, errNonMonotonicVersion(previous.Version, c.version))
		}
	}

	c.ids = newIDAllocator(previous)
}

type declKey struct {
	scope string
	name  string
}

// idAllocator hands out type ids, reusing the id a declaration or
// accessory had in the previous schema. New ids continue after the largest
// id the previous schema used, so ids of removed types are never recycled.
type idAllocator struct {
	decls       map[declKey]schema.TypeID
	accessories map[string]schema.TypeID
	next        schema.TypeID
}

func newIDAllocator(previous *schema.Schema) *idAllocator {
	a := &idAllocator{
		decls:       make(map[declKey]schema.TypeID),
		accessories: make(map[string]schema.TypeID),
		next:        schema.MinUserTypeID,
	}
	if previous == nil {
		return a
	}
	for _, desc := range previous.Enums {
		a.decls[declKey{desc.Scope, desc.Name}] = desc.TypeID
	}
	for _, desc := range previous.Structs {
		a.decls[declKey{desc.Scope, desc.Name}] = desc.TypeID
	}
	for _, desc := range previous.Accessories {
		a.accessories[desc.Name] = desc.TypeID
	}
	a.next = previous.MaxTypeID() + 1
	return a
}

func (a *idAllocator) declID(scope, name string) schema.TypeID {
	if id, ok := a.decls[declKey{scope, name}]; ok {
		return id
	}
	return a.fresh()
}

func (a *idAllocator) accessoryID(name string) schema.TypeID {
	if id, ok := a.accessories[name]; ok {
		return id
	}
	return a.fresh()
}

func (a *idAllocator) fresh() schema.TypeID {
	id := a.next
	a.next++
	return id
}
