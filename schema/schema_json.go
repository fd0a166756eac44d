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

package schema

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

var ErrDigestMismatch = errors.New("history digest mismatch")

type typeJSON struct {
	Kind      string      `json:"kind"`
	TypeID    TypeID      `json:"typeId"`
	Literal   string      `json:"literal,omitempty"`
	Scope     string      `json:"scope,omitempty"`
	Name      string      `json:"name,omitempty"`
	Dims      uint32      `json:"dims,omitempty"`
	Base      *typeJSON   `json:"base,omitempty"`
	Key       *typeJSON   `json:"key,omitempty"`
	Value     *typeJSON   `json:"value,omitempty"`
	Members   []*typeJSON `json:"members,omitempty"`
	Accessory TypeID      `json:"accessory,omitempty"`
}

func encodeType(t Type) *typeJSON {
	switch t := t.(type) {
	case *Native:
		return &typeJSON{Kind: "native", TypeID: t.ID, Literal: t.Literal}
	case *Array:
		return &typeJSON{
			Kind:      "array",
			TypeID:    TypeArray,
			Dims:      t.Dims,
			Base:      encodeType(t.Base),
			Accessory: t.Accessory,
		}
	case *Map:
		return &typeJSON{
			Kind:      "map",
			TypeID:    TypeMap,
			Key:       encodeType(t.Key),
			Value:     encodeType(t.Value),
			Accessory: t.Accessory,
		}
	case *Union:
		members := make([]*typeJSON, 0, len(t.Members))
		for _, member := range t.Members {
			members = append(members, encodeType(member))
		}
		return &typeJSON{
			Kind:      "union",
			TypeID:    TypeUnion,
			Members:   members,
			Accessory: t.Accessory,
		}
	case *UserDef:
		return &typeJSON{Kind: "userDef", TypeID: t.ID, Scope: t.Scope, Name: t.Name}
	}
	panic(fmt.Sprintf("unknown type %T", t))
}

func decodeType(raw *typeJSON) (Type, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing type")
	}
	switch raw.Kind {
	case "native":
		native, ok := LookupNative(raw.Literal)
		if !ok || native.ID != raw.TypeID {
			return nil, fmt.Errorf("unknown native type %q (id %d)", raw.Literal, raw.TypeID)
		}
		return native, nil
	case "array":
		base, err := decodeType(raw.Base)
		if err != nil {
			return nil, err
		}
		if raw.Dims == 0 {
			return nil, fmt.Errorf("array type with zero dimensions")
		}
		return &Array{Base: base, Dims: raw.Dims, Accessory: raw.Accessory}, nil
	case "map":
		key, err := decodeType(raw.Key)
		if err != nil {
			return nil, err
		}
		native, ok := key.(*Native)
		if !ok {
			return nil, fmt.Errorf("map key must be a native type, got %s", key)
		}
		value, err := decodeType(raw.Value)
		if err != nil {
			return nil, err
		}
		return &Map{Key: native, Value: value, Accessory: raw.Accessory}, nil
	case "union":
		members := make([]Type, 0, len(raw.Members))
		for _, rawMember := range raw.Members {
			member, err := decodeType(rawMember)
			if err != nil {
				return nil, err
			}
			members = append(members, member)
		}
		return &Union{Members: members, Accessory: raw.Accessory}, nil
	case "userDef":
		return &UserDef{ID: raw.TypeID, Scope: raw.Scope, Name: raw.Name}, nil
	}
	return nil, fmt.Errorf("unknown type kind %q", raw.Kind)
}

type memberJSON struct {
	Name           string    `json:"name"`
	Type           *typeJSON `json:"type"`
	Ref            RefKind   `json:"refKind"`
	Offset         uint32    `json:"offset"`
	ResolvedTypeID TypeID    `json:"resolvedTypeId"`
}

func (m *Member) MarshalJSON() ([]byte, error) {
	return json.Marshal(&memberJSON{
		Name:           m.Name,
		Type:           encodeType(m.Type),
		Ref:            m.Ref,
		Offset:         m.Offset,
		ResolvedTypeID: m.ResolvedTypeID,
	})
}

func (m *Member) UnmarshalJSON(data []byte) error {
	var raw memberJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	memberType, err := decodeType(raw.Type)
	if err != nil {
		return fmt.Errorf("member %q: %w", raw.Name, err)
	}
	*m = Member{
		Name:           raw.Name,
		Type:           memberType,
		Ref:            raw.Ref,
		Offset:         raw.Offset,
		ResolvedTypeID: raw.ResolvedTypeID,
	}
	return nil
}

type historyFile struct {
	Version     string                  `json:"version"`
	Enums       []*EnumDescription      `json:"enumDefs"`
	Structs     []*StructDescription    `json:"structDefs"`
	Accessories []*AccessoryDescription `json:"accessories"`
	Digest      string                  `json:"digest,omitempty"`
}

func toHistory(s *Schema) *historyFile {
	return &historyFile{
		Version:     s.Version,
		Enums:       s.Enums,
		Structs:     s.Structs,
		Accessories: s.Accessories,
	}
}

// Digest returns the hex-encoded BLAKE2b-256 hash of the schema's compact
// JSON encoding.
func Digest(s *Schema) (string, error) {
	data, err := json.Marshal(toHistory(s))
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Marshal encodes a schema as an indented history document carrying its
// digest.
func Marshal(s *Schema) ([]byte, error) {
	digest, err := Digest(s)
	if err != nil {
		return nil, err
	}
	history := toHistory(s)
	history.Digest = digest
	data, err := json.MarshalIndent(history, "", "\t")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a history document. A document without a digest is
// accepted as-is; one whose digest does not match its content is rejected
// with ErrDigestMismatch.
func Unmarshal(data []byte) (*Schema, error) {
	var history historyFile
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&history); err != nil {
		return nil, err
	}
	s := &Schema{
		Version:     history.Version,
		Enums:       history.Enums,
		Structs:     history.Structs,
		Accessories: history.Accessories,
	}
	for _, desc := range s.Enums {
		if desc == nil || desc.Underlying == nil {
			return nil, fmt.Errorf("enum without underlying type")
		}
	}
	for _, desc := range s.Structs {
		if desc == nil {
			return nil, fmt.Errorf("null struct description")
		}
	}
	for _, desc := range s.Accessories {
		if desc == nil {
			return nil, fmt.Errorf("null accessory description")
		}
	}
	if history.Digest != "" {
		digest, err := Digest(s)
		if err != nil {
			return nil, err
		}
		if digest != history.Digest {
			return nil, fmt.Errorf("%w: recorded %s, computed %s", ErrDigestMismatch, history.Digest, digest)
		}
	}
	return s, nil
}

// ReadFile loads a history file. A missing file is reported with an error
// matching fs.ErrNotExist.
func ReadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WriteFile replaces the history file at path. The new content is written
// to a temporary file in the same directory and renamed into place.
func WriteFile(path string, s *Schema) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmp.Name())
		return writeErr
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
