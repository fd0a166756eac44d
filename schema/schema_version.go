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
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var ErrInvalidVersion = errors.New("invalid version")

var versionRegexp = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// Version is a "major.minor.patch" triple.
type Version struct {
	Major, Minor, Patch uint64
}

func ParseVersion(s string) (Version, error) {
	match := versionRegexp.FindStringSubmatch(s)
	if match == nil {
		return Version{}, fmt.Errorf("%w %q: must match MAJOR.MINOR.PATCH", ErrInvalidVersion, s)
	}
	var parts [3]uint64
	for ii := range parts {
		n, err := strconv.ParseUint(match[ii+1], 10, 64)
		if err != nil {
			return Version{}, fmt.Errorf("%w %q: %v", ErrInvalidVersion, s, err)
		}
		parts[ii] = n
	}
	return Version{parts[0], parts[1], parts[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare orders versions numerically, component by component.
func (v Version) Compare(other Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	return cmp.Compare(v.Patch, other.Patch)
}
