// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package x86

import (
	"fmt"
	"strconv"
	"strings"

	"gvisor.dev/x86regs/pkg/bits"
)

// field names a mask within a register. Single-bit masks are flags; wider
// masks are multi-bit fields rendered as name=value.
type field[T bits.Word] struct {
	name string
	mask T
}

// table describes the named layout of one register type.
type table[T bits.Word] struct {
	register string
	fields   []field[T]
	known    T

	// owner maps each known bit to its index in fields.
	owner [64]uint8
}

// newTable builds a table from fields, which must not overlap.
func newTable[T bits.Word](register string, fields ...field[T]) *table[T] {
	t := &table[T]{
		register: register,
		fields:   fields,
	}
	for i, f := range fields {
		if f.mask == 0 {
			panic(fmt.Sprintf("%s: field %s has an empty mask", register, f.name))
		}
		if t.known&f.mask != 0 {
			panic(fmt.Sprintf("%s: field %s (%#x) overlaps known bits %#x", register, f.name, uint64(f.mask), uint64(t.known)))
		}
		t.known |= f.mask
		bits.ForEachSetBit64(uint64(f.mask), func(b int) {
			t.owner[b] = uint8(i)
		})
	}
	return t
}

// truncate drops all bits outside the known set.
func (t *table[T]) truncate(v uint64) T {
	return T(v) & t.known
}

// validate returns v as a T, or an *InvalidBitsError if v has unknown bits.
func (t *table[T]) validate(v uint64) (T, error) {
	if unknown := v &^ uint64(t.known); unknown != 0 {
		return t.truncate(v), &InvalidBitsError{
			Register: t.register,
			Bits:     v,
			Unknown:  unknown,
		}
	}
	return T(v), nil
}

// complement returns the known bits not set in v.
func (t *table[T]) complement(v T) T {
	return ^v & t.known
}

// names returns the set fields of v in bit order. A multi-bit field is
// reported at its lowest set bit.
func (t *table[T]) names(v T) []string {
	var out []string
	bits.ForEachSetBit64(uint64(v&t.known), func(b int) {
		f := t.fields[t.owner[b]]
		if bits.IsSingleBit(f.mask) {
			out = append(out, f.name)
			return
		}
		if b != bits.TrailingZeros64(uint64(v&f.mask)) {
			return
		}
		shift := bits.TrailingZeros64(uint64(f.mask))
		out = append(out, fmt.Sprintf("%s=%d", f.name, uint64(v&f.mask)>>uint(shift)))
	})
	return out
}

// format renders v as "A|B|name=n", with unknown bits as a trailing hex
// literal and "0" for the empty value.
func (t *table[T]) format(v T) string {
	parts := t.names(v)
	if unknown := v &^ t.known; unknown != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint64(unknown)))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

func (t *table[T]) lookup(name string) (field[T], bool) {
	for _, f := range t.fields {
		if strings.EqualFold(f.name, name) {
			return f, true
		}
	}
	return field[T]{}, false
}

// parse is the inverse of format for known bits. Tokens are separated by
// '|', ',' or whitespace; a numeric token is validated strictly.
func (t *table[T]) parse(s string) (T, error) {
	var v T
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, tok := range tokens {
		if n, err := strconv.ParseUint(tok, 0, 64); err == nil {
			x, err := t.validate(n)
			if err != nil {
				return 0, err
			}
			v |= x
			continue
		}
		name, value, hasValue := strings.Cut(tok, "=")
		f, ok := t.lookup(name)
		if !ok {
			return 0, fmt.Errorf("%s: unknown flag %q", t.register, name)
		}
		if !hasValue {
			if !bits.IsSingleBit(f.mask) {
				return 0, fmt.Errorf("%s: field %s requires a value", t.register, f.name)
			}
			v |= f.mask
			continue
		}
		n, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid value for %s: %w", t.register, f.name, err)
		}
		shift := bits.TrailingZeros64(uint64(f.mask))
		width := bits.MostSignificantOne64(uint64(f.mask)) - shift + 1
		if !bits.Fits(n, width) {
			return 0, fmt.Errorf("%s: value %d does not fit in %d-bit field %s", t.register, n, width, f.name)
		}
		v = bits.SetField(v, shift, width, n)
	}
	return v, nil
}
