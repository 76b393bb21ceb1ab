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

// Package bits includes all bit related types and operations.
package bits

import (
	mathbits "math/bits"
)

// Word is any 64-bit wide integer type.
type Word interface {
	~uint64
}

// IsOn returns true if *all* bits set in 'bits' are set in 'mask'.
func IsOn[T Word](mask, bits T) bool {
	return mask&bits == bits
}

// IsAnyOn returns true if *any* bit set in 'bits' is set in 'mask'.
func IsAnyOn[T Word](mask, bits T) bool {
	return mask&bits != 0
}

// MaskOf returns a T with only bit i set.
func MaskOf[T Word](i int) T {
	return T(1) << uint(i)
}

// FieldMask returns a mask of width bits starting at bit shift.
func FieldMask[T Word](shift, width int) T {
	if width >= 64 {
		return ^T(0) << uint(shift)
	}
	return ((T(1) << uint(width)) - 1) << uint(shift)
}

// Field extracts the width-bit field at shift from v.
func Field[T Word](v T, shift, width int) uint64 {
	return uint64((v & FieldMask[T](shift, width)) >> uint(shift))
}

// SetField returns v with the width-bit field at shift replaced by val.
//
// Precondition: val fits in width bits.
func SetField[T Word](v T, shift, width int, val uint64) T {
	m := FieldMask[T](shift, width)
	return (v &^ m) | ((T(val) << uint(shift)) & m)
}

// Fits returns true if val can be stored in a field of the given width.
func Fits(val uint64, width int) bool {
	return width >= 64 || val>>uint(width) == 0
}

// IsSingleBit returns true if exactly one bit is set in v.
func IsSingleBit[T Word](v T) bool {
	return v != 0 && v&(v-1) == 0
}

// TrailingZeros64 returns the number of bits before the least significant 1
// bit in x; in other words, it returns the index of the least significant 1
// bit in x. If x is 0, TrailingZeros64 returns 64.
func TrailingZeros64(x uint64) int {
	return mathbits.TrailingZeros64(x)
}

// MostSignificantOne64 returns the index of the most significant 1 bit in
// x. If x is 0, MostSignificantOne64 returns 64.
func MostSignificantOne64(x uint64) int {
	if x == 0 {
		return 64
	}
	return 63 - mathbits.LeadingZeros64(x)
}

// ForEachSetBit64 calls f once for each set bit in x, with argument i equal
// to the set bit's index, in increasing order.
func ForEachSetBit64(x uint64, f func(i int)) {
	for x != 0 {
		i := TrailingZeros64(x)
		f(i)
		x &^= MaskOf[uint64](i)
	}
}
