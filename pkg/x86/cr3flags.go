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

import "gvisor.dev/x86regs/pkg/bits"

// CR3Flags are the cache control flags for the top-level paging structure.
//
// They only exist when CR4PCIDE is clear; see CR3.Flags.
type CR3Flags uint64

// CR3 cache control flags.
const (
	// CR3PWT selects write-through caching.
	CR3PWT CR3Flags = 1 << 3

	// CR3PCD disables caching.
	CR3PCD CR3Flags = 1 << 4
)

var cr3FlagsTable = newTable("CR3",
	field[CR3Flags]{"PWT", CR3PWT},
	field[CR3Flags]{"PCD", CR3PCD},
)

// CR3FlagsKnown is the set of all defined CR3 cache control bits.
var CR3FlagsKnown = cr3FlagsTable.known

// CR3FlagsFromBits returns v with undefined bits dropped.
func CR3FlagsFromBits(v uint64) CR3Flags {
	return cr3FlagsTable.truncate(v)
}

// CR3FlagsFromBitsStrict returns v as a CR3Flags, or an *InvalidBitsError if v has
// undefined bits.
func CR3FlagsFromBitsStrict(v uint64) (CR3Flags, error) {
	return cr3FlagsTable.validate(v)
}

// ParseCR3Flags parses flag names as produced by CR3Flags.String.
func ParseCR3Flags(s string) (CR3Flags, error) {
	return cr3FlagsTable.parse(s)
}

// Bits returns the raw value.
func (f CR3Flags) Bits() uint64 { return uint64(f) }

// Contains returns true if all flags in o are set.
func (f CR3Flags) Contains(o CR3Flags) bool { return bits.IsOn(f, o) }

// Intersects returns true if any flag in o is set.
func (f CR3Flags) Intersects(o CR3Flags) bool { return bits.IsAnyOn(f, o) }

// Union returns f with the flags in o set.
func (f CR3Flags) Union(o CR3Flags) CR3Flags { return f | o }

// Intersect returns the flags set in both f and o.
func (f CR3Flags) Intersect(o CR3Flags) CR3Flags { return f & o }

// Difference returns f with the flags in o cleared.
func (f CR3Flags) Difference(o CR3Flags) CR3Flags { return f &^ o }

// Complement returns the defined flags not set in f.
func (f CR3Flags) Complement() CR3Flags { return cr3FlagsTable.complement(f) }

// Insert sets the flags in o.
func (f *CR3Flags) Insert(o CR3Flags) { *f |= o }

// Remove clears the flags in o.
func (f *CR3Flags) Remove(o CR3Flags) { *f &^= o }

// Toggle flips the flags in o.
func (f *CR3Flags) Toggle(o CR3Flags) { *f ^= o }

// Set sets or clears the flags in o.
func (f *CR3Flags) Set(o CR3Flags, on bool) {
	if on {
		f.Insert(o)
	} else {
		f.Remove(o)
	}
}

// Names returns the names of the set flags in bit order.
func (f CR3Flags) Names() []string { return cr3FlagsTable.names(f) }

// String implements fmt.Stringer.
func (f CR3Flags) String() string { return cr3FlagsTable.format(f) }
