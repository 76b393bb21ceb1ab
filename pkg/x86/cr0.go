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

// CR0 holds the system control flags of control register 0.
type CR0 uint64

// CR0 flags.
const (
	// CR0PE enables protected mode.
	CR0PE CR0 = 1 << 0

	// CR0MP makes WAIT/FWAIT honour CR0TS.
	CR0MP CR0 = 1 << 1

	// CR0EM forces x87 and MMX instructions to raise #NM.
	CR0EM CR0 = 1 << 2

	// CR0TS is set on a hardware task switch to allow lazy FPU saves.
	CR0TS CR0 = 1 << 3

	// CR0ET is hardwired to one on modern processors.
	CR0ET CR0 = 1 << 4

	// CR0NE enables native x87 error reporting.
	CR0NE CR0 = 1 << 5

	// CR0WP inhibits supervisor writes to read-only pages.
	CR0WP CR0 = 1 << 16

	// CR0AM enables alignment checking (together with RFLAGSAC).
	CR0AM CR0 = 1 << 18

	// CR0NW is "not write-through"; ignored on modern processors.
	CR0NW CR0 = 1 << 29

	// CR0CD disables the caches.
	CR0CD CR0 = 1 << 30

	// CR0PG enables paging.
	CR0PG CR0 = 1 << 31
)

var cr0Table = newTable("CR0",
	field[CR0]{"PE", CR0PE},
	field[CR0]{"MP", CR0MP},
	field[CR0]{"EM", CR0EM},
	field[CR0]{"TS", CR0TS},
	field[CR0]{"ET", CR0ET},
	field[CR0]{"NE", CR0NE},
	field[CR0]{"WP", CR0WP},
	field[CR0]{"AM", CR0AM},
	field[CR0]{"NW", CR0NW},
	field[CR0]{"CD", CR0CD},
	field[CR0]{"PG", CR0PG},
)

// CR0Known is the set of all defined CR0 bits.
var CR0Known = cr0Table.known

// CR0FromBits returns v with undefined bits dropped.
func CR0FromBits(v uint64) CR0 {
	return cr0Table.truncate(v)
}

// CR0FromBitsStrict returns v as a CR0, or an *InvalidBitsError if v has
// undefined bits.
func CR0FromBitsStrict(v uint64) (CR0, error) {
	return cr0Table.validate(v)
}

// ParseCR0 parses flag names as produced by CR0.String.
func ParseCR0(s string) (CR0, error) {
	return cr0Table.parse(s)
}

// Bits returns the raw register value.
func (c CR0) Bits() uint64 { return uint64(c) }

// Contains returns true if all flags in o are set.
func (c CR0) Contains(o CR0) bool { return bits.IsOn(c, o) }

// Intersects returns true if any flag in o is set.
func (c CR0) Intersects(o CR0) bool { return bits.IsAnyOn(c, o) }

// Union returns c with the flags in o set.
func (c CR0) Union(o CR0) CR0 { return c | o }

// Intersect returns the flags set in both c and o.
func (c CR0) Intersect(o CR0) CR0 { return c & o }

// Difference returns c with the flags in o cleared.
func (c CR0) Difference(o CR0) CR0 { return c &^ o }

// Complement returns the defined flags not set in c.
func (c CR0) Complement() CR0 { return cr0Table.complement(c) }

// Insert sets the flags in o.
func (c *CR0) Insert(o CR0) { *c |= o }

// Remove clears the flags in o.
func (c *CR0) Remove(o CR0) { *c &^= o }

// Toggle flips the flags in o.
func (c *CR0) Toggle(o CR0) { *c ^= o }

// Set sets or clears the flags in o.
func (c *CR0) Set(o CR0, on bool) {
	if on {
		c.Insert(o)
	} else {
		c.Remove(o)
	}
}

// Names returns the names of the set flags in bit order.
func (c CR0) Names() []string { return cr0Table.names(c) }

// String implements fmt.Stringer.
func (c CR0) String() string { return cr0Table.format(c) }
