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

// CR4 holds the architectural extension flags of control register 4.
//
// CR4PCIDE also selects how the low twelve bits of CR3 are interpreted.
type CR4 uint64

// CR4 flags.
const (
	// CR4VME enables virtual-8086 mode extensions.
	CR4VME CR4 = 1 << 0

	// CR4PVI enables protected-mode virtual interrupts.
	CR4PVI CR4 = 1 << 1

	// CR4TSD restricts RDTSC to ring 0.
	CR4TSD CR4 = 1 << 2

	// CR4DE enables I/O breakpoints in the debug registers.
	CR4DE CR4 = 1 << 3

	// CR4PSE enables 4MiB pages in 32-bit paging.
	CR4PSE CR4 = 1 << 4

	// CR4PAE enables physical address extension; required for long mode.
	CR4PAE CR4 = 1 << 5

	// CR4MCE enables the machine check exception.
	CR4MCE CR4 = 1 << 6

	// CR4PGE enables global pages.
	CR4PGE CR4 = 1 << 7

	// CR4PCE allows RDPMC at any privilege level.
	CR4PCE CR4 = 1 << 8

	// CR4OSFXSR enables FXSAVE/FXRSTOR and SSE.
	CR4OSFXSR CR4 = 1 << 9

	// CR4OSXMMEXCPT enables unmasked SSE exceptions.
	CR4OSXMMEXCPT CR4 = 1 << 10

	// CR4UMIP prevents SGDT, SIDT, SLDT, SMSW and STR above ring 0.
	CR4UMIP CR4 = 1 << 11

	// CR4LA57 enables five-level paging.
	CR4LA57 CR4 = 1 << 12

	// CR4VMXE enables VMX operation.
	CR4VMXE CR4 = 1 << 13

	// CR4SMXE enables SMX operation.
	CR4SMXE CR4 = 1 << 14

	// CR4FSGSBASE enables the RD/WR{FS,GS}BASE instructions.
	CR4FSGSBASE CR4 = 1 << 16

	// CR4PCIDE enables process-context identifiers.
	CR4PCIDE CR4 = 1 << 17

	// CR4OSXSAVE enables XSAVE and extended states.
	CR4OSXSAVE CR4 = 1 << 18

	// CR4SMEP enables supervisor-mode execution prevention.
	CR4SMEP CR4 = 1 << 20

	// CR4SMAP enables supervisor-mode access prevention.
	CR4SMAP CR4 = 1 << 21

	// CR4PKE enables protection keys for user pages.
	CR4PKE CR4 = 1 << 22

	// CR4CET enables control-flow enforcement.
	CR4CET CR4 = 1 << 23

	// CR4PKS enables protection keys for supervisor pages.
	CR4PKS CR4 = 1 << 24
)

var cr4Table = newTable("CR4",
	field[CR4]{"VME", CR4VME},
	field[CR4]{"PVI", CR4PVI},
	field[CR4]{"TSD", CR4TSD},
	field[CR4]{"DE", CR4DE},
	field[CR4]{"PSE", CR4PSE},
	field[CR4]{"PAE", CR4PAE},
	field[CR4]{"MCE", CR4MCE},
	field[CR4]{"PGE", CR4PGE},
	field[CR4]{"PCE", CR4PCE},
	field[CR4]{"OSFXSR", CR4OSFXSR},
	field[CR4]{"OSXMMEXCPT", CR4OSXMMEXCPT},
	field[CR4]{"UMIP", CR4UMIP},
	field[CR4]{"LA57", CR4LA57},
	field[CR4]{"VMXE", CR4VMXE},
	field[CR4]{"SMXE", CR4SMXE},
	field[CR4]{"FSGSBASE", CR4FSGSBASE},
	field[CR4]{"PCIDE", CR4PCIDE},
	field[CR4]{"OSXSAVE", CR4OSXSAVE},
	field[CR4]{"SMEP", CR4SMEP},
	field[CR4]{"SMAP", CR4SMAP},
	field[CR4]{"PKE", CR4PKE},
	field[CR4]{"CET", CR4CET},
	field[CR4]{"PKS", CR4PKS},
)

// CR4Known is the set of all defined CR4 bits.
var CR4Known = cr4Table.known

// CR4FromBits returns v with undefined bits dropped.
func CR4FromBits(v uint64) CR4 {
	return cr4Table.truncate(v)
}

// CR4FromBitsStrict returns v as a CR4, or an *InvalidBitsError if v has
// undefined bits.
func CR4FromBitsStrict(v uint64) (CR4, error) {
	return cr4Table.validate(v)
}

// ParseCR4 parses flag names as produced by CR4.String.
func ParseCR4(s string) (CR4, error) {
	return cr4Table.parse(s)
}

// Bits returns the raw value.
func (c CR4) Bits() uint64 { return uint64(c) }

// Contains returns true if all flags in o are set.
func (c CR4) Contains(o CR4) bool { return bits.IsOn(c, o) }

// Intersects returns true if any flag in o is set.
func (c CR4) Intersects(o CR4) bool { return bits.IsAnyOn(c, o) }

// Union returns c with the flags in o set.
func (c CR4) Union(o CR4) CR4 { return c | o }

// Intersect returns the flags set in both c and o.
func (c CR4) Intersect(o CR4) CR4 { return c & o }

// Difference returns c with the flags in o cleared.
func (c CR4) Difference(o CR4) CR4 { return c &^ o }

// Complement returns the defined flags not set in c.
func (c CR4) Complement() CR4 { return cr4Table.complement(c) }

// Insert sets the flags in o.
func (c *CR4) Insert(o CR4) { *c |= o }

// Remove clears the flags in o.
func (c *CR4) Remove(o CR4) { *c &^= o }

// Toggle flips the flags in o.
func (c *CR4) Toggle(o CR4) { *c ^= o }

// Set sets or clears the flags in o.
func (c *CR4) Set(o CR4, on bool) {
	if on {
		c.Insert(o)
	} else {
		c.Remove(o)
	}
}

// Names returns the names of the set flags in bit order.
func (c CR4) Names() []string { return cr4Table.names(c) }

// String implements fmt.Stringer.
func (c CR4) String() string { return cr4Table.format(c) }
