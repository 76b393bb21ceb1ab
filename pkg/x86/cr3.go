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
	"strings"

	"gvisor.dev/x86regs/pkg/bits"
	"gvisor.dev/x86regs/pkg/hostarch"
)

// CR3 is the page directory base register.
//
// Its low twelve bits have two mutually exclusive meanings. With CR4PCIDE
// clear, bits 3 and 4 are the CR3Flags cache controls. With CR4PCIDE set,
// bits 0-11 are the process-context identifier. The register itself cannot
// tell which applies, so every accessor of the low bits takes the current
// CR4 value and panics with a *PreconditionError on a mismatch.
//
// Bits 12 to MaxPhysAddrBits-1 hold the physical address of the top-level
// paging structure. Bit 63 is the PCID no-flush hint.
type CR3 uint64

const (
	// MaxPCID is the largest process-context identifier.
	MaxPCID = 1<<cr3LowWidth - 1

	// CR3NoFlush asks the processor not to invalidate TLB entries tagged
	// with the new PCID when CR3 is loaded (SDM 4.10.4.1).
	CR3NoFlush CR3 = 1 << 63

	cr3LowShift  = 0
	cr3LowWidth  = 12
	cr3BaseShift = hostarch.PageShift
	cr3BaseWidth = hostarch.MaxPhysAddrBits - hostarch.PageShift
)

// CR3FromBits returns v as a CR3. All bits are retained.
func CR3FromBits(v uint64) CR3 {
	return CR3(v)
}

// CR3FromBitsStrict returns v as a CR3, failing if v sets a bit that has no
// meaning in the mode selected by cr4. With CR4PCIDE clear those are bits
// 0-2, 5-11 and 52-63; with it set, bits 52-62.
func CR3FromBitsStrict(cr4 CR4, v uint64) (CR3, error) {
	if unknown := CR3(v) &^ cr3Known(cr4); unknown != 0 {
		return 0, &InvalidBitsError{Register: "CR3", Bits: v, Unknown: uint64(unknown)}
	}
	return CR3(v), nil
}

// cr3Known returns the bits of CR3 that carry meaning under cr4.
func cr3Known(cr4 CR4) CR3 {
	known := bits.FieldMask[CR3](cr3BaseShift, cr3BaseWidth)
	if cr4.Contains(CR4PCIDE) {
		return known | bits.FieldMask[CR3](cr3LowShift, cr3LowWidth) | CR3NoFlush
	}
	return known | CR3(CR3FlagsKnown)
}

// Bits returns the raw register value.
func (c CR3) Bits() uint64 {
	return uint64(c)
}

func (c CR3) low() uint64 {
	return bits.Field(c, cr3LowShift, cr3LowWidth)
}

func (c *CR3) setLow(v uint64) {
	*c = bits.SetField(*c, cr3LowShift, cr3LowWidth, v)
}

func requireFlagsMode(op string, cr4 CR4) {
	if cr4.Contains(CR4PCIDE) {
		violated(op, "CR4.PCIDE is set, low bits hold a PCID")
	}
}

func requirePCIDMode(op string, cr4 CR4) {
	if !cr4.Contains(CR4PCIDE) {
		violated(op, "CR4.PCIDE is clear, low bits hold cache flags")
	}
}

// Flags returns the cache control flags.
//
// Precondition: cr4 does not have CR4PCIDE set.
func (c CR3) Flags(cr4 CR4) CR3Flags {
	requireFlagsMode("CR3.Flags", cr4)
	return CR3FlagsFromBits(c.low())
}

// SetFlags replaces bits 0-11 with f. The reserved bits 0-2 and 5-11 are
// left zero.
//
// Precondition: cr4 does not have CR4PCIDE set.
func (c *CR3) SetFlags(cr4 CR4, f CR3Flags) {
	requireFlagsMode("CR3.SetFlags", cr4)
	c.setLow(uint64(f & CR3FlagsKnown))
}

// PCID returns the process-context identifier.
//
// Precondition: cr4 has CR4PCIDE set.
func (c CR3) PCID(cr4 CR4) uint16 {
	requirePCIDMode("CR3.PCID", cr4)
	return uint16(c.low())
}

// SetPCID replaces bits 0-11 with pcid.
//
// Preconditions:
//   - cr4 has CR4PCIDE set.
//   - pcid <= MaxPCID.
func (c *CR3) SetPCID(cr4 CR4, pcid uint16) {
	requirePCIDMode("CR3.SetPCID", cr4)
	if pcid > MaxPCID {
		violated("CR3.SetPCID", "PCID %d exceeds %d", pcid, MaxPCID)
	}
	c.setLow(uint64(pcid))
}

// NoFlush returns true if CR3NoFlush is set.
//
// Precondition: cr4 has CR4PCIDE set.
func (c CR3) NoFlush(cr4 CR4) bool {
	requirePCIDMode("CR3.NoFlush", cr4)
	return c&CR3NoFlush != 0
}

// SetNoFlush sets or clears CR3NoFlush.
//
// Precondition: cr4 has CR4PCIDE set.
func (c *CR3) SetNoFlush(cr4 CR4, on bool) {
	requirePCIDMode("CR3.SetNoFlush", cr4)
	if on {
		*c |= CR3NoFlush
	} else {
		*c &^= CR3NoFlush
	}
}

// PageTableBase returns the physical address of the top-level paging
// structure.
func (c CR3) PageTableBase() uint64 {
	return uint64(c & bits.FieldMask[CR3](cr3BaseShift, cr3BaseWidth))
}

// SetPageTableBase sets the physical address of the top-level paging
// structure. All other bits are preserved.
//
// Precondition: addr is page aligned and below 1<<MaxPhysAddrBits.
func (c *CR3) SetPageTableBase(addr uint64) {
	a := hostarch.Addr(addr)
	if !a.IsPageAligned() {
		if up, ok := a.RoundUp(); ok {
			violated("CR3.SetPageTableBase", "address %#x is not page aligned (nearest pages %#x and %#x)", addr, uint64(a.RoundDown()), uint64(up))
		}
		violated("CR3.SetPageTableBase", "address %#x is not page aligned (page %#x)", addr, uint64(a.RoundDown()))
	}
	if !a.FitsPhys() {
		violated("CR3.SetPageTableBase", "address %#x exceeds %d physical address bits", addr, hostarch.MaxPhysAddrBits)
	}
	*c = bits.SetField(*c, cr3BaseShift, cr3BaseWidth, addr>>cr3BaseShift)
}

// Format renders c according to the mode selected by cr4, e.g.
// "base=0x1000|PWT" or "base=0x1000|pcid=7|NOFLUSH". Bits outside the
// fields of that mode are appended as a hex literal.
func (c CR3) Format(cr4 CR4) string {
	parts := []string{fmt.Sprintf("base=%#x", c.PageTableBase())}
	if cr4.Contains(CR4PCIDE) {
		parts = append(parts, fmt.Sprintf("pcid=%d", c.PCID(cr4)))
		if c.NoFlush(cr4) {
			parts = append(parts, "NOFLUSH")
		}
	} else if f := c.Flags(cr4); f != 0 {
		parts = append(parts, f.Names()...)
	}
	if rest := c &^ cr3Known(cr4); rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}

// String implements fmt.Stringer. It cannot know the PCID mode, so it
// only prints the raw value; use Format for a decoded view.
func (c CR3) String() string {
	return fmt.Sprintf("%#x", uint64(c))
}
