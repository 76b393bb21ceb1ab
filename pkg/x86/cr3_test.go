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
	"errors"
	"strings"
	"testing"

	"gvisor.dev/x86regs/pkg/hostarch"
)

// expectPrecondition fails the test unless fn panics with a
// *PreconditionError.
func expectPrecondition(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Errorf("%s: did not panic", name)
			return
		}
		if _, ok := r.(*PreconditionError); !ok {
			t.Errorf("%s: panicked with %T (%v), want *PreconditionError", name, r, r)
		}
	}()
	fn()
}

var (
	cr4NoPCID = CR4PAE | CR4PSE | CR4OSFXSR
	cr4PCID   = cr4NoPCID | CR4PCIDE
)

func TestCR3Flags(t *testing.T) {
	for _, f := range []CR3Flags{0, CR3PWT, CR3PCD, CR3PWT | CR3PCD} {
		// Start from a value with every low bit set to check that the
		// reserved bits are cleared.
		c := CR3FromBits(0x1234_5000 | 0xfff)
		c.SetFlags(cr4NoPCID, f)
		if got := c.Flags(cr4NoPCID); got != f {
			t.Errorf("Flags() = %v, want %v", got, f)
		}
		if low := c.Bits() & 0xfff; low != f.Bits() {
			t.Errorf("low bits = %#x, want %#x", low, f.Bits())
		}
		if c.Bits()&0x7 != 0 {
			t.Errorf("reserved bits 0-2 set: %#x", c.Bits())
		}
		if got, want := c.PageTableBase(), uint64(0x1234_5000); got != want {
			t.Errorf("PageTableBase() = %#x, want %#x", got, want)
		}
	}
}

func TestCR3PCID(t *testing.T) {
	c := CR3FromBits(0xabc_d000)
	for p := 0; p <= MaxPCID; p++ {
		c.SetPCID(cr4PCID, uint16(p))
		if got := c.PCID(cr4PCID); got != uint16(p) {
			t.Fatalf("PCID() = %d, want %d", got, p)
		}
		if got := c.PageTableBase(); got != 0xabc_d000 {
			t.Fatalf("SetPCID(%d) changed base to %#x", p, got)
		}
	}
}

func TestCR3PCIDLimit(t *testing.T) {
	var c CR3
	c.SetPCID(cr4PCID, MaxPCID)
	if got := c.PCID(cr4PCID); got != MaxPCID {
		t.Errorf("PCID() = %d, want %d", got, MaxPCID)
	}
	expectPrecondition(t, "SetPCID(4096)", func() { c.SetPCID(cr4PCID, MaxPCID+1) })
	if got := c.PCID(cr4PCID); got != MaxPCID {
		t.Errorf("failed SetPCID modified the PCID to %d", got)
	}
}

func TestCR3ModeMismatch(t *testing.T) {
	var c CR3
	expectPrecondition(t, "Flags with PCIDE", func() { c.Flags(cr4PCID) })
	expectPrecondition(t, "SetFlags with PCIDE", func() { c.SetFlags(cr4PCID, CR3PWT) })
	expectPrecondition(t, "PCID without PCIDE", func() { c.PCID(cr4NoPCID) })
	expectPrecondition(t, "SetPCID without PCIDE", func() { c.SetPCID(cr4NoPCID, 1) })
	expectPrecondition(t, "NoFlush without PCIDE", func() { c.NoFlush(cr4NoPCID) })
	expectPrecondition(t, "SetNoFlush without PCIDE", func() { c.SetNoFlush(cr4NoPCID, true) })
	if c != 0 {
		t.Errorf("failed accessors modified CR3 to %#x", c.Bits())
	}
}

func TestCR3PageTableBase(t *testing.T) {
	for _, addr := range []uint64{
		0,
		hostarch.PageSize,
		0x1234_5678_9000,
		1<<hostarch.MaxPhysAddrBits - hostarch.PageSize,
	} {
		c := CR3FromBits(0xfff) | CR3NoFlush
		c.SetPageTableBase(addr)
		if got := c.PageTableBase(); got != addr {
			t.Errorf("PageTableBase() = %#x, want %#x", got, addr)
		}
		if got, want := c.Bits()&^uint64(0x000f_ffff_ffff_f000), uint64(0x8000_0000_0000_0fff); got != want {
			t.Errorf("SetPageTableBase(%#x) changed other bits: %#x, want %#x", addr, got, want)
		}
	}

	var c CR3
	expectPrecondition(t, "unaligned base", func() { c.SetPageTableBase(0x1001) })
	expectPrecondition(t, "oversized base", func() { c.SetPageTableBase(1 << hostarch.MaxPhysAddrBits) })
}

func TestCR3UnalignedBaseReportsPages(t *testing.T) {
	for _, tc := range []struct {
		addr uint64
		want string
	}{
		{0x1001, "nearest pages 0x1000 and 0x2000"},
		{0x2fff, "nearest pages 0x2000 and 0x3000"},
		{^uint64(0), "(page 0xfffffffffffff000)"},
	} {
		var c CR3
		err := Checked(func() { c.SetPageTableBase(tc.addr) })
		if err == nil {
			t.Errorf("SetPageTableBase(%#x) succeeded", tc.addr)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("SetPageTableBase(%#x) = %q, want it to contain %q", tc.addr, err, tc.want)
		}
		if c != 0 {
			t.Errorf("failed SetPageTableBase(%#x) modified CR3 to %#x", tc.addr, c.Bits())
		}
	}
}

func TestCR3NoFlush(t *testing.T) {
	var c CR3
	c.SetPCID(cr4PCID, 7)
	c.SetNoFlush(cr4PCID, true)
	if !c.NoFlush(cr4PCID) || c.PCID(cr4PCID) != 7 {
		t.Errorf("SetNoFlush(true) = %#x", c.Bits())
	}
	c.SetNoFlush(cr4PCID, false)
	if c.NoFlush(cr4PCID) {
		t.Errorf("SetNoFlush(false) = %#x", c.Bits())
	}
}

func TestCR3Format(t *testing.T) {
	var c CR3
	c.SetPageTableBase(0x10_0000)
	c.SetFlags(cr4NoPCID, CR3PCD)
	if got, want := c.Format(cr4NoPCID), "base=0x100000|PCD"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	c.SetPCID(cr4PCID, 42)
	c.SetNoFlush(cr4PCID, true)
	if got, want := c.Format(cr4PCID), "base=0x100000|pcid=42|NOFLUSH"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	c = CR3FromBits(0x1001)
	if got, want := c.Format(cr4NoPCID), "base=0x1000|0x1"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestCR3FromBitsStrict(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cr4     CR4
		bits    uint64
		unknown uint64
	}{
		{name: "flags", cr4: cr4NoPCID, bits: 0x1000 | uint64(CR3PWT|CR3PCD)},
		{name: "flags reserved low", cr4: cr4NoPCID, bits: 0x1001, unknown: 0x1},
		{name: "flags noflush", cr4: cr4NoPCID, bits: 1 << 63, unknown: 1 << 63},
		{name: "pcid", cr4: cr4PCID, bits: 0x2000 | MaxPCID | 1<<63},
		{name: "pcid above maxphyaddr", cr4: cr4PCID, bits: 1 << 52, unknown: 1 << 52},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := CR3FromBitsStrict(tc.cr4, tc.bits)
			if tc.unknown == 0 {
				if err != nil || c.Bits() != tc.bits {
					t.Errorf("CR3FromBitsStrict(%#x) = (%#x, %v), want (%#x, nil)", tc.bits, c.Bits(), err, tc.bits)
				}
				return
			}
			var ibe *InvalidBitsError
			if !errors.As(err, &ibe) || ibe.Unknown != tc.unknown || ibe.Register != "CR3" {
				t.Errorf("CR3FromBitsStrict(%#x) error = %v, want unknown bits %#x", tc.bits, err, tc.unknown)
			}
		})
	}
}

func TestChecked(t *testing.T) {
	var c CR3
	err := Checked(func() { c.PCID(cr4NoPCID) })
	var pe *PreconditionError
	if !errors.As(err, &pe) || pe.Op != "CR3.PCID" {
		t.Errorf("Checked() = %v, want *PreconditionError for CR3.PCID", err)
	}
	if err := Checked(func() { c.SetPCID(cr4PCID, 1) }); err != nil {
		t.Errorf("Checked() = %v, want nil", err)
	}

	defer func() {
		if r := recover(); r != "other" {
			t.Errorf("Checked swallowed or altered a foreign panic: %v", r)
		}
	}()
	Checked(func() { panic("other") })
}
