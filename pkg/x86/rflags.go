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
	"gvisor.dev/x86regs/pkg/bits"
)

// RFLAGS is the processor status and control register.
//
// In addition to single-bit flags it holds the two-bit I/O privilege level
// (see IOPL) and a reserved bit that always reads as one (RFLAGSReserved).
type RFLAGS uint64

// RFLAGS flags.
const (
	// RFLAGSCF is the carry flag.
	RFLAGSCF RFLAGS = 1 << 0

	// RFLAGSReserved is reserved and always set.
	RFLAGSReserved RFLAGS = 1 << 1

	// RFLAGSPF is the parity flag.
	RFLAGSPF RFLAGS = 1 << 2

	// RFLAGSAF is the auxiliary carry flag.
	RFLAGSAF RFLAGS = 1 << 4

	// RFLAGSZF is the zero flag.
	RFLAGSZF RFLAGS = 1 << 6

	// RFLAGSSF is the sign flag.
	RFLAGSSF RFLAGS = 1 << 7

	// RFLAGSTF is the trap flag (single step).
	RFLAGSTF RFLAGS = 1 << 8

	// RFLAGSIF enables maskable interrupts.
	RFLAGSIF RFLAGS = 1 << 9

	// RFLAGSDF is the direction flag for string instructions.
	RFLAGSDF RFLAGS = 1 << 10

	// RFLAGSOF is the overflow flag.
	RFLAGSOF RFLAGS = 1 << 11

	// RFLAGSIOPL masks the I/O privilege level field.
	RFLAGSIOPL RFLAGS = 3 << rflagsIOPLShift

	// RFLAGSNT is the nested task flag.
	RFLAGSNT RFLAGS = 1 << 14

	// RFLAGSRF is the resume flag.
	RFLAGSRF RFLAGS = 1 << 16

	// RFLAGSVM enables virtual-8086 mode.
	RFLAGSVM RFLAGS = 1 << 17

	// RFLAGSAC enables alignment checking (together with CR0AM).
	RFLAGSAC RFLAGS = 1 << 18

	// RFLAGSVIF is the virtual interrupt flag.
	RFLAGSVIF RFLAGS = 1 << 19

	// RFLAGSVIP is the virtual interrupt pending flag.
	RFLAGSVIP RFLAGS = 1 << 20

	// RFLAGSID is writable iff the processor supports CPUID.
	RFLAGSID RFLAGS = 1 << 21

	// RFLAGSDefault is the value of RFLAGS after reset.
	RFLAGSDefault = RFLAGSReserved

	// MaxIOPL is the largest I/O privilege level.
	MaxIOPL = 3

	rflagsIOPLShift = 12
	rflagsIOPLWidth = 2
)

var rflagsTable = newTable("RFLAGS",
	field[RFLAGS]{"CF", RFLAGSCF},
	field[RFLAGS]{"RESERVED", RFLAGSReserved},
	field[RFLAGS]{"PF", RFLAGSPF},
	field[RFLAGS]{"AF", RFLAGSAF},
	field[RFLAGS]{"ZF", RFLAGSZF},
	field[RFLAGS]{"SF", RFLAGSSF},
	field[RFLAGS]{"TF", RFLAGSTF},
	field[RFLAGS]{"IF", RFLAGSIF},
	field[RFLAGS]{"DF", RFLAGSDF},
	field[RFLAGS]{"OF", RFLAGSOF},
	field[RFLAGS]{"IOPL", RFLAGSIOPL},
	field[RFLAGS]{"NT", RFLAGSNT},
	field[RFLAGS]{"RF", RFLAGSRF},
	field[RFLAGS]{"VM", RFLAGSVM},
	field[RFLAGS]{"AC", RFLAGSAC},
	field[RFLAGS]{"VIF", RFLAGSVIF},
	field[RFLAGS]{"VIP", RFLAGSVIP},
	field[RFLAGS]{"ID", RFLAGSID},
)

// RFLAGSKnown is the set of all defined RFLAGS bits, including the IOPL
// field and the reserved bit.
var RFLAGSKnown = rflagsTable.known

// DefaultRFLAGS returns RFLAGSDefault. It is the only register model whose
// default is not zero.
func DefaultRFLAGS() RFLAGS {
	return RFLAGSDefault
}

// IOPL returns the I/O privilege level, 0 through MaxIOPL.
func (r RFLAGS) IOPL() uint8 {
	return uint8(bits.Field(r, rflagsIOPLShift, rflagsIOPLWidth))
}

// SetIOPL replaces the I/O privilege level. No other bit changes.
//
// Precondition: level <= MaxIOPL.
func (r *RFLAGS) SetIOPL(level uint8) {
	if level > MaxIOPL {
		violated("RFLAGS.SetIOPL", "level %d exceeds %d", level, MaxIOPL)
	}
	*r = bits.SetField(*r, rflagsIOPLShift, rflagsIOPLWidth, uint64(level))
}

// RFLAGSFromBits returns v with undefined bits dropped.
func RFLAGSFromBits(v uint64) RFLAGS {
	return rflagsTable.truncate(v)
}

// RFLAGSFromBitsStrict returns v as a RFLAGS, or an *InvalidBitsError if v has
// undefined bits.
func RFLAGSFromBitsStrict(v uint64) (RFLAGS, error) {
	return rflagsTable.validate(v)
}

// ParseRFLAGS parses flag names as produced by RFLAGS.String.
func ParseRFLAGS(s string) (RFLAGS, error) {
	return rflagsTable.parse(s)
}

// Bits returns the raw value.
func (r RFLAGS) Bits() uint64 { return uint64(r) }

// Contains returns true if all flags in o are set.
func (r RFLAGS) Contains(o RFLAGS) bool { return bits.IsOn(r, o) }

// Intersects returns true if any flag in o is set.
func (r RFLAGS) Intersects(o RFLAGS) bool { return bits.IsAnyOn(r, o) }

// Union returns r with the flags in o set.
func (r RFLAGS) Union(o RFLAGS) RFLAGS { return r | o }

// Intersect returns the flags set in both r and o.
func (r RFLAGS) Intersect(o RFLAGS) RFLAGS { return r & o }

// Difference returns r with the flags in o cleared.
func (r RFLAGS) Difference(o RFLAGS) RFLAGS { return r &^ o }

// Complement returns the defined flags not set in r.
func (r RFLAGS) Complement() RFLAGS { return rflagsTable.complement(r) }

// Insert sets the flags in o.
func (r *RFLAGS) Insert(o RFLAGS) { *r |= o }

// Remove clears the flags in o.
func (r *RFLAGS) Remove(o RFLAGS) { *r &^= o }

// Toggle flips the flags in o.
func (r *RFLAGS) Toggle(o RFLAGS) { *r ^= o }

// Set sets or clears the flags in o.
func (r *RFLAGS) Set(o RFLAGS, on bool) {
	if on {
		r.Insert(o)
	} else {
		r.Remove(o)
	}
}

// Names returns the names of the set flags in bit order.
func (r RFLAGS) Names() []string { return rflagsTable.names(r) }

// String implements fmt.Stringer.
func (r RFLAGS) String() string { return rflagsTable.format(r) }
