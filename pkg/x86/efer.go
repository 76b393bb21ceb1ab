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

// EFER holds the flags of the extended feature enable register
// (MSR 0xc0000080).
type EFER uint64

// EFER flags.
const (
	// EFERSCE enables SYSCALL/SYSRET.
	EFERSCE EFER = 1 << 0

	// EFERLME enables long mode; takes effect when paging is enabled.
	EFERLME EFER = 1 << 8

	// EFERLMA indicates that long mode is active.
	EFERLMA EFER = 1 << 10

	// EFERNXE enables the no-execute page bit.
	EFERNXE EFER = 1 << 11

	// EFERSVME enables SVM.
	EFERSVME EFER = 1 << 12

	// EFERLMSLE enables long mode segment limits.
	EFERLMSLE EFER = 1 << 13

	// EFERFFXSR enables fast FXSAVE/FXRSTOR.
	EFERFFXSR EFER = 1 << 14

	// EFERTCE enables the translation cache extension.
	EFERTCE EFER = 1 << 15
)

var eferTable = newTable("EFER",
	field[EFER]{"SCE", EFERSCE},
	field[EFER]{"LME", EFERLME},
	field[EFER]{"LMA", EFERLMA},
	field[EFER]{"NXE", EFERNXE},
	field[EFER]{"SVME", EFERSVME},
	field[EFER]{"LMSLE", EFERLMSLE},
	field[EFER]{"FFXSR", EFERFFXSR},
	field[EFER]{"TCE", EFERTCE},
)

// EFERKnown is the set of all defined EFER bits.
var EFERKnown = eferTable.known

// EFERFromBits returns v with undefined bits dropped.
func EFERFromBits(v uint64) EFER {
	return eferTable.truncate(v)
}

// EFERFromBitsStrict returns v as a EFER, or an *InvalidBitsError if v has
// undefined bits.
func EFERFromBitsStrict(v uint64) (EFER, error) {
	return eferTable.validate(v)
}

// ParseEFER parses flag names as produced by EFER.String.
func ParseEFER(s string) (EFER, error) {
	return eferTable.parse(s)
}

// Bits returns the raw value.
func (e EFER) Bits() uint64 { return uint64(e) }

// Contains returns true if all flags in o are set.
func (e EFER) Contains(o EFER) bool { return bits.IsOn(e, o) }

// Intersects returns true if any flag in o is set.
func (e EFER) Intersects(o EFER) bool { return bits.IsAnyOn(e, o) }

// Union returns e with the flags in o set.
func (e EFER) Union(o EFER) EFER { return e | o }

// Intersect returns the flags set in both e and o.
func (e EFER) Intersect(o EFER) EFER { return e & o }

// Difference returns e with the flags in o cleared.
func (e EFER) Difference(o EFER) EFER { return e &^ o }

// Complement returns the defined flags not set in e.
func (e EFER) Complement() EFER { return eferTable.complement(e) }

// Insert sets the flags in o.
func (e *EFER) Insert(o EFER) { *e |= o }

// Remove clears the flags in o.
func (e *EFER) Remove(o EFER) { *e &^= o }

// Toggle flips the flags in o.
func (e *EFER) Toggle(o EFER) { *e ^= o }

// Set sets or clears the flags in o.
func (e *EFER) Set(o EFER, on bool) {
	if on {
		e.Insert(o)
	} else {
		e.Remove(o)
	}
}

// Names returns the names of the set flags in bit order.
func (e EFER) Names() []string { return eferTable.names(e) }

// String implements fmt.Stringer.
func (e EFER) String() string { return eferTable.format(e) }
