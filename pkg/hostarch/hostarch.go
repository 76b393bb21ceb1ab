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

// Package hostarch contains x86 page-size constants and physical address
// helpers used when building paging-related register values.
package hostarch

const (
	// PageShift is the binary log of the x86 base page size.
	PageShift = 12

	// PageSize is the x86 base page size.
	PageSize = 1 << PageShift

	// MaxPhysAddrBits is the architectural upper bound on physical address
	// width (MAXPHYADDR). Implementations may support fewer bits.
	MaxPhysAddrBits = 52
)

// Addr is a physical address.
type Addr uint64

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v & ^Addr(PageSize-1)
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = Addr(v + PageSize - 1).RoundDown()
	ok = addr >= v
	return
}

// PageOffset returns the offset of v into the current page.
func (v Addr) PageOffset() uint64 {
	return uint64(v & Addr(PageSize-1))
}

// IsPageAligned returns true if v.PageOffset() == 0.
func (v Addr) IsPageAligned() bool {
	return v.PageOffset() == 0
}

// FitsPhys returns true if v is addressable with MaxPhysAddrBits.
func (v Addr) FitsPhys() bool {
	return uint64(v)>>MaxPhysAddrBits == 0
}
