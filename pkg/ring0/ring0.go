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

// Package ring0 computes the control register values a 64-bit kernel runs
// with, expressed with the typed register models of package x86.
//
// Nothing here executes privileged instructions. The values are meant to be
// loaded by the caller (e.g. via KVM_SET_SREGS or a mov to CRn).
package ring0

import (
	"gvisor.dev/x86regs/pkg/x86"
)

const (
	// KernelFlagsSet should always be set in the kernel.
	KernelFlagsSet = x86.RFLAGSReserved

	// UserFlagsSet are always set in userspace.
	UserFlagsSet = x86.RFLAGSReserved | x86.RFLAGSIF

	// KernelFlagsClear should always be clear in the kernel.
	KernelFlagsClear = x86.RFLAGSIF | x86.RFLAGSNT | x86.RFLAGSIOPL

	// UserFlagsClear are always cleared in userspace.
	UserFlagsClear = x86.RFLAGSNT | x86.RFLAGSIOPL
)

// Features are the processor features that influence control register
// values. Detecting them is the caller's responsibility.
type Features struct {
	PCID     bool `toml:"pcid" json:"pcid" yaml:"pcid"`
	XSAVE    bool `toml:"xsave" json:"xsave" yaml:"xsave"`
	SMEP     bool `toml:"smep" json:"smep" yaml:"smep"`
	SMAP     bool `toml:"smap" json:"smap" yaml:"smap"`
	FSGSBASE bool `toml:"fsgsbase" json:"fsgsbase" yaml:"fsgsbase"`
	UMIP     bool `toml:"umip" json:"umip" yaml:"umip"`
}

// CR0 returns the kernel's CR0 value.
func (f Features) CR0() x86.CR0 {
	return x86.CR0PE | x86.CR0PG | x86.CR0AM | x86.CR0ET | x86.CR0NE
}

// CR4 returns the kernel's CR4 value.
func (f Features) CR4() x86.CR4 {
	cr4 := x86.CR4PAE | x86.CR4PSE | x86.CR4OSFXSR | x86.CR4OSXMMEXCPT
	cr4.Set(x86.CR4PCIDE, f.PCID)
	cr4.Set(x86.CR4OSXSAVE, f.XSAVE)
	cr4.Set(x86.CR4SMEP, f.SMEP)
	cr4.Set(x86.CR4SMAP, f.SMAP)
	cr4.Set(x86.CR4FSGSBASE, f.FSGSBASE)
	cr4.Set(x86.CR4UMIP, f.UMIP)
	return cr4
}

// EFER returns the kernel's EFER value.
func (f Features) EFER() x86.EFER {
	return x86.EFERLME | x86.EFERLMA | x86.EFERSCE | x86.EFERNXE
}

// CR3 returns the CR3 value for the page tables rooted at root.
//
// A PCID of zero always implies a flush and must be passed when PCIDs are
// not enabled. noFlush is ignored for PCID zero.
func (f Features) CR3(root uint64, pcid uint16, noFlush bool) x86.CR3 {
	var cr3 x86.CR3
	cr3.SetPageTableBase(root)
	if !f.PCID {
		if pcid != 0 {
			panic(&x86.PreconditionError{Op: "ring0.CR3", Reason: "PCID requested without PCID support"})
		}
		return cr3
	}
	cr4 := f.CR4()
	cr3.SetPCID(cr4, pcid)
	cr3.SetNoFlush(cr4, noFlush && pcid != 0)
	return cr3
}

// SanitizeUserFlags returns r adjusted to the flags userspace must run
// with.
func SanitizeUserFlags(r x86.RFLAGS) x86.RFLAGS {
	return r.Difference(UserFlagsClear).Union(UserFlagsSet)
}

// SanitizeKernelFlags returns r adjusted to the flags the kernel must run
// with.
func SanitizeKernelFlags(r x86.RFLAGS) x86.RFLAGS {
	return r.Difference(KernelFlagsClear).Union(KernelFlagsSet)
}
