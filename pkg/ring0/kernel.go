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

package ring0

import (
	"gvisor.dev/x86regs/pkg/ring0/pagetables"
	"gvisor.dev/x86regs/pkg/x86"
)

// Kernel holds the register state shared by all CPUs.
type Kernel struct {
	// Features are the processor features in use.
	Features Features

	// PCIDs assigns PCIDs to user page tables. It is nil when PCIDs are
	// not in use.
	PCIDs *pagetables.PCIDs
}

// KernelOpts are the options for Init.
type KernelOpts struct {
	Features Features

	// UserPCIDs is the number of PCIDs available to user page tables,
	// starting at PCID 1. Ignored without PCID support.
	UserPCIDs uint16
}

// Init initializes a Kernel.
func (k *Kernel) Init(opts KernelOpts) error {
	k.Features = opts.Features
	k.PCIDs = nil
	if opts.Features.PCID && opts.UserPCIDs > 0 {
		p, err := pagetables.NewPCIDs(1, opts.UserPCIDs)
		if err != nil {
			return err
		}
		k.PCIDs = p
	}
	return nil
}

// UserCR3 returns the CR3 value to switch to the user page tables rooted at
// root. A root that already owns a PCID is switched to without a flush.
func (k *Kernel) UserCR3(root uint64) x86.CR3 {
	if k.PCIDs == nil {
		return k.Features.CR3(root, 0, false)
	}
	pcid, reused := k.PCIDs.Assign(root)
	return k.Features.CR3(root, pcid, reused)
}

// ReleaseUserCR3 drops any PCID held by the page tables rooted at root.
func (k *Kernel) ReleaseUserCR3(root uint64) {
	if k.PCIDs != nil {
		k.PCIDs.Drop(root)
	}
}
