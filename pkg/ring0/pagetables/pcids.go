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

// Package pagetables tracks the address space identifiers loaded into CR3.
package pagetables

import (
	"fmt"
	"sync"

	"gvisor.dev/x86regs/pkg/x86"
)

// PCIDs is a simple PCID database, keyed by the physical address of the
// top-level page table.
type PCIDs struct {
	// mu protects below.
	mu sync.Mutex

	// cache are the assigned PCIDs.
	cache map[uint64]uint16

	// avail are available PCIDs.
	avail []uint16
}

// NewPCIDs returns a new PCID database holding PCIDs [start, start+size).
//
// PCID zero is reserved for "no PCID" and may not be handed out.
func NewPCIDs(start, size uint16) (*PCIDs, error) {
	if start == 0 {
		return nil, fmt.Errorf("PCID 0 is reserved")
	}
	if int(start)+int(size) > x86.MaxPCID+1 {
		return nil, fmt.Errorf("PCID range [%d, %d) exceeds %d", start, int(start)+int(size), x86.MaxPCID)
	}
	p := &PCIDs{
		cache: make(map[uint64]uint16),
	}
	for pcid := start; pcid < start+size; pcid++ {
		p.avail = append(p.avail, pcid)
	}
	return p, nil
}

// Assign assigns a PCID to the given root.
//
// This function can fail silently (zero returned), which means that the
// root must be flushed on switch. reused is true if the root already held
// its PCID, in which case stale TLB entries are its own.
func (p *PCIDs) Assign(root uint64) (pcid uint16, reused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pcid, ok := p.cache[root]; ok {
		return pcid, true
	}
	if len(p.avail) > 0 {
		pcid := p.avail[len(p.avail)-1]
		p.avail = p.avail[:len(p.avail)-1]
		p.cache[root] = pcid
		return pcid, false
	}
	return 0, false
}

// Drop drops references to the given root.
func (p *PCIDs) Drop(root uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pcid, ok := p.cache[root]; ok {
		delete(p.cache, root)
		p.avail = append(p.avail, pcid)
	}
}

// Available returns the number of unassigned PCIDs.
func (p *PCIDs) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.avail)
}
