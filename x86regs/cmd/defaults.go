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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/google/subcommands"
	"gvisor.dev/x86regs/pkg/log"
	"gvisor.dev/x86regs/pkg/ring0"
	"gvisor.dev/x86regs/pkg/x86"
	"gvisor.dev/x86regs/x86regs/cmd/util"
	"gvisor.dev/x86regs/x86regs/config"
)

// Defaults implements subcommands.Command for the "defaults" command.
type Defaults struct {
	kernelRoot string
	userRoot   string
	userPCIDs  uint

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Defaults) Name() string {
	return "defaults"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Defaults) Synopsis() string {
	return "shows reset values and the kernel register profile"
}

// Usage implements subcommands.Command.Usage.
func (*Defaults) Usage() string {
	return `defaults [flags] - show the reset value of every register, and the values
a 64-bit kernel runs with given the processor features in the global flags
(--pcid, --xsave, --smep, --smap, --fsgsbase, --umip).
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Defaults) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.kernelRoot, "kernel-root", "0x1000", "physical address of the kernel page tables.")
	f.StringVar(&d.userRoot, "user-root", "0x2000", "physical address of the user page tables.")
	f.UintVar(&d.userPCIDs, "user-pcids", x86.MaxPCID, "number of PCIDs available to user page tables, ignored without --pcid.")
}

// Profile is the output of the defaults command.
type Profile struct {
	Features ring0.Features `json:"features" yaml:"features"`
	Reset    []Description  `json:"reset" yaml:"reset"`
	Kernel   []Description  `json:"kernel" yaml:"kernel"`
}

// Execute implements subcommands.Command.Execute.
func (d *Defaults) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	p, err := d.profile(conf.Features())
	if err != nil {
		return util.Errorf("%v", err)
	}
	err = writeResult(stdout(d.out), conf.Output, p, func(w io.Writer) error {
		fmt.Fprintf(w, "features: %+v\n\nreset:\n", p.Features)
		if err := writeTable(w, p.Reset); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nkernel:\n")
		return writeTable(w, p.Kernel)
	})
	if err != nil {
		return util.Errorf("error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// named is a register value to describe under a label.
type named struct {
	name string
	reg  string
	v    uint64
	cr4  x86.CR4
}

func describeAll(values []named) ([]Description, error) {
	descs := make([]Description, 0, len(values))
	for _, n := range values {
		desc, err := describe(n.reg, n.v, n.cr4, false)
		if err != nil {
			return nil, err
		}
		desc.Name = n.name
		descs = append(descs, desc)
	}
	return descs, nil
}

func (d *Defaults) profile(features ring0.Features) (*Profile, error) {
	kernelRoot, err := strconv.ParseUint(d.kernelRoot, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -kernel-root %q: %w", d.kernelRoot, err)
	}
	userRoot, err := strconv.ParseUint(d.userRoot, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -user-root %q: %w", d.userRoot, err)
	}
	if d.userPCIDs > x86.MaxPCID {
		return nil, fmt.Errorf("-user-pcids %d exceeds %d", d.userPCIDs, x86.MaxPCID)
	}

	var k ring0.Kernel
	if err := k.Init(ring0.KernelOpts{Features: features, UserPCIDs: uint16(d.userPCIDs)}); err != nil {
		return nil, err
	}
	log.Debugf("Kernel profile for features %+v", features)

	var kernelCR3, userCR3, userReload x86.CR3
	err = x86.Checked(func() {
		kernelCR3 = features.CR3(kernelRoot, 0, false)
		// The second switch to the same tables reuses their PCID.
		userCR3 = k.UserCR3(userRoot)
		userReload = k.UserCR3(userRoot)
		k.ReleaseUserCR3(userRoot)
	})
	if err != nil {
		return nil, err
	}

	cr4 := features.CR4()
	reset, err := describeAll([]named{
		{reg: "cr0"},
		{reg: cr3Register},
		{reg: "cr4"},
		{reg: "efer"},
		{reg: rflagsRegister, v: x86.DefaultRFLAGS().Bits()},
	})
	if err != nil {
		return nil, err
	}
	kernel, err := describeAll([]named{
		{reg: "cr0", v: features.CR0().Bits()},
		{reg: "cr4", v: cr4.Bits()},
		{reg: "efer", v: features.EFER().Bits()},
		{name: "kernel CR3", reg: cr3Register, v: kernelCR3.Bits(), cr4: cr4},
		{name: "user CR3", reg: cr3Register, v: userCR3.Bits(), cr4: cr4},
		{name: "user CR3 (reload)", reg: cr3Register, v: userReload.Bits(), cr4: cr4},
		{name: "kernel RFLAGS", reg: rflagsRegister, v: ring0.SanitizeKernelFlags(x86.DefaultRFLAGS()).Bits()},
		{name: "user RFLAGS", reg: rflagsRegister, v: ring0.SanitizeUserFlags(x86.DefaultRFLAGS()).Bits()},
	})
	if err != nil {
		return nil, err
	}
	return &Profile{Features: features, Reset: reset, Kernel: kernel}, nil
}
