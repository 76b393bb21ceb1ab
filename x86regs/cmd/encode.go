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
	"math"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/x86regs/pkg/log"
	"gvisor.dev/x86regs/pkg/x86"
	"gvisor.dev/x86regs/x86regs/cmd/util"
	"gvisor.dev/x86regs/x86regs/config"
)

// Encode implements subcommands.Command for the "encode" command.
type Encode struct {
	cr4     string
	pcid    int
	base    string
	noFlush bool
	iopl    int

	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Encode) Name() string {
	return "encode"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Encode) Synopsis() string {
	return "builds a raw register value from flag names and fields"
}

// Usage implements subcommands.Command.Usage.
func (*Encode) Usage() string {
	return `encode [flags] <register> [flag names]... - print the raw value.

Flag names are case insensitive and may be separated by '|', ',' or spaces.
RFLAGS values always include the reserved bit 1.

Example:
  x86regs encode cr0 PE PG
  x86regs encode -iopl 3 rflags IF
  x86regs encode -cr4 PCIDE -base 0x100000 -pcid 42 -noflush cr3
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (e *Encode) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.cr4, "cr4", "", "CR4 value used to interpret CR3. Defaults to the global --cr4.")
	f.IntVar(&e.pcid, "pcid", -1, "cr3 only: process-context identifier, requires CR4.PCIDE.")
	f.StringVar(&e.base, "base", "", "cr3 only: page-aligned physical address of the top-level page table (default 0).")
	f.BoolVar(&e.noFlush, "noflush", false, "cr3 only: set the no-flush hint, requires CR4.PCIDE.")
	f.IntVar(&e.iopl, "iopl", -1, "rflags only: I/O privilege level, 0 to 3.")
}

// Execute implements subcommands.Command.Execute.
func (e *Encode) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	reg, err := lookupRegister(f.Arg(0))
	if err != nil {
		return util.Errorf("%v", err)
	}
	cr4, err := parseCR4(e.cr4, conf.CR4)
	if err != nil {
		return util.Errorf("%v", err)
	}
	v, err := e.encode(reg, strings.Join(f.Args()[1:], "|"), cr4)
	if err != nil {
		return util.Errorf("%v", err)
	}
	log.Debugf("Encoded %s %v as %#x", reg, f.Args()[1:], v)

	out := stdout(e.out)
	if conf.Output == "text" {
		fmt.Fprintf(out, "%#x\n", v)
		return subcommands.ExitSuccess
	}
	desc, err := describe(reg, v, cr4, false)
	if err != nil {
		return util.Errorf("%v", err)
	}
	if err := writeDescriptions(out, conf.Output, []Description{desc}); err != nil {
		return util.Errorf("error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// encode returns the value of reg with the named flags set, plus any
// fields given by flags.
func (e *Encode) encode(reg, names string, cr4 x86.CR4) (uint64, error) {
	if reg != cr3Register && (e.pcid >= 0 || e.base != "" || e.noFlush) {
		return 0, fmt.Errorf("-pcid, -base and -noflush only apply to cr3")
	}
	if reg != rflagsRegister && e.iopl >= 0 {
		return 0, fmt.Errorf("-iopl only applies to rflags")
	}

	switch reg {
	case cr3Register:
		return e.encodeCR3(names, cr4)
	case rflagsRegister:
		flags, err := x86.ParseRFLAGS(names)
		if err != nil {
			return 0, err
		}
		r := x86.DefaultRFLAGS().Union(flags)
		if e.iopl > math.MaxUint8 {
			return 0, fmt.Errorf("-iopl %d out of range", e.iopl)
		}
		if e.iopl >= 0 {
			if err := x86.Checked(func() { r.SetIOPL(uint8(e.iopl)) }); err != nil {
				return 0, err
			}
		}
		return r.Bits(), nil
	default:
		fs, err := flatRegisters[reg].parse(names)
		if err != nil {
			return 0, err
		}
		return fs.Bits(), nil
	}
}

func (e *Encode) encodeCR3(names string, cr4 x86.CR4) (uint64, error) {
	var base uint64
	if e.base != "" {
		var err error
		base, err = strconv.ParseUint(e.base, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid -base %q: %w", e.base, err)
		}
	}
	flags, err := x86.ParseCR3Flags(names)
	if err != nil {
		return 0, err
	}
	if e.pcid > math.MaxUint16 {
		return 0, fmt.Errorf("-pcid %d out of range", e.pcid)
	}

	var cr3 x86.CR3
	err = x86.Checked(func() {
		cr3.SetPageTableBase(base)
		if flags != 0 {
			cr3.SetFlags(cr4, flags)
		}
		if e.pcid >= 0 {
			cr3.SetPCID(cr4, uint16(e.pcid))
		}
		if e.noFlush {
			cr3.SetNoFlush(cr4, true)
		}
	})
	if err != nil {
		return 0, err
	}
	return cr3.Bits(), nil
}
