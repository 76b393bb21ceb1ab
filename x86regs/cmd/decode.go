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
	"bufio"
	"context"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/x86regs/pkg/log"
	"gvisor.dev/x86regs/pkg/x86"
	"gvisor.dev/x86regs/x86regs/cmd/util"
	"gvisor.dev/x86regs/x86regs/config"
)

// Decode implements subcommands.Command for the "decode" command.
type Decode struct {
	cr4 string

	// in and out default to stdin and stdout.
	in  io.Reader
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Decode) Name() string {
	return "decode"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Decode) Synopsis() string {
	return "shows the flags and fields of raw register values"
}

// Usage implements subcommands.Command.Usage.
func (*Decode) Usage() string {
	return `decode [flags] <register> <value>... - decode values of a register.

Registers are cr0, cr3, cr4, efer and rflags. A single value of "-" reads
one value per line from stdin; blank lines and lines starting with '#' are
ignored, malformed lines are logged and skipped.

Example:
  x86regs decode cr0 0x80050033
  x86regs decode -cr4 PAE|PCIDE cr3 0x8000000000101005
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Decode) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.cr4, "cr4", "", "CR4 value used to interpret CR3. Defaults to the global --cr4.")
}

// Execute implements subcommands.Command.Execute.
func (d *Decode) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() < 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	reg, err := lookupRegister(f.Arg(0))
	if err != nil {
		return util.Errorf("%v", err)
	}
	cr4, err := parseCR4(d.cr4, conf.CR4)
	if err != nil {
		return util.Errorf("%v", err)
	}

	var descs []Description
	if values := f.Args()[1:]; len(values) == 1 && values[0] == "-" {
		var skipped int
		descs, skipped, err = d.decodeStream(reg, cr4, conf.Strict)
		if err != nil {
			return util.Errorf("error reading stdin: %v", err)
		}
		if skipped > 0 {
			log.Warningf("Skipped %d malformed lines", skipped)
		}
	} else {
		for _, s := range values {
			v, err := parseValue(s)
			if err != nil {
				return util.Errorf("%v", err)
			}
			desc, err := describe(reg, v, cr4, conf.Strict)
			if err != nil {
				return util.Errorf("%v", err)
			}
			descs = append(descs, desc)
		}
	}

	log.Debugf("Decoded %d %s values with CR4=%v", len(descs), reg, cr4)
	if err := writeDescriptions(stdout(d.out), conf.Output, descs); err != nil {
		return util.Errorf("error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// decodeStream decodes one value per input line. It returns the number of
// lines that could not be decoded.
func (d *Decode) decodeStream(reg string, cr4 x86.CR4, strict bool) ([]Description, int, error) {
	in := d.in
	if in == nil {
		in = os.Stdin
	}
	warn := log.BasicRateLimitedLogger(time.Second)

	var (
		descs   []Description
		skipped int
		line    int
	)
	s := bufio.NewScanner(in)
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := parseValue(text)
		if err == nil {
			var desc Description
			if desc, err = describe(reg, v, cr4, strict); err == nil {
				descs = append(descs, desc)
				continue
			}
		}
		skipped++
		warn.Warningf("line %d: %v, skipping", line, err)
	}
	return descs, skipped, s.Err()
}
