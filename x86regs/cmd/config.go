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

	"github.com/google/subcommands"
	"gvisor.dev/x86regs/x86regs/cmd/util"
	"gvisor.dev/x86regs/x86regs/config"
)

// Config implements subcommands.Command for the "config" command.
type Config struct {
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Config) Name() string {
	return "config"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Config) Synopsis() string {
	return "prints the effective configuration as a TOML file for --config"
}

// Usage implements subcommands.Command.Usage.
func (*Config) Usage() string {
	return `config - print the global flags that differ from their defaults.

Example:
  x86regs --pcid --smep --output=yaml config > x86regs.toml
  x86regs --config=x86regs.toml defaults
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Config) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (c *Config) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	contents, err := conf.ToTOML()
	if err != nil {
		return util.Errorf("error encoding config: %v", err)
	}
	fmt.Fprint(stdout(c.out), contents)
	return subcommands.ExitSuccess
}
