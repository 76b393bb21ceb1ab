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

// Package config provides basic infrastructure to set configuration settings
// for x86regs. Each setting that can be changed from the command line must
// have a corresponding flag; the same flags can be given defaults from a
// TOML file passed with --config.
package config

import (
	"fmt"
	"reflect"

	"gvisor.dev/x86regs/pkg/log"
	"gvisor.dev/x86regs/pkg/ring0"
	"gvisor.dev/x86regs/pkg/x86"
)

// Config holds configuration that is not part of a single command.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag to specify the flag name.
//  3. Register a new flag in flags.go, with name and description.
//  4. Add any necessary validation into validate().
type Config struct {
	// ConfigFile is the TOML file that supplied flag defaults, if any.
	ConfigFile string `flag:"config"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFilename is the filename to log to, if not empty. It may contain
	// the %TIMESTAMP% and %COMMAND% variables.
	LogFilename string `flag:"log"`

	// LogFormat is the log format: "text", "json" or "json-k8s".
	LogFormat string `flag:"log-format"`

	// Output is the result format of commands: "text", "json" or "yaml".
	Output string `flag:"output"`

	// CR4 is the CR4 value used to interpret CR3 when a command does not
	// supply its own.
	CR4 x86.CR4 `flag:"cr4"`

	// Strict rejects register values with bits outside the known set.
	Strict bool `flag:"strict"`

	// The processor features assumed by the kernel profile.
	PCID     bool `flag:"pcid"`
	XSAVE    bool `flag:"xsave"`
	SMEP     bool `flag:"smep"`
	SMAP     bool `flag:"smap"`
	FSGSBASE bool `flag:"fsgsbase"`
	UMIP     bool `flag:"umip"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json", "json-k8s":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json', or 'json-k8s'", c.LogFormat)
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("invalid output format %q, must be 'text', 'json', or 'yaml'", c.Output)
	}
	return nil
}

// Features returns the processor features enabled in the configuration.
func (c *Config) Features() ring0.Features {
	return ring0.Features{
		PCID:     c.PCID,
		XSAVE:    c.XSAVE,
		SMEP:     c.SMEP,
		SMAP:     c.SMAP,
		FSGSBASE: c.FSGSBASE,
		UMIP:     c.UMIP,
	}
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		log.Infof("\t%s: %s", name, getVal(obj.Field(i)))
	}
}
