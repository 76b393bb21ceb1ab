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

package config

import (
	"bytes"
	"flag"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/BurntSushi/toml"
	"gvisor.dev/x86regs/pkg/x86"
)

// configFlag is the flag naming the TOML file. It cannot appear in the file
// itself.
const configFlag = "config"

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String(configFlag, "", "TOML file providing default values for these flags, keyed by flag name. Flags given on the command line take precedence.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path where internal debug information is written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("log-format", "text", "log format: text (default), json, or json-k8s.")

	// Output flags.
	flagSet.String("output", "text", "result format: text (default), json, or yaml.")
	flagSet.Var(cr4Ptr(0), "cr4", "CR4 value used to interpret CR3, as flag names (e.g. PAE|PCIDE) or a number.")
	flagSet.Bool("strict", false, "reject register values with unknown bits instead of showing them.")

	// Processor features assumed by the kernel profile.
	flagSet.Bool("pcid", false, "assume process-context identifiers are supported.")
	flagSet.Bool("xsave", false, "assume XSAVE is supported.")
	flagSet.Bool("smep", false, "assume supervisor mode execution prevention is supported.")
	flagSet.Bool("smap", false, "assume supervisor mode access prevention is supported.")
	flagSet.Bool("fsgsbase", false, "assume the FSGSBASE instructions are supported.")
	flagSet.Bool("umip", false, "assume user mode instruction prevention is supported.")
}

// NewFromFlags creates a new Config with values coming from command line
// flags, and from the file named by --config for flags that were not given
// explicitly.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	if fl := flagSet.Lookup(configFlag); fl != nil && fl.Value.String() != "" {
		if err := loadFile(flagSet, fl.Value.String()); err != nil {
			return nil, err
		}
	}

	conf := &Config{}
	obj := reflect.ValueOf(conf).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			// No flag set for this field.
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		x := reflect.ValueOf(get(fl.Value))
		obj.Field(i).Set(x)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// loadFile sets every flag named in the TOML file at path, except those
// already set on the command line.
func loadFile(flagSet *flag.FlagSet, path string) error {
	var values map[string]any
	if _, err := toml.DecodeFile(path, &values); err != nil {
		return fmt.Errorf("error reading config file %q: %w", path, err)
	}

	explicit := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) {
		explicit[f.Name] = true
	})

	for _, name := range slices.Sorted(maps.Keys(values)) {
		if name == configFlag {
			return fmt.Errorf("config file %q: flag %q cannot be set from a config file", path, name)
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			return fmt.Errorf("config file %q: unknown flag %q", path, name)
		}
		if explicit[name] {
			continue
		}
		if err := fl.Value.Set(fmt.Sprint(values[name])); err != nil {
			return fmt.Errorf("config file %q: error setting flag %s=%v: %w", path, name, values[name], err)
		}
	}
	return nil
}

// ToFlags returns a slice of flags that correspond to the given Config.
func (c *Config) ToFlags() []string {
	var rv []string
	c.forEachChanged(func(name, val string) {
		rv = append(rv, fmt.Sprintf("--%s=%s", name, val))
	})
	return rv
}

// ToTOML renders the flags that differ from their defaults as a TOML
// document suitable for --config.
func (c *Config) ToTOML() (string, error) {
	values := make(map[string]string)
	c.forEachChanged(func(name, val string) {
		if name != configFlag {
			values[name] = val
		}
	})
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(values); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// forEachChanged calls fn with the name and value of every flag field whose
// value is not the flag's default.
func (c *Config) forEachChanged(fn func(name, val string)) {
	// Construct a temporary set for default plumbing.
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		if val := getVal(obj.Field(i)); val != fl.DefValue {
			fn(name, val)
		}
	}
}

// get returns the typed value held by a flag.
func get(v flag.Value) any {
	return v.(flag.Getter).Get()
}

func getVal(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}

// cr4Value is a flag.Value holding a CR4 given by name or number.
type cr4Value x86.CR4

func cr4Ptr(v x86.CR4) *cr4Value {
	c := cr4Value(v)
	return &c
}

// Set implements flag.Value.Set.
func (c *cr4Value) Set(s string) error {
	v, err := x86.ParseCR4(s)
	if err != nil {
		return err
	}
	*c = cr4Value(v)
	return nil
}

// Get implements flag.Getter.Get.
func (c *cr4Value) Get() any {
	return x86.CR4(*c)
}

// String implements flag.Value.String.
func (c *cr4Value) String() string {
	return x86.CR4(*c).String()
}
