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
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"gvisor.dev/x86regs/pkg/x86"
)

const (
	cr3Register    = "cr3"
	rflagsRegister = "rflags"
)

// flagSet is implemented by every register model that is a plain set of
// named flags.
type flagSet interface {
	Bits() uint64
	Names() []string
	String() string
}

// flatRegister binds a flag set type to the command line.
type flatRegister struct {
	name     string
	fromBits func(uint64) flagSet
	validate func(uint64) error
	parse    func(string) (flagSet, error)
}

func flat[T interface {
	~uint64
	flagSet
}](name string, strict func(uint64) (T, error), parse func(string) (T, error)) flatRegister {
	return flatRegister{
		name: name,
		// Unknown bits are kept so that they can be shown.
		fromBits: func(v uint64) flagSet { return T(v) },
		validate: func(v uint64) error {
			_, err := strict(v)
			return err
		},
		parse: func(s string) (flagSet, error) {
			v, err := parse(s)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

var flatRegisters = map[string]flatRegister{
	"cr0":          flat("CR0", x86.CR0FromBitsStrict, x86.ParseCR0),
	"cr4":          flat("CR4", x86.CR4FromBitsStrict, x86.ParseCR4),
	"efer":         flat("EFER", x86.EFERFromBitsStrict, x86.ParseEFER),
	rflagsRegister: flat("RFLAGS", x86.RFLAGSFromBitsStrict, x86.ParseRFLAGS),
}

// registerNames returns every register name accepted on the command line.
func registerNames() []string {
	names := append(slices.Collect(maps.Keys(flatRegisters)), cr3Register)
	slices.Sort(names)
	return names
}

// lookupRegister canonicalizes a register name given on the command line.
func lookupRegister(name string) (string, error) {
	reg := strings.ToLower(name)
	if _, ok := flatRegisters[reg]; ok || reg == cr3Register {
		return reg, nil
	}
	return "", fmt.Errorf("unknown register %q, must be one of: %s", name, strings.Join(registerNames(), ", "))
}

// parseValue parses a raw register value in any Go integer literal syntax.
func parseValue(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid register value %q: %w", s, err)
	}
	return v, nil
}

// parseCR4 returns the CR4 given by s, or def if s is empty.
func parseCR4(s string, def x86.CR4) (x86.CR4, error) {
	if s == "" {
		return def, nil
	}
	cr4, err := x86.ParseCR4(s)
	if err != nil {
		return 0, fmt.Errorf("invalid -cr4: %w", err)
	}
	return cr4, nil
}

// Description is the symbolic breakdown of one register value.
type Description struct {
	// Name labels the value when it is not simply the register's reset or
	// decoded value, e.g. "user CR3".
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Register string   `json:"register" yaml:"register"`
	Value    string   `json:"value" yaml:"value"`
	Symbolic string   `json:"symbolic" yaml:"symbolic"`
	Flags    []string `json:"flags,omitempty" yaml:"flags,omitempty"`
	Unknown  string   `json:"unknown,omitempty" yaml:"unknown,omitempty"`

	// CR3 fields.
	Base    string  `json:"base,omitempty" yaml:"base,omitempty"`
	PCID    *uint16 `json:"pcid,omitempty" yaml:"pcid,omitempty"`
	NoFlush bool    `json:"noflush,omitempty" yaml:"noflush,omitempty"`

	// RFLAGS fields.
	IOPL *uint8 `json:"iopl,omitempty" yaml:"iopl,omitempty"`
}

func (d *Description) label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Register
}

// unknownBits records the bits rejected by err. In strict mode err is
// returned instead.
func (d *Description) unknownBits(err error, strict bool) error {
	if err == nil {
		return nil
	}
	var ibe *x86.InvalidBitsError
	if strict || !errors.As(err, &ibe) {
		return err
	}
	d.Unknown = fmt.Sprintf("%#x", ibe.Unknown)
	return nil
}

// describe breaks down v as a value of the register reg, interpreting CR3
// according to cr4.
func describe(reg string, v uint64, cr4 x86.CR4, strict bool) (Description, error) {
	if reg == cr3Register {
		return describeCR3(v, cr4, strict)
	}
	r, ok := flatRegisters[reg]
	if !ok {
		return Description{}, fmt.Errorf("unknown register %q", reg)
	}
	d := Description{
		Register: r.name,
		Value:    fmt.Sprintf("%#x", v),
	}
	if err := d.unknownBits(r.validate(v), strict); err != nil {
		return Description{}, err
	}
	fs := r.fromBits(v)
	d.Symbolic = fs.String()
	d.Flags = fs.Names()
	if reg == rflagsRegister {
		iopl := x86.RFLAGS(v).IOPL()
		d.IOPL = &iopl
	}
	return d, nil
}

func describeCR3(v uint64, cr4 x86.CR4, strict bool) (Description, error) {
	c := x86.CR3FromBits(v)
	d := Description{
		Register: "CR3",
		Value:    fmt.Sprintf("%#x", v),
		Symbolic: c.Format(cr4),
		Base:     fmt.Sprintf("%#x", c.PageTableBase()),
	}
	_, err := x86.CR3FromBitsStrict(cr4, v)
	if err := d.unknownBits(err, strict); err != nil {
		return Description{}, err
	}
	if cr4.Contains(x86.CR4PCIDE) {
		pcid := c.PCID(cr4)
		d.PCID = &pcid
		d.NoFlush = c.NoFlush(cr4)
	} else {
		d.Flags = c.Flags(cr4).Names()
	}
	return d, nil
}
