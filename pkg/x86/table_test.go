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

package x86

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// flagSet abstracts over the flat register types for the shared tests.
type flagSet struct {
	name        string
	known       uint64
	fromBits    func(uint64) uint64
	fromStrict  func(uint64) (uint64, error)
	parseString func(uint64) (uint64, error)
}

func flagSets() []flagSet {
	return []flagSet{
		{
			name:     "CR0",
			known:    uint64(CR0Known),
			fromBits: func(v uint64) uint64 { return CR0FromBits(v).Bits() },
			fromStrict: func(v uint64) (uint64, error) {
				c, err := CR0FromBitsStrict(v)
				return c.Bits(), err
			},
			parseString: func(v uint64) (uint64, error) {
				c, err := ParseCR0(CR0(v).String())
				return c.Bits(), err
			},
		},
		{
			name:     "CR4",
			known:    uint64(CR4Known),
			fromBits: func(v uint64) uint64 { return CR4FromBits(v).Bits() },
			fromStrict: func(v uint64) (uint64, error) {
				c, err := CR4FromBitsStrict(v)
				return c.Bits(), err
			},
			parseString: func(v uint64) (uint64, error) {
				c, err := ParseCR4(CR4(v).String())
				return c.Bits(), err
			},
		},
		{
			name:     "EFER",
			known:    uint64(EFERKnown),
			fromBits: func(v uint64) uint64 { return EFERFromBits(v).Bits() },
			fromStrict: func(v uint64) (uint64, error) {
				e, err := EFERFromBitsStrict(v)
				return e.Bits(), err
			},
			parseString: func(v uint64) (uint64, error) {
				e, err := ParseEFER(EFER(v).String())
				return e.Bits(), err
			},
		},
		{
			name:     "CR3Flags",
			known:    uint64(CR3FlagsKnown),
			fromBits: func(v uint64) uint64 { return CR3FlagsFromBits(v).Bits() },
			fromStrict: func(v uint64) (uint64, error) {
				f, err := CR3FlagsFromBitsStrict(v)
				return f.Bits(), err
			},
			parseString: func(v uint64) (uint64, error) {
				f, err := ParseCR3Flags(CR3Flags(v).String())
				return f.Bits(), err
			},
		},
		{
			name:     "RFLAGS",
			known:    uint64(RFLAGSKnown),
			fromBits: func(v uint64) uint64 { return RFLAGSFromBits(v).Bits() },
			fromStrict: func(v uint64) (uint64, error) {
				r, err := RFLAGSFromBitsStrict(v)
				return r.Bits(), err
			},
			parseString: func(v uint64) (uint64, error) {
				r, err := ParseRFLAGS(RFLAGS(v).String())
				return r.Bits(), err
			},
		},
	}
}

// samples returns a deterministic set of values restricted to known.
func samples(known uint64) []uint64 {
	vs := []uint64{0, known}
	for i := 0; i < 64; i++ {
		if bit := uint64(1) << uint(i); known&bit != 0 {
			vs = append(vs, bit)
		}
	}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 256; i++ {
		vs = append(vs, r.Uint64()&known)
	}
	return vs
}

func TestRoundTrip(t *testing.T) {
	for _, fs := range flagSets() {
		t.Run(fs.name, func(t *testing.T) {
			for _, v := range samples(fs.known) {
				if got := fs.fromBits(v); got != v {
					t.Errorf("FromBits(%#x).Bits() = %#x", v, got)
				}
				got, err := fs.fromStrict(v)
				if err != nil || got != v {
					t.Errorf("FromBitsStrict(%#x) = (%#x, %v), want (%#x, nil)", v, got, err, v)
				}
			}
		})
	}
}

func TestUnknownBits(t *testing.T) {
	for _, fs := range flagSets() {
		t.Run(fs.name, func(t *testing.T) {
			for i := 0; i < 64; i++ {
				bit := uint64(1) << uint(i)
				if fs.known&bit != 0 {
					continue
				}
				v := bit | (fs.known & 0x5555555555555555)
				_, err := fs.fromStrict(v)
				if !errors.Is(err, ErrInvalidBits) {
					t.Errorf("FromBitsStrict(%#x) err = %v, want ErrInvalidBits", v, err)
				}
				var ibe *InvalidBitsError
				if !errors.As(err, &ibe) || ibe.Unknown != bit || ibe.Bits != v {
					t.Errorf("FromBitsStrict(%#x) err = %#v, want unknown bits %#x", v, err, bit)
				}
				if got, want := fs.fromBits(v), v&^bit; got != want {
					t.Errorf("FromBits(%#x) = %#x, want %#x", v, got, want)
				}
			}
		})
	}
}

func TestStringParse(t *testing.T) {
	for _, fs := range flagSets() {
		t.Run(fs.name, func(t *testing.T) {
			for _, v := range samples(fs.known) {
				got, err := fs.parseString(v)
				if err != nil || got != v {
					t.Errorf("Parse(String(%#x)) = (%#x, %v), want (%#x, nil)", v, got, err, v)
				}
			}
		})
	}
}

func TestString(t *testing.T) {
	for _, tc := range []struct {
		got, want string
	}{
		{CR0(0).String(), "0"},
		{(CR0PE | CR0ET | CR0NE | CR0PG).String(), "PE|ET|NE|PG"},
		{(CR0PE | CR0(1<<7)).String(), "PE|0x80"},
		{(CR4PAE | CR4PCIDE).String(), "PAE|PCIDE"},
		{(EFERLME | EFERLMA).String(), "LME|LMA"},
		{DefaultRFLAGS().String(), "RESERVED"},
		{(RFLAGSReserved | RFLAGSIF | RFLAGS(3<<12)).String(), "RESERVED|IF|IOPL=3"},
		{(CR3PWT | CR3PCD).String(), "PWT|PCD"},
	} {
		if tc.got != tc.want {
			t.Errorf("String() = %q, want %q", tc.got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want CR4
	}{
		{"", 0},
		{"0", 0},
		{"pae", CR4PAE},
		{"PAE|PCIDE", CR4PAE | CR4PCIDE},
		{"PAE, OSFXSR  smep", CR4PAE | CR4OSFXSR | CR4SMEP},
		{"0x20|PCIDE", CR4PAE | CR4PCIDE},
	} {
		got, err := ParseCR4(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseCR4(%q) = (%v, %v), want (%v, nil)", tc.in, got, err, tc.want)
		}
	}

	for _, in := range []string{"BOGUS", "PAE|0x8000000000000000"} {
		if _, err := ParseCR4(in); err == nil {
			t.Errorf("ParseCR4(%q) succeeded, want error", in)
		}
	}

	r, err := ParseRFLAGS("IF|IOPL=2|reserved")
	if err != nil {
		t.Fatalf("ParseRFLAGS failed: %v", err)
	}
	if want := RFLAGSIF | RFLAGSReserved | RFLAGS(2<<12); r != want {
		t.Errorf("ParseRFLAGS = %v, want %v", r, want)
	}
	for _, in := range []string{"IOPL", "IOPL=4", "IOPL=x"} {
		if _, err := ParseRFLAGS(in); err == nil {
			t.Errorf("ParseRFLAGS(%q) succeeded, want error", in)
		}
	}
}

func TestNames(t *testing.T) {
	got := (CR0PG | CR0PE | CR0WP).Names()
	if diff := cmp.Diff([]string{"PE", "WP", "PG"}, got); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestSetOperations(t *testing.T) {
	a := CR0PE | CR0PG
	b := CR0PG | CR0WP
	if got, want := a.Union(b), CR0PE|CR0PG|CR0WP; got != want {
		t.Errorf("Union = %v, want %v", got, want)
	}
	if got, want := a.Intersect(b), CR0PG; got != want {
		t.Errorf("Intersect = %v, want %v", got, want)
	}
	if got, want := a.Difference(b), CR0PE; got != want {
		t.Errorf("Difference = %v, want %v", got, want)
	}
	if got, want := a.Complement(), CR0Known&^a; got != want {
		t.Errorf("Complement = %v, want %v", got, want)
	}
	if !a.Contains(CR0PE) || a.Contains(b) || !a.Intersects(b) {
		t.Errorf("Contains/Intersects wrong for %v and %v", a, b)
	}

	e := EFER(0)
	e.Insert(EFERLME | EFERNXE)
	e.Remove(EFERNXE)
	e.Toggle(EFERSCE)
	e.Set(EFERLMA, true)
	e.Set(EFERSCE, false)
	if want := EFERLME | EFERLMA; e != want {
		t.Errorf("mutations produced %v, want %v", e, want)
	}
}

func TestDefaults(t *testing.T) {
	var (
		cr0  CR0
		cr4  CR4
		efer EFER
	)
	if cr0.Bits() != 0 || cr4.Bits() != 0 || efer.Bits() != 0 {
		t.Errorf("zero values are not zero: %v %v %v", cr0, cr4, efer)
	}
	if got := DefaultRFLAGS().Bits(); got != 0b10 {
		t.Errorf("DefaultRFLAGS().Bits() = %#b, want 0b10", got)
	}
}

func TestOverlappingTable(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("newTable with overlapping fields did not panic")
		}
	}()
	newTable("TEST", field[CR0]{"A", 0x3}, field[CR0]{"B", 0x2})
}

func TestTableNamesBitOrder(t *testing.T) {
	tbl := newTable("TEST",
		field[RFLAGS]{"HI", 1 << 40},
		field[RFLAGS]{"WIDE", 0x30},
		field[RFLAGS]{"LO", 1},
	)
	for _, tc := range []struct {
		v    RFLAGS
		want []string
	}{
		{0, nil},
		{1 | 1<<40, []string{"LO", "HI"}},
		{0x10, []string{"WIDE=1"}},
		{0x20, []string{"WIDE=2"}},
		{0x31 | 1<<40, []string{"LO", "WIDE=3", "HI"}},
	} {
		if diff := cmp.Diff(tc.want, tbl.names(tc.v)); diff != "" {
			t.Errorf("names(%#x) mismatch (-want +got):\n%s", uint64(tc.v), diff)
		}
	}
	if got, want := tbl.format(0x20|0x100), "WIDE=2|0x100"; got != want {
		t.Errorf("format() = %q, want %q", got, want)
	}
}
