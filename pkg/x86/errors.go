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
	"fmt"
)

// ErrInvalidBits is matched (via errors.Is) by every *InvalidBitsError.
var ErrInvalidBits = errors.New("invalid register bits")

// InvalidBitsError is returned by the strict constructors when a raw value
// has bits outside the architecturally defined set of its register.
type InvalidBitsError struct {
	// Register is the register name, e.g. "CR4".
	Register string

	// Bits is the full raw value that was rejected.
	Bits uint64

	// Unknown holds only the offending bits.
	Unknown uint64
}

// Error implements error.Error.
func (e *InvalidBitsError) Error() string {
	return fmt.Sprintf("%s: unknown bits %#x in %#x", e.Register, e.Unknown, e.Bits)
}

// Is implements errors.Is.
func (e *InvalidBitsError) Is(target error) bool {
	return target == ErrInvalidBits
}

// PreconditionError is the panic value used when a composite accessor is
// called with an inconsistent CR4 mode or an out-of-range field value.
//
// These are programming errors in the caller. Continuing would produce a
// register value that is architecturally meaningless, so library code must
// not recover from them; see Checked for the one sanctioned exception.
type PreconditionError struct {
	// Op is the accessor that was misused, e.g. "CR3.PCID".
	Op string

	// Reason describes the violated precondition.
	Reason string
}

// Error implements error.Error.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition violated: %s", e.Op, e.Reason)
}

// violated panics with a *PreconditionError. Callers test the condition
// first so that the arguments are only boxed on failure.
func violated(op, format string, args ...any) {
	panic(&PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)})
}

// Checked runs fn and converts a *PreconditionError panic into an error.
// Any other panic is propagated.
//
// This exists for tools that build register values from untrusted input
// (e.g. a command line); kernel code should never need it.
func Checked(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*PreconditionError)
			if !ok {
				panic(r)
			}
			err = pe
		}
	}()
	fn()
	return nil
}
