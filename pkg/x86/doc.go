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

// Package x86 models the x86-64 control and status registers CR0, CR3,
// CR4, EFER and RFLAGS as typed values.
//
// Each register is a named uint64 type with one constant per architectural
// flag, so values can be built and inspected symbolically:
//
//	cr0 := x86.CR0PE | x86.CR0PG
//	if cr0.Contains(x86.CR0PG) { ... }
//
// Raw values are converted with the XFromBits constructors, which drop
// undefined bits, or the XFromBitsStrict constructors, which return an
// *InvalidBitsError instead.
//
// The composite fields of CR3 (cache flags, PCID and page table base) and
// RFLAGS (IOPL) have dedicated accessors. Their preconditions are programming
// contracts: a violation panics with a *PreconditionError.
//
// Nothing in this package touches hardware. Callers load and store the raw
// values themselves.
package x86
