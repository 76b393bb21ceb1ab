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

// Package util groups helpers shared by x86regs commands.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"gvisor.dev/x86regs/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages are
// consumed by scripts that parse the output, so they are written as JSON.
var ErrorLogger io.Writer

// errorLog is the format of ErrorLogger entries.
type errorLog struct {
	Msg  string    `json:"msg"`
	Time time.Time `json:"time"`
}

func writeError(msg string) {
	if ErrorLogger == nil {
		return
	}
	// Using Encoder to avoid dealing with the trailing newline.
	_ = json.NewEncoder(ErrorLogger).Encode(errorLog{Msg: msg, Time: time.Now()})
}

// Errorf logs error to the log and ErrorLogger, and returns ExitFailure. The
// message is also printed to stderr since it is what the user sees.
func Errorf(format string, args ...any) subcommands.ExitStatus {
	msg := fmt.Sprintf(format, args...)
	log.Warningf("FATAL ERROR: %s", msg)
	fmt.Fprintln(os.Stderr, msg)
	writeError(msg)
	return subcommands.ExitFailure
}

// Fatalf logs the same way as Errorf() does, plus *exits* the process.
func Fatalf(format string, args ...any) {
	Errorf(format, args...)
	// Return an error that is unlikely to be used by the application.
	os.Exit(128)
}
