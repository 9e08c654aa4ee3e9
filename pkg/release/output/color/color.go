/*
Copyright 2026 The Skaffold Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package color

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Color is an ANSI foreground colour code.
type Color int

const (
	Default Color = 0
	Red     Color = 31
	Green   Color = 32
	Yellow  Color = 33
	Blue    Color = 34
	Cyan    Color = 36
)

// IsTerminal will check if the specified output stream is a terminal. This can be changed
// for testing to an arbitrary method.
var IsTerminal = isTerminal

func (c Color) Sprint(a ...interface{}) string {
	if c == Default {
		return fmt.Sprint(a...)
	}
	return fmt.Sprintf("\033[%dm%s\033[0m", c, fmt.Sprint(a...))
}

func (c Color) Sprintf(format string, a ...interface{}) string {
	return c.Sprint(fmt.Sprintf(format, a...))
}

// Fprintln wraps the operands in the color ANSI escape codes, and outputs the result to
// out, followed by a newline. If out is not a terminal, the escape codes will not be added.
func (c Color) Fprintln(out io.Writer, a ...interface{}) (n int, err error) {
	return fmt.Fprintln(out, c.wrapTextIfTerminal(out, a...))
}

// Fprintf applies formats according to the format specifier and outputs the
// result to out, coloured only when out is a terminal.
func (c Color) Fprintf(out io.Writer, format string, a ...interface{}) (n int, err error) {
	if IsTerminal(out) {
		return fmt.Fprint(out, c.Sprintf(format, a...))
	}
	return fmt.Fprintf(out, format, a...)
}

func (c Color) wrapTextIfTerminal(out io.Writer, a ...interface{}) string {
	if IsTerminal(out) {
		return c.Sprint(a...)
	}
	return fmt.Sprint(a...)
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}
