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

package errors

import (
	"errors"
	"fmt"
)

// These are the phases of a release run
const (
	Config = Phase("Config")
	Build  = Phase("Build")
	Verify = Phase("Verify")
	Push   = Phase("Push")
)

type Phase string

// ScriptError is returned by every failing release step.
type ScriptError struct {
	Phase Phase
	// Image is the image reference the failure relates to, if any.
	Image string
	Err   error
}

func (e *ScriptError) Error() string {
	switch e.Phase {
	case Build:
		return fmt.Sprintf("Build error for %s: %s", e.Image, e.Err)
	case Push:
		return fmt.Sprintf("Error pushing %s: %s", e.Image, e.Err)
	}
	return e.Err.Error()
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func NewConfigError(err error) error {
	return &ScriptError{Phase: Config, Err: err}
}

func NewBuildError(image string, err error) error {
	return &ScriptError{Phase: Build, Image: image, Err: err}
}

func NewPushError(image string, err error) error {
	return &ScriptError{Phase: Push, Image: image, Err: err}
}

// NewVerifyError reports an incomplete set of release images. The image
// manager itself reports verification failures as values; commands that need
// a failing exit code convert them with this.
func NewVerifyError(err error) error {
	return &ScriptError{Phase: Verify, Err: err}
}

// PhaseOf returns the phase a failure happened in, or an empty phase when err
// is not a ScriptError.
func PhaseOf(err error) Phase {
	var se *ScriptError
	if errors.As(err, &se) {
		return se.Phase
	}
	return ""
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch PhaseOf(err) {
	case Config:
		return 2
	case Build:
		return 3
	case Verify:
		return 4
	case Push:
		return 5
	}
	return 1
}
