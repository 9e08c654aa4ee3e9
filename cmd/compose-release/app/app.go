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

package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/compose-release/cmd/compose-release/app/cmd"
	sErrors "github.com/docker/compose-release/pkg/release/errors"
)

// Run executes the command line given in os.Args. Interrupting the process
// cancels the engine calls in flight.
func Run(out, stderr io.Writer) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := cmd.NewComposeReleaseCommand(out, stderr)
	if err := c.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}
	return nil
}

// ExitCode is the process exit code for err.
func ExitCode(err error) int {
	return sErrors.ExitCode(err)
}
