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

package cmd

import (
	"context"
	"fmt"
	"io"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/docker/compose-release/pkg/release/version"
)

const defaultVersionTemplate = "{{.Version}}\n"

// NewCmdVersion describes the CLI command to print the version.
func NewCmdVersion() *cobra.Command {
	var format string

	return NewCmd("version").
		WithDescription("Print the version information").
		WithExample("Print the version and the commit it was built from", `version --output "{{.Version}} {{.GitCommit}}"`).
		WithFlags(func(f *pflag.FlagSet) {
			f.StringVarP(&format, "output", "o", defaultVersionTemplate, "Format output with go-template. For full struct documentation, see https://pkg.go.dev/github.com/docker/compose-release/pkg/release/version#Info")
		}).
		NoArgs(func(_ context.Context, out io.Writer) error {
			return printVersion(out, format)
		})
}

func printVersion(out io.Writer, format string) error {
	tmpl, err := template.New("version").Parse(format)
	if err != nil {
		return fmt.Errorf("parsing output template: %w", err)
	}
	if err := tmpl.Execute(out, version.Get()); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}
	return nil
}
