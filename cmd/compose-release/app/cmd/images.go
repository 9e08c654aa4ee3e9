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

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/docker/compose-release/pkg/release/config"
	"github.com/docker/compose-release/pkg/release/constants"
	sErrors "github.com/docker/compose-release/pkg/release/errors"
	"github.com/docker/compose-release/pkg/release/git"
	"github.com/docker/compose-release/pkg/release/images"
	"github.com/docker/compose-release/pkg/release/output/color"
)

// For testing
var (
	newImageManager = images.New
	openRepository  = func(root string) (images.Repository, error) {
		return git.Open(root)
	}
)

// NewCmdImages describes the CLI command to work with release images.
func NewCmdImages(v *viper.Viper) *cobra.Command {
	return NewCmd("images").
		WithDescription("Build, check and push the release images").
		WithPersistentFlags(func(f *pflag.FlagSet) { AddReleaseFlags(f, v) }).
		WithCommands(
			NewCmdBuild(v),
			NewCmdCheck(v),
			NewCmdPush(v),
		)
}

// AddReleaseFlags registers the release settings on f and binds them to v.
func AddReleaseFlags(f *pflag.FlagSet, v *viper.Viper) {
	f.String("version", "", "Version being released, e.g. 1.25.0 (required)")
	f.Bool("latest", false, "Also tag and push docker/compose:latest")
	f.String("repo-root", constants.DefaultRepoRoot, "Root of the compose checkout, used as build context")
	f.String("org", constants.DefaultOrganization, "Docker Hub organization the images belong to")

	_ = v.BindPFlag(config.KeyVersion, f.Lookup("version"))
	_ = v.BindPFlag(config.KeyLatest, f.Lookup("latest"))
	_ = v.BindPFlag(config.KeyRepoRoot, f.Lookup("repo-root"))
	_ = v.BindPFlag(config.KeyOrganization, f.Lookup("org"))
}

// NewCmdBuild describes the CLI command to build the release images.
func NewCmdBuild(v *viper.Viper) *cobra.Command {
	return NewCmd("build").
		WithDescription("Build the compose and compose-tests images").
		WithExample("Build the images of release 1.25.0", "images build --version 1.25.0").
		WithExample("Build a release that also becomes latest", "images build --version 1.25.0 --latest").
		NoArgs(func(ctx context.Context, out io.Writer) error {
			return withImageManager(ctx, out, v, func(m *images.ImageManager, cfg *config.Config) error {
				repo, err := openRepository(cfg.RepoRoot)
				if err != nil {
					return err
				}
				if err := m.BuildImages(ctx, out, repo, nil); err != nil {
					return err
				}
				color.Green.Fprintln(out, "Release images built")
				return nil
			})
		})
}

// NewCmdCheck describes the CLI command to verify the release images exist.
func NewCmdCheck(v *viper.Viper) *cobra.Command {
	return NewCmd("check").
		WithDescription("Check that every release image is present in the engine").
		NoArgs(func(ctx context.Context, out io.Writer) error {
			return withImageManager(ctx, out, v, func(m *images.ImageManager, cfg *config.Config) error {
				ok, err := m.CheckImages(ctx, out)
				if err != nil {
					return err
				}
				if !ok {
					return sErrors.NewVerifyError(fmt.Errorf("release %s is incomplete", cfg.Version))
				}
				color.Green.Fprintln(out, "All release images are present")
				return nil
			})
		})
}

// NewCmdPush describes the CLI command to push the release images.
func NewCmdPush(v *viper.Viper) *cobra.Command {
	return NewCmd("push").
		WithDescription("Push the release images to Docker Hub").
		NoArgs(func(ctx context.Context, out io.Writer) error {
			return withImageManager(ctx, out, v, func(m *images.ImageManager, _ *config.Config) error {
				return m.PushImages(ctx, out)
			})
		})
}

func withImageManager(ctx context.Context, out io.Writer, v *viper.Viper, action func(*images.ImageManager, *config.Config) error) error {
	cfg, err := config.NewConfigFrom(v)
	if err != nil {
		return err
	}

	m, err := newImageManager(ctx, out, cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	return action(m, cfg)
}
