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

package images

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/distribution/reference"

	"github.com/docker/compose-release/pkg/release/config"
	"github.com/docker/compose-release/pkg/release/constants"
	"github.com/docker/compose-release/pkg/release/docker"
	sErrors "github.com/docker/compose-release/pkg/release/errors"
	"github.com/docker/compose-release/pkg/release/output/color"
	"github.com/docker/compose-release/pkg/release/output/log"
)

// ImageRef is a tagged image name.
type ImageRef struct {
	Repository string
	Tag        string
}

func (r ImageRef) String() string {
	return r.Repository + ":" + r.Tag
}

// Validate checks that r is a well formed, tagged image reference.
func (r ImageRef) Validate() error {
	named, err := reference.ParseNormalizedNamed(r.String())
	if err != nil {
		return fmt.Errorf("invalid image reference %q: %w", r.String(), err)
	}
	if _, ok := named.(reference.Tagged); !ok {
		return fmt.Errorf("image reference %q has no tag", r.String())
	}
	return nil
}

// Repository is the source checkout the images are built from.
type Repository interface {
	// WriteGitSHA stamps the current revision into the checkout and returns it.
	WriteGitSHA() (string, error)
}

// ImageManager builds, verifies and pushes the release images of one version.
type ImageManager struct {
	daemon       docker.LocalDaemon
	version      string
	latest       bool
	organization string
	repoRoot     string
}

// New connects to the engine described by cfg and returns an ImageManager
// owning that connection.
func New(ctx context.Context, out io.Writer, cfg *config.Config) (*ImageManager, error) {
	apiClient, err := docker.NewAPIClient(cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}

	m, err := NewImageManager(ctx, out, cfg, docker.NewLocalDaemon(apiClient))
	if err != nil {
		apiClient.Close()
		return nil, err
	}
	return m, nil
}

// NewImageManager returns an ImageManager driving daemon. When cfg carries hub
// credentials, it logs in once before returning.
func NewImageManager(ctx context.Context, out io.Writer, cfg *config.Config, daemon docker.LocalDaemon) (*ImageManager, error) {
	if cfg.Version == "" {
		return nil, sErrors.NewConfigError(errors.New("a release version is required"))
	}

	organization := cfg.Organization
	if organization == "" {
		organization = constants.DefaultOrganization
	}
	repoRoot := cfg.RepoRoot
	if repoRoot == "" {
		repoRoot = constants.DefaultRepoRoot
	}

	m := &ImageManager{
		daemon:       daemon,
		version:      cfg.Version,
		latest:       cfg.Latest,
		organization: organization,
		repoRoot:     repoRoot,
	}
	for _, ref := range m.ImageNames() {
		if err := ref.Validate(); err != nil {
			return nil, sErrors.NewConfigError(err)
		}
	}

	if cfg.HubCredentials == "" {
		return m, nil
	}

	fmt.Fprintf(out, "%s found in environment, issuing login\n", constants.HubCredentialsEnv)
	creds, err := config.DecodeCredentials(cfg.HubCredentials)
	if err != nil {
		return nil, err
	}
	ctx = log.WithEventContext(ctx, constants.Login, constants.SubtaskIDNone)
	if err := daemon.Login(ctx, creds.Username, creds.Password); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ImageManager) ref(name, tag string) ImageRef {
	return ImageRef{
		Repository: m.organization + "/" + name,
		Tag:        tag,
	}
}

// BuildImages builds the compose image and its test image from the
// repository root, tagging them as latest where applicable. Build output is
// written to out as it arrives. files is accepted for compatibility with the
// other release steps and is not used.
func (m *ImageManager) BuildImages(ctx context.Context, out io.Writer, repository Repository, files []string) error {
	ctx = log.WithEventContext(ctx, constants.Build, constants.SubtaskIDNone)
	color.Blue.Fprintln(out, "Building release images...")

	gitSHA, err := repository.WriteGitSHA()
	if err != nil {
		return fmt.Errorf("writing git sha: %w", err)
	}
	log.Entry(ctx).Debugf("Building release %s at revision %s", m.version, gitSHA)

	compose := m.ref(constants.ComposeImageName, m.version)
	fmt.Fprintf(out, "Building %s image (alpine based)\n", compose.Repository)
	if err := m.build(ctx, out, compose, map[string]*string{
		constants.GitCommitBuildArg: &gitSHA,
	}); err != nil {
		return err
	}

	if m.latest {
		if err := m.tag(ctx, compose, m.ref(constants.ComposeImageName, constants.LatestTag)); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "Building test image (debian based for UCP e2e)")
	tests := m.ref(constants.ComposeTestsImageName, m.version)
	platform := constants.DebianBuildPlatform
	if err := m.build(ctx, out, tests, map[string]*string{
		constants.BuildPlatformBuildArg: &platform,
		constants.GitCommitBuildArg:     &gitSHA,
	}); err != nil {
		return err
	}

	// The test image is always tagged latest, whether or not the release is.
	return m.tag(ctx, tests, m.ref(constants.ComposeTestsImageName, constants.LatestTag))
}

func (m *ImageManager) build(ctx context.Context, out io.Writer, image ImageRef, buildArgs map[string]*string) error {
	err := m.daemon.Build(ctx, out, docker.BuildOptions{
		ContextDir: m.repoRoot,
		Dockerfile: constants.DefaultDockerfilePath,
		Tag:        image.String(),
		Target:     constants.BuildTarget,
		BuildArgs:  buildArgs,
	})
	if err != nil {
		return sErrors.NewBuildError(image.String(), err)
	}
	return nil
}

func (m *ImageManager) tag(ctx context.Context, image, ref ImageRef) error {
	if err := m.daemon.Tag(ctx, image.String(), ref.String()); err != nil {
		return sErrors.NewBuildError(ref.String(), fmt.Errorf("tagging %s: %w", image, err))
	}
	return nil
}

// ImageNames lists the images of the release, in the order they are checked
// and pushed. The latest compose image is only part of latest releases.
func (m *ImageManager) ImageNames() []ImageRef {
	names := []ImageRef{
		m.ref(constants.ComposeTestsImageName, constants.LatestTag),
		m.ref(constants.ComposeTestsImageName, m.version),
		m.ref(constants.ComposeImageName, m.version),
	}
	if m.latest {
		names = append(names, m.ref(constants.ComposeImageName, constants.LatestTag))
	}
	return names
}

// CheckImages reports whether every release image is present in the engine.
// It stops at the first missing image.
func (m *ImageManager) CheckImages(ctx context.Context, out io.Writer) (bool, error) {
	ctx = log.WithEventContext(ctx, constants.Verify, constants.SubtaskIDNone)

	for _, name := range m.ImageNames() {
		exists, err := m.daemon.ImageExists(ctx, name.String())
		if err != nil {
			return false, err
		}
		if !exists {
			fmt.Fprintf(out, "Expected image %s was not found\n", name)
			return false, nil
		}
		log.Entry(ctx).Debugf("Found image %s", name)
	}
	return true, nil
}

// PushImages pushes every release image to Docker Hub, stopping at the first
// failure. Images pushed before the failure stay pushed.
func (m *ImageManager) PushImages(ctx context.Context, out io.Writer) error {
	for i, name := range m.ImageNames() {
		ctx := log.WithEventContext(ctx, constants.Push, fmt.Sprint(i))

		fmt.Fprintf(out, "Pushing %s to Docker Hub\n", name)
		if err := m.daemon.Push(ctx, out, name.String()); err != nil {
			return sErrors.NewPushError(name.String(), err)
		}
	}
	return nil
}

// Close releases the engine connection.
func (m *ImageManager) Close() error {
	return m.daemon.Close()
}
