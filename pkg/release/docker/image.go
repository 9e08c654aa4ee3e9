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

package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/errdefs"

	"github.com/docker/compose-release/pkg/release/constants"
	"github.com/docker/compose-release/pkg/release/output/log"
)

// LocalDaemon talks to a local Docker API.
type LocalDaemon interface {
	Close() error
	Login(ctx context.Context, username, password string) error
	Build(ctx context.Context, out io.Writer, opts BuildOptions) error
	Tag(ctx context.Context, image, ref string) error
	ImageExists(ctx context.Context, ref string) (bool, error)
	Push(ctx context.Context, out io.Writer, ref string) error
}

// BuildOptions provides parameters related to the LocalDaemon build.
type BuildOptions struct {
	ContextDir string
	Dockerfile string
	Tag        string
	Target     string
	BuildArgs  map[string]*string
}

type localDaemon struct {
	apiClient APIClient

	// registryAuth is the encoded auth of the last successful login.
	registryAuth string
}

// NewLocalDaemon creates a new LocalDaemon.
func NewLocalDaemon(apiClient APIClient) LocalDaemon {
	return &localDaemon{
		apiClient: apiClient,
	}
}

// Close closes the connection with the local daemon.
func (l *localDaemon) Close() error {
	return l.apiClient.Close()
}

// Login authenticates against the default registry. The resulting
// credentials are used for every later push.
func (l *localDaemon) Login(ctx context.Context, username, password string) error {
	auth := registry.AuthConfig{
		Username: username,
		Password: password,
	}

	resp, err := l.apiClient.RegistryLogin(ctx, auth)
	if err != nil {
		return fmt.Errorf("logging in as %q: %w", username, err)
	}
	log.Entry(ctx).Debugf("Registry login: %s", resp.Status)

	if resp.IdentityToken != "" {
		auth.Password = ""
		auth.IdentityToken = resp.IdentityToken
	}

	encoded, err := registry.EncodeAuthConfig(auth)
	if err != nil {
		return fmt.Errorf("encoding registry auth: %w", err)
	}
	l.registryAuth = encoded
	return nil
}

// Build performs a docker build, writing its output to out as it arrives.
func (l *localDaemon) Build(ctx context.Context, out io.Writer, opts BuildOptions) error {
	dockerfile := opts.Dockerfile
	if dockerfile == "" {
		dockerfile = constants.DefaultDockerfilePath
	}
	log.Entry(ctx).Debugf("Running docker build: context: %s, dockerfile: %s, tag: %s", opts.ContextDir, dockerfile, opts.Tag)

	buildCtx, err := CreateBuildContext(opts.ContextDir, dockerfile)
	if err != nil {
		return fmt.Errorf("creating docker context: %w", err)
	}
	defer buildCtx.Close()

	resp, err := l.apiClient.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{opts.Tag},
		Dockerfile: dockerfile,
		BuildArgs:  opts.BuildArgs,
		Target:     opts.Target,
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("docker build: %w", err)
	}
	defer resp.Body.Close()

	return consumeStream(resp.Body, func(c Chunk) error {
		switch c.Kind {
		case ChunkError:
			return &StreamError{Message: c.Text}
		case ChunkProgress:
			_, err := io.WriteString(out, c.Text)
			return err
		case ChunkAux:
			log.Entry(ctx).Debugf("Build output for %s: %s", opts.Tag, c.Text)
		}
		return nil
	})
}

// Tag adds a tag to an image.
func (l *localDaemon) Tag(ctx context.Context, image, ref string) error {
	log.Entry(ctx).Debugf("Tagging %s as %s", image, ref)
	return l.apiClient.ImageTag(ctx, image, ref)
}

// ImageExists reports whether ref is known to the daemon. Only a not-found
// answer yields false; any other failure is returned.
func (l *localDaemon) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := l.apiClient.ImageInspectWithRaw(ctx, ref)
	switch {
	case err == nil:
		return true, nil
	case errdefs.IsNotFound(err):
		return false, nil
	}
	return false, fmt.Errorf("inspecting image %q: %w", ref, err)
}

// Push pushes an image reference to a registry, writing every status line to out.
func (l *localDaemon) Push(ctx context.Context, out io.Writer, ref string) error {
	registryAuth, err := l.encodedRegistryAuth(ctx, DefaultAuthHelper, ref)
	if err != nil {
		return fmt.Errorf("getting auth config for %q: %w", ref, err)
	}

	rc, err := l.apiClient.ImagePush(ctx, ref, image.PushOptions{
		RegistryAuth: registryAuth,
	})
	if err != nil {
		return fmt.Errorf("docker push: %w", err)
	}
	defer rc.Close()

	return consumeStream(rc, func(c Chunk) error {
		switch c.Kind {
		case ChunkError:
			if c.Status != "" {
				fmt.Fprintln(out, c.Status)
			}
			return &StreamError{Message: c.Text}
		case ChunkStatus:
			_, err := fmt.Fprintln(out, c.Text)
			return err
		case ChunkAux:
			log.Entry(ctx).Debugf("Push output for %s: %s", ref, c.Text)
		}
		return nil
	})
}
