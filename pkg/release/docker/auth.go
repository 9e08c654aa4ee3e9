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

	"github.com/distribution/reference"
	cliconfig "github.com/docker/cli/cli/config"
	"github.com/docker/docker/api/types/registry"
	dockerregistry "github.com/docker/docker/registry"

	"github.com/docker/compose-release/pkg/release/output/log"
)

var (
	// DefaultAuthHelper is exposed so that other packages can override it for testing
	DefaultAuthHelper AuthConfigHelper = credsHelper{}
)

// AuthConfigHelper exists for testing purposes since GetAuthConfig shells out
// to native store helpers.
type AuthConfigHelper interface {
	GetAuthConfig(serverAddress string) (registry.AuthConfig, error)
}

type credsHelper struct{}

func (credsHelper) GetAuthConfig(serverAddress string) (registry.AuthConfig, error) {
	cf, err := cliconfig.Load(cliconfig.Dir())
	if err != nil {
		return registry.AuthConfig{}, fmt.Errorf("docker config: %w", err)
	}

	auth, err := cf.GetAuthConfig(serverAddress)
	if err != nil {
		return registry.AuthConfig{}, err
	}

	return registry.AuthConfig(auth), nil
}

// encodedRegistryAuth returns the X-Registry-Auth header value for pushing
// image. Credentials from a registry login take precedence over the local
// docker configuration.
func (l *localDaemon) encodedRegistryAuth(ctx context.Context, a AuthConfigHelper, image string) (string, error) {
	if l.registryAuth != "" {
		return l.registryAuth, nil
	}

	configKey, err := registryKey(image)
	if err != nil {
		return "", err
	}
	log.Entry(ctx).Debugf("Looking up credentials for %s", configKey)

	ac, err := a.GetAuthConfig(configKey)
	if err != nil {
		return "", fmt.Errorf("getting auth config: %w", err)
	}

	return registry.EncodeAuthConfig(ac)
}

// registryKey returns the key credentials for image are stored under in the
// docker configuration. Docker Hub uses its index server address.
func registryKey(image string) (string, error) {
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return "", fmt.Errorf("parsing image name for registry: %w", err)
	}

	domain := reference.Domain(named)
	if domain == dockerregistry.IndexName {
		return dockerregistry.IndexServer, nil
	}
	return domain, nil
}
