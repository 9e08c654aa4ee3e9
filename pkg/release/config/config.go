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

package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/docker/docker/api/types/registry"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/docker/compose-release/pkg/release/constants"
	sErrors "github.com/docker/compose-release/pkg/release/errors"
	"github.com/docker/compose-release/pkg/release/version"
)

// Keys the release configuration is read from.
const (
	KeyVersion          = "version"
	KeyLatest           = "latest"
	KeyRepoRoot         = "repo_root"
	KeyOrganization     = "org"
	KeyHubCredentials   = "hub_credentials"
	KeyDockerHost       = "docker_host"
	KeyDockerAPIVersion = "docker_api_version"
	KeyDockerCertPath   = "docker_cert_path"
	KeyDockerTLSVerify  = "docker_tls_verify"
)

// Config is the release configuration. It is created once at startup and
// never mutated.
type Config struct {
	Version      string
	Latest       bool
	RepoRoot     string
	Organization string

	// HubCredentials is the raw, still encoded, value of HUB_CREDENTIALS.
	HubCredentials string

	Engine EngineSettings
}

// EngineSettings describes how to reach the Docker engine.
type EngineSettings struct {
	Host       string
	APIVersion string
	CertPath   string
	TLSVerify  bool
}

// Credentials are the registry username and password used to log in.
type Credentials struct {
	Username string
	Password string
}

// BindEnv binds the environment variables understood by the release tooling
// to their keys in v.
func BindEnv(v *viper.Viper) {
	_ = v.BindEnv(KeyHubCredentials, constants.HubCredentialsEnv)
	_ = v.BindEnv(KeyDockerHost, "DOCKER_HOST")
	_ = v.BindEnv(KeyDockerAPIVersion, "DOCKER_API_VERSION")
	_ = v.BindEnv(KeyDockerCertPath, "DOCKER_CERT_PATH")
	_ = v.BindEnv(KeyDockerTLSVerify, "DOCKER_TLS_VERIFY")

	v.SetDefault(KeyRepoRoot, constants.DefaultRepoRoot)
	v.SetDefault(KeyOrganization, constants.DefaultOrganization)
}

// NewConfigFrom returns a Config based on the values stored in the provided
// viper.Viper.
func NewConfigFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version:        v.GetString(KeyVersion),
		Latest:         v.GetBool(KeyLatest),
		RepoRoot:       v.GetString(KeyRepoRoot),
		Organization:   v.GetString(KeyOrganization),
		HubCredentials: v.GetString(KeyHubCredentials),
		Engine: EngineSettings{
			Host:       v.GetString(KeyDockerHost),
			APIVersion: v.GetString(KeyDockerAPIVersion),
			CertPath:   v.GetString(KeyDockerCertPath),
			// Like the docker CLI, any non-empty value enables verification.
			TLSVerify: v.GetString(KeyDockerTLSVerify) != "",
		},
	}
	if cfg.RepoRoot == "" {
		cfg.RepoRoot = constants.DefaultRepoRoot
	}
	root, err := expandPath(cfg.RepoRoot)
	if err != nil {
		return nil, sErrors.NewConfigError(fmt.Errorf("resolving repository root: %w", err))
	}
	cfg.RepoRoot = root
	if cfg.Engine.CertPath != "" {
		if cfg.Engine.CertPath, err = expandPath(cfg.Engine.CertPath); err != nil {
			return nil, sErrors.NewConfigError(fmt.Errorf("resolving %s: %w", "DOCKER_CERT_PATH", err))
		}
	}
	if cfg.Organization == "" {
		cfg.Organization = constants.DefaultOrganization
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandPath resolves a leading ~ and makes path absolute.
func expandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// Validate checks the release version.
func (c *Config) Validate() error {
	if c.Version == "" {
		return sErrors.NewConfigError(errors.New("a release version is required"))
	}
	if _, err := version.ParseVersion(c.Version); err != nil {
		return sErrors.NewConfigError(fmt.Errorf("invalid release version: %w", err))
	}
	return nil
}

// DecodeCredentials decodes a base64url encoded JSON object carrying
// Username and Password fields. Anything after the object is rejected.
func DecodeCredentials(encoded string) (*Credentials, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, sErrors.NewConfigError(fmt.Errorf("decoding %s: %w", constants.HubCredentialsEnv, err))
	}

	var auth registry.AuthConfig
	if err := json.Unmarshal(raw, &auth); err != nil {
		return nil, sErrors.NewConfigError(fmt.Errorf("decoding %s: %w", constants.HubCredentialsEnv, err))
	}
	if auth.Username == "" || auth.Password == "" {
		return nil, sErrors.NewConfigError(fmt.Errorf("decoding %s: Username and Password are required", constants.HubCredentialsEnv))
	}

	return &Credentials{
		Username: auth.Username,
		Password: auth.Password,
	}, nil
}
