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
	"net/http"
	"path/filepath"

	"github.com/docker/cli/cli/connhelper"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/tlsconfig"

	"github.com/docker/compose-release/pkg/release/config"
	"github.com/docker/compose-release/pkg/release/output/log"
	"github.com/docker/compose-release/pkg/release/version"
)

// APIClient is the subset of the Docker SDK used by the release workflow.
// *client.Client satisfies it.
type APIClient interface {
	RegistryLogin(ctx context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error)
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImageTag(ctx context.Context, source, target string) error
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
	Close() error
}

// For testing
var (
	NewAPIClient = NewAPIClientImpl
)

// NewAPIClientImpl returns a docker client for the given engine settings.
// Without an explicit API version, it will "negotiate" the highest possible
// API version supported by both the client and the server.
func NewAPIClientImpl(settings config.EngineSettings) (APIClient, error) {
	var opts = []client.Opt{client.WithHTTPHeaders(getUserAgentHeader())}

	host := settings.Host
	if host == "" {
		host = client.DefaultDockerHost
	}

	helper, err := connhelper.GetConnectionHelper(host)
	if err != nil {
		return nil, fmt.Errorf("parsing docker host %q: %w", host, err)
	}

	switch {
	case helper != nil:
		httpClient := &http.Client{
			Transport: &http.Transport{
				DialContext: helper.Dialer,
			},
		}
		// WithHost resets the transport dialer, so the helper's dialer goes last.
		opts = append(opts, client.WithHTTPClient(httpClient), client.WithHost(helper.Host), client.WithDialContext(helper.Dialer))
	case settings.CertPath != "":
		options := tlsconfig.Options{
			CAFile:             filepath.Join(settings.CertPath, "ca.pem"),
			CertFile:           filepath.Join(settings.CertPath, "cert.pem"),
			KeyFile:            filepath.Join(settings.CertPath, "key.pem"),
			InsecureSkipVerify: !settings.TLSVerify,
		}
		tlsc, err := tlsconfig.Client(options)
		if err != nil {
			return nil, fmt.Errorf("loading docker TLS configuration: %w", err)
		}
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsc,
			},
			CheckRedirect: client.CheckRedirect,
		}
		opts = append(opts, client.WithHTTPClient(httpClient), client.WithHost(host))
	default:
		opts = append(opts, client.WithHost(host))
	}

	if settings.APIVersion != "" {
		opts = append(opts, client.WithVersion(settings.APIVersion))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("error getting docker client: %w", err)
	}
	return cli, nil
}

func getUserAgentHeader() map[string]string {
	userAgent := version.UserAgent()
	log.Entry(context.TODO()).Debugf("setting Docker user agent to %s", userAgent)
	return map[string]string{
		"User-Agent": userAgent,
	}
}
