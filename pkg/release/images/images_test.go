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
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/registry"

	"github.com/docker/compose-release/pkg/release/config"
	"github.com/docker/compose-release/pkg/release/docker"
	sErrors "github.com/docker/compose-release/pkg/release/errors"
	"github.com/docker/compose-release/testutil"
)

const testVersion = "1.25.0"

type fakeRepository struct {
	sha   string
	err   error
	calls int
}

func (r *fakeRepository) WriteGitSHA() (string, error) {
	r.calls++
	return r.sha, r.err
}

type testAuthHelper struct{}

func (testAuthHelper) GetAuthConfig(serverAddress string) (registry.AuthConfig, error) {
	return registry.AuthConfig{
		Username:      "config-user",
		Password:      "config-pass",
		ServerAddress: serverAddress,
	}, nil
}

// chunkWriter keeps every write separately.
type chunkWriter struct {
	writes []string
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, string(p))
	return len(p), nil
}

func strPtr(s string) *string { return &s }

func hubCredentials(username, password string) string {
	return base64.URLEncoding.EncodeToString([]byte(`{"Username":"` + username + `","Password":"` + password + `"}`))
}

func writeRepoRoot(t *testutil.T) string {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM alpine AS build\nARG GIT_COMMIT\nARG BUILD_PLATFORM\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func newTestManager(t *testutil.T, api *testutil.FakeAPIClient, cfg config.Config) *ImageManager {
	t.Override(&docker.DefaultAuthHelper, testAuthHelper{})
	if cfg.Version == "" {
		cfg.Version = testVersion
	}
	if cfg.RepoRoot == "" {
		cfg.RepoRoot = writeRepoRoot(t)
	}

	m, err := NewImageManager(context.Background(), &bytes.Buffer{}, &cfg, docker.NewLocalDaemon(api))
	t.CheckNoError(err)
	return m
}

func imageNames(refs []ImageRef) []string {
	var names []string
	for _, ref := range refs {
		names = append(names, ref.String())
	}
	return names
}

func TestNewImageManager(t *testing.T) {
	tests := []struct {
		description    string
		cfg            config.Config
		api            *testutil.FakeAPIClient
		expectedLogins []registry.AuthConfig
		expectedOutput string
		expectedPhase  sErrors.Phase
		shouldErr      bool
	}{
		{
			description: "no credentials",
			cfg:         config.Config{Version: testVersion},
			api:         &testutil.FakeAPIClient{},
		},
		{
			description: "credentials trigger a single login",
			cfg:         config.Config{Version: testVersion, HubCredentials: hubCredentials("release-bot", "s3cret")},
			api:         &testutil.FakeAPIClient{},
			expectedLogins: []registry.AuthConfig{
				{Username: "release-bot", Password: "s3cret"},
			},
			expectedOutput: "HUB_CREDENTIALS found in environment, issuing login\n",
		},
		{
			description:    "malformed credentials",
			cfg:            config.Config{Version: testVersion, HubCredentials: "not base64!"},
			api:            &testutil.FakeAPIClient{},
			expectedOutput: "HUB_CREDENTIALS found in environment, issuing login\n",
			expectedPhase:  sErrors.Config,
			shouldErr:      true,
		},
		{
			description:    "credentials without password",
			cfg:            config.Config{Version: testVersion, HubCredentials: base64.URLEncoding.EncodeToString([]byte(`{"Username":"release-bot"}`))},
			api:            &testutil.FakeAPIClient{},
			expectedOutput: "HUB_CREDENTIALS found in environment, issuing login\n",
			expectedPhase:  sErrors.Config,
			shouldErr:      true,
		},
		{
			description: "login rejected",
			cfg:         config.Config{Version: testVersion, HubCredentials: hubCredentials("release-bot", "wrong")},
			api:         &testutil.FakeAPIClient{ErrLogin: true},
			expectedLogins: []registry.AuthConfig{
				{Username: "release-bot", Password: "wrong"},
			},
			expectedOutput: "HUB_CREDENTIALS found in environment, issuing login\n",
			shouldErr:      true,
		},
		{
			description:   "missing version",
			cfg:           config.Config{},
			api:           &testutil.FakeAPIClient{},
			expectedPhase: sErrors.Config,
			shouldErr:     true,
		},
		{
			description:   "invalid organization",
			cfg:           config.Config{Version: testVersion, Organization: "Not Valid"},
			api:           &testutil.FakeAPIClient{},
			expectedPhase: sErrors.Config,
			shouldErr:     true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			var out bytes.Buffer

			m, err := NewImageManager(context.Background(), &out, &test.cfg, docker.NewLocalDaemon(test.api))

			t.CheckError(test.shouldErr, err)
			if test.shouldErr {
				t.CheckTrue(m == nil)
			}
			t.CheckDeepEqual(test.expectedPhase, sErrors.PhaseOf(err))
			t.CheckDeepEqual(test.expectedLogins, test.api.Logins)
			t.CheckDeepEqual(test.expectedOutput, out.String())
		})
	}
}

func TestBuildImages(t *testing.T) {
	tests := []struct {
		description    string
		latest         bool
		expectedTagged []string
	}{
		{
			description:    "release",
			expectedTagged: []string{"docker/compose-tests:latest"},
		},
		{
			description:    "latest release",
			latest:         true,
			expectedTagged: []string{"docker/compose:latest", "docker/compose-tests:latest"},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			api := &testutil.FakeAPIClient{}
			m := newTestManager(t, api, config.Config{Latest: test.latest})
			repo := &fakeRepository{sha: "abc1234"}
			var out bytes.Buffer

			err := m.BuildImages(context.Background(), &out, repo, []string{"compose/__init__.py"})

			t.CheckNoError(err)
			t.CheckDeepEqual(1, repo.calls)
			t.CheckDeepEqual([]types.ImageBuildOptions{
				{
					Tags:       []string{"docker/compose:1.25.0"},
					Dockerfile: "Dockerfile",
					BuildArgs:  map[string]*string{"GIT_COMMIT": strPtr("abc1234")},
					Target:     "build",
					Remove:     true,
				},
				{
					Tags:       []string{"docker/compose-tests:1.25.0"},
					Dockerfile: "Dockerfile",
					BuildArgs: map[string]*string{
						"BUILD_PLATFORM": strPtr("debian"),
						"GIT_COMMIT":     strPtr("abc1234"),
					},
					Target: "build",
					Remove: true,
				},
			}, api.Built)
			t.CheckDeepEqual(test.expectedTagged, api.Tagged)
			t.CheckDeepEqual(`Building release images...
Building docker/compose image (alpine based)
Step 1/1 : FROM alpine
Successfully built sha256:1
Successfully tagged docker/compose:1.25.0
Building test image (debian based for UCP e2e)
Step 1/1 : FROM alpine
Successfully built sha256:2
Successfully tagged docker/compose-tests:1.25.0
`, out.String())
		})
	}
}

func TestBuildImagesStreamsOutput(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{}
		m := newTestManager(t, api, config.Config{})
		out := &chunkWriter{}

		err := m.BuildImages(context.Background(), out, &fakeRepository{sha: "abc1234"}, nil)

		t.CheckNoError(err)
		t.CheckDeepEqual([]string{
			"Building release images...\n",
			"Building docker/compose image (alpine based)\n",
			"Step 1/1 : FROM alpine\n",
			"Successfully built sha256:1\n",
			"Successfully tagged docker/compose:1.25.0\n",
			"Building test image (debian based for UCP e2e)\n",
			"Step 1/1 : FROM alpine\n",
			"Successfully built sha256:2\n",
			"Successfully tagged docker/compose-tests:1.25.0\n",
		}, out.writes)
	})
}

func TestBuildImagesErrors(t *testing.T) {
	const failingBuild = `{"stream":"Step 1/2 : FROM alpine\n"}
{"stream":"Step 2/2 : RUN false\n"}
{"errorDetail":{"code":1,"message":"The command '/bin/sh -c false' returned a non-zero code: 1"},"error":"The command '/bin/sh -c false' returned a non-zero code: 1"}
{"stream":"never printed\n"}
`

	tests := []struct {
		description    string
		latest         bool
		api            *testutil.FakeAPIClient
		repo           *fakeRepository
		expectedBuilds int
		expectedTagged []string
		expectedErr    string
		expectedPhase  sErrors.Phase
	}{
		{
			description: "main image fails",
			latest:      true,
			api: &testutil.FakeAPIClient{
				BuildOutput: map[string]string{"docker/compose:1.25.0": failingBuild},
			},
			repo:           &fakeRepository{sha: "abc1234"},
			expectedBuilds: 1,
			expectedErr:    "Build error for docker/compose:1.25.0: The command '/bin/sh -c false' returned a non-zero code: 1",
			expectedPhase:  sErrors.Build,
		},
		{
			description: "test image fails after latest tag",
			latest:      true,
			api: &testutil.FakeAPIClient{
				BuildOutput: map[string]string{"docker/compose-tests:1.25.0": failingBuild},
			},
			repo:           &fakeRepository{sha: "abc1234"},
			expectedBuilds: 2,
			expectedTagged: []string{"docker/compose:latest"},
			expectedErr:    "Build error for docker/compose-tests:1.25.0: The command",
			expectedPhase:  sErrors.Build,
		},
		{
			description:    "engine unreachable",
			api:            &testutil.FakeAPIClient{ErrImageBuild: true},
			repo:           &fakeRepository{sha: "abc1234"},
			expectedErr:    "Build error for docker/compose:1.25.0: docker build: Cannot connect to the Docker daemon",
			expectedPhase:  sErrors.Build,
		},
		{
			description: "git sha cannot be written",
			api:         &testutil.FakeAPIClient{},
			repo:        &fakeRepository{err: errors.New("reference not found")},
			expectedErr: "writing git sha: reference not found",
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			m := newTestManager(t, test.api, config.Config{Latest: test.latest})
			var out bytes.Buffer

			err := m.BuildImages(context.Background(), &out, test.repo, nil)

			t.CheckErrorContains(test.expectedErr, err)
			t.CheckDeepEqual(test.expectedPhase, sErrors.PhaseOf(err))
			t.CheckDeepEqual(test.expectedBuilds, len(test.api.Built))
			t.CheckDeepEqual(test.expectedTagged, test.api.Tagged)
			t.CheckNotContains("never printed", out.String())
		})
	}
}

func TestBuildImagesFailingStreamIsPrinted(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{
			BuildOutput: map[string]string{
				"docker/compose:1.25.0": `{"stream":"Step 1/2 : FROM alpine\n"}
{"error":"pull access denied for alpine"}
`,
			},
		}
		m := newTestManager(t, api, config.Config{})
		var out bytes.Buffer

		err := m.BuildImages(context.Background(), &out, &fakeRepository{sha: "abc1234"}, nil)

		t.CheckErrorContains("pull access denied for alpine", err)
		t.CheckContains("Step 1/2 : FROM alpine\n", out.String())
		t.CheckNotContains("Building test image", out.String())
	})
}

func TestImageNames(t *testing.T) {
	tests := []struct {
		description  string
		cfg          config.Config
		expectedRefs []string
	}{
		{
			description: "release",
			cfg:         config.Config{Version: testVersion},
			expectedRefs: []string{
				"docker/compose-tests:latest",
				"docker/compose-tests:1.25.0",
				"docker/compose:1.25.0",
			},
		},
		{
			description: "latest release",
			cfg:         config.Config{Version: testVersion, Latest: true},
			expectedRefs: []string{
				"docker/compose-tests:latest",
				"docker/compose-tests:1.25.0",
				"docker/compose:1.25.0",
				"docker/compose:latest",
			},
		},
		{
			description: "release candidate in another organization",
			cfg:         config.Config{Version: "1.25.0-rc2", Organization: "composeci"},
			expectedRefs: []string{
				"composeci/compose-tests:latest",
				"composeci/compose-tests:1.25.0-rc2",
				"composeci/compose:1.25.0-rc2",
			},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			m := newTestManager(t, &testutil.FakeAPIClient{}, test.cfg)

			t.CheckDeepEqual(test.expectedRefs, imageNames(m.ImageNames()))
		})
	}
}

func TestCheckImages(t *testing.T) {
	tests := []struct {
		description       string
		latest            bool
		api               *testutil.FakeAPIClient
		expected          bool
		expectedInspected []string
		expectedOutput    string
		shouldErr         bool
	}{
		{
			description: "all present",
			latest:      true,
			api: (&testutil.FakeAPIClient{}).
				Add("docker/compose-tests:latest", "sha256:2").
				Add("docker/compose-tests:1.25.0", "sha256:2").
				Add("docker/compose:1.25.0", "sha256:1").
				Add("docker/compose:latest", "sha256:1"),
			expected: true,
			expectedInspected: []string{
				"docker/compose-tests:latest",
				"docker/compose-tests:1.25.0",
				"docker/compose:1.25.0",
				"docker/compose:latest",
			},
		},
		{
			description: "latest not required",
			api: (&testutil.FakeAPIClient{}).
				Add("docker/compose-tests:latest", "sha256:2").
				Add("docker/compose-tests:1.25.0", "sha256:2").
				Add("docker/compose:1.25.0", "sha256:1"),
			expected: true,
			expectedInspected: []string{
				"docker/compose-tests:latest",
				"docker/compose-tests:1.25.0",
				"docker/compose:1.25.0",
			},
		},
		{
			description: "stops at first missing image",
			latest:      true,
			api: (&testutil.FakeAPIClient{}).
				Add("docker/compose-tests:latest", "sha256:2").
				Add("docker/compose:1.25.0", "sha256:1"),
			expectedInspected: []string{
				"docker/compose-tests:latest",
				"docker/compose-tests:1.25.0",
			},
			expectedOutput: "Expected image docker/compose-tests:1.25.0 was not found\n",
		},
		{
			description:       "engine error",
			api:               &testutil.FakeAPIClient{ErrImageInspect: true},
			expectedInspected: []string{"docker/compose-tests:latest"},
			shouldErr:         true,
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			m := newTestManager(t, test.api, config.Config{Latest: test.latest})
			var out bytes.Buffer

			ok, err := m.CheckImages(context.Background(), &out)

			t.CheckErrorAndDeepEqual(test.shouldErr, err, test.expected, ok)
			t.CheckDeepEqual(test.expectedInspected, test.api.Inspected)
			t.CheckDeepEqual(test.expectedOutput, out.String())
		})
	}
}

func TestBuildThenCheck(t *testing.T) {
	for _, latest := range []bool{false, true} {
		testutil.Run(t, "", func(t *testutil.T) {
			api := &testutil.FakeAPIClient{}
			m := newTestManager(t, api, config.Config{Latest: latest})

			t.CheckNoError(m.BuildImages(context.Background(), &bytes.Buffer{}, &fakeRepository{sha: "abc1234"}, nil))
			ok, err := m.CheckImages(context.Background(), &bytes.Buffer{})

			t.CheckNoError(err)
			t.CheckTrue(ok)
		})
	}
}

func TestPushImages(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		api := (&testutil.FakeAPIClient{}).
			Add("docker/compose-tests:latest", "sha256:2").
			Add("docker/compose-tests:1.25.0", "sha256:2").
			Add("docker/compose:1.25.0", "sha256:1").
			Add("docker/compose:latest", "sha256:1")
		m := newTestManager(t, api, config.Config{Latest: true})
		var out bytes.Buffer

		err := m.PushImages(context.Background(), &out)

		t.CheckNoError(err)
		t.CheckDeepEqual([]string{
			"docker/compose-tests:latest",
			"docker/compose-tests:1.25.0",
			"docker/compose:1.25.0",
			"docker/compose:latest",
		}, api.Pushed)
		t.CheckContains("Pushing docker/compose-tests:latest to Docker Hub\n"+
			"The push refers to repository [docker.io/docker/compose-tests]\n"+
			"Preparing\n"+
			"Pushed\n"+
			"latest: digest: sha256:", out.String())
		t.CheckContains("Pushing docker/compose:latest to Docker Hub\n", out.String())
		t.CheckNotContains("Tag", out.String())
	})
}

func TestPushImagesError(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{
			PushOutput: map[string]string{
				"docker/compose-tests:1.25.0": `{"status":"The push refers to repository [docker.io/docker/compose-tests]"}
{"errorDetail":{"message":"denied: requested access to the resource is denied"},"error":"denied: requested access to the resource is denied"}
`,
			},
		}
		m := newTestManager(t, api, config.Config{Latest: true})
		var out bytes.Buffer

		err := m.PushImages(context.Background(), &out)

		t.CheckDeepEqual("Error pushing docker/compose-tests:1.25.0: denied: requested access to the resource is denied", err.Error())
		t.CheckDeepEqual(sErrors.Push, sErrors.PhaseOf(err))
		t.CheckDeepEqual([]string{
			"docker/compose-tests:latest",
			"docker/compose-tests:1.25.0",
		}, api.Pushed)
		t.CheckNotContains("Pushing docker/compose:1.25.0", out.String())
	})
}

func TestPushImagesAuth(t *testing.T) {
	tests := []struct {
		description    string
		hubCredentials string
		expected       registry.AuthConfig
	}{
		{
			description:    "login credentials",
			hubCredentials: hubCredentials("release-bot", "s3cret"),
			expected:       registry.AuthConfig{Username: "release-bot", Password: "s3cret"},
		},
		{
			description: "docker config credentials",
			expected: registry.AuthConfig{
				Username:      "config-user",
				Password:      "config-pass",
				ServerAddress: "https://index.docker.io/v1/",
			},
		},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			api := &testutil.FakeAPIClient{}
			m := newTestManager(t, api, config.Config{HubCredentials: test.hubCredentials})

			t.CheckNoError(m.PushImages(context.Background(), &bytes.Buffer{}))

			t.CheckDeepEqual(3, len(api.PushAuth))
			for _, encoded := range api.PushAuth {
				auth, err := registry.DecodeAuthConfig(encoded)
				t.CheckNoError(err)
				t.CheckDeepEqual(test.expected, *auth)
			}
		})
	}
}

func TestClose(t *testing.T) {
	testutil.Run(t, "", func(t *testutil.T) {
		api := &testutil.FakeAPIClient{}
		m := newTestManager(t, api, config.Config{})

		t.CheckNoError(m.Close())
		t.CheckTrue(api.Closed)
	})
}

func TestImageRefValidate(t *testing.T) {
	tests := []struct {
		description string
		ref         ImageRef
		shouldErr   bool
	}{
		{description: "hub image", ref: ImageRef{Repository: "docker/compose", Tag: "1.25.0"}},
		{description: "prerelease tag", ref: ImageRef{Repository: "docker/compose", Tag: "1.25.0-rc2"}},
		{description: "upper case repository", ref: ImageRef{Repository: "Docker/compose", Tag: "1.25.0"}, shouldErr: true},
		{description: "empty tag", ref: ImageRef{Repository: "docker/compose"}, shouldErr: true},
		{description: "invalid tag", ref: ImageRef{Repository: "docker/compose", Tag: "1.25.0+build"}, shouldErr: true},
	}
	for _, test := range tests {
		testutil.Run(t, test.description, func(t *testutil.T) {
			t.CheckError(test.shouldErr, test.ref.Validate())
		})
	}
}
