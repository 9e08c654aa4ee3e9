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

package constants

import (
	"github.com/sirupsen/logrus"
)

const (
	// DefaultLogLevel is the default global verbosity
	DefaultLogLevel = logrus.WarnLevel

	// DefaultOrganization owns the released repositories on Docker Hub.
	DefaultOrganization = "docker"

	// DefaultRepoRoot is the build context used for both release images.
	DefaultRepoRoot = "."

	// DefaultDockerfilePath is the dockerfile path is given relative to the
	// context directory
	DefaultDockerfilePath = "Dockerfile"

	ComposeImageName      = "compose"
	ComposeTestsImageName = "compose-tests"

	// LatestTag is the floating tag applied next to the version tag.
	LatestTag = "latest"

	// BuildTarget is the multi-stage target both images are built from.
	BuildTarget = "build"

	GitCommitBuildArg     = "GIT_COMMIT"
	BuildPlatformBuildArg = "BUILD_PLATFORM"
	DebianBuildPlatform   = "debian"

	// HubCredentialsEnv holds base64url encoded JSON registry credentials.
	HubCredentialsEnv = "HUB_CREDENTIALS"

	// GitSHAFile is where the abbreviated revision is written, relative to the repository root.
	GitSHAFile = "compose/GITSHA"

	// GitSHALength is the number of hex characters kept from the HEAD commit hash.
	GitSHALength = 7
)

type Phase string

var (
	Release       = Phase("Release")
	Login         = Phase("Login")
	Build         = Phase("Build")
	Verify        = Phase("Verify")
	Push          = Phase("Push")
	SubtaskIDNone = "-1"
)
