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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/pkg/archive"
	"github.com/moby/patternmatcher"
	"github.com/moby/patternmatcher/ignorefile"

	"github.com/docker/compose-release/pkg/release/constants"
)

// CreateBuildContext returns a tar stream of dir honouring its .dockerignore.
// The caller must close it.
func CreateBuildContext(dir, dockerfile string) (io.ReadCloser, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to access build context: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("build context %q is not a directory", dir)
	}

	excludes, err := ReadDockerignore(dir)
	if err != nil {
		return nil, err
	}
	if dockerfile == "" {
		dockerfile = constants.DefaultDockerfilePath
	}

	return archive.TarWithOptions(dir, &archive.TarOptions{
		ExcludePatterns: trimBuildFilesFromExcludes(excludes, dockerfile),
	})
}

// ReadDockerignore reads the .dockerignore file in the context directory and
// returns the list of paths to exclude.
func ReadDockerignore(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, ".dockerignore"))
	switch {
	case os.IsNotExist(err):
		return nil, nil
	case err != nil:
		return nil, err
	}
	defer f.Close()

	patterns, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("error reading .dockerignore: %w", err)
	}
	return patterns, nil
}

// trimBuildFilesFromExcludes keeps the Dockerfile and .dockerignore in the
// context even when they match an exclude pattern, as the daemon needs them.
func trimBuildFilesFromExcludes(excludes []string, dockerfile string) []string {
	if keep, _ := patternmatcher.MatchesOrParentMatches(".dockerignore", excludes); keep {
		excludes = append(excludes, "!.dockerignore")
	}

	dockerfile = filepath.ToSlash(dockerfile)
	if keep, _ := patternmatcher.MatchesOrParentMatches(dockerfile, excludes); keep {
		excludes = append(excludes, "!"+dockerfile)
	}
	return excludes
}
