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

package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"

	"github.com/docker/compose-release/pkg/release/constants"
	"github.com/docker/compose-release/pkg/release/output/log"
)

// Repository is the project checkout a release is cut from.
type Repository struct {
	root string
	repo *git.Repository
}

// Open opens the git repository containing path, looking in parent
// directories when path itself is not the repository root.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", path, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree of %s: %w", path, err)
	}

	return &Repository{
		root: wt.Filesystem.Root(),
		repo: repo,
	}, nil
}

// Root is the top level directory of the working tree.
func (r *Repository) Root() string {
	return r.root
}

// HeadSHA returns the abbreviated hash of the commit HEAD points to.
func (r *Repository) HeadSHA() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}

	return head.Hash().String()[:constants.GitSHALength], nil
}

// WriteGitSHA records the abbreviated HEAD hash in the source tree, where the
// image build picks it up, and returns it.
func (r *Repository) WriteGitSHA() (string, error) {
	sha, err := r.HeadSHA()
	if err != nil {
		return "", err
	}

	path := filepath.Join(r.root, filepath.FromSlash(constants.GitSHAFile))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(sha), 0o644); err != nil {
		return "", fmt.Errorf("writing git sha: %w", err)
	}

	log.Entry(context.TODO()).Debugf("Wrote git sha %s to %s", sha, path)
	return sha, nil
}
