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

package testutil

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/errdefs"
)

// FakeAPIClient is an in-memory Docker engine. It records every call made
// against it and answers with JSON message streams shaped like the daemon's.
type FakeAPIClient struct {
	TagToImageID map[string]string

	// BuildOutput overrides the build stream for a tag.
	BuildOutput map[string]string
	// PushOutput overrides the push stream for a reference.
	PushOutput map[string]string

	ErrLogin        bool
	ErrImageBuild   bool
	ErrImageInspect bool
	ErrImagePush    bool
	IdentityToken   string

	Logins        []registry.AuthConfig
	Built         []types.ImageBuildOptions
	BuildContexts [][]string
	Tagged        []string
	Inspected     []string
	Pushed        []string
	PushAuth      []string
	Closed        bool

	nextImageID int
}

func (f *FakeAPIClient) Add(tag, imageID string) *FakeAPIClient {
	if f.TagToImageID == nil {
		f.TagToImageID = make(map[string]string)
	}

	f.TagToImageID[imageID] = imageID
	f.TagToImageID[tag] = imageID
	if !strings.Contains(tag, ":") {
		f.TagToImageID[tag+":latest"] = imageID
	}
	return f
}

func (f *FakeAPIClient) RegistryLogin(_ context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error) {
	f.Logins = append(f.Logins, auth)
	if f.ErrLogin {
		return registry.AuthenticateOKBody{}, errors.New("unauthorized: incorrect username or password")
	}

	return registry.AuthenticateOKBody{
		Status:        "Login Succeeded",
		IdentityToken: f.IdentityToken,
	}, nil
}

func (f *FakeAPIClient) ImageBuild(_ context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	if f.ErrImageBuild {
		return types.ImageBuildResponse{}, errors.New("Cannot connect to the Docker daemon")
	}

	files, err := readTarNames(buildContext)
	if err != nil {
		return types.ImageBuildResponse{}, err
	}
	f.BuildContexts = append(f.BuildContexts, files)
	f.Built = append(f.Built, options)

	f.nextImageID++
	imageID := fmt.Sprintf("sha256:%d", f.nextImageID)

	var tag string
	if len(options.Tags) > 0 {
		tag = options.Tags[0]
	}

	output, found := f.BuildOutput[tag]
	if !found {
		output = fmt.Sprintf(`{"stream":"Step 1/1 : FROM alpine\n"}
{"aux":{"ID":"%s"}}
{"stream":"Successfully built %s\n"}
{"stream":"Successfully tagged %s\n"}
`, imageID, imageID, tag)
	}

	if !strings.Contains(output, `"error"`) {
		for _, t := range options.Tags {
			f.Add(t, imageID)
		}
	}

	return types.ImageBuildResponse{
		Body: io.NopCloser(strings.NewReader(output)),
	}, nil
}

func (f *FakeAPIClient) ImageTag(_ context.Context, source, target string) error {
	imageID, ok := f.TagToImageID[source]
	if !ok {
		return errdefs.NotFound(fmt.Errorf("No such image: %s", source))
	}

	f.Tagged = append(f.Tagged, target)
	f.Add(target, imageID)
	return nil
}

func (f *FakeAPIClient) ImageInspectWithRaw(_ context.Context, ref string) (types.ImageInspect, []byte, error) {
	f.Inspected = append(f.Inspected, ref)
	if f.ErrImageInspect {
		return types.ImageInspect{}, nil, errors.New("error during connect")
	}

	imageID, found := f.TagToImageID[ref]
	if !found {
		return types.ImageInspect{}, nil, errdefs.NotFound(fmt.Errorf("No such image: %s", ref))
	}

	rawConfig := []byte(fmt.Sprintf(`{"Id":"%s"}`, imageID))
	return types.ImageInspect{ID: imageID, RepoTags: []string{ref}}, rawConfig, nil
}

func (f *FakeAPIClient) ImagePush(_ context.Context, ref string, options image.PushOptions) (io.ReadCloser, error) {
	if f.ErrImagePush {
		return nil, errors.New("Cannot connect to the Docker daemon")
	}
	f.Pushed = append(f.Pushed, ref)
	f.PushAuth = append(f.PushAuth, options.RegistryAuth)

	output, found := f.PushOutput[ref]
	if !found {
		digest := sha256.Sum256([]byte(f.TagToImageID[ref]))
		tag := ref[strings.LastIndex(ref, ":")+1:]
		output = fmt.Sprintf(`{"status":"The push refers to repository [docker.io/%s]"}
{"status":"Preparing","progressDetail":{},"id":"d1b2c3"}
{"status":"Pushed","progressDetail":{},"id":"d1b2c3"}
{"status":"%s: digest: sha256:%x size: 528"}
{"progressDetail":{},"aux":{"Tag":"%s","Digest":"sha256:%x","Size":528}}
`, strings.TrimSuffix(ref, ":"+tag), tag, digest, tag, digest)
	}

	return io.NopCloser(strings.NewReader(output)), nil
}

func (f *FakeAPIClient) Close() error {
	f.Closed = true
	return nil
}

func readTarNames(r io.Reader) ([]string, error) {
	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading build context: %w", err)
		}
		names = append(names, hdr.Name)
	}
}
