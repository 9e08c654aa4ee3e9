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
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/pkg/jsonmessage"
)

// ChunkKind tells which field of an engine message a Chunk was decoded from.
type ChunkKind int

const (
	ChunkNone ChunkKind = iota
	// ChunkProgress is build output, sent in the "stream" field.
	ChunkProgress
	// ChunkStatus is a push or pull status line.
	ChunkStatus
	// ChunkError carries the engine's error message.
	ChunkError
	// ChunkAux carries auxiliary JSON such as the built image ID or pushed digest.
	ChunkAux
)

// Chunk is one decoded message from a build or push stream.
type Chunk struct {
	Kind ChunkKind
	Text string
	// Status is the status line sent alongside an error, if any.
	Status string
}

// StreamError is an error reported by the engine inside a message stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return e.Message
}

// DecodeChunk turns an engine message into a Chunk. An error wins over any
// other field present in the same message; only its status line is kept.
func DecodeChunk(msg jsonmessage.JSONMessage) Chunk {
	switch {
	case msg.ErrorMessage != "":
		return Chunk{Kind: ChunkError, Text: msg.ErrorMessage, Status: msg.Status}
	case msg.Error != nil:
		return Chunk{Kind: ChunkError, Text: msg.Error.Message, Status: msg.Status}
	case msg.Stream != "":
		return Chunk{Kind: ChunkProgress, Text: msg.Stream}
	case msg.Status != "":
		return Chunk{Kind: ChunkStatus, Text: msg.Status}
	case msg.Aux != nil:
		return Chunk{Kind: ChunkAux, Text: string(*msg.Aux)}
	}
	return Chunk{Kind: ChunkNone}
}

// consumeStream decodes src message by message and hands every non-empty
// chunk to handle. It stops at the first error returned by handle.
func consumeStream(src io.Reader, handle func(Chunk) error) error {
	dec := json.NewDecoder(src)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading engine output: %w", err)
		}

		chunk := DecodeChunk(msg)
		if chunk.Kind == ChunkNone {
			continue
		}
		if err := handle(chunk); err != nil {
			return err
		}
	}
}
