package docstore

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
)

// Serializer converts values of type T to and from their on-disk byte form.
//
// The engine calls Decode with a reader over the target file and Encode with
// a writer to the scratch file. The writer passed to Encode never exposes the
// underlying file handle: a serializer cannot close the file, the engine owns
// close timing.
//
// Decode must distinguish two failure kinds: return a [*CorruptionError]
// (directly or wrapped) when the content is unintelligible, and any other
// error for plain I/O trouble. The engine routes corruption to the
// [Options.CorruptionHandler] and propagates everything else.
type Serializer[T any] interface {
	// DefaultValue returns the value of a store whose file does not exist yet.
	DefaultValue() T

	// Decode reads one value from r.
	Decode(r io.Reader) (T, error)

	// Encode writes v to w. Implementations must not retain w.
	Encode(v T, w io.Writer) error
}

// JSONSerializer is a [Serializer] that stores values as JSON.
//
// Any [json.Unmarshal] failure over fully read bytes is classified as
// corruption; failures reading the bytes themselves are I/O errors.
type JSONSerializer[T any] struct {
	// Default is returned by DefaultValue when the file is absent.
	Default T

	// Indent pretty-prints the output with two-space indentation.
	Indent bool
}

// DefaultValue returns the configured default.
func (s JSONSerializer[T]) DefaultValue() T {
	return s.Default
}

// Decode reads and unmarshals one JSON value.
func (s JSONSerializer[T]) Decode(r io.Reader) (T, error) {
	var v T

	data, err := io.ReadAll(r)
	if err != nil {
		return v, fmt.Errorf("docstore: read content: %w", err)
	}

	unmarshalErr := json.Unmarshal(data, &v)
	if unmarshalErr != nil {
		return v, NewCorruptionError("invalid json", unmarshalErr)
	}

	return v, nil
}

// Encode marshals v and writes it to w.
func (s JSONSerializer[T]) Encode(v T, w io.Writer) error {
	var (
		data []byte
		err  error
	)

	if s.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return fmt.Errorf("docstore: marshal json: %w", err)
	}

	_, writeErr := w.Write(data)
	if writeErr != nil {
		return fmt.Errorf("docstore: write content: %w", writeErr)
	}

	return nil
}

// GobSerializer is a [Serializer] that stores values in [encoding/gob] form.
//
// Gob gives no way to tell a truncated stream from a read failure once
// decoding has started, so every decode failure is classified as corruption.
//
// Gob encodes map entries in nondeterministic order, which breaks the
// engine's fingerprinting. Values containing maps must use
// [JSONSerializer] (or another deterministic encoding) instead.
type GobSerializer[T any] struct {
	// Default is returned by DefaultValue when the file is absent.
	Default T
}

// DefaultValue returns the configured default.
func (s GobSerializer[T]) DefaultValue() T {
	return s.Default
}

// Decode reads one gob-encoded value.
func (s GobSerializer[T]) Decode(r io.Reader) (T, error) {
	var v T

	// Read everything first so a genuine I/O failure is reported as such
	// instead of being folded into a decode error.
	data, err := io.ReadAll(r)
	if err != nil {
		return v, fmt.Errorf("docstore: read content: %w", err)
	}

	decodeErr := gob.NewDecoder(bytes.NewReader(data)).Decode(&v)
	if decodeErr != nil {
		return v, NewCorruptionError("invalid gob", decodeErr)
	}

	return v, nil
}

// Encode writes v in gob form.
func (s GobSerializer[T]) Encode(v T, w io.Writer) error {
	err := gob.NewEncoder(w).Encode(v)
	if err != nil {
		return fmt.Errorf("docstore: encode gob: %w", err)
	}

	return nil
}

// Compile-time interface checks.
var (
	_ Serializer[int] = JSONSerializer[int]{}
	_ Serializer[int] = GobSerializer[int]{}
)
