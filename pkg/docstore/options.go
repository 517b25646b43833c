package docstore

import (
	"context"
	"log/slog"
	"os"
	"reflect"

	"github.com/calvinalkan/docstore/pkg/fsys"
)

// Default permissions for the target and scratch file.
const defaultFileMode os.FileMode = 0o644

// CorruptionHandler produces a replacement value when the serializer reports
// corrupt content. The replacement is persisted before any caller observes
// it. Returning an error abandons recovery and fails the triggering read.
//
// Called at most once per cache-miss cycle.
type CorruptionHandler[T any] func(err *CorruptionError) (T, error)

// Initializer is a one-shot bootstrap task that may rewrite the value before
// it becomes observable. Initializers run sequentially, in order, on the
// first successful read; after all of them succeed they never run again for
// the lifetime of the store. If any fails, the whole list re-runs on the next
// read attempt.
//
// The api is only valid during the initializer's own invocation.
type Initializer[T any] func(ctx context.Context, api InitializerAPI[T]) error

// InitializerAPI is the restricted update capability handed to an
// [Initializer]. Using it after initialization completes returns
// [ErrAlreadyInitialized].
type InitializerAPI[T any] interface {
	// UpdateData applies transform to the current value and persists the
	// result when it differs from the current value. Returns the
	// post-transform value.
	UpdateData(transform func(T) (T, error)) (T, error)
}

// Options configure opening a [Store].
type Options[T any] struct {
	// Path is the target file. Required.
	//
	// The engine writes through a sibling scratch file at Path + ".tmp",
	// and preserves unreadable content at Path + ".corrupt" before
	// corruption recovery overwrites it.
	Path string

	// Serializer encodes and decodes the stored value. Required.
	Serializer Serializer[T]

	// CorruptionHandler recovers from corrupt content. Optional; without
	// it, corruption fails the read like any other error.
	CorruptionHandler CorruptionHandler[T]

	// Initializers run once before the first value becomes observable.
	Initializers []Initializer[T]

	// Equal reports whether two values are the same, used to skip disk
	// writes for no-op transforms. Defaults to [reflect.DeepEqual].
	Equal func(a, b T) bool

	// FS is the filesystem backend. Defaults to [fsys.NewReal].
	FS fsys.FS

	// FileMode is the permission for created files. Defaults to 0644.
	FileMode os.FileMode

	// Logger receives debug/warn events (corruption recovery, slot
	// replacement). Optional; nil discards.
	Logger *slog.Logger
}

// withDefaults fills in unset optional fields.
func (o Options[T]) withDefaults() Options[T] {
	if o.Equal == nil {
		o.Equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}

	if o.FS == nil {
		o.FS = fsys.NewReal()
	}

	if o.FileMode == 0 {
		o.FileMode = defaultFileMode
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}

	return o
}
