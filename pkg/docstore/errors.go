package docstore

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by docstore operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, docstore.ErrClosed) {
//	    // store is shut down, stop retrying
//	}
var (
	// ErrClosed indicates the [Store] has been closed.
	//
	// Returned by [Store.Update] and [Store.Watch] after [Store.Close],
	// and by [Store.Close] itself when called twice.
	ErrClosed = errors.New("docstore: closed")

	// ErrValueMutated indicates the value held by the in-memory cache no
	// longer matches the fingerprint taken when it was cached. Some caller
	// mutated a value after handing it to, or receiving it from, the store.
	//
	// This is a programming error. Values must be treated as immutable;
	// copy before modifying.
	ErrValueMutated = errors.New("docstore: cached value mutated")

	// ErrAlreadyInitialized indicates an [InitializerAPI] was used after
	// initialization completed. Initializer callbacks must not retain the
	// API beyond their own invocation.
	//
	// This is a programming error.
	ErrAlreadyInitialized = errors.New("docstore: initializer api used after initialization")

	// ErrRenameConflict indicates the scratch-to-target rename failed.
	//
	// The most common cause is a second Store (or another process) holding
	// the target open or racing writes to the same path. Running multiple
	// stores against one file is unsupported.
	ErrRenameConflict = errors.New("docstore: rename scratch file over target failed (multiple stores on one file?)")

	// ErrDirSync indicates the parent directory could not be synced after
	// the rename. The new value is in place but its durability across a
	// crash is not guaranteed.
	ErrDirSync = errors.New("docstore: dir sync")
)

// CorruptionError reports that a [Serializer] could not decode the on-disk
// content. It is distinct from plain I/O failure: the bytes were readable
// but unintelligible.
//
// When [Options.CorruptionHandler] is set, the engine recovers from a
// CorruptionError internally; callers see it only if persisting the
// handler's replacement fails, joined with that write error. Without a
// handler it propagates like a read failure.
type CorruptionError struct {
	// Cause is the underlying decode error, if any. May be nil.
	Cause error
	// Msg describes what was wrong with the content.
	Msg string
}

// NewCorruptionError returns a CorruptionError wrapping cause.
func NewCorruptionError(msg string, cause error) *CorruptionError {
	return &CorruptionError{Msg: msg, Cause: cause}
}

// Error implements the error interface.
func (e *CorruptionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("docstore: corrupt content: %s", e.Msg)
	}

	return fmt.Sprintf("docstore: corrupt content: %s: %v", e.Msg, e.Cause)
}

// Unwrap returns the underlying decode error.
func (e *CorruptionError) Unwrap() error {
	return e.Cause
}

// IsCorruption reports whether err is (or wraps) a [CorruptionError].
func IsCorruption(err error) bool {
	var c *CorruptionError

	return errors.As(err, &c)
}
