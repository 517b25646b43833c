// Package docstore provides a typed, single-file, durable document store.
//
// A [Store] holds exactly one value of an application-chosen type, persists
// it to a regular file with an atomic write/rename protocol, serves a live
// stream of the current value to any number of watchers, and applies
// read-modify-write transforms with strict serialization.
//
// # Basic Usage
//
//	type Settings struct {
//	    Theme string `json:"theme"`
//	}
//
//	store, err := docstore.Open(docstore.Options[Settings]{
//	    Path:       "/var/lib/app/settings.json",
//	    Serializer: docstore.JSONSerializer[Settings]{},
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	// Read
//	settings, err := store.Get(ctx)
//
//	// Modify
//	settings, err = store.Update(ctx, func(s Settings) (Settings, error) {
//	    s.Theme = "dark"
//	    return s, nil
//	})
//
//	// Observe
//	for s, err := range store.Watch(ctx) {
//	    ...
//	}
//
// # Consistency
//
// Every read and update flows through a single message loop, so operations
// are sequentially consistent: for two operations observed in order, the
// first one's effects on the stream are visible before the second begins.
// Values must be treated as immutable once handed to or received from the
// store; in-place mutation is detected best-effort and reported as
// [ErrValueMutated].
//
// # Durability
//
// Writes go to a scratch file (target + ".tmp"), are fsynced, renamed over
// the target, and the parent directory is fsynced. The target file is never
// opened for writing, so a crash leaves either the old value or the new one,
// never a torn mix. A directory-sync failure is reported via [ErrDirSync]
// with the rename already effective.
//
// # Error Handling
//
// Failures reading the value terminate the affected watch sequences with the
// error and the next operation retries from scratch. Failures while
// persisting an update fail only that [Store.Update] call and leave the
// previous value observable. Corrupt content is routed to the
// [Options.CorruptionHandler] when one is configured and is otherwise
// reported like a read failure; see [CorruptionError].
//
// # Scope
//
// One Store owns one file within one process. Multi-process coordination,
// keyed storage, and schema migration are the caller's concern (the
// serializer is the extension point for the latter).
package docstore
