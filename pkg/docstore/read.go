package docstore

import (
	"errors"
	"fmt"
	"os"
)

// readFile decodes the current value from the target file.
//
//   - absent file: the serializer's default value
//   - unreadable file: the I/O error
//   - undecodable content: the serializer's [*CorruptionError], untouched,
//     so readOrRecover can route it to the corruption handler
func (s *Store[T]) readFile() (T, error) {
	var zero T

	f, err := s.fs.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s.serializer.DefaultValue(), nil
		}

		return zero, fmt.Errorf("docstore: open %q: %w", s.path, err)
	}

	defer func() { _ = f.Close() }()

	v, decodeErr := s.serializer.Decode(f)
	if decodeErr != nil {
		var corrupt *CorruptionError
		if errors.As(decodeErr, &corrupt) {
			return zero, decodeErr
		}

		return zero, fmt.Errorf("docstore: read %q: %w", s.path, decodeErr)
	}

	return v, nil
}

// readOrRecover wraps readFile with corruption recovery.
//
// On corruption with a handler configured: snapshot the unreadable bytes
// (best-effort), ask the handler for a replacement, persist it, and return
// it. If persisting the replacement fails, the original corruption error is
// surfaced with the write error attached.
func (s *Store[T]) readOrRecover() (T, error) {
	var zero T

	v, err := s.readFile()
	if err == nil {
		return v, nil
	}

	var corrupt *CorruptionError
	if !errors.As(err, &corrupt) || s.onCorruption == nil {
		return zero, err
	}

	s.log.Warn("recovering from corrupt content", "path", s.path, "cause", corrupt.Cause)

	s.snapshotCorrupt()

	replacement, handlerErr := s.onCorruption(corrupt)
	if handlerErr != nil {
		return zero, fmt.Errorf("docstore: corruption handler: %w", handlerErr)
	}

	writeErr := s.writeFile(replacement)
	if writeErr != nil {
		return zero, errors.Join(err, writeErr)
	}

	return replacement, nil
}

// snapshotCorrupt preserves the unreadable target at path + ".corrupt" so
// operators can inspect what was lost. Best-effort: recovery proceeds no
// matter what happens here.
func (s *Store[T]) snapshotCorrupt() {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		s.log.Warn("cannot snapshot corrupt file", "path", s.path, "error", err)

		return
	}

	snapshotPath := s.path + corruptSuffix

	writeErr := s.fs.WriteFileAtomic(snapshotPath, data)
	if writeErr != nil {
		s.log.Warn("cannot snapshot corrupt file", "path", snapshotPath, "error", writeErr)

		return
	}

	s.log.Debug("preserved corrupt content", "path", snapshotPath, "bytes", len(data))
}
