package docstore

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// entry is the unit the cache and the broadcast slot hold: a value plus the
// fingerprint taken the moment the entry was created.
type entry[T any] struct {
	value       T
	fingerprint uint64
}

// fingerprint hashes v by streaming the serializer's encoding of it through
// xxhash. Deterministic for a given serializer, and cheap enough to recompute
// on every cache consultation.
func (s *Store[T]) fingerprint(v T) (uint64, error) {
	digest := xxhash.New()

	err := s.serializer.Encode(v, digest)
	if err != nil {
		return 0, fmt.Errorf("docstore: fingerprint value: %w", err)
	}

	return digest.Sum64(), nil
}

// newEntry fingerprints v and pairs them up.
func (s *Store[T]) newEntry(v T) (entry[T], error) {
	fp, err := s.fingerprint(v)
	if err != nil {
		return entry[T]{}, err
	}

	return entry[T]{value: v, fingerprint: fp}, nil
}

// checkUnmodified recomputes e's fingerprint and compares it to the stored
// one. A mismatch means some caller mutated the value after the engine cached
// it; that invalidates every assumption the cache makes, so it is reported as
// [ErrValueMutated] rather than papered over.
//
// Best-effort: a mutation that preserves the hash goes undetected.
func (s *Store[T]) checkUnmodified(e entry[T]) error {
	fp, err := s.fingerprint(e.value)
	if err != nil {
		return err
	}

	if fp != e.fingerprint {
		return fmt.Errorf("%w: fingerprint %#x, expected %#x", ErrValueMutated, fp, e.fingerprint)
	}

	return nil
}
