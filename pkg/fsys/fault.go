package fsys

import (
	"errors"
	"os"
	"sync"
)

// Op identifies an interceptable filesystem operation on [Fault].
type Op string

// Operations that [Fault] can intercept.
const (
	OpOpen            Op = "open"
	OpOpenFile        Op = "openfile"
	OpRead            Op = "read"
	OpWrite           Op = "write"
	OpSync            Op = "sync"
	OpClose           Op = "close"
	OpReadFile        Op = "readfile"
	OpWriteFileAtomic Op = "writefileatomic"
	OpReadDir         Op = "readdir"
	OpMkdirAll        Op = "mkdirall"
	OpStat            Op = "stat"
	OpExists          Op = "exists"
	OpRemove          Op = "remove"
	OpRename          Op = "rename"
)

// InjectedError marks an error as intentionally injected by [Fault].
//
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Err error
}

// Error returns the underlying error's message.
func (e *InjectedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by
// [Fault]. Returns false if err is nil.
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Fault wraps an [FS] and injects scripted failures for tests.
//
// Failures are deterministic, not probabilistic: tests queue them per
// operation with [Fault.FailNext] (one-shot, FIFO) or pin them with
// [Fault.SetSticky] (every call until cleared). Fault also counts every
// [Op] it intercepts so tests can assert that a code path did or did not touch
// the filesystem.
//
// All methods are safe for concurrent use.
type Fault struct {
	inner FS

	mu     sync.Mutex
	next   map[Op][]error
	sticky map[Op]error
	counts map[Op]int
}

// NewFault returns a [Fault] wrapping inner. Panics if inner is nil.
func NewFault(inner FS) *Fault {
	if inner == nil {
		panic("fsys: inner FS is nil")
	}

	return &Fault{
		inner:  inner,
		next:   make(map[Op][]error),
		sticky: make(map[Op]error),
		counts: make(map[Op]int),
	}
}

// FailNext queues a one-shot failure for the next call of op.
// Multiple queued failures fire in FIFO order.
func (f *Fault) FailNext(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next[op] = append(f.next[op], err)
}

// SetSticky makes every call of op fail with err until [Fault.ClearSticky].
// One-shot failures queued with [Fault.FailNext] fire first.
func (f *Fault) SetSticky(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sticky[op] = err
}

// ClearSticky removes a sticky failure for op.
func (f *Fault) ClearSticky(op Op) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.sticky, op)
}

// Count returns how many times op has been attempted (including calls that
// failed, injected or real).
func (f *Fault) Count(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.counts[op]
}

// check records the attempt and returns the injected error for op, if any.
func (f *Fault) check(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.counts[op]++

	if queued := f.next[op]; len(queued) > 0 {
		err := queued[0]
		f.next[op] = queued[1:]

		return &InjectedError{Err: err}
	}

	if err, ok := f.sticky[op]; ok {
		return &InjectedError{Err: err}
	}

	return nil
}

func (f *Fault) Open(path string) (File, error) {
	if err := f.check(OpOpen); err != nil {
		return nil, err
	}

	file, err := f.inner.Open(path)
	if err != nil {
		return nil, err
	}

	return &faultFile{fault: f, inner: file}, nil
}

func (f *Fault) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.check(OpOpenFile); err != nil {
		return nil, err
	}

	file, err := f.inner.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &faultFile{fault: f, inner: file}, nil
}

func (f *Fault) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpReadFile); err != nil {
		return nil, err
	}

	return f.inner.ReadFile(path)
}

func (f *Fault) WriteFileAtomic(path string, data []byte) error {
	if err := f.check(OpWriteFileAtomic); err != nil {
		return err
	}

	return f.inner.WriteFileAtomic(path, data)
}

func (f *Fault) ReadDir(path string) ([]os.DirEntry, error) {
	if err := f.check(OpReadDir); err != nil {
		return nil, err
	}

	return f.inner.ReadDir(path)
}

func (f *Fault) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdirAll); err != nil {
		return err
	}

	return f.inner.MkdirAll(path, perm)
}

func (f *Fault) Stat(path string) (os.FileInfo, error) {
	if err := f.check(OpStat); err != nil {
		return nil, err
	}

	return f.inner.Stat(path)
}

func (f *Fault) Exists(path string) (bool, error) {
	if err := f.check(OpExists); err != nil {
		return false, err
	}

	return f.inner.Exists(path)
}

func (f *Fault) Remove(path string) error {
	if err := f.check(OpRemove); err != nil {
		return err
	}

	return f.inner.Remove(path)
}

func (f *Fault) Rename(oldpath, newpath string) error {
	if err := f.check(OpRename); err != nil {
		return err
	}

	return f.inner.Rename(oldpath, newpath)
}

// faultFile intercepts per-handle operations for [Fault].
type faultFile struct {
	fault *Fault
	inner File
}

func (f *faultFile) Read(p []byte) (int, error) {
	if err := f.fault.check(OpRead); err != nil {
		return 0, err
	}

	return f.inner.Read(p)
}

func (f *faultFile) Write(p []byte) (int, error) {
	if err := f.fault.check(OpWrite); err != nil {
		return 0, err
	}

	return f.inner.Write(p)
}

func (f *faultFile) Sync() error {
	if err := f.fault.check(OpSync); err != nil {
		return err
	}

	return f.inner.Sync()
}

func (f *faultFile) Close() error {
	if err := f.fault.check(OpClose); err != nil {
		// The underlying handle must still be released, otherwise a test
		// run leaks file descriptors.
		_ = f.inner.Close()

		return err
	}

	return f.inner.Close()
}

func (f *faultFile) Stat() (os.FileInfo, error) {
	return f.inner.Stat()
}

// Compile-time interface checks.
var (
	_ FS   = (*Fault)(nil)
	_ File = (*faultFile)(nil)
)
