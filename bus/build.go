package bus

import "github.com/mdf4kit/mdf4/writer"

// BuildFunc emits a logger's channel groups and records into an
// initialized writer. Each bus codec supplies its own.
type BuildFunc func(w *writer.Writer) error

// BuildMem runs build against an in-memory backend and returns the
// finalized file bytes, the shared Finalize() path of every RawLogger
// (spec.md §4.7 "finalize() → bytes").
func BuildMem(startTimeNs uint64, build BuildFunc) ([]byte, error) {
	backend := writer.NewMemBackend()
	if err := BuildTo(backend, startTimeNs, build); err != nil {
		return nil, err
	}

	return backend.Bytes(), nil
}

// BuildTo runs build against a caller-supplied backend, the file-backed
// variant that exercises the writer's flush path: pass
// writer.WithFlushPolicy to commit records incrementally during the build
// (spec.md §4.7 "file-backed variants").
func BuildTo(backend writer.Backend, startTimeNs uint64, build BuildFunc, opts ...writer.Option) error {
	w, err := writer.New(backend, opts...)
	if err != nil {
		return err
	}
	if err := w.InitFile(startTimeNs); err != nil {
		return err
	}
	if err := build(w); err != nil {
		return err
	}

	return w.Finalize()
}
