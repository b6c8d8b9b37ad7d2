package writer

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/mdf4kit/mdf4/errs"
)

// Backend is the random-access file I/O collaborator the writer is built
// against (spec.md §6 "File I/O"): read at an absolute offset, append at
// the current end of file, patch one previously-written 64-bit field in
// place, flush, and report the current length. The writer never seeks
// backward to overwrite anything wider than 8 bytes; every block it has
// already appended keeps its address for the life of the file.
type Backend interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAtEnd(p []byte) (int64, error)
	PatchUint64(off int64, v uint64) error
	Flush() error
	Len() int64
}

// MemBackend is an in-memory Backend, used by tests and by callers that
// want to build a complete file in memory before handing its bytes to
// some other transport.
type MemBackend struct {
	buf []byte
}

// NewMemBackend creates an empty in-memory backend.
func NewMemBackend() *MemBackend { return &MemBackend{} }

func (b *MemBackend) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b.buf)) {
		return 0, errs.ErrUnexpectedEOF
	}
	n := copy(p, b.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (b *MemBackend) WriteAtEnd(p []byte) (int64, error) {
	off := int64(len(b.buf))
	b.buf = append(b.buf, p...)

	return off, nil
}

func (b *MemBackend) PatchUint64(off int64, v uint64) error {
	if off < 0 || off+8 > int64(len(b.buf)) {
		return errs.ErrUnexpectedEOF
	}
	binary.LittleEndian.PutUint64(b.buf[off:off+8], v)

	return nil
}

func (b *MemBackend) Flush() error { return nil }

func (b *MemBackend) Len() int64 { return int64(len(b.buf)) }

// Bytes returns the backend's full contents. The caller must not retain it
// across further writes.
func (b *MemBackend) Bytes() []byte { return b.buf }

// Truncate discards everything past n bytes, modeling a crash that loses
// whatever the environment had not yet synced (spec.md §8 scenario S6).
func (b *MemBackend) Truncate(n int64) {
	if n < int64(len(b.buf)) {
		b.buf = b.buf[:n]
	}
}

// FileBackend is an os.File-backed Backend, grounded on scigolib-hdf5's
// file.go/file_write.go Create/Open pair: a single random-access handle
// tracking its own end-of-file offset instead of repeatedly stat-ing.
type FileBackend struct {
	f    *os.File
	size int64
}

// CreateFileBackend truncates (or creates) path and returns a backend
// positioned at offset zero.
func CreateFileBackend(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	return &FileBackend{f: f}, nil
}

// OpenFileBackend opens an existing file for append/patch, positioned at
// its current length (spec.md §4.4 "append").
func OpenFileBackend(path string) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &FileBackend{f: f, size: fi.Size()}, nil
}

func (b *FileBackend) ReadAt(p []byte, off int64) (int, error) {
	return b.f.ReadAt(p, off)
}

func (b *FileBackend) WriteAtEnd(p []byte) (int64, error) {
	off := b.size
	n, err := b.f.WriteAt(p, off)
	b.size += int64(n)

	return off, err
}

func (b *FileBackend) PatchUint64(off int64, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := b.f.WriteAt(buf[:], off)

	return err
}

// Flush syncs the file to stable storage. The writer itself never calls
// this implicitly outside of an explicit Flush()/Finalize() call
// (spec.md §7 "the core does not call fsync; wrappers may").
func (b *FileBackend) Flush() error { return b.f.Sync() }

func (b *FileBackend) Len() int64 { return b.size }

// Close releases the underlying file handle.
func (b *FileBackend) Close() error { return b.f.Close() }
