// Package pool provides pooled growable byte buffers for the writer's
// record and block assembly, adapted from mebo/internal/pool's
// ByteBufferPool. The writer pulls a buffer for each record it encodes
// instead of allocating a fresh slice each time.
package pool

import "sync"

const (
	// RecordBufferDefaultSize covers a typical single-record encode without
	// reallocating (record_id + data_bytes + inval_bytes for most layouts).
	RecordBufferDefaultSize = 1024
	// RecordBufferMaxThreshold discards buffers grown past this size
	// instead of returning them to the pool, bounding pool memory.
	RecordBufferMaxThreshold = 1024 * 256
)

// ByteBuffer is a growable byte buffer meant for reuse via ByteBufferPool.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer allocates a ByteBuffer with the given starting capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, defaultSize)}
}

// Bytes returns the buffer's current contents.
func (bb *ByteBuffer) Bytes() []byte { return bb.B }

// Reset empties the buffer while keeping its backing array.
func (bb *ByteBuffer) Reset() { bb.B = bb.B[:0] }

// Len returns the number of bytes currently held.
func (bb *ByteBuffer) Len() int { return len(bb.B) }

// Grow ensures the buffer can accept requiredBytes more bytes without a
// further reallocation, copying existing contents if it must resize.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	available := cap(bb.B) - len(bb.B)
	if available >= requiredBytes {
		return
	}

	growBy := RecordBufferDefaultSize
	if cap(bb.B) > 4*RecordBufferDefaultSize {
		growBy = cap(bb.B) / 4
	}
	if growBy < requiredBytes {
		growBy = requiredBytes
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// ExtendOrGrow extends the buffer's length by n bytes, growing it first if
// needed. The newly exposed bytes are whatever the backing array held
// (callers overwrite them immediately).
func (bb *ByteBuffer) ExtendOrGrow(n int) {
	bb.Grow(n)
	start := len(bb.B)
	bb.B = bb.B[:start+n]
}

// Write appends data to the buffer, growing it as needed.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.Grow(len(data))
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// Pool is a sync.Pool of ByteBuffers bounded by a max retained size.
type Pool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewPool creates a Pool whose buffers start at defaultSize and are
// discarded (not pooled) once grown past maxThreshold.
func NewPool(defaultSize, maxThreshold int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any { return NewByteBuffer(defaultSize) },
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a buffer from the pool, creating one if empty.
func (p *Pool) Get() *ByteBuffer {
	bb, _ := p.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a buffer to the pool, discarding it if it grew past the
// pool's max threshold.
func (p *Pool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}
	if p.maxThreshold > 0 && cap(bb.B) > p.maxThreshold {
		return
	}
	bb.Reset()
	p.pool.Put(bb)
}

var recordPool = NewPool(RecordBufferDefaultSize, RecordBufferMaxThreshold)

// GetRecordBuffer retrieves a buffer from the default record-assembly pool.
func GetRecordBuffer() *ByteBuffer { return recordPool.Get() }

// PutRecordBuffer returns a buffer to the default record-assembly pool.
func PutRecordBuffer(bb *ByteBuffer) { recordPool.Put(bb) }
