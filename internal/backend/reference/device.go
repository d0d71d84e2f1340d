package reference

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// deviceMemory allocates buffers that are not host addressable.
type deviceMemory interface {
	Name() string
	Alloc(size int) (deviceBuffer, error)
	Release()
}

// deviceBuffer is one device allocation. Reads and writes cover the whole
// buffer.
type deviceBuffer interface {
	ID() uint64
	Size() int
	Write(src []byte) error
	Read(dst []byte) error
	Release()
}

// privateMemory keeps device buffers in memory no caller can reach except
// through Read and Write.
type privateMemory struct {
	next atomic.Uint64
}

func newPrivateMemory() *privateMemory { return &privateMemory{} }

func (m *privateMemory) Name() string { return "private" }

func (m *privateMemory) Alloc(size int) (deviceBuffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("private: negative size %d", size)
	}
	return &privateBuffer{id: m.next.Add(1), data: make([]byte, size)}, nil
}

func (m *privateMemory) Release() {}

type privateBuffer struct {
	mu   sync.Mutex
	id   uint64
	data []byte
}

func (b *privateBuffer) ID() uint64 { return b.id }
func (b *privateBuffer) Size() int  { return len(b.data) }

func (b *privateBuffer) Write(src []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(src) != len(b.data) {
		return fmt.Errorf("private: write %d bytes into %d byte buffer", len(src), len(b.data))
	}
	copy(b.data, src)
	return nil
}

func (b *privateBuffer) Read(dst []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(dst) != len(b.data) {
		return fmt.Errorf("private: read %d byte buffer into %d bytes", len(b.data), len(dst))
	}
	copy(dst, b.data)
	return nil
}

func (b *privateBuffer) Release() {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
}
