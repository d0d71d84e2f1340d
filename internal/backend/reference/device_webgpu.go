//go:build windows

package reference

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"k8s.io/klog/v2"
)

// newDeviceMemory prefers a WebGPU adapter and falls back to private
// memory when the native library or an adapter is missing.
func newDeviceMemory() deviceMemory {
	m, err := newGPUMemory()
	if err != nil {
		klog.Background().WithName("reference").V(2).Info("webgpu unavailable, using private device memory", "err", err)
		return newPrivateMemory()
	}
	return m
}

type gpuMemory struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	next     atomic.Uint64
	mu       sync.Mutex
}

func newGPUMemory() (mem *gpuMemory, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			mem = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", err)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}
	return &gpuMemory{instance: instance, adapter: adapter, device: device, queue: queue}, nil
}

func (m *gpuMemory) Name() string { return "webgpu" }

// align rounds up to the 4-byte copy granularity.
func align(size int) uint64 { return (uint64(size) + 3) &^ 3 }

func (m *gpuMemory) Alloc(size int) (deviceBuffer, error) {
	b := &gpuBuffer{mem: m, id: m.next.Add(1), size: size}
	if err := b.Write(make([]byte, size)); err != nil {
		return nil, err
	}
	return b, nil
}

func (m *gpuMemory) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.Release()
	m.device.Release()
	m.adapter.Release()
	m.instance.Release()
}

type gpuBuffer struct {
	mem    *gpuMemory
	id     uint64
	size   int
	buffer *wgpu.Buffer
}

func (b *gpuBuffer) ID() uint64 { return b.id }
func (b *gpuBuffer) Size() int  { return b.size }

// Write replaces the buffer with one mapped at creation and filled from src.
func (b *gpuBuffer) Write(src []byte) error {
	if len(src) != b.size {
		return fmt.Errorf("webgpu: write %d bytes into %d byte buffer", len(src), b.size)
	}
	b.mem.mu.Lock()
	defer b.mem.mu.Unlock()

	size := align(b.size)
	buffer := b.mem.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mapped, src)
	buffer.Unmap()

	if b.buffer != nil {
		b.buffer.Release()
	}
	b.buffer = buffer
	return nil
}

// Read copies the buffer through a staging buffer, since storage buffers
// can't be mapped directly.
func (b *gpuBuffer) Read(dst []byte) error {
	if len(dst) != b.size {
		return fmt.Errorf("webgpu: read %d byte buffer into %d bytes", b.size, len(dst))
	}
	b.mem.mu.Lock()
	defer b.mem.mu.Unlock()

	size := align(b.size)
	staging := b.mem.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := b.mem.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(b.buffer, 0, staging, 0, size)
	cmd := encoder.Finish(nil)
	b.mem.queue.Submit(cmd)

	if err := staging.MapAsync(b.mem.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	copy(dst, unsafe.Slice((*byte)(mappedPtr), size))
	staging.Unmap()
	return nil
}

func (b *gpuBuffer) Release() {
	b.mem.mu.Lock()
	defer b.mem.mu.Unlock()
	if b.buffer != nil {
		b.buffer.Release()
		b.buffer = nil
	}
}
