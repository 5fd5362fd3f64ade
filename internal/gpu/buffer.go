package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/nbody"
	"github.com/gogpu/wgpu/hal"
)

// Buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("gpu: buffer has been destroyed")

	// ErrInvalidBufferSize is returned when buffer size is invalid.
	ErrInvalidBufferSize = errors.New("gpu: invalid buffer size")

	// ErrBufferAlreadyMapped is returned when attempting to map an already mapped buffer.
	ErrBufferAlreadyMapped = errors.New("gpu: buffer is already mapped or mapping is pending")

	// ErrBufferNotMapped is returned when attempting to access unmapped buffer data.
	ErrBufferNotMapped = errors.New("gpu: buffer is not mapped")

	// ErrBufferMapPending is returned when accessing a buffer with pending map operation.
	ErrBufferMapPending = errors.New("gpu: buffer mapping is pending")

	// ErrInvalidMapMode is returned when mapping with an invalid mode.
	ErrInvalidMapMode = errors.New("gpu: invalid map mode")

	// ErrInvalidMapRange is returned when the map range is out of bounds.
	ErrInvalidMapRange = errors.New("gpu: map range out of bounds")

	// ErrMapUsageMismatch is returned when mapping mode doesn't match buffer usage.
	ErrMapUsageMismatch = errors.New("gpu: map mode does not match buffer usage flags")

	// ErrMappingFailed is returned when buffer mapping fails.
	ErrMappingFailed = errors.New("gpu: buffer mapping failed")

	// ErrCallbackNil is returned when MapAsync is called with nil callback.
	ErrCallbackNil = errors.New("gpu: map callback is nil")
)

// BufferMapState represents the mapping state of a buffer.
type BufferMapState int

const (
	// BufferMapStateUnmapped means the buffer is not mapped.
	BufferMapStateUnmapped BufferMapState = iota
	// BufferMapStatePending means a map operation is pending.
	BufferMapStatePending
	// BufferMapStateMapped means the buffer is mapped.
	BufferMapStateMapped
)

// String returns the string representation of BufferMapState.
func (s BufferMapState) String() string {
	switch s {
	case BufferMapStateUnmapped:
		return "Unmapped"
	case BufferMapStatePending:
		return "Pending"
	case BufferMapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// BufferMapAsyncStatus represents the result of an async map operation.
type BufferMapAsyncStatus int

const (
	// BufferMapAsyncStatusSuccess indicates mapping completed successfully.
	BufferMapAsyncStatusSuccess BufferMapAsyncStatus = iota
	// BufferMapAsyncStatusValidationError indicates a validation error.
	BufferMapAsyncStatusValidationError
	// BufferMapAsyncStatusUnknown indicates the device failed to produce the data.
	BufferMapAsyncStatusUnknown
	// BufferMapAsyncStatusDestroyedBeforeCallback indicates buffer was destroyed.
	BufferMapAsyncStatusDestroyedBeforeCallback
	// BufferMapAsyncStatusUnmappedBeforeCallback indicates buffer was unmapped.
	BufferMapAsyncStatusUnmappedBeforeCallback
	// BufferMapAsyncStatusMappingAlreadyPending indicates another map is pending.
	BufferMapAsyncStatusMappingAlreadyPending
	// BufferMapAsyncStatusOffsetOutOfRange indicates offset is out of range.
	BufferMapAsyncStatusOffsetOutOfRange
	// BufferMapAsyncStatusSizeOutOfRange indicates size is out of range.
	BufferMapAsyncStatusSizeOutOfRange
)

// String returns the string representation of BufferMapAsyncStatus.
func (s BufferMapAsyncStatus) String() string {
	switch s {
	case BufferMapAsyncStatusSuccess:
		return "Success"
	case BufferMapAsyncStatusValidationError:
		return "ValidationError"
	case BufferMapAsyncStatusUnknown:
		return "Unknown"
	case BufferMapAsyncStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case BufferMapAsyncStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	case BufferMapAsyncStatusMappingAlreadyPending:
		return "MappingAlreadyPending"
	case BufferMapAsyncStatusOffsetOutOfRange:
		return "OffsetOutOfRange"
	case BufferMapAsyncStatusSizeOutOfRange:
		return "SizeOutOfRange"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Buffer is a host-mappable GPU buffer.
//
// Mapping follows the WebGPU model: MapAsync moves the buffer to Pending,
// PollMapAsync resolves the request and invokes the callback exactly once,
// GetMappedRange exposes the data while Mapped, and Unmap releases it.
// A buffer must be unmapped before it can be mapped again.
//
// Mappings are read-only and are served by reading the buffer back
// through the queue.
//
// Buffer is safe for concurrent use. Callbacks run without the lock held.
type Buffer struct {
	mu sync.RWMutex

	halBuffer hal.Buffer
	device    hal.Device
	queue     hal.Queue

	label string
	size  uint64
	usage gputypes.BufferUsage

	mapState    BufferMapState
	mapOffset   uint64
	mapSize     uint64
	mappedData  []byte
	mapCallback func(BufferMapAsyncStatus)

	destroyed bool
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used.
	Usage gputypes.BufferUsage
}

// CreateBuffer creates a buffer on device. Sizes are rounded up to the
// 4-byte copy alignment.
func CreateBuffer(device hal.Device, queue hal.Queue, desc *BufferDescriptor) (*Buffer, error) {
	if device == nil {
		return nil, ErrNilHALDevice
	}
	if desc == nil {
		return nil, fmt.Errorf("buffer descriptor is nil")
	}
	if desc.Size == 0 {
		return nil, fmt.Errorf("%w: size is 0", ErrInvalidBufferSize)
	}
	if desc.Usage == 0 {
		return nil, fmt.Errorf("buffer usage is empty")
	}

	const copyBufferAlignment uint64 = 4
	alignedSize := (desc.Size + copyBufferAlignment - 1) &^ (copyBufferAlignment - 1)

	halBuffer, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  alignedSize,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}

	return &Buffer{
		halBuffer: halBuffer,
		device:    device,
		queue:     queue,
		label:     desc.Label,
		size:      alignedSize,
		usage:     desc.Usage,
	}, nil
}

// CreateStagingBuffer creates a readback buffer (MapRead | CopyDst).
func CreateStagingBuffer(device hal.Device, queue hal.Queue, size uint64, label string) (*Buffer, error) {
	return CreateBuffer(device, queue, &BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string { return b.label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the buffer usage flags.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// MapState returns the current mapping state.
func (b *Buffer) MapState() BufferMapState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mapState
}

// Raw returns the underlying buffer handle, or nil after Destroy.
func (b *Buffer) Raw() hal.Buffer {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.destroyed {
		return nil
	}
	return b.halBuffer
}

// MapAsync requests a mapping of [offset, offset+size).
//
// On validation failure the callback is invoked immediately with the
// failure status and an error is returned. Otherwise the buffer becomes
// Pending and the callback fires from PollMapAsync, Unmap or Destroy,
// whichever resolves the request first.
func (b *Buffer) MapAsync(mode gputypes.MapMode, offset, size uint64, callback func(BufferMapAsyncStatus)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if b.mapState != BufferMapStateUnmapped {
		if callback != nil {
			callback(BufferMapAsyncStatusMappingAlreadyPending)
		}
		return ErrBufferAlreadyMapped
	}
	if callback == nil {
		return ErrCallbackNil
	}

	// Buffers are only ever read back; uploads go through queue writes.
	if mode != gputypes.MapModeRead {
		callback(BufferMapAsyncStatusValidationError)
		return fmt.Errorf("%w: only read mappings are supported", ErrInvalidMapMode)
	}
	if !b.usage.Contains(gputypes.BufferUsageMapRead) {
		callback(BufferMapAsyncStatusValidationError)
		return fmt.Errorf("%w: buffer does not have MapRead usage", ErrMapUsageMismatch)
	}

	if offset > b.size {
		callback(BufferMapAsyncStatusOffsetOutOfRange)
		return fmt.Errorf("%w: offset %d > buffer size %d", ErrInvalidMapRange, offset, b.size)
	}
	if offset+size > b.size {
		callback(BufferMapAsyncStatusSizeOutOfRange)
		return fmt.Errorf("%w: offset %d + size %d > buffer size %d", ErrInvalidMapRange, offset, size, b.size)
	}

	// WebGPU requires 8-byte aligned map offsets; the size only needs
	// alignment when the range stops short of the buffer end.
	const mapAlignment uint64 = 8
	if offset%mapAlignment != 0 {
		callback(BufferMapAsyncStatusValidationError)
		return fmt.Errorf("%w: offset %d must be %d-byte aligned", ErrInvalidMapRange, offset, mapAlignment)
	}
	if size%mapAlignment != 0 && size != b.size-offset {
		callback(BufferMapAsyncStatusValidationError)
		return fmt.Errorf("%w: size %d must be %d-byte aligned", ErrInvalidMapRange, size, mapAlignment)
	}

	b.mapState = BufferMapStatePending
	b.mapOffset = offset
	b.mapSize = size
	b.mapCallback = callback
	return nil
}

// PollMapAsync resolves a pending mapping. It returns true once the
// request is no longer pending.
func (b *Buffer) PollMapAsync() bool {
	b.mu.Lock()
	if b.mapState != BufferMapStatePending {
		b.mu.Unlock()
		return true
	}

	data := make([]byte, b.mapSize)
	status := BufferMapAsyncStatusSuccess
	if err := b.queue.ReadBuffer(b.halBuffer, b.mapOffset, data); err != nil {
		slogger().Warn("staging readback failed", "buffer", b.label, "err", err)
		status = BufferMapAsyncStatusUnknown
	}

	if status == BufferMapAsyncStatusSuccess {
		b.mappedData = data
		b.mapState = BufferMapStateMapped
	} else {
		b.mapState = BufferMapStateUnmapped
	}
	callback := b.mapCallback
	b.mapCallback = nil
	b.mu.Unlock()

	if callback != nil {
		callback(status)
	}
	return true
}

// GetMappedRange returns the mapped bytes in [offset, offset+size).
// The slice is only valid until Unmap.
func (b *Buffer) GetMappedRange(offset, size uint64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if b.mapState == BufferMapStatePending {
		return nil, ErrBufferMapPending
	}
	if b.mapState != BufferMapStateMapped {
		return nil, ErrBufferNotMapped
	}
	if offset < b.mapOffset {
		return nil, fmt.Errorf("%w: offset %d is before mapped region start %d",
			ErrInvalidMapRange, offset, b.mapOffset)
	}
	if offset+size > b.mapOffset+b.mapSize {
		return nil, fmt.Errorf("%w: offset %d + size %d exceeds mapped region end %d",
			ErrInvalidMapRange, offset, size, b.mapOffset+b.mapSize)
	}

	rel := offset - b.mapOffset
	return b.mappedData[rel : rel+size], nil
}

// Unmap releases the mapping. A pending request is cancelled and its
// callback receives BufferMapAsyncStatusUnmappedBeforeCallback. Unmapping
// an unmapped buffer is a no-op.
func (b *Buffer) Unmap() error {
	b.mu.Lock()

	if b.destroyed {
		b.mu.Unlock()
		return ErrBufferDestroyed
	}

	switch b.mapState {
	case BufferMapStatePending:
		callback := b.mapCallback
		b.mapCallback = nil
		b.mapState = BufferMapStateUnmapped
		b.mappedData = nil
		b.mu.Unlock()
		if callback != nil {
			callback(BufferMapAsyncStatusUnmappedBeforeCallback)
		}
		return nil
	case BufferMapStateMapped:
		b.mapState = BufferMapStateUnmapped
		b.mappedData = nil
	}
	b.mu.Unlock()
	return nil
}

// Destroy releases the buffer. A pending mapping callback receives
// BufferMapAsyncStatusDestroyedBeforeCallback. Destroy is idempotent.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	halBuf := b.halBuffer
	callback := b.mapCallback
	wasPending := b.mapState == BufferMapStatePending
	b.halBuffer = nil
	b.mappedData = nil
	b.mapCallback = nil
	b.mapState = BufferMapStateUnmapped
	b.mu.Unlock()

	if wasPending && callback != nil {
		callback(BufferMapAsyncStatusDestroyedBeforeCallback)
	}
	if b.device != nil && halBuf != nil {
		b.device.DestroyBuffer(halBuf)
	}
}

// mapPollInterval is the delay between PollMapAsync attempts.
const mapPollInterval = time.Millisecond

// ReadMapped maps the whole buffer for reading, waits for the one-shot
// completion and hands the mapped bytes to fn. The buffer is always
// unmapped again before ReadMapped returns, so fn must not retain the slice.
//
// Waiting is bounded by timeout and ctx. A timeout yields an error
// wrapping nbody.ErrTimeout; a failed mapping one wrapping ErrMappingFailed.
func (b *Buffer) ReadMapped(ctx context.Context, timeout time.Duration, fn func([]byte)) error {
	done := make(chan BufferMapAsyncStatus, 1)
	if err := b.MapAsync(gputypes.MapModeRead, 0, b.size, func(s BufferMapAsyncStatus) {
		done <- s
	}); err != nil {
		return err
	}
	defer func() { _ = b.Unmap() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for !b.PollMapAsync() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("map %q: %w", b.label, nbody.ErrTimeout)
		case <-time.After(mapPollInterval):
		}
	}

	var status BufferMapAsyncStatus
	select {
	case status = <-done:
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("map %q: %w", b.label, nbody.ErrTimeout)
	}
	if status != BufferMapAsyncStatusSuccess {
		return fmt.Errorf("%w: %s", ErrMappingFailed, status)
	}

	data, err := b.GetMappedRange(0, b.size)
	if err != nil {
		return err
	}
	fn(data)
	return nil
}
