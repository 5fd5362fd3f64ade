//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/nbody"
	"github.com/gogpu/wgpu/hal"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device errors.
var (
	// ErrNilHALDevice is returned when a nil device is passed in.
	ErrNilHALDevice = errors.New("gpu: HAL device is nil")

	// ErrNoGPU is returned when no usable adapter is found.
	ErrNoGPU = errors.New("gpu: no GPU adapter available")

	// ErrProviderNotHAL is returned when a device provider does not expose
	// HAL types.
	ErrProviderNotHAL = errors.New("gpu: provider does not expose HAL types")
)

// Device is an open GPU device with its queue.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
	memory   *MemoryLedger

	// external devices belong to a host application and are not destroyed.
	external bool
}

// NewDevice opens a Vulkan device, preferring discrete and integrated GPUs
// over software adapters.
func NewDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoGPU)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoGPU, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	slogger().Info("GPU adapter selected", "name", selected.Info.Name)

	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		name:     selected.Info.Name,
		memory:   NewMemoryLedger(0),
	}, nil
}

// NewDeviceFromHAL wraps an already open device and queue. The caller
// keeps ownership: Close does not destroy them.
func NewDeviceFromHAL(device hal.Device, queue hal.Queue, name string) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilHALDevice
	}
	return &Device{device: device, queue: queue, name: name, memory: NewMemoryLedger(0), external: true}, nil
}

// NewDeviceFromProvider adopts the device of a host application. The
// provider must also implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProviderNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProviderNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProviderNotHAL)
	}
	slogger().Info("using shared GPU device")
	return NewDeviceFromHAL(device, queue, "shared")
}

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// Memory returns the ledger of memory reserved on the device.
func (d *Device) Memory() *MemoryLedger { return d.memory }

// HAL returns the underlying device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

// Close destroys the device unless it is shared with a host application.
func (d *Device) Close() {
	if d.device != nil && !d.external {
		d.device.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}

// submitAndWait submits cmdBuf and blocks until its fence signals or the
// timeout elapses. ctx is only checked before submission. The command
// buffer and fence are freed once the fence has signalled or when nothing
// was submitted. After a failed or timed-out wait the GPU may still own
// them, so they are left to the device and the error must be treated as
// fatal.
func (d *Device) submitAndWait(ctx context.Context, cmdBuf hal.CommandBuffer, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return err
	}

	fence, err := d.device.CreateFence()
	if err != nil {
		d.device.FreeCommandBuffer(cmdBuf)
		return fmt.Errorf("create fence: %w", err)
	}
	release := func() {
		d.device.DestroyFence(fence)
		d.device.FreeCommandBuffer(cmdBuf)
	}

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		release()
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, timeout)
	if err != nil {
		slogger().Warn("fence wait failed, command buffer not freed", "err", err)
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		slogger().Warn("fence wait timed out, command buffer not freed", "timeout", timeout)
		return fmt.Errorf("wait for GPU after %v: %w", timeout, nbody.ErrTimeout)
	}
	release()
	return nil
}
