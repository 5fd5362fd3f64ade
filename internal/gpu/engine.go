//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/nbody"
	"github.com/gogpu/wgpu/hal"
)

// physicsUniformSize is the size of the gravity Params uniform.
const physicsUniformSize = 16

// ErrEngineClosed is returned when stepping a closed engine.
var ErrEngineClosed = errors.New("gpu: engine closed")

// SnapshotBuffer is a read-only handle to the positions of the last
// completed step, laid out as count consecutive vec2<f32>.
type SnapshotBuffer struct {
	buffer hal.Buffer
	count  uint32
}

// Count returns the number of bodies in the snapshot.
func (s SnapshotBuffer) Count() uint32 { return s.count }

// Size returns the snapshot size in bytes.
func (s SnapshotBuffer) Size() uint64 { return uint64(s.count) * 8 }

// Engine owns the device-side body state and advances it one time step
// per Step call.
//
// Bindings of the gravity kernel:
//
//	0: positions  (read-write storage)
//	1: masses     (read-only storage)
//	2: velocities (read-write storage)
//	3: params     (uniform: count, dt, G, softening)
type Engine struct {
	dev     *Device
	count   uint32
	physics nbody.Physics
	timeout time.Duration

	positions  hal.Buffer
	masses     hal.Buffer
	velocities hal.Buffer
	snapshot   hal.Buffer
	params     hal.Buffer

	// readback serves Positions and is created on first use.
	readback *Buffer

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	accelerate hal.ComputePipeline
	integrate  hal.ComputePipeline
	bindGroup  hal.BindGroup

	mem   reservations
	steps uint64
}

// NewEngine uploads bodies to dev and builds the gravity pipelines.
// submitTimeout bounds the fence wait of every Step.
func NewEngine(dev *Device, bodies []nbody.Body, physics nbody.Physics, submitTimeout time.Duration) (*Engine, error) {
	if dev == nil || dev.device == nil {
		return nil, ErrNilHALDevice
	}
	if len(bodies) == 0 {
		return nil, nbody.ErrNoBodies
	}

	e := &Engine{
		dev:     dev,
		mem:     reservations{ledger: dev.memory},
		count:   uint32(len(bodies)),
		physics: physics,
		timeout: submitTimeout,
	}
	if err := e.createBuffers(bodies); err != nil {
		e.Close()
		return nil, err
	}
	if err := e.createPipelines(); err != nil {
		e.Close()
		return nil, err
	}

	slogger().Debug("engine ready",
		"bodies", e.count,
		"workgroups", workgroupCount(e.count),
		"position_bytes", e.positionBytes())
	return e, nil
}

func (e *Engine) positionBytes() uint64 { return uint64(e.count) * 8 }

func (e *Engine) createBuffers(bodies []nbody.Body) error {
	device, queue := e.dev.device, e.dev.queue
	positions, masses, velocities := nbody.Columns(bodies)

	create := func(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
		if err := e.mem.reserve(label, size); err != nil {
			return nil, err
		}
		buf, err := device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
		if err != nil {
			return nil, fmt.Errorf("create %s buffer: %w", label, err)
		}
		return buf, nil
	}

	var err error
	if e.positions, err = create("nbody_positions", e.positionBytes(),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	if e.masses, err = create("nbody_masses", uint64(e.count)*4,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	if e.velocities, err = create("nbody_velocities", e.positionBytes(),
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}
	if e.snapshot, err = create("nbody_snapshot", e.positionBytes(),
		gputypes.BufferUsageCopyDst|gputypes.BufferUsageCopySrc|gputypes.BufferUsageVertex); err != nil {
		return err
	}
	if e.params, err = create("nbody_params", physicsUniformSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst); err != nil {
		return err
	}

	posBytes := nbody.Float32Bytes(positions)
	queue.WriteBuffer(e.positions, 0, posBytes)
	queue.WriteBuffer(e.snapshot, 0, posBytes)
	queue.WriteBuffer(e.masses, 0, nbody.Float32Bytes(masses))
	queue.WriteBuffer(e.velocities, 0, nbody.Float32Bytes(velocities))
	queue.WriteBuffer(e.params, 0, e.paramsBytes())
	return nil
}

// paramsBytes encodes the Params uniform.
func (e *Engine) paramsBytes() []byte {
	b := make([]byte, physicsUniformSize)
	binary.LittleEndian.PutUint32(b[0:], e.count)
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(e.physics.Dt))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(e.physics.G))
	binary.LittleEndian.PutUint32(b[12:], math.Float32bits(e.physics.Softening))
	return b
}

func (e *Engine) createPipelines() error {
	device := e.dev.device

	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "nbody_gravity",
		Source: hal.ShaderSource{WGSL: gravityShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile gravity shader: %w", err)
	}
	e.shader = shader

	e.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "nbody_gravity_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("create gravity bind group layout: %w", err)
	}

	e.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "nbody_gravity_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{e.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create gravity pipeline layout: %w", err)
	}

	e.accelerate, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "nbody_accelerate",
		Layout:  e.pipeLayout,
		Compute: hal.ComputeState{Module: e.shader, EntryPoint: entryAccelerate},
	})
	if err != nil {
		return fmt.Errorf("create accelerate pipeline: %w", err)
	}
	e.integrate, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "nbody_integrate",
		Layout:  e.pipeLayout,
		Compute: hal.ComputeState{Module: e.shader, EntryPoint: entryIntegrate},
	})
	if err != nil {
		return fmt.Errorf("create integrate pipeline: %w", err)
	}

	e.bindGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "nbody_gravity_bg",
		Layout: e.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: e.positions.NativeHandle(), Offset: 0, Size: e.positionBytes()}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: e.masses.NativeHandle(), Offset: 0, Size: uint64(e.count) * 4}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: e.velocities.NativeHandle(), Offset: 0, Size: e.positionBytes()}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: e.params.NativeHandle(), Offset: 0, Size: physicsUniformSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create gravity bind group: %w", err)
	}
	return nil
}

// Count returns the number of simulated bodies.
func (e *Engine) Count() int { return int(e.count) }

// Steps returns the number of completed steps.
func (e *Engine) Steps() uint64 { return e.steps }

// Physics returns the active integration constants.
func (e *Engine) Physics() nbody.Physics { return e.physics }

// Step advances the simulation by one time step and blocks until the
// snapshot holds the new positions. Every failure is fatal.
func (e *Engine) Step(ctx context.Context) error {
	if err := e.step(ctx); err != nil {
		return nbody.Fatal("step", err)
	}
	e.steps++
	return nil
}

func (e *Engine) step(ctx context.Context) error {
	if e.bindGroup == nil {
		return ErrEngineClosed
	}
	device := e.dev.device

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "nbody_step"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("nbody_step"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	// Passes are separated by implicit storage barriers, so integrate sees
	// every velocity written by accelerate.
	groups := workgroupCount(e.count)
	for _, stage := range []struct {
		label    string
		pipeline hal.ComputePipeline
	}{
		{"nbody_accelerate", e.accelerate},
		{"nbody_integrate", e.integrate},
	} {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: stage.label})
		pass.SetPipeline(stage.pipeline)
		pass.SetBindGroup(0, e.bindGroup, nil)
		pass.Dispatch(groups, 1, 1)
		pass.End()
	}

	encoder.CopyBufferToBuffer(e.positions, e.snapshot, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: e.positionBytes()},
	})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	return e.dev.submitAndWait(ctx, cmdBuf, e.timeout)
}

// Snapshot returns the read-only handle to the last completed positions.
func (e *Engine) Snapshot() SnapshotBuffer {
	return SnapshotBuffer{buffer: e.snapshot, count: e.count}
}

// Positions reads the snapshot back to the host. It is meant for
// diagnostics and tests; the render path never reads positions on the CPU.
func (e *Engine) Positions(ctx context.Context) ([]nbody.Vec2, error) {
	if e.snapshot == nil {
		return nil, ErrEngineClosed
	}
	device, queue := e.dev.device, e.dev.queue
	if e.readback == nil {
		rb, err := CreateStagingBuffer(device, queue, e.positionBytes(), "nbody_positions_readback")
		if err != nil {
			return nil, err
		}
		if err := e.mem.reserve("nbody_positions_readback", e.positionBytes()); err != nil {
			rb.Destroy()
			return nil, err
		}
		e.readback = rb
	}

	encoder, err := device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "nbody_readback"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("nbody_readback"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(e.snapshot, e.readback.Raw(), []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: e.positionBytes()},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	if err := e.dev.submitAndWait(ctx, cmdBuf, e.timeout); err != nil {
		return nil, err
	}

	var out []nbody.Vec2
	err = e.readback.ReadMapped(ctx, e.timeout, func(data []byte) {
		floats := nbody.BytesFloat32(data[:e.positionBytes()])
		out = make([]nbody.Vec2, e.count)
		for i := range out {
			out[i] = nbody.V2(floats[2*i], floats[2*i+1])
		}
	})
	return out, err
}

// Close releases every device resource owned by the engine. The device
// itself stays open.
func (e *Engine) Close() {
	if e.dev == nil || e.dev.device == nil {
		return
	}
	device := e.dev.device
	e.mem.releaseAll()
	if e.readback != nil {
		e.readback.Destroy()
		e.readback = nil
	}
	if e.bindGroup != nil {
		device.DestroyBindGroup(e.bindGroup)
		e.bindGroup = nil
	}
	if e.integrate != nil {
		device.DestroyComputePipeline(e.integrate)
		e.integrate = nil
	}
	if e.accelerate != nil {
		device.DestroyComputePipeline(e.accelerate)
		e.accelerate = nil
	}
	if e.pipeLayout != nil {
		device.DestroyPipelineLayout(e.pipeLayout)
		e.pipeLayout = nil
	}
	if e.bindLayout != nil {
		device.DestroyBindGroupLayout(e.bindLayout)
		e.bindLayout = nil
	}
	if e.shader != nil {
		device.DestroyShaderModule(e.shader)
		e.shader = nil
	}
	for _, buf := range []*hal.Buffer{&e.params, &e.snapshot, &e.velocities, &e.masses, &e.positions} {
		if *buf != nil {
			device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
}
