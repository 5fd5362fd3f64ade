// Package gpu runs the n-body simulation and its frame renderer on a
// WebGPU device through the gogpu/wgpu HAL.
//
// # Architecture Overview
//
// A run owns one device and one queue:
//
//	Engine:   masses, positions, velocities -> gravity compute -> snapshot
//	Renderer: snapshot -> splat pass -> tone-map pass -> staging buffer -> RGBA
//
// Engine.Step encodes two compute passes in one command encoder. The
// first pass accumulates pairwise accelerations into the velocities and
// the second advances positions, so no invocation reads a position that
// another invocation of the same pass writes. The step finishes with a
// copy of the positions into the snapshot buffer and blocks on a fence.
//
// Renderer.Render draws the snapshot as one small triangle per body,
// instanced from the snapshot vertex buffer. With the default preset the
// splat pass accumulates density in the alpha channel (color factors
// Zero/One, alpha factors One/One) and a second full-screen pass maps
// density to color. The frame is copied into a staging buffer whose rows
// are padded to 256 bytes, mapped once, and stripped back to 4*W bytes
// per row.
//
// # Synchronization
//
// Every submission is followed by a fence wait bounded by a timeout, and
// every staging map by a one-shot completion bounded by another timeout.
// Nothing is pipelined: rendering never starts before the step it draws
// has completed, and the next step never starts before the previous frame
// released its mapping.
//
// # Device Sharing
//
// NewDevice opens its own Vulkan device. NewDeviceFromProvider adopts the
// device of a host application implementing gpucontext.DeviceProvider;
// such a device is never destroyed by this package.
//
// Every buffer and texture the engine and renderer create is recorded in
// the device MemoryLedger, which rejects allocations beyond an optional
// budget.
package gpu
