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

// Uniform sizes.
const (
	cameraUniformSize = 64
	splatUniformSize  = 16

	// splatVertexStride is one vec2<f32> position per body.
	splatVertexStride = 8
)

// targetFormat is the format of every render target and of the extracted
// pixels.
const targetFormat = gputypes.TextureFormatRGBA8Unorm

// Renderer errors.
var (
	// ErrRendererClosed is returned when rendering with a closed renderer.
	ErrRendererClosed = errors.New("gpu: renderer closed")

	// ErrInvalidTargetSize is returned for a zero-sized render target.
	ErrInvalidTargetSize = errors.New("gpu: invalid render target size")

	// ErrUnknownPreset is returned for a preset the renderer cannot build.
	ErrUnknownPreset = errors.New("gpu: unknown render preset")
)

// RenderOptions configures a Renderer.
type RenderOptions struct {
	Width, Height uint32
	Preset        nbody.Preset

	// SplatIntensity is the density one body adds per covered pixel.
	SplatIntensity float32
	// SplatSize is the splat circumradius in pixels.
	SplatSize float32

	SubmitTimeout time.Duration
	MapTimeout    time.Duration
}

// renderPreset describes the passes of one preset.
type renderPreset struct {
	splatFragment string
	splatBlend    gputypes.BlendState
	splatClear    gputypes.Color
	toneMap       bool
}

// presets maps every supported preset to its pass layout.
var presets = map[nbody.Preset]renderPreset{
	nbody.PresetAccumulateTonemap: {
		splatFragment: entryAccumulate,
		splatBlend: gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorZero,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
		},
		splatClear: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		toneMap:    true,
	},
	nbody.PresetDirectAlpha: {
		splatFragment: entryDirect,
		splatBlend: gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorSrcAlpha,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorZero,
				DstFactor: gputypes.BlendFactorOne,
				Operation: gputypes.BlendOperationAdd,
			},
		},
		splatClear: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
	},
}

// Renderer turns a position snapshot into tightly packed RGBA8 pixels.
//
// All targets and the staging buffer are allocated once and reused for
// every frame. Frames are rendered strictly one after another.
type Renderer struct {
	dev    *Device
	opts   RenderOptions
	preset renderPreset

	target     hal.Texture
	targetView hal.TextureView

	// density is the sampled copy of the splat result (tone-map presets only).
	density     hal.Texture
	densityView hal.TextureView
	sampler     hal.Sampler
	// densityReady is set once a submitted frame has moved density out of
	// its initial undefined layout.
	densityReady bool

	staging *Buffer

	cameraBuf hal.Buffer
	splatBuf  hal.Buffer

	splatShader     hal.ShaderModule
	splatLayout     hal.BindGroupLayout
	splatPipeLayout hal.PipelineLayout
	splatPipeline   hal.RenderPipeline
	splatBindGroup  hal.BindGroup

	toneShader     hal.ShaderModule
	toneLayout     hal.BindGroupLayout
	tonePipeLayout hal.PipelineLayout
	tonePipeline   hal.RenderPipeline
	toneBindGroup  hal.BindGroup

	mem    reservations
	frames uint64
}

// NewRenderer allocates the render targets, staging buffer and pipelines
// of the preset selected in opts.
func NewRenderer(dev *Device, opts RenderOptions) (*Renderer, error) {
	if dev == nil || dev.device == nil {
		return nil, ErrNilHALDevice
	}
	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTargetSize, opts.Width, opts.Height)
	}
	preset, ok := presets[opts.Preset]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, opts.Preset)
	}

	r := &Renderer{dev: dev, opts: opts, preset: preset, mem: reservations{ledger: dev.memory}}
	for _, build := range []func() error{r.createTargets, r.createUniforms, r.createSplatPipeline, r.createToneMapPipeline} {
		if err := build(); err != nil {
			r.Close()
			return nil, err
		}
	}

	slogger().Debug("renderer ready",
		"preset", string(opts.Preset),
		"width", opts.Width,
		"height", opts.Height,
		"padded_bytes_per_row", PaddedBytesPerRow(opts.Width),
		"staging_bytes", r.staging.Size())
	return r, nil
}

func (r *Renderer) extent() hal.Extent3D {
	return hal.Extent3D{Width: r.opts.Width, Height: r.opts.Height, DepthOrArrayLayers: 1}
}

func (r *Renderer) createTargets() error {
	device := r.dev.device
	targetBytes := uint64(UnpaddedBytesPerRow(r.opts.Width)) * uint64(r.opts.Height)
	stagingSize := uint64(PaddedBytesPerRow(r.opts.Width)) * uint64(r.opts.Height)

	if err := r.mem.reserve("nbody_target", targetBytes); err != nil {
		return err
	}
	var err error
	r.target, err = device.CreateTexture(&hal.TextureDescriptor{
		Label:         "nbody_target",
		Size:          r.extent(),
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        targetFormat,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}
	r.targetView, err = device.CreateTextureView(r.target, &hal.TextureViewDescriptor{
		Label:         "nbody_target_view",
		Format:        targetFormat,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return fmt.Errorf("create target view: %w", err)
	}

	if r.preset.toneMap {
		if err := r.mem.reserve("nbody_density", targetBytes); err != nil {
			return err
		}
		r.density, err = device.CreateTexture(&hal.TextureDescriptor{
			Label:         "nbody_density",
			Size:          r.extent(),
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     gputypes.TextureDimension2D,
			Format:        targetFormat,
			Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
		})
		if err != nil {
			return fmt.Errorf("create density texture: %w", err)
		}
		r.densityView, err = device.CreateTextureView(r.density, &hal.TextureViewDescriptor{
			Label:         "nbody_density_view",
			Format:        targetFormat,
			Dimension:     gputypes.TextureViewDimension2D,
			Aspect:        gputypes.TextureAspectAll,
			MipLevelCount: 1,
		})
		if err != nil {
			return fmt.Errorf("create density view: %w", err)
		}
		r.sampler, err = device.CreateSampler(&hal.SamplerDescriptor{
			Label:        "nbody_density_sampler",
			AddressModeU: gputypes.AddressModeClampToEdge,
			AddressModeV: gputypes.AddressModeClampToEdge,
			AddressModeW: gputypes.AddressModeClampToEdge,
			MagFilter:    gputypes.FilterModeLinear,
			MinFilter:    gputypes.FilterModeNearest,
			MipmapFilter: gputypes.FilterModeNearest,
		})
		if err != nil {
			return fmt.Errorf("create density sampler: %w", err)
		}
	}

	if err := r.mem.reserve("nbody_staging", stagingSize); err != nil {
		return err
	}
	r.staging, err = CreateStagingBuffer(device, r.dev.queue, stagingSize, "nbody_staging")
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	return nil
}

func (r *Renderer) createUniforms() error {
	device := r.dev.device
	if err := r.mem.reserve("nbody_render_uniforms", cameraUniformSize+splatUniformSize); err != nil {
		return err
	}
	var err error
	r.cameraBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "nbody_camera",
		Size:  cameraUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create camera uniform: %w", err)
	}
	r.splatBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "nbody_splat",
		Size:  splatUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create splat uniform: %w", err)
	}
	r.dev.queue.WriteBuffer(r.splatBuf, 0, r.splatBytes())
	return nil
}

// splatBytes encodes the Splat uniform: the triangle circumradius converted
// from pixels to normalized device units, then the intensity.
func (r *Renderer) splatBytes() []byte {
	b := make([]byte, splatUniformSize)
	ex := 2 * r.opts.SplatSize / float32(r.opts.Width)
	ey := 2 * r.opts.SplatSize / float32(r.opts.Height)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(ex))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(ey))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(r.opts.SplatIntensity))
	return b
}

func (r *Renderer) createSplatPipeline() error {
	device := r.dev.device

	var err error
	r.splatShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "nbody_splat",
		Source: hal.ShaderSource{WGSL: splatShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile splat shader: %w", err)
	}

	r.splatLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "nbody_splat_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageVertex, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageVertex, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		},
	})
	if err != nil {
		return fmt.Errorf("create splat bind group layout: %w", err)
	}

	r.splatPipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "nbody_splat_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.splatLayout},
	})
	if err != nil {
		return fmt.Errorf("create splat pipeline layout: %w", err)
	}

	blend := r.preset.splatBlend
	r.splatPipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "nbody_splat_pipeline",
		Layout: r.splatPipeLayout,
		Vertex: hal.VertexState{
			Module:     r.splatShader,
			EntryPoint: entryVertex,
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: splatVertexStride,
				StepMode:    gputypes.VertexStepModeInstance,
				Attributes: []gputypes.VertexAttribute{
					{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
				},
			}},
		},
		Fragment: &hal.FragmentState{
			Module:     r.splatShader,
			EntryPoint: r.preset.splatFragment,
			Targets: []gputypes.ColorTargetState{{
				Format:    targetFormat,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("create splat pipeline: %w", err)
	}

	r.splatBindGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "nbody_splat_bg",
		Layout: r.splatLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: r.cameraBuf.NativeHandle(), Offset: 0, Size: cameraUniformSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: r.splatBuf.NativeHandle(), Offset: 0, Size: splatUniformSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create splat bind group: %w", err)
	}
	return nil
}

func (r *Renderer) createToneMapPipeline() error {
	if !r.preset.toneMap {
		return nil
	}
	device := r.dev.device

	var err error
	r.toneShader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "nbody_tonemap",
		Source: hal.ShaderSource{WGSL: tonemapShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile tone-map shader: %w", err)
	}

	r.toneLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "nbody_tonemap_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create tone-map bind group layout: %w", err)
	}

	r.tonePipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "nbody_tonemap_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.toneLayout},
	})
	if err != nil {
		return fmt.Errorf("create tone-map pipeline layout: %w", err)
	}

	// No blend state: the tone-map output replaces the target.
	r.tonePipeline, err = device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "nbody_tonemap_pipeline",
		Layout: r.tonePipeLayout,
		Vertex: hal.VertexState{
			Module:     r.toneShader,
			EntryPoint: entryVertex,
		},
		Fragment: &hal.FragmentState{
			Module:     r.toneShader,
			EntryPoint: entryToneMapFrag,
			Targets: []gputypes.ColorTargetState{{
				Format:    targetFormat,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("create tone-map pipeline: %w", err)
	}

	r.toneBindGroup, err = device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "nbody_tonemap_bg",
		Layout: r.toneLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: r.densityView.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: r.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		return fmt.Errorf("create tone-map bind group: %w", err)
	}
	return nil
}

// Size returns the render target size in pixels.
func (r *Renderer) Size() (width, height uint32) {
	return r.opts.Width, r.opts.Height
}

// Frames returns the number of successfully extracted frames.
func (r *Renderer) Frames() uint64 { return r.frames }

// Render draws snap as seen by cam and returns exactly 4*W*H bytes of
// RGBA8 pixels, rows top to bottom.
//
// Encoding, submission and fence failures are fatal. A staging map that
// completes with a failure status is reported as a skip-frame error; a
// map that does not complete within MapTimeout is fatal.
func (r *Renderer) Render(ctx context.Context, snap SnapshotBuffer, cam nbody.Camera) ([]byte, error) {
	if r.splatPipeline == nil {
		return nil, nbody.Fatal("render", ErrRendererClosed)
	}
	if snap.buffer == nil {
		return nil, nbody.Fatal("render", fmt.Errorf("snapshot buffer is nil"))
	}

	r.dev.queue.WriteBuffer(r.cameraBuf, 0, cam.Bytes())

	cmdBuf, err := r.encodeFrame(snap)
	if err != nil {
		return nil, nbody.Fatal("render", err)
	}
	if err := r.dev.submitAndWait(ctx, cmdBuf, r.opts.SubmitTimeout); err != nil {
		return nil, nbody.Fatal("render", err)
	}
	if r.preset.toneMap {
		r.densityReady = true
	}

	pixels, err := r.extract(ctx)
	if err != nil {
		if errors.Is(err, ErrMappingFailed) {
			return nil, nbody.SkipFrame("extract", err)
		}
		return nil, nbody.Fatal("extract", err)
	}
	r.frames++
	return pixels, nil
}

func (r *Renderer) encodeFrame(snap SnapshotBuffer) (hal.CommandBuffer, error) {
	encoder, err := r.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "nbody_frame"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("nbody_frame"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	// Pass A: one instanced triangle per body.
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "nbody_splat_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       r.targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: r.preset.splatClear,
		}},
	})
	rp.SetPipeline(r.splatPipeline)
	rp.SetBindGroup(0, r.splatBindGroup, nil)
	rp.SetVertexBuffer(0, snap.buffer, 0)
	rp.Draw(3, snap.count, 0, 0)
	rp.End()

	if r.preset.toneMap {
		r.encodeToneMap(encoder)
	}

	transition(encoder, r.target, gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageCopySrc)
	encoder.CopyTextureToBuffer(r.target, r.staging.Raw(), []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: PaddedBytesPerRow(r.opts.Width), RowsPerImage: r.opts.Height},
		TextureBase:  hal.ImageCopyTexture{Texture: r.target, MipLevel: 0},
		Size:         r.extent(),
	}})
	transition(encoder, r.target, gputypes.TextureUsageCopySrc, gputypes.TextureUsageRenderAttachment)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	return cmdBuf, nil
}

// encodeToneMap copies the splat result into the density texture and
// redraws the target from it.
func (r *Renderer) encodeToneMap(encoder hal.CommandEncoder) {
	if !r.densityReady {
		transition(encoder, r.density, 0, gputypes.TextureUsageCopyDst)
	}
	transition(encoder, r.target, gputypes.TextureUsageRenderAttachment, gputypes.TextureUsageCopySrc)
	encoder.CopyTextureToTexture(r.target, r.density, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{Texture: r.target, MipLevel: 0},
		DstBase: hal.ImageCopyTexture{Texture: r.density, MipLevel: 0},
		Size:    r.extent(),
	}})
	transition(encoder, r.density, gputypes.TextureUsageCopyDst, gputypes.TextureUsageTextureBinding)
	transition(encoder, r.target, gputypes.TextureUsageCopySrc, gputypes.TextureUsageRenderAttachment)

	// Pass B: full-screen quad over opaque black.
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "nbody_tonemap_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       r.targetView,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rp.SetPipeline(r.tonePipeline)
	rp.SetBindGroup(0, r.toneBindGroup, nil)
	rp.Draw(6, 1, 0, 0)
	rp.End()

	transition(encoder, r.density, gputypes.TextureUsageTextureBinding, gputypes.TextureUsageCopyDst)
}

func transition(encoder hal.CommandEncoder, tex hal.Texture, from, to gputypes.TextureUsage) {
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage:   hal.TextureUsageTransition{OldUsage: from, NewUsage: to},
	}})
}

// extract maps the staging buffer once and strips the row padding.
func (r *Renderer) extract(ctx context.Context) ([]byte, error) {
	var pixels []byte
	err := r.staging.ReadMapped(ctx, r.opts.MapTimeout, func(data []byte) {
		pixels = StripRowPadding(data, r.opts.Width, r.opts.Height)
	})
	if err != nil {
		return nil, err
	}
	return pixels, nil
}

// Close releases every device resource owned by the renderer.
func (r *Renderer) Close() {
	if r.dev == nil || r.dev.device == nil {
		return
	}
	device := r.dev.device
	r.mem.releaseAll()

	if r.toneBindGroup != nil {
		device.DestroyBindGroup(r.toneBindGroup)
		r.toneBindGroup = nil
	}
	if r.tonePipeline != nil {
		device.DestroyRenderPipeline(r.tonePipeline)
		r.tonePipeline = nil
	}
	if r.tonePipeLayout != nil {
		device.DestroyPipelineLayout(r.tonePipeLayout)
		r.tonePipeLayout = nil
	}
	if r.toneLayout != nil {
		device.DestroyBindGroupLayout(r.toneLayout)
		r.toneLayout = nil
	}
	if r.toneShader != nil {
		device.DestroyShaderModule(r.toneShader)
		r.toneShader = nil
	}

	if r.splatBindGroup != nil {
		device.DestroyBindGroup(r.splatBindGroup)
		r.splatBindGroup = nil
	}
	if r.splatPipeline != nil {
		device.DestroyRenderPipeline(r.splatPipeline)
		r.splatPipeline = nil
	}
	if r.splatPipeLayout != nil {
		device.DestroyPipelineLayout(r.splatPipeLayout)
		r.splatPipeLayout = nil
	}
	if r.splatLayout != nil {
		device.DestroyBindGroupLayout(r.splatLayout)
		r.splatLayout = nil
	}
	if r.splatShader != nil {
		device.DestroyShaderModule(r.splatShader)
		r.splatShader = nil
	}

	if r.splatBuf != nil {
		device.DestroyBuffer(r.splatBuf)
		r.splatBuf = nil
	}
	if r.cameraBuf != nil {
		device.DestroyBuffer(r.cameraBuf)
		r.cameraBuf = nil
	}
	if r.staging != nil {
		r.staging.Destroy()
		r.staging = nil
	}
	if r.sampler != nil {
		device.DestroySampler(r.sampler)
		r.sampler = nil
	}
	if r.densityView != nil {
		device.DestroyTextureView(r.densityView)
		r.densityView = nil
	}
	if r.density != nil {
		device.DestroyTexture(r.density)
		r.density = nil
	}
	if r.targetView != nil {
		device.DestroyTextureView(r.targetView)
		r.targetView = nil
	}
	if r.target != nil {
		device.DestroyTexture(r.target)
		r.target = nil
	}
}
