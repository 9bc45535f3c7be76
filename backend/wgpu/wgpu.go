// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu adapts github.com/gogpu/wgpu's hardware abstraction layer
// to the scheduler backend contract.
//
// The device and queue must already be initialized by the application;
// pass them through a Config:
//
//	import (
//	    schedwgpu "github.com/gogpu/gpusched/backend/wgpu"
//	    "github.com/gogpu/gpusched/backend"
//	)
//
//	device, err := backend.New("wgpu", &schedwgpu.Config{
//	    Device: halDevice,
//	    Queue:  halQueue,
//	})
//
// Host-visible buffers are emulated with a shadow allocation: Map
// returns host memory and Flush pushes it through hal.Queue.WriteBuffer.
// Buffers therefore always report non-coherent. Buffer barriers are a
// no-op because wgpu orders buffer accesses by submission.
package wgpu

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpusched/backend"
)

func init() {
	backend.Register("wgpu", func(config any) (backend.Device, error) {
		cfg, ok := config.(*Config)
		if !ok || cfg == nil {
			return nil, fmt.Errorf("wgpu: config must be a *wgpu.Config")
		}
		if cfg.Device == nil || cfg.Queue == nil {
			return nil, fmt.Errorf("wgpu: config needs an initialized Device and Queue")
		}
		return NewDevice(cfg.Device, cfg.Queue), nil
	})
}

// Config carries the initialized hal objects the backend drives.
type Config struct {
	Device hal.Device
	Queue  hal.Queue
}

// Device implements backend.Device over hal.
type Device struct {
	device hal.Device
	queue  hal.Queue
	log    *slog.Logger
}

// NewDevice wraps an initialized hal device and queue.
func NewDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{
		device: device,
		queue:  queue,
		log:    slog.New(slog.DiscardHandler),
	}
}

// SetLogger implements the logger propagation hook used by gpusched.New.
func (d *Device) SetLogger(l *slog.Logger) {
	if l != nil {
		d.log = l
	}
}

// HAL returns the underlying hal device for submission and fence calls.
func (d *Device) HAL() hal.Device { return d.device }

// Queue returns the underlying hal queue.
func (d *Device) Queue() hal.Queue { return d.queue }

// CreateBuffer implements backend.Device. Host-visible buffers get a
// shadow allocation that Flush uploads with Queue.WriteBuffer.
func (d *Device) CreateBuffer(desc *backend.BufferDescriptor) (backend.Buffer, error) {
	usage := desc.Usage
	if desc.HostVisible {
		// Flush uploads through the queue, which needs CopyDst.
		usage |= gputypes.BufferUsageCopyDst
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create buffer: %w", err)
	}
	b := &Buffer{buffer: buf, queue: d.queue, size: desc.Size}
	if desc.HostVisible {
		b.shadow = make([]byte, desc.Size)
	}
	return b, nil
}

// DestroyBuffer implements backend.Device.
func (d *Device) DestroyBuffer(buf backend.Buffer) {
	d.device.DestroyBuffer(buf.(*Buffer).buffer)
}

// CreateTexture implements backend.Device.
func (d *Device) CreateTexture(desc *backend.TextureDescriptor) (backend.Texture, error) {
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: desc.Size.DepthOrArrayLayers,
		},
		MipLevelCount: mips,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture: %w", err)
	}
	return &Texture{
		device:  d.device,
		texture: tex,
		format:  desc.Format,
		size:    desc.Size,
		mips:    mips,
		views:   make(map[uint32]hal.TextureView),
	}, nil
}

// DestroyTexture implements backend.Device.
func (d *Device) DestroyTexture(tex backend.Texture) {
	t := tex.(*Texture)
	for _, view := range t.views {
		d.device.DestroyTextureView(view)
	}
	d.device.DestroyTexture(t.texture)
}

// CreateSampler implements backend.Device.
func (d *Device) CreateSampler(desc *backend.SamplerDescriptor) (backend.Sampler, error) {
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		MinFilter:    filterMode(desc.MinFilter),
		MagFilter:    filterMode(desc.MagFilter),
		MipmapFilter: filterMode(desc.MipmapFilter),
		AddressModeU: addressMode(desc.AddressModeU),
		AddressModeV: addressMode(desc.AddressModeV),
		AddressModeW: addressMode(desc.AddressModeW),
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create sampler: %w", err)
	}
	return s, nil
}

// DestroySampler implements backend.Device.
func (d *Device) DestroySampler(s backend.Sampler) {
	d.device.DestroySampler(s.(hal.Sampler))
}

// CreateShaderModule implements backend.Device.
func (d *Device) CreateShaderModule(desc *backend.ShaderModuleDescriptor) (backend.ShaderModule, error) {
	m, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{WGSL: desc.WGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create shader module: %w", err)
	}
	return m, nil
}

// DestroyShaderModule implements backend.Device.
func (d *Device) DestroyShaderModule(m backend.ShaderModule) {
	d.device.DestroyShaderModule(m.(hal.ShaderModule))
}

// CreateDescriptorSetLayout implements backend.Device.
func (d *Device) CreateDescriptorSetLayout(desc *backend.DescriptorSetLayoutDescriptor) (backend.DescriptorSetLayout, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(desc.Bindings))
	for _, b := range desc.Bindings {
		entry := gputypes.BindGroupLayoutEntry{
			Binding:    b.Binding,
			Visibility: b.Stages,
		}
		switch b.Kind {
		case backend.DescriptorUniformBuffer:
			entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case backend.DescriptorStorageBuffer:
			entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
		case backend.DescriptorSampler:
			entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
		case backend.DescriptorTexture, backend.DescriptorTextureArray:
			entry.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			}
		}
		entries = append(entries, entry)
	}
	layout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create bind group layout: %w", err)
	}
	return layout, nil
}

// DestroyDescriptorSetLayout implements backend.Device.
func (d *Device) DestroyDescriptorSetLayout(layout backend.DescriptorSetLayout) {
	d.device.DestroyBindGroupLayout(layout.(hal.BindGroupLayout))
}

// AllocateDescriptorSet implements backend.Device. hal bind groups are
// immutable, so allocation is deferred: the native bind group is built
// by the set's first Write.
func (d *Device) AllocateDescriptorSet(layout backend.DescriptorSetLayout) (backend.DescriptorSet, error) {
	return &DescriptorSet{device: d.device, layout: layout.(hal.BindGroupLayout)}, nil
}

// FreeDescriptorSet implements backend.Device.
func (d *Device) FreeDescriptorSet(set backend.DescriptorSet) {
	s := set.(*DescriptorSet)
	if s.group != nil {
		d.device.DestroyBindGroup(s.group)
	}
}

// CreateRenderPipeline implements backend.Device.
func (d *Device) CreateRenderPipeline(desc *backend.RenderPipelineDescriptor) (backend.Pipeline, error) {
	layout, err := d.pipelineLayout(desc.Label, desc.Layouts)
	if err != nil {
		return nil, err
	}

	targets := make([]gputypes.ColorTargetState, len(desc.ColorFormats))
	premulBlend := gputypes.BlendStatePremultiplied()
	for i, format := range desc.ColorFormats {
		targets[i] = gputypes.ColorTargetState{
			Format:    format,
			Blend:     &premulBlend,
			WriteMask: gputypes.ColorWriteMaskAll,
		}
	}

	halDesc := &hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     desc.Vertex.Module.(hal.ShaderModule),
			EntryPoint: desc.Vertex.EntryPoint,
		},
		Fragment: &hal.FragmentState{
			Module:     desc.Fragment.Module.(hal.ShaderModule),
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    targets,
		},
		Primitive: gputypes.PrimitiveState{
			Topology:  desc.Topology,
			FrontFace: desc.FrontFace,
			CullMode:  desc.CullMode,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.DepthFormat != 0 {
		halDesc.DepthStencil = &hal.DepthStencilState{
			Format:            desc.DepthFormat,
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      desc.DepthCompare,
		}
	}

	p, err := d.device.CreateRenderPipeline(halDesc)
	if err != nil {
		return nil, fmt.Errorf("wgpu: create render pipeline: %w", err)
	}
	return &Pipeline{render: p, layout: layout}, nil
}

// CreateComputePipeline implements backend.Device.
func (d *Device) CreateComputePipeline(desc *backend.ComputePipelineDescriptor) (backend.Pipeline, error) {
	layout, err := d.pipelineLayout(desc.Label, desc.Layouts)
	if err != nil {
		return nil, err
	}
	p, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     desc.Compute.Module.(hal.ShaderModule),
			EntryPoint: desc.Compute.EntryPoint,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create compute pipeline: %w", err)
	}
	return &Pipeline{compute: p, layout: layout}, nil
}

func (d *Device) pipelineLayout(label string, layouts []backend.DescriptorSetLayout) (hal.PipelineLayout, error) {
	groups := make([]hal.BindGroupLayout, len(layouts))
	for i, l := range layouts {
		groups[i] = l.(hal.BindGroupLayout)
	}
	layout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create pipeline layout: %w", err)
	}
	return layout, nil
}

// DestroyPipeline implements backend.Device.
func (d *Device) DestroyPipeline(p backend.Pipeline) {
	pl := p.(*Pipeline)
	if pl.render != nil {
		d.device.DestroyRenderPipeline(pl.render)
	}
	if pl.compute != nil {
		d.device.DestroyComputePipeline(pl.compute)
	}
	d.device.DestroyPipelineLayout(pl.layout)
}

// NewEncoder implements backend.Device.
func (d *Device) NewEncoder(label string) (backend.Encoder, error) {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	return &Encoder{encoder: enc, log: d.log}, nil
}

// Buffer implements backend.Buffer over a hal buffer. A non-nil shadow
// marks the buffer host visible.
type Buffer struct {
	buffer hal.Buffer
	queue  hal.Queue
	size   uint64
	shadow []byte
}

// Size implements backend.Buffer.
func (b *Buffer) Size() uint64 { return b.size }

// Map implements backend.Buffer.
func (b *Buffer) Map() ([]byte, error) {
	if b.shadow == nil {
		return nil, fmt.Errorf("wgpu: buffer is not host visible: %w", backend.ErrUnsupported)
	}
	return b.shadow, nil
}

// Coherent implements backend.Buffer. Writes go through a shadow
// allocation, so they always need a Flush.
func (b *Buffer) Coherent() bool { return false }

// Flush implements backend.Buffer by uploading the shadow contents.
func (b *Buffer) Flush() error {
	if b.shadow == nil {
		return nil
	}
	b.queue.WriteBuffer(b.buffer, 0, b.shadow)
	return nil
}

// HAL returns the underlying hal buffer.
func (b *Buffer) HAL() hal.Buffer { return b.buffer }

// Texture implements backend.Texture over a hal texture. Views are
// created per mip on first use and live until the texture is destroyed.
type Texture struct {
	device  hal.Device
	texture hal.Texture
	format  gputypes.TextureFormat
	size    gputypes.Extent3D
	mips    uint32
	views   map[uint32]hal.TextureView
}

// Format implements backend.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Size implements backend.Texture.
func (t *Texture) Size() gputypes.Extent3D { return t.size }

// MipLevels implements backend.Texture.
func (t *Texture) MipLevels() uint32 { return t.mips }

// HAL returns the underlying hal texture.
func (t *Texture) HAL() hal.Texture { return t.texture }

func (t *Texture) view(mip uint32) (hal.TextureView, error) {
	if v, ok := t.views[mip]; ok {
		return v, nil
	}
	v, err := t.device.CreateTextureView(t.texture, &hal.TextureViewDescriptor{
		Format:        t.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		BaseMipLevel:  mip,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create texture view: %w", err)
	}
	t.views[mip] = v
	return v, nil
}

// Pipeline holds either a render or a compute hal pipeline plus the
// pipeline layout created with it.
type Pipeline struct {
	render  hal.RenderPipeline
	compute hal.ComputePipeline
	layout  hal.PipelineLayout
}

// DescriptorSet implements backend.DescriptorSet. hal bind groups carry
// their resources at creation, so Write creates the group.
type DescriptorSet struct {
	device hal.Device
	layout hal.BindGroupLayout
	group  hal.BindGroup
}

// Write implements backend.DescriptorSet. Only buffer bindings are
// supported until texture view and sampler bind group entries land in
// hal.
func (s *DescriptorSet) Write(writes []backend.DescriptorWrite) error {
	entries := make([]gputypes.BindGroupEntry, 0, len(writes))
	for _, w := range writes {
		switch w.Kind {
		case backend.DescriptorUniformBuffer, backend.DescriptorStorageBuffer:
			entries = append(entries, gputypes.BindGroupEntry{
				Binding: w.Binding,
				Resource: gputypes.BufferBinding{
					Buffer: w.Buffer.(*Buffer).buffer.NativeHandle(),
					Offset: 0,
					Size:   0, // 0 = entire buffer
				},
			})
		default:
			// TODO: bind texture views and samplers once gputypes grows
			// BindGroupEntry resource types for them.
			return fmt.Errorf("wgpu: descriptor kind %v: %w", w.Kind, backend.ErrUnsupported)
		}
	}
	group, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Layout:  s.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create bind group: %w", err)
	}
	s.group = group
	return nil
}
