// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package noop provides an in-memory backend that records every call it
// receives. It allocates no GPU resources and is intended for tests:
// buffers are plain host memory, encoders keep an ordered trace of the
// operations replayed against them, and barrier batches are captured
// as-is so scheduling behavior can be asserted.
//
// Register by importing the package:
//
//	import _ "github.com/gogpu/gpusched/backend/noop"
//
//	device, err := backend.New("noop", nil)
//
// Pass a *noop.Config to simulate non-coherent host memory.
package noop

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpusched/backend"
)

func init() {
	backend.Register("noop", func(config any) (backend.Device, error) {
		cfg, _ := config.(*Config)
		if cfg == nil {
			cfg = &Config{}
		}
		return NewDevice(cfg), nil
	})
}

// Config configures a noop device.
type Config struct {
	// NonCoherentBuffers makes every host-visible buffer report
	// Coherent() == false, so writes require an explicit Flush.
	NonCoherentBuffers bool
}

// Device is an in-memory backend device. The exported counters and the
// Events trace accumulate across all calls; tests reset nothing and
// simply assert on the deltas they expect.
type Device struct {
	cfg Config
	log *slog.Logger

	// Events records every device-level call in order.
	Events []string

	// Encoders lists the encoders created by NewEncoder, oldest first.
	Encoders []*Encoder

	AllocatedSets int
	FreedSets     int

	DestroyedBuffers   int
	DestroyedTextures  int
	DestroyedSamplers  int
	DestroyedLayouts   int
	DestroyedPipelines int
	DestroyedShaders   int
}

// NewDevice creates a noop device without going through the registry.
func NewDevice(cfg *Config) *Device {
	d := &Device{log: slog.New(slog.DiscardHandler)}
	if cfg != nil {
		d.cfg = *cfg
	}
	return d
}

// SetLogger implements the logger propagation hook used by gpusched.New.
func (d *Device) SetLogger(l *slog.Logger) {
	if l != nil {
		d.log = l
	}
}

func (d *Device) event(format string, args ...any) {
	d.Events = append(d.Events, fmt.Sprintf(format, args...))
}

// CreateBuffer implements backend.Device.
func (d *Device) CreateBuffer(desc *backend.BufferDescriptor) (backend.Buffer, error) {
	d.event("createBuffer(%q, %d)", desc.Label, desc.Size)
	return &Buffer{
		Label:    desc.Label,
		data:     make([]byte, desc.Size),
		visible:  desc.HostVisible,
		coherent: !d.cfg.NonCoherentBuffers,
	}, nil
}

// DestroyBuffer implements backend.Device.
func (d *Device) DestroyBuffer(buf backend.Buffer) {
	d.event("destroyBuffer(%q)", buf.(*Buffer).Label)
	d.DestroyedBuffers++
}

// CreateTexture implements backend.Device.
func (d *Device) CreateTexture(desc *backend.TextureDescriptor) (backend.Texture, error) {
	d.event("createTexture(%q)", desc.Label)
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}
	return &Texture{Label: desc.Label, format: desc.Format, size: desc.Size, mips: mips}, nil
}

// DestroyTexture implements backend.Device.
func (d *Device) DestroyTexture(tex backend.Texture) {
	d.event("destroyTexture(%q)", tex.(*Texture).Label)
	d.DestroyedTextures++
}

// CreateSampler implements backend.Device.
func (d *Device) CreateSampler(desc *backend.SamplerDescriptor) (backend.Sampler, error) {
	d.event("createSampler(%q)", desc.Label)
	return &Sampler{Label: desc.Label}, nil
}

// DestroySampler implements backend.Device.
func (d *Device) DestroySampler(backend.Sampler) {
	d.event("destroySampler")
	d.DestroyedSamplers++
}

// CreateShaderModule implements backend.Device.
func (d *Device) CreateShaderModule(desc *backend.ShaderModuleDescriptor) (backend.ShaderModule, error) {
	d.event("createShaderModule(%q)", desc.Label)
	return &ShaderModule{Label: desc.Label, WGSL: desc.WGSL}, nil
}

// DestroyShaderModule implements backend.Device.
func (d *Device) DestroyShaderModule(backend.ShaderModule) {
	d.event("destroyShaderModule")
	d.DestroyedShaders++
}

// CreateDescriptorSetLayout implements backend.Device.
func (d *Device) CreateDescriptorSetLayout(desc *backend.DescriptorSetLayoutDescriptor) (backend.DescriptorSetLayout, error) {
	d.event("createDescriptorSetLayout(%q)", desc.Label)
	return &DescriptorSetLayout{Label: desc.Label, Bindings: desc.Bindings}, nil
}

// DestroyDescriptorSetLayout implements backend.Device.
func (d *Device) DestroyDescriptorSetLayout(backend.DescriptorSetLayout) {
	d.event("destroyDescriptorSetLayout")
	d.DestroyedLayouts++
}

// AllocateDescriptorSet implements backend.Device.
func (d *Device) AllocateDescriptorSet(layout backend.DescriptorSetLayout) (backend.DescriptorSet, error) {
	d.event("allocateDescriptorSet")
	d.AllocatedSets++
	return &DescriptorSet{Layout: layout}, nil
}

// FreeDescriptorSet implements backend.Device.
func (d *Device) FreeDescriptorSet(backend.DescriptorSet) {
	d.event("freeDescriptorSet")
	d.FreedSets++
}

// CreateRenderPipeline implements backend.Device.
func (d *Device) CreateRenderPipeline(desc *backend.RenderPipelineDescriptor) (backend.Pipeline, error) {
	d.event("createRenderPipeline(%q)", desc.Label)
	return &Pipeline{Label: desc.Label}, nil
}

// CreateComputePipeline implements backend.Device.
func (d *Device) CreateComputePipeline(desc *backend.ComputePipelineDescriptor) (backend.Pipeline, error) {
	d.event("createComputePipeline(%q)", desc.Label)
	return &Pipeline{Label: desc.Label, Compute: true}, nil
}

// DestroyPipeline implements backend.Device.
func (d *Device) DestroyPipeline(backend.Pipeline) {
	d.event("destroyPipeline")
	d.DestroyedPipelines++
}

// NewEncoder implements backend.Device.
func (d *Device) NewEncoder(label string) (backend.Encoder, error) {
	d.log.Debug("noop: new encoder", "label", label)
	enc := &Encoder{Label: label}
	d.Encoders = append(d.Encoders, enc)
	return enc, nil
}

// Buffer is host memory posing as a GPU buffer.
type Buffer struct {
	Label string

	data     []byte
	visible  bool
	coherent bool

	// Flushes counts explicit Flush calls.
	Flushes int
}

// Size implements backend.Buffer.
func (b *Buffer) Size() uint64 { return uint64(len(b.data)) }

// Map implements backend.Buffer.
func (b *Buffer) Map() ([]byte, error) {
	if !b.visible {
		return nil, fmt.Errorf("noop: buffer %q is not host visible", b.Label)
	}
	return b.data, nil
}

// Coherent implements backend.Buffer.
func (b *Buffer) Coherent() bool { return b.coherent }

// Flush implements backend.Buffer.
func (b *Buffer) Flush() error {
	b.Flushes++
	return nil
}

// Data returns the buffer contents for assertions.
func (b *Buffer) Data() []byte { return b.data }

// Texture is a noop texture.
type Texture struct {
	Label string

	format gputypes.TextureFormat
	size   gputypes.Extent3D
	mips   uint32
}

// Format implements backend.Texture.
func (t *Texture) Format() gputypes.TextureFormat { return t.format }

// Size implements backend.Texture.
func (t *Texture) Size() gputypes.Extent3D { return t.size }

// MipLevels implements backend.Texture.
func (t *Texture) MipLevels() uint32 { return t.mips }

// Sampler is a noop sampler.
type Sampler struct{ Label string }

// ShaderModule is a noop shader module.
type ShaderModule struct {
	Label string
	WGSL  string
}

// DescriptorSetLayout is a noop descriptor set layout.
type DescriptorSetLayout struct {
	Label    string
	Bindings []backend.DescriptorBindingLayout
}

// Pipeline is a noop pipeline.
type Pipeline struct {
	Label   string
	Compute bool
}

// DescriptorSet records the writes applied to it.
type DescriptorSet struct {
	Layout backend.DescriptorSetLayout
	Writes []backend.DescriptorWrite
}

// Write implements backend.DescriptorSet.
func (s *DescriptorSet) Write(writes []backend.DescriptorWrite) error {
	s.Writes = append(s.Writes, writes...)
	return nil
}

// Encoder records replayed operations. Ops is a human-readable trace in
// replay order; BarrierBatches keeps each InsertBarriers call verbatim
// so batching can be asserted structurally.
type Encoder struct {
	Label string

	Ops            []string
	BarrierBatches []backend.PipelineBarriers
}

func (e *Encoder) op(format string, args ...any) {
	e.Ops = append(e.Ops, fmt.Sprintf(format, args...))
}

// InsertBarriers implements backend.Encoder.
func (e *Encoder) InsertBarriers(b *backend.PipelineBarriers) {
	batch := backend.PipelineBarriers{
		Buffers:  append([]backend.BufferBarrier(nil), b.Buffers...),
		Textures: append([]backend.TextureBarrier(nil), b.Textures...),
	}
	e.BarrierBatches = append(e.BarrierBatches, batch)
	e.op("barriers(buffers=%d, textures=%d)", len(batch.Buffers), len(batch.Textures))
}

// CopyBufferToBuffer implements backend.Encoder. The copy is performed
// on the host data so uploads are observable.
func (e *Encoder) CopyBufferToBuffer(src backend.Buffer, srcOffset uint64, dst backend.Buffer, dstOffset, size uint64) error {
	s := src.(*Buffer)
	d := dst.(*Buffer)
	copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	e.op("copyBufferToBuffer(%q, %q, %d)", s.Label, d.Label, size)
	return nil
}

// CopyBufferToTexture implements backend.Encoder.
func (e *Encoder) CopyBufferToTexture(src backend.Buffer, layout backend.ImageDataLayout, dst backend.TextureMip, origin gputypes.Origin3D, size gputypes.Extent3D) error {
	e.op("copyBufferToTexture(%q, %q, mip=%d)", src.(*Buffer).Label, dst.Texture.(*Texture).Label, dst.MipLevel)
	return nil
}

// CopyTextureToTexture implements backend.Encoder.
func (e *Encoder) CopyTextureToTexture(src, dst backend.TextureMip, size gputypes.Extent3D) error {
	e.op("copyTextureToTexture(%q, mip=%d, %q, mip=%d)",
		src.Texture.(*Texture).Label, src.MipLevel,
		dst.Texture.(*Texture).Label, dst.MipLevel)
	return nil
}

// BeginRenderPass implements backend.Encoder.
func (e *Encoder) BeginRenderPass(desc *backend.RenderPassDescriptor) (backend.RenderPassEncoder, error) {
	e.op("beginRenderPass(%q, colors=%d)", desc.Label, len(desc.ColorAttachments))
	return &renderPassEncoder{passOps{enc: e}}, nil
}

// BeginComputePass implements backend.Encoder.
func (e *Encoder) BeginComputePass(desc *backend.ComputePassDescriptor) (backend.ComputePassEncoder, error) {
	e.op("beginComputePass(%q)", desc.Label)
	return &computePassEncoder{passOps{enc: e}}, nil
}

// passOps holds the trace methods shared by both pass encoders; the
// operations land in the parent encoder's trace.
type passOps struct {
	enc *Encoder
}

func (p *passOps) SetPipeline(pl backend.Pipeline) {
	p.enc.op("setPipeline(%q)", pl.(*Pipeline).Label)
}

func (p *passOps) SetDescriptorSet(group uint32, set backend.DescriptorSet) {
	p.enc.op("setDescriptorSet(%d)", group)
}

func (p *passOps) End() {
	p.enc.op("endPass")
}

type renderPassEncoder struct {
	passOps
}

func (p *renderPassEncoder) SetPushConstants(stages gputypes.ShaderStage, offset uint32, data []byte) {
	p.enc.op("setPushConstants(%d, %d)", offset, len(data))
}

func (p *renderPassEncoder) SetIndexBuffer(buf backend.Buffer, format backend.IndexFormat) {
	p.enc.op("setIndexBuffer(%q)", buf.(*Buffer).Label)
}

func (p *renderPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.enc.op("draw(%d, %d, %d, %d)", vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *renderPassEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.enc.op("drawIndexed(%d, %d, %d, %d, %d)", indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *renderPassEncoder) DrawIndirect(buf backend.Buffer, offset uint64, drawCount, stride uint32) {
	p.enc.op("drawIndirect(%q, %d, %d)", buf.(*Buffer).Label, offset, drawCount)
}

func (p *renderPassEncoder) DrawMeshTasks(x, y, z uint32) {
	p.enc.op("drawMeshTasks(%d, %d, %d)", x, y, z)
}

type computePassEncoder struct {
	passOps
}

func (p *computePassEncoder) SetPushConstants(offset uint32, data []byte) {
	p.enc.op("setPushConstants(%d, %d)", offset, len(data))
}

func (p *computePassEncoder) Dispatch(x, y, z uint32) {
	p.enc.op("dispatch(%d, %d, %d)", x, y, z)
}
