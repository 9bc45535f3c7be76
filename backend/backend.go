// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend defines the contract between the command scheduler and
// a native GPU API.
//
// A backend supplies a Device that creates raw resources and command
// Encoders. The scheduler resolves its own resource handles to the
// backend objects returned here and replays scheduled work against a
// single Encoder per frame. Descriptor vocabulary (formats, usages, load
// and store ops) comes from github.com/gogpu/gputypes so that backends
// built on WebGPU-family APIs can pass most values straight through.
//
// Backend implementations register themselves by name via Register,
// following the database/sql driver pattern:
//
//	import _ "github.com/gogpu/gpusched/backend/noop"
//
//	device, err := backend.New("noop", nil)
package backend

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// ErrUnsupported is returned by backends for operations the underlying
// native API does not expose. Wrap it with fmt.Errorf("...: %w", ...) so
// callers can test with errors.Is.
var ErrUnsupported = errors.New("backend: operation not supported")

// Device creates and destroys native GPU resources.
//
// All Create methods return an error on allocation failure. The
// scheduler defers Destroy calls through its deletion queue until
// previously submitted work can no longer reference the resource.
type Device interface {
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	DestroyBuffer(buf Buffer)

	CreateTexture(desc *TextureDescriptor) (Texture, error)
	DestroyTexture(tex Texture)

	CreateSampler(desc *SamplerDescriptor) (Sampler, error)
	DestroySampler(s Sampler)

	CreateShaderModule(desc *ShaderModuleDescriptor) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)

	CreateDescriptorSetLayout(desc *DescriptorSetLayoutDescriptor) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)

	// AllocateDescriptorSet allocates an empty descriptor set with the
	// given layout. Bindings are populated with DescriptorSet.Write.
	AllocateDescriptorSet(layout DescriptorSetLayout) (DescriptorSet, error)
	FreeDescriptorSet(set DescriptorSet)

	CreateRenderPipeline(desc *RenderPipelineDescriptor) (Pipeline, error)
	CreateComputePipeline(desc *ComputePipelineDescriptor) (Pipeline, error)
	DestroyPipeline(p Pipeline)

	// NewEncoder begins recording a new command encoder.
	NewEncoder(label string) (Encoder, error)
}

// Buffer is a native GPU buffer.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() uint64

	// Map returns the buffer's host-visible memory. It fails for buffers
	// created without HostVisible.
	Map() ([]byte, error)

	// Coherent reports whether writes through Map are visible to the
	// device without an explicit Flush.
	Coherent() bool

	// Flush makes writes through Map visible to the device. It is a
	// no-op for coherent buffers.
	Flush() error
}

// Texture is a native GPU texture.
type Texture interface {
	Format() gputypes.TextureFormat
	Size() gputypes.Extent3D
	MipLevels() uint32
}

// Sampler is an opaque native sampler object.
type Sampler interface{}

// ShaderModule is an opaque compiled shader object.
type ShaderModule interface{}

// DescriptorSetLayout is an opaque native descriptor set layout.
type DescriptorSetLayout interface{}

// Pipeline is an opaque native render or compute pipeline.
type Pipeline interface{}

// DescriptorSet is a native descriptor set. Write populates bindings
// after allocation and before first use.
type DescriptorSet interface {
	Write(writes []DescriptorWrite) error
}

// Encoder records GPU commands in submission order.
//
// The scheduler emits all barriers separating two dependency rounds as a
// single InsertBarriers call, so implementations should translate one
// call into one native barrier command.
type Encoder interface {
	InsertBarriers(b *PipelineBarriers)

	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64) error
	CopyBufferToTexture(src Buffer, layout ImageDataLayout, dst TextureMip, origin gputypes.Origin3D, size gputypes.Extent3D) error
	CopyTextureToTexture(src, dst TextureMip, size gputypes.Extent3D) error

	BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error)
	BeginComputePass(desc *ComputePassDescriptor) (ComputePassEncoder, error)
}

// RenderPassEncoder records draw commands inside a render pass.
type RenderPassEncoder interface {
	SetPipeline(p Pipeline)
	SetDescriptorSet(group uint32, set DescriptorSet)
	SetPushConstants(stages gputypes.ShaderStage, offset uint32, data []byte)
	SetIndexBuffer(buf Buffer, format IndexFormat)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	DrawIndirect(buf Buffer, offset uint64, drawCount, stride uint32)
	DrawMeshTasks(x, y, z uint32)
	End()
}

// ComputePassEncoder records dispatches inside a compute pass.
type ComputePassEncoder interface {
	SetPipeline(p Pipeline)
	SetDescriptorSet(group uint32, set DescriptorSet)
	SetPushConstants(offset uint32, data []byte)
	Dispatch(x, y, z uint32)
	End()
}

// PipelineBarriers is a batch of memory barriers inserted as one native
// command.
type PipelineBarriers struct {
	Buffers  []BufferBarrier
	Textures []TextureBarrier
}

// BufferBarrier transitions a buffer between access states.
type BufferBarrier struct {
	Buffer    Buffer
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

// TextureBarrier transitions a texture mip range between access states.
type TextureBarrier struct {
	Texture       Texture
	BaseMipLevel  uint32
	MipLevelCount uint32
	SrcAccess     AccessFlags
	DstAccess     AccessFlags
}

// TextureMip identifies a single mip level of a texture for copy
// operations.
type TextureMip struct {
	Texture  Texture
	MipLevel uint32
}

// TextureMipRange identifies a range of mip levels for descriptor
// bindings. A MipLevelCount of 0 selects all remaining levels.
type TextureMipRange struct {
	Texture       Texture
	BaseMipLevel  uint32
	MipLevelCount uint32
}

// ImageDataLayout describes the memory layout of texture data inside a
// buffer.
type ImageDataLayout struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
}

// IndexFormat specifies the size of index buffer elements.
type IndexFormat uint32

// Index formats.
const (
	IndexFormatUint16 IndexFormat = 0
	IndexFormatUint32 IndexFormat = 1
)

// Bytes returns the size of one index element.
func (f IndexFormat) Bytes() uint64 {
	if f == IndexFormatUint16 {
		return 2
	}
	return 4
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage

	// HostVisible requests memory that can be mapped with Buffer.Map.
	HostVisible bool
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	Label     string
	Size      gputypes.Extent3D
	Format    gputypes.TextureFormat
	Usage     gputypes.TextureUsage
	MipLevels uint32
}

// FilterMode specifies texture sampling interpolation.
type FilterMode uint8

// Filter modes.
const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

// AddressMode specifies how texture coordinates outside [0, 1] are
// resolved.
type AddressMode uint8

// Address modes.
const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
	AddressModeMirrorRepeat
)

// SamplerDescriptor describes a sampler to create.
type SamplerDescriptor struct {
	Label        string
	MinFilter    FilterMode
	MagFilter    FilterMode
	MipmapFilter FilterMode
	AddressModeU AddressMode
	AddressModeV AddressMode
	AddressModeW AddressMode

	// Compare enables a comparison sampler when non-zero.
	Compare gputypes.CompareFunction
}

// ShaderModuleDescriptor describes a shader module to compile.
type ShaderModuleDescriptor struct {
	Label string

	// WGSL is the shader source.
	WGSL string
}

// DescriptorKind specifies the resource type of a descriptor binding.
type DescriptorKind uint8

// Descriptor kinds.
const (
	DescriptorUniformBuffer DescriptorKind = iota + 1
	DescriptorStorageBuffer
	DescriptorSampler
	DescriptorTexture
	DescriptorTextureArray
)

// descriptorKindNames maps DescriptorKind values to their string
// representation.
var descriptorKindNames = [...]string{
	DescriptorUniformBuffer: "UniformBuffer",
	DescriptorStorageBuffer: "StorageBuffer",
	DescriptorSampler:       "Sampler",
	DescriptorTexture:       "Texture",
	DescriptorTextureArray:  "TextureArray",
}

// String returns the string representation of a DescriptorKind.
func (k DescriptorKind) String() string {
	if int(k) < len(descriptorKindNames) && descriptorKindNames[k] != "" {
		return descriptorKindNames[k]
	}
	return "Unknown"
}

// DescriptorBindingLayout describes one binding slot in a descriptor set
// layout.
type DescriptorBindingLayout struct {
	Binding uint32
	Kind    DescriptorKind

	// Count is the array length for DescriptorTextureArray bindings.
	// Zero means one.
	Count uint32

	// Stages is the set of shader stages that access the binding.
	Stages gputypes.ShaderStage
}

// DescriptorSetLayoutDescriptor describes a descriptor set layout.
type DescriptorSetLayoutDescriptor struct {
	Label    string
	Bindings []DescriptorBindingLayout
}

// DescriptorWrite populates one binding of a descriptor set. Exactly one
// of Buffer, Sampler, or Textures is used depending on Kind.
type DescriptorWrite struct {
	Binding  uint32
	Kind     DescriptorKind
	Buffer   Buffer
	Sampler  Sampler
	Textures []TextureMipRange
}

// ShaderStageDescriptor references a shader entry point.
type ShaderStageDescriptor struct {
	Module     ShaderModule
	EntryPoint string
}

// RenderPipelineDescriptor describes a render pipeline.
type RenderPipelineDescriptor struct {
	Label string

	Vertex   ShaderStageDescriptor
	Fragment ShaderStageDescriptor

	Layouts            []DescriptorSetLayout
	PushConstantSize   uint32
	PushConstantStages gputypes.ShaderStage

	Topology  gputypes.PrimitiveTopology
	FrontFace gputypes.FrontFace
	CullMode  gputypes.CullMode

	ColorFormats []gputypes.TextureFormat

	// DepthFormat enables depth testing when non-zero.
	DepthFormat  gputypes.TextureFormat
	DepthWrite   bool
	DepthCompare gputypes.CompareFunction
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label string

	Compute ShaderStageDescriptor

	Layouts          []DescriptorSetLayout
	PushConstantSize uint32
}

// ColorAttachmentDescriptor describes one color target of a render pass.
type ColorAttachmentDescriptor struct {
	Texture    Texture
	MipLevel   uint32
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	ClearColor gputypes.Color
}

// DepthStencilAttachmentDescriptor describes the depth/stencil target of
// a render pass.
type DepthStencilAttachmentDescriptor struct {
	Texture    Texture
	MipLevel   uint32
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	ClearDepth float32
}

// RenderPassDescriptor describes a render pass with resolved native
// attachments.
type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []ColorAttachmentDescriptor
	DepthStencil     *DepthStencilAttachmentDescriptor
}

// ComputePassDescriptor describes a compute pass.
type ComputePassDescriptor struct {
	Label string
}
