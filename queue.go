// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpusched/backend"
	"github.com/gogpu/gputypes"
)

// ShaderBinding declares one binding a pipeline's shader stage accesses.
// The scheduler cannot reflect over shader code, so pipelines carry
// their binding usage explicitly; it becomes the access derived for
// resources bound at that location.
type ShaderBinding struct {
	Group   uint32
	Binding uint32

	// Writable marks storage bindings the stage writes.
	Writable bool
}

// RenderPipelineDescriptor describes a render pipeline.
type RenderPipelineDescriptor struct {
	Label string

	Vertex   backend.ShaderStageDescriptor
	Fragment backend.ShaderStageDescriptor

	// VertexBindings and FragmentBindings list the descriptor bindings
	// each stage accesses.
	VertexBindings   []ShaderBinding
	FragmentBindings []ShaderBinding

	Layouts            []DescriptorSetLayoutID
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

	Compute backend.ShaderStageDescriptor

	// Bindings lists the descriptor bindings the compute stage accesses.
	Bindings []ShaderBinding

	Layouts          []DescriptorSetLayoutID
	PushConstantSize uint32
}

// CommandQueue is the recording API of a CommandExecutor. Resource
// creation registers backend objects under scheduler-owned handles;
// write, copy, and pass methods append commands to the frame's stream.
//
// Methods panic on invalid recordings (out of bounds writes, missing
// usage flags, draws without a pipeline). Such mistakes are programmer
// errors, not runtime conditions, and would otherwise surface as
// undefined behavior on the device.
type CommandQueue struct {
	exec *CommandExecutor
}

// record pushes a command and takes the references its derived accesses
// imply. The counts are moved into TemporaryResources at Execute and
// returned by Destroy.
func (q *CommandQueue) record(cmd Command) {
	s := q.exec.stream
	s.Push(q.exec.registry, cmd)
	q.retainRecorded(s.Len() - 1)
}

func (q *CommandQueue) retainRecorded(i int) {
	r := q.exec.registry
	for _, ra := range q.exec.stream.CommandAccesses(i) {
		if ra.Resource.IsBuffer() {
			r.retainBuffer(ra.Resource.Buffer(), 1)
		} else {
			tex, _ := ra.Resource.Texture()
			r.retainTexture(tex, 1)
		}
	}

	var passCmds []PassCommand
	switch c := q.exec.stream.Command(i).(type) {
	case RenderPassCommand:
		passCmds = c.Commands
	case ComputePassCommand:
		passCmds = c.Commands
	default:
		return
	}
	for _, pc := range passCmds {
		switch c := pc.(type) {
		case SetPipelineCommand:
			r.retainPipeline(c.Pipeline, 1)
		case SetDescriptorSetCommand:
			r.retainDescriptorSet(c.Set, 1)
		}
	}
}

// --------------------------------------------------------------------------
// Buffers
// --------------------------------------------------------------------------

// CreateBuffer creates a buffer and registers it with the scheduler.
func (q *CommandQueue) CreateBuffer(desc backend.BufferDescriptor) (BufferID, error) {
	if desc.Size == 0 {
		panic("gpusched: CreateBuffer size is zero")
	}
	buf, err := q.exec.device.CreateBuffer(&desc)
	if err != nil {
		return 0, fmt.Errorf("gpusched: create buffer: %w", err)
	}
	id := q.exec.registry.addBuffer(&bufferEntry{
		buffer:      buf,
		size:        desc.Size,
		usage:       desc.Usage,
		hostVisible: desc.HostVisible,
	})
	q.record(CreateBufferCommand{Buffer: id})
	return id, nil
}

// CreateBufferInit creates a buffer and schedules an upload of its
// initial contents. A zero desc.Size defaults to len(data).
func (q *CommandQueue) CreateBufferInit(desc backend.BufferDescriptor, data []byte) (BufferID, error) {
	if desc.Size == 0 {
		desc.Size = uint64(len(data))
	}
	if !desc.HostVisible {
		desc.Usage |= gputypes.BufferUsageCopyDst
	}
	id, err := q.CreateBuffer(desc)
	if err != nil {
		return 0, err
	}
	if err := q.WriteBuffer(id, 0, data); err != nil {
		return 0, err
	}
	return id, nil
}

// WriteBuffer schedules a host-to-device write. Host-visible buffers
// are written through their mapping when the command executes; other
// buffers go through a frame-lifetime staging buffer and a transfer.
func (q *CommandQueue) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	size, usage, hostVisible := q.bufferInfo(id)
	if offset+uint64(len(data)) > size {
		panic(fmt.Sprintf("gpusched: WriteBuffer range [%d, %d) exceeds buffer %d size %d",
			offset, offset+uint64(len(data)), id, size))
	}

	if hostVisible {
		q.record(WriteBufferCommand{Buffer: id, Offset: offset, Data: slices.Clone(data)})
		return nil
	}

	if usage&gputypes.BufferUsageCopyDst == 0 {
		panic(fmt.Sprintf("gpusched: WriteBuffer target %d is neither host visible nor CopyDst", id))
	}
	staging, err := q.stagingBuffer(data)
	if err != nil {
		return err
	}
	q.record(CopyBufferToBufferCommand{
		Src:       staging,
		SrcOffset: 0,
		Dst:       id,
		DstOffset: offset,
		Size:      uint64(len(data)),
	})
	// Drop the user handle; the recorded commands hold the staging
	// buffer until the frame is destroyed.
	q.exec.registry.releaseBuffer(staging, 1)
	return nil
}

// stagingBuffer creates a host-visible transfer source filled with data.
func (q *CommandQueue) stagingBuffer(data []byte) (BufferID, error) {
	buf, err := q.exec.device.CreateBuffer(&backend.BufferDescriptor{
		Label:       "gpusched staging",
		Size:        uint64(len(data)),
		Usage:       gputypes.BufferUsageCopySrc,
		HostVisible: true,
	})
	if err != nil {
		return 0, fmt.Errorf("gpusched: create staging buffer: %w", err)
	}
	id := q.exec.registry.addBuffer(&bufferEntry{
		buffer:      buf,
		size:        uint64(len(data)),
		usage:       gputypes.BufferUsageCopySrc,
		hostVisible: true,
	})
	q.record(WriteBufferCommand{Buffer: id, Offset: 0, Data: slices.Clone(data)})
	return id, nil
}

// CopyBufferToBuffer schedules a buffer copy. A zero size records
// nothing.
func (q *CommandQueue) CopyBufferToBuffer(src BufferID, srcOffset uint64, dst BufferID, dstOffset, size uint64) {
	if size == 0 {
		return
	}
	srcSize, srcUsage, _ := q.bufferInfo(src)
	dstSize, dstUsage, _ := q.bufferInfo(dst)
	if srcUsage&gputypes.BufferUsageCopySrc == 0 {
		panic(fmt.Sprintf("gpusched: copy source buffer %d lacks CopySrc usage", src))
	}
	if dstUsage&gputypes.BufferUsageCopyDst == 0 {
		panic(fmt.Sprintf("gpusched: copy destination buffer %d lacks CopyDst usage", dst))
	}
	if srcOffset+size > srcSize {
		panic(fmt.Sprintf("gpusched: copy source range [%d, %d) exceeds buffer %d size %d",
			srcOffset, srcOffset+size, src, srcSize))
	}
	if dstOffset+size > dstSize {
		panic(fmt.Sprintf("gpusched: copy destination range [%d, %d) exceeds buffer %d size %d",
			dstOffset, dstOffset+size, dst, dstSize))
	}
	q.record(CopyBufferToBufferCommand{
		Src: src, SrcOffset: srcOffset,
		Dst: dst, DstOffset: dstOffset,
		Size: size,
	})
}

// DestroyBuffer schedules the release of the caller's handle. The
// buffer stays alive until every frame that referenced it is destroyed.
func (q *CommandQueue) DestroyBuffer(id BufferID) {
	q.bufferInfo(id) // existence check
	q.record(DestroyBufferCommand{Buffer: id})
}

// --------------------------------------------------------------------------
// Textures
// --------------------------------------------------------------------------

// CreateTexture creates a texture and registers it with the scheduler.
// A zero desc.MipLevels defaults to one.
func (q *CommandQueue) CreateTexture(desc backend.TextureDescriptor) (TextureID, error) {
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	tex, err := q.exec.device.CreateTexture(&desc)
	if err != nil {
		return 0, fmt.Errorf("gpusched: create texture: %w", err)
	}
	id := q.exec.registry.addTexture(&textureEntry{
		texture:   tex,
		format:    desc.Format,
		usage:     desc.Usage,
		size:      desc.Size,
		mipAccess: make([]backend.AccessFlags, desc.MipLevels),
	})
	q.record(CreateTextureCommand{Texture: id, MipLevels: desc.MipLevels})
	return id, nil
}

// WriteTexture schedules an upload into one mip of a texture through a
// staging buffer.
func (q *CommandQueue) WriteTexture(id TextureID, mip uint32, origin gputypes.Origin3D, size gputypes.Extent3D, layout backend.ImageDataLayout, data []byte) error {
	usage, mips := q.textureInfo(id)
	if mip >= mips {
		panic(fmt.Sprintf("gpusched: WriteTexture mip %d out of range for texture %d with %d levels", mip, id, mips))
	}
	if usage&gputypes.TextureUsageCopyDst == 0 {
		panic(fmt.Sprintf("gpusched: WriteTexture target %d lacks CopyDst usage", id))
	}
	if len(data) == 0 {
		return nil
	}

	staging, err := q.stagingBuffer(data)
	if err != nil {
		return err
	}
	layout.Offset = 0
	q.record(CopyBufferToTextureCommand{
		Src:       staging,
		SrcLayout: layout,
		Dst:       id,
		DstMip:    mip,
		DstOrigin: origin,
		Size:      size,
	})
	q.exec.registry.releaseBuffer(staging, 1)
	return nil
}

// CopyBufferToTexture schedules a buffer-to-texture transfer.
func (q *CommandQueue) CopyBufferToTexture(src BufferID, layout backend.ImageDataLayout, dst TextureID, dstMip uint32, origin gputypes.Origin3D, size gputypes.Extent3D) {
	_, srcUsage, _ := q.bufferInfo(src)
	if srcUsage&gputypes.BufferUsageCopySrc == 0 {
		panic(fmt.Sprintf("gpusched: copy source buffer %d lacks CopySrc usage", src))
	}
	dstUsage, mips := q.textureInfo(dst)
	if dstMip >= mips {
		panic(fmt.Sprintf("gpusched: copy destination mip %d out of range for texture %d with %d levels", dstMip, dst, mips))
	}
	if dstUsage&gputypes.TextureUsageCopyDst == 0 {
		panic(fmt.Sprintf("gpusched: copy destination texture %d lacks CopyDst usage", dst))
	}
	q.record(CopyBufferToTextureCommand{
		Src:       src,
		SrcLayout: layout,
		Dst:       dst,
		DstMip:    dstMip,
		DstOrigin: origin,
		Size:      size,
	})
}

// CopyTextureToTexture schedules a copy between texture mips, typically
// for mip chain generation or texture atlas updates.
func (q *CommandQueue) CopyTextureToTexture(src TextureID, srcMip uint32, dst TextureID, dstMip uint32, size gputypes.Extent3D) {
	srcUsage, srcMips := q.textureInfo(src)
	if srcMip >= srcMips {
		panic(fmt.Sprintf("gpusched: copy source mip %d out of range for texture %d with %d levels", srcMip, src, srcMips))
	}
	if srcUsage&gputypes.TextureUsageCopySrc == 0 {
		panic(fmt.Sprintf("gpusched: copy source texture %d lacks CopySrc usage", src))
	}
	dstUsage, dstMips := q.textureInfo(dst)
	if dstMip >= dstMips {
		panic(fmt.Sprintf("gpusched: copy destination mip %d out of range for texture %d with %d levels", dstMip, dst, dstMips))
	}
	if dstUsage&gputypes.TextureUsageCopyDst == 0 {
		panic(fmt.Sprintf("gpusched: copy destination texture %d lacks CopyDst usage", dst))
	}
	q.record(CopyTextureToTextureCommand{
		Src: src, SrcMip: srcMip,
		Dst: dst, DstMip: dstMip,
		Size: size,
	})
}

// Transition forces one mip of a texture into the given access state,
// for example AccessPresent before handing a swapchain image to the
// presentation engine.
func (q *CommandQueue) Transition(id TextureID, mip uint32, access backend.AccessFlags) {
	_, mips := q.textureInfo(id)
	if mip >= mips {
		panic(fmt.Sprintf("gpusched: Transition mip %d out of range for texture %d with %d levels", mip, id, mips))
	}
	if access == backend.AccessNone {
		panic("gpusched: Transition to AccessNone")
	}
	q.record(TransitionCommand{Texture: id, Mip: mip, Access: access})
}

// DestroyTexture schedules the release of the caller's handle.
func (q *CommandQueue) DestroyTexture(id TextureID) {
	q.textureInfo(id) // existence check
	q.record(DestroyTextureCommand{Texture: id})
}

// --------------------------------------------------------------------------
// Samplers and shaders
// --------------------------------------------------------------------------

// CreateSampler creates a sampler and registers it with the scheduler.
func (q *CommandQueue) CreateSampler(desc backend.SamplerDescriptor) (SamplerID, error) {
	s, err := q.exec.device.CreateSampler(&desc)
	if err != nil {
		return 0, fmt.Errorf("gpusched: create sampler: %w", err)
	}
	return q.exec.registry.addSampler(&samplerEntry{sampler: s}), nil
}

// DestroySampler releases the caller's handle. Descriptor sets that
// reference the sampler hold their own references.
func (q *CommandQueue) DestroySampler(id SamplerID) {
	q.exec.registry.releaseSampler(id, 1)
}

// CreateShaderModule compiles a shader module. Modules are not
// reference counted: the caller owns the result and destroys it through
// the device once every pipeline using it has been created.
func (q *CommandQueue) CreateShaderModule(desc backend.ShaderModuleDescriptor) (backend.ShaderModule, error) {
	m, err := q.exec.device.CreateShaderModule(&desc)
	if err != nil {
		return nil, fmt.Errorf("gpusched: create shader module: %w", err)
	}
	return m, nil
}

// --------------------------------------------------------------------------
// Descriptor sets
// --------------------------------------------------------------------------

// CreateDescriptorSetLayout creates a layout and registers it with the
// scheduler.
func (q *CommandQueue) CreateDescriptorSetLayout(desc backend.DescriptorSetLayoutDescriptor) (DescriptorSetLayoutID, error) {
	layout, err := q.exec.device.CreateDescriptorSetLayout(&desc)
	if err != nil {
		return 0, fmt.Errorf("gpusched: create descriptor set layout: %w", err)
	}
	return q.exec.registry.addLayout(&layoutEntry{
		layout:   layout,
		bindings: slices.Clone(desc.Bindings),
	}), nil
}

// DestroyDescriptorSetLayout releases the caller's handle. Descriptor
// sets and pipelines created against the layout hold their own
// references.
func (q *CommandQueue) DestroyDescriptorSetLayout(id DescriptorSetLayoutID) {
	q.exec.registry.releaseLayout(id, 1)
}

// CreateDescriptorSet registers a descriptor set over the given layout.
// The native set is allocated and written lazily, the first time a pass
// binds it; creating sets that are never bound costs nothing on the
// device.
//
// The set takes a reference on the layout and on every bound resource,
// released together when the set's last reference goes away.
func (q *CommandQueue) CreateDescriptorSet(layout DescriptorSetLayoutID, bindings []DescriptorSetBinding) DescriptorSetID {
	r := q.exec.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	le := r.layout(layout)
	for _, b := range bindings {
		q.validateBindingLocked(r, le, b)
	}

	for _, b := range bindings {
		switch b.Kind {
		case backend.DescriptorUniformBuffer, backend.DescriptorStorageBuffer:
			r.buffer(b.Buffer).refs++
		case backend.DescriptorSampler:
			r.sampler(b.Sampler).refs++
		case backend.DescriptorTexture:
			r.texture(b.Texture.Texture).refs++
		case backend.DescriptorTextureArray:
			for _, view := range b.Textures {
				r.texture(view.Texture).refs++
			}
		}
	}
	le.refs++

	r.nextID++
	id := DescriptorSetID(r.nextID)
	r.sets[id] = &descriptorSetEntry{
		layout:   layout,
		bindings: slices.Clone(bindings),
		refs:     1,
	}
	return id
}

// validateBindingLocked checks one set binding against the layout and
// the bound resource's usage flags.
func (q *CommandQueue) validateBindingLocked(r *Registry, le *layoutEntry, b DescriptorSetBinding) {
	var decl *backend.DescriptorBindingLayout
	for i := range le.bindings {
		if le.bindings[i].Binding == b.Binding {
			decl = &le.bindings[i]
			break
		}
	}
	if decl == nil {
		panic(fmt.Sprintf("gpusched: descriptor binding %d not declared in layout", b.Binding))
	}
	if decl.Kind != b.Kind {
		panic(fmt.Sprintf("gpusched: descriptor binding %d is %v, layout declares %v", b.Binding, b.Kind, decl.Kind))
	}

	switch b.Kind {
	case backend.DescriptorUniformBuffer:
		if r.buffer(b.Buffer).usage&gputypes.BufferUsageUniform == 0 {
			panic(fmt.Sprintf("gpusched: buffer %d bound as uniform lacks Uniform usage", b.Buffer))
		}
	case backend.DescriptorStorageBuffer:
		if r.buffer(b.Buffer).usage&gputypes.BufferUsageStorage == 0 {
			panic(fmt.Sprintf("gpusched: buffer %d bound as storage lacks Storage usage", b.Buffer))
		}
	case backend.DescriptorSampler:
		r.sampler(b.Sampler)
	case backend.DescriptorTexture:
		q.validateTextureViewLocked(r, b.Texture)
	case backend.DescriptorTextureArray:
		count := decl.Count
		if count == 0 {
			count = 1
		}
		if uint32(len(b.Textures)) > count {
			panic(fmt.Sprintf("gpusched: descriptor binding %d holds %d textures, layout allows %d",
				b.Binding, len(b.Textures), count))
		}
		for _, view := range b.Textures {
			q.validateTextureViewLocked(r, view)
		}
	}
}

func (q *CommandQueue) validateTextureViewLocked(r *Registry, view TextureView) {
	e := r.texture(view.Texture)
	bindable := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageStorageBinding
	if e.usage&bindable == 0 {
		panic(fmt.Sprintf("gpusched: texture %d bound in a descriptor set lacks binding usage", view.Texture))
	}
	mips := uint32(len(e.mipAccess))
	if view.BaseMip >= mips || view.BaseMip+view.MipCount > mips {
		panic(fmt.Sprintf("gpusched: texture view mips [%d, %d) out of range for texture %d with %d levels",
			view.BaseMip, view.BaseMip+view.MipCount, view.Texture, mips))
	}
}

// DestroyDescriptorSet releases the caller's handle. Frames that bound
// the set hold their own references until destroyed.
func (q *CommandQueue) DestroyDescriptorSet(id DescriptorSetID) {
	q.exec.registry.releaseDescriptorSet(id, 1)
}

// --------------------------------------------------------------------------
// Pipelines
// --------------------------------------------------------------------------

// CreateRenderPipeline creates a render pipeline. The stage binding
// declarations become the pipeline's access map: resources bound at a
// declared location are scheduled with the matching shader access.
func (q *CommandQueue) CreateRenderPipeline(desc RenderPipelineDescriptor) (PipelineID, error) {
	layouts := q.nativeLayouts(desc.Layouts)

	p, err := q.exec.device.CreateRenderPipeline(&backend.RenderPipelineDescriptor{
		Label:              desc.Label,
		Vertex:             desc.Vertex,
		Fragment:           desc.Fragment,
		Layouts:            layouts,
		PushConstantSize:   desc.PushConstantSize,
		PushConstantStages: desc.PushConstantStages,
		Topology:           desc.Topology,
		FrontFace:          desc.FrontFace,
		CullMode:           desc.CullMode,
		ColorFormats:       desc.ColorFormats,
		DepthFormat:        desc.DepthFormat,
		DepthWrite:         desc.DepthWrite,
		DepthCompare:       desc.DepthCompare,
	})
	if err != nil {
		return 0, fmt.Errorf("gpusched: create render pipeline: %w", err)
	}

	bindings := make(BindingMap)
	for _, sb := range desc.VertexBindings {
		access := backend.AccessVertexShaderRead
		if sb.Writable {
			access |= backend.AccessVertexShaderWrite
		}
		bindings.insert(sb.Group, sb.Binding, access)
	}
	for _, sb := range desc.FragmentBindings {
		access := backend.AccessFragmentShaderRead
		if sb.Writable {
			access |= backend.AccessFragmentShaderWrite
		}
		bindings.insert(sb.Group, sb.Binding, access)
	}

	return q.registerPipeline(&pipelineEntry{
		pipeline:           p,
		bindings:           bindings,
		layouts:            slices.Clone(desc.Layouts),
		pushConstantSize:   desc.PushConstantSize,
		pushConstantStages: desc.PushConstantStages,
	}), nil
}

// CreateComputePipeline creates a compute pipeline.
func (q *CommandQueue) CreateComputePipeline(desc ComputePipelineDescriptor) (PipelineID, error) {
	layouts := q.nativeLayouts(desc.Layouts)

	p, err := q.exec.device.CreateComputePipeline(&backend.ComputePipelineDescriptor{
		Label:            desc.Label,
		Compute:          desc.Compute,
		Layouts:          layouts,
		PushConstantSize: desc.PushConstantSize,
	})
	if err != nil {
		return 0, fmt.Errorf("gpusched: create compute pipeline: %w", err)
	}

	bindings := make(BindingMap)
	for _, sb := range desc.Bindings {
		access := backend.AccessShaderRead
		if sb.Writable {
			access |= backend.AccessShaderWrite
		}
		bindings.insert(sb.Group, sb.Binding, access)
	}

	return q.registerPipeline(&pipelineEntry{
		pipeline:           p,
		bindings:           bindings,
		layouts:            slices.Clone(desc.Layouts),
		pushConstantSize:   desc.PushConstantSize,
		pushConstantStages: gputypes.ShaderStageCompute,
		compute:            true,
	}), nil
}

func (q *CommandQueue) nativeLayouts(ids []DescriptorSetLayoutID) []backend.DescriptorSetLayout {
	r := q.exec.registry
	r.mu.RLock()
	defer r.mu.RUnlock()

	layouts := make([]backend.DescriptorSetLayout, len(ids))
	for i, id := range ids {
		layouts[i] = r.layout(id).layout
	}
	return layouts
}

func (q *CommandQueue) registerPipeline(e *pipelineEntry) PipelineID {
	r := q.exec.registry
	for _, layout := range e.layouts {
		r.retainLayout(layout, 1)
	}
	return r.addPipeline(e)
}

// DestroyPipeline releases the caller's handle. Frames that bound the
// pipeline hold their own references until destroyed.
func (q *CommandQueue) DestroyPipeline(id PipelineID) {
	q.exec.registry.releasePipeline(id, 1)
}

// --------------------------------------------------------------------------
// Registry info helpers
// --------------------------------------------------------------------------

func (q *CommandQueue) bufferInfo(id BufferID) (size uint64, usage gputypes.BufferUsage, hostVisible bool) {
	r := q.exec.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.buffer(id)
	return e.size, e.usage, e.hostVisible
}

func (q *CommandQueue) textureInfo(id TextureID) (usage gputypes.TextureUsage, mips uint32) {
	r := q.exec.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.texture(id)
	return e.usage, uint32(len(e.mipAccess))
}
