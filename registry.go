// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"fmt"
	"sync"

	"github.com/gogpu/gpusched/backend"
	"github.com/gogpu/gputypes"
)

// DeletionKind identifies the resource category of a DeletionEvent.
type DeletionKind uint8

// Deletion kinds.
const (
	DeletionBuffer DeletionKind = iota + 1
	DeletionTexture
	DeletionSampler
	DeletionDescriptorSetLayout
	DeletionDescriptorSet
	DeletionPipeline
)

// DeletionEvent carries a native resource whose last reference was
// released. The registry entry is already gone when the event is
// queued; the consumer destroys the native object once the GPU can no
// longer reference it (typically after the frame fence signals).
type DeletionEvent struct {
	Kind     DeletionKind
	Buffer   backend.Buffer
	Texture  backend.Texture
	Sampler  backend.Sampler
	Layout   backend.DescriptorSetLayout
	Set      backend.DescriptorSet
	Pipeline backend.Pipeline
}

// DescriptorSetBinding describes one binding of a descriptor set at
// creation time. Exactly one of Buffer, Sampler, Texture, or Textures is
// used depending on Kind.
type DescriptorSetBinding struct {
	Binding  uint32
	Kind     backend.DescriptorKind
	Buffer   BufferID
	Sampler  SamplerID
	Texture  TextureView
	Textures []TextureView
}

// Registry owns all resources known to a CommandExecutor: the native
// backend objects, their reference counts, and the per-resource access
// state the scheduler compares against.
//
// Reference counting starts at one for the user handle. Recorded
// commands take additional references that are returned through
// TemporaryResources once the frame completes. When a count reaches
// zero the entry is removed and a DeletionEvent is queued.
type Registry struct {
	mu sync.RWMutex

	buffers   map[BufferID]*bufferEntry
	textures  map[TextureID]*textureEntry
	samplers  map[SamplerID]*samplerEntry
	layouts   map[DescriptorSetLayoutID]*layoutEntry
	sets      map[DescriptorSetID]*descriptorSetEntry
	pipelines map[PipelineID]*pipelineEntry

	nextID    uint64
	deletions []DeletionEvent
}

type bufferEntry struct {
	buffer      backend.Buffer
	size        uint64
	usage       gputypes.BufferUsage
	hostVisible bool
	access      backend.AccessFlags
	refs        int
}

type textureEntry struct {
	texture   backend.Texture
	format    gputypes.TextureFormat
	usage     gputypes.TextureUsage
	size      gputypes.Extent3D
	mipAccess []backend.AccessFlags
	refs      int
}

type samplerEntry struct {
	sampler backend.Sampler
	refs    int
}

type layoutEntry struct {
	layout   backend.DescriptorSetLayout
	bindings []backend.DescriptorBindingLayout
	refs     int
}

type descriptorSetEntry struct {
	layout   DescriptorSetLayoutID
	bindings []DescriptorSetBinding

	// native is materialized lazily on first use by the executor.
	native backend.DescriptorSet

	refs int
}

type pipelineEntry struct {
	pipeline           backend.Pipeline
	bindings           BindingMap
	layouts            []DescriptorSetLayoutID
	pushConstantSize   uint32
	pushConstantStages gputypes.ShaderStage
	compute            bool
	refs               int
}

func newRegistry() *Registry {
	return &Registry{
		buffers:   make(map[BufferID]*bufferEntry),
		textures:  make(map[TextureID]*textureEntry),
		samplers:  make(map[SamplerID]*samplerEntry),
		layouts:   make(map[DescriptorSetLayoutID]*layoutEntry),
		sets:      make(map[DescriptorSetID]*descriptorSetEntry),
		pipelines: make(map[PipelineID]*pipelineEntry),
	}
}

// Access returns the current access state of a resource. It implements
// ResourceMap for the scheduler.
//
// Access panics if the resource is unknown; a command referencing a
// released resource is a bug in the caller's handle management.
func (r *Registry) Access(id ResourceID) backend.AccessFlags {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id.IsBuffer() {
		return r.buffer(id.Buffer()).access
	}
	tex, mip := id.Texture()
	e := r.texture(tex)
	if int(mip) >= len(e.mipAccess) {
		panic(fmt.Sprintf("gpusched: texture %d has no mip %d", tex, mip))
	}
	return e.mipAccess[mip]
}

// SetAccess records the access state of a resource. It implements
// ResourceMap for the scheduler.
func (r *Registry) SetAccess(id ResourceID, access backend.AccessFlags) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id.IsBuffer() {
		r.buffer(id.Buffer()).access = access
		return
	}
	tex, mip := id.Texture()
	e := r.texture(tex)
	if int(mip) >= len(e.mipAccess) {
		panic(fmt.Sprintf("gpusched: texture %d has no mip %d", tex, mip))
	}
	e.mipAccess[mip] = access
}

// DrainDeletions returns all queued deletion events and empties the
// queue. The caller owns the returned slice.
func (r *Registry) DrainDeletions() []DeletionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.deletions
	r.deletions = nil
	return events
}

// --------------------------------------------------------------------------
// Entry lookup. Callers must hold r.mu.
// --------------------------------------------------------------------------

func (r *Registry) buffer(id BufferID) *bufferEntry {
	e, ok := r.buffers[id]
	if !ok {
		panic(fmt.Sprintf("gpusched: unknown buffer %d", id))
	}
	return e
}

func (r *Registry) texture(id TextureID) *textureEntry {
	e, ok := r.textures[id]
	if !ok {
		panic(fmt.Sprintf("gpusched: unknown texture %d", id))
	}
	return e
}

func (r *Registry) sampler(id SamplerID) *samplerEntry {
	e, ok := r.samplers[id]
	if !ok {
		panic(fmt.Sprintf("gpusched: unknown sampler %d", id))
	}
	return e
}

func (r *Registry) layout(id DescriptorSetLayoutID) *layoutEntry {
	e, ok := r.layouts[id]
	if !ok {
		panic(fmt.Sprintf("gpusched: unknown descriptor set layout %d", id))
	}
	return e
}

func (r *Registry) descriptorSet(id DescriptorSetID) *descriptorSetEntry {
	e, ok := r.sets[id]
	if !ok {
		panic(fmt.Sprintf("gpusched: unknown descriptor set %d", id))
	}
	return e
}

func (r *Registry) pipeline(id PipelineID) *pipelineEntry {
	e, ok := r.pipelines[id]
	if !ok {
		panic(fmt.Sprintf("gpusched: unknown pipeline %d", id))
	}
	return e
}

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

func (r *Registry) addBuffer(e *bufferEntry) BufferID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := BufferID(r.nextID)
	e.refs = 1
	r.buffers[id] = e
	return id
}

func (r *Registry) addTexture(e *textureEntry) TextureID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := TextureID(r.nextID)
	e.refs = 1
	r.textures[id] = e
	return id
}

func (r *Registry) addSampler(e *samplerEntry) SamplerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := SamplerID(r.nextID)
	e.refs = 1
	r.samplers[id] = e
	return id
}

func (r *Registry) addLayout(e *layoutEntry) DescriptorSetLayoutID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := DescriptorSetLayoutID(r.nextID)
	e.refs = 1
	r.layouts[id] = e
	return id
}

func (r *Registry) addDescriptorSet(e *descriptorSetEntry) DescriptorSetID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := DescriptorSetID(r.nextID)
	e.refs = 1
	r.sets[id] = e
	return id
}

func (r *Registry) addPipeline(e *pipelineEntry) PipelineID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := PipelineID(r.nextID)
	e.refs = 1
	r.pipelines[id] = e
	return id
}

// --------------------------------------------------------------------------
// Reference counting
// --------------------------------------------------------------------------

func (r *Registry) retainBuffer(id BufferID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer(id).refs += n
}

func (r *Registry) retainTexture(id TextureID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texture(id).refs += n
}

func (r *Registry) retainSampler(id SamplerID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sampler(id).refs += n
}

func (r *Registry) retainLayout(id DescriptorSetLayoutID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layout(id).refs += n
}

func (r *Registry) retainDescriptorSet(id DescriptorSetID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptorSet(id).refs += n
}

func (r *Registry) retainPipeline(id PipelineID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipeline(id).refs += n
}

func (r *Registry) releaseBuffer(id BufferID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseBufferLocked(id, n)
}

func (r *Registry) releaseTexture(id TextureID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseTextureLocked(id, n)
}

func (r *Registry) releaseSampler(id SamplerID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseSamplerLocked(id, n)
}

func (r *Registry) releaseLayout(id DescriptorSetLayoutID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLayoutLocked(id, n)
}

func (r *Registry) releaseDescriptorSet(id DescriptorSetID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseDescriptorSetLocked(id, n)
}

func (r *Registry) releasePipeline(id PipelineID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releasePipelineLocked(id, n)
}

func (r *Registry) releaseBufferLocked(id BufferID, n int) {
	e := r.buffer(id)
	e.refs -= n
	if e.refs < 0 {
		panic(fmt.Sprintf("gpusched: buffer %d reference count underflow", id))
	}
	if e.refs > 0 {
		return
	}
	delete(r.buffers, id)
	r.deletions = append(r.deletions, DeletionEvent{Kind: DeletionBuffer, Buffer: e.buffer})
}

func (r *Registry) releaseTextureLocked(id TextureID, n int) {
	e := r.texture(id)
	e.refs -= n
	if e.refs < 0 {
		panic(fmt.Sprintf("gpusched: texture %d reference count underflow", id))
	}
	if e.refs > 0 {
		return
	}
	delete(r.textures, id)
	r.deletions = append(r.deletions, DeletionEvent{Kind: DeletionTexture, Texture: e.texture})
}

func (r *Registry) releaseSamplerLocked(id SamplerID, n int) {
	e := r.sampler(id)
	e.refs -= n
	if e.refs < 0 {
		panic(fmt.Sprintf("gpusched: sampler %d reference count underflow", id))
	}
	if e.refs > 0 {
		return
	}
	delete(r.samplers, id)
	r.deletions = append(r.deletions, DeletionEvent{Kind: DeletionSampler, Sampler: e.sampler})
}

func (r *Registry) releaseLayoutLocked(id DescriptorSetLayoutID, n int) {
	e := r.layout(id)
	e.refs -= n
	if e.refs < 0 {
		panic(fmt.Sprintf("gpusched: descriptor set layout %d reference count underflow", id))
	}
	if e.refs > 0 {
		return
	}
	delete(r.layouts, id)
	r.deletions = append(r.deletions, DeletionEvent{Kind: DeletionDescriptorSetLayout, Layout: e.layout})
}

// releaseDescriptorSetLocked cascades: dropping the last reference to a
// set releases everything the set was created with.
func (r *Registry) releaseDescriptorSetLocked(id DescriptorSetID, n int) {
	e := r.descriptorSet(id)
	e.refs -= n
	if e.refs < 0 {
		panic(fmt.Sprintf("gpusched: descriptor set %d reference count underflow", id))
	}
	if e.refs > 0 {
		return
	}
	delete(r.sets, id)

	for _, b := range e.bindings {
		switch b.Kind {
		case backend.DescriptorUniformBuffer, backend.DescriptorStorageBuffer:
			r.releaseBufferLocked(b.Buffer, 1)
		case backend.DescriptorSampler:
			r.releaseSamplerLocked(b.Sampler, 1)
		case backend.DescriptorTexture:
			r.releaseTextureLocked(b.Texture.Texture, 1)
		case backend.DescriptorTextureArray:
			for _, view := range b.Textures {
				r.releaseTextureLocked(view.Texture, 1)
			}
		}
	}
	r.releaseLayoutLocked(e.layout, 1)

	r.deletions = append(r.deletions, DeletionEvent{Kind: DeletionDescriptorSet, Set: e.native})
}

func (r *Registry) releasePipelineLocked(id PipelineID, n int) {
	e := r.pipeline(id)
	e.refs -= n
	if e.refs < 0 {
		panic(fmt.Sprintf("gpusched: pipeline %d reference count underflow", id))
	}
	if e.refs > 0 {
		return
	}
	delete(r.pipelines, id)
	for _, layout := range e.layouts {
		r.releaseLayoutLocked(layout, 1)
	}
	r.deletions = append(r.deletions, DeletionEvent{Kind: DeletionPipeline, Pipeline: e.pipeline})
}

// --------------------------------------------------------------------------
// Lookups for access derivation
// --------------------------------------------------------------------------

// pipelineBindings returns the BindingMap of a pipeline.
func (r *Registry) pipelineBindings(id PipelineID) BindingMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pipeline(id).bindings
}

// setBindings returns the creation-time bindings of a descriptor set.
func (r *Registry) setBindings(id DescriptorSetID) []DescriptorSetBinding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descriptorSet(id).bindings
}

// textureMipLevels returns the mip level count of a texture.
func (r *Registry) textureMipLevels(id TextureID) uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint32(len(r.texture(id).mipAccess))
}
