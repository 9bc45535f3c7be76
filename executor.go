// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"fmt"

	"github.com/gogpu/gpusched/backend"
)

// CommandExecutor owns the recording and execution state for one
// device: the resource registry, the frame's command stream, and the
// scheduler. It is the top-level object of this package.
//
// The intended per-frame cycle is:
//
//	q := exec.Queue()
//	// record commands through q
//	tmp, err := exec.Execute(encoder)
//	// submit encoder, wait for the frame fence
//	exec.Destroy(tmp)
//	exec.Cleanup()
//
// A CommandExecutor is not safe for concurrent use.
type CommandExecutor struct {
	device    backend.Device
	registry  *Registry
	stream    *CommandStream
	scheduler *Scheduler

	// barriers is the batch under construction during step replay.
	barriers backend.PipelineBarriers
}

// New creates a CommandExecutor for the given device.
func New(device backend.Device, opts ...Option) *CommandExecutor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if ls, ok := device.(loggerSetter); ok {
		ls.SetLogger(Logger())
	}
	return &CommandExecutor{
		device:    device,
		registry:  newRegistry(),
		stream:    NewCommandStream(),
		scheduler: NewScheduler(o.commandCapacity),
	}
}

// Device returns the backend device the executor was created with.
func (e *CommandExecutor) Device() backend.Device { return e.device }

// Registry returns the executor's resource registry.
func (e *CommandExecutor) Registry() *Registry { return e.registry }

// Queue returns a recording handle for this executor.
func (e *CommandExecutor) Queue() *CommandQueue {
	return &CommandQueue{exec: e}
}

// Execute schedules all recorded commands and replays them on the
// encoder. The command stream is cleared afterwards, whether or not
// replay succeeded.
//
// The returned TemporaryResources holds the references the recorded
// commands took; pass it to Destroy once the GPU has finished the
// frame. It is returned even on error so references are never leaked.
func (e *CommandExecutor) Execute(enc backend.Encoder) (*TemporaryResources, error) {
	steps := e.scheduler.Schedule(e.registry, e.stream.AccessLists())

	logger().Debug("executing command stream",
		"commands", e.stream.Len(),
		"steps", len(steps))

	// Move the references recorded commands hold into the frame's
	// multiset up front: the counts must survive a replay error.
	tmp := newTemporaryResources()
	for i := 0; i < e.stream.Len(); i++ {
		e.collectNodeResources(tmp, i)
	}

	err := e.runSteps(enc, steps, tmp)
	e.stream.Clear()
	if err != nil {
		return tmp, err
	}
	return tmp, nil
}

// Destroy returns the references held by an executed frame. Call it
// only after the frame's fence has signaled.
func (e *CommandExecutor) Destroy(tmp *TemporaryResources) {
	tmp.destroy(e.registry)
}

// Cleanup destroys the native objects of all resources whose last
// reference has been released since the previous call.
func (e *CommandExecutor) Cleanup() {
	events := e.registry.DrainDeletions()
	if len(events) == 0 {
		return
	}
	logger().Debug("destroying released resources", "count", len(events))

	for _, ev := range events {
		switch ev.Kind {
		case DeletionBuffer:
			e.device.DestroyBuffer(ev.Buffer)
		case DeletionTexture:
			e.device.DestroyTexture(ev.Texture)
		case DeletionSampler:
			e.device.DestroySampler(ev.Sampler)
		case DeletionDescriptorSetLayout:
			e.device.DestroyDescriptorSetLayout(ev.Layout)
		case DeletionDescriptorSet:
			// Sets that were never bound have no native object.
			if ev.Set != nil {
				e.device.FreeDescriptorSet(ev.Set)
			}
		case DeletionPipeline:
			e.device.DestroyPipeline(ev.Pipeline)
		}
	}
}

// collectNodeResources mirrors the references taken when command i was
// recorded: one per access entry, plus one per pipeline or descriptor
// set use inside a pass.
func (e *CommandExecutor) collectNodeResources(tmp *TemporaryResources, i int) {
	for _, ra := range e.stream.CommandAccesses(i) {
		if ra.Resource.IsBuffer() {
			tmp.insertBuffer(ra.Resource.Buffer())
		} else {
			tex, _ := ra.Resource.Texture()
			tmp.insertTexture(tex)
		}
	}

	var passCmds []PassCommand
	switch c := e.stream.Command(i).(type) {
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
			tmp.insertPipeline(c.Pipeline)
		case SetDescriptorSetCommand:
			tmp.insertDescriptorSet(c.Set)
		}
	}
}

// runSteps replays the schedule. Consecutive barrier steps accumulate
// into one batch that is flushed as a single InsertBarriers call right
// before the next command.
func (e *CommandExecutor) runSteps(enc backend.Encoder, steps []Step, tmp *TemporaryResources) error {
	b := &e.barriers
	b.Buffers = b.Buffers[:0]
	b.Textures = b.Textures[:0]

	flush := func() {
		if len(b.Buffers) == 0 && len(b.Textures) == 0 {
			return
		}
		enc.InsertBarriers(b)
		b.Buffers = b.Buffers[:0]
		b.Textures = b.Textures[:0]
	}

	for _, step := range steps {
		if step.Kind == StepBarrier {
			e.appendBarrier(b, step.Barrier)
			continue
		}
		flush()
		if err := e.execCommand(enc, e.stream.Command(step.Node)); err != nil {
			return err
		}
	}
	flush()
	return nil
}

func (e *CommandExecutor) appendBarrier(b *backend.PipelineBarriers, barrier Barrier) {
	r := e.registry
	r.mu.RLock()
	defer r.mu.RUnlock()

	if barrier.Resource.IsBuffer() {
		entry := r.buffer(barrier.Resource.Buffer())
		b.Buffers = append(b.Buffers, backend.BufferBarrier{
			Buffer:    entry.buffer,
			SrcAccess: barrier.SrcAccess,
			DstAccess: barrier.DstAccess,
		})
		return
	}

	tex, mip := barrier.Resource.Texture()
	entry := r.texture(tex)
	b.Textures = append(b.Textures, backend.TextureBarrier{
		Texture:       entry.texture,
		BaseMipLevel:  mip,
		MipLevelCount: 1,
		SrcAccess:     barrier.SrcAccess,
		DstAccess:     barrier.DstAccess,
	})
}

func (e *CommandExecutor) execCommand(enc backend.Encoder, cmd Command) error {
	switch c := cmd.(type) {
	case WriteBufferCommand:
		return e.execWriteBuffer(c)

	case CopyBufferToBufferCommand:
		src := e.nativeBuffer(c.Src)
		dst := e.nativeBuffer(c.Dst)
		if err := enc.CopyBufferToBuffer(src, c.SrcOffset, dst, c.DstOffset, c.Size); err != nil {
			return fmt.Errorf("gpusched: copy buffer to buffer: %w", err)
		}
		return nil

	case CopyBufferToTextureCommand:
		src := e.nativeBuffer(c.Src)
		dst := backend.TextureMip{Texture: e.nativeTexture(c.Dst), MipLevel: c.DstMip}
		if err := enc.CopyBufferToTexture(src, c.SrcLayout, dst, c.DstOrigin, c.Size); err != nil {
			return fmt.Errorf("gpusched: copy buffer to texture: %w", err)
		}
		return nil

	case CopyTextureToTextureCommand:
		src := backend.TextureMip{Texture: e.nativeTexture(c.Src), MipLevel: c.SrcMip}
		dst := backend.TextureMip{Texture: e.nativeTexture(c.Dst), MipLevel: c.DstMip}
		if err := enc.CopyTextureToTexture(src, dst, c.Size); err != nil {
			return fmt.Errorf("gpusched: copy texture to texture: %w", err)
		}
		return nil

	case RenderPassCommand:
		return e.execRenderPass(enc, c)

	case ComputePassCommand:
		return e.execComputePass(enc, c)

	case TransitionCommand, CreateBufferCommand, CreateTextureCommand:
		// Scheduling already did the work: the transition became a
		// barrier, creation only ordered later accesses.
		return nil

	case DestroyBufferCommand:
		e.registry.releaseBuffer(c.Buffer, 1)
		return nil

	case DestroyTextureCommand:
		e.registry.releaseTexture(c.Texture, 1)
		return nil
	}
	panic(fmt.Sprintf("gpusched: unknown command type %T", cmd))
}

// execWriteBuffer copies host data into a mapped buffer. Non-coherent
// memory is flushed so the device sees the write.
func (e *CommandExecutor) execWriteBuffer(c WriteBufferCommand) error {
	buf := e.nativeBuffer(c.Buffer)
	mem, err := buf.Map()
	if err != nil {
		return fmt.Errorf("gpusched: map buffer for write: %w", err)
	}
	copy(mem[c.Offset:], c.Data)
	if !buf.Coherent() {
		if err := buf.Flush(); err != nil {
			return fmt.Errorf("gpusched: flush buffer write: %w", err)
		}
	}
	return nil
}

func (e *CommandExecutor) execRenderPass(enc backend.Encoder, cmd RenderPassCommand) error {
	desc := backend.RenderPassDescriptor{Label: cmd.Label}
	for _, att := range cmd.ColorAttachments {
		desc.ColorAttachments = append(desc.ColorAttachments, backend.ColorAttachmentDescriptor{
			Texture:    e.nativeTexture(att.Texture),
			MipLevel:   att.Mip,
			LoadOp:     att.LoadOp,
			StoreOp:    att.StoreOp,
			ClearColor: att.ClearColor,
		})
	}
	if d := cmd.DepthStencil; d != nil {
		desc.DepthStencil = &backend.DepthStencilAttachmentDescriptor{
			Texture:    e.nativeTexture(d.Texture),
			MipLevel:   d.Mip,
			LoadOp:     d.LoadOp,
			StoreOp:    d.StoreOp,
			ClearDepth: d.ClearDepth,
		}
	}

	rp, err := enc.BeginRenderPass(&desc)
	if err != nil {
		return fmt.Errorf("gpusched: begin render pass: %w", err)
	}

	for _, pc := range cmd.Commands {
		switch c := pc.(type) {
		case SetPipelineCommand:
			rp.SetPipeline(e.nativePipeline(c.Pipeline))
		case SetDescriptorSetCommand:
			set, err := e.materializeDescriptorSet(c.Set)
			if err != nil {
				rp.End()
				return err
			}
			rp.SetDescriptorSet(c.Group, set)
		case SetPushConstantsCommand:
			rp.SetPushConstants(c.Stages, c.Offset, c.Data)
		case SetIndexBufferCommand:
			rp.SetIndexBuffer(e.nativeBuffer(c.Buffer), c.Format)
		case DrawCommand:
			rp.Draw(c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance)
		case DrawIndexedCommand:
			rp.DrawIndexed(c.IndexCount, c.InstanceCount, c.FirstIndex, c.BaseVertex, c.FirstInstance)
		case DrawIndirectCommand:
			rp.DrawIndirect(e.nativeBuffer(c.Buffer), c.Offset, c.DrawCount, c.Stride)
		case DrawMeshTasksCommand:
			rp.DrawMeshTasks(c.X, c.Y, c.Z)
		default:
			rp.End()
			panic(fmt.Sprintf("gpusched: unexpected render pass command %T", pc))
		}
	}

	rp.End()
	return nil
}

func (e *CommandExecutor) execComputePass(enc backend.Encoder, cmd ComputePassCommand) error {
	cp, err := enc.BeginComputePass(&backend.ComputePassDescriptor{Label: cmd.Label})
	if err != nil {
		return fmt.Errorf("gpusched: begin compute pass: %w", err)
	}

	for _, pc := range cmd.Commands {
		switch c := pc.(type) {
		case SetPipelineCommand:
			cp.SetPipeline(e.nativePipeline(c.Pipeline))
		case SetDescriptorSetCommand:
			set, err := e.materializeDescriptorSet(c.Set)
			if err != nil {
				cp.End()
				return err
			}
			cp.SetDescriptorSet(c.Group, set)
		case SetPushConstantsCommand:
			cp.SetPushConstants(c.Offset, c.Data)
		case DispatchCommand:
			cp.Dispatch(c.X, c.Y, c.Z)
		default:
			cp.End()
			panic(fmt.Sprintf("gpusched: unexpected compute pass command %T", pc))
		}
	}

	cp.End()
	return nil
}

// materializeDescriptorSet builds the native descriptor set on first
// use. Later passes binding the same set reuse the built object.
func (e *CommandExecutor) materializeDescriptorSet(id DescriptorSetID) (backend.DescriptorSet, error) {
	r := e.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.descriptorSet(id)
	if entry.native != nil {
		return entry.native, nil
	}

	layout := r.layout(entry.layout)
	native, err := e.device.AllocateDescriptorSet(layout.layout)
	if err != nil {
		return nil, fmt.Errorf("gpusched: allocate descriptor set: %w", err)
	}

	writes := make([]backend.DescriptorWrite, 0, len(entry.bindings))
	for _, b := range entry.bindings {
		w := backend.DescriptorWrite{Binding: b.Binding, Kind: b.Kind}
		switch b.Kind {
		case backend.DescriptorUniformBuffer, backend.DescriptorStorageBuffer:
			w.Buffer = r.buffer(b.Buffer).buffer
		case backend.DescriptorSampler:
			w.Sampler = r.sampler(b.Sampler).sampler
		case backend.DescriptorTexture:
			w.Textures = []backend.TextureMipRange{r.resolveView(b.Texture)}
		case backend.DescriptorTextureArray:
			for _, view := range b.Textures {
				w.Textures = append(w.Textures, r.resolveView(view))
			}
		}
		writes = append(writes, w)
	}
	if err := native.Write(writes); err != nil {
		e.device.FreeDescriptorSet(native)
		return nil, fmt.Errorf("gpusched: write descriptor set: %w", err)
	}

	entry.native = native
	return native, nil
}

// resolveView translates a TextureView into backend terms. Caller must
// hold the registry lock.
func (r *Registry) resolveView(view TextureView) backend.TextureMipRange {
	return backend.TextureMipRange{
		Texture:       r.texture(view.Texture).texture,
		BaseMipLevel:  view.BaseMip,
		MipLevelCount: view.MipCount,
	}
}

func (e *CommandExecutor) nativeBuffer(id BufferID) backend.Buffer {
	r := e.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buffer(id).buffer
}

func (e *CommandExecutor) nativeTexture(id TextureID) backend.Texture {
	r := e.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.texture(id).texture
}

func (e *CommandExecutor) nativePipeline(id PipelineID) backend.Pipeline {
	r := e.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pipeline(id).pipeline
}
