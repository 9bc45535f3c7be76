// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpusched/backend"
)

// passState carries the validation state shared by render and compute
// pass recorders.
type passState struct {
	q *CommandQueue

	pipeline        PipelineID
	pipelineLayouts []DescriptorSetLayoutID
	pushSize        uint32
	pushStages      gputypes.ShaderStage

	ended bool
}

func (p *passState) checkOpen() {
	if p.ended {
		panic("gpusched: pass recorded after End")
	}
}

func (p *passState) checkPipeline() {
	if !p.pipeline.IsValid() {
		panic("gpusched: pass command recorded before SetPipeline")
	}
}

// bindPipeline validates and snapshots the pipeline's recording state.
func (p *passState) bindPipeline(id PipelineID, wantCompute bool) {
	r := p.q.exec.registry
	r.mu.RLock()
	defer r.mu.RUnlock()

	e := r.pipeline(id)
	if e.compute != wantCompute {
		if wantCompute {
			panic(fmt.Sprintf("gpusched: pipeline %d is a render pipeline, compute pass expects compute", id))
		}
		panic(fmt.Sprintf("gpusched: pipeline %d is a compute pipeline, render pass expects render", id))
	}
	p.pipeline = id
	p.pipelineLayouts = e.layouts
	p.pushSize = e.pushConstantSize
	p.pushStages = e.pushConstantStages
}

// checkDescriptorSet validates a set bind against the bound pipeline.
// Access derivation reads the pipeline's binding map, so a pipeline must
// be bound first even though some native APIs allow the other order.
func (p *passState) checkDescriptorSet(group uint32, set DescriptorSetID) {
	p.checkPipeline()
	if int(group) >= len(p.pipelineLayouts) {
		panic(fmt.Sprintf("gpusched: descriptor set group %d out of range, pipeline has %d layouts",
			group, len(p.pipelineLayouts)))
	}
	r := p.q.exec.registry
	r.mu.RLock()
	layout := r.descriptorSet(set).layout
	r.mu.RUnlock()
	if layout != p.pipelineLayouts[group] {
		panic(fmt.Sprintf("gpusched: descriptor set %d has layout %d, pipeline group %d expects layout %d",
			set, layout, group, p.pipelineLayouts[group]))
	}
}

func (p *passState) checkPushConstants(offset uint32, data []byte) {
	p.checkPipeline()
	if offset+uint32(len(data)) > p.pushSize {
		panic(fmt.Sprintf("gpusched: push constant range [%d, %d) exceeds pipeline range %d",
			offset, offset+uint32(len(data)), p.pushSize))
	}
}

// RenderPass records draw commands for one render pass. Obtain one with
// CommandQueue.BeginRenderPass and finish with End, which appends the
// whole pass to the command stream as a single schedulable unit.
type RenderPass struct {
	passState
	cmd RenderPassCommand

	indexBuffer BufferID
	indexSize   uint64
	indexFormat backend.IndexFormat
}

// BeginRenderPass starts recording a render pass over the given
// attachments. At least one attachment is required; every attachment
// texture needs RenderAttachment usage.
func (q *CommandQueue) BeginRenderPass(label string, colors []ColorAttachment, depth *DepthStencilAttachment) *RenderPass {
	if len(colors) == 0 && depth == nil {
		panic("gpusched: render pass needs at least one attachment")
	}
	for _, att := range colors {
		q.checkAttachment(att.Texture, att.Mip)
	}
	if depth != nil {
		q.checkAttachment(depth.Texture, depth.Mip)
	}
	return &RenderPass{
		passState: passState{q: q},
		cmd: RenderPassCommand{
			Label:            label,
			ColorAttachments: slices.Clone(colors),
			DepthStencil:     depth,
		},
	}
}

func (q *CommandQueue) checkAttachment(id TextureID, mip uint32) {
	usage, mips := q.textureInfo(id)
	if mip >= mips {
		panic(fmt.Sprintf("gpusched: attachment mip %d out of range for texture %d with %d levels", mip, id, mips))
	}
	if usage&gputypes.TextureUsageRenderAttachment == 0 {
		panic(fmt.Sprintf("gpusched: attachment texture %d lacks RenderAttachment usage", id))
	}
}

// SetPipeline binds a render pipeline.
func (p *RenderPass) SetPipeline(id PipelineID) {
	p.checkOpen()
	p.bindPipeline(id, false)
	p.cmd.Commands = append(p.cmd.Commands, SetPipelineCommand{Pipeline: id})
}

// SetDescriptorSet binds a descriptor set to a group. A pipeline must be
// bound first.
func (p *RenderPass) SetDescriptorSet(group uint32, set DescriptorSetID) {
	p.checkOpen()
	p.checkDescriptorSet(group, set)
	p.cmd.Commands = append(p.cmd.Commands, SetDescriptorSetCommand{Group: group, Set: set})
}

// SetPushConstants updates the push constant range of the bound
// pipeline.
func (p *RenderPass) SetPushConstants(stages gputypes.ShaderStage, offset uint32, data []byte) {
	p.checkOpen()
	p.checkPushConstants(offset, data)
	if stages&^p.pushStages != 0 {
		panic(fmt.Sprintf("gpusched: push constant stages %v not declared by pipeline %d", stages, p.pipeline))
	}
	p.cmd.Commands = append(p.cmd.Commands, SetPushConstantsCommand{
		Stages: stages,
		Offset: offset,
		Data:   slices.Clone(data),
	})
}

// SetIndexBuffer binds the index buffer for DrawIndexed.
func (p *RenderPass) SetIndexBuffer(id BufferID, format backend.IndexFormat) {
	p.checkOpen()
	size, usage, _ := p.q.bufferInfo(id)
	if usage&gputypes.BufferUsageIndex == 0 {
		panic(fmt.Sprintf("gpusched: index buffer %d lacks Index usage", id))
	}
	p.indexBuffer = id
	p.indexSize = size
	p.indexFormat = format
	p.cmd.Commands = append(p.cmd.Commands, SetIndexBufferCommand{Buffer: id, Format: format})
}

// Draw records a non-indexed draw.
func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.checkOpen()
	p.checkPipeline()
	p.cmd.Commands = append(p.cmd.Commands, DrawCommand{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

// DrawIndexed records an indexed draw. An index buffer must be bound
// and the index range must fit it.
func (p *RenderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.checkOpen()
	p.checkPipeline()
	if !p.indexBuffer.IsValid() {
		panic("gpusched: DrawIndexed without a bound index buffer")
	}
	end := (uint64(firstIndex) + uint64(indexCount)) * p.indexFormat.Bytes()
	if end > p.indexSize {
		panic(fmt.Sprintf("gpusched: index range [%d, %d) exceeds index buffer %d size %d",
			firstIndex, firstIndex+indexCount, p.indexBuffer, p.indexSize))
	}
	p.cmd.Commands = append(p.cmd.Commands, DrawIndexedCommand{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	})
}

// DrawIndirect records a draw whose parameters come from a buffer.
func (p *RenderPass) DrawIndirect(id BufferID, offset uint64, drawCount, stride uint32) {
	p.checkOpen()
	p.checkPipeline()
	_, usage, _ := p.q.bufferInfo(id)
	if usage&gputypes.BufferUsageIndirect == 0 {
		panic(fmt.Sprintf("gpusched: indirect buffer %d lacks Indirect usage", id))
	}
	p.cmd.Commands = append(p.cmd.Commands, DrawIndirectCommand{
		Buffer:    id,
		Offset:    offset,
		DrawCount: drawCount,
		Stride:    stride,
	})
}

// DrawMeshTasks records a mesh shader launch.
func (p *RenderPass) DrawMeshTasks(x, y, z uint32) {
	p.checkOpen()
	p.checkPipeline()
	p.cmd.Commands = append(p.cmd.Commands, DrawMeshTasksCommand{X: x, Y: y, Z: z})
}

// End finishes the pass and appends it to the command stream. The
// recorder must not be used afterwards.
func (p *RenderPass) End() {
	p.checkOpen()
	p.ended = true
	p.q.record(p.cmd)
}

// ComputePass records dispatches for one compute pass. Obtain one with
// CommandQueue.BeginComputePass and finish with End.
type ComputePass struct {
	passState
	cmd ComputePassCommand
}

// BeginComputePass starts recording a compute pass.
func (q *CommandQueue) BeginComputePass(label string) *ComputePass {
	return &ComputePass{
		passState: passState{q: q},
		cmd:       ComputePassCommand{Label: label},
	}
}

// SetPipeline binds a compute pipeline.
func (p *ComputePass) SetPipeline(id PipelineID) {
	p.checkOpen()
	p.bindPipeline(id, true)
	p.cmd.Commands = append(p.cmd.Commands, SetPipelineCommand{Pipeline: id})
}

// SetDescriptorSet binds a descriptor set to a group. A pipeline must be
// bound first.
func (p *ComputePass) SetDescriptorSet(group uint32, set DescriptorSetID) {
	p.checkOpen()
	p.checkDescriptorSet(group, set)
	p.cmd.Commands = append(p.cmd.Commands, SetDescriptorSetCommand{Group: group, Set: set})
}

// SetPushConstants updates the push constant range of the bound
// pipeline.
func (p *ComputePass) SetPushConstants(offset uint32, data []byte) {
	p.checkOpen()
	p.checkPushConstants(offset, data)
	p.cmd.Commands = append(p.cmd.Commands, SetPushConstantsCommand{
		Stages: gputypes.ShaderStageCompute,
		Offset: offset,
		Data:   slices.Clone(data),
	})
}

// Dispatch records a compute dispatch.
func (p *ComputePass) Dispatch(x, y, z uint32) {
	p.checkOpen()
	p.checkPipeline()
	p.cmd.Commands = append(p.cmd.Commands, DispatchCommand{X: x, Y: y, Z: z})
}

// End finishes the pass and appends it to the command stream. The
// recorder must not be used afterwards.
func (p *ComputePass) End() {
	p.checkOpen()
	p.ended = true
	p.q.record(p.cmd)
}
