// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpusched/backend"
)

// Encoder implements backend.Encoder over a hal command encoder that
// has already begun encoding. Call Finish to obtain the command buffer
// for submission.
type Encoder struct {
	encoder hal.CommandEncoder
	log     *slog.Logger
}

// HAL returns the underlying hal command encoder.
func (e *Encoder) HAL() hal.CommandEncoder { return e.encoder }

// Finish ends encoding and returns the command buffer to submit.
func (e *Encoder) Finish() (hal.CommandBuffer, error) {
	buf, err := e.encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	return buf, nil
}

// Discard abandons the recording.
func (e *Encoder) Discard() {
	e.encoder.DiscardEncoding()
}

// InsertBarriers implements backend.Encoder. Texture barriers become
// one TransitionTextures call. Buffer barriers are dropped: wgpu tracks
// buffer hazards itself and orders accesses by submission.
func (e *Encoder) InsertBarriers(b *backend.PipelineBarriers) {
	if len(b.Textures) == 0 {
		return
	}
	barriers := make([]hal.TextureBarrier, 0, len(b.Textures))
	for _, tb := range b.Textures {
		barriers = append(barriers, hal.TextureBarrier{
			Texture: tb.Texture.(*Texture).texture,
			Usage: hal.TextureUsageTransition{
				OldUsage: textureUsage(tb.SrcAccess),
				NewUsage: textureUsage(tb.DstAccess),
			},
		})
	}
	e.encoder.TransitionTextures(barriers)
}

// CopyBufferToBuffer implements backend.Encoder.
func (e *Encoder) CopyBufferToBuffer(src backend.Buffer, srcOffset uint64, dst backend.Buffer, dstOffset, size uint64) error {
	e.encoder.CopyBufferToBuffer(src.(*Buffer).buffer, dst.(*Buffer).buffer, []hal.BufferCopy{{
		SrcOffset: srcOffset,
		DstOffset: dstOffset,
		Size:      size,
	}})
	return nil
}

// CopyBufferToTexture implements backend.Encoder.
//
// TODO: route through encoder.CopyBufferToTexture once hal exposes it;
// today only CopyTextureToBuffer exists.
func (e *Encoder) CopyBufferToTexture(src backend.Buffer, layout backend.ImageDataLayout, dst backend.TextureMip, origin gputypes.Origin3D, size gputypes.Extent3D) error {
	return fmt.Errorf("wgpu: copy buffer to texture: %w", backend.ErrUnsupported)
}

// CopyTextureToTexture implements backend.Encoder.
//
// TODO: route through encoder.CopyTextureToTexture once hal exposes it.
func (e *Encoder) CopyTextureToTexture(src, dst backend.TextureMip, size gputypes.Extent3D) error {
	return fmt.Errorf("wgpu: copy texture to texture: %w", backend.ErrUnsupported)
}

// BeginRenderPass implements backend.Encoder.
func (e *Encoder) BeginRenderPass(desc *backend.RenderPassDescriptor) (backend.RenderPassEncoder, error) {
	halDesc := &hal.RenderPassDescriptor{Label: desc.Label}
	for _, att := range desc.ColorAttachments {
		view, err := att.Texture.(*Texture).view(att.MipLevel)
		if err != nil {
			return nil, err
		}
		halDesc.ColorAttachments = append(halDesc.ColorAttachments, hal.RenderPassColorAttachment{
			View:       view,
			LoadOp:     att.LoadOp,
			StoreOp:    att.StoreOp,
			ClearValue: att.ClearColor,
		})
	}
	if d := desc.DepthStencil; d != nil {
		view, err := d.Texture.(*Texture).view(d.MipLevel)
		if err != nil {
			return nil, err
		}
		halDesc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:            view,
			DepthLoadOp:     d.LoadOp,
			DepthStoreOp:    d.StoreOp,
			DepthClearValue: d.ClearDepth,
		}
	}
	rp := e.encoder.BeginRenderPass(halDesc)
	return &renderPass{pass: rp, log: e.log}, nil
}

// BeginComputePass implements backend.Encoder.
func (e *Encoder) BeginComputePass(desc *backend.ComputePassDescriptor) (backend.ComputePassEncoder, error) {
	pass := e.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: desc.Label})
	return &computePass{pass: pass}, nil
}

// renderPass implements backend.RenderPassEncoder.
type renderPass struct {
	pass hal.RenderPassEncoder
	log  *slog.Logger
}

func (p *renderPass) SetPipeline(pl backend.Pipeline) {
	p.pass.SetPipeline(pl.(*Pipeline).render)
}

func (p *renderPass) SetDescriptorSet(group uint32, set backend.DescriptorSet) {
	p.pass.SetBindGroup(group, set.(*DescriptorSet).group, nil)
}

// SetPushConstants is a no-op: WebGPU-family APIs have no push
// constants, the data must come from a uniform buffer instead.
func (p *renderPass) SetPushConstants(stages gputypes.ShaderStage, offset uint32, data []byte) {
	p.log.Warn("wgpu: push constants are not supported, bind a uniform buffer instead")
}

func (p *renderPass) SetIndexBuffer(buf backend.Buffer, format backend.IndexFormat) {
	halFormat := gputypes.IndexFormatUint16
	if format == backend.IndexFormatUint32 {
		halFormat = gputypes.IndexFormatUint32
	}
	p.pass.SetIndexBuffer(buf.(*Buffer).buffer, halFormat, 0)
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *renderPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

// DrawIndirect is a no-op until hal exposes indirect draws.
func (p *renderPass) DrawIndirect(buf backend.Buffer, offset uint64, drawCount, stride uint32) {
	p.log.Warn("wgpu: indirect draws are not supported yet")
}

// DrawMeshTasks is a no-op until hal exposes mesh shading.
func (p *renderPass) DrawMeshTasks(x, y, z uint32) {
	p.log.Warn("wgpu: mesh shading is not supported yet")
}

func (p *renderPass) End() {
	p.pass.End()
}

// computePass implements backend.ComputePassEncoder.
type computePass struct {
	pass hal.ComputePassEncoder
}

func (p *computePass) SetPipeline(pl backend.Pipeline) {
	p.pass.SetPipeline(pl.(*Pipeline).compute)
}

func (p *computePass) SetDescriptorSet(group uint32, set backend.DescriptorSet) {
	p.pass.SetBindGroup(group, set.(*DescriptorSet).group, nil)
}

// SetPushConstants is a no-op, matching the render pass encoder.
func (p *computePass) SetPushConstants(offset uint32, data []byte) {}

func (p *computePass) Dispatch(x, y, z uint32) {
	p.pass.Dispatch(x, y, z)
}

func (p *computePass) End() {
	p.pass.End()
}
