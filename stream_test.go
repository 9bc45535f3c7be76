// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"slices"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpusched/backend"
)

func testBuffer(reg *Registry) BufferID {
	return reg.addBuffer(&bufferEntry{size: 256})
}

func testTexture(reg *Registry, mips uint32) TextureID {
	return reg.addTexture(&textureEntry{mipAccess: make([]backend.AccessFlags, mips)})
}

func TestStreamWriteBufferAccess(t *testing.T) {
	reg := newRegistry()
	buf := testBuffer(reg)

	s := NewCommandStream()
	s.Push(reg, WriteBufferCommand{Buffer: buf, Data: []byte{1, 2, 3}})

	want := []ResourceAccess{{Resource: BufferResource(buf), Access: backend.AccessTransferWrite}}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamCopyBufferAccesses(t *testing.T) {
	reg := newRegistry()
	src := testBuffer(reg)
	dst := testBuffer(reg)

	s := NewCommandStream()
	s.Push(reg, CopyBufferToBufferCommand{Src: src, Dst: dst, Size: 16})

	want := []ResourceAccess{
		{Resource: BufferResource(src), Access: backend.AccessTransferRead},
		{Resource: BufferResource(dst), Access: backend.AccessTransferWrite},
	}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamCopyWithinBufferCollapses(t *testing.T) {
	// A copy inside one buffer must not list the buffer twice.
	reg := newRegistry()
	buf := testBuffer(reg)

	s := NewCommandStream()
	s.Push(reg, CopyBufferToBufferCommand{Src: buf, SrcOffset: 0, Dst: buf, DstOffset: 128, Size: 16})

	want := []ResourceAccess{{
		Resource: BufferResource(buf),
		Access:   backend.AccessTransferRead | backend.AccessTransferWrite,
	}}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamCopyWithinTextureCollapses(t *testing.T) {
	reg := newRegistry()
	tex := testTexture(reg, 2)

	s := NewCommandStream()
	s.Push(reg, CopyTextureToTextureCommand{Src: tex, SrcMip: 0, Dst: tex, DstMip: 1})
	s.Push(reg, CopyTextureToTextureCommand{Src: tex, SrcMip: 0, Dst: tex, DstMip: 0})

	wantDistinct := []ResourceAccess{
		{Resource: TextureResource(tex, 0), Access: backend.AccessTransferRead},
		{Resource: TextureResource(tex, 1), Access: backend.AccessTransferWrite},
	}
	if got := s.CommandAccesses(0); !slices.Equal(got, wantDistinct) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, wantDistinct)
	}

	wantSame := []ResourceAccess{{
		Resource: TextureResource(tex, 0),
		Access:   backend.AccessTransferRead | backend.AccessTransferWrite,
	}}
	if got := s.CommandAccesses(1); !slices.Equal(got, wantSame) {
		t.Errorf("CommandAccesses(1) = %v, want %v", got, wantSame)
	}
}

func TestStreamTransitionAccess(t *testing.T) {
	reg := newRegistry()
	tex := testTexture(reg, 1)

	s := NewCommandStream()
	s.Push(reg, TransitionCommand{Texture: tex, Mip: 0, Access: backend.AccessPresent})

	want := []ResourceAccess{{Resource: TextureResource(tex, 0), Access: backend.AccessPresent}}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamRenderPassAccesses(t *testing.T) {
	reg := newRegistry()
	target := testTexture(reg, 1)
	uniforms := testBuffer(reg)
	storage := testBuffer(reg)

	layout := reg.addLayout(&layoutEntry{})
	set := reg.addDescriptorSet(&descriptorSetEntry{
		layout: layout,
		bindings: []DescriptorSetBinding{
			{Binding: 0, Kind: backend.DescriptorUniformBuffer, Buffer: uniforms},
			{Binding: 1, Kind: backend.DescriptorStorageBuffer, Buffer: storage},
		},
	})
	pipeline := reg.addPipeline(&pipelineEntry{
		bindings: BindingMap{
			{Group: 0, Binding: 0}: backend.AccessVertexShaderRead | backend.AccessFragmentShaderRead,
			{Group: 0, Binding: 1}: backend.AccessFragmentShaderRead | backend.AccessFragmentShaderWrite,
		},
		layouts: []DescriptorSetLayoutID{layout},
	})

	s := NewCommandStream()
	s.Push(reg, RenderPassCommand{
		Label: "main",
		ColorAttachments: []ColorAttachment{
			{Texture: target, Mip: 0, LoadOp: gputypes.LoadOpClear},
		},
		Commands: []PassCommand{
			SetPipelineCommand{Pipeline: pipeline},
			SetDescriptorSetCommand{Group: 0, Set: set},
			DrawCommand{VertexCount: 3, InstanceCount: 1},
			// Rebinding the same set must not duplicate its accesses.
			SetDescriptorSetCommand{Group: 0, Set: set},
			DrawCommand{VertexCount: 3, InstanceCount: 1},
		},
	})

	want := []ResourceAccess{
		{Resource: BufferResource(uniforms), Access: backend.AccessVertexShaderRead | backend.AccessFragmentShaderRead},
		{Resource: BufferResource(storage), Access: backend.AccessFragmentShaderRead | backend.AccessFragmentShaderWrite},
		{Resource: TextureResource(target, 0), Access: backend.AccessColorAttachmentWrite},
	}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamRenderPassLoadOpLoadReads(t *testing.T) {
	// Loading the previous contents makes the attachment a read as well
	// as a write, so an earlier producer becomes a dependency.
	reg := newRegistry()
	target := testTexture(reg, 1)
	depth := testTexture(reg, 1)

	s := NewCommandStream()
	s.Push(reg, RenderPassCommand{
		ColorAttachments: []ColorAttachment{
			{Texture: target, Mip: 0, LoadOp: gputypes.LoadOpLoad},
		},
		DepthStencil: &DepthStencilAttachment{Texture: depth, Mip: 0},
	})

	want := []ResourceAccess{
		{
			Resource: TextureResource(target, 0),
			Access:   backend.AccessColorAttachmentRead | backend.AccessColorAttachmentWrite,
		},
		{
			Resource: TextureResource(depth, 0),
			Access:   backend.AccessDepthAttachmentRead | backend.AccessDepthAttachmentWrite,
		},
	}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamRenderPassIndexAndIndirect(t *testing.T) {
	reg := newRegistry()
	target := testTexture(reg, 1)
	indices := testBuffer(reg)
	indirect := testBuffer(reg)
	pipeline := reg.addPipeline(&pipelineEntry{bindings: BindingMap{}})

	s := NewCommandStream()
	s.Push(reg, RenderPassCommand{
		ColorAttachments: []ColorAttachment{{Texture: target, Mip: 0}},
		Commands: []PassCommand{
			SetPipelineCommand{Pipeline: pipeline},
			SetIndexBufferCommand{Buffer: indices, Format: backend.IndexFormatUint16},
			DrawIndexedCommand{IndexCount: 6, InstanceCount: 1},
			DrawIndirectCommand{Buffer: indirect, DrawCount: 1},
		},
	})

	want := []ResourceAccess{
		{Resource: BufferResource(indices), Access: backend.AccessIndexRead},
		{Resource: BufferResource(indirect), Access: backend.AccessIndirectRead},
		{Resource: TextureResource(target, 0), Access: backend.AccessColorAttachmentWrite},
	}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamComputePassAccesses(t *testing.T) {
	reg := newRegistry()
	input := testBuffer(reg)
	output := testBuffer(reg)

	layout := reg.addLayout(&layoutEntry{})
	set := reg.addDescriptorSet(&descriptorSetEntry{
		layout: layout,
		bindings: []DescriptorSetBinding{
			{Binding: 0, Kind: backend.DescriptorStorageBuffer, Buffer: input},
			{Binding: 1, Kind: backend.DescriptorStorageBuffer, Buffer: output},
		},
	})
	pipeline := reg.addPipeline(&pipelineEntry{
		bindings: BindingMap{
			{Group: 0, Binding: 0}: backend.AccessShaderRead,
			{Group: 0, Binding: 1}: backend.AccessShaderRead | backend.AccessShaderWrite,
		},
		layouts: []DescriptorSetLayoutID{layout},
		compute: true,
	})

	s := NewCommandStream()
	s.Push(reg, ComputePassCommand{
		Commands: []PassCommand{
			SetPipelineCommand{Pipeline: pipeline},
			SetDescriptorSetCommand{Group: 0, Set: set},
			DispatchCommand{X: 8, Y: 1, Z: 1},
		},
	})

	want := []ResourceAccess{
		{Resource: BufferResource(input), Access: backend.AccessShaderRead},
		{Resource: BufferResource(output), Access: backend.AccessShaderRead | backend.AccessShaderWrite},
	}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamDescriptorSetTextureView(t *testing.T) {
	// A view with MipCount 0 covers every level from BaseMip onward; each
	// level is a separate synchronization unit.
	reg := newRegistry()
	target := testTexture(reg, 1)
	sampled := testTexture(reg, 3)

	layout := reg.addLayout(&layoutEntry{})
	set := reg.addDescriptorSet(&descriptorSetEntry{
		layout: layout,
		bindings: []DescriptorSetBinding{
			{Binding: 0, Kind: backend.DescriptorTexture, Texture: TextureView{Texture: sampled, BaseMip: 1}},
			{Binding: 1, Kind: backend.DescriptorSampler, Sampler: 99},
		},
	})
	pipeline := reg.addPipeline(&pipelineEntry{
		bindings: BindingMap{
			{Group: 0, Binding: 0}: backend.AccessFragmentShaderRead,
			{Group: 0, Binding: 1}: backend.AccessFragmentShaderRead,
		},
		layouts: []DescriptorSetLayoutID{layout},
	})

	s := NewCommandStream()
	s.Push(reg, RenderPassCommand{
		ColorAttachments: []ColorAttachment{{Texture: target, Mip: 0}},
		Commands: []PassCommand{
			SetPipelineCommand{Pipeline: pipeline},
			SetDescriptorSetCommand{Group: 0, Set: set},
			DrawCommand{VertexCount: 3, InstanceCount: 1},
		},
	})

	want := []ResourceAccess{
		{Resource: TextureResource(target, 0), Access: backend.AccessColorAttachmentWrite},
		{Resource: TextureResource(sampled, 1), Access: backend.AccessFragmentShaderRead},
		{Resource: TextureResource(sampled, 2), Access: backend.AccessFragmentShaderRead},
	}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}

func TestStreamCreateCommands(t *testing.T) {
	reg := newRegistry()
	buf := testBuffer(reg)
	tex := testTexture(reg, 2)

	s := NewCommandStream()
	s.Push(reg, CreateBufferCommand{Buffer: buf})
	s.Push(reg, CreateTextureCommand{Texture: tex, MipLevels: 2})
	s.Push(reg, DestroyBufferCommand{Buffer: buf})

	wantBuf := []ResourceAccess{{Resource: BufferResource(buf), Access: backend.AccessNone}}
	if got := s.CommandAccesses(0); !slices.Equal(got, wantBuf) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, wantBuf)
	}

	wantTex := []ResourceAccess{
		{Resource: TextureResource(tex, 0), Access: backend.AccessNone},
		{Resource: TextureResource(tex, 1), Access: backend.AccessNone},
	}
	if got := s.CommandAccesses(1); !slices.Equal(got, wantTex) {
		t.Errorf("CommandAccesses(1) = %v, want %v", got, wantTex)
	}

	if got := s.CommandAccesses(2); len(got) != 0 {
		t.Errorf("CommandAccesses(2) = %v, want no accesses", got)
	}
}

func TestStreamAccessLists(t *testing.T) {
	reg := newRegistry()
	a := testBuffer(reg)
	b := testBuffer(reg)

	s := NewCommandStream()
	s.Push(reg, WriteBufferCommand{Buffer: a, Data: []byte{1}})
	s.Push(reg, CopyBufferToBufferCommand{Src: a, Dst: b, Size: 1})

	lists := s.AccessLists()
	if len(lists) != 2 {
		t.Fatalf("len(AccessLists()) = %d, want 2", len(lists))
	}
	if !slices.Equal(lists[0], s.CommandAccesses(0)) || !slices.Equal(lists[1], s.CommandAccesses(1)) {
		t.Errorf("AccessLists() disagrees with CommandAccesses")
	}
}

func TestStreamClear(t *testing.T) {
	reg := newRegistry()
	buf := testBuffer(reg)

	s := NewCommandStream()
	s.Push(reg, WriteBufferCommand{Buffer: buf, Data: []byte{1}})
	s.Clear()

	if s.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", s.Len())
	}

	s.Push(reg, WriteBufferCommand{Buffer: buf, Data: []byte{2}})
	if s.Len() != 1 {
		t.Fatalf("Len() after reuse = %d, want 1", s.Len())
	}
	want := []ResourceAccess{{Resource: BufferResource(buf), Access: backend.AccessTransferWrite}}
	if got := s.CommandAccesses(0); !slices.Equal(got, want) {
		t.Errorf("CommandAccesses(0) = %v, want %v", got, want)
	}
}
