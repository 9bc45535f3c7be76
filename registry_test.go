// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"testing"

	"github.com/gogpu/gpusched/backend"
)

func TestRegistryAccessRoundTrip(t *testing.T) {
	reg := newRegistry()
	buf := testBuffer(reg)
	tex := testTexture(reg, 2)

	if got := reg.Access(BufferResource(buf)); got != backend.AccessNone {
		t.Errorf("Access(buffer) = %v, want %v", got, backend.AccessNone)
	}

	reg.SetAccess(BufferResource(buf), backend.AccessTransferWrite)
	if got := reg.Access(BufferResource(buf)); got != backend.AccessTransferWrite {
		t.Errorf("Access(buffer) = %v, want %v", got, backend.AccessTransferWrite)
	}

	// Mips track state independently.
	reg.SetAccess(TextureResource(tex, 1), backend.AccessShaderRead)
	if got := reg.Access(TextureResource(tex, 0)); got != backend.AccessNone {
		t.Errorf("Access(tex mip 0) = %v, want %v", got, backend.AccessNone)
	}
	if got := reg.Access(TextureResource(tex, 1)); got != backend.AccessShaderRead {
		t.Errorf("Access(tex mip 1) = %v, want %v", got, backend.AccessShaderRead)
	}
}

func TestRegistryAccessUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("Access() on unknown buffer did not panic")
		}
	}()
	newRegistry().Access(BufferResource(42))
}

func TestRegistryAccessBadMipPanics(t *testing.T) {
	reg := newRegistry()
	tex := testTexture(reg, 1)

	defer func() {
		if recover() == nil {
			t.Errorf("Access() on missing mip did not panic")
		}
	}()
	reg.Access(TextureResource(tex, 3))
}

func TestRegistryReleaseQueuesDeletion(t *testing.T) {
	reg := newRegistry()
	buf := testBuffer(reg)

	reg.retainBuffer(buf, 2)
	reg.releaseBuffer(buf, 2)
	if events := reg.DrainDeletions(); len(events) != 0 {
		t.Fatalf("DrainDeletions() = %v, want none while references remain", events)
	}

	reg.releaseBuffer(buf, 1)
	events := reg.DrainDeletions()
	if len(events) != 1 || events[0].Kind != DeletionBuffer {
		t.Fatalf("DrainDeletions() = %v, want one buffer deletion", events)
	}

	// The queue is drained.
	if events := reg.DrainDeletions(); len(events) != 0 {
		t.Errorf("DrainDeletions() = %v, want empty after drain", events)
	}
}

func TestRegistryReleaseUnderflowPanics(t *testing.T) {
	reg := newRegistry()
	buf := testBuffer(reg)

	defer func() {
		if recover() == nil {
			t.Errorf("releaseBuffer() past zero did not panic")
		}
	}()
	reg.releaseBuffer(buf, 2)
}

func TestRegistryDescriptorSetReleaseCascades(t *testing.T) {
	// Dropping the last reference to a set releases its contents and its
	// layout, so unrelated handles must keep their owners alive.
	reg := newRegistry()
	buf := testBuffer(reg)
	tex := testTexture(reg, 1)
	sampler := reg.addSampler(&samplerEntry{})
	layout := reg.addLayout(&layoutEntry{})

	set := reg.addDescriptorSet(&descriptorSetEntry{
		layout: layout,
		bindings: []DescriptorSetBinding{
			{Binding: 0, Kind: backend.DescriptorUniformBuffer, Buffer: buf},
			{Binding: 1, Kind: backend.DescriptorTexture, Texture: TextureView{Texture: tex}},
			{Binding: 2, Kind: backend.DescriptorSampler, Sampler: sampler},
		},
	})
	// The set owns one reference to each bound resource and the layout.
	reg.retainBuffer(buf, 1)
	reg.retainTexture(tex, 1)
	reg.retainSampler(sampler, 1)
	reg.retainLayout(layout, 1)

	// Drop the user handles; the set keeps everything alive.
	reg.releaseBuffer(buf, 1)
	reg.releaseTexture(tex, 1)
	reg.releaseSampler(sampler, 1)
	reg.releaseLayout(layout, 1)
	if events := reg.DrainDeletions(); len(events) != 0 {
		t.Fatalf("DrainDeletions() = %v, want none while the set lives", events)
	}

	reg.releaseDescriptorSet(set, 1)
	events := reg.DrainDeletions()
	if len(events) != 5 {
		t.Fatalf("len(DrainDeletions()) = %d, want 5", len(events))
	}
	// Contents and layout are released before the set event is queued.
	wantKinds := []DeletionKind{
		DeletionBuffer, DeletionTexture, DeletionSampler,
		DeletionDescriptorSetLayout, DeletionDescriptorSet,
	}
	for i, want := range wantKinds {
		if events[i].Kind != want {
			t.Errorf("events[%d].Kind = %v, want %v", i, events[i].Kind, want)
		}
	}
}

func TestRegistryPipelineReleaseReleasesLayouts(t *testing.T) {
	reg := newRegistry()
	layout := reg.addLayout(&layoutEntry{})
	pipeline := reg.addPipeline(&pipelineEntry{layouts: []DescriptorSetLayoutID{layout}})
	reg.retainLayout(layout, 1)

	reg.releaseLayout(layout, 1)
	if events := reg.DrainDeletions(); len(events) != 0 {
		t.Fatalf("DrainDeletions() = %v, want none while the pipeline lives", events)
	}

	reg.releasePipeline(pipeline, 1)
	events := reg.DrainDeletions()
	if len(events) != 2 {
		t.Fatalf("len(DrainDeletions()) = %d, want 2", len(events))
	}
	if events[0].Kind != DeletionDescriptorSetLayout || events[1].Kind != DeletionPipeline {
		t.Errorf("deletion kinds = %v, %v, want layout then pipeline", events[0].Kind, events[1].Kind)
	}
}

func TestTemporaryResourcesDestroy(t *testing.T) {
	reg := newRegistry()
	buf := testBuffer(reg)
	tex := testTexture(reg, 1)

	tmp := newTemporaryResources()
	if !tmp.Empty() {
		t.Fatalf("Empty() = false for fresh TemporaryResources")
	}

	// Two commands touched the buffer, one the texture.
	reg.retainBuffer(buf, 2)
	reg.retainTexture(tex, 1)
	tmp.insertBuffer(buf)
	tmp.insertBuffer(buf)
	tmp.insertTexture(tex)
	if tmp.Empty() {
		t.Fatalf("Empty() = true after inserts")
	}

	tmp.destroy(reg)
	if !tmp.Empty() {
		t.Errorf("Empty() = false after destroy")
	}
	// Only the frame's references were returned; the user handles live on.
	if events := reg.DrainDeletions(); len(events) != 0 {
		t.Errorf("DrainDeletions() = %v, want none while user handles remain", events)
	}

	reg.releaseBuffer(buf, 1)
	reg.releaseTexture(tex, 1)
	if events := reg.DrainDeletions(); len(events) != 2 {
		t.Errorf("len(DrainDeletions()) = %d, want 2 after dropping handles", len(events))
	}
}
