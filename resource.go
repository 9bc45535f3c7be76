// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"fmt"

	"github.com/gogpu/gpusched/backend"
)

// Resource IDs
//
// These opaque IDs represent resources owned by a Registry. They stay
// valid until the matching Destroy call releases the last reference.
// The zero value is never assigned.

// BufferID is an opaque handle to a registered buffer.
type BufferID uint64

// TextureID is an opaque handle to a registered texture.
type TextureID uint64

// SamplerID is an opaque handle to a registered sampler.
type SamplerID uint64

// DescriptorSetLayoutID is an opaque handle to a registered descriptor
// set layout.
type DescriptorSetLayoutID uint64

// DescriptorSetID is an opaque handle to a registered descriptor set.
type DescriptorSetID uint64

// PipelineID is an opaque handle to a registered pipeline.
type PipelineID uint64

// IsValid reports whether the handle refers to a resource.
func (id BufferID) IsValid() bool { return id != 0 }

// IsValid reports whether the handle refers to a resource.
func (id TextureID) IsValid() bool { return id != 0 }

// IsValid reports whether the handle refers to a resource.
func (id SamplerID) IsValid() bool { return id != 0 }

// IsValid reports whether the handle refers to a resource.
func (id DescriptorSetLayoutID) IsValid() bool { return id != 0 }

// IsValid reports whether the handle refers to a resource.
func (id DescriptorSetID) IsValid() bool { return id != 0 }

// IsValid reports whether the handle refers to a resource.
func (id PipelineID) IsValid() bool { return id != 0 }

// resourceKind discriminates ResourceID variants.
type resourceKind uint8

const (
	resourceBuffer resourceKind = iota + 1
	resourceTexture
)

// ResourceID identifies a synchronization unit: a whole buffer, or a
// single mip level of a texture. It is comparable, so it can key maps
// directly; two IDs are the same synchronization unit exactly when they
// compare equal.
type ResourceID struct {
	kind  resourceKind
	index uint64
	mip   uint32
}

// BufferResource returns the ResourceID for a buffer.
func BufferResource(id BufferID) ResourceID {
	return ResourceID{kind: resourceBuffer, index: uint64(id)}
}

// TextureResource returns the ResourceID for one mip level of a texture.
func TextureResource(id TextureID, mip uint32) ResourceID {
	return ResourceID{kind: resourceTexture, index: uint64(id), mip: mip}
}

// IsBuffer reports whether the ID refers to a buffer.
func (r ResourceID) IsBuffer() bool { return r.kind == resourceBuffer }

// IsTexture reports whether the ID refers to a texture mip.
func (r ResourceID) IsTexture() bool { return r.kind == resourceTexture }

// Buffer returns the buffer handle. It is only meaningful when IsBuffer
// reports true.
func (r ResourceID) Buffer() BufferID { return BufferID(r.index) }

// Texture returns the texture handle and mip level. It is only
// meaningful when IsTexture reports true.
func (r ResourceID) Texture() (TextureID, uint32) {
	return TextureID(r.index), r.mip
}

// String returns a readable form like "buffer(3)" or "texture(2, mip 1)".
func (r ResourceID) String() string {
	switch r.kind {
	case resourceBuffer:
		return fmt.Sprintf("buffer(%d)", r.index)
	case resourceTexture:
		return fmt.Sprintf("texture(%d, mip %d)", r.index, r.mip)
	}
	return "resource(invalid)"
}

// ResourceAccess pairs a resource with the access a command performs on
// it. Command streams precompute one flattened list per command.
type ResourceAccess struct {
	Resource ResourceID
	Access   backend.AccessFlags
}

// TextureView selects a mip range of a texture for descriptor bindings.
// A MipCount of 0 selects all levels from BaseMip onward.
type TextureView struct {
	Texture  TextureID
	BaseMip  uint32
	MipCount uint32
}

// BindingLocation addresses one binding slot of a pipeline layout.
type BindingLocation struct {
	Group   uint32
	Binding uint32
}

// BindingMap records, per binding location, the access a pipeline's
// shaders perform on the bound resource. It is derived from the shader
// binding declarations when the pipeline is created.
type BindingMap map[BindingLocation]backend.AccessFlags

// insert merges access into the map, combining with any flags already
// recorded for the location.
func (m BindingMap) insert(group, binding uint32, access backend.AccessFlags) {
	loc := BindingLocation{Group: group, Binding: binding}
	m[loc] |= access
}

// Get returns the access for a binding location.
func (m BindingMap) Get(group, binding uint32) (backend.AccessFlags, bool) {
	a, ok := m[BindingLocation{Group: group, Binding: binding}]
	return a, ok
}
