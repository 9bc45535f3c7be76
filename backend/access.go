// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import "strings"

// AccessFlags is a bitmask describing how pipeline stages access a GPU
// resource. The scheduler compares the flags of consecutive accesses to
// decide whether a barrier must separate them.
type AccessFlags uint32

// Access flags.
const (
	// AccessTransferRead indicates the resource is read by a transfer
	// operation (copy source).
	AccessTransferRead AccessFlags = 1 << 0

	// AccessTransferWrite indicates the resource is written by a transfer
	// operation (copy destination or direct upload).
	AccessTransferWrite AccessFlags = 1 << 1

	// AccessColorAttachmentRead indicates the texture is read as a color
	// attachment (load op Load).
	AccessColorAttachmentRead AccessFlags = 1 << 2

	// AccessColorAttachmentWrite indicates the texture is written as a
	// color attachment.
	AccessColorAttachmentWrite AccessFlags = 1 << 3

	// AccessDepthAttachmentRead indicates the texture is read as a
	// depth/stencil attachment.
	AccessDepthAttachmentRead AccessFlags = 1 << 4

	// AccessDepthAttachmentWrite indicates the texture is written as a
	// depth/stencil attachment.
	AccessDepthAttachmentWrite AccessFlags = 1 << 5

	// AccessIndexRead indicates the buffer is read as an index buffer.
	AccessIndexRead AccessFlags = 1 << 6

	// AccessIndirectRead indicates the buffer is read as an indirect
	// draw/dispatch argument buffer.
	AccessIndirectRead AccessFlags = 1 << 7

	// AccessVertexShaderRead indicates the resource is read by a vertex
	// shader.
	AccessVertexShaderRead AccessFlags = 1 << 8

	// AccessVertexShaderWrite indicates the resource is written by a
	// vertex shader.
	AccessVertexShaderWrite AccessFlags = 1 << 9

	// AccessFragmentShaderRead indicates the resource is read by a
	// fragment shader.
	AccessFragmentShaderRead AccessFlags = 1 << 10

	// AccessFragmentShaderWrite indicates the resource is written by a
	// fragment shader.
	AccessFragmentShaderWrite AccessFlags = 1 << 11

	// AccessPresent indicates the texture is handed to the presentation
	// engine.
	AccessPresent AccessFlags = 1 << 12
)

// Combined flags.
const (
	// AccessNone is the empty access. Freshly created resources start in
	// this state.
	AccessNone AccessFlags = 0

	// AccessShaderRead is a read from any shader stage.
	AccessShaderRead = AccessVertexShaderRead | AccessFragmentShaderRead

	// AccessShaderWrite is a write from any shader stage.
	AccessShaderWrite = AccessVertexShaderWrite | AccessFragmentShaderWrite
)

const readMask = AccessTransferRead |
	AccessColorAttachmentRead |
	AccessDepthAttachmentRead |
	AccessIndexRead |
	AccessIndirectRead |
	AccessVertexShaderRead |
	AccessFragmentShaderRead |
	AccessPresent

const writeMask = AccessTransferWrite |
	AccessColorAttachmentWrite |
	AccessDepthAttachmentWrite |
	AccessVertexShaderWrite |
	AccessFragmentShaderWrite

// Contains reports whether every bit in other is set in f.
func (f AccessFlags) Contains(other AccessFlags) bool {
	return f&other == other
}

// Readable reports whether f contains any read access.
func (f AccessFlags) Readable() bool {
	return f&readMask != 0
}

// Writable reports whether f contains any write access.
func (f AccessFlags) Writable() bool {
	return f&writeMask != 0
}

// ReadOnly reports whether f contains no write access. The empty access
// counts as read-only.
func (f AccessFlags) ReadOnly() bool {
	return !f.Writable()
}

// accessFlagNames maps single access bits to their string representation.
var accessFlagNames = []struct {
	flag AccessFlags
	name string
}{
	{AccessTransferRead, "TransferRead"},
	{AccessTransferWrite, "TransferWrite"},
	{AccessColorAttachmentRead, "ColorAttachmentRead"},
	{AccessColorAttachmentWrite, "ColorAttachmentWrite"},
	{AccessDepthAttachmentRead, "DepthAttachmentRead"},
	{AccessDepthAttachmentWrite, "DepthAttachmentWrite"},
	{AccessIndexRead, "IndexRead"},
	{AccessIndirectRead, "IndirectRead"},
	{AccessVertexShaderRead, "VertexShaderRead"},
	{AccessVertexShaderWrite, "VertexShaderWrite"},
	{AccessFragmentShaderRead, "FragmentShaderRead"},
	{AccessFragmentShaderWrite, "FragmentShaderWrite"},
	{AccessPresent, "Present"},
}

// String returns the set bits joined by "|", or "None" for the empty
// access.
func (f AccessFlags) String() string {
	if f == AccessNone {
		return "None"
	}
	var b strings.Builder
	for _, e := range accessFlagNames {
		if f&e.flag == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(e.name)
	}
	return b.String()
}
