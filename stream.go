// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"fmt"

	"github.com/gogpu/gpusched/backend"
	"github.com/gogpu/gputypes"
)

// textureMipKey addresses one mip of a texture in the derivation
// scratch maps.
type textureMipKey struct {
	texture TextureID
	mip     uint32
}

// accessSpan locates one command's accesses in the shared access slice.
type accessSpan struct {
	offset uint32
	count  uint32
}

// CommandStream is an append-only list of recorded commands together
// with each command's precomputed resource accesses.
//
// Accesses are derived once, at record time, so scheduling never walks
// into pass sub-commands again. All per-command access lists share one
// backing slice; the scratch maps used during derivation are reused
// across Push calls, so a stream that is cleared and refilled every
// frame settles into steady-state allocation-free recording.
type CommandStream struct {
	cmds     []Command
	accesses []ResourceAccess
	spans    []accessSpan

	// nodes caches the per-command slices handed to the scheduler.
	nodes [][]ResourceAccess

	// Derivation scratch. The order slices remember first-touch order so
	// emitted accesses are deterministic despite map iteration.
	bufferFlags  map[BufferID]backend.AccessFlags
	textureFlags map[textureMipKey]backend.AccessFlags
	bufferOrder  []BufferID
	textureOrder []textureMipKey
	visitedSets  map[DescriptorSetID]struct{}
}

// NewCommandStream returns an empty stream.
func NewCommandStream() *CommandStream {
	return &CommandStream{
		bufferFlags:  make(map[BufferID]backend.AccessFlags),
		textureFlags: make(map[textureMipKey]backend.AccessFlags),
		visitedSets:  make(map[DescriptorSetID]struct{}),
	}
}

// Len returns the number of recorded commands.
func (s *CommandStream) Len() int { return len(s.cmds) }

// Command returns the i-th recorded command.
func (s *CommandStream) Command(i int) Command { return s.cmds[i] }

// CommandAccesses returns the derived accesses of the i-th command. The
// returned slice aliases internal storage and is valid until Clear.
func (s *CommandStream) CommandAccesses(i int) []ResourceAccess {
	sp := s.spans[i]
	return s.accesses[sp.offset : sp.offset+sp.count]
}

// AccessLists returns one access slice per command, in command order.
// The result is reused by subsequent calls.
func (s *CommandStream) AccessLists() [][]ResourceAccess {
	s.nodes = s.nodes[:0]
	for i := range s.spans {
		s.nodes = append(s.nodes, s.CommandAccesses(i))
	}
	return s.nodes
}

// Clear removes all commands, keeping capacity for the next frame.
func (s *CommandStream) Clear() {
	s.cmds = s.cmds[:0]
	s.accesses = s.accesses[:0]
	s.spans = s.spans[:0]
	s.nodes = s.nodes[:0]
}

// Push records a command and derives its resource accesses. The
// registry resolves descriptor set contents and pipeline binding maps
// for pass commands.
//
// Push panics if a command would list the same resource twice; the
// derivation rules collapse aliased and repeated uses into single
// entries, so a duplicate is a derivation bug.
func (s *CommandStream) Push(res *Registry, cmd Command) {
	start := len(s.accesses)

	switch c := cmd.(type) {
	case WriteBufferCommand:
		s.appendAccess(BufferResource(c.Buffer), backend.AccessTransferWrite)

	case CopyBufferToBufferCommand:
		if c.Src == c.Dst {
			// Copying within one buffer collapses to a single
			// read-plus-write entry.
			s.appendAccess(BufferResource(c.Src), backend.AccessTransferRead|backend.AccessTransferWrite)
		} else {
			s.appendAccess(BufferResource(c.Src), backend.AccessTransferRead)
			s.appendAccess(BufferResource(c.Dst), backend.AccessTransferWrite)
		}

	case CopyBufferToTextureCommand:
		s.appendAccess(BufferResource(c.Src), backend.AccessTransferRead)
		s.appendAccess(TextureResource(c.Dst, c.DstMip), backend.AccessTransferWrite)

	case CopyTextureToTextureCommand:
		if c.Src == c.Dst && c.SrcMip == c.DstMip {
			s.appendAccess(TextureResource(c.Src, c.SrcMip), backend.AccessTransferRead|backend.AccessTransferWrite)
		} else {
			s.appendAccess(TextureResource(c.Src, c.SrcMip), backend.AccessTransferRead)
			s.appendAccess(TextureResource(c.Dst, c.DstMip), backend.AccessTransferWrite)
		}

	case TransitionCommand:
		s.appendAccess(TextureResource(c.Texture, c.Mip), c.Access)

	case RenderPassCommand:
		s.beginPassScratch()
		for _, att := range c.ColorAttachments {
			access := backend.AccessColorAttachmentWrite
			if att.LoadOp == gputypes.LoadOpLoad {
				access |= backend.AccessColorAttachmentRead
			}
			s.textureFlag(att.Texture, att.Mip, access)
		}
		if d := c.DepthStencil; d != nil {
			s.textureFlag(d.Texture, d.Mip, backend.AccessDepthAttachmentRead|backend.AccessDepthAttachmentWrite)
		}
		s.passCommandAccesses(res, c.Commands)
		s.flushPassScratch()

	case ComputePassCommand:
		s.beginPassScratch()
		s.passCommandAccesses(res, c.Commands)
		s.flushPassScratch()

	case CreateBufferCommand:
		// Creation carries no access; the empty entry orders the
		// creation against every later use of the buffer.
		s.appendAccess(BufferResource(c.Buffer), backend.AccessNone)

	case CreateTextureCommand:
		for mip := uint32(0); mip < c.MipLevels; mip++ {
			s.appendAccess(TextureResource(c.Texture, mip), backend.AccessNone)
		}

	case DestroyBufferCommand, DestroyTextureCommand:
		// Destruction releases a handle; it performs no GPU access.

	default:
		panic(fmt.Sprintf("gpusched: unknown command type %T", cmd))
	}

	s.checkNoDuplicates(start)

	s.cmds = append(s.cmds, cmd)
	s.spans = append(s.spans, accessSpan{
		offset: uint32(start),
		count:  uint32(len(s.accesses) - start),
	})
}

// passCommandAccesses accumulates the accesses of pass sub-commands into
// the scratch maps. Binding accesses come from the bound pipeline's
// BindingMap; a descriptor set contributes only once per pass even if
// rebound.
func (s *CommandStream) passCommandAccesses(res *Registry, cmds []PassCommand) {
	var bindings BindingMap

	for _, pc := range cmds {
		switch c := pc.(type) {
		case SetPipelineCommand:
			bindings = res.pipelineBindings(c.Pipeline)

		case SetDescriptorSetCommand:
			if _, seen := s.visitedSets[c.Set]; seen {
				continue
			}
			s.visitedSets[c.Set] = struct{}{}
			s.descriptorSetAccesses(res, bindings, c.Group, c.Set)

		case SetIndexBufferCommand:
			s.bufferFlag(c.Buffer, backend.AccessIndexRead)

		case DrawIndirectCommand:
			s.bufferFlag(c.Buffer, backend.AccessIndirectRead)
		}
	}
}

// descriptorSetAccesses folds one descriptor set's resources into the
// scratch maps using the pipeline's declared per-binding access.
func (s *CommandStream) descriptorSetAccesses(res *Registry, bindings BindingMap, group uint32, set DescriptorSetID) {
	for _, b := range res.setBindings(set) {
		access, used := bindings.Get(group, b.Binding)
		if !used {
			// The bound pipeline's shaders never touch this binding.
			continue
		}

		switch b.Kind {
		case backend.DescriptorUniformBuffer, backend.DescriptorStorageBuffer:
			s.bufferFlag(b.Buffer, access)
		case backend.DescriptorSampler:
			// Samplers carry no hazard state.
		case backend.DescriptorTexture:
			s.textureViewFlag(res, b.Texture, access)
		case backend.DescriptorTextureArray:
			for _, view := range b.Textures {
				s.textureViewFlag(res, view, access)
			}
		}
	}
}

func (s *CommandStream) textureViewFlag(res *Registry, view TextureView, access backend.AccessFlags) {
	count := view.MipCount
	if count == 0 {
		count = res.textureMipLevels(view.Texture) - view.BaseMip
	}
	for mip := view.BaseMip; mip < view.BaseMip+count; mip++ {
		s.textureFlag(view.Texture, mip, access)
	}
}

func (s *CommandStream) beginPassScratch() {
	clear(s.bufferFlags)
	clear(s.textureFlags)
	clear(s.visitedSets)
	s.bufferOrder = s.bufferOrder[:0]
	s.textureOrder = s.textureOrder[:0]
}

func (s *CommandStream) bufferFlag(id BufferID, access backend.AccessFlags) {
	if _, seen := s.bufferFlags[id]; !seen {
		s.bufferOrder = append(s.bufferOrder, id)
	}
	s.bufferFlags[id] |= access
}

func (s *CommandStream) textureFlag(id TextureID, mip uint32, access backend.AccessFlags) {
	key := textureMipKey{texture: id, mip: mip}
	if _, seen := s.textureFlags[key]; !seen {
		s.textureOrder = append(s.textureOrder, key)
	}
	s.textureFlags[key] |= access
}

// flushPassScratch emits the accumulated pass accesses in first-touch
// order, one entry per resource.
func (s *CommandStream) flushPassScratch() {
	for _, id := range s.bufferOrder {
		s.appendAccess(BufferResource(id), s.bufferFlags[id])
	}
	for _, key := range s.textureOrder {
		s.appendAccess(TextureResource(key.texture, key.mip), s.textureFlags[key])
	}
}

func (s *CommandStream) appendAccess(id ResourceID, access backend.AccessFlags) {
	s.accesses = append(s.accesses, ResourceAccess{Resource: id, Access: access})
}

func (s *CommandStream) checkNoDuplicates(start int) {
	entries := s.accesses[start:]
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].Resource == entries[j].Resource {
				panic(fmt.Sprintf("gpusched: duplicate access for %v in one command", entries[i].Resource))
			}
		}
	}
}
