// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"github.com/gogpu/gpusched/backend"
	"github.com/gogpu/gputypes"
)

// CommandType identifies the type of a recorded command.
type CommandType uint8

const (
	// Transfer commands
	CmdWriteBuffer         CommandType = iota // Upload host data to a buffer
	CmdCopyBufferToBuffer                     // Copy between buffers
	CmdCopyBufferToTexture                    // Copy buffer data into a texture mip
	CmdCopyTextureToTexture                   // Copy between texture mips

	// Pass commands
	CmdRenderPass  // Replay a recorded render pass
	CmdComputePass // Replay a recorded compute pass

	// Lifecycle commands
	CmdTransition     // Force a texture mip into an access state
	CmdCreateBuffer   // Order buffer creation against later accesses
	CmdCreateTexture  // Order texture creation against later accesses
	CmdDestroyBuffer  // Release a buffer handle after prior commands
	CmdDestroyTexture // Release a texture handle after prior commands
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdWriteBuffer:          "WriteBuffer",
	CmdCopyBufferToBuffer:   "CopyBufferToBuffer",
	CmdCopyBufferToTexture:  "CopyBufferToTexture",
	CmdCopyTextureToTexture: "CopyTextureToTexture",
	CmdRenderPass:           "RenderPass",
	CmdComputePass:          "ComputePass",
	CmdTransition:           "Transition",
	CmdCreateBuffer:         "CreateBuffer",
	CmdCreateTexture:        "CreateTexture",
	CmdDestroyBuffer:        "DestroyBuffer",
	CmdDestroyTexture:       "DestroyTexture",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all recorded command types.
// Commands are immutable once recorded; their resource accesses are
// derived at record time and consumed by the scheduler.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// WriteBufferCommand uploads host data into a host-visible buffer.
// Writes to device-local buffers are recorded as a staging buffer write
// followed by a copy.
type WriteBufferCommand struct {
	Buffer BufferID
	Offset uint64
	Data   []byte
}

// Type implements Command.
func (WriteBufferCommand) Type() CommandType { return CmdWriteBuffer }

// CopyBufferToBufferCommand copies a byte range between buffers. Src and
// Dst may refer to the same buffer as long as the ranges do not overlap.
type CopyBufferToBufferCommand struct {
	Src       BufferID
	SrcOffset uint64
	Dst       BufferID
	DstOffset uint64
	Size      uint64
}

// Type implements Command.
func (CopyBufferToBufferCommand) Type() CommandType { return CmdCopyBufferToBuffer }

// CopyBufferToTextureCommand copies buffer data into one mip level of a
// texture.
type CopyBufferToTextureCommand struct {
	Src       BufferID
	SrcLayout backend.ImageDataLayout
	Dst       TextureID
	DstMip    uint32
	DstOrigin gputypes.Origin3D
	Size      gputypes.Extent3D
}

// Type implements Command.
func (CopyBufferToTextureCommand) Type() CommandType { return CmdCopyBufferToTexture }

// CopyTextureToTextureCommand copies between texture mips.
type CopyTextureToTextureCommand struct {
	Src    TextureID
	SrcMip uint32
	Dst    TextureID
	DstMip uint32
	Size   gputypes.Extent3D
}

// Type implements Command.
func (CopyTextureToTextureCommand) Type() CommandType { return CmdCopyTextureToTexture }

// TransitionCommand forces a texture mip into the given access state,
// regardless of whether any recorded command reads or writes it. Used
// for external requirements such as presentation.
type TransitionCommand struct {
	Texture TextureID
	Mip     uint32
	Access  backend.AccessFlags
}

// Type implements Command.
func (TransitionCommand) Type() CommandType { return CmdTransition }

// ColorAttachment describes one color target of a recorded render pass.
type ColorAttachment struct {
	Texture    TextureID
	Mip        uint32
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	ClearColor gputypes.Color
}

// DepthStencilAttachment describes the depth target of a recorded render
// pass.
type DepthStencilAttachment struct {
	Texture    TextureID
	Mip        uint32
	LoadOp     gputypes.LoadOp
	StoreOp    gputypes.StoreOp
	ClearDepth float32
}

// RenderPassCommand replays a recorded render pass. The sub-commands are
// validated at record time by the RenderPass recorder.
type RenderPassCommand struct {
	Label            string
	ColorAttachments []ColorAttachment
	DepthStencil     *DepthStencilAttachment
	Commands         []PassCommand
}

// Type implements Command.
func (RenderPassCommand) Type() CommandType { return CmdRenderPass }

// ComputePassCommand replays a recorded compute pass.
type ComputePassCommand struct {
	Label    string
	Commands []PassCommand
}

// Type implements Command.
func (ComputePassCommand) Type() CommandType { return CmdComputePass }

// CreateBufferCommand orders a buffer creation against later accesses.
// It carries no access flags; scheduling only needs the ordering edge.
type CreateBufferCommand struct {
	Buffer BufferID
}

// Type implements Command.
func (CreateBufferCommand) Type() CommandType { return CmdCreateBuffer }

// CreateTextureCommand orders a texture creation against later accesses.
type CreateTextureCommand struct {
	Texture   TextureID
	MipLevels uint32
}

// Type implements Command.
func (CreateTextureCommand) Type() CommandType { return CmdCreateTexture }

// DestroyBufferCommand releases the user handle of a buffer once all
// previously recorded commands have been scheduled.
type DestroyBufferCommand struct {
	Buffer BufferID
}

// Type implements Command.
func (DestroyBufferCommand) Type() CommandType { return CmdDestroyBuffer }

// DestroyTextureCommand releases the user handle of a texture once all
// previously recorded commands have been scheduled.
type DestroyTextureCommand struct {
	Texture TextureID
}

// Type implements Command.
func (DestroyTextureCommand) Type() CommandType { return CmdDestroyTexture }

// --------------------------------------------------------------------------
// Pass sub-commands
// --------------------------------------------------------------------------

// PassCommandType identifies the type of a pass sub-command.
type PassCommandType uint8

const (
	PassCmdSetPipeline PassCommandType = iota
	PassCmdSetDescriptorSet
	PassCmdSetPushConstants
	PassCmdSetIndexBuffer
	PassCmdDraw
	PassCmdDrawIndexed
	PassCmdDrawIndirect
	PassCmdDrawMeshTasks
	PassCmdDispatch
)

// passCommandTypeNames maps PassCommandType values to their string
// representation.
var passCommandTypeNames = [...]string{
	PassCmdSetPipeline:      "SetPipeline",
	PassCmdSetDescriptorSet: "SetDescriptorSet",
	PassCmdSetPushConstants: "SetPushConstants",
	PassCmdSetIndexBuffer:   "SetIndexBuffer",
	PassCmdDraw:             "Draw",
	PassCmdDrawIndexed:      "DrawIndexed",
	PassCmdDrawIndirect:     "DrawIndirect",
	PassCmdDrawMeshTasks:    "DrawMeshTasks",
	PassCmdDispatch:         "Dispatch",
}

// String returns the string representation of a PassCommandType.
func (c PassCommandType) String() string {
	if int(c) < len(passCommandTypeNames) {
		return passCommandTypeNames[c]
	}
	return "Unknown"
}

// PassCommand is the interface implemented by pass sub-commands.
type PassCommand interface {
	PassType() PassCommandType
}

// SetPipelineCommand binds a pipeline for subsequent draws or
// dispatches.
type SetPipelineCommand struct {
	Pipeline PipelineID
}

// PassType implements PassCommand.
func (SetPipelineCommand) PassType() PassCommandType { return PassCmdSetPipeline }

// SetDescriptorSetCommand binds a descriptor set to a group slot.
type SetDescriptorSetCommand struct {
	Group uint32
	Set   DescriptorSetID
}

// PassType implements PassCommand.
func (SetDescriptorSetCommand) PassType() PassCommandType { return PassCmdSetDescriptorSet }

// SetPushConstantsCommand uploads push constant data.
type SetPushConstantsCommand struct {
	Stages gputypes.ShaderStage
	Offset uint32
	Data   []byte
}

// PassType implements PassCommand.
func (SetPushConstantsCommand) PassType() PassCommandType { return PassCmdSetPushConstants }

// SetIndexBufferCommand binds an index buffer.
type SetIndexBufferCommand struct {
	Buffer BufferID
	Format backend.IndexFormat
}

// PassType implements PassCommand.
func (SetIndexBufferCommand) PassType() PassCommandType { return PassCmdSetIndexBuffer }

// DrawCommand issues a non-indexed draw.
type DrawCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// PassType implements PassCommand.
func (DrawCommand) PassType() PassCommandType { return PassCmdDraw }

// DrawIndexedCommand issues an indexed draw.
type DrawIndexedCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// PassType implements PassCommand.
func (DrawIndexedCommand) PassType() PassCommandType { return PassCmdDrawIndexed }

// DrawIndirectCommand issues draws with arguments read from a buffer.
type DrawIndirectCommand struct {
	Buffer    BufferID
	Offset    uint64
	DrawCount uint32
	Stride    uint32
}

// PassType implements PassCommand.
func (DrawIndirectCommand) PassType() PassCommandType { return PassCmdDrawIndirect }

// DrawMeshTasksCommand launches mesh shader workgroups.
type DrawMeshTasksCommand struct {
	X, Y, Z uint32
}

// PassType implements PassCommand.
func (DrawMeshTasksCommand) PassType() PassCommandType { return PassCmdDrawMeshTasks }

// DispatchCommand launches compute workgroups.
type DispatchCommand struct {
	X, Y, Z uint32
}

// PassType implements PassCommand.
func (DispatchCommand) PassType() PassCommandType { return PassCmdDispatch }
