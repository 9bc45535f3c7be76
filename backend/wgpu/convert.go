// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gpusched/backend"
)

// textureUsage maps scheduler access flags to the texture usage wgpu
// transitions between. An empty access (freshly created texture) maps
// to zero, which hal treats as an undefined prior state.
func textureUsage(access backend.AccessFlags) gputypes.TextureUsage {
	var usage gputypes.TextureUsage
	if access.Contains(backend.AccessTransferRead) {
		usage |= gputypes.TextureUsageCopySrc
	}
	if access.Contains(backend.AccessTransferWrite) {
		usage |= gputypes.TextureUsageCopyDst
	}
	if access&(backend.AccessColorAttachmentRead|backend.AccessColorAttachmentWrite|
		backend.AccessDepthAttachmentRead|backend.AccessDepthAttachmentWrite|
		backend.AccessPresent) != 0 {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	if access&(backend.AccessVertexShaderRead|backend.AccessFragmentShaderRead) != 0 {
		usage |= gputypes.TextureUsageTextureBinding
	}
	if access&(backend.AccessVertexShaderWrite|backend.AccessFragmentShaderWrite) != 0 {
		usage |= gputypes.TextureUsageStorageBinding
	}
	return usage
}

func filterMode(m backend.FilterMode) gputypes.FilterMode {
	if m == backend.FilterModeLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

func addressMode(m backend.AddressMode) gputypes.AddressMode {
	switch m {
	case backend.AddressModeRepeat:
		return gputypes.AddressModeRepeat
	case backend.AddressModeMirrorRepeat:
		return gputypes.AddressModeMirrorRepeat
	default:
		return gputypes.AddressModeClampToEdge
	}
}
