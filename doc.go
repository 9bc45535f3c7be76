// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpusched schedules GPU command streams by resource hazards.
//
// # Overview
//
// gpusched sits between an engine and a native GPU API. Commands are
// recorded through a CommandQueue; each command's resource accesses are
// derived at record time. When the frame is executed, a dependency
// scheduler orders the commands by the resources they share, inserts the
// memory barriers separating conflicting accesses, and replays the
// result against a backend encoder. Independent commands stay in the
// same dependency round so their barriers batch into a single native
// call.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/gputypes"
//
//	    "github.com/gogpu/gpusched"
//	    "github.com/gogpu/gpusched/backend"
//	    _ "github.com/gogpu/gpusched/backend/noop"
//	)
//
//	device, _ := backend.New("noop", nil)
//	exec := gpusched.New(device)
//	q := exec.Queue()
//
//	buf, _ := q.CreateBufferInit(backend.BufferDescriptor{
//	    Usage: gputypes.BufferUsageStorage,
//	}, data)
//
//	enc, _ := device.NewEncoder("frame")
//	tmp, _ := exec.Execute(enc)
//	// submit the encoder, wait for the frame fence, then:
//	exec.Destroy(tmp)
//	exec.Cleanup()
//
// # Resource Lifetimes
//
// Every resource handle is reference counted. Recording a command takes
// references on the resources it touches; Execute moves those counts
// into a TemporaryResources value that the caller returns with Destroy
// once the GPU is done with the frame. A resource whose last reference
// goes away is queued for deletion and its native object is destroyed
// on the next Cleanup, never while in-flight work could reference it.
//
// # Backends
//
// Native APIs plug in through the backend package, registered by name
// the way database/sql drivers are. backend/noop records every call for
// tests; backend/wgpu drives github.com/gogpu/wgpu.
package gpusched

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
