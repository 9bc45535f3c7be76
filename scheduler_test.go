// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"slices"
	"testing"

	"github.com/gogpu/gpusched/backend"
)

// fakeResources implements ResourceMap over a plain map.
type fakeResources map[ResourceID]backend.AccessFlags

func (m fakeResources) Access(id ResourceID) backend.AccessFlags { return m[id] }

func (m fakeResources) SetAccess(id ResourceID, access backend.AccessFlags) { m[id] = access }

func barrierStep(id ResourceID, src, dst backend.AccessFlags) Step {
	return Step{Kind: StepBarrier, Barrier: Barrier{Resource: id, SrcAccess: src, DstAccess: dst}}
}

func nodeStep(i int) Step {
	return Step{Kind: StepNode, Node: i}
}

func TestScheduleSimple(t *testing.T) {
	// |---|     |---|
	// | 0 | --> | 2 |
	// |---|     |---| -> |---|
	// | 1 | -----------> | 3 |
	// |---|              |---|
	res0 := BufferResource(1)
	res1 := BufferResource(2)
	resources := fakeResources{res0: backend.AccessNone, res1: backend.AccessNone}

	nodes := [][]ResourceAccess{
		{{Resource: res0, Access: backend.AccessTransferWrite}},
		{{Resource: res1, Access: backend.AccessTransferWrite}},
		{{Resource: res0, Access: backend.AccessShaderRead}},
		{
			{Resource: res0, Access: backend.AccessShaderRead},
			{Resource: res1, Access: backend.AccessShaderRead},
		},
	}

	steps := NewScheduler(len(nodes)).Schedule(resources, nodes)
	want := []Step{
		barrierStep(res0, backend.AccessNone, backend.AccessTransferWrite),
		barrierStep(res1, backend.AccessNone, backend.AccessTransferWrite),
		nodeStep(0),
		nodeStep(1),
		barrierStep(res0, backend.AccessTransferWrite, backend.AccessShaderRead),
		nodeStep(2),
		barrierStep(res1, backend.AccessTransferWrite, backend.AccessShaderRead),
		nodeStep(3),
	}
	if !slices.Equal(steps, want) {
		t.Errorf("Schedule() = %v, want %v", steps, want)
	}
}

func TestScheduleReadAndWrite(t *testing.T) {
	// |---|     |---|     |---|
	// | 0 | --> | 1 | --> | 2 |
	// |---|     |---|     |---|
	res0 := BufferResource(1)
	res1 := BufferResource(2)
	resources := fakeResources{res0: backend.AccessNone, res1: backend.AccessNone}

	nodes := [][]ResourceAccess{
		{{Resource: res0, Access: backend.AccessTransferWrite}},
		{
			{Resource: res0, Access: backend.AccessTransferRead},
			{Resource: res1, Access: backend.AccessTransferWrite},
		},
		{{Resource: res1, Access: backend.AccessShaderRead}},
	}

	steps := NewScheduler(len(nodes)).Schedule(resources, nodes)
	want := []Step{
		barrierStep(res0, backend.AccessNone, backend.AccessTransferWrite),
		nodeStep(0),
		barrierStep(res0, backend.AccessTransferWrite, backend.AccessTransferRead),
		barrierStep(res1, backend.AccessNone, backend.AccessTransferWrite),
		nodeStep(1),
		barrierStep(res1, backend.AccessTransferWrite, backend.AccessShaderRead),
		nodeStep(2),
	}
	if !slices.Equal(steps, want) {
		t.Errorf("Schedule() = %v, want %v", steps, want)
	}
}

func TestScheduleWriteAfterWrite(t *testing.T) {
	// Repeated writes to one resource stay strictly ordered and every
	// write gets a barrier even though the access flags never change.
	res0 := BufferResource(1)
	resources := fakeResources{res0: backend.AccessNone}

	nodes := [][]ResourceAccess{
		{{Resource: res0, Access: backend.AccessTransferWrite}},
		{{Resource: res0, Access: backend.AccessTransferWrite}},
		{{Resource: res0, Access: backend.AccessTransferWrite}},
	}

	steps := NewScheduler(len(nodes)).Schedule(resources, nodes)
	want := []Step{
		barrierStep(res0, backend.AccessNone, backend.AccessTransferWrite),
		nodeStep(0),
		barrierStep(res0, backend.AccessTransferWrite, backend.AccessTransferWrite),
		nodeStep(1),
		barrierStep(res0, backend.AccessTransferWrite, backend.AccessTransferWrite),
		nodeStep(2),
	}
	if !slices.Equal(steps, want) {
		t.Errorf("Schedule() = %v, want %v", steps, want)
	}
}

func TestScheduleDisjointNodesShareRound(t *testing.T) {
	// Nodes with no shared resources stay in one round: all their
	// barriers precede both nodes so the executor batches them.
	res0 := BufferResource(1)
	res1 := BufferResource(2)
	resources := fakeResources{res0: backend.AccessNone, res1: backend.AccessNone}

	nodes := [][]ResourceAccess{
		{{Resource: res0, Access: backend.AccessTransferWrite}},
		{{Resource: res1, Access: backend.AccessTransferWrite}},
	}

	steps := NewScheduler(len(nodes)).Schedule(resources, nodes)
	want := []Step{
		barrierStep(res0, backend.AccessNone, backend.AccessTransferWrite),
		barrierStep(res1, backend.AccessNone, backend.AccessTransferWrite),
		nodeStep(0),
		nodeStep(1),
	}
	if !slices.Equal(steps, want) {
		t.Errorf("Schedule() = %v, want %v", steps, want)
	}
}

func TestScheduleAccessStateCarriesAcrossFrames(t *testing.T) {
	// The resource map keeps the access state from the previous
	// schedule, so the next frame's first barrier transitions from it.
	res0 := BufferResource(1)
	resources := fakeResources{res0: backend.AccessNone}
	s := NewScheduler(1)

	s.Schedule(resources, [][]ResourceAccess{
		{{Resource: res0, Access: backend.AccessTransferWrite}},
	})

	steps := s.Schedule(resources, [][]ResourceAccess{
		{{Resource: res0, Access: backend.AccessShaderRead}},
	})
	want := []Step{
		barrierStep(res0, backend.AccessTransferWrite, backend.AccessShaderRead),
		nodeStep(0),
	}
	if !slices.Equal(steps, want) {
		t.Errorf("Schedule() = %v, want %v", steps, want)
	}
}

func TestScheduleReadAfterReadSkipsBarrier(t *testing.T) {
	// Consecutive reads in the same state need ordering but no barrier.
	res0 := BufferResource(1)
	resources := fakeResources{res0: backend.AccessShaderRead}

	nodes := [][]ResourceAccess{
		{{Resource: res0, Access: backend.AccessShaderRead}},
		{{Resource: res0, Access: backend.AccessShaderRead}},
	}

	steps := NewScheduler(len(nodes)).Schedule(resources, nodes)
	want := []Step{nodeStep(0), nodeStep(1)}
	if !slices.Equal(steps, want) {
		t.Errorf("Schedule() = %v, want %v", steps, want)
	}
}

func TestScheduleEmpty(t *testing.T) {
	steps := NewScheduler(0).Schedule(fakeResources{}, nil)
	if len(steps) != 0 {
		t.Errorf("Schedule() = %v, want no steps", steps)
	}
}
