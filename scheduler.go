// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

import (
	"sort"

	"github.com/gogpu/gpusched/backend"
)

// ResourceMap tracks the last scheduled access of every resource. The
// scheduler reads the previous access to build barriers and writes the
// new access as it emits them, so the state carries across frames.
//
// Registry implements ResourceMap.
type ResourceMap interface {
	Access(id ResourceID) backend.AccessFlags
	SetAccess(id ResourceID, access backend.AccessFlags)
}

// StepKind discriminates scheduler output steps.
type StepKind uint8

const (
	// StepBarrier transitions one resource between access states.
	StepBarrier StepKind = iota

	// StepNode executes one command.
	StepNode
)

// Barrier transitions a resource from its previous access state to the
// access required by the next command that uses it.
type Barrier struct {
	Resource  ResourceID
	SrcAccess backend.AccessFlags
	DstAccess backend.AccessFlags
}

// Step is one element of a schedule: either a barrier or the index of a
// command to execute.
type Step struct {
	Kind StepKind

	// Node is the command index. Valid when Kind is StepNode.
	Node int

	// Barrier is the transition to insert. Valid when Kind is StepBarrier.
	Barrier Barrier
}

// Scheduler orders commands by their resource dependencies and inserts
// the barriers that separate conflicting accesses.
//
// Two commands conflict when they access the same resource; the earlier
// recorded command always executes first. Commands with no shared
// resources stay concurrent: they land in the same dependency round and
// their barriers batch together.
//
// The zero value is ready to use. A Scheduler retains its internal
// buffers between calls, so reusing one across frames avoids
// re-allocating the graph every time.
type Scheduler struct {
	steps []Step

	// accessors lists, per resource, the nodes that access it in record
	// order. Rebuilt every Schedule call.
	accessors map[ResourceID][]int

	succs   [][]int
	pending []int
	ready   []int
	next    []int
}

// NewScheduler returns a Scheduler with storage preallocated for
// roughly n commands per frame.
func NewScheduler(n int) *Scheduler {
	return &Scheduler{
		steps:     make([]Step, 0, 2*n),
		accessors: make(map[ResourceID][]int, n),
		succs:     make([][]int, 0, n),
		pending:   make([]int, 0, n),
	}
}

// Schedule orders the given nodes and returns the steps to execute.
// nodes[i] is the access list of command i. The returned slice is
// reused by the next call.
//
// Barrier emission updates res in step order, so after Schedule returns
// the map reflects the access state at the end of the frame.
//
// A barrier is skipped only when the resource is already in exactly the
// required state and that state is read-only; writes always get a
// barrier even when the access flags match, because a write-after-write
// still needs ordering.
func (s *Scheduler) Schedule(res ResourceMap, nodes [][]ResourceAccess) []Step {
	n := len(nodes)
	s.reset(n)

	// Build the dependency graph. Every earlier accessor of a resource
	// becomes a predecessor, including read-after-read: reads stay
	// ordered (and rounds stay stable) but skip the barrier below.
	for i, accesses := range nodes {
		for _, ra := range accesses {
			list := s.accessors[ra.Resource]
			for _, j := range list {
				if !containsNode(s.succs[j], i) {
					s.succs[j] = append(s.succs[j], i)
					s.pending[i]++
				}
			}
			s.accessors[ra.Resource] = append(list, i)
		}
	}

	s.ready = s.ready[:0]
	for i := 0; i < n; i++ {
		if s.pending[i] == 0 {
			s.ready = append(s.ready, i)
		}
	}

	// Drain in rounds. All barriers of a round are emitted before any
	// of its nodes so the executor can batch them into one native call.
	// Nodes in one round never share a resource; sharing would have
	// created an edge between them.
	emitted := 0
	for len(s.ready) > 0 {
		s.next = s.next[:0]

		for _, i := range s.ready {
			for _, ra := range nodes[i] {
				src := res.Access(ra.Resource)
				if src == ra.Access && ra.Access.ReadOnly() {
					continue
				}
				s.steps = append(s.steps, Step{
					Kind: StepBarrier,
					Barrier: Barrier{
						Resource:  ra.Resource,
						SrcAccess: src,
						DstAccess: ra.Access,
					},
				})
				res.SetAccess(ra.Resource, ra.Access)
			}
		}

		for _, i := range s.ready {
			s.steps = append(s.steps, Step{Kind: StepNode, Node: i})
			emitted++
			for _, j := range s.succs[i] {
				s.pending[j]--
				if s.pending[j] == 0 {
					s.next = append(s.next, j)
				}
			}
		}

		// Keep rounds in record order regardless of completion order.
		sort.Ints(s.next)
		s.ready, s.next = s.next, s.ready
	}

	if emitted != n {
		// Unreachable for streams built by CommandStream: record order
		// breaks every tie, so the graph is acyclic by construction.
		panic("gpusched: command dependency graph contains a cycle")
	}
	return s.steps
}

func (s *Scheduler) reset(n int) {
	s.steps = s.steps[:0]

	if s.accessors == nil {
		s.accessors = make(map[ResourceID][]int, n)
	} else {
		clear(s.accessors)
	}

	if cap(s.succs) < n {
		s.succs = make([][]int, n)
	}
	s.succs = s.succs[:n]
	for i := range s.succs {
		s.succs[i] = s.succs[i][:0]
	}

	if cap(s.pending) < n {
		s.pending = make([]int, n)
	}
	s.pending = s.pending[:n]
	for i := range s.pending {
		s.pending[i] = 0
	}
}

func containsNode(list []int, node int) bool {
	for _, v := range list {
		if v == node {
			return true
		}
	}
	return false
}
