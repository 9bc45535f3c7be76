// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpusched

// TemporaryResources counts, per resource, how many references the
// executed frame's commands held. Recording a command retains every
// resource it touches; executing the frame moves those counts here.
//
// Once the GPU is done with the frame (the frame fence has signaled),
// pass the value to CommandExecutor.Destroy to return the references.
// Resources whose counts reach zero are queued for deletion.
type TemporaryResources struct {
	buffers   map[BufferID]int
	textures  map[TextureID]int
	sets      map[DescriptorSetID]int
	pipelines map[PipelineID]int
}

func newTemporaryResources() *TemporaryResources {
	return &TemporaryResources{
		buffers:   make(map[BufferID]int),
		textures:  make(map[TextureID]int),
		sets:      make(map[DescriptorSetID]int),
		pipelines: make(map[PipelineID]int),
	}
}

// Empty reports whether the frame referenced no resources.
func (t *TemporaryResources) Empty() bool {
	return len(t.buffers) == 0 && len(t.textures) == 0 &&
		len(t.sets) == 0 && len(t.pipelines) == 0
}

func (t *TemporaryResources) insertBuffer(id BufferID) {
	t.buffers[id]++
}

func (t *TemporaryResources) insertTexture(id TextureID) {
	t.textures[id]++
}

func (t *TemporaryResources) insertDescriptorSet(id DescriptorSetID) {
	t.sets[id]++
}

func (t *TemporaryResources) insertPipeline(id PipelineID) {
	t.pipelines[id]++
}

// destroy returns all counted references to the registry and empties
// the multiset. Entries whose reference counts reach zero are removed
// and queued as deletion events.
func (t *TemporaryResources) destroy(reg *Registry) {
	for id, count := range t.buffers {
		reg.releaseBuffer(id, count)
	}
	for id, count := range t.textures {
		reg.releaseTexture(id, count)
	}
	for id, count := range t.sets {
		reg.releaseDescriptorSet(id, count)
	}
	for id, count := range t.pipelines {
		reg.releasePipeline(id, count)
	}
	clear(t.buffers)
	clear(t.textures)
	clear(t.sets)
	clear(t.pipelines)
}
