package optimize

import "chunkc/graph"

// Defaults of the chunk size accounting.
const (
	DefaultChunkOverhead           = 10000
	DefaultEntryChunkMultiplicator = 10
)

// SizeOptions configures how chunk sizes are estimated.
type SizeOptions struct {
	// ChunkOverhead is added to the size of every chunk.
	ChunkOverhead int

	// EntryChunkMultiplicator scales the module size of initial chunks.  Zero
	// uses DefaultEntryChunkMultiplicator.
	EntryChunkMultiplicator int
}

func (so SizeOptions) multiplicator() int {
	if so.EntryChunkMultiplicator == 0 {
		return DefaultEntryChunkMultiplicator
	}

	return so.EntryChunkMultiplicator
}

// ChunkSize returns the estimated size of a chunk.
func ChunkSize(g *graph.Graph, c *graph.Chunk, so SizeOptions) int {
	size := 0
	for _, m := range c.Modules() {
		size += g.Module(m).Size
	}

	if c.IsInitial {
		size *= so.multiplicator()
	}

	return size + so.ChunkOverhead
}

// IntegratedSize returns the estimated size of the chunk that would result from
// merging a and b.  ok is false if the chunks cannot be merged.
func IntegratedSize(g *graph.Graph, a, b *graph.Chunk, so SizeOptions) (size int, ok bool) {
	if !g.Integrable(a.ID, b.ID) {
		return 0, false
	}

	for _, m := range a.Modules() {
		size += g.Module(m).Size
	}

	for _, m := range b.Modules() {
		if !a.HasModule(m) {
			size += g.Module(m).Size
		}
	}

	if a.IsInitial || b.IsInitial {
		size *= so.multiplicator()
	}

	return size + so.ChunkOverhead, true
}
