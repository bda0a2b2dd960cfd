package optimize

import (
	"chunkc/graph"
	"chunkc/report"
)

// EnsureChunkConditions moves every module out of the chunks its chunk
// condition rejects and into the parents of those chunks.  Each module tries a
// given chunk at most once, which bounds the number of moves.
//
// A rejected module is kept in place (with a warning) when none of the chunk's
// parents holds it after the move: removing it would drop the module from
// every path through the chunk.
type EnsureChunkConditions struct {
	g *graph.Graph

	// tries records, per module, the chunks that already rejected it.
	tries map[graph.ModuleID]map[graph.ChunkID]struct{}

	// warned records the placements that were already reported as stuck.
	warned map[[2]int]struct{}
}

// NewEnsureChunkConditions creates a new pass.  The pass keeps state across
// invocations on the same graph and resets it for a new graph.
func NewEnsureChunkConditions() *EnsureChunkConditions {
	return &EnsureChunkConditions{}
}

// Run runs the pass.
func (ec *EnsureChunkConditions) Run(g *graph.Graph) bool {
	if ec.g != g {
		ec.g = g
		ec.tries = make(map[graph.ModuleID]map[graph.ChunkID]struct{})
		ec.warned = make(map[[2]int]struct{})
	}

	changed := false
	for _, c := range g.Chunks() {
		if g.Chunk(c.ID) == nil {
			continue
		}

		for _, mid := range append([]graph.ModuleID(nil), c.Modules()...) {
			m := g.Module(mid)
			if m.AcceptsChunk(c) {
				continue
			}

			if ec.relocate(c, m) {
				changed = true
			}
		}
	}

	return changed
}

// relocate moves m from c to the untried parents of c.  It returns whether the
// module was moved.
func (ec *EnsureChunkConditions) relocate(c *graph.Chunk, m *graph.Module) bool {
	g := ec.g

	used, ok := ec.tries[m.ID]
	if !ok {
		used = make(map[graph.ChunkID]struct{})
		ec.tries[m.ID] = used
	}
	used[c.ID] = struct{}{}

	var newChunks []graph.ChunkID
	for _, p := range c.Parents() {
		if _, tried := used[p]; tried {
			if g.Chunk(p).HasModule(m.ID) {
				newChunks = append(newChunks, p)
			}

			continue
		}

		g.AddModuleToChunk(p, m.ID)
		newChunks = append(newChunks, p)
	}

	if len(newChunks) == 0 {
		key := [2]int{int(m.ID), int(c.ID)}
		if _, ok := ec.warned[key]; !ok {
			ec.warned[key] = struct{}{}
			report.Warn("Condition", "module rejected by its chunk has no parent chunk to move to", "module", m.Identifier, "chunk", c.String())
		}

		return false
	}

	g.RewriteChunkInReasons(m.ID, c.ID, newChunks)
	g.RemoveModuleFromChunk(c.ID, m.ID)

	report.Debug("moved module to parent chunks", "module", m.Identifier, "from", c.String(), "to", newChunks)
	return true
}
