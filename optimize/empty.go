package optimize

import (
	"chunkc/graph"
	"chunkc/report"
)

// RemoveEmptyChunks evicts every chunk without modules which is neither an
// entry, a runtime nor an initial chunk.  Parents of an evicted chunk are
// connected directly to its children.
func RemoveEmptyChunks(g *graph.Graph) bool {
	changed := false

	for _, c := range g.Chunks() {
		if !c.IsEmpty() || c.IsEntry || c.HasRuntime || c.IsInitial {
			continue
		}

		report.Debug("removing empty chunk", "chunk", c.String())
		g.RemoveChunkBypass(c.ID, "empty")
		changed = true
	}

	return changed
}
