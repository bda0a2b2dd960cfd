package optimize

import "chunkc/graph"

// FlagIncludedChunks records B as an alias of A whenever every module of B is
// also in A.  The graph structure is left untouched: the alias only tells the
// runtime loader that loading A also satisfies a request for B.
func FlagIncludedChunks(g *graph.Graph) bool {
	chunks := g.Chunks()
	changed := false

	for _, a := range chunks {
		for _, b := range chunks {
			if a == b || b.IsEmpty() || a.NumberOfModules() < b.NumberOfModules() {
				continue
			}

			if !includes(a, b) {
				continue
			}

			if g.AddAlias(a.ID, b.ID) {
				changed = true
			}
		}
	}

	return changed
}

func includes(a, b *graph.Chunk) bool {
	for _, m := range b.Modules() {
		if !a.HasModule(m) {
			return false
		}
	}

	return true
}
