package optimize

import (
	"sort"

	"chunkc/graph"
)

// OccurrenceOrder assigns a strict total order to modules and to chunks so
// that ids assigned from those orders are reproducible.
//
// Modules are ranked by how often they occur in initial chunks (when
// PreferEntry is set), then by how often they occur in any chunk, counting the
// module itself and every module referencing it.  Chunks are ranked by their
// initial parents, their loading blocks and their size.  Identifiers break
// every remaining tie.
type OccurrenceOrder struct {
	PreferEntry bool
}

// Run runs the pass.
func (oo *OccurrenceOrder) Run(g *graph.Graph) bool {
	changed := oo.orderModules(g)

	byIdentifier := func(a, b *graph.Module) bool {
		return a.Identifier < b.Identifier
	}

	for _, c := range g.Chunks() {
		if g.SortChunkModules(c.ID, byIdentifier) {
			changed = true
		}
	}

	if oo.orderChunks(g) {
		changed = true
	}

	return changed
}

// -----------------------------------------------------------------------------

type moduleRank struct {
	m             *graph.Module
	occursInEntry int
	occurs        int
}

func (oo *OccurrenceOrder) orderModules(g *graph.Graph) bool {
	// entryModuleOf counts the chunks each module is the entry module of.
	entryModuleOf := make(map[graph.ModuleID]int)
	for _, c := range g.Chunks() {
		if c.EntryModule != graph.NoModule {
			entryModuleOf[c.EntryModule]++
		}
	}

	entryOccurrences := func(m *graph.Module) int {
		n := entryModuleOf[m.ID]
		for _, cid := range m.Chunks() {
			if g.Chunk(cid).IsInitial {
				n++
			}
		}

		return n
	}

	mods := g.Modules()
	ranks := make([]moduleRank, len(mods))
	for i, m := range mods {
		r := moduleRank{
			m:             m,
			occursInEntry: entryOccurrences(m),
			occurs:        m.NumberOfChunks() + entryModuleOf[m.ID],
		}

		for _, reason := range m.Reasons {
			referrer := g.Module(reason.Module)
			if referrer == nil {
				continue
			}

			r.occursInEntry += entryOccurrences(referrer)
			r.occurs += referrer.NumberOfChunks()
		}

		ranks[i] = r
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]

		if oo.PreferEntry && a.occursInEntry != b.occursInEntry {
			return a.occursInEntry > b.occursInEntry
		}

		if a.occurs != b.occurs {
			return a.occurs > b.occurs
		}

		return a.m.Identifier < b.m.Identifier
	})

	order := make([]graph.ModuleID, len(ranks))
	for i, r := range ranks {
		order[i] = r.m.ID
	}

	return g.SetModuleOrder(order)
}

// -----------------------------------------------------------------------------

type chunkRank struct {
	c             *graph.Chunk
	occursInEntry int
	occurs        int
	identifiers   []string
}

func (oo *OccurrenceOrder) orderChunks(g *graph.Graph) bool {
	chunks := g.Chunks()
	ranks := make([]chunkRank, len(chunks))

	for i, c := range chunks {
		r := chunkRank{c: c, occurs: len(c.Blocks())}
		if c.IsInitial {
			r.occursInEntry++
			r.occurs++
		}

		for _, p := range c.Parents() {
			if g.Chunk(p).IsInitial {
				r.occursInEntry++
			}
		}

		// The module list is already sorted by identifier.
		r.identifiers = make([]string, c.NumberOfModules())
		for j, m := range c.Modules() {
			r.identifiers[j] = g.Module(m).Identifier
		}

		ranks[i] = r
	}

	sort.SliceStable(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]

		if a.occursInEntry != b.occursInEntry {
			return a.occursInEntry > b.occursInEntry
		}

		if a.occurs != b.occurs {
			return a.occurs > b.occurs
		}

		if len(a.identifiers) != len(b.identifiers) {
			return len(a.identifiers) > len(b.identifiers)
		}

		for k := range a.identifiers {
			if a.identifiers[k] != b.identifiers[k] {
				return a.identifiers[k] < b.identifiers[k]
			}
		}

		if a.c.Name != b.c.Name {
			return a.c.Name < b.c.Name
		}

		return a.c.Order() < b.c.Order()
	})

	order := make([]graph.ChunkID, len(ranks))
	for i, r := range ranks {
		order[i] = r.c.ID
	}

	return g.SetChunkOrder(order)
}
