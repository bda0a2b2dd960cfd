package optimize

import (
	"chunkc/common"
	"chunkc/graph"
	"chunkc/report"
)

// moduleSet is a set of module IDs.
type moduleSet map[graph.ModuleID]struct{}

// fingerprint summarizes the contribution a parent made to the available set
// of one of its children.  The hash is only compared when the legacy size
// check is disabled.
type fingerprint struct {
	size int
	hash uint64
}

type edge struct {
	parent, child graph.ChunkID
}

// RemoveParentModules removes from every non-entry chunk the modules which are
// already loaded by the time the chunk loads, along every path from the roots.
//
// The available set of a chunk is the intersection, over its parents, of the
// parent's modules and the parent's own available set.  It is computed by a
// worklist: whenever the contribution of a chunk to one of its children
// changes, the child is reprocessed.  Contributions only ever shrink, so the
// worklist drains.
type RemoveParentModules struct {
	// LegacySizeCheck compares only the size of a contribution when deciding
	// whether to reprocess a child.  Two different contributions of equal size
	// are then treated as unchanged.
	LegacySizeCheck bool
}

// Run runs the pass.
func (rp *RemoveParentModules) Run(g *graph.Graph) bool {
	available := rp.availableModules(g)

	// Compute every removal before applying any, so that guaranteeing chunks
	// are found against the final memberships.
	removals := make(map[graph.ChunkID]moduleSet)
	var order []graph.ChunkID
	for _, c := range g.Chunks() {
		if c.IsEntry {
			continue
		}

		avail, ok := available[c.ID]
		if !ok {
			continue
		}

		var remove moduleSet
		for _, m := range c.Modules() {
			if _, ok := avail[m]; ok {
				if remove == nil {
					remove = make(moduleSet)
				}

				remove[m] = struct{}{}
			}
		}

		if remove != nil {
			removals[c.ID] = remove
			order = append(order, c.ID)
		}
	}

	if len(order) == 0 {
		return false
	}

	contains := func(c *graph.Chunk, m graph.ModuleID) bool {
		if !c.HasModule(m) {
			return false
		}

		_, removed := removals[c.ID][m]
		return !removed
	}

	for _, cid := range order {
		c := g.Chunk(cid)
		for _, m := range append([]graph.ModuleID(nil), c.Modules()...) {
			if _, ok := removals[cid][m]; !ok {
				continue
			}

			guarantors := guaranteeingChunks(g, c, m, contains)
			g.RewriteChunkInReasons(m, cid, guarantors)
			g.RemoveModuleFromChunk(cid, m)

			report.Debug("removed module available from parents", "module", g.Module(m).Identifier, "chunk", c.String(), "guarantors", guarantors)
		}
	}

	return true
}

// availableModules computes the available set of every chunk reachable by the
// worklist.  Chunks whose parents are all still unknown get no entry.
func (rp *RemoveParentModules) availableModules(g *graph.Graph) map[graph.ChunkID]moduleSet {
	available := make(map[graph.ChunkID]moduleSet)
	recorded := make(map[edge]fingerprint)

	queue := make([]graph.ChunkID, 0, g.NumberOfChunks())
	queued := make(map[graph.ChunkID]struct{})
	for _, c := range g.Chunks() {
		queue = append(queue, c.ID)
		queued[c.ID] = struct{}{}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		delete(queued, id)

		c := g.Chunk(id)
		avail, known := rp.intersectParents(g, c, available)
		if !known {
			continue
		}
		available[id] = avail

		contribution := make(moduleSet, len(avail)+c.NumberOfModules())
		for m := range avail {
			contribution[m] = struct{}{}
		}

		for _, m := range c.Modules() {
			contribution[m] = struct{}{}
		}

		fp := rp.fingerprint(g, contribution)
		for _, k := range c.Children() {
			e := edge{parent: id, child: k}
			if prev, ok := recorded[e]; ok && prev == fp {
				continue
			}

			recorded[e] = fp
			if _, ok := queued[k]; !ok {
				queued[k] = struct{}{}
				queue = append(queue, k)
			}
		}
	}

	return available
}

// intersectParents computes the available set of c from the current available
// sets of its parents.  Parents whose available set is not yet known are
// skipped; if every parent is unknown, so is c.  A chunk without parents has
// nothing available.
func (rp *RemoveParentModules) intersectParents(g *graph.Graph, c *graph.Chunk, available map[graph.ChunkID]moduleSet) (moduleSet, bool) {
	if len(c.Parents()) == 0 {
		return moduleSet{}, true
	}

	var result moduleSet
	for _, pid := range c.Parents() {
		pavail, ok := available[pid]
		if !ok {
			continue
		}

		p := g.Chunk(pid)
		if result == nil {
			result = make(moduleSet, len(pavail)+p.NumberOfModules())
			for m := range pavail {
				result[m] = struct{}{}
			}

			for _, m := range p.Modules() {
				result[m] = struct{}{}
			}

			continue
		}

		for m := range result {
			if _, ok := pavail[m]; ok {
				continue
			}

			if !p.HasModule(m) {
				delete(result, m)
			}
		}
	}

	return result, result != nil
}

func (rp *RemoveParentModules) fingerprint(g *graph.Graph, set moduleSet) fingerprint {
	if rp.LegacySizeCheck {
		return fingerprint{size: len(set)}
	}

	ids := make([]string, 0, len(set))
	for m := range set {
		ids = append(ids, g.Module(m).Identifier)
	}

	return fingerprint{size: len(set), hash: common.HashSortedStrings(ids)}
}

// guaranteeingChunks walks up from the parents of c and collects the nearest
// chunks on each path which contain m.
func guaranteeingChunks(g *graph.Graph, c *graph.Chunk, m graph.ModuleID, contains func(*graph.Chunk, graph.ModuleID) bool) []graph.ChunkID {
	var result []graph.ChunkID

	visited := make(map[graph.ChunkID]struct{})
	stack := append([]graph.ChunkID(nil), c.Parents()...)
	for _, p := range stack {
		visited[p] = struct{}{}
	}

	for i := 0; i < len(stack); i++ {
		p := g.Chunk(stack[i])
		if contains(p, m) {
			result = append(result, p.ID)
			continue
		}

		for _, pp := range p.Parents() {
			if _, ok := visited[pp]; !ok {
				visited[pp] = struct{}{}
				stack = append(stack, pp)
			}
		}
	}

	return result
}
