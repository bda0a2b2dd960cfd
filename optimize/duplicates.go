package optimize

import (
	"chunkc/graph"
	"chunkc/report"
)

// MergeDuplicateChunks merges non-initial chunks with identical module sets.
// Groups of duplicates are merged one at a time, smallest module key first, so
// the result does not depend on the chunk order.  Every member of a group is
// folded into one survivor which absorbs the aliases, parents, children and
// blocks of the others.
//
// A member may reach another member through a third chunk: the merged chunk
// would then be its own ancestor.  Such a cycle is cut at the third chunk's
// edge into the group.  The group's modules are added to that chunk, its edge
// into the group is dropped and it is connected to the chunks the group leads
// to instead.  The chunk already carries everything the group would load, so
// no module becomes less available.
func MergeDuplicateChunks(g *graph.Graph) bool {
	changed := false
	for {
		group := nextDuplicateGroup(g)
		if group == nil {
			return changed
		}

		mergeDuplicateGroup(g, group)
		changed = true
	}
}

// nextDuplicateGroup returns the duplicates with the smallest module key or nil
// if there are none.
func nextDuplicateGroup(g *graph.Graph) []*graph.Chunk {
	groups := make(map[string][]*graph.Chunk)
	for _, c := range g.Chunks() {
		if c.IsInitial || c.HasRuntime || c.IsEntry {
			continue
		}

		key := g.ModuleKey(c)
		groups[key] = append(groups[key], c)
	}

	var (
		best  string
		found bool
	)

	for key, cs := range groups {
		if len(cs) > 1 && (!found || key < best) {
			best, found = key, true
		}
	}

	if !found {
		return nil
	}

	return groups[best]
}

func mergeDuplicateGroup(g *graph.Graph, group []*graph.Chunk) {
	members := make(map[graph.ChunkID]struct{}, len(group))
	for _, c := range group {
		members[c.ID] = struct{}{}
	}

	below := descendants(g, group)
	modules := append([]graph.ModuleID(nil), group[0].Modules()...)

	type cut struct {
		parent, member graph.ChunkID
	}

	var cuts []cut
	for _, c := range group {
		for _, p := range c.Parents() {
			if _, ok := members[p]; ok {
				continue
			}

			if _, ok := below[p]; ok {
				cuts = append(cuts, cut{p, c.ID})
			}
		}
	}

	for _, ct := range cuts {
		report.Debug("cutting duplicate cycle", "parent", g.Chunk(ct.parent).String(), "duplicate", g.Chunk(ct.member).String())

		for _, m := range modules {
			g.AddModuleToChunk(ct.parent, m)
		}

		g.Disconnect(ct.parent, ct.member)
		for _, k := range groupExits(g, ct.member, members) {
			g.Connect(ct.parent, k)
		}
	}

	ordered := ancestorsFirst(g, group)
	survivor := ordered[0].ID

	for _, c := range ordered[1:] {
		report.Debug("merging duplicate chunk", "survivor", g.Chunk(survivor).String(), "duplicate", c.String())

		if err := g.Integrate(survivor, c.ID); err != nil {
			// Once the cycles are cut, folding the members in ancestor order
			// never closes a new one.
			panic(err)
		}
	}
}

// descendants returns every chunk reachable from one of the given chunks.
func descendants(g *graph.Graph, from []*graph.Chunk) map[graph.ChunkID]struct{} {
	seen := make(map[graph.ChunkID]struct{})

	var stack []graph.ChunkID
	for _, c := range from {
		stack = append(stack, c.Children()...)
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		stack = append(stack, g.Chunk(id).Children()...)
	}

	return seen
}

// groupExits returns the chunks outside of members which member leads to
// either directly or through other members.
func groupExits(g *graph.Graph, member graph.ChunkID, members map[graph.ChunkID]struct{}) []graph.ChunkID {
	var exits []graph.ChunkID

	visited := map[graph.ChunkID]struct{}{member: {}}
	stack := []graph.ChunkID{member}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, k := range g.Chunk(id).Children() {
			if _, ok := visited[k]; ok {
				continue
			}

			visited[k] = struct{}{}
			if _, ok := members[k]; ok {
				stack = append(stack, k)
			} else {
				exits = append(exits, k)
			}
		}
	}

	return exits
}

// ancestorsFirst orders the chunks so that no chunk comes before one of its
// ancestors.
func ancestorsFirst(g *graph.Graph, chunks []*graph.Chunk) []*graph.Chunk {
	remaining := append([]*graph.Chunk(nil), chunks...)
	ordered := make([]*graph.Chunk, 0, len(chunks))

	for len(remaining) > 0 {
		next := 0
		for i, c := range remaining {
			top := true
			for _, other := range remaining {
				if other != c && g.IsAncestor(other.ID, c.ID) {
					top = false
					break
				}
			}

			if top {
				next = i
				break
			}
		}

		ordered = append(ordered, remaining[next])
		remaining = append(remaining[:next], remaining[next+1:]...)
	}

	return ordered
}
