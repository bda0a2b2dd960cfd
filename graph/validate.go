package graph

import (
	"sort"
	"strings"
)

// Validate checks the structural invariants of the graph: unique module
// identifiers, symmetric and non-dangling parent-child edges, symmetric
// module-chunk membership, live block and reason references, and an acyclic
// chunk relation.  It returns the first violation found.
func (g *Graph) Validate() error {
	for id, m := range g.modules {
		if m.ID != ModuleID(id) {
			return violation(InvUnknownModule, nil, m, "module is stored under the wrong ID")
		}

		if found := g.byIdentifier[m.Identifier]; found != m.ID {
			return violation(InvDuplicateIdentifier, nil, m, "identifier is shared with module %d", found)
		}

		for _, cid := range m.chunks {
			c := g.Chunk(cid)
			if c == nil {
				return violation(InvDanglingEdge, nil, m, "module is a member of evicted chunk #%d", cid)
			}

			if !c.HasModule(m.ID) {
				return violation(InvMembership, c, m, "module lists the chunk but the chunk does not list the module")
			}
		}

		for _, r := range m.Reasons {
			for _, cid := range r.Chunks {
				if g.Chunk(cid) == nil {
					return violation(InvDanglingEdge, nil, m, "reason refers to evicted chunk #%d", cid)
				}
			}
		}
	}

	for _, c := range g.Chunks() {
		if err := g.validateChunk(c); err != nil {
			return err
		}
	}

	return g.validateAcyclic()
}

// ValidateFinal checks the structural invariants plus the content invariants
// which hold once every optimization has run: every chunk which is neither an
// entry nor a runtime chunk has at least one module and no two non-initial
// chunks have the same module set.
func (g *Graph) ValidateFinal() error {
	if err := g.Validate(); err != nil {
		return err
	}

	keys := make(map[string]*Chunk)
	for _, c := range g.Chunks() {
		if c.IsEmpty() && !c.IsEntry && !c.HasRuntime {
			return violation(InvEmptyChunk, c, nil, "chunk has no modules")
		}

		if c.IsInitial {
			continue
		}

		key := g.ModuleKey(c)
		if other, ok := keys[key]; ok {
			return violation(InvDuplicateChunk, c, nil, "chunk has the same modules as chunk %s", other)
		}
		keys[key] = c
	}

	return nil
}

// ModuleKey returns the canonical key of a chunk's module set: the sorted
// module identifiers joined by newlines.
func (g *Graph) ModuleKey(c *Chunk) string {
	ids := make([]string, len(c.modules))
	for i, m := range c.modules {
		ids[i] = g.modules[m].Identifier
	}

	sort.Strings(ids)
	return strings.Join(ids, "\n")
}

func (g *Graph) validateChunk(c *Chunk) error {
	if len(c.modules) != len(c.moduleSet) {
		return violation(InvMembership, c, nil, "module list and module set disagree")
	}

	for _, mid := range c.modules {
		m := g.Module(mid)
		if m == nil {
			return violation(InvUnknownModule, c, nil, "chunk contains unknown module %d", mid)
		}

		if !m.InChunk(c.ID) {
			return violation(InvMembership, c, m, "chunk lists the module but the module does not list the chunk")
		}
	}

	for _, p := range c.parents {
		pc := g.Chunk(p)
		if pc == nil {
			return violation(InvDanglingEdge, c, nil, "parent #%d has been evicted", p)
		}

		if p == c.ID {
			return violation(InvChunkCycle, c, nil, "chunk is its own parent")
		}

		if !pc.HasChild(c.ID) {
			return violation(InvAsymmetricEdge, c, nil, "parent %s does not list the chunk as a child", pc)
		}
	}

	for _, k := range c.children {
		kc := g.Chunk(k)
		if kc == nil {
			return violation(InvDanglingEdge, c, nil, "child #%d has been evicted", k)
		}

		if !kc.HasParent(c.ID) {
			return violation(InvAsymmetricEdge, c, nil, "child %s does not list the chunk as a parent", kc)
		}
	}

	for _, b := range c.blocks {
		if !containsChunk(b.chunks, c.ID) {
			return violation(InvAsymmetricEdge, c, nil, "loading block does not list the chunk")
		}
	}

	if c.HasAlias(c.ID) {
		return violation(InvDanglingEdge, c, nil, "chunk is its own alias")
	}

	return nil
}

func (g *Graph) validateAcyclic() error {
	const (
		white = iota
		grey
		black
	)

	color := make(map[ChunkID]int, len(g.chunkOrder))

	var visit func(id ChunkID) error
	visit = func(id ChunkID) error {
		color[id] = grey

		for _, k := range g.chunks[id].children {
			switch color[k] {
			case grey:
				return violation(InvChunkCycle, g.chunks[k], nil, "chunk is reachable from its child %s", g.chunks[id])
			case white:
				if err := visit(k); err != nil {
					return err
				}
			}
		}

		color[id] = black
		return nil
	}

	for _, id := range g.chunkOrder {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}
