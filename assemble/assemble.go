// Package assemble builds the initial chunk graph from the entry points of a
// module graph.  Every entry point gets an initial chunk containing its
// synchronously reachable modules; every async dependency block gets a
// non-initial child chunk of the chunk containing the block's owner.
package assemble

import (
	"errors"
	"sort"

	"chunkc/graph"
	"chunkc/report"
)

// ErrAssembled is returned when the graph already contains chunks.
var ErrAssembled = errors.New("assemble: graph already has chunks")

// blockWork is a dependency block waiting to be placed in a chunk.  parent is
// the chunk containing the block's owner module (or the enclosing block).
type blockWork struct {
	block  *graph.DependencyBlock
	parent graph.ChunkID
}

type assembler struct {
	g *graph.Graph

	// queue is the FIFO of blocks still to be placed.
	queue []blockWork

	// named maps block chunk names to the chunk they share.
	named map[string]graph.ChunkID

	// filled records the blocks whose contents have been placed in their
	// chunk.  A block's contents are only placed once even when it is reached
	// from several parent chunks.
	filled map[*graph.DependencyBlock]struct{}
}

// Assemble builds the chunk graph of g.  It must be called exactly once, before
// any optimization.
func Assemble(g *graph.Graph) error {
	if g.NumberOfChunks() > 0 {
		return ErrAssembled
	}

	a := &assembler{
		g:      g,
		named:  make(map[string]graph.ChunkID),
		filled: make(map[*graph.DependencyBlock]struct{}),
	}

	// Create every entry chunk up front so that entry chunks come first in the
	// chunk order.
	entryChunks := make([]*graph.Chunk, len(g.Entries()))
	for i, e := range g.Entries() {
		c := g.NewChunk(e.Name)
		c.IsEntry = true
		c.IsInitial = true
		c.HasRuntime = true
		c.EntryModule = e.Module

		entryChunks[i] = c
	}

	// Entries are walked by name: which of two mutually loading chunks becomes
	// the parent must not depend on the order the entries were declared in.
	entries := g.Entries()
	walk := make([]int, len(entries))
	for i := range walk {
		walk[i] = i
	}

	sort.Slice(walk, func(i, j int) bool {
		return entries[walk[i]].Name < entries[walk[j]].Name
	})

	for _, i := range walk {
		a.addModuleTree(entryChunks[i].ID, entries[i].Module)
	}

	for len(a.queue) > 0 {
		w := a.queue[0]
		a.queue = a.queue[1:]

		a.placeBlock(w)
	}

	report.Debug("assembled chunk graph", "entries", len(g.Entries()), "chunks", g.NumberOfChunks(), "modules", g.NumberOfModules())
	return g.Validate()
}

// addModuleTree adds root and every module synchronously reachable from it to
// chunk.  Module cycles terminate because a module already in the chunk is not
// visited again.  Blocks of every added module are queued with chunk as parent.
func (a *assembler) addModuleTree(chunk graph.ChunkID, root graph.ModuleID) {
	stack := []graph.ModuleID{root}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !a.g.AddModuleToChunk(chunk, id) {
			continue
		}

		m := a.g.Module(id)
		for _, b := range m.Blocks {
			a.queue = append(a.queue, blockWork{block: b, parent: chunk})
		}

		// Push in reverse so that dependencies are visited in declaration order.
		for i := len(m.Dependencies) - 1; i >= 0; i-- {
			stack = append(stack, m.Dependencies[i].Target)
		}
	}
}

// placeBlock connects the chunk of a block to the parent chunk and places the
// block's contents in it the first time the block is seen.
func (a *assembler) placeBlock(w blockWork) {
	b := w.block
	target := a.chunkForBlock(b)

	// An edge to the parent itself or to one of its ancestors would close a
	// cycle: the block's chunk is already loaded whenever the parent is.
	if target != w.parent && !a.g.IsAncestor(target, w.parent) {
		a.g.Connect(w.parent, target)
	}

	a.g.AttachBlock(target, b)

	if _, ok := a.filled[b]; ok {
		return
	}
	a.filled[b] = struct{}{}

	for _, d := range b.Dependencies {
		a.addModuleTree(target, d.Target)
	}

	for _, nb := range b.Blocks {
		a.queue = append(a.queue, blockWork{block: nb, parent: target})
	}
}

// chunkForBlock returns the chunk loaded by a block, creating it if necessary.
// Blocks with the same chunk name share one chunk.
func (a *assembler) chunkForBlock(b *graph.DependencyBlock) graph.ChunkID {
	if chunks := b.Chunks(); len(chunks) > 0 {
		return chunks[0]
	}

	if b.ChunkName != "" {
		if id, ok := a.named[b.ChunkName]; ok {
			return id
		}
	}

	c := a.g.NewChunk(b.ChunkName)
	if b.ChunkName != "" {
		a.named[b.ChunkName] = c.ID
	}

	report.Debug("created async chunk", "chunk", c.ID, "name", b.ChunkName, "owner", a.g.Module(b.Owner).Identifier)
	return c.ID
}
