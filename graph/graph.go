package graph

import (
	"fmt"
	"sort"
)

// Entry is a named entry point of the graph.
type Entry struct {
	Name   string
	Module ModuleID
}

// Graph is the arena owning every module and chunk of a build.  Modules and
// chunks refer to each other only through their IDs: there are no pointers
// between arena elements apart from the immutable dependency structure.
//
// A Graph is not safe for concurrent use.  It is handed sequentially from one
// pass to the next by the pipeline.
type Graph struct {
	modules      []*Module
	byIdentifier map[string]ModuleID
	moduleOrder  []ModuleID

	// chunks is indexed by ChunkID.  Evicted chunks are nil.
	chunks     []*Chunk
	chunkOrder []ChunkID

	entries []Entry
	frozen  bool
}

// New creates a new, empty graph.
func New() *Graph {
	return &Graph{
		byIdentifier: make(map[string]ModuleID),
	}
}

// -----------------------------------------------------------------------------

// AddModule creates a new module with the given identifier.  Identifiers must
// be unique within the graph.
func (g *Graph) AddModule(identifier string, size int) (*Module, error) {
	g.mustBeMutable()

	if _, ok := g.byIdentifier[identifier]; ok {
		return nil, &InvariantError{
			Kind:   InvDuplicateIdentifier,
			Module: identifier,
			Detail: "module identifiers must be unique",
		}
	}

	m := &Module{
		ID:         ModuleID(len(g.modules)),
		Identifier: identifier,
		Size:       size,
	}

	g.modules = append(g.modules, m)
	g.byIdentifier[identifier] = m.ID
	g.moduleOrder = append(g.moduleOrder, m.ID)
	return m, nil
}

// Module returns the module with the given ID or nil if no such module exists.
func (g *Graph) Module(id ModuleID) *Module {
	if id < 0 || int(id) >= len(g.modules) {
		return nil
	}

	return g.modules[id]
}

// ModuleByIdentifier looks up a module by its identifier.
func (g *Graph) ModuleByIdentifier(identifier string) (*Module, bool) {
	id, ok := g.byIdentifier[identifier]
	if !ok {
		return nil, false
	}

	return g.modules[id], true
}

// Modules returns every module of the graph in module order.
func (g *Graph) Modules() []*Module {
	mods := make([]*Module, len(g.moduleOrder))
	for i, id := range g.moduleOrder {
		mods[i] = g.modules[id]
	}

	return mods
}

// NumberOfModules returns the number of modules in the graph.
func (g *Graph) NumberOfModules() int {
	return len(g.modules)
}

// AddDependency adds a dependency from the module `from` to the module `to`.
// If block is non-nil, the dependency is declared inside that block.  A reason
// is recorded on the target module.
func (g *Graph) AddDependency(from ModuleID, block *DependencyBlock, to ModuleID, kind DependencyKind, request string) (*Dependency, error) {
	g.mustBeMutable()

	origin, target := g.Module(from), g.Module(to)
	if origin == nil || target == nil {
		return nil, &InvariantError{
			Kind:   InvUnknownModule,
			Detail: fmt.Sprintf("dependency `%s` refers to an unknown module", request),
		}
	}

	if block != nil && block.Owner != from {
		return nil, violation(InvUnknownModule, nil, origin, "block is not owned by the dependency origin")
	}

	d := &Dependency{
		Kind:    kind,
		Origin:  from,
		Block:   block,
		Target:  to,
		Request: request,
	}

	if block == nil {
		origin.Dependencies = append(origin.Dependencies, d)
	} else {
		block.Dependencies = append(block.Dependencies, d)
	}

	target.Reasons = append(target.Reasons, &Reason{Module: from, Dependency: d})
	return d, nil
}

// AddBlock declares a new async dependency block in the module owner.  If
// parent is non-nil, the new block is nested inside it.
func (g *Graph) AddBlock(owner ModuleID, parent *DependencyBlock, chunkName string) (*DependencyBlock, error) {
	g.mustBeMutable()

	m := g.Module(owner)
	if m == nil {
		return nil, &InvariantError{Kind: InvUnknownModule, Detail: "block owner is not a module of the graph"}
	}

	b := &DependencyBlock{Owner: owner, Parent: parent, ChunkName: chunkName}
	if parent == nil {
		m.Blocks = append(m.Blocks, b)
	} else {
		if parent.Owner != owner {
			return nil, violation(InvUnknownModule, nil, m, "nested block must share the owner of its parent")
		}

		parent.Blocks = append(parent.Blocks, b)
	}

	return b, nil
}

// AddEntry registers a named entry point.  Entry names must be unique.
func (g *Graph) AddEntry(name string, module ModuleID) error {
	g.mustBeMutable()

	if g.Module(module) == nil {
		return &InvariantError{Kind: InvEntry, Detail: fmt.Sprintf("entry `%s` refers to an unknown module", name)}
	}

	for _, e := range g.entries {
		if e.Name == name {
			return &InvariantError{Kind: InvEntry, Detail: fmt.Sprintf("multiple entries named `%s`", name)}
		}
	}

	g.entries = append(g.entries, Entry{Name: name, Module: module})
	return nil
}

// Entries returns the entry points of the graph in declaration order.
func (g *Graph) Entries() []Entry {
	return g.entries
}

// -----------------------------------------------------------------------------

// NewChunk creates a new, empty chunk at the end of the chunk order.
func (g *Graph) NewChunk(name string) *Chunk {
	g.mustBeMutable()

	c := &Chunk{
		ID:          ChunkID(len(g.chunks)),
		Name:        name,
		EntryModule: NoModule,
		order:       len(g.chunks),
		moduleSet:   make(map[ModuleID]struct{}),
	}

	g.chunks = append(g.chunks, c)
	g.chunkOrder = append(g.chunkOrder, c.ID)
	return c
}

// Chunk returns the live chunk with the given ID or nil if the chunk does not
// exist or has been evicted.
func (g *Graph) Chunk(id ChunkID) *Chunk {
	if id < 0 || int(id) >= len(g.chunks) {
		return nil
	}

	return g.chunks[id]
}

// Chunks returns a snapshot of the live chunks in chunk order.  Passes may
// mutate the graph while iterating over the snapshot but must then check
// whether each chunk is still live.
func (g *Graph) Chunks() []*Chunk {
	chunks := make([]*Chunk, len(g.chunkOrder))
	for i, id := range g.chunkOrder {
		chunks[i] = g.chunks[id]
	}

	return chunks
}

// NumberOfChunks returns the number of live chunks.
func (g *Graph) NumberOfChunks() int {
	return len(g.chunkOrder)
}

// NumberOfChunkIDs returns the size of the chunk arena including evicted chunks.
func (g *Graph) NumberOfChunkIDs() int {
	return len(g.chunks)
}

// Connect adds a parent-child edge.  It returns false if the edge already
// exists or would be a self edge.
func (g *Graph) Connect(parent, child ChunkID) bool {
	g.mustBeMutable()

	p, c := g.mustChunk(parent), g.mustChunk(child)
	if p == c || p.HasChild(child) {
		return false
	}

	p.children = append(p.children, child)
	c.parents = addChunk(c.parents, parent)
	return true
}

// Disconnect removes a parent-child edge.  It returns whether the edge existed.
func (g *Graph) Disconnect(parent, child ChunkID) bool {
	g.mustBeMutable()

	p, c := g.mustChunk(parent), g.mustChunk(child)
	if !p.HasChild(child) {
		return false
	}

	p.children = removeChunk(p.children, child)
	c.parents = removeChunk(c.parents, parent)
	return true
}

// AddModuleToChunk places a module in a chunk.  It returns false if the module
// was already a member of the chunk.
func (g *Graph) AddModuleToChunk(chunk ChunkID, module ModuleID) bool {
	g.mustBeMutable()

	c, m := g.mustChunk(chunk), g.mustModule(module)
	if !c.addModule(module) {
		return false
	}

	m.chunks = append(m.chunks, chunk)
	return true
}

// RemoveModuleFromChunk removes a module from a chunk.  It returns false if the
// module was not a member of the chunk.
func (g *Graph) RemoveModuleFromChunk(chunk ChunkID, module ModuleID) bool {
	g.mustBeMutable()

	c, m := g.mustChunk(chunk), g.mustModule(module)
	if !c.removeModule(module) {
		return false
	}

	m.removeChunk(chunk)
	return true
}

// AttachBlock records that block b loads chunk c.
func (g *Graph) AttachBlock(chunk ChunkID, b *DependencyBlock) {
	g.mustBeMutable()

	c := g.mustChunk(chunk)
	b.chunks = addChunk(b.chunks, chunk)
	b.ChunkReason = ""
	c.addBlock(b)
}

// AddAlias records alias as an alias of chunk.  It returns false if the alias
// was already recorded or if it would be a self alias.
func (g *Graph) AddAlias(chunk, alias ChunkID) bool {
	g.mustBeMutable()

	c := g.mustChunk(chunk)
	if chunk == alias || c.HasAlias(alias) {
		return false
	}

	c.AliasIDs = append(c.AliasIDs, alias)
	return true
}

// -----------------------------------------------------------------------------

// RemoveChunkBypass evicts a chunk, connecting each of its parents directly to
// each of its children so that the descendants remain reachable.  Blocks that
// no longer load any chunk are annotated with reason.  Reason attributions that
// named the chunk are rewritten to its parents.
func (g *Graph) RemoveChunkBypass(id ChunkID, reason string) {
	g.mustBeMutable()

	c := g.mustChunk(id)
	parents := append([]ChunkID(nil), c.parents...)
	children := append([]ChunkID(nil), c.children...)

	for _, p := range parents {
		g.Disconnect(p, id)
	}

	for _, k := range children {
		g.Disconnect(id, k)
	}

	for _, p := range parents {
		for _, k := range children {
			g.Connect(p, k)
		}
	}

	g.detachBlocks(c, reason)
	g.evict(c, parents)
}

// Integrate merges the chunk other into survivor.  The survivor absorbs the
// modules, parents, children, blocks and aliases of other; other is recorded
// as an alias of the survivor and evicted.  Self edges created by the merge
// are discarded.  The caller must ensure the chunks are integrable.
func (g *Graph) Integrate(survivor, other ChunkID) error {
	g.mustBeMutable()

	if !g.Integrable(survivor, other) {
		return &InvariantError{
			Kind:   InvChunkCycle,
			Chunk:  fmt.Sprintf("#%d", survivor),
			Detail: fmt.Sprintf("chunk #%d cannot be integrated", other),
		}
	}

	s, o := g.chunks[survivor], g.chunks[other]

	for _, m := range append([]ModuleID(nil), o.modules...) {
		g.RemoveModuleFromChunk(other, m)
		g.AddModuleToChunk(survivor, m)
	}

	for _, p := range append([]ChunkID(nil), o.parents...) {
		g.Disconnect(p, other)
		if p != survivor {
			g.Connect(p, survivor)
		}
	}

	for _, k := range append([]ChunkID(nil), o.children...) {
		g.Disconnect(other, k)
		if k != survivor {
			g.Connect(survivor, k)
		}
	}

	for _, b := range o.blocks {
		b.chunks = removeChunk(b.chunks, other)
		b.chunks = addChunk(b.chunks, survivor)
		s.addBlock(b)
	}
	o.blocks = nil

	switch {
	case s.Name == "":
		s.Name = o.Name
	case o.Name == "":
	case len(o.Name) < len(s.Name), len(o.Name) == len(s.Name) && o.Name < s.Name:
		s.Name = o.Name
	}

	g.evict(o, []ChunkID{survivor})

	g.AddAlias(survivor, other)
	for _, a := range o.AliasIDs {
		g.AddAlias(survivor, a)
	}

	return nil
}

// IsAncestor returns whether a is a proper ancestor of b: that is, whether
// there is a non-empty path of parent-child edges from a to b.
func (g *Graph) IsAncestor(a, b ChunkID) bool {
	return g.reachable(a, b)
}

// Integrable returns whether the chunks a and b may be merged: both must be
// live, distinct and non-initial, and neither may reach the other through a
// third chunk (which would turn the merge into a cycle).
func (g *Graph) Integrable(a, b ChunkID) bool {
	ca, cb := g.Chunk(a), g.Chunk(b)
	if ca == nil || cb == nil || a == b || ca.IsInitial || cb.IsInitial {
		return false
	}

	for _, pair := range [2][2]*Chunk{{ca, cb}, {cb, ca}} {
		from, to := pair[0], pair[1]
		for _, k := range from.children {
			if k != to.ID && g.reachable(k, to.ID) {
				return false
			}
		}
	}

	return true
}

// -----------------------------------------------------------------------------

// SetModuleOrder replaces the module order.  order must be a permutation of
// every module ID.  It returns whether the order changed.
func (g *Graph) SetModuleOrder(order []ModuleID) bool {
	g.mustBeMutable()

	if len(order) != len(g.moduleOrder) {
		panic("graph: module order is not a permutation of the graph's modules")
	}

	seen := make(map[ModuleID]struct{}, len(order))
	changed := false
	for i, id := range order {
		if g.Module(id) == nil {
			panic(fmt.Sprintf("graph: module order refers to unknown module %d", id))
		}

		if _, ok := seen[id]; ok {
			panic(fmt.Sprintf("graph: module %d appears twice in module order", id))
		}
		seen[id] = struct{}{}

		if g.moduleOrder[i] != id {
			changed = true
		}
	}

	g.moduleOrder = append(g.moduleOrder[:0], order...)
	return changed
}

// SetChunkOrder replaces the chunk order.  order must be a permutation of the
// live chunk IDs.  It returns whether the order changed.
func (g *Graph) SetChunkOrder(order []ChunkID) bool {
	g.mustBeMutable()

	if len(order) != len(g.chunkOrder) {
		panic("graph: chunk order is not a permutation of the live chunks")
	}

	seen := make(map[ChunkID]struct{}, len(order))
	changed := false
	for i, id := range order {
		g.mustChunk(id)

		if _, ok := seen[id]; ok {
			panic(fmt.Sprintf("graph: chunk #%d appears twice in chunk order", id))
		}
		seen[id] = struct{}{}

		if g.chunkOrder[i] != id {
			changed = true
		}
	}

	g.chunkOrder = append(g.chunkOrder[:0], order...)
	return changed
}

// SortChunkModules stably sorts the module list of a chunk.  It returns whether
// the order changed.
func (g *Graph) SortChunkModules(chunk ChunkID, less func(a, b *Module) bool) bool {
	g.mustBeMutable()

	c := g.mustChunk(chunk)
	before := append([]ModuleID(nil), c.modules...)

	sort.SliceStable(c.modules, func(i, j int) bool {
		return less(g.modules[c.modules[i]], g.modules[c.modules[j]])
	})

	for i, m := range c.modules {
		if before[i] != m {
			return true
		}
	}

	return false
}

// -----------------------------------------------------------------------------

// RewriteChunkInReasons rewrites the chunk attribution of every reason of a
// module: occurrences of old are replaced by repl.  A reason with no explicit
// attribution is first materialized from its referrer's chunks, but only if
// the referrer is loaded by old.
func (g *Graph) RewriteChunkInReasons(module ModuleID, old ChunkID, repl []ChunkID) {
	g.mustBeMutable()

	for _, r := range g.mustModule(module).Reasons {
		g.rewriteReason(r, old, repl)
	}
}

func (g *Graph) rewriteReason(r *Reason, old ChunkID, repl []ChunkID) {
	if r.Chunks == nil {
		referrer := g.Module(r.Module)
		if referrer == nil || !referrer.InChunk(old) {
			return
		}

		r.Chunks = append([]ChunkID(nil), referrer.chunks...)
	}

	rewritten := make([]ChunkID, 0, len(r.Chunks)+len(repl))
	for _, c := range r.Chunks {
		if c != old {
			rewritten = addChunk(rewritten, c)
			continue
		}

		for _, rc := range repl {
			rewritten = addChunk(rewritten, rc)
		}
	}

	r.Chunks = rewritten
}

// Freeze marks the graph as finalized.  Any further structural mutation panics.
func (g *Graph) Freeze() {
	g.frozen = true
}

// Frozen returns whether the graph has been finalized.
func (g *Graph) Frozen() bool {
	return g.frozen
}

// -----------------------------------------------------------------------------

func (g *Graph) mustBeMutable() {
	if g.frozen {
		panic(ErrFrozen)
	}
}

func (g *Graph) mustChunk(id ChunkID) *Chunk {
	c := g.Chunk(id)
	if c == nil {
		panic(fmt.Sprintf("graph: chunk #%d is not live", id))
	}

	return c
}

func (g *Graph) mustModule(id ModuleID) *Module {
	m := g.Module(id)
	if m == nil {
		panic(fmt.Sprintf("graph: unknown module %d", id))
	}

	return m
}

// reachable returns whether there is a non-empty path from a to b.
func (g *Graph) reachable(a, b ChunkID) bool {
	if g.Chunk(a) == nil {
		return false
	}

	visited := make(map[ChunkID]struct{})
	stack := []ChunkID{a}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, k := range g.chunks[id].children {
			if k == b {
				return true
			}

			if _, ok := visited[k]; !ok {
				visited[k] = struct{}{}
				stack = append(stack, k)
			}
		}
	}

	return false
}

func (g *Graph) detachBlocks(c *Chunk, reason string) {
	for _, b := range c.blocks {
		b.chunks = removeChunk(b.chunks, c.ID)
		if len(b.chunks) == 0 {
			b.chunks = nil
			b.ChunkReason = reason
		}
	}

	c.blocks = nil
}

// evict removes a chunk from the arena.  The chunk must already be detached
// from its parents, children and blocks.  Module memberships are dropped, reason
// attributions naming the chunk are rewritten to repl and the chunk is scrubbed
// from every alias list.
func (g *Graph) evict(c *Chunk, repl []ChunkID) {
	for _, m := range append([]ModuleID(nil), c.modules...) {
		c.removeModule(m)
		g.modules[m].removeChunk(c.ID)
	}

	for _, m := range g.modules {
		for _, r := range m.Reasons {
			if r.Chunks != nil && containsChunk(r.Chunks, c.ID) {
				g.rewriteReason(r, c.ID, repl)
			}
		}
	}

	g.chunks[c.ID] = nil
	g.chunkOrder = removeChunk(g.chunkOrder, c.ID)

	for _, other := range g.chunks {
		if other != nil {
			other.AliasIDs = removeChunk(other.AliasIDs, c.ID)
		}
	}
}
