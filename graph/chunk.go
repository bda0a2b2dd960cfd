package graph

import "fmt"

// ChunkID is the arena key of a chunk.  It is stable for the lifetime of the
// graph but it is not the final, emitted chunk id: that is assigned during
// finalization.
type ChunkID int

// Chunk is a set of modules which are loaded together.  All structural
// mutation goes through the owning Graph so that back-references stay in sync.
type Chunk struct {
	// ID is the arena key of the chunk.
	ID ChunkID

	// Name is the optional name of the chunk: the entry name for entry chunks
	// or the block chunk name for named split points.
	Name string

	// AliasIDs are the IDs of other chunks folded into or included by this
	// chunk.  Requesting an alias is equivalent to requesting this chunk.
	AliasIDs []ChunkID

	// IsEntry indicates the chunk is the chunk of an entry point.
	IsEntry bool

	// IsInitial indicates the chunk is loaded unconditionally at startup.
	// Initial chunks are never merged or removed.
	IsInitial bool

	// HasRuntime indicates the chunk carries the loader bootstrap.  Runtime
	// chunks are never removed even when empty.
	HasRuntime bool

	// EntryModule is the entry point module of an entry chunk or NoModule.
	EntryModule ModuleID

	// order is the creation order of the chunk, used as the final tie-break of
	// every chunk ordering.
	order int

	modules   []ModuleID
	moduleSet map[ModuleID]struct{}
	parents   []ChunkID
	children  []ChunkID
	blocks    []*DependencyBlock
}

// Modules returns the modules of the chunk in their current order.  The
// returned slice must not be modified.
func (c *Chunk) Modules() []ModuleID {
	return c.modules
}

// NumberOfModules returns the number of modules in the chunk.
func (c *Chunk) NumberOfModules() int {
	return len(c.modules)
}

// IsEmpty returns whether the chunk contains no modules.
func (c *Chunk) IsEmpty() bool {
	return len(c.modules) == 0
}

// HasModule returns whether the chunk contains m.
func (c *Chunk) HasModule(m ModuleID) bool {
	_, ok := c.moduleSet[m]
	return ok
}

// Parents returns the chunks that may cause this chunk to load.
func (c *Chunk) Parents() []ChunkID {
	return c.parents
}

// Children returns the chunks this chunk may cause to load.
func (c *Chunk) Children() []ChunkID {
	return c.children
}

// Blocks returns the dependency blocks that load this chunk.
func (c *Chunk) Blocks() []*DependencyBlock {
	return c.blocks
}

// HasAlias returns whether id is recorded as an alias of the chunk.
func (c *Chunk) HasAlias(id ChunkID) bool {
	return containsChunk(c.AliasIDs, id)
}

// HasParent returns whether p is a direct parent of the chunk.
func (c *Chunk) HasParent(p ChunkID) bool {
	return containsChunk(c.parents, p)
}

// HasChild returns whether k is a direct child of the chunk.
func (c *Chunk) HasChild(k ChunkID) bool {
	return containsChunk(c.children, k)
}

// Order returns the creation order of the chunk.
func (c *Chunk) Order() int {
	return c.order
}

// String returns a short, human readable description of the chunk for use in
// diagnostics.
func (c *Chunk) String() string {
	if c.Name != "" {
		return fmt.Sprintf("%s (#%d)", c.Name, c.ID)
	}

	return fmt.Sprintf("#%d", c.ID)
}

func (c *Chunk) addModule(m ModuleID) bool {
	if _, ok := c.moduleSet[m]; ok {
		return false
	}

	c.moduleSet[m] = struct{}{}
	c.modules = append(c.modules, m)
	return true
}

func (c *Chunk) removeModule(m ModuleID) bool {
	if _, ok := c.moduleSet[m]; !ok {
		return false
	}

	delete(c.moduleSet, m)
	for i, cm := range c.modules {
		if cm == m {
			c.modules = append(c.modules[:i], c.modules[i+1:]...)
			break
		}
	}

	return true
}

func (c *Chunk) addBlock(b *DependencyBlock) {
	for _, cb := range c.blocks {
		if cb == b {
			return
		}
	}

	c.blocks = append(c.blocks, b)
}

// -----------------------------------------------------------------------------

func containsChunk(ids []ChunkID, id ChunkID) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}

	return false
}

func addChunk(ids []ChunkID, id ChunkID) []ChunkID {
	if containsChunk(ids, id) {
		return ids
	}

	return append(ids, id)
}

func removeChunk(ids []ChunkID, id ChunkID) []ChunkID {
	for i, c := range ids {
		if c == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}

	return ids
}
