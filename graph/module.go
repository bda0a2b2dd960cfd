package graph

// ModuleID is the arena key of a module within its graph.  Module IDs are
// assigned in creation order and are never reused.
type ModuleID int

// NoModule is used in place of a module ID when there is no module: eg. the
// referrer of an entry point.
const NoModule ModuleID = -1

// ExportsKind enumerates the three states of a module's provided exports.
type ExportsKind int

// Enumeration of export states.
const (
	ExportsUnknown ExportsKind = iota // Nothing is known about the exports.
	ExportsAll                        // The module may export anything.
	ExportsSet                        // The module exports exactly Names.
)

// ProvidedExports describes what a module is known to export.  Names is only
// meaningful when Kind is ExportsSet.
type ProvidedExports struct {
	Kind  ExportsKind
	Names []string
}

// ChunkCondition is a capability check which decides whether a module may be
// placed in a given chunk.
type ChunkCondition func(c *Chunk) bool

// Module represents one resolved unit of source code.
type Module struct {
	// ID is the arena key of the module.
	ID ModuleID

	// Identifier is the globally unique identifier of the module.  It is used
	// for ordering and equality.
	Identifier string

	// Size is the size of the module's source in bytes.  It is only used for
	// chunk size accounting.
	Size int

	// Dependencies is the list of synchronous dependencies of the module.
	Dependencies []*Dependency

	// Blocks is the list of async dependency blocks declared directly in the
	// module.  Blocks may nest.
	Blocks []*DependencyBlock

	// Reasons records every dependency that requires this module.  These are
	// weak references: the module does not own its referrers.
	Reasons []*Reason

	// ProvidedExports is the set of exports the module provides.
	ProvidedExports ProvidedExports

	// ChunkCondition is the optional predicate restricting which chunks the
	// module may be placed in.  A nil condition accepts every chunk.
	ChunkCondition ChunkCondition

	// chunks is the list of chunks containing this module in the order the
	// module was added to them.
	chunks []ChunkID
}

// Chunks returns the IDs of the chunks that contain the module.  The returned
// slice must not be modified.
func (m *Module) Chunks() []ChunkID {
	return m.chunks
}

// NumberOfChunks returns the number of chunks containing the module.
func (m *Module) NumberOfChunks() int {
	return len(m.chunks)
}

// InChunk returns whether the module is a member of the given chunk.
func (m *Module) InChunk(id ChunkID) bool {
	for _, c := range m.chunks {
		if c == id {
			return true
		}
	}

	return false
}

// AcceptsChunk returns whether the module's chunk condition (if any) allows it
// to be placed in c.
func (m *Module) AcceptsChunk(c *Chunk) bool {
	return m.ChunkCondition == nil || m.ChunkCondition(c)
}

func (m *Module) removeChunk(id ChunkID) {
	for i, c := range m.chunks {
		if c == id {
			m.chunks = append(m.chunks[:i], m.chunks[i+1:]...)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// DependencyKind enumerates the kinds of dependency edges.
type DependencyKind int

// Enumeration of dependency kinds.
const (
	DepImport DependencyKind = iota // A static import.
	DepRequire                      // A synchronous require call.
	DepAsync                        // A dependency declared inside an async block.
)

// Dependency is a typed edge from a module (or from a dependency block nested
// inside a module) to a target module.
type Dependency struct {
	Kind DependencyKind

	// Origin is the module which declares the dependency.
	Origin ModuleID

	// Block is the enclosing dependency block, or nil if the dependency is
	// declared at the top level of its origin module.
	Block *DependencyBlock

	// Target is the module the dependency resolves to.
	Target ModuleID

	// Request is the original request string, kept for diagnostics.
	Request string
}

// DependencyBlock represents a lazily loaded sub-graph: every dependency inside
// it is loaded on demand in its own chunk.
type DependencyBlock struct {
	// Owner is the module that declares the block.
	Owner ModuleID

	// Parent is the enclosing block, or nil for a top-level block.
	Parent *DependencyBlock

	// ChunkName is the optional name of the chunk this block loads.  Blocks
	// sharing a name share one chunk.
	ChunkName string

	Dependencies []*Dependency
	Blocks       []*DependencyBlock

	// ChunkReason is set when every chunk this block loads has been removed:
	// it records why the block no longer needs to load anything.
	ChunkReason string

	chunks []ChunkID
}

// Chunks returns the chunks that this block loads.  The returned slice must not
// be modified.
func (b *DependencyBlock) Chunks() []ChunkID {
	return b.chunks
}

// Reason is a back-reference recording why a module is included.
type Reason struct {
	// Module is the referrer or NoModule if the module is required by an entry
	// point.
	Module ModuleID

	// Dependency is the dependency edge of the referrer.
	Dependency *Dependency

	// Chunks is the module-chunk attribution: the chunks through which the
	// referrer loads the module.  A nil list means "the referrer's chunks".
	// Optimization passes rewrite this list when they move modules around.
	Chunks []ChunkID
}
