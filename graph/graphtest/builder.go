// Package graphtest provides a compact builder for constructing module and
// chunk graphs in tests.
package graphtest

import (
	"sort"
	"testing"

	"chunkc/graph"

	"github.com/stretchr/testify/require"
)

// Builder constructs a graph.Graph, failing the test on any graph error.
// Modules and chunks are addressed by their identifiers and names.
type Builder struct {
	t      testing.TB
	G      *graph.Graph
	chunks map[string]graph.ChunkID
}

// New creates a builder over an empty graph.
func New(t testing.TB) *Builder {
	return &Builder{
		t:      t,
		G:      graph.New(),
		chunks: make(map[string]graph.ChunkID),
	}
}

// Module adds a module.  The optional size defaults to 1.
func (b *Builder) Module(identifier string, size ...int) *graph.Module {
	b.t.Helper()

	sz := 1
	if len(size) > 0 {
		sz = size[0]
	}

	m, err := b.G.AddModule(identifier, sz)
	require.NoError(b.t, err)
	return m
}

// Modules adds several modules of size 1.
func (b *Builder) Modules(identifiers ...string) {
	b.t.Helper()

	for _, id := range identifiers {
		b.Module(id)
	}
}

// M looks up a module by identifier.
func (b *Builder) M(identifier string) *graph.Module {
	b.t.Helper()

	m, ok := b.G.ModuleByIdentifier(identifier)
	require.True(b.t, ok, "unknown module %s", identifier)
	return m
}

// Dep adds a synchronous dependency between two modules.
func (b *Builder) Dep(from, to string) {
	b.t.Helper()

	_, err := b.G.AddDependency(b.M(from).ID, nil, b.M(to).ID, graph.DepImport, to)
	require.NoError(b.t, err)
}

// Block adds a top-level async block to owner containing dependencies on each
// of the targets.
func (b *Builder) Block(owner, chunkName string, targets ...string) *graph.DependencyBlock {
	b.t.Helper()

	return b.NestedBlock(owner, nil, chunkName, targets...)
}

// NestedBlock adds an async block nested inside parent.
func (b *Builder) NestedBlock(owner string, parent *graph.DependencyBlock, chunkName string, targets ...string) *graph.DependencyBlock {
	b.t.Helper()

	blk, err := b.G.AddBlock(b.M(owner).ID, parent, chunkName)
	require.NoError(b.t, err)

	for _, target := range targets {
		_, err := b.G.AddDependency(b.M(owner).ID, blk, b.M(target).ID, graph.DepAsync, target)
		require.NoError(b.t, err)
	}

	return blk
}

// Entry declares a named entry point.
func (b *Builder) Entry(name, module string) {
	b.t.Helper()

	require.NoError(b.t, b.G.AddEntry(name, b.M(module).ID))
}

// Chunk creates a non-initial chunk containing the given modules.
func (b *Builder) Chunk(name string, modules ...string) *graph.Chunk {
	b.t.Helper()

	c := b.G.NewChunk(name)
	for _, m := range modules {
		b.G.AddModuleToChunk(c.ID, b.M(m).ID)
	}

	b.chunks[name] = c.ID
	return c
}

// EntryChunk creates an initial entry chunk with a runtime containing the given
// modules.
func (b *Builder) EntryChunk(name string, modules ...string) *graph.Chunk {
	b.t.Helper()

	c := b.Chunk(name, modules...)
	c.IsEntry = true
	c.IsInitial = true
	c.HasRuntime = true

	if len(modules) > 0 {
		c.EntryModule = b.M(modules[0]).ID
	}

	return c
}

// C looks up a chunk created by the builder.  It returns nil if the chunk has
// since been evicted.
func (b *Builder) C(name string) *graph.Chunk {
	b.t.Helper()

	id, ok := b.chunks[name]
	require.True(b.t, ok, "unknown chunk %s", name)
	return b.G.Chunk(id)
}

// Link adds a parent-child edge between two chunks.
func (b *Builder) Link(parent, child string) {
	b.t.Helper()

	b.G.Connect(b.C(parent).ID, b.C(child).ID)
}

// Identifiers returns the sorted identifiers of the modules in a chunk.
func Identifiers(g *graph.Graph, c *graph.Chunk) []string {
	ids := make([]string, 0, c.NumberOfModules())
	for _, m := range c.Modules() {
		ids = append(ids, g.Module(m).Identifier)
	}

	sort.Strings(ids)
	return ids
}

// OrderedIdentifiers returns the identifiers of the modules in a chunk in chunk
// order.
func OrderedIdentifiers(g *graph.Graph, c *graph.Chunk) []string {
	ids := make([]string, 0, c.NumberOfModules())
	for _, m := range c.Modules() {
		ids = append(ids, g.Module(m).Identifier)
	}

	return ids
}

// Names returns the names of the given chunks.
func Names(g *graph.Graph, ids []graph.ChunkID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, g.Chunk(id).Name)
	}

	sort.Strings(names)
	return names
}
