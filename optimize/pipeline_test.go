package optimize

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"chunkc/assemble"
	"chunkc/graph"
	"chunkc/graph/graphtest"
	"chunkc/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appGraph builds a two-entry application with a shared async page reached
// from both entries, a lazy chunk made redundant by its parent and a chunk
// included in another one.
func appGraph(t *testing.T) *graphtest.Builder {
	b := graphtest.New(t)
	b.Modules("index", "admin", "shared", "util", "page", "leaf")
	b.Dep("index", "shared")
	b.Dep("index", "util")
	b.Dep("admin", "shared")
	b.Dep("shared", "util")
	b.Dep("util", "shared")
	b.Dep("page", "leaf")
	b.Dep("page", "util")
	b.Block("index", "", "page")
	b.Block("index", "", "shared")
	b.Block("index", "", "leaf")
	b.Block("admin", "", "page")
	b.Entry("main", "index")
	b.Entry("admin", "admin")

	require.NoError(t, assemble.Assemble(b.G))
	return b
}

func optimizeGraph(t *testing.T, g *graph.Graph, opts Options) *pipeline.Registry {
	t.Helper()

	reg := pipeline.NewDefaultRegistry()
	require.NoError(t, Register(reg, opts))
	require.NoError(t, pipeline.NewOrchestrator(reg, 0, true).Run(g))

	return reg
}

// signature renders the optimized graph without arena IDs or names.
func signature(g *graph.Graph) string {
	chunks := g.Chunks()
	pos := make(map[graph.ChunkID]int, len(chunks))
	for i, c := range chunks {
		pos[c.ID] = i
	}

	positions := func(ids []graph.ChunkID) ([]int, int) {
		var live []int
		evicted := 0
		for _, id := range ids {
			if p, ok := pos[id]; ok {
				live = append(live, p)
			} else {
				evicted++
			}
		}

		sort.Ints(live)
		return live, evicted
	}

	var sb strings.Builder
	for i, c := range chunks {
		parents, _ := positions(c.Parents())
		children, _ := positions(c.Children())
		aliases, absorbed := positions(c.AliasIDs)

		fmt.Fprintf(&sb, "%d %v parents=%v children=%v aliases=%v absorbed=%d entry=%v\n",
			i, graphtest.OrderedIdentifiers(g, c), parents, children, aliases, absorbed, c.IsEntry)
	}

	for _, m := range g.Modules() {
		sb.WriteString(m.Identifier)
		sb.WriteByte(' ')
	}

	return sb.String()
}

// guaranteed reports whether every path from a root to c passes through a chunk
// other than c containing m.
func guaranteed(g *graph.Graph, c *graph.Chunk, m graph.ModuleID) bool {
	if len(c.Parents()) == 0 {
		return false
	}

	for _, pid := range c.Parents() {
		p := g.Chunk(pid)
		if !p.HasModule(m) && !guaranteed(g, p, m) {
			return false
		}
	}

	return true
}

func checkProperties(t *testing.T, g *graph.Graph) {
	t.Helper()

	require.NoError(t, g.ValidateFinal())

	keys := make(map[string]graph.ChunkID)
	for _, c := range g.Chunks() {
		if !c.IsInitial {
			key := g.ModuleKey(c)
			_, dup := keys[key]
			assert.False(t, dup, "duplicate module set %q", key)
			keys[key] = c.ID
		}

		assert.False(t, c.IsEmpty() && !c.IsEntry && !c.HasRuntime, "dead chunk %s", c)

		if !c.IsEntry {
			for _, m := range c.Modules() {
				assert.False(t, guaranteed(g, c, m), "module %s is redundant in %s", g.Module(m).Identifier, c)
			}
		}

		for _, alias := range c.AliasIDs {
			assert.NotEqual(t, c.ID, alias)

			other := g.Chunk(alias)
			if other == nil {
				// Absorbed by a merge.
				continue
			}

			for _, m := range other.Modules() {
				assert.True(t, c.HasModule(m), "alias %s of %s is not included", other, c)
			}
		}
	}
}

// -----------------------------------------------------------------------------

func TestRegisterDefaultPhases(t *testing.T) {
	reg := pipeline.NewDefaultRegistry()
	require.NoError(t, Register(reg, DefaultOptions()))

	names := func(phase string) []string {
		p, ok := reg.Phase(phase)
		require.True(t, ok)

		var ns []string
		for _, pass := range p.Passes {
			ns = append(ns, pass.Name)
		}

		return ns
	}

	assert.Equal(t, []string{PassEnsureChunkConditions, PassRemoveEmptyChunks}, names(pipeline.PhaseBasic))
	assert.Equal(t, []string{PassMergeDuplicateChunks, PassRemoveParentModules}, names(pipeline.PhaseStructural))
	assert.Empty(t, names(pipeline.PhaseAdvanced))
	assert.Equal(t, []string{PassFlagIncludedChunks, PassOccurrenceOrder}, names(pipeline.PhaseIDAssignment))

	reg = pipeline.NewDefaultRegistry()
	opts := DefaultOptions()
	opts.MaxChunks = 4
	opts.MinChunkSize = 100
	require.NoError(t, Register(reg, opts))
	assert.Equal(t, []string{PassLimitChunkCount, PassMinChunkSize}, names(pipeline.PhaseAdvanced))

	assert.Error(t, Register(pipeline.NewRegistry(), opts))
}

func TestFullPipeline(t *testing.T) {
	b := appGraph(t)
	optimizeGraph(t, b.G, DefaultOptions())

	checkProperties(t, b.G)

	chunks := b.G.Chunks()
	require.Len(t, chunks, 4)

	page, admin, main, leaf := chunks[0], chunks[1], chunks[2], chunks[3]
	assert.Equal(t, []string{"leaf", "page"}, graphtest.OrderedIdentifiers(b.G, page))
	assert.Equal(t, "admin", admin.Name)
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, []string{"leaf"}, graphtest.OrderedIdentifiers(b.G, leaf))

	assert.ElementsMatch(t, []graph.ChunkID{admin.ID, main.ID}, page.Parents())
	assert.True(t, page.HasAlias(leaf.ID))
	assert.Len(t, page.AliasIDs, 2)
	assert.Equal(t, []string{"index", "shared", "util"}, graphtest.OrderedIdentifiers(b.G, main))

	// The lazy chunk holding only `shared` was emptied and removed: its block
	// no longer loads anything.
	sharedBlock := b.M("index").Blocks[1]
	assert.Empty(t, sharedBlock.Chunks())
	assert.Equal(t, "empty", sharedBlock.ChunkReason)
}

func TestPipelineIsIdempotent(t *testing.T) {
	b := appGraph(t)
	reg := optimizeGraph(t, b.G, DefaultOptions())

	for _, phase := range reg.Phases() {
		for _, pass := range phase.Passes {
			assert.False(t, pass.Run(b.G), "pass %s/%s changed an optimized graph", phase.Name, pass.Name)
		}
	}

	changed, err := pipeline.NewOrchestrator(reg, 0, true).RunPhase(b.G, pipeline.PhaseStructural)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPipelineIsOrderIndependent(t *testing.T) {
	natural := appGraph(t)
	optimizeGraph(t, natural.G, DefaultOptions())

	shuffled := appGraph(t)

	chunks := shuffled.G.Chunks()
	chunkOrder := make([]graph.ChunkID, len(chunks))
	for i, c := range chunks {
		chunkOrder[len(chunks)-1-i] = c.ID
	}
	shuffled.G.SetChunkOrder(chunkOrder)

	mods := shuffled.G.Modules()
	moduleOrder := make([]graph.ModuleID, len(mods))
	for i, m := range mods {
		moduleOrder[(i+3)%len(mods)] = m.ID
	}
	shuffled.G.SetModuleOrder(moduleOrder)

	optimizeGraph(t, shuffled.G, DefaultOptions())

	assert.Equal(t, signature(natural.G), signature(shuffled.G))
	checkProperties(t, shuffled.G)
}

func TestPipelineWithConditionsAndLimits(t *testing.T) {
	b := graphtest.New(t)
	b.Module("index", 10)
	b.Module("polyfill", 50)
	b.Module("a", 100)
	b.Module("b", 200)
	b.Module("c", 300)
	b.Module("d", 5)
	b.Block("index", "", "a")
	b.Block("index", "", "b")
	b.Block("index", "", "c")
	b.Dep("a", "polyfill")
	b.Dep("c", "d")
	b.M("polyfill").ChunkCondition = initialOnly
	b.Entry("main", "index")
	require.NoError(t, assemble.Assemble(b.G))

	opts := DefaultOptions()
	opts.MaxChunks = 3
	optimizeGraph(t, b.G, opts)

	checkProperties(t, b.G)
	assert.Equal(t, 3, b.G.NumberOfChunks())

	// The merged chunk loaded by two blocks outranks the entry chunk.
	chunks := b.G.Chunks()
	assert.Equal(t, []string{"a", "b"}, graphtest.OrderedIdentifiers(b.G, chunks[0]))
	assert.Equal(t, []string{"c", "d"}, graphtest.OrderedIdentifiers(b.G, chunks[1]))

	main := chunks[2]
	assert.True(t, main.IsEntry)
	assert.True(t, main.HasModule(b.M("polyfill").ID))
	assert.Equal(t, 1, b.M("polyfill").NumberOfChunks())
}

func TestPipelineLimitsManyChunks(t *testing.T) {
	b := graphtest.New(t)
	b.Module("index")
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("m%03d", i)
		b.Module(id, 1+i%7)
		b.Block("index", "", id)
	}
	b.Entry("main", "index")
	require.NoError(t, assemble.Assemble(b.G))

	opts := DefaultOptions()
	opts.MaxChunks = 10
	optimizeGraph(t, b.G, opts)

	checkProperties(t, b.G)
	assert.Equal(t, 10, b.G.NumberOfChunks())
}

// -----------------------------------------------------------------------------

// randomApp is a generated module graph with synchronous module cycles, named
// blocks shared between modules and two entries.
type randomApp struct {
	sizes  []int
	deps   [][2]int
	blocks []randomBlock
}

type randomBlock struct {
	owner   int
	name    string
	targets []int
}

func moduleName(i int) string {
	return fmt.Sprintf("m%02d", i)
}

func newRandomApp(seed int64) *randomApp {
	const n = 12

	r := rand.New(rand.NewSource(seed))
	app := &randomApp{sizes: make([]int, n)}
	for i := range app.sizes {
		app.sizes[i] = 1 + r.Intn(100)
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && r.Intn(7) == 0 {
				app.deps = append(app.deps, [2]int{i, j})
			}
		}

		for k := r.Intn(3); k > 0; k-- {
			blk := randomBlock{owner: i}
			if r.Intn(3) == 0 {
				blk.name = []string{"x", "y"}[r.Intn(2)]
			}

			for targets := 1 + r.Intn(2); targets > 0; targets-- {
				blk.targets = append(blk.targets, r.Intn(n))
			}

			app.blocks = append(app.blocks, blk)
		}
	}

	return app
}

// build assembles the app.  With a non-nil r, modules and entries are declared
// in a random order and the assembled chunk and module orders are shuffled.
func (app *randomApp) build(t *testing.T, r *rand.Rand) *graph.Graph {
	b := graphtest.New(t)

	declare := make([]int, len(app.sizes))
	for i := range declare {
		declare[i] = i
	}

	entries := []string{"admin", "main"}
	if r != nil {
		r.Shuffle(len(declare), func(i, j int) { declare[i], declare[j] = declare[j], declare[i] })
		r.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	}

	for _, i := range declare {
		b.Module(moduleName(i), app.sizes[i])
	}

	for _, d := range app.deps {
		b.Dep(moduleName(d[0]), moduleName(d[1]))
	}

	for _, blk := range app.blocks {
		targets := make([]string, len(blk.targets))
		for i, target := range blk.targets {
			targets[i] = moduleName(target)
		}

		b.Block(moduleName(blk.owner), blk.name, targets...)
	}

	for _, e := range entries {
		if e == "main" {
			b.Entry(e, moduleName(0))
		} else {
			b.Entry(e, moduleName(1))
		}
	}

	require.NoError(t, assemble.Assemble(b.G))

	if r != nil {
		chunks := b.G.Chunks()
		chunkOrder := make([]graph.ChunkID, len(chunks))
		for i, j := range r.Perm(len(chunks)) {
			chunkOrder[j] = chunks[i].ID
		}
		b.G.SetChunkOrder(chunkOrder)

		mods := b.G.Modules()
		moduleOrder := make([]graph.ModuleID, len(mods))
		for i, j := range r.Perm(len(mods)) {
			moduleOrder[j] = mods[i].ID
		}
		b.G.SetModuleOrder(moduleOrder)
	}

	return b.G
}

func TestPipelinePropertiesOnRandomGraphs(t *testing.T) {
	variants := []struct {
		name string
		opts func() Options
	}{
		{"default", DefaultOptions},
		{"max-chunks", func() Options {
			opts := DefaultOptions()
			opts.MaxChunks = 4
			return opts
		}},
		{"min-chunk-size", func() Options {
			opts := DefaultOptions()
			opts.MinChunkSize = 80
			return opts
		}},
	}

	for seed := int64(1); seed <= 60; seed++ {
		app := newRandomApp(seed)

		for _, v := range variants {
			t.Run(fmt.Sprintf("seed=%d/%s", seed, v.name), func(t *testing.T) {
				natural := app.build(t, nil)
				optimizeGraph(t, natural, v.opts())
				checkProperties(t, natural)

				for shuffle := int64(0); shuffle < 3; shuffle++ {
					shuffled := app.build(t, rand.New(rand.NewSource(seed*31+shuffle)))
					optimizeGraph(t, shuffled, v.opts())
					checkProperties(t, shuffled)

					require.Equal(t, signature(natural), signature(shuffled), "shuffle %d", shuffle)
				}
			})
		}
	}
}
