package finalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chunkc/graph"
	"chunkc/graph/graphtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergedGraph(t *testing.T) *graphtest.Builder {
	b := graphtest.New(t)
	b.Module("index", 10)
	b.Module("a", 20)
	b.Module("b", 30)
	b.Entry("main", "index")

	b.EntryChunk("main", "index")
	b.Chunk("A", "a")
	b.Chunk("B", "b")
	b.Chunk("AB", "a", "b")
	b.Link("main", "A")
	b.Link("main", "B")
	b.Link("main", "AB")

	return b
}

func TestFinalizeAssignsIDs(t *testing.T) {
	b := mergedGraph(t)

	// B and AB are absorbed into A: the survivor takes the shortest name.
	absorbed := b.C("AB").ID
	require.NoError(t, b.G.Integrate(b.C("A").ID, b.C("B").ID))
	require.NoError(t, b.G.Integrate(b.C("A").ID, absorbed))

	out, err := Finalize(b.G)
	require.NoError(t, err)
	require.Len(t, out.Chunks, 2)

	main, a := out.Chunks[0], out.Chunks[1]
	assert.Equal(t, 0, main.ID)
	assert.Equal(t, "main", main.Name)
	assert.True(t, main.IsEntry)
	assert.Equal(t, []int{1}, main.Children)
	assert.Equal(t, 10, main.Size)

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, []int{0}, a.Parents)
	assert.Equal(t, []int{2, 3}, a.AliasIDs)
	assert.Equal(t, 50, a.Size)
	assert.Equal(t, []ModuleRef{{ID: 1, Identifier: "a"}, {ID: 2, Identifier: "b"}}, a.Modules)

	require.Len(t, out.Modules, 3)
	assert.Equal(t, Module{ID: 0, Identifier: "index", Size: 10, Chunks: []int{0}}, out.Modules[0])
	assert.Equal(t, []int{1}, out.Modules[2].Chunks)

	assert.Equal(t, []Entry{{Name: "main", Module: 0, Chunk: 0}}, out.Entries)
	assert.True(t, b.G.Frozen())
}

func TestFinalizeFollowsCurrentOrder(t *testing.T) {
	b := mergedGraph(t)
	require.NoError(t, b.G.Integrate(b.C("A").ID, b.C("B").ID))
	b.G.RemoveChunkBypass(b.C("AB").ID, "")

	b.G.SetChunkOrder([]graph.ChunkID{b.C("A").ID, b.C("main").ID})

	out, err := Finalize(b.G)
	require.NoError(t, err)

	assert.Equal(t, "A", out.Chunks[0].Name)
	assert.Equal(t, []int{1}, out.Chunks[0].Parents)
	assert.Equal(t, []int{2}, out.Chunks[0].AliasIDs)
	assert.Equal(t, 1, out.Entries[0].Chunk)
}

func TestFinalizeHash(t *testing.T) {
	b := mergedGraph(t)
	require.NoError(t, b.G.Integrate(b.C("A").ID, b.C("B").ID))
	b.G.RemoveChunkBypass(b.C("AB").ID, "")

	out, err := Finalize(b.G)
	require.NoError(t, err)

	for _, c := range out.Chunks {
		assert.Len(t, c.Hash, HashLength)
	}

	assert.NotEqual(t, out.Chunks[0].Hash, out.Chunks[1].Hash)

	// The hash depends on content alone.
	other := graphtest.New(t)
	other.Module("a", 1)
	other.Module("b", 1)
	other.Chunk("X", "a", "b")

	out2, err := Finalize(other.G)
	require.NoError(t, err)
	assert.Equal(t, out.Chunks[1].Hash, out2.Chunks[0].Hash)
}

func TestFinalizeRejectsDuplicates(t *testing.T) {
	b := mergedGraph(t)
	b.G.AddModuleToChunk(b.C("B").ID, b.M("a").ID)

	_, err := Finalize(b.G)
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrInvariant))

	var ie *graph.InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, graph.InvDuplicateChunk, ie.Kind)
	assert.False(t, b.G.Frozen())
}

func TestFinalizeTwice(t *testing.T) {
	b := graphtest.New(t)
	b.Module("index")
	b.EntryChunk("main", "index")

	_, err := Finalize(b.G)
	require.NoError(t, err)

	_, err = Finalize(b.G)
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestWriteFile(t *testing.T) {
	b := graphtest.New(t)
	b.Module("index")
	b.Entry("main", "index")
	b.EntryChunk("main", "index")

	out, err := Finalize(b.G)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, out.WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"isEntry": true`)

	path := filepath.Join(t.TempDir(), "dist", "chunks.json")
	require.NoError(t, out.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Output
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Chunks, 1)
	assert.Equal(t, out.Chunks[0].Hash, decoded.Chunks[0].Hash)
	assert.Equal(t, "main", decoded.Entries[0].Name)
}
