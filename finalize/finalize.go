// Package finalize assigns the final ids of modules and chunks, computes chunk
// content hashes and freezes the chunk graph for the downstream renderer.
package finalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"chunkc/common"
	"chunkc/graph"
)

// ErrFinalized is returned when a graph is finalized twice.
var ErrFinalized = errors.New("finalize: graph is already finalized")

// HashLength is the number of hexadecimal digits of a chunk hash.
const HashLength = 16

// ModuleRef is a module as seen from a finalized chunk.
type ModuleRef struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
}

// Module is an entry of the finalized module table.
type Module struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
	Size       int    `json:"size"`
	Chunks     []int  `json:"chunks"`
}

// Chunk is a finalized chunk.
type Chunk struct {
	ID         int         `json:"id"`
	Name       string      `json:"name,omitempty"`
	Hash       string      `json:"hash"`
	AliasIDs   []int       `json:"aliasIds"`
	Modules    []ModuleRef `json:"modules"`
	Parents    []int       `json:"parents"`
	Children   []int       `json:"children"`
	IsEntry    bool        `json:"isEntry"`
	IsInitial  bool        `json:"isInitial"`
	HasRuntime bool        `json:"hasRuntime"`

	// Size is the total size of the chunk's modules.
	Size int `json:"size"`
}

// Entry maps an entry point name to its chunk.
type Entry struct {
	Name   string `json:"name"`
	Module int    `json:"module"`
	Chunk  int    `json:"chunk"`
}

// Output is the finalized chunk graph.
type Output struct {
	Chunks  []*Chunk `json:"chunks"`
	Modules []Module `json:"modules"`
	Entries []Entry  `json:"entries"`
}

// Finalize assigns ids in the current module and chunk order and freezes the
// graph.  Chunks are numbered 0..n-1.  Chunks absorbed by merges keep an id in
// the alias list of their survivor: they are numbered from n upwards, in
// survivor order.  The content invariants of the graph are checked first.
func Finalize(g *graph.Graph) (*Output, error) {
	if g.Frozen() {
		return nil, ErrFinalized
	}

	if err := g.ValidateFinal(); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	mods := g.Modules()
	moduleIDs := make(map[graph.ModuleID]int, len(mods))
	for i, m := range mods {
		moduleIDs[m.ID] = i
	}

	chunks := g.Chunks()
	chunkIDs := make(map[graph.ChunkID]int, len(chunks))
	for i, c := range chunks {
		chunkIDs[c.ID] = i
	}

	// Absorbed chunks are numbered after every live chunk.
	next := len(chunks)
	for _, c := range chunks {
		for _, alias := range c.AliasIDs {
			if _, ok := chunkIDs[alias]; !ok {
				chunkIDs[alias] = next
				next++
			}
		}
	}

	mapIDs := func(ids []graph.ChunkID) []int {
		out := make([]int, 0, len(ids))
		for _, id := range ids {
			out = append(out, chunkIDs[id])
		}

		return out
	}

	out := &Output{
		Chunks:  make([]*Chunk, len(chunks)),
		Modules: make([]Module, len(mods)),
	}

	for i, c := range chunks {
		fc := &Chunk{
			ID:         i,
			Name:       c.Name,
			AliasIDs:   mapIDs(c.AliasIDs),
			Modules:    make([]ModuleRef, c.NumberOfModules()),
			Parents:    mapIDs(c.Parents()),
			Children:   mapIDs(c.Children()),
			IsEntry:    c.IsEntry,
			IsInitial:  c.IsInitial,
			HasRuntime: c.HasRuntime,
		}

		identifiers := make([]string, c.NumberOfModules())
		for j, mid := range c.Modules() {
			m := g.Module(mid)
			fc.Modules[j] = ModuleRef{ID: moduleIDs[mid], Identifier: m.Identifier}
			fc.Size += m.Size
			identifiers[j] = m.Identifier
		}

		fc.Hash = common.ShortHash(common.HashStrings(identifiers), HashLength)
		out.Chunks[i] = fc
	}

	for i, m := range mods {
		fm := Module{ID: i, Identifier: m.Identifier, Size: m.Size, Chunks: make([]int, 0, m.NumberOfChunks())}
		for _, c := range m.Chunks() {
			fm.Chunks = append(fm.Chunks, chunkIDs[c])
		}

		out.Modules[i] = fm
	}

	for _, e := range g.Entries() {
		fe := Entry{Name: e.Name, Module: moduleIDs[e.Module], Chunk: -1}
		for _, c := range chunks {
			if c.IsEntry && c.EntryModule == e.Module && c.Name == e.Name {
				fe.Chunk = chunkIDs[c.ID]
				break
			}
		}

		out.Entries = append(out.Entries, fe)
	}

	g.Freeze()
	return out, nil
}

// WriteJSON encodes the output as indented JSON.
func (o *Output) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

// WriteFile writes the output as JSON to path, creating parent directories as
// needed.
func (o *Output) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := o.WriteJSON(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
