// Package loader reads the module graph description produced by the upstream
// module resolver.  Descriptions are YAML documents; JSON documents are
// accepted as well since they are valid YAML.
package loader

import (
	"fmt"
	"io"
	"os"

	"chunkc/graph"

	"gopkg.in/yaml.v3"
)

// yamlGraphFile is the graph description as it is encoded in YAML.
type yamlGraphFile struct {
	Entries []*yamlEntry  `yaml:"entries"`
	Modules []*yamlModule `yaml:"modules"`
}

// yamlEntry is a named entry point.
type yamlEntry struct {
	Name   string `yaml:"name"`
	Module string `yaml:"module"`
}

// yamlModule is a resolved module.
type yamlModule struct {
	ID           string       `yaml:"id"`
	Size         int          `yaml:"size"`
	Exports      exportsDecl  `yaml:"exports"`
	Condition    string       `yaml:"condition"`
	Dependencies []string     `yaml:"dependencies"`
	Blocks       []*yamlBlock `yaml:"blocks"`
}

// yamlBlock is an async dependency block.
type yamlBlock struct {
	Name         string       `yaml:"name"`
	Dependencies []string     `yaml:"dependencies"`
	Blocks       []*yamlBlock `yaml:"blocks"`
}

// exportsDecl decodes the `exports` field: omitted means unknown, the string
// "*" means every export and a list names the exports exactly.
type exportsDecl graph.ProvidedExports

func (ed *exportsDecl) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			ed.Kind = graph.ExportsUnknown
			return nil
		}

		if node.Value != "*" {
			return fmt.Errorf("line %d: exports must be a list or \"*\"", node.Line)
		}

		ed.Kind = graph.ExportsAll
		return nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}

		ed.Kind = graph.ExportsSet
		ed.Names = names
		if ed.Names == nil {
			ed.Names = []string{}
		}

		return nil
	default:
		return fmt.Errorf("line %d: exports must be a list or \"*\"", node.Line)
	}
}

// Conditions maps the names accepted by the `condition` field to the chunk
// conditions they install.
var Conditions = map[string]graph.ChunkCondition{
	"initial": func(c *graph.Chunk) bool { return c.IsInitial },
	"entry":   func(c *graph.Chunk) bool { return c.IsEntry },
	"async":   func(c *graph.Chunk) bool { return !c.IsInitial },
}

// -----------------------------------------------------------------------------

// LoadFile loads the graph description at path.
func LoadFile(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return g, nil
}

// Load decodes a graph description and builds its module graph.  Modules are
// created in declaration order before any dependency is resolved so that
// dependencies may refer forward.  No chunks are created.
func Load(r io.Reader) (*graph.Graph, error) {
	gf := &yamlGraphFile{}
	if err := yaml.NewDecoder(r).Decode(gf); err != nil && err != io.EOF {
		return nil, err
	}

	g := graph.New()

	for _, ym := range gf.Modules {
		if ym.ID == "" {
			return nil, &graph.InvariantError{Kind: graph.InvUnknownModule, Detail: "module is missing an id"}
		}

		if ym.Size < 0 {
			return nil, &graph.InvariantError{Kind: graph.InvUnknownModule, Module: ym.ID, Detail: "module size must not be negative"}
		}

		m, err := g.AddModule(ym.ID, ym.Size)
		if err != nil {
			return nil, err
		}

		m.ProvidedExports = graph.ProvidedExports(ym.Exports)

		if ym.Condition != "" {
			cond, ok := Conditions[ym.Condition]
			if !ok {
				return nil, &graph.InvariantError{
					Kind:   graph.InvUnknownModule,
					Module: ym.ID,
					Detail: fmt.Sprintf("unknown chunk condition `%s`", ym.Condition),
				}
			}

			m.ChunkCondition = cond
		}
	}

	for _, ym := range gf.Modules {
		m, _ := g.ModuleByIdentifier(ym.ID)

		for _, dep := range ym.Dependencies {
			if err := addDependency(g, m, nil, dep); err != nil {
				return nil, err
			}
		}

		for _, yb := range ym.Blocks {
			if err := addBlock(g, m, nil, yb); err != nil {
				return nil, err
			}
		}
	}

	for _, ye := range gf.Entries {
		m, ok := g.ModuleByIdentifier(ye.Module)
		if !ok {
			return nil, &graph.InvariantError{
				Kind:   graph.InvEntry,
				Module: ye.Module,
				Detail: fmt.Sprintf("entry `%s` refers to an unknown module", ye.Name),
			}
		}

		if err := g.AddEntry(ye.Name, m.ID); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// addBlock declares a block and, recursively, its nested blocks.
func addBlock(g *graph.Graph, m *graph.Module, parent *graph.DependencyBlock, yb *yamlBlock) error {
	b, err := g.AddBlock(m.ID, parent, yb.Name)
	if err != nil {
		return err
	}

	for _, dep := range yb.Dependencies {
		if err := addDependency(g, m, b, dep); err != nil {
			return err
		}
	}

	for _, nested := range yb.Blocks {
		if err := addBlock(g, m, b, nested); err != nil {
			return err
		}
	}

	return nil
}

func addDependency(g *graph.Graph, m *graph.Module, b *graph.DependencyBlock, request string) error {
	target, ok := g.ModuleByIdentifier(request)
	if !ok {
		return &graph.InvariantError{
			Kind:   graph.InvUnknownModule,
			Module: m.Identifier,
			Detail: fmt.Sprintf("dependency on unknown module `%s`", request),
		}
	}

	kind := graph.DepImport
	if b != nil {
		kind = graph.DepAsync
	}

	_, err := g.AddDependency(m.ID, b, target.ID, kind, request)
	return err
}
