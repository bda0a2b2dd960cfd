package mods

import (
	"path/filepath"

	"chunkc/optimize"
)

// Project represents a chunkc project: specifically, the project configuration.
// NOTE: Profile information is not stored on the project but returned
// alongside it since a project may be built with any of its profiles.
type Project struct {
	// Name is the name of the project
	Name string

	// Root is the path to the directory enclosing the project file
	Root string

	// GraphPath is the absolute path to the module graph description
	GraphPath string

	// OutputPath is the absolute path to the finalized chunk graph
	OutputPath string

	// VersionConstraint is the range of chunkc versions the project accepts.
	// It may be empty.
	VersionConstraint string
}

// BuildProfile represents the optimization settings the project is built with:
// it is returned from `LoadProject`.
type BuildProfile struct {
	// Name is the name of the profile
	Name string

	// PreferEntry ranks modules loaded by initial chunks first
	PreferEntry bool

	// MaxChunks is the maximum number of chunks.  Zero disables the limit.
	MaxChunks int

	// MinChunkSize is the minimum size of a chunk.  Zero disables the minimum.
	MinChunkSize int

	// ChunkOverhead and EntryChunkMultiplicator configure chunk size
	// accounting for the chunk merging passes
	ChunkOverhead           int
	EntryChunkMultiplicator int

	// MaxIterations bounds the fixed point iteration of every phase
	MaxIterations int

	// LegacySizeCheck selects the size based change test of
	// RemoveParentModules
	LegacySizeCheck bool

	// Validate enables checking the graph invariants after every pass
	Validate bool
}

// Options converts the profile into optimization options.
func (bp *BuildProfile) Options() optimize.Options {
	return optimize.Options{
		PreferEntry:     bp.PreferEntry,
		LegacySizeCheck: bp.LegacySizeCheck,
		MaxChunks:       bp.MaxChunks,
		MinChunkSize:    bp.MinChunkSize,
		Size: optimize.SizeOptions{
			ChunkOverhead:           bp.ChunkOverhead,
			EntryChunkMultiplicator: bp.EntryChunkMultiplicator,
		},
	}
}

// resolvePath makes a project relative path absolute.
func (p *Project) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}

	return filepath.Join(p.Root, path)
}

// IsValidName returns whether or not a given string would be a valid project
// name: a letter or underscore followed by letters, digits, underscores and
// hyphens.
func IsValidName(name string) bool {
	if name == "" {
		return false
	}

	if name[0] == '_' || ('a' <= name[0] && name[0] <= 'z') || ('A' <= name[0] && name[0] <= 'Z') {
		for _, c := range name[1:] {
			if c == '_' || c == '-' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
				continue
			}

			return false
		}

		return true
	}

	return false
}
