// Package optimize implements the chunk graph optimization passes and their
// registration in the default phases of the pipeline.
package optimize

import (
	"chunkc/pipeline"
)

// Names of the passes as registered in the pipeline.
const (
	PassEnsureChunkConditions = "ensure-chunk-conditions"
	PassRemoveEmptyChunks     = "remove-empty-chunks"
	PassMergeDuplicateChunks  = "merge-duplicate-chunks"
	PassRemoveParentModules   = "remove-parent-modules"
	PassLimitChunkCount       = "limit-chunk-count"
	PassMinChunkSize          = "min-chunk-size"
	PassFlagIncludedChunks    = "flag-included-chunks"
	PassOccurrenceOrder       = "occurrence-order"
)

// Options configures the optimization passes.
type Options struct {
	// PreferEntry ranks modules loaded by initial chunks first.
	PreferEntry bool

	// LegacySizeCheck makes RemoveParentModules re-propagate only when the
	// size of a contribution changes rather than its membership.
	LegacySizeCheck bool

	// MaxChunks enables LimitChunkCount when positive.
	MaxChunks int

	// MinChunkSize enables MinChunkSize when positive.
	MinChunkSize int

	// Size configures chunk size accounting for the chunk merging passes.
	Size SizeOptions
}

// DefaultOptions returns the default optimization options.
func DefaultOptions() Options {
	return Options{
		PreferEntry: true,
		Size: SizeOptions{
			ChunkOverhead:           DefaultChunkOverhead,
			EntryChunkMultiplicator: DefaultEntryChunkMultiplicator,
		},
	}
}

// Register registers every pass enabled by opts in its default phase.  The
// registry must contain the default phases.
func Register(reg *pipeline.Registry, opts Options) error {
	type entry struct {
		phase, name string
		run         pipeline.PassFunc
	}

	entries := []entry{
		{pipeline.PhaseBasic, PassEnsureChunkConditions, NewEnsureChunkConditions().Run},
		{pipeline.PhaseBasic, PassRemoveEmptyChunks, RemoveEmptyChunks},
		{pipeline.PhaseStructural, PassMergeDuplicateChunks, MergeDuplicateChunks},
		{pipeline.PhaseStructural, PassRemoveParentModules, (&RemoveParentModules{LegacySizeCheck: opts.LegacySizeCheck}).Run},
	}

	if opts.MaxChunks > 0 {
		entries = append(entries, entry{pipeline.PhaseAdvanced, PassLimitChunkCount, (&LimitChunkCount{MaxChunks: opts.MaxChunks, Size: opts.Size}).Run})
	}

	if opts.MinChunkSize > 0 {
		entries = append(entries, entry{pipeline.PhaseAdvanced, PassMinChunkSize, (&MinChunkSize{MinSize: opts.MinChunkSize, Size: opts.Size}).Run})
	}

	entries = append(entries,
		entry{pipeline.PhaseIDAssignment, PassFlagIncludedChunks, FlagIncludedChunks},
		entry{pipeline.PhaseIDAssignment, PassOccurrenceOrder, (&OccurrenceOrder{PreferEntry: opts.PreferEntry}).Run},
	)

	for _, e := range entries {
		if err := reg.Register(e.phase, e.name, e.run); err != nil {
			return err
		}
	}

	return nil
}
