package optimize

import (
	"chunkc/graph"
	"chunkc/report"
)

// mergeCandidate is a pair of integrable chunks with the size saved by merging
// them.  a is the chunk with the smaller module key and survives the merge.
type mergeCandidate struct {
	a, b       *graph.Chunk
	keyA, keyB string
	benefit    int
	integrated int
}

func (mc mergeCandidate) before(other mergeCandidate) bool {
	switch {
	case mc.benefit != other.benefit:
		return mc.benefit > other.benefit
	case mc.integrated != other.integrated:
		return mc.integrated < other.integrated
	case mc.keyA != other.keyA:
		return mc.keyA < other.keyA
	case mc.keyB != other.keyB:
		return mc.keyB < other.keyB
	case mc.a.Name != other.a.Name:
		return mc.a.Name < other.a.Name
	default:
		return mc.b.Name < other.b.Name
	}
}

// bestMerge returns the candidate pair with the largest benefit.  Ties go to
// the smaller merged chunk and then to the pair with the smaller module keys
// and names.  filter, if non-nil, restricts the pairs considered.
func bestMerge(g *graph.Graph, so SizeOptions, filter func(a, b *graph.Chunk) bool) (mergeCandidate, bool) {
	chunks := g.Chunks()

	keys := make(map[graph.ChunkID]string, len(chunks))
	for _, c := range chunks {
		if !c.IsInitial {
			keys[c.ID] = g.ModuleKey(c)
		}
	}

	var (
		best  mergeCandidate
		found bool
	)

	for idx, y := range chunks {
		if y.IsInitial {
			continue
		}

		for _, x := range chunks[:idx] {
			if x.IsInitial {
				continue
			}

			a, b := x, y
			if keys[b.ID] < keys[a.ID] || keys[b.ID] == keys[a.ID] && b.Name < a.Name {
				a, b = b, a
			}

			if filter != nil && !filter(a, b) {
				continue
			}

			ab, ok := IntegratedSize(g, a, b, so)
			if !ok {
				continue
			}

			mc := mergeCandidate{
				a:          a,
				b:          b,
				keyA:       keys[a.ID],
				keyB:       keys[b.ID],
				benefit:    ChunkSize(g, a, so) + ChunkSize(g, b, so) - ab,
				integrated: ab,
			}

			if !found || mc.before(best) {
				best, found = mc, true
			}
		}
	}

	return best, found
}

func integrateCandidate(g *graph.Graph, mc mergeCandidate, reason string) bool {
	report.Debug("merging chunks", "reason", reason, "survivor", mc.a.String(), "merged", mc.b.String(), "benefit", mc.benefit)

	if err := g.Integrate(mc.a.ID, mc.b.ID); err != nil {
		// Candidates are only produced for integrable pairs.
		panic(err)
	}

	return true
}

// -----------------------------------------------------------------------------

// LimitChunkCount merges chunks while there are more than MaxChunks of them.
// Each step merges the pair with the largest size benefit until the limit is
// met or no pair can be merged.
type LimitChunkCount struct {
	MaxChunks int
	Size      SizeOptions
}

// Run runs the pass.
func (lc *LimitChunkCount) Run(g *graph.Graph) bool {
	if lc.MaxChunks < 1 {
		return false
	}

	changed := false
	for g.NumberOfChunks() > lc.MaxChunks {
		// A merge may leave duplicates behind.  They are folded first so that
		// no two candidates share a module key.
		if MergeDuplicateChunks(g) {
			changed = true
			continue
		}

		mc, ok := bestMerge(g, lc.Size, nil)
		if !ok {
			break
		}

		changed = integrateCandidate(g, mc, "limit") || changed
	}

	return changed
}

// MinChunkSize merges chunks smaller than MinSize into other chunks.  Each step
// merges the best pair in which at least one chunk is below the minimum until
// no such pair remains.  The minimum is compared against module sizes alone:
// no overhead and no entry multiplier.
type MinChunkSize struct {
	MinSize int
	Size    SizeOptions
}

// Run runs the pass.
func (mc *MinChunkSize) Run(g *graph.Graph) bool {
	if mc.MinSize < 1 {
		return false
	}

	plain := SizeOptions{EntryChunkMultiplicator: 1}
	small := func(c *graph.Chunk) bool {
		return ChunkSize(g, c, plain) < mc.MinSize
	}

	changed := false
	for {
		if MergeDuplicateChunks(g) {
			changed = true
		}

		pair, ok := bestMerge(g, mc.Size, func(a, b *graph.Chunk) bool {
			return small(a) || small(b)
		})
		if !ok {
			return changed
		}

		changed = integrateCandidate(g, pair, "min-size") || changed
	}
}
