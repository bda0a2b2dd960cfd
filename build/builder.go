package build

import (
	"errors"
	"fmt"

	"chunkc/assemble"
	"chunkc/finalize"
	"chunkc/graph"
	"chunkc/loader"
	"chunkc/mods"
	"chunkc/optimize"
	"chunkc/pipeline"
	"chunkc/report"
)

// Builder is the data structure responsible for maintaining all high-level
// state of a chunkc build
type Builder struct {
	// project is the project being built
	project *mods.Project

	// profile is the profile that is being used to build the project
	profile *mods.BuildProfile

	// Metrics collects pass statistics.  It may be nil.
	Metrics *pipeline.Metrics

	// MetricsPath is the path the collected metrics are written to after the
	// build.  It is ignored if there are no metrics.
	MetricsPath string
}

// NewBuilder creates a new builder for a given project and build profile
func NewBuilder(project *mods.Project, profile *mods.BuildProfile) *Builder {
	return &Builder{
		project: project,
		profile: profile,
	}
}

// Run runs the full build on the project and build profile.  It handles all
// build errors appropriately and returns whether or not the build succeeded.
func (b *Builder) Run() bool {
	report.ReportBuildHeader(b.project.Name, b.profile.Name)

	report.ReportBeginPhase("Loading")
	g, err := loader.LoadFile(b.project.GraphPath)
	if err != nil {
		report.ReportFatal("error loading module graph: %s", err)
		return false
	}
	report.ReportEndPhase(true)

	out, err := b.Build(g)
	if err != nil {
		report.ReportICE("%s", err)
		return false
	}

	if err := out.WriteFile(b.project.OutputPath); err != nil {
		report.ReportError("Output", err)
	}

	if b.Metrics != nil && b.MetricsPath != "" {
		if err := b.Metrics.WriteTextfile(b.MetricsPath); err != nil {
			report.ReportError("Metrics", err)
		}
	}

	report.ReportBuildFinished(b.project.OutputPath, chunkRows(out))
	return report.ShouldProceed()
}

// Build assembles, optimizes and finalizes a loaded module graph.  The returned
// error is always an internal error: the graph has already been validated by
// the loader.
func (b *Builder) Build(g *graph.Graph) (*finalize.Output, error) {
	report.ReportBeginPhase("Assembling")
	if err := assemble.Assemble(g); err != nil {
		report.ReportEndPhase(false)
		return nil, fmt.Errorf("chunk assembly failed: %w", err)
	}
	report.ReportEndPhase(true)

	report.ReportBeginPhase("Optimizing")
	if err := b.optimize(g); err != nil {
		report.ReportEndPhase(false)
		return nil, err
	}
	report.ReportEndPhase(true)

	report.ReportBeginPhase("Finalizing")
	out, err := finalize.Finalize(g)
	if err != nil {
		report.ReportEndPhase(false)
		return nil, err
	}
	report.ReportEndPhase(true)

	return out, nil
}

// optimize runs the optimization pipeline configured by the build profile.
func (b *Builder) optimize(g *graph.Graph) error {
	reg := pipeline.NewDefaultRegistry()
	if err := optimize.Register(reg, b.profile.Options()); err != nil {
		return err
	}

	orch := pipeline.NewOrchestrator(reg, b.profile.MaxIterations, b.profile.Validate)
	orch.Metrics = b.Metrics

	if err := orch.Run(g); err != nil {
		if errors.Is(err, pipeline.ErrNoConvergence) {
			return fmt.Errorf("optimization did not converge: %w", err)
		}

		return fmt.Errorf("optimization failed: %w", err)
	}

	return nil
}

// chunkRows converts the finalized chunks into rows of the chunk table.
func chunkRows(out *finalize.Output) []report.ChunkRow {
	rows := make([]report.ChunkRow, len(out.Chunks))
	for i, c := range out.Chunks {
		var flags []string
		if c.IsEntry {
			flags = append(flags, "entry")
		}

		if c.IsInitial {
			flags = append(flags, "initial")
		}

		if c.HasRuntime {
			flags = append(flags, "runtime")
		}

		if len(c.AliasIDs) > 0 {
			flags = append(flags, fmt.Sprintf("aliases=%d", len(c.AliasIDs)))
		}

		rows[i] = report.ChunkRow{
			ID:      c.ID,
			Name:    c.Name,
			Hash:    c.Hash,
			Modules: len(c.Modules),
			Size:    c.Size,
			Flags:   flags,
		}
	}

	return rows
}
