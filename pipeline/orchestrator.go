package pipeline

import (
	"errors"
	"fmt"
	"time"

	"chunkc/graph"
	"chunkc/report"
)

// DefaultMaxIterations is the default ceiling on fixed-point iterations.
const DefaultMaxIterations = 100

// ErrNoConvergence is returned when a phase or a group of phases fails to reach
// a fixed point within the iteration ceiling.
var ErrNoConvergence = errors.New("pipeline: no convergence")

// Orchestrator drives the passes of a registry over a graph.  It has exclusive
// access to the graph for the duration of a run.
type Orchestrator struct {
	Registry *Registry

	// MaxIterations bounds both the iterations of a phase and the rounds of a
	// group.  Values below one use DefaultMaxIterations.
	MaxIterations int

	// Validate enables checking the structural graph invariants after every
	// pass invocation.
	Validate bool

	// Metrics is optional.
	Metrics *Metrics
}

// NewOrchestrator creates a new orchestrator over the given registry.
func NewOrchestrator(reg *Registry, maxIterations int, validate bool) *Orchestrator {
	return &Orchestrator{
		Registry:      reg,
		MaxIterations: maxIterations,
		Validate:      validate,
	}
}

func (o *Orchestrator) maxIterations() int {
	if o.MaxIterations < 1 {
		return DefaultMaxIterations
	}

	return o.MaxIterations
}

// Run runs every phase in order.  Phases without a group run once to their own
// fixed point; consecutive phases sharing a group are re-run as rounds until a
// round makes no change.
func (o *Orchestrator) Run(g *graph.Graph) error {
	phases := o.Registry.Phases()

	for i := 0; i < len(phases); {
		if phases[i].Group == "" {
			if _, err := o.runPhase(g, phases[i]); err != nil {
				return err
			}

			i++
			continue
		}

		j := i + 1
		for j < len(phases) && phases[j].Group == phases[i].Group {
			j++
		}

		if err := o.runGroup(g, phases[i].Group, phases[i:j]); err != nil {
			return err
		}

		i = j
	}

	return nil
}

// RunPhase runs a single phase to its fixed point and reports whether it
// changed the graph.
func (o *Orchestrator) RunPhase(g *graph.Graph, name string) (bool, error) {
	p, ok := o.Registry.Phase(name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPhase, name)
	}

	return o.runPhase(g, p)
}

func (o *Orchestrator) runGroup(g *graph.Graph, group string, phases []*Phase) error {
	limit := o.maxIterations()

	for round := 1; ; round++ {
		if round > limit {
			return fmt.Errorf("group %s did not settle within %d rounds: %w", group, limit, ErrNoConvergence)
		}

		o.Metrics.observeRound(group)

		changed := false
		for _, p := range phases {
			c, err := o.runPhase(g, p)
			if err != nil {
				return err
			}

			changed = changed || c
		}

		report.Debug("group round finished", "group", group, "round", round, "changed", changed)

		if !changed {
			return nil
		}
	}
}

func (o *Orchestrator) runPhase(g *graph.Graph, p *Phase) (bool, error) {
	limit := o.maxIterations()
	changedAny := false

	for iter := 1; ; iter++ {
		if iter > limit {
			return changedAny, fmt.Errorf("phase %s did not reach a fixed point within %d iterations: %w", p.Name, limit, ErrNoConvergence)
		}

		o.Metrics.observeIteration(p.Name)

		changed := false
		for _, pass := range p.Passes {
			start := time.Now()
			c := pass.Run(g)
			o.Metrics.observePass(p.Name, pass.Name, c, time.Since(start))

			report.Debug("pass finished", "phase", p.Name, "pass", pass.Name, "iteration", iter, "changed", c, "chunks", g.NumberOfChunks())

			if o.Validate {
				if err := g.Validate(); err != nil {
					return changedAny, fmt.Errorf("after pass %s/%s: %w", p.Name, pass.Name, err)
				}
			}

			changed = changed || c
		}

		if !changed {
			return changedAny, nil
		}

		changedAny = true
	}
}
