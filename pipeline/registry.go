// Package pipeline provides the extension registry of optimization phases and
// the orchestrator which drives registered passes over a chunk graph.
package pipeline

import (
	"errors"
	"fmt"

	"chunkc/graph"
)

// Names of the default phases.
const (
	PhaseBasic        = "basic-optimizations"
	PhaseStructural   = "structural-optimizations"
	PhaseAdvanced     = "advanced-optimizations"
	PhaseIDAssignment = "id-assignment"
)

// GroupOptimize is the group of the optimization phases: they are re-run as a
// round until none of them changes the graph.
const GroupOptimize = "optimize"

var (
	ErrUnknownPhase   = errors.New("pipeline: unknown phase")
	ErrDuplicatePhase = errors.New("pipeline: duplicate phase")
	ErrDuplicatePass  = errors.New("pipeline: duplicate pass")
	ErrSplitGroup     = errors.New("pipeline: phases of a group must be consecutive")
)

// PassFunc runs a pass over the graph and reports whether it changed it.
type PassFunc func(g *graph.Graph) bool

// Pass is a named optimization pass.
type Pass struct {
	Name string
	Run  PassFunc
}

// Phase is a named, ordered list of passes re-run to a fixed point.
type Phase struct {
	Name string

	// Group is the optional group of the phase.  Consecutive phases sharing a
	// group are re-run together until a full round reports no change.
	Group string

	Passes []Pass
}

// Registry is the ordered list of phases and their registered passes.  Phases
// run in the order they were added and passes in the order they were
// registered.
type Registry struct {
	phases []*Phase
	byName map[string]*Phase
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Phase)}
}

// NewDefaultRegistry creates a registry containing the default phases with no
// passes registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	// The default phases are distinct and their group is consecutive.
	_ = r.AddPhase(PhaseBasic, GroupOptimize)
	_ = r.AddPhase(PhaseStructural, GroupOptimize)
	_ = r.AddPhase(PhaseAdvanced, GroupOptimize)
	_ = r.AddPhase(PhaseIDAssignment, "")

	return r
}

// AddPhase appends a new phase.  A non-empty group must either be new or be
// the group of the last phase.
func (r *Registry) AddPhase(name, group string) error {
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePhase, name)
	}

	if group != "" && len(r.phases) > 0 && r.phases[len(r.phases)-1].Group != group {
		for _, p := range r.phases {
			if p.Group == group {
				return fmt.Errorf("%w: %s (phase %s)", ErrSplitGroup, group, name)
			}
		}
	}

	p := &Phase{Name: name, Group: group}
	r.phases = append(r.phases, p)
	r.byName[name] = p
	return nil
}

// Register appends a pass to a phase.  Pass names are unique within a phase.
func (r *Registry) Register(phase, name string, run PassFunc) error {
	p, ok := r.byName[phase]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPhase, phase)
	}

	for _, pass := range p.Passes {
		if pass.Name == name {
			return fmt.Errorf("%w: %s/%s", ErrDuplicatePass, phase, name)
		}
	}

	p.Passes = append(p.Passes, Pass{Name: name, Run: run})
	return nil
}

// Phase looks up a phase by name.
func (r *Registry) Phase(name string) (*Phase, bool) {
	p, ok := r.byName[name]
	return p, ok
}

// Phases returns the phases in execution order.
func (r *Registry) Phases() []*Phase {
	return r.phases
}
