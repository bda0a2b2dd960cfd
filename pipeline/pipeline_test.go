package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"chunkc/graph"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countdown returns a pass which reports a change n times and then settles.
func countdown(n int, calls *int) PassFunc {
	return func(*graph.Graph) bool {
		*calls++
		if n > 0 {
			n--
			return true
		}

		return false
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewDefaultRegistry()

	var names []string
	for _, p := range r.Phases() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{PhaseBasic, PhaseStructural, PhaseAdvanced, PhaseIDAssignment}, names)

	require.NoError(t, r.Register(PhaseBasic, "b", func(*graph.Graph) bool { return false }))
	require.NoError(t, r.Register(PhaseBasic, "a", func(*graph.Graph) bool { return false }))

	p, ok := r.Phase(PhaseBasic)
	require.True(t, ok)
	assert.Equal(t, "b", p.Passes[0].Name)
	assert.Equal(t, "a", p.Passes[1].Name)
}

func TestRegistryErrors(t *testing.T) {
	r := NewDefaultRegistry()
	noop := func(*graph.Graph) bool { return false }

	assert.ErrorIs(t, r.Register("nope", "x", noop), ErrUnknownPhase)

	require.NoError(t, r.Register(PhaseBasic, "x", noop))
	assert.ErrorIs(t, r.Register(PhaseBasic, "x", noop), ErrDuplicatePass)

	assert.ErrorIs(t, r.AddPhase(PhaseBasic, ""), ErrDuplicatePhase)
	assert.ErrorIs(t, r.AddPhase("late", GroupOptimize), ErrSplitGroup)
	assert.NoError(t, r.AddPhase("emit", "output"))
	assert.NoError(t, r.AddPhase("emit-more", "output"))
}

func TestPhaseRunsToFixedPoint(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPhase("p", ""))

	var aCalls, bCalls int
	require.NoError(t, r.Register("p", "a", countdown(2, &aCalls)))
	require.NoError(t, r.Register("p", "b", countdown(0, &bCalls)))

	o := NewOrchestrator(r, 10, true)
	changed, err := o.RunPhase(graph.New(), "p")
	require.NoError(t, err)
	assert.True(t, changed)

	// Two changing iterations plus the settling one.
	assert.Equal(t, 3, aCalls)
	assert.Equal(t, 3, bCalls)

	changed, err = o.RunPhase(graph.New(), "p")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPhaseCeiling(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPhase("spin", ""))
	require.NoError(t, r.Register("spin", "forever", func(*graph.Graph) bool { return true }))

	err := NewOrchestrator(r, 5, false).Run(graph.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoConvergence))
	assert.Contains(t, err.Error(), "spin")
}

func TestGroupRoundsRerunEarlierPhases(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPhase("first", "g"))
	require.NoError(t, r.AddPhase("second", "g"))
	require.NoError(t, r.AddPhase("last", ""))

	var firstCalls, secondCalls, lastCalls int
	require.NoError(t, r.Register("first", "noop", countdown(0, &firstCalls)))

	// second changes once per round for two rounds: each time it changes, first
	// must run again.
	rounds := 0
	require.NoError(t, r.Register("second", "flip", func(*graph.Graph) bool {
		secondCalls++
		if secondCalls%2 == 1 && rounds < 2 {
			rounds++
			return true
		}

		return false
	}))
	require.NoError(t, r.Register("last", "noop", countdown(0, &lastCalls)))

	o := NewOrchestrator(r, 10, false)
	o.Metrics = NewMetrics()
	require.NoError(t, o.Run(graph.New()))

	assert.Equal(t, 3, firstCalls)
	assert.Equal(t, 1, lastCalls)
	assert.Equal(t, float64(3), testutil.ToFloat64(o.Metrics.groupRounds.WithLabelValues("g")))
	assert.Equal(t, float64(2), testutil.ToFloat64(o.Metrics.passChanges.WithLabelValues("second", "flip")))
	assert.Equal(t, float64(1), testutil.ToFloat64(o.Metrics.phaseIterations.WithLabelValues("last")))
}

func TestValidationFailureNamesPass(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPhase("p", ""))
	require.NoError(t, r.Register("p", "break", func(g *graph.Graph) bool {
		x, y := g.NewChunk("x"), g.NewChunk("y")
		g.Connect(x.ID, y.ID)
		g.Connect(y.ID, x.ID)
		return true
	}))

	err := NewOrchestrator(r, 10, true).Run(graph.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, graph.ErrInvariant))
	assert.Contains(t, err.Error(), "p/break")
}

func TestMetricsTextfile(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.AddPhase("p", ""))
	require.NoError(t, r.Register("p", "a", func(*graph.Graph) bool { return false }))

	o := NewOrchestrator(r, 0, false)
	o.Metrics = NewMetrics()
	require.NoError(t, o.Run(graph.New()))

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, o.Metrics.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `chunkc_pass_runs_total{pass="a",phase="p"} 1`)
}
