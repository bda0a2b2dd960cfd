package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chunkc/common"
	"chunkc/finalize"
	"chunkc/loader"
	"chunkc/mods"
	"chunkc/pipeline"
	"chunkc/report"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appGraph = `
entries:
  - name: main
    module: ./index.js
  - name: admin
    module: ./admin.js
modules:
  - id: ./index.js
    size: 100
    dependencies: [./shared.js]
    blocks:
      - name: page
        dependencies: [./page.js]
      - dependencies: [./shared.js]
  - id: ./admin.js
    size: 80
    dependencies: [./shared.js]
    blocks:
      - name: page
        dependencies: [./page.js]
  - id: ./shared.js
    size: 50
  - id: ./page.js
    size: 30
    dependencies: [./shared.js, ./polyfill.js]
  - id: ./polyfill.js
    size: 10
    condition: initial
`

const appProject = `
[project]
name = "app"
graph = "graph.yaml"
output = "dist/chunks.json"

[[profiles]]
name = "production"
default = true
`

func setupProject(t *testing.T) (*mods.Project, *mods.BuildProfile) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.yaml"), []byte(appGraph), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, common.ProjectFileName), []byte(appProject), 0o644))

	proj, prof, err := mods.LoadProject(dir, "")
	require.NoError(t, err)

	return proj, prof
}

func TestBuild(t *testing.T) {
	report.InitReporter(report.LogLevelSilent)
	proj, prof := setupProject(t)

	g, err := loader.LoadFile(proj.GraphPath)
	require.NoError(t, err)

	b := NewBuilder(proj, prof)
	b.Metrics = pipeline.NewMetrics()

	out, err := b.Build(g)
	require.NoError(t, err)
	assert.True(t, g.Frozen())

	// main and admin plus the page chunk shared by both entries.  The block
	// loading ./shared.js is dropped: the module is already in main.
	require.Len(t, out.Chunks, 3)

	var page *finalize.Chunk
	for _, c := range out.Chunks {
		if c.Name == "page" {
			page = c
		}
	}

	require.NotNil(t, page)
	require.Len(t, page.Modules, 1)
	assert.Equal(t, "./page.js", page.Modules[0].Identifier)
	assert.Len(t, page.Parents, 2)

	// The polyfill is only allowed in initial chunks.
	for _, m := range out.Modules {
		if m.Identifier == "./polyfill.js" {
			for _, id := range m.Chunks {
				assert.True(t, out.Chunks[id].IsInitial)
			}
		}
	}

	assert.Len(t, out.Entries, 2)

	// One series per registered pass.
	series, err := testutil.GatherAndCount(b.Metrics.Registry, "chunkc_pass_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 6, series)
}

func TestRun(t *testing.T) {
	report.InitReporter(report.LogLevelSilent)
	proj, prof := setupProject(t)

	b := NewBuilder(proj, prof)
	b.Metrics = pipeline.NewMetrics()
	b.MetricsPath = filepath.Join(t.TempDir(), "chunkc.prom")

	require.True(t, b.Run())

	data, err := os.ReadFile(proj.OutputPath)
	require.NoError(t, err)

	var out finalize.Output
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out.Chunks, 3)
	assert.Equal(t, "main", out.Entries[0].Name)

	metrics, err := os.ReadFile(b.MetricsPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(metrics), "chunkc_phase_iterations_total"))
}

func TestRunReportsOutputErrors(t *testing.T) {
	report.InitReporter(report.LogLevelSilent)
	proj, prof := setupProject(t)

	// The output directory cannot be created below a regular file.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	proj.OutputPath = filepath.Join(blocker, "chunks.json")

	assert.False(t, NewBuilder(proj, prof).Run())
	assert.False(t, report.ShouldProceed())
}
