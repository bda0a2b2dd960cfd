package mods

import (
	"os"
	"path/filepath"
	"testing"

	"chunkc/common"
	"chunkc/optimize"
	"chunkc/pipeline"
	"chunkc/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProject = `
[project]
name = "app"
graph = "graph.yaml"
output = "dist/chunks.json"
chunkc-version = ">=0.1.0"

[[profiles]]
name = "production"
default = true
max-chunks = 8
min-chunk-size = 2000
legacy-size-check = true

[[profiles]]
name = "development"
prefer-entry = false
chunk-overhead = 0
entry-chunk-multiplicator = 1
max-iterations = 20
validate = false
`

func writeProject(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, common.ProjectFileName), []byte(content), 0o644))
	return dir
}

func TestLoadDefaultProfile(t *testing.T) {
	report.InitReporter(report.LogLevelSilent)
	dir := writeProject(t, sampleProject)

	proj, prof, err := LoadProject(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "app", proj.Name)
	assert.Equal(t, filepath.Join(dir, "graph.yaml"), proj.GraphPath)
	assert.Equal(t, filepath.Join(dir, "dist", "chunks.json"), proj.OutputPath)

	assert.Equal(t, &BuildProfile{
		Name:                    "production",
		PreferEntry:             true,
		MaxChunks:               8,
		MinChunkSize:            2000,
		ChunkOverhead:           optimize.DefaultChunkOverhead,
		EntryChunkMultiplicator: optimize.DefaultEntryChunkMultiplicator,
		MaxIterations:           pipeline.DefaultMaxIterations,
		LegacySizeCheck:         true,
		Validate:                true,
	}, prof)

	assert.Empty(t, report.Warnings())
}

func TestLoadSelectedProfile(t *testing.T) {
	dir := writeProject(t, sampleProject)

	_, prof, err := LoadProject(dir, "development")
	require.NoError(t, err)

	assert.False(t, prof.PreferEntry)
	assert.Equal(t, 0, prof.ChunkOverhead)
	assert.Equal(t, 1, prof.EntryChunkMultiplicator)
	assert.Equal(t, 20, prof.MaxIterations)
	assert.False(t, prof.Validate)

	opts := prof.Options()
	assert.False(t, opts.PreferEntry)
	assert.Equal(t, optimize.SizeOptions{ChunkOverhead: 0, EntryChunkMultiplicator: 1}, opts.Size)

	_, _, err = LoadProject(dir, "staging")
	assert.EqualError(t, err, "project `app` has no profile `staging`")
}

func TestLoadProjectErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     string
	}{
		{"no project table", "[[profiles]]\nname = \"p\"\n", "has no [project] table"},
		{"no name", "[project]\ngraph = \"g.yaml\"\n", "missing project name"},
		{"bad name", "[project]\nname = \"9lives\"\ngraph = \"g.yaml\"\n", "not a valid name"},
		{"no graph", "[project]\nname = \"app\"\n", "must specify a module graph"},
		{"no profiles", "[project]\nname = \"app\"\ngraph = \"g.yaml\"\n", "at least one build profile"},
		{"no default", "[project]\nname = \"app\"\ngraph = \"g.yaml\"\n[[profiles]]\nname = \"p\"\n", "does not specify a default profile"},
		{"negative", "[project]\nname = \"app\"\ngraph = \"g.yaml\"\n[[profiles]]\nname = \"p\"\ndefault = true\nmax-chunks = -1\n", "negative chunk limit"},
		{"bad constraint", "[project]\nname = \"app\"\ngraph = \"g.yaml\"\nchunkc-version = \"not a version\"\n", "invalid chunkc version constraint"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			dir := writeProject(t, test.content)

			_, _, err := LoadProject(dir, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), test.err)
		})
	}

	_, _, err := LoadProject(t.TempDir(), "")
	assert.True(t, os.IsNotExist(err))
}

func TestVersionMismatchWarns(t *testing.T) {
	report.InitReporter(report.LogLevelSilent)

	content := "[project]\nname = \"app\"\ngraph = \"g.yaml\"\nchunkc-version = \">=99.0.0\"\n" +
		"[[profiles]]\nname = \"p\"\ndefault = true\n"
	dir := writeProject(t, content)

	_, _, err := LoadProject(dir, "")
	require.NoError(t, err)

	warnings := report.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "project", warnings[0].Kind)
	assert.Contains(t, warnings[0].Message, ">=99.0.0")
}

func TestInitProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitProject("my-app", dir, false))

	proj, prof, err := LoadProject(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "my-app", proj.Name)
	assert.Equal(t, "production", prof.Name)
	assert.False(t, prof.Validate)

	_, prof, err = LoadProject(dir, "development")
	require.NoError(t, err)
	assert.True(t, prof.Validate)
	assert.True(t, prof.PreferEntry)

	assert.EqualError(t, InitProject("my-app", dir, false), "project file already exists")
	assert.Error(t, InitProject("bad name", t.TempDir(), false))
}

func TestIsValidName(t *testing.T) {
	assert.True(t, IsValidName("app"))
	assert.True(t, IsValidName("_my-app2"))
	assert.False(t, IsValidName(""))
	assert.False(t, IsValidName("2app"))
	assert.False(t, IsValidName("my app"))
}
