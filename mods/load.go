package mods

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"chunkc/common"
	"chunkc/optimize"
	"chunkc/pipeline"
	"chunkc/report"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml"
)

// tomlProjectFile represents the project file as it is encoded in TOML
type tomlProjectFile struct {
	Project  *tomlProject   `toml:"project"`
	Profiles []*tomlProfile `toml:"profiles"`
}

// tomlProject represents the project table as it is encoded in TOML
type tomlProject struct {
	Name    string `toml:"name"`
	Graph   string `toml:"graph"`
	Output  string `toml:"output,omitempty"`
	Version string `toml:"chunkc-version,omitempty"`
}

// tomlProfile represents a profile as it is encoded in TOML.  Settings whose
// default is not the zero value are pointers so that omitted settings can be
// told apart.
type tomlProfile struct {
	Name                    string `toml:"name"`
	DefaultProf             bool   `toml:"default"` // in absence of `--profile`, choose this profile
	PreferEntry             *bool  `toml:"prefer-entry"`
	MaxChunks               int    `toml:"max-chunks"`
	MinChunkSize            int    `toml:"min-chunk-size"`
	ChunkOverhead           *int   `toml:"chunk-overhead"`
	EntryChunkMultiplicator int    `toml:"entry-chunk-multiplicator"`
	MaxIterations           int    `toml:"max-iterations"`
	LegacySizeCheck         bool   `toml:"legacy-size-check"`
	Validate                *bool  `toml:"validate"`
}

// LoadProject loads and validates a project as well as selecting the profile to
// build with.  `path` is the path to the project directory.  `selectedProfile`
// can be empty if there is no profile selected.
func LoadProject(path, selectedProfile string) (*Project, *BuildProfile, error) {
	// open file
	f, err := os.Open(filepath.Join(path, common.ProjectFileName))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	// unmarshal the contents
	buff, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	tpf := &tomlProjectFile{}
	if err := toml.Unmarshal(buff, tpf); err != nil {
		return nil, nil, err
	}

	if tpf.Project == nil {
		return nil, nil, fmt.Errorf("project file at %s has no [project] table", path)
	}

	// the project root is the directory enclosing the project file
	proj := &Project{Root: path}
	if err := validateProject(proj, tpf.Project); err != nil {
		return nil, nil, err
	}

	prof, err := selectProfile(proj, tpf.Profiles, selectedProfile)
	if err != nil {
		return nil, nil, err
	}

	return proj, prof, nil
}

// validateProject checks that the project table is valid and moves its
// contents over to the project
func validateProject(proj *Project, tp *tomlProject) error {
	if tp.Name == "" {
		return fmt.Errorf("missing project name for project at %s", proj.Root)
	}

	if !IsValidName(tp.Name) {
		return fmt.Errorf("project name `%s` is not a valid name", tp.Name)
	}

	if tp.Graph == "" {
		return fmt.Errorf("project `%s` must specify a module graph", tp.Name)
	}

	proj.Name = tp.Name
	proj.GraphPath = proj.resolvePath(tp.Graph)
	proj.VersionConstraint = tp.Version

	if tp.Output == "" {
		proj.OutputPath = proj.resolvePath(common.DefaultOutput)
	} else {
		proj.OutputPath = proj.resolvePath(tp.Output)
	}

	return checkVersion(proj)
}

// checkVersion warns if the running chunkc does not satisfy the version
// constraint of the project
func checkVersion(proj *Project) error {
	if proj.VersionConstraint == "" {
		return nil
	}

	c, err := semver.NewConstraint(proj.VersionConstraint)
	if err != nil {
		return fmt.Errorf("project `%s` has an invalid chunkc version constraint: %w", proj.Name, err)
	}

	v := semver.MustParse(common.Version)
	if !c.Check(v) {
		report.ReportWarning(
			"project",
			"chunkc version (v%s) does not satisfy the version constraint of project `%s` (%s)",
			common.Version, proj.Name, proj.VersionConstraint,
		)
	}

	return nil
}

// selectProfile selects the build profile: the profile named by
// `selectedProfile` if it is non-empty, otherwise the default profile
func selectProfile(proj *Project, profiles []*tomlProfile, selectedProfile string) (*BuildProfile, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("project `%s` must provide at least one build profile", proj.Name)
	}

	if selectedProfile != "" {
		for _, prof := range profiles {
			if prof.Name == selectedProfile {
				convProf, err := convertProfile(prof)
				if err != nil {
					return nil, fmt.Errorf("%s in project `%s`", err.Error(), proj.Name)
				}

				return convProf, nil
			}
		}

		return nil, fmt.Errorf("project `%s` has no profile `%s`", proj.Name, selectedProfile)
	}

	var selected *tomlProfile
	for _, prof := range profiles {
		if prof.DefaultProf {
			if selected != nil {
				report.ReportWarning(
					"project",
					"multiple default profiles in project `%s`; building with profile `%s`",
					proj.Name, selected.Name,
				)

				break
			}

			selected = prof
		}
	}

	if selected == nil {
		return nil, fmt.Errorf("project `%s` does not specify a default profile; `--profile` argument is required", proj.Name)
	}

	convProf, err := convertProfile(selected)
	if err != nil {
		return nil, fmt.Errorf("%s in project `%s`", err.Error(), proj.Name)
	}

	return convProf, nil
}

// convertProfile converts a TOML build profile into a `*BuildProfile`
func convertProfile(tprof *tomlProfile) (*BuildProfile, error) {
	if tprof.Name == "" {
		return nil, errors.New("profile must specify a name")
	}

	if tprof.MaxChunks < 0 {
		return nil, fmt.Errorf("profile `%s` must not specify a negative chunk limit", tprof.Name)
	}

	if tprof.MinChunkSize < 0 {
		return nil, fmt.Errorf("profile `%s` must not specify a negative minimum chunk size", tprof.Name)
	}

	if tprof.EntryChunkMultiplicator < 0 {
		return nil, fmt.Errorf("profile `%s` must not specify a negative entry chunk multiplicator", tprof.Name)
	}

	if tprof.MaxIterations < 0 {
		return nil, fmt.Errorf("profile `%s` must not specify a negative iteration ceiling", tprof.Name)
	}

	newProfile := &BuildProfile{
		Name:                    tprof.Name,
		PreferEntry:             true,
		MaxChunks:               tprof.MaxChunks,
		MinChunkSize:            tprof.MinChunkSize,
		ChunkOverhead:           optimize.DefaultChunkOverhead,
		EntryChunkMultiplicator: tprof.EntryChunkMultiplicator,
		MaxIterations:           tprof.MaxIterations,
		LegacySizeCheck:         tprof.LegacySizeCheck,
		Validate:                true,
	}

	if tprof.PreferEntry != nil {
		newProfile.PreferEntry = *tprof.PreferEntry
	}

	if tprof.ChunkOverhead != nil {
		if *tprof.ChunkOverhead < 0 {
			return nil, fmt.Errorf("profile `%s` must not specify a negative chunk overhead", tprof.Name)
		}

		newProfile.ChunkOverhead = *tprof.ChunkOverhead
	}

	if newProfile.EntryChunkMultiplicator == 0 {
		newProfile.EntryChunkMultiplicator = optimize.DefaultEntryChunkMultiplicator
	}

	if newProfile.MaxIterations == 0 {
		newProfile.MaxIterations = pipeline.DefaultMaxIterations
	}

	if tprof.Validate != nil {
		newProfile.Validate = *tprof.Validate
	}

	return newProfile, nil
}
