package mods

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"chunkc/common"
	"chunkc/optimize"
	"chunkc/pipeline"

	"github.com/pelletier/go-toml"
)

// InitProject creates a new project with the given name at the given path
func InitProject(name, path string, noProfiles bool) error {
	// convert the project directory to the path to project file
	projFilePath := filepath.Join(path, common.ProjectFileName)

	// check to see if a project already exists
	_, err := os.Stat(projFilePath)
	if err == nil {
		return errors.New("project file already exists")
	}

	if !os.IsNotExist(err) {
		return fmt.Errorf("project file error: %s", err.Error())
	}

	// validate project name
	if !IsValidName(name) {
		return fmt.Errorf("project name `%s` is not a valid name", name)
	}

	// create project
	tpf := &tomlProjectFile{
		Project: &tomlProject{
			Name:    name,
			Graph:   "graph.yaml",
			Output:  filepath.Join("dist", common.DefaultOutput),
			Version: ">=" + common.Version,
		},
	}

	if !noProfiles {
		tpf.Profiles = []*tomlProfile{newInitProfile(true), newInitProfile(false)}
	}

	// encode and save project to file
	f, err := os.Create(projFilePath)
	if err != nil {
		return fmt.Errorf("error creating project file: %s", err.Error())
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(tpf); err != nil {
		return fmt.Errorf("error encoding TOML %s", err.Error())
	}

	return nil
}

// newInitProfile creates a new initial profile for a project
func newInitProfile(production bool) *tomlProfile {
	preferEntry, validate := true, !production
	overhead := optimize.DefaultChunkOverhead

	prof := &tomlProfile{
		DefaultProf:             production, // production profile is the default
		PreferEntry:             &preferEntry,
		ChunkOverhead:           &overhead,
		EntryChunkMultiplicator: optimize.DefaultEntryChunkMultiplicator,
		MaxIterations:           pipeline.DefaultMaxIterations,
		Validate:                &validate,
	}

	if production {
		prof.Name = "production"
	} else {
		prof.Name = "development"
	}

	return prof
}
