package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"chunkc/build"
	"chunkc/common"
	"chunkc/mods"
	"chunkc/pipeline"
	"chunkc/report"

	"github.com/ComedicChimera/olive"
	"github.com/joho/godotenv"
)

// logLevelNames are the accepted values of the `--loglevel` argument
var logLevelNames = []string{"silent", "error", "warn", "verbose"}

// Execute runs the main `chunkc` application
func Execute() {
	// a `.env` file in the working directory may provide defaults
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		report.PrintErrorMessage("Config Error", fmt.Errorf("error loading .env: %s", err.Error()))
		return
	}

	// set up the argument parser and all its extended commands and arguments
	cli := olive.NewCLI("chunkc", "chunkc builds and optimizes chunk graphs", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the log level", false, logLevelNames)
	logLvlArg.SetDefaultValue(defaultLogLevel())

	buildCmd := cli.AddSubcommand("build", "build the chunk graph of a project", true)
	buildCmd.AddPrimaryArg("project-path", "the path to the project to build", true)
	buildCmd.AddStringArg("profile", "p", "the name of the profile to build", false)
	buildCmd.AddStringArg("metrics", "m", "write pass metrics in the Prometheus text format to this path", false)
	buildCmd.AddFlag("debug", "d", "trace the optimization passes")

	initCmd := cli.AddSubcommand("init", "initialize a project in the working directory", true)
	initCmd.AddFlag("no-profiles", "np", "indicates whether chunkc should generate default profiles for this project")
	initCmd.AddPrimaryArg("project-name", "the name of the project", true)

	cli.AddSubcommand("version", "print the chunkc version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		report.PrintErrorMessage("CLI Usage Error", err)
		return
	}

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "build":
		if !execBuildCommand(subResult, result.Arguments["loglevel"].(string)) {
			os.Exit(1)
		}
	case "init":
		execInitCommand(subResult)
	case "version":
		report.PrintInfoMessage("chunkc Version", common.Version)
	}
}

// execBuildCommand executes the build subcommand and handles all errors
func execBuildCommand(result *olive.ArgParseResult, loglevel string) bool {
	// extract CLI data
	projectRelPath, _ := result.PrimaryArg()

	projectPath, err := filepath.Abs(projectRelPath)
	if err != nil {
		report.PrintErrorMessage("Path Error", err)
		return false
	}

	selectedProfile := ""
	if profArgVal, ok := result.Arguments["profile"]; ok {
		selectedProfile = profArgVal.(string)
	}

	// initialize the reporter before the project is loaded so that project
	// warnings are collected
	report.InitReporter(report.LogLevelFromName(loglevel))

	if result.HasFlag("debug") && loglevel == "verbose" {
		report.EnableDebug(os.Stderr)
	}

	// attempt to load the project
	proj, prof, err := mods.LoadProject(projectPath, selectedProfile)
	if err != nil {
		report.PrintErrorMessage("Project Load Error", err)
		return false
	}

	b := build.NewBuilder(proj, prof)
	if metricsArgVal, ok := result.Arguments["metrics"]; ok {
		b.Metrics = pipeline.NewMetrics()
		b.MetricsPath = metricsArgVal.(string)
	}

	return b.Run()
}

// execInitCommand executes the `init` subcommand.  It handles all errors
// related to this command
func execInitCommand(result *olive.ArgParseResult) {
	workDir, err := os.Getwd()
	if err != nil {
		report.PrintErrorMessage("Path Error", err)
		return
	}

	projectName, _ := result.PrimaryArg()
	if err := mods.InitProject(projectName, workDir, result.HasFlag("no-profiles")); err != nil {
		report.PrintErrorMessage("Project Init Error", err)
		return
	}

	report.PrintInfoMessage("Project Created", filepath.Join(workDir, common.ProjectFileName))
}

// -----------------------------------------------------------------------------

// defaultLogLevel returns the log level named by the environment or `verbose`
// if the environment names no valid level.
func defaultLogLevel() string {
	if level, ok := os.LookupEnv(common.EnvLogLevel); ok {
		for _, name := range logLevelNames {
			if level == name {
				return level
			}
		}
	}

	return "verbose"
}
