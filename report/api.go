package report

import (
	"fmt"
	"os"
	"time"
)

// rep is the global reporter instance.  It is usable before InitReporter is
// called: warnings are collected but nothing is displayed.
var rep = &reporter{LogLevel: LogLevelSilent, startTime: time.Now()}

// exit terminates the program.  It is replaced in tests.
var exit = os.Exit

// InitReporter initializes the global reporter with the provided log level.
func InitReporter(loglevel int) {
	rep = &reporter{
		LogLevel:  loglevel,
		startTime: time.Now(),
	}
}

// LogLevelFromName converts the name of a log level as given on the command
// line or in the environment to its enumerated value.  Unknown names are
// treated as verbose.
func LogLevelFromName(name string) int {
	switch name {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warn", "warning":
		return LogLevelWarn
	default:
		return LogLevelVerbose
	}
}

// ShouldProceed indicates whether or not there have been any errors that
// should cause the build to stop at the current phase.
func ShouldProceed() bool {
	rep.m.Lock()
	defer rep.m.Unlock()

	return rep.errorCount == 0
}

// Warnings returns the warnings collected so far.
func Warnings() []*Warning {
	rep.m.Lock()
	defer rep.m.Unlock()

	return append([]*Warning(nil), rep.warnings...)
}

// -----------------------------------------------------------------------------
// NOTE: All report functions will only display if the appropriate log level is
// set.  Most report functions will simply fail silently if below their
// appropriate log level.

// ReportWarning records a warning to be displayed at the end of the build.
func ReportWarning(kind, msg string, args ...interface{}) {
	rep.addWarning(&Warning{Kind: kind, Message: fmt.Sprintf(msg, args...)})
}

// ReportError reports a non-fatal error.  The build stops at the end of the
// current phase.
func ReportError(kind string, err error) {
	rep.addError()

	if rep.LogLevel > LogLevelSilent {
		displayEndPhase(false)
		displayError(kind, err)
	}
}

// ReportFatal reports a fatal error caused by the user's configuration or
// input and exits the program.
func ReportFatal(msg string, args ...interface{}) {
	rep.addError()

	if rep.LogLevel > LogLevelSilent {
		displayEndPhase(false)
		displayFatal(fmt.Sprintf(msg, args...))
	}

	exit(1)
}

// ReportICE reports an internal error: a broken graph invariant or a phase
// which failed to converge.  It exits the program.
func ReportICE(msg string, args ...interface{}) {
	rep.addError()

	if rep.LogLevel > LogLevelSilent {
		displayEndPhase(false)
		displayICE(fmt.Sprintf(msg, args...))
	}

	exit(-1)
}

// -----------------------------------------------------------------------------
// Below are all the "aesthetic" reporting functions that will only run if the
// log level is verbose.

// ReportBuildHeader displays the project and profile being built.
func ReportBuildHeader(project, profile string) {
	if rep.LogLevel == LogLevelVerbose {
		displayBuildHeader(project, profile)
	}
}

// ReportBeginPhase reports the beginning of a build phase.
func ReportBeginPhase(phase string) {
	if rep.LogLevel == LogLevelVerbose {
		displayBeginPhase(phase)
	}
}

// ReportEndPhase reports the end of a build phase.
func ReportEndPhase(success bool) {
	if rep.LogLevel == LogLevelVerbose {
		displayEndPhase(success)
	}
}

// ReportBuildFinished reports the concluding message of a build: every
// collected warning followed by the chunk table and the build summary.
func ReportBuildFinished(outputPath string, chunks []ChunkRow) {
	warnings := Warnings()

	if rep.LogLevel >= LogLevelWarn {
		for _, w := range warnings {
			displayWarning(w)
		}
	}

	if rep.LogLevel == LogLevelVerbose {
		if len(chunks) > 0 {
			displayChunkTable(chunks)
		}

		displayBuildFinished(ShouldProceed(), outputPath, len(warnings), time.Since(rep.startTime))
	}
}
