package report

import (
	"sync"
	"time"
)

// reporter is responsible for reporting errors, warnings, and other kinds of
// messages to the user during a build.  The reporter respects the set log
// level and is synchronized: its methods can be safely called from multiple
// goroutines.
type reporter struct {
	// LogLevel is the selected log level of the reporter.  This must be one of
	// the enumerated log levels below.
	LogLevel int

	// m is the mutex used to synchronize the printing of messages.
	m sync.Mutex

	// warnings is the list of warnings to display at the end of the build.
	warnings []*Warning

	// errorCount is the number of errors reported so far.
	errorCount int

	// startTime is the time the reporter was initialized: used to display the
	// total build time.
	startTime time.Time
}

// Enumeration of the different possible log levels.
const (
	LogLevelSilent  = iota // Displays no output.
	LogLevelError          // Displays only errors to the user.
	LogLevelWarn           // Displays only warnings and errors to the user.
	LogLevelVerbose        // Displays all build messages to the user (default).
)

// Warning is a non-fatal diagnostic collected during the build.
type Warning struct {
	// Kind is a short, capitalized label for the warning: eg. `Condition`.
	Kind string

	Message string
}

func (r *reporter) addWarning(w *Warning) {
	r.m.Lock()
	defer r.m.Unlock()

	r.warnings = append(r.warnings, w)
}

func (r *reporter) addError() {
	r.m.Lock()
	defer r.m.Unlock()

	r.errorCount++
}
