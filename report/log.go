package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// debugLogger is the structured logger used to trace the optimizer.  It
// discards everything until EnableDebug is called.
var debugLogger = log.NewWithOptions(io.Discard, log.Options{Level: log.InfoLevel})

// EnableDebug routes debug output to w.
func EnableDebug(w io.Writer) {
	debugLogger = log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           log.DebugLevel,
		Prefix:          "chunkc",
	})
}

// Debug writes a structured debug message.
func Debug(msg string, keyvals ...interface{}) {
	debugLogger.Debug(msg, keyvals...)
}

// Warn writes a structured warning to the debug log and records it as a build
// warning of the given kind.
func Warn(kind, msg string, keyvals ...interface{}) {
	debugLogger.Warn(msg, keyvals...)
	rep.addWarning(&Warning{Kind: kind, Message: formatKeyvals(msg, keyvals)})
}

// formatKeyvals renders a message and its key-value pairs on one line.
func formatKeyvals(msg string, keyvals []interface{}) string {
	var sb strings.Builder
	sb.WriteString(msg)

	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keyvals[i], keyvals[i+1])
	}

	return sb.String()
}
