package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"chunkc/common"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
)

// ChunkRow is one row of the chunk table displayed at the end of a build.
type ChunkRow struct {
	ID      int
	Name    string
	Hash    string
	Modules int
	Size    int
	Flags   []string
}

// -----------------------------------------------------------------------------

const icePostlude = `
This is likely a bug in chunkc.
Please open an issue with the graph description that triggered it.`

// displayICE displays an internal error message.
func displayICE(msg string) {
	fmt.Print("\n\n")
	ErrorStyleBG.Print("Internal Error")
	ErrorColorFG.Println(" " + msg)
	InfoColorFG.Println(icePostlude)
}

// displayFatal displays a fatal error message.
func displayFatal(msg string) {
	fmt.Print("\n\n")
	ErrorStyleBG.Print("Fatal Error")
	ErrorColorFG.Println(" " + msg)
}

// displayError displays a standard Go error with a kind label.
func displayError(kind string, err error) {
	PrintErrorMessage(kind+" Error", err)
}

// PrintErrorMessage prints an error message to the console regardless of the
// log level.  It is used before the reporter is initialized.
func PrintErrorMessage(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

// PrintInfoMessage prints an informational message to the user
func PrintInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

// displayWarning displays a collected warning.
func displayWarning(w *Warning) {
	WarnStyleBG.Print(w.Kind + " Warning")
	WarnColorFG.Println(" " + w.Message)
}

// -----------------------------------------------------------------------------

// displayBuildHeader displays the tool version and the build configuration.
func displayBuildHeader(project, profile string) {
	fmt.Print("chunkc ")
	InfoColorFG.Print("v" + common.Version)
	fmt.Print(" -- project: ")
	InfoColorFG.Print(project)
	fmt.Print(", profile: ")
	InfoColorFG.Println(profile)
}

// phaseSpinner stores the current phase spinner.
var phaseSpinner *pterm.SpinnerPrinter
var currentPhase string
var phaseStartTime time.Time

const maxPhaseLength = len("Finalizing")

func padPhase(phase string) string {
	pad := maxPhaseLength - len(phase) + 2
	if pad < 1 {
		pad = 1
	}

	return phase + strings.Repeat(" ", pad)
}

// displayBeginPhase displays the beginning of a build phase.
func displayBeginPhase(phase string) {
	currentPhase = phase

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(InfoColorFG))
	spinner.SuccessPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: SuccessStyleBG,
			Text:  "Done",
		},
	}

	spinner.FailPrinter = &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: ErrorStyleBG,
			Text:  "Fail",
		},
	}

	phaseSpinner, _ = spinner.Start(padPhase(phase + "..."))
	phaseStartTime = time.Now()
}

// displayEndPhase displays the end of a build phase.
func displayEndPhase(success bool) {
	if phaseSpinner == nil {
		return
	}

	if success {
		phaseSpinner.Success(
			padPhase(currentPhase),
			fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds()),
		)
	} else {
		phaseSpinner.Fail(padPhase(currentPhase))
	}

	phaseSpinner = nil
}

// displayChunkTable displays the finalized chunks.
func displayChunkTable(chunks []ChunkRow) {
	data := pterm.TableData{{"ID", "Name", "Hash", "Modules", "Size", "Flags"}}
	for _, c := range chunks {
		data = append(data, []string{
			strconv.Itoa(c.ID),
			c.Name,
			c.Hash,
			strconv.Itoa(c.Modules),
			strconv.Itoa(c.Size),
			strings.Join(c.Flags, ","),
		})
	}

	fmt.Println()
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// displayBuildFinished displays the concluding build message.
func displayBuildFinished(success bool, outputPath string, warningCount int, elapsed time.Duration) {
	fmt.Print("\n")

	if success {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")

	switch warningCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" warnings")
	case 1:
		WarnColorFG.Print(1)
		fmt.Print(" warning")
	default:
		WarnColorFG.Print(warningCount)
		fmt.Print(" warnings")
	}

	fmt.Printf(", %.3fs)\n", elapsed.Seconds())

	if success && outputPath != "" {
		fmt.Print("chunk graph written to ")
		InfoColorFG.Println(outputPath)
	}
}
