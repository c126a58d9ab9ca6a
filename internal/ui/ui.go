package ui

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"snowpilot/pkg/models"
)

// UI represents the main UI interface
type UI struct {
	Verbose bool
	Quiet   bool
	spinner *Spinner
}

// NewUI creates a new UI instance
func NewUI(verbose, quiet bool) *UI {
	return &UI{
		Verbose: verbose,
		Quiet:   quiet,
	}
}

// Printf prints formatted output if not in quiet mode
func (u *UI) Printf(format string, args ...interface{}) {
	if !u.Quiet {
		fmt.Printf(format, args...)
	}
}

// Println prints a line if not in quiet mode
func (u *UI) Println(args ...interface{}) {
	if !u.Quiet {
		fmt.Println(args...)
	}
}

// VerbosePrintf prints formatted output only in verbose mode
func (u *UI) VerbosePrintf(format string, args ...interface{}) {
	if u.Verbose && !u.Quiet {
		fmt.Printf(format, args...)
	}
}

// StartProgress starts a progress indicator with a message
func (u *UI) StartProgress(message string) {
	if !u.Quiet {
		u.spinner = NewSpinner(message)
		u.spinner.Start()
	}
}

// StopProgress stops the progress indicator
func (u *UI) StopProgress() {
	if u.spinner != nil && !u.Quiet {
		u.spinner.Stop(true, "Done")
		u.spinner = nil
	}
}

// Warning prints a warning message
func (u *UI) Warning(message string) {
	if !u.Quiet {
		fmt.Printf("%s %s\n", ColorWarning("⚠"), message)
	}
}

// Error prints an error message
func (u *UI) Error(message string) {
	if !u.Quiet {
		fmt.Printf("%s %s\n", ColorError("✗"), message)
	}
}

// Info prints an information message
func (u *UI) Info(message string) {
	if !u.Quiet {
		ShowInfo(message)
	}
}

// Success prints a success message
func (u *UI) Success(message string) {
	if !u.Quiet {
		ShowSuccess(message)
	}
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Printf("\n%s %s\n", ColorBold("▶"), ColorBold(title))
	fmt.Println(strings.Repeat("─", 50))
}

// PrintKeyValue prints a key-value pair in a formatted way
func PrintKeyValue(key, value string) {
	fmt.Printf("  %-20s %s\n", ColorDim(key+":"), value)
}

// Select displays a selection prompt
func Select(message string, options []string) (string, error) {
	var result string
	prompt := &survey.Select{
		Message:  message,
		Options:  options,
		PageSize: 10,
	}

	err := survey.AskOne(prompt, &result)
	return result, err
}

// ShowCandidate displays the full detail of one candidate action.
func ShowCandidate(c *models.Candidate) {
	fmt.Printf("\n%s %s\n", ColorBold("▶"), ColorBold(c.EntityKey))
	PrintKeyValue("Category", c.Category)
	PrintKeyValue("Rule", c.RuleName)
	PrintKeyValue("Disposition", DispositionGlyph(c.Disposition))
	PrintKeyValue("Rationale", c.Rationale)
	if c.Statement != "" {
		PrintKeyValue("Statement", c.Statement)
	} else {
		PrintKeyValue("Statement", ColorDim("(none)"))
	}
}

// ShowActionResult displays the outcome of one executed action.
func ShowActionResult(res models.ActionResult) {
	if res.Status == models.ActionSuccess {
		fmt.Printf("  %s %s (%s)\n",
			ColorSuccess("✓"),
			res.EntityKey,
			ColorDim(res.Duration.String()),
		)
		return
	}
	fmt.Printf("  %s %s\n", ColorError("✗"), res.EntityKey)
	if res.Error != "" {
		fmt.Printf("    %s\n", ColorError(res.Error))
	}
}

// ShowRunSummary displays the final tally of an apply or sweep run.
func ShowRunSummary(report *models.ApplyReport) {
	elapsed := report.FinishedAt.Sub(report.StartedAt)
	fmt.Printf("\n%s Run %s finished in %s\n",
		ColorBold("▶"), report.RunID, formatDuration(elapsed))
	fmt.Printf("  %s %d succeeded\n", ColorSuccess("✓"), report.Succeeded)
	if report.Failed > 0 {
		fmt.Printf("  %s %d failed\n", ColorError("✗"), report.Failed)
	}
	if report.Attempted == 0 {
		fmt.Printf("  %s\n", ColorDim("nothing to do"))
	}
}
