package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/olekukonko/tablewriter"

	"snowpilot/pkg/models"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 50
	padding := (width - len(title) - 2) / 2

	fmt.Println("\n+" + strings.Repeat("-", width-2) + "+")
	fmt.Printf("|%s%s%s|\n",
		strings.Repeat(" ", padding),
		ColorBold(title),
		strings.Repeat(" ", width-2-padding-len(title)),
	)
	fmt.Println("+" + strings.Repeat("-", width-2) + "+")
}

// ShowError displays a formatted error message
func ShowError(err error) {
	fmt.Printf("\n%s\n", ColorError("ERROR:"))

	message := err.Error()
	for i, line := range strings.Split(message, "\n") {
		if i == 0 {
			fmt.Printf("  %s\n", line)
		} else {
			fmt.Printf("  %s\n", ColorDim(line))
		}
	}

	if suggestion := getSuggestion(message); suggestion != "" {
		fmt.Printf("\n  %s %s\n", ColorInfo("TIP:"), ColorInfo(suggestion))
	}
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Printf("%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Printf("%s %s\n", ColorWarning("WARNING:"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Printf("%s %s\n", ColorInfo("INFO:"), message)
}

// StatusGlyph renders an action or pipeline status with its color.
func StatusGlyph(status string) string {
	switch status {
	case models.ActionSuccess, string(models.PipelineActive):
		return ColorSuccess(status)
	case models.ActionFailed, string(models.PipelineFailed):
		return ColorError(status)
	case string(models.PipelinePending):
		return ColorWarning(status)
	default:
		return status
	}
}

// DispositionGlyph renders a candidate disposition with its color.
func DispositionGlyph(d models.Disposition) string {
	switch d {
	case models.DispositionAutoEligible:
		return ColorSuccess(string(d))
	case models.DispositionReviewRequired:
		return ColorWarning(string(d))
	default:
		return string(d)
	}
}

// Table creates a formatted table
type Table struct {
	writer *tablewriter.Table
}

// NewTable creates a new table writing to stdout
func NewTable() *Table {
	w := tablewriter.NewWriter(os.Stdout)
	w.SetBorder(false)
	w.SetAutoWrapText(false)
	w.SetAlignment(tablewriter.ALIGN_LEFT)
	w.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return &Table{writer: w}
}

// AddHeader sets the header row
func (t *Table) AddHeader(columns ...string) {
	t.writer.SetHeader(columns)
}

// AddRow adds a data row to the table
func (t *Table) AddRow(values ...string) {
	t.writer.Append(values)
}

// Render displays the table
func (t *Table) Render() {
	t.writer.Render()
}

// getSuggestion returns helpful suggestions based on error messages
func getSuggestion(error string) string {
	lower := strings.ToLower(error)

	switch {
	case strings.Contains(lower, "authentication failed"):
		return "Check your username and password in the configuration"
	case strings.Contains(lower, "connection refused"):
		return "Verify the warehouse account URL and network connectivity"
	case strings.Contains(lower, "syntax error"):
		return "Review the statement template in the matching rule"
	case strings.Contains(lower, "permission denied"):
		return "Ensure your role has the necessary privileges"
	case strings.Contains(lower, "object does not exist"):
		return "Verify the warehouse exists or check your database/schema context"
	default:
		return ""
	}
}

// Confirm shows a confirmation prompt
func Confirm(message string, defaultValue bool) (bool, error) {
	suffix := " [Y/n]"
	if !defaultValue {
		suffix = " [y/N]"
	}

	fmt.Printf("%s%s ", message, suffix)

	var response string
	_, err := fmt.Scanln(&response)
	if err != nil && err.Error() != "unexpected newline" {
		return false, err
	}

	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultValue, nil
	}

	return response == "y" || response == "yes", nil
}
