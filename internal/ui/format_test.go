package ui

import (
	"errors"
	"os"
	"strings"
	"testing"

	"snowpilot/pkg/models"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = oldStdout

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	return string(buf[:n])
}

func TestColorFunc(t *testing.T) {
	originalSupportsColor := supportsColor
	defer func() {
		supportsColor = originalSupportsColor
	}()

	tests := []struct {
		name          string
		supportsColor bool
		input         string
		expectColored bool
	}{
		{
			name:          "with color support",
			supportsColor: true,
			input:         "test text",
			expectColored: true,
		},
		{
			name:          "without color support",
			supportsColor: false,
			input:         "test text",
			expectColored: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			supportsColor = tt.supportsColor

			funcs := []func(string) string{
				ColorSuccess,
				ColorError,
				ColorWarning,
				ColorInfo,
				ColorProgress,
				ColorBold,
				ColorDim,
			}

			for _, colorFunc := range funcs {
				result := colorFunc(tt.input)

				if tt.expectColored && result == tt.input {
					t.Error("Expected colored output, got plain text")
				}

				if !tt.expectColored && result != tt.input {
					t.Error("Expected plain text, got colored output")
				}
			}
		})
	}
}

func TestShowHeader(t *testing.T) {
	output := captureStdout(t, func() {
		ShowHeader("Candidate Review")
	})

	if !strings.Contains(output, "+") || !strings.Contains(output, "-") {
		t.Error("Header missing border")
	}

	if !strings.Contains(output, "Candidate Review") {
		t.Error("Header missing title")
	}
}

func TestShowError(t *testing.T) {
	tests := []struct {
		name              string
		err               error
		expectSuggestion  bool
		suggestionKeyword string
	}{
		{
			name:              "authentication error",
			err:               errors.New("authentication failed: invalid credentials"),
			expectSuggestion:  true,
			suggestionKeyword: "username and password",
		},
		{
			name:              "connection error",
			err:               errors.New("connection refused"),
			expectSuggestion:  true,
			suggestionKeyword: "network connectivity",
		},
		{
			name:              "syntax error",
			err:               errors.New("syntax error near 'SUSPND'"),
			expectSuggestion:  true,
			suggestionKeyword: "statement template",
		},
		{
			name:              "permission error",
			err:               errors.New("permission denied for warehouse ETL_WH"),
			expectSuggestion:  true,
			suggestionKeyword: "privileges",
		},
		{
			name:              "object not found",
			err:               errors.New("object does not exist: ETL_WH"),
			expectSuggestion:  true,
			suggestionKeyword: "warehouse exists",
		},
		{
			name:             "generic error",
			err:              errors.New("unknown error occurred"),
			expectSuggestion: false,
		},
		{
			name:             "multiline error",
			err:              errors.New("error occurred\ndetailed message\nadditional info"),
			expectSuggestion: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureStdout(t, func() {
				ShowError(tt.err)
			})

			// For multiline errors, only check the first line
			errorLines := strings.Split(tt.err.Error(), "\n")
			if !strings.Contains(output, errorLines[0]) {
				t.Errorf("Error message not found in output. Expected: %s, Got: %s", errorLines[0], output)
			}

			if tt.expectSuggestion && !strings.Contains(output, tt.suggestionKeyword) {
				t.Errorf("Expected suggestion containing '%s' not found", tt.suggestionKeyword)
			}

			if !tt.expectSuggestion && strings.Contains(output, "TIP:") {
				t.Error("Unexpected suggestion in output")
			}
		})
	}
}

func TestShowSuccess(t *testing.T) {
	output := captureStdout(t, func() {
		ShowSuccess("Ingested 5 observations")
	})

	if !strings.Contains(output, "SUCCESS:") {
		t.Error("Success prefix not found")
	}

	if !strings.Contains(output, "Ingested 5 observations") {
		t.Error("Success message not found")
	}
}

func TestShowWarning(t *testing.T) {
	output := captureStdout(t, func() {
		ShowWarning("2 candidates withheld")
	})

	if !strings.Contains(output, "WARNING:") {
		t.Error("Warning prefix not found")
	}

	if !strings.Contains(output, "2 candidates withheld") {
		t.Error("Warning message not found")
	}
}

func TestShowInfo(t *testing.T) {
	output := captureStdout(t, func() {
		ShowInfo("Nothing pending.")
	})

	if !strings.Contains(output, "INFO:") {
		t.Error("Info prefix not found")
	}

	if !strings.Contains(output, "Nothing pending.") {
		t.Error("Info message not found")
	}
}

func TestStatusGlyph(t *testing.T) {
	originalSupportsColor := supportsColor
	defer func() {
		supportsColor = originalSupportsColor
	}()
	supportsColor = true

	tests := []struct {
		name    string
		status  string
		colored bool
	}{
		{name: "success is colored", status: models.ActionSuccess, colored: true},
		{name: "failed is colored", status: models.ActionFailed, colored: true},
		{name: "pending is colored", status: string(models.PipelinePending), colored: true},
		{name: "active is colored", status: string(models.PipelineActive), colored: true},
		{name: "unknown passes through", status: "SOMETHING_ELSE", colored: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StatusGlyph(tt.status)

			if !strings.Contains(result, tt.status) {
				t.Errorf("StatusGlyph(%q) lost the status text: %q", tt.status, result)
			}

			if tt.colored && result == tt.status {
				t.Errorf("StatusGlyph(%q) expected colored output", tt.status)
			}

			if !tt.colored && result != tt.status {
				t.Errorf("StatusGlyph(%q) = %q, want passthrough", tt.status, result)
			}
		})
	}
}

func TestDispositionGlyph(t *testing.T) {
	originalSupportsColor := supportsColor
	defer func() {
		supportsColor = originalSupportsColor
	}()
	supportsColor = true

	if got := DispositionGlyph(models.DispositionAutoEligible); got == string(models.DispositionAutoEligible) {
		t.Error("Expected colored output for AUTO_ELIGIBLE")
	}

	if got := DispositionGlyph(models.DispositionReviewRequired); got == string(models.DispositionReviewRequired) {
		t.Error("Expected colored output for REVIEW_REQUIRED")
	}

	if got := DispositionGlyph(models.Disposition("OTHER")); got != "OTHER" {
		t.Errorf("DispositionGlyph(OTHER) = %q, want passthrough", got)
	}
}

func TestTable(t *testing.T) {
	output := captureStdout(t, func() {
		table := NewTable()
		table.AddHeader("ENTITY", "CATEGORY", "DISPOSITION")
		table.AddRow("ETL_WH", "UNDERUTILIZED", "AUTO_ELIGIBLE")
		table.AddRow("BI_WH", "QUEUED", "REVIEW_REQUIRED")
		table.Render()
	})

	if !strings.Contains(output, "ENTITY") || !strings.Contains(output, "CATEGORY") {
		t.Error("Table headers not found")
	}

	if !strings.Contains(output, "ETL_WH") || !strings.Contains(output, "UNDERUTILIZED") {
		t.Error("Table row 1 not found")
	}

	if !strings.Contains(output, "BI_WH") || !strings.Contains(output, "REVIEW_REQUIRED") {
		t.Error("Table row 2 not found")
	}
}

func TestGetSuggestion(t *testing.T) {
	tests := []struct {
		name       string
		error      string
		suggestion string
	}{
		{
			name:       "authentication error",
			error:      "Authentication failed: invalid password",
			suggestion: "Check your username and password in the configuration",
		},
		{
			name:       "connection error",
			error:      "Connection refused to account.snowflakecomputing.com",
			suggestion: "Verify the warehouse account URL and network connectivity",
		},
		{
			name:       "syntax error",
			error:      "Syntax error near 'SUSPND'",
			suggestion: "Review the statement template in the matching rule",
		},
		{
			name:       "permission error",
			error:      "Permission denied: insufficient privileges",
			suggestion: "Ensure your role has the necessary privileges",
		},
		{
			name:       "object not found",
			error:      "Object does not exist: ETL_WH",
			suggestion: "Verify the warehouse exists or check your database/schema context",
		},
		{
			name:       "unknown error",
			error:      "Some random error",
			suggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getSuggestion(tt.error)
			if result != tt.suggestion {
				t.Errorf("getSuggestion() = %v, want %v", result, tt.suggestion)
			}
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		defaultValue bool
		expected     bool
	}{
		{
			name:         "empty input with default true",
			input:        "\n",
			defaultValue: true,
			expected:     true,
		},
		{
			name:         "empty input with default false",
			input:        "\n",
			defaultValue: false,
			expected:     false,
		},
		{
			name:         "yes input",
			input:        "yes\n",
			defaultValue: false,
			expected:     true,
		},
		{
			name:         "y input",
			input:        "y\n",
			defaultValue: false,
			expected:     true,
		},
		{
			name:         "no input",
			input:        "n\n",
			defaultValue: true,
			expected:     false,
		},
		{
			name:         "invalid input",
			input:        "maybe\n",
			defaultValue: true,
			expected:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldStdin := os.Stdin
			r, w, _ := os.Pipe()
			os.Stdin = r

			go func() {
				_, _ = w.Write([]byte(tt.input))
				w.Close()
			}()

			result, err := Confirm("Continue?", tt.defaultValue)

			os.Stdin = oldStdin

			if err != nil && err.Error() != "unexpected newline" {
				t.Errorf("Unexpected error: %v", err)
			}

			if result != tt.expected {
				t.Errorf("Confirm() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func BenchmarkColorFunc(b *testing.B) {
	text := "Sample text for coloring"

	b.Run("with color", func(b *testing.B) {
		supportsColor = true
		for i := 0; i < b.N; i++ {
			_ = ColorSuccess(text)
		}
	})

	b.Run("without color", func(b *testing.B) {
		supportsColor = false
		for i := 0; i < b.N; i++ {
			_ = ColorSuccess(text)
		}
	})
}
