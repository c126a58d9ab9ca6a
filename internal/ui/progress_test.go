package ui

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewSpinner(t *testing.T) {
	message := "Encrypting passwords..."
	spinner := NewSpinner(message)

	if spinner.message != message {
		t.Errorf("Expected message to be '%s', got '%s'", message, spinner.message)
	}

	if len(spinner.frames) == 0 {
		t.Error("Spinner frames not initialized")
	}

	if spinner.current != 0 {
		t.Errorf("Expected current frame to be 0, got %d", spinner.current)
	}

	if spinner.stopped {
		t.Error("Spinner should not be stopped initially")
	}
}

func TestSpinner_StartStop(t *testing.T) {
	spinner := NewSpinner("Testing spinner")

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	spinner.Start()

	// Let it spin for a bit
	time.Sleep(250 * time.Millisecond)

	spinner.Stop(true, "Operation completed")

	w.Close()
	os.Stdout = oldStdout

	buf := make([]byte, 2048)
	n, _ := r.Read(buf)
	output := string(buf[:n])

	if !strings.Contains(output, "Testing spinner") {
		t.Error("Spinner message not displayed")
	}

	if !strings.Contains(output, "Operation completed") {
		t.Error("Completion message not displayed")
	}

	if !strings.Contains(output, "✓") {
		t.Error("Success checkmark not displayed")
	}
}

func TestSpinner_StopWithError(t *testing.T) {
	spinner := NewSpinner("Processing")

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	spinner.Start()
	time.Sleep(100 * time.Millisecond)

	spinner.Stop(false, "Operation failed")

	w.Close()
	os.Stdout = oldStdout

	buf := make([]byte, 1024)
	n, _ := r.Read(buf)
	output := string(buf[:n])

	if !strings.Contains(output, "Operation failed") {
		t.Error("Error message not displayed")
	}

	if !strings.Contains(output, "✗") {
		t.Error("Error symbol not displayed")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{
			name:     "milliseconds",
			duration: 500 * time.Millisecond,
			expected: "500ms",
		},
		{
			name:     "seconds",
			duration: 45 * time.Second,
			expected: "45.0s",
		},
		{
			name:     "minutes",
			duration: 3*time.Minute + 30*time.Second,
			expected: "3m30s",
		},
		{
			name:     "hours",
			duration: 2*time.Hour + 15*time.Minute,
			expected: "2h15m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.duration)
			if result != tt.expected {
				t.Errorf("formatDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}
