package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"snowpilot/pkg/errors"
	"snowpilot/pkg/models"
)

// Writer mirrors audit entries outside the store, one JSON object per line.
type Writer interface {
	Write(entry *models.AuditEntry) error
	Close() error
}

type fileWriter struct {
	mu     sync.Mutex
	writer *bufio.Writer
	file   *os.File
}

// NewFileWriter opens (or creates) a JSONL mirror file in append mode.
func NewFileWriter(path string) (Writer, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "Audit file path cannot be empty")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeFilePermission, "Failed to create audit log directory")
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFilePermission, "Failed to open audit log file").
			WithContext("path", path)
	}

	return &fileWriter{
		writer: bufio.NewWriter(file),
		file:   file,
	}, nil
}

func (w *fileWriter) Write(entry *models.AuditEntry) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.writer.Write(payload); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	return w.writer.Flush()
}

func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	flushErr := w.writer.Flush()
	if err := w.file.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}

type stdoutWriter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewStdoutWriter streams entries to standard output.
func NewStdoutWriter() Writer {
	return &stdoutWriter{encoder: json.NewEncoder(os.Stdout)}
}

func (w *stdoutWriter) Write(entry *models.AuditEntry) error {
	if entry == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encoder.Encode(entry)
}

func (w *stdoutWriter) Close() error {
	return nil
}
