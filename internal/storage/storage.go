package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/maltedev/refurb-crawler/internal/models"
)

// ResultWriter saves crawl results as one JSON document keyed by region tag.
type ResultWriter struct {
	mu       sync.Mutex
	filename string
	logger   *slog.Logger
}

func NewResultWriter(filename string, logger *slog.Logger) *ResultWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultWriter{
		filename: filename,
		logger:   logger.With("component", "result_writer"),
	}
}

// Write replaces the output file with results and returns its absolute path.
func (w *ResultWriter) Write(results models.CrawlResults) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := Encode(results)
	if err != nil {
		return "", err
	}

	path, err := filepath.Abs(w.filename)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Write to temp file first for atomicity
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		_ = os.Remove(tmpFile)
		return "", fmt.Errorf("failed to move results into place: %w", err)
	}

	w.logger.Info("saved results", "path", path, "regions", len(results), "records", results.Total())
	return path, nil
}

// Encode renders results with two-space indentation and a trailing newline.
func Encode(results models.CrawlResults) ([]byte, error) {
	compact, err := results.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent results: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
