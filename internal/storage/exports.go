package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dotcommander/imaginator/internal/domain/story"
	"github.com/dotcommander/imaginator/internal/export"
)

const exportExt = ".md"

// ExportWriter keeps rendered exports on disk, one directory per story.
// Every path it accepts is relative to its base directory.
type ExportWriter struct {
	baseDir string
}

func NewExportWriter(baseDir string) *ExportWriter {
	return &ExportWriter{baseDir: filepath.Clean(baseDir)}
}

// sanitizePath validates and cleans the path to prevent directory traversal
func (w *ExportWriter) sanitizePath(path string) (string, error) {
	cleaned := filepath.Clean(path)

	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid path: contains parent directory reference")
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid path: absolute paths not allowed")
	}

	fullPath := filepath.Join(w.baseDir, cleaned)
	if !strings.HasPrefix(fullPath, w.baseDir+string(filepath.Separator)) && fullPath != w.baseDir {
		return "", fmt.Errorf("invalid path: outside base directory")
	}
	return fullPath, nil
}

// ExportPath names the file a rendering is written to, relative to the base directory:
// <story id>/<generated at>_<title>_<format>.md
func ExportPath(doc *story.Document, r export.Rendering) string {
	timestamp := r.GeneratedAt.UTC().Format("2006-01-02_150405")
	name := fmt.Sprintf("%s_%s_%s%s", timestamp, sanitizeForFilename(doc.Title, 30), r.Format, exportExt)
	return filepath.Join(sanitizeForFilename(doc.ID, 64), name)
}

// Write stores a rendering and returns its relative path
func (w *ExportWriter) Write(ctx context.Context, doc *story.Document, r export.Rendering) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := ExportPath(doc, r)
	fullPath, err := w.sanitizePath(rel)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(r.Text), 0o644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return rel, nil
}

func (w *ExportWriter) Load(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := w.sanitizePath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// List returns the relative paths of a story's exports, oldest first
func (w *ExportWriter) List(ctx context.Context, storyID string) ([]string, error) {
	dir := sanitizeForFilename(storyID, 64)
	fullPattern := filepath.Join(w.baseDir, dir, "*"+exportExt)

	matches, err := filepath.Glob(fullPattern)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}

	results := []string{}
	for _, match := range matches {
		rel, err := filepath.Rel(w.baseDir, match)
		if err != nil {
			continue
		}
		results = append(results, rel)
	}
	sort.Strings(results)
	return results, nil
}

// Remove deletes every export of a story. A story without exports is not an error.
func (w *ExportWriter) Remove(ctx context.Context, storyID string) error {
	fullPath, err := w.sanitizePath(sanitizeForFilename(storyID, 64))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if fullPath == w.baseDir {
		return fmt.Errorf("invalid path: refusing to remove base directory")
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("removing exports: %w", err)
	}
	return nil
}

var filenameReplacer = strings.NewReplacer(
	" ", "-", "/", "-", "\\", "-", ":", "-", ".", "-",
	"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	",", "", "'", "", "!", "", "@", "", "#", "", "$", "",
	"%", "", "^", "", "&", "", "(", "", ")", "", "[", "",
	"]", "", "{", "", "}", "", ";", "", "=", "", "+", "",
)

// sanitizeForFilename converts a string to a safe filename component
func sanitizeForFilename(s string, maxLen int) string {
	s = filenameReplacer.Replace(strings.ToLower(s))

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		s = "untitled"
	}
	return s
}
