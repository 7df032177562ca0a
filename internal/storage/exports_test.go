package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dotcommander/imaginator/internal/domain/story"
	"github.com/dotcommander/imaginator/internal/export"
)

func TestExportWriterRoundTrip(t *testing.T) {
	w := NewExportWriter(t.TempDir())
	ctx := context.Background()
	doc := story.New("story-1", "owner-1", "The Long Night: Part 1", time.Now())
	at := time.Date(2026, time.March, 1, 9, 30, 5, 0, time.UTC)

	screenplay := export.Rendering{Format: story.FormatScreenplay, Text: "FADE IN:", GeneratedAt: at}
	novel := export.Rendering{Format: story.FormatNovel, Text: "Chapter One", GeneratedAt: at.Add(time.Minute)}

	rel, err := w.Write(ctx, doc, screenplay)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	want := filepath.Join("story-1", "2026-03-01_093005_the-long-night-part-1_screenplay.md")
	if rel != want {
		t.Errorf("Write() path = %q, want %q", rel, want)
	}
	if _, err := w.Write(ctx, doc, novel); err != nil {
		t.Fatal(err)
	}

	data, err := w.Load(ctx, rel)
	if err != nil || string(data) != "FADE IN:" {
		t.Errorf("Load() = %q, %v", data, err)
	}

	paths, err := w.List(ctx, "story-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || !strings.HasSuffix(paths[1], "_novel.md") {
		t.Errorf("List() = %v", paths)
	}

	if err := w.Remove(ctx, "story-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if paths, _ := w.List(ctx, "story-1"); len(paths) != 0 {
		t.Errorf("exports survived Remove: %v", paths)
	}
	if err := w.Remove(ctx, "story-1"); err != nil {
		t.Errorf("Remove() on a story without exports error = %v", err)
	}
}

func TestExportWriterSecurity(t *testing.T) {
	base := t.TempDir()
	outsideFile := filepath.Join(filepath.Dir(base), "outside.txt")
	if err := os.WriteFile(outsideFile, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(outsideFile) })

	w := NewExportWriter(base)
	ctx := context.Background()

	t.Run("Load prevents directory traversal", func(t *testing.T) {
		tests := []struct {
			name string
			path string
		}{
			{"parent traversal", "../outside.txt"},
			{"absolute path", outsideFile},
			{"hidden traversal", "story/../../outside.txt"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := w.Load(ctx, tt.path); err == nil {
					t.Errorf("expected error for path %q, got none", tt.path)
				}
			})
		}
	})

	t.Run("hostile story ids stay inside the base directory", func(t *testing.T) {
		doc := story.New("../../etc", "owner", "x", time.Now())
		rel, err := w.Write(ctx, doc, export.Rendering{Format: story.FormatGame, Text: "t", GeneratedAt: time.Now()})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if strings.Contains(rel, "..") {
			t.Errorf("path %q escapes the base directory", rel)
		}
		if err := w.Remove(ctx, "../.."); err != nil {
			t.Errorf("Remove() error = %v", err)
		}
		if _, err := os.Stat(outsideFile); err != nil {
			t.Errorf("file outside base directory was touched: %v", err)
		}
	})
}

func TestSanitizePath(t *testing.T) {
	base := t.TempDir()
	w := NewExportWriter(base)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple file", "file.md", false},
		{"nested file", "dir/file.md", false},
		{"dot file", ".hidden", false},
		{"parent directory", "../file.md", true},
		{"sneaky parent", "dir/../../../etc/passwd", true},
		{"absolute path", "/etc/passwd", true},
		{"double dot", "..", true},
		{"contains double dot", "some/..thing/file", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.sanitizePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("sanitizePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
				return
			}
			if err == nil && !strings.HasPrefix(got, base) {
				t.Errorf("sanitizePath(%q) = %q, not under base directory %q", tt.path, got, base)
			}
		})
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"The Long Night", 30, "the-long-night"},
		{"  ??? ", 30, "untitled"},
		{"A/B\\C: d.e", 30, "a-b-c-d-e"},
		{"abcdef-ghij", 7, "abcdef"},
		{"../../etc", 64, "etc"},
	}
	for _, tt := range tests {
		if got := sanitizeForFilename(tt.in, tt.max); got != tt.want {
			t.Errorf("sanitizeForFilename(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
