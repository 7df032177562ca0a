package agent

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"text/template"
)

//go:embed prompts/*.tmpl
var embeddedPrompts embed.FS

func templatePath(operation string) string {
	return path.Join("prompts", operation+".tmpl")
}

// PromptCache caches parsed prompt templates read from a file system
type PromptCache struct {
	mu        sync.RWMutex
	fsys      fs.FS
	templates map[string]*template.Template
	raw       map[string]string
}

func NewPromptCache(fsys fs.FS) *PromptCache {
	return &PromptCache{
		fsys:      fsys,
		templates: make(map[string]*template.Template),
		raw:       make(map[string]string),
	}
}

// LoadPrompt loads a prompt from the file system or cache
func (pc *PromptCache) LoadPrompt(name string) (string, error) {
	pc.mu.RLock()
	if content, ok := pc.raw[name]; ok {
		pc.mu.RUnlock()
		return content, nil
	}
	pc.mu.RUnlock()

	content, err := fs.ReadFile(pc.fsys, name)
	if err != nil {
		return "", fmt.Errorf("reading prompt file: %w", err)
	}

	pc.mu.Lock()
	pc.raw[name] = string(content)
	pc.mu.Unlock()

	return string(content), nil
}

// LoadTemplate loads and parses a template from the file system or cache
func (pc *PromptCache) LoadTemplate(name, file string) (*template.Template, error) {
	pc.mu.RLock()
	if tmpl, ok := pc.templates[file]; ok {
		pc.mu.RUnlock()
		return tmpl, nil
	}
	pc.mu.RUnlock()

	content, err := pc.LoadPrompt(file)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Funcs(promptFuncs).Option("missingkey=zero").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	pc.mu.Lock()
	pc.templates[file] = tmpl
	pc.mu.Unlock()

	return tmpl, nil
}

// Preload parses every template in the file system so a broken one fails at startup
func (pc *PromptCache) Preload() error {
	files, err := fs.Glob(pc.fsys, "prompts/*.tmpl")
	if err != nil {
		return fmt.Errorf("listing prompts: %w", err)
	}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".tmpl")
		if _, err := pc.LoadTemplate(name, file); err != nil {
			return fmt.Errorf("preloading %s: %w", file, err)
		}
	}
	return nil
}

func (pc *PromptCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.templates = make(map[string]*template.Template)
	pc.raw = make(map[string]string)
}

// Stats returns cache statistics
func (pc *PromptCache) Stats() (templates int, raw int) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	return len(pc.templates), len(pc.raw)
}

var promptFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}
