package core

import (
	"context"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/domain/story"
	"github.com/dotcommander/imaginator/internal/export"
)

// Analysis is an editorial critique of a story alongside its health
type Analysis struct {
	StoryID         string       `json:"story_id"`
	Analysis        string       `json:"analysis"`
	Recommendations []string     `json:"recommendations"`
	Strengths       []string     `json:"strengths"`
	Weaknesses      []string     `json:"weaknesses"`
	Health          story.Health `json:"health"`
	Degraded        bool         `json:"degraded"`
}

// Analyze asks the provider to critique the story as it stands. It reads a
// snapshot and never mutates the story, so it does not take the busy flag.
func (e *Engine) Analyze(ctx context.Context, storyID string) (Analysis, error) {
	s, err := e.lookup(storyID)
	if err != nil {
		return Analysis{}, err
	}
	doc, _, _ := s.stage()

	raw, err := e.generate(ctx, agent.PromptSpec{
		Operation: agent.OpAnalysis,
		Data:      agent.StoryPrompt{Story: doc},
		JSON:      true,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Analysis{}, ctxErr
	}

	var res Result[Analysis]
	if err != nil {
		res = failed[Analysis](agent.OpAnalysis, err)
	} else {
		res = parseAnalysis(raw)
	}

	result := res.Value
	if !res.Ok() {
		e.logger.Warn("analysis degraded to placeholder",
			"story_id", storyID,
			"malformed", res.Err.Malformed(),
			"error", res.Err)
		result = fallbackAnalysis()
	}
	result.StoryID = storyID
	result.Health = doc.Health
	return result, nil
}

// Export renders the story in one format. It holds the busy flag so it never
// overlaps a decision on the same story.
func (e *Engine) Export(ctx context.Context, storyID string, format story.Format) (export.Rendering, error) {
	s, err := e.claim(storyID)
	if err != nil {
		return export.Rendering{}, err
	}
	defer s.release()

	doc, _, _ := s.stage()
	return e.exporter.Export(ctx, doc, format)
}

// ExportAll renders several formats concurrently under the same busy discipline as Export
func (e *Engine) ExportAll(ctx context.Context, storyID string, formats []story.Format) ([]export.Rendering, error) {
	s, err := e.claim(storyID)
	if err != nil {
		return nil, err
	}
	defer s.release()

	doc, _, _ := s.stage()
	return e.exporter.ExportAll(ctx, doc, formats)
}
