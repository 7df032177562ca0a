package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/domain/story"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

type Provider interface {
	Generate(ctx context.Context, spec agent.PromptSpec) (string, error)
}

// Rendering is one finished story rendered into a target format
type Rendering struct {
	Format      story.Format `json:"format"`
	Text        string       `json:"text"`
	Degraded    bool         `json:"degraded"`
	GeneratedAt time.Time    `json:"generated_at"`
}

var formatGuides = map[story.Format]string{
	story.FormatScreenplay: "industry-standard screenplay with sluglines, action lines and centred dialogue",
	story.FormatNovel:      "prose chapters in past tense with interiority for the point-of-view character",
	story.FormatStagePlay:  "stage play with act and scene headings, stage directions and character cues",
	story.FormatTVSeries:   "television episode outline with cold open, act breaks and tag",
	story.FormatGame:       "interactive narrative with numbered nodes and player choices that branch",
}

// ParseFormat accepts the canonical names and their hyphenated forms
func ParseFormat(s string) (story.Format, error) {
	f := story.Format(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if !f.Valid() {
		return "", storyerrors.NewValidationError("format", "unsupported export format", s)
	}
	return f, nil
}

// Placeholder is the text returned when the provider cannot render a format
func Placeholder(f story.Format) string {
	return fmt.Sprintf("Export to %s format will be generated here...", f)
}

type Coordinator struct {
	provider Provider
	logger   *slog.Logger
	timeout  time.Duration
	workers  int
	now      func() time.Time
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger.With("component", "export")
	}
}

// WithTimeout bounds each provider call
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithWorkers bounds how many formats ExportAll renders at once
func WithWorkers(workers int) Option {
	return func(c *Coordinator) {
		if workers > 0 {
			c.workers = workers
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(provider Provider, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider: provider,
		logger:   slog.Default().With("component", "export"),
		timeout:  2 * time.Minute,
		workers:  2,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Export renders doc into format. Every call asks the provider again.
// A provider failure yields the placeholder text with Degraded set.
func (c *Coordinator) Export(ctx context.Context, doc *story.Document, format story.Format) (Rendering, error) {
	if err := c.check(doc, format); err != nil {
		return Rendering{}, err
	}
	return c.render(ctx, doc, format)
}

func (c *Coordinator) check(doc *story.Document, format story.Format) error {
	if !format.Valid() {
		return storyerrors.NewValidationError("format", "unsupported export format", format)
	}
	if doc == nil || len(doc.Scenes) == 0 {
		return storyerrors.NewPreconditionError("export", "story has no scenes to export")
	}
	return nil
}

func (c *Coordinator) render(ctx context.Context, doc *story.Document, format story.Format) (Rendering, error) {
	startTime := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.provider.Generate(callCtx, agent.PromptSpec{
		Operation: agent.OpExport,
		Data: agent.StoryPrompt{
			Story:       doc,
			Format:      format,
			FormatGuide: formatGuides[format],
		},
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = storyerrors.ErrMalformedResponse
	}

	if err != nil {
		// the caller walked away; nothing to degrade to
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Rendering{}, ctxErr
		}
		c.logger.Warn("export degraded to placeholder",
			"story_id", doc.ID,
			"format", format,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"error", storyerrors.NewProviderError(agent.OpExport, err))
		return Rendering{
			Format:      format,
			Text:        Placeholder(format),
			Degraded:    true,
			GeneratedAt: c.now(),
		}, nil
	}

	c.logger.Info("story exported",
		"story_id", doc.ID,
		"format", format,
		"scenes", len(doc.Scenes),
		"duration_ms", time.Since(startTime).Milliseconds(),
		"length", len(text))

	return Rendering{
		Format:      format,
		Text:        text,
		GeneratedAt: c.now(),
	}, nil
}
