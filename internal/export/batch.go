package export

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/imaginator/internal/domain/story"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

// ExportAll renders several formats concurrently, bounded by the worker count.
// Results come back in request order. Provider failures degrade per format;
// only cancellation aborts the batch.
func (c *Coordinator) ExportAll(ctx context.Context, doc *story.Document, formats []story.Format) ([]Rendering, error) {
	if len(formats) == 0 {
		return nil, storyerrors.NewValidationError("formats", "at least one format is required", nil)
	}
	for _, f := range formats {
		if err := c.check(doc, f); err != nil {
			return nil, err
		}
	}

	startTime := time.Now()
	c.logger.Info("starting batch export",
		"story_id", doc.ID,
		"format_count", len(formats),
		"worker_count", c.workers)

	results := make([]Rendering, len(formats))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, f := range formats {
		i, f := i, f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			r, err := c.render(gctx, doc, f)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.logger.Warn("batch export aborted",
			"story_id", doc.ID,
			"duration_ms", time.Since(startTime).Milliseconds(),
			"error", err)
		return nil, err
	}

	degraded := 0
	for _, r := range results {
		if r.Degraded {
			degraded++
		}
	}
	c.logger.Info("batch export completed",
		"story_id", doc.ID,
		"format_count", len(formats),
		"degraded_count", degraded,
		"duration_ms", time.Since(startTime).Milliseconds())

	return results, nil
}
