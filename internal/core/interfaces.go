package core

import (
	"context"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/domain/story"
)

// Provider generates free-form text or JSON from a structured prompt.
// Its output is untrusted: it may fail, time out or return garbage.
type Provider interface {
	Generate(ctx context.Context, spec agent.PromptSpec) (string, error)
}

// Store persists story documents. Every read and delete is scoped to the
// owner; a story owned by someone else is reported as errors.ErrNotFound.
type Store interface {
	Save(ctx context.Context, doc *story.Document) error
	Load(ctx context.Context, id, ownerID string) (*story.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*story.Document, error)
	Delete(ctx context.Context, id, ownerID string) error
	AppendDecisionHistory(ctx context.Context, rec story.DecisionRecord) error
	ListDecisionHistory(ctx context.Context, storyID, ownerID string) ([]story.DecisionRecord, error)
}
