package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dotcommander/imaginator/internal/domain/story"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

// MemoryStore keeps stories in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string]*story.Document
	history map[string][]story.DecisionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]*story.Document),
		history: make(map[string][]story.DecisionRecord),
	}
}

func (m *MemoryStore) Save(ctx context.Context, doc *story.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.docs[doc.ID]; ok && existing.OwnerID != doc.OwnerID {
		return fmt.Errorf("saving story %s: %w", doc.ID, storyerrors.ErrNotFound)
	}
	m.docs[doc.ID] = doc.Clone()
	return nil
}

func (m *MemoryStore) Load(ctx context.Context, id, ownerID string) (*story.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, fmt.Errorf("loading story %s: %w", id, storyerrors.ErrNotFound)
	}
	return doc.Clone(), nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]*story.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*story.Document{}
	for _, doc := range m.docs {
		if doc.OwnerID == ownerID {
			out = append(out, doc.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes the story and its history
func (m *MemoryStore) Delete(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return fmt.Errorf("deleting story %s: %w", id, storyerrors.ErrNotFound)
	}
	delete(m.docs, id)
	delete(m.history, id)
	return nil
}

func (m *MemoryStore) AppendDecisionHistory(ctx context.Context, rec story.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[rec.StoryID]; !ok {
		return fmt.Errorf("history for story %s: %w", rec.StoryID, storyerrors.ErrNotFound)
	}
	m.history[rec.StoryID] = append(m.history[rec.StoryID], rec)
	return nil
}

func (m *MemoryStore) ListDecisionHistory(ctx context.Context, storyID, ownerID string) ([]story.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[storyID]
	if !ok || doc.OwnerID != ownerID {
		return nil, fmt.Errorf("history of story %s: %w", storyID, storyerrors.ErrNotFound)
	}
	return append([]story.DecisionRecord{}, m.history[storyID]...), nil
}
