package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/domain/story"
	"github.com/dotcommander/imaginator/internal/export"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

const defaultProviderTimeout = 60 * time.Second

// Engine drives stories through the premise, character and scene decisions.
// It holds no global state: every story lives in its own Session.
type Engine struct {
	provider        Provider
	store           Store
	exporter        *export.Coordinator
	logger          *slog.Logger
	now             func() time.Time
	newID           func() string
	providerTimeout time.Duration
	events          *hub

	mu       sync.RWMutex
	sessions map[string]*Session
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With("component", "engine")
	}
}

// WithClock replaces time.Now, for deterministic ids and timestamps in tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// WithProviderTimeout bounds every provider call. A call that times out counts as a provider failure.
func WithProviderTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.providerTimeout = timeout
		}
	}
}

func WithExporter(c *export.Coordinator) Option {
	return func(e *Engine) {
		e.exporter = c
	}
}

func New(provider Provider, store Store, opts ...Option) *Engine {
	e := &Engine{
		provider:        provider,
		store:           store,
		logger:          slog.Default().With("component", "engine"),
		now:             time.Now,
		newID:           uuid.NewString,
		providerTimeout: defaultProviderTimeout,
		events:          newHub(),
		sessions:        make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.exporter == nil {
		e.exporter = export.NewCoordinator(provider,
			export.WithTimeout(e.providerTimeout),
			export.WithLogger(e.logger),
			export.WithClock(e.now))
	}
	return e
}

// NewStory creates an empty story, saves it and opens a session in the idle state
func (e *Engine) NewStory(ctx context.Context, ownerID, title string) (*Session, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, storyerrors.NewValidationError("owner_id", "owner is required", nil)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled Story"
	}

	doc := story.New(e.newID(), ownerID, title, e.now())
	if err := e.store.Save(ctx, doc); err != nil {
		return nil, storyerrors.NewPersistenceError("save", err)
	}

	s := newSession(doc, StateIdle)
	e.mu.Lock()
	e.sessions[doc.ID] = s
	e.mu.Unlock()

	e.logger.Info("story created",
		"story_id", doc.ID,
		"owner_id", ownerID)
	return s, nil
}

// Open returns the live session for a story, loading it from the store when
// needed. A stored story with a premise opens resolved; without one it opens idle.
func (e *Engine) Open(ctx context.Context, ownerID, storyID string) (*Session, error) {
	e.mu.RLock()
	s, found := e.sessions[storyID]
	e.mu.RUnlock()
	if found {
		if s.OwnerID() != ownerID {
			return nil, fmt.Errorf("opening story %s: %w", storyID, storyerrors.ErrNotFound)
		}
		return s, nil
	}

	doc, err := e.store.Load(ctx, storyID, ownerID)
	if err != nil {
		if storyerrors.IsNotFound(err) {
			return nil, fmt.Errorf("opening story %s: %w", storyID, err)
		}
		return nil, storyerrors.NewPersistenceError("load", err)
	}

	state := StateResolved
	if doc.Premise.Statement == "" {
		state = StateIdle
	}
	doc.RefreshHealth()

	e.mu.Lock()
	defer e.mu.Unlock()
	// another request may have opened it meanwhile
	if existing, ok := e.sessions[storyID]; ok {
		return existing, nil
	}
	s = newSession(doc, state)
	e.sessions[storyID] = s

	e.logger.Debug("session opened",
		"story_id", storyID,
		"state", state)
	return s, nil
}

// Session returns an open session
func (e *Engine) Session(storyID string) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[storyID]
	return s, ok
}

// Close drops a session from memory. The stored story is untouched and any
// pending decision is lost.
func (e *Engine) Close(storyID string) {
	e.mu.Lock()
	delete(e.sessions, storyID)
	e.mu.Unlock()
}

func (e *Engine) Snapshot(storyID string) (Snapshot, error) {
	s, err := e.lookup(storyID)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// List returns story summaries for an owner, most recently updated first
func (e *Engine) List(ctx context.Context, ownerID string) ([]*story.Document, error) {
	docs, err := e.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storyerrors.NewPersistenceError("list", err)
	}
	return docs, nil
}

// History returns the resolved decisions of a story, oldest first
func (e *Engine) History(ctx context.Context, ownerID, storyID string) ([]story.DecisionRecord, error) {
	records, err := e.store.ListDecisionHistory(ctx, storyID, ownerID)
	if err != nil {
		if storyerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, storyerrors.NewPersistenceError("history", err)
	}
	return records, nil
}

// Delete removes a story and everything it owns. A story with an operation in flight cannot be deleted.
func (e *Engine) Delete(ctx context.Context, ownerID, storyID string) error {
	if s, ok := e.Session(storyID); ok {
		if s.OwnerID() != ownerID {
			return fmt.Errorf("deleting story %s: %w", storyID, storyerrors.ErrNotFound)
		}
		if !s.acquire() {
			return storyerrors.NewBusyError(storyID)
		}
		defer s.release()
	}

	if err := e.store.Delete(ctx, storyID, ownerID); err != nil {
		if storyerrors.IsNotFound(err) {
			return fmt.Errorf("deleting story %s: %w", storyID, err)
		}
		return storyerrors.NewPersistenceError("delete", err)
	}

	e.Close(storyID)
	e.events.publish(Event{Type: EventStoryDeleted, StoryID: storyID, At: e.now()})
	e.events.closeStory(storyID)

	e.logger.Info("story deleted",
		"story_id", storyID,
		"owner_id", ownerID)
	return nil
}

// Subscribe streams change notifications for a story until cancel is called
// or the story is deleted
func (e *Engine) Subscribe(storyID string) (<-chan Event, func()) {
	return e.events.subscribe(storyID)
}

func (e *Engine) lookup(storyID string) (*Session, error) {
	s, ok := e.Session(storyID)
	if !ok {
		return nil, fmt.Errorf("story %s has no open session: %w", storyID, storyerrors.ErrNotFound)
	}
	return s, nil
}

// claim looks up a session and marks it busy; the caller must release it
func (e *Engine) claim(storyID string) (*Session, error) {
	s, err := e.lookup(storyID)
	if err != nil {
		return nil, err
	}
	if !s.acquire() {
		e.logger.Debug("operation rejected, story busy", "story_id", storyID)
		return nil, storyerrors.NewBusyError(storyID)
	}
	return s, nil
}

// generate calls the provider under the per-call timeout
func (e *Engine) generate(ctx context.Context, spec agent.PromptSpec) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.providerTimeout)
	defer cancel()

	startTime := time.Now()
	raw, err := e.provider.Generate(callCtx, spec)
	e.logger.Debug("provider call finished",
		"operation", spec.Operation,
		"duration_ms", time.Since(startTime).Milliseconds(),
		"failed", err != nil)
	return raw, err
}

// persist saves a staged document; a failure here is surfaced to the caller
func (e *Engine) persist(ctx context.Context, doc *story.Document) error {
	if err := e.store.Save(ctx, doc); err != nil {
		e.logger.Error("saving story failed",
			"story_id", doc.ID,
			"error", err)
		return storyerrors.NewPersistenceError("save", err)
	}
	return nil
}

// recordDecision appends a history record. Failures are logged and swallowed,
// and the write outlives a caller that has already gone away.
func (e *Engine) recordDecision(ctx context.Context, doc *story.Document, point *story.DecisionPoint, opt story.DecisionOption) {
	rec := story.DecisionRecord{
		ID:                e.newID(),
		StoryID:           doc.ID,
		OwnerID:           doc.OwnerID,
		Type:              point.Type,
		Context:           point.Context,
		OptionID:          opt.ID,
		OptionTitle:       opt.Title,
		OptionDescription: opt.Description,
		Impact:            opt.Impact,
		CreatedAt:         e.now(),
	}

	if err := e.store.AppendDecisionHistory(context.WithoutCancel(ctx), rec); err != nil {
		e.logger.Warn("decision history not recorded",
			"story_id", doc.ID,
			"decision_type", point.Type,
			"option_id", opt.ID,
			"error", storyerrors.NewPersistenceError("append_history", err))
	}
}

func (e *Engine) notify(typ EventType, s *Session, degraded bool) {
	snap := s.Snapshot()
	ev := Event{
		Type:     typ,
		StoryID:  snap.StoryID,
		State:    snap.State,
		Health:   snap.Health,
		Degraded: degraded,
		At:       e.now(),
	}
	if dropped := e.events.publish(ev); dropped > 0 {
		e.logger.Debug("slow subscribers missed an event",
			"story_id", snap.StoryID,
			"event", typ,
			"dropped", dropped)
	}
}
