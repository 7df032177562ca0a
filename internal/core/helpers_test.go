package core_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/core"
	"github.com/dotcommander/imaginator/internal/domain/story"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

const twoPremiseOptions = `{
	"options": [
		{"id": "p1", "title": "Greed leads to isolation", "description": "d1",
		 "impact": {"premise": 80, "character": 60, "structure": 40, "theme": 20}, "analysis": "a1", "examples": ["Silas Marner"]},
		{"id": "p2", "title": "The price of silence", "description": "d2",
		 "impact": {"premise": 100, "character": 100, "structure": 100, "theme": 100}, "analysis": "a2", "examples": []}
	],
	"recommendation": "Pick p1"
}`

const twoCharacterOptions = `{
	"options": [
		{"id": "c1", "title": "Idealist against pragmatist", "description": "d",
		 "impact": {"premise": 80, "character": 90, "structure": 70, "theme": 85}},
		{"id": "c2", "title": "Mentor turned rival", "description": "d",
		 "impact": {"premise": 75, "character": 85, "structure": 80, "theme": 80}}
	]
}`

const openingScene = `{
	"title": "The First Crack",
	"content": "Rain on the precinct windows.",
	"premise_advancement": 6,
	"conflict_level": 4,
	"framework_beats": {"save_the_cat": "Opening Image", "three_act": "ignored"},
	"perspectives": {"protagonist": "Alex feels it.", "antagonist": "Marcus waits."}
}`

type mockProvider struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     map[string]int
	block     map[string]chan struct{}
	started   chan string
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		responses: map[string]string{
			agent.OpPremiseOptions:   twoPremiseOptions,
			agent.OpCharacterOptions: twoCharacterOptions,
			agent.OpScene:            openingScene,
			agent.OpAnalysis:         `{"analysis": "Solid start", "recommendations": ["Add a mentor"], "strengths": ["Clear premise"], "weaknesses": []}`,
			agent.OpExport:           "FADE IN:",
		},
		errs:    make(map[string]error),
		calls:   make(map[string]int),
		block:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
}

func (m *mockProvider) Generate(ctx context.Context, spec agent.PromptSpec) (string, error) {
	m.mu.Lock()
	m.calls[spec.Operation]++
	block := m.block[spec.Operation]
	err := m.errs[spec.Operation]
	resp := m.responses[spec.Operation]
	m.mu.Unlock()

	select {
	case m.started <- spec.Operation:
	default:
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (m *mockProvider) set(op, resp string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[op] = resp
}

func (m *mockProvider) fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
}

func (m *mockProvider) hold(op string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.block[op] = ch
	return ch
}

func (m *mockProvider) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

type mockStore struct {
	mu         sync.Mutex
	docs       map[string]*story.Document
	history    []story.DecisionRecord
	saves      int
	saveErr    error
	historyErr error
}

func newMockStore() *mockStore {
	return &mockStore{docs: make(map[string]*story.Document)}
}

func (m *mockStore) Save(ctx context.Context, doc *story.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.docs[doc.ID] = doc.Clone()
	return nil
}

func (m *mockStore) Load(ctx context.Context, id, ownerID string) (*story.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return nil, storyerrors.ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *mockStore) ListByOwner(ctx context.Context, ownerID string) ([]*story.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*story.Document
	for _, doc := range m.docs {
		if doc.OwnerID == ownerID {
			out = append(out, doc.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *mockStore) Delete(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok || doc.OwnerID != ownerID {
		return storyerrors.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockStore) AppendDecisionHistory(ctx context.Context, rec story.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.history = append(m.history, rec)
	return nil
}

func (m *mockStore) ListDecisionHistory(ctx context.Context, storyID, ownerID string) ([]story.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []story.DecisionRecord
	for _, rec := range m.history {
		if rec.StoryID == storyID && rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockStore) stored(id string) *story.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

func (m *mockStore) setSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// fakeClock advances one second per reading so ids derived from it are unique
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	engine   *core.Engine
	provider *mockProvider
	store    *mockStore
}

func newFixture(t *testing.T, opts ...core.Option) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	var seq int
	var seqMu sync.Mutex

	f := &fixture{provider: newMockProvider(), store: newMockStore()}
	base := []core.Option{
		core.WithClock(clock.Now),
		core.WithIDGenerator(func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
		core.WithProviderTimeout(time.Second),
	}
	f.engine = core.New(f.provider, f.store, append(base, opts...)...)
	return f
}

func (f *fixture) newStory(t *testing.T) string {
	t.Helper()
	s, err := f.engine.NewStory(context.Background(), "owner-1", "Night Shift")
	if err != nil {
		t.Fatalf("NewStory() error = %v", err)
	}
	return s.ID()
}

// resolved drives a new story through both decisions
func (f *fixture) resolved(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	id := f.newStory(t)
	if _, err := f.engine.Begin(ctx, id, "A detective hunts a killer"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if _, err := f.engine.Choose(ctx, id, "p1"); err != nil {
		t.Fatalf("Choose(premise) error = %v", err)
	}
	if _, err := f.engine.Choose(ctx, id, "c1"); err != nil {
		t.Fatalf("Choose(characters) error = %v", err)
	}
	return id
}

func assertHealthInvariant(t *testing.T, h story.Health) {
	t.Helper()
	mean := (h.PremiseClarity + h.StructuralIntegrity + h.CharacterDepth +
		h.PacingEffectiveness + h.ConflictPower + h.ThematicUnity) / 6
	if math.Abs(h.Overall-mean) > 1e-9 {
		t.Errorf("Overall = %v, want mean of six %v", h.Overall, mean)
	}
}

func waitStarted(t *testing.T, p *mockProvider, op string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-p.started:
			if got == op {
				return
			}
		case <-timeout:
			t.Fatalf("provider never received %s", op)
		}
	}
}

var errProviderDown = errors.New("provider down")
