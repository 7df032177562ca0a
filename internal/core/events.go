package core

import (
	"sync"
	"time"

	"github.com/dotcommander/imaginator/internal/domain/story"
)

type EventType string

const (
	EventDecisionReady EventType = "decision_ready"
	EventStoryUpdated  EventType = "story_updated"
	EventStoryDeleted  EventType = "story_deleted"
)

const subscriberBuffer = 16

// Event tells subscribers that a story's state or health changed
type Event struct {
	Type     EventType    `json:"type"`
	StoryID  string       `json:"story_id"`
	State    State        `json:"state"`
	Health   story.Health `json:"health"`
	Degraded bool         `json:"degraded"`
	At       time.Time    `json:"at"`
}

type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan Event)}
}

func (h *hub) subscribe(storyID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Event, subscriberBuffer)
	if h.subs[storyID] == nil {
		h.subs[storyID] = make(map[int]chan Event)
	}
	h.subs[storyID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.subs[storyID]; ok {
				if _, ok := subs[id]; ok {
					delete(subs, id)
					close(ch)
				}
				if len(subs) == 0 {
					delete(h.subs, storyID)
				}
			}
		})
	}
	return ch, cancel
}

// publish never blocks; a subscriber that falls behind misses events.
// It reports how many subscribers were skipped.
func (h *hub) publish(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	dropped := 0
	for _, ch := range h.subs[ev.StoryID] {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

// closeStory ends every subscription on a story
func (h *hub) closeStory(storyID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs[storyID] {
		delete(h.subs[storyID], id)
		close(ch)
	}
	delete(h.subs, storyID)
}
