package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// MockClient provides canned AI responses for tests and offline runs.
// The operation is detected from the rendered prompt.
type MockClient struct {
	mu        sync.Mutex
	responses map[string]string
	errors    map[string]error
	calls     map[string]int
}

func NewMockClient() *MockClient {
	return &MockClient{
		responses: map[string]string{
			OpPremiseOptions: `{
				"options": [
					{
						"id": "premise_1",
						"title": "Ambition leads to betrayal",
						"description": "A rising star discovers the cost of climbing is the people who lifted them",
						"impact": {"premise": 85, "character": 80, "structure": 75, "theme": 90},
						"analysis": "Gives the protagonist an active flaw and a clear reckoning",
						"examples": ["Macbeth", "The Social Network"]
					},
					{
						"id": "premise_2",
						"title": "Loyalty leads to sacrifice",
						"description": "Standing by a friend demands everything the hero owns",
						"impact": {"premise": 80, "character": 90, "structure": 70, "theme": 85},
						"analysis": "Strong emotional spine with escalating stakes",
						"examples": ["A Tale of Two Cities"]
					}
				],
				"recommendation": "Ambition leads to betrayal gives the sharpest conflict"
			}`,
			OpCharacterOptions: `{
				"options": [
					{
						"id": "characters_1",
						"title": "Idealist against pragmatist",
						"description": "A principled investigator faces an executive who treats people as assets",
						"impact": {"premise": 80, "character": 90, "structure": 70, "theme": 85},
						"analysis": "Each embodies one side of the premise",
						"examples": []
					},
					{
						"id": "characters_2",
						"title": "Mentor turned rival",
						"description": "The protagonist must outgrow the person who taught them everything",
						"impact": {"premise": 75, "character": 85, "structure": 80, "theme": 80},
						"analysis": "Personal history raises the cost of every confrontation",
						"examples": ["Star Wars"]
					}
				],
				"recommendation": "Idealist against pragmatist keeps the premise front and centre"
			}`,
			OpScene: `{
				"title": "The First Crack",
				"content": "Rain on the precinct windows. Alex studies the file Marcus sent over, certain something is missing.",
				"premise_advancement": 6,
				"conflict_level": 5,
				"framework_beats": {"save_the_cat": "Opening Image", "hero_journey": "Ordinary World", "aristotle": "Exposition", "egri": "Trait established"},
				"character_developments": {},
				"perspectives": {
					"objective": "A detective reads a file in an empty office.",
					"protagonist": "Alex feels the weight of every name in the folder.",
					"antagonist": "Marcus expects the file to close the matter."
				}
			}`,
			OpAnalysis: `{
				"analysis": "The premise is clear and the opening scene sets up the central conflict.",
				"recommendations": ["Raise the stakes in the second act", "Give the antagonist a private victory"],
				"strengths": ["Clear premise", "Opposed characters"],
				"weaknesses": ["Thin supporting cast"]
			}`,
			OpExport: "FADE IN:\n\nINT. PRECINCT - NIGHT\n\nRain on the windows. ALEX MORGAN reads a file.\n\nFADE OUT.",
		},
		errors: make(map[string]error),
		calls:  make(map[string]int),
	}
}

// SetResponse replaces the canned response for an operation
func (m *MockClient) SetResponse(operation, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[operation] = response
}

// SetError makes an operation fail; a nil error clears it
func (m *MockClient) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, operation)
		return
	}
	m.errors[operation] = err
}

// Calls reports how many requests an operation received
func (m *MockClient) Calls(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[operation]
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	op := detectOperation(prompt)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[op]++
	if err := m.errors[op]; err != nil {
		return "", err
	}
	if response, ok := m.responses[op]; ok {
		return response, nil
	}
	return `{"message": "Mock response"}`, nil
}

func (m *MockClient) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	response, err := m.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	var test interface{}
	if err := json.Unmarshal([]byte(response), &test); err != nil {
		return "", fmt.Errorf("mock response is not valid JSON: %w", err)
	}
	return response, nil
}

func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.Complete(ctx, userPrompt)
}

func (m *MockClient) CompleteJSONWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.CompleteJSON(ctx, userPrompt)
}

func detectOperation(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "generate premise options"):
		return OpPremiseOptions
	case strings.Contains(lower, "propose configurations"):
		return OpCharacterOptions
	case strings.Contains(lower, "write scene"):
		return OpScene
	case strings.Contains(lower, "analyze the story"):
		return OpAnalysis
	case strings.Contains(lower, "render the story"):
		return OpExport
	}
	return "unknown"
}
