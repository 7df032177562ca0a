package agent

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultSystemPrompt = "You are a story development assistant. You help writers shape a premise, a cast and scenes using Lajos Egri's premise method alongside Save the Cat, the Hero's Journey and Aristotle's poetics."

var (
	globalPromptCache *PromptCache
	cacheOnce         sync.Once
)

// GetPromptCache returns the prompt cache over the embedded templates
func GetPromptCache() *PromptCache {
	cacheOnce.Do(func() {
		globalPromptCache = NewPromptCache(embeddedPrompts)
	})
	return globalPromptCache
}

// Agent turns a PromptSpec into a completed prompt and sends it to an AIClient
type Agent struct {
	client       AIClient
	systemPrompt string
	promptCache  *PromptCache
	logger       *slog.Logger
}

func New(client AIClient) *Agent {
	return NewWithSystem(client, defaultSystemPrompt)
}

// NewWithSystem creates an agent with a custom system prompt
func NewWithSystem(client AIClient, systemPrompt string) *Agent {
	return &Agent{
		client:       client,
		systemPrompt: systemPrompt,
		promptCache:  GetPromptCache(),
		logger:       slog.Default().With("component", "agent"),
	}
}

// WithLogger sets a custom logger for the agent
func (a *Agent) WithLogger(logger *slog.Logger) *Agent {
	a.logger = logger.With("component", "agent")
	return a
}

// WithPromptCache swaps the template source, mainly for tests
func (a *Agent) WithPromptCache(cache *PromptCache) *Agent {
	a.promptCache = cache
	return a
}

// Generate renders the operation's template with spec.Data and returns the raw model text
func (a *Agent) Generate(ctx context.Context, spec PromptSpec) (string, error) {
	startTime := time.Now()
	requestID := fmt.Sprintf("req_%d", startTime.UnixNano())

	a.logger.Debug("starting agent execution",
		"request_id", requestID,
		"operation", spec.Operation,
		"force_json", spec.JSON)

	prompt, err := a.render(spec)
	if err != nil {
		a.logger.Error("prompt rendering failed",
			"request_id", requestID,
			"operation", spec.Operation,
			"error", err)
		return "", err
	}

	var response string
	if spec.JSON {
		response, err = a.client.CompleteJSONWithSystem(ctx, a.systemPrompt, prompt)
	} else {
		response, err = a.client.CompleteWithSystem(ctx, a.systemPrompt, prompt)
	}

	duration := time.Since(startTime)
	if err != nil {
		a.logger.Error("AI request failed",
			"request_id", requestID,
			"operation", spec.Operation,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", fmt.Errorf("generating %s: %w", spec.Operation, err)
	}

	a.logger.Info("AI request completed",
		"request_id", requestID,
		"operation", spec.Operation,
		"duration_ms", duration.Milliseconds(),
		"prompt_length", len(prompt),
		"response_length", len(response))

	return response, nil
}

func (a *Agent) render(spec PromptSpec) (string, error) {
	if spec.Operation == "" {
		return "", fmt.Errorf("prompt spec has no operation")
	}

	tmpl, err := a.promptCache.LoadTemplate(spec.Operation, templatePath(spec.Operation))
	if err != nil {
		return "", fmt.Errorf("loading %s template: %w", spec.Operation, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, spec.Data); err != nil {
		return "", fmt.Errorf("executing %s template: %w", spec.Operation, err)
	}
	return buf.String(), nil
}
