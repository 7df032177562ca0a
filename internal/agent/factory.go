package agent

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dotcommander/imaginator/internal/config"
)

// NewClientFromConfig builds the AIClient the configuration asks for.
// The "mock" provider answers from canned responses and needs no key.
func NewClientFromConfig(ai config.AIConfig, limits config.Limits, logger *slog.Logger) (AIClient, error) {
	switch ai.Provider {
	case "mock":
		return NewMockClient(), nil
	case apiAnthropic, apiOpenAI:
		if ai.APIKey == "" {
			return nil, fmt.Errorf("provider %s needs an API key", ai.Provider)
		}
	default:
		return nil, fmt.Errorf("unknown AI provider %q", ai.Provider)
	}

	opts := []Option{
		WithAPIConfig(ai.BaseURL, ai.Model),
		WithAPIType(ai.Provider),
		WithTimeout(time.Duration(ai.Timeout) * time.Second),
		WithRetry(limits.MaxRetries),
		WithRateLimit(limits.RateLimit.RequestsPerMinute, limits.RateLimit.BurstSize),
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return NewClient(ai.APIKey, opts...), nil
}

// NewFromConfig wires a ready Agent over the configured client
func NewFromConfig(ai config.AIConfig, limits config.Limits, logger *slog.Logger) (*Agent, error) {
	client, err := NewClientFromConfig(ai, limits, logger)
	if err != nil {
		return nil, err
	}
	a := New(client)
	if logger != nil {
		a = a.WithLogger(logger)
	}
	return a, nil
}
