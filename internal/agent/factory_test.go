package agent

import (
	"context"
	"testing"

	"github.com/dotcommander/imaginator/internal/config"
)

func TestNewClientFromConfig(t *testing.T) {
	limits := config.DefaultLimits()

	tests := []struct {
		name    string
		ai      config.AIConfig
		wantErr bool
		wantAPI string
	}{
		{name: "mock", ai: config.AIConfig{Provider: "mock"}},
		{
			name:    "anthropic",
			ai:      config.AIConfig{Provider: "anthropic", APIKey: "k", BaseURL: "https://api.anthropic.com/v1", Model: "m", Timeout: 30},
			wantAPI: apiAnthropic,
		},
		{
			name:    "openai compatible gateway",
			ai:      config.AIConfig{Provider: "openai", APIKey: "k", BaseURL: "https://gateway.local/v1", Model: "m", Timeout: 30},
			wantAPI: apiOpenAI,
		},
		{name: "missing key", ai: config.AIConfig{Provider: "openai"}, wantErr: true},
		{name: "unknown provider", ai: config.AIConfig{Provider: "cohere", APIKey: "k"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClientFromConfig(tt.ai, limits, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewClientFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.wantAPI == "" {
				if _, ok := client.(*MockClient); !ok {
					t.Errorf("expected *MockClient, got %T", client)
				}
				return
			}
			c, ok := client.(*Client)
			if !ok {
				t.Fatalf("expected *Client, got %T", client)
			}
			if c.apiType != tt.wantAPI || c.maxRetries != limits.MaxRetries {
				t.Errorf("apiType = %s, maxRetries = %d", c.apiType, c.maxRetries)
			}
		})
	}
}

func TestNewFromConfigMockRoundTrip(t *testing.T) {
	a, err := NewFromConfig(config.AIConfig{Provider: "mock"}, config.DefaultLimits(), nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := a.Generate(context.Background(), PromptSpec{
		Operation: OpPremiseOptions,
		Data:      StoryPrompt{Concept: "a lighthouse keeper"},
		JSON:      true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out == "" {
		t.Error("expected canned premise options")
	}
}
