package agent

import "context"

type AIClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteJSONWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Operations name the prompt templates under prompts/
const (
	OpPremiseOptions   = "premise_options"
	OpCharacterOptions = "character_options"
	OpScene            = "scene"
	OpAnalysis         = "analysis"
	OpExport           = "export"
)

// PromptSpec is a structured request for generated text. Data feeds the
// operation's template; JSON asks the model for a single JSON object.
type PromptSpec struct {
	Operation string
	Data      any
	JSON      bool
}
