package agent

import "github.com/dotcommander/imaginator/internal/domain/story"

// StoryPrompt is the template data for every story operation.
// Concept is only read by premise_options; Position and Context by scene;
// Format and FormatGuide by export.
type StoryPrompt struct {
	Concept     string
	Story       *story.Document
	Position    int
	Context     string
	Format      story.Format
	FormatGuide string
}
