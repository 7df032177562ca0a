package core

import (
	"fmt"

	"github.com/dotcommander/imaginator/internal/domain/story"
)

const (
	premiseRecommendation = "Choose the premise that resonates most deeply with your vision and offers the richest conflict potential."

	characterRecommendation = "Choose the configuration whose opposition tests the premise hardest."

	openingSceneContext = "Opening scene that establishes the world and introduces the protagonist"

	continuationSceneContext = "Continue the story, escalating the conflict between protagonist and antagonist"

	antagonistPremisePrefix = "The opposite of "
)

// fallbackPremiseOptions is offered when the provider cannot produce premise options
func fallbackPremiseOptions() []story.DecisionOption {
	return []story.DecisionOption{
		{
			ID:          "premise_1",
			Title:       "Compassion leads to redemption",
			Description: "A story exploring how genuine empathy can transform both giver and receiver",
			Impact:      story.Impact{Premise: 90, Character: 85, Structure: 80, Theme: 95},
			Analysis:    "This premise offers rich character development opportunities and universal appeal",
			Examples:    []string{"Les Misérables", "A Christmas Carol"},
		},
		{
			ID:          "premise_2",
			Title:       "Obsession leads to destruction",
			Description: "A cautionary tale about the dangers of single-minded pursuit",
			Impact:      story.Impact{Premise: 95, Character: 90, Structure: 85, Theme: 88},
			Analysis:    "Creates natural escalation and tragic arc with clear stakes",
			Examples:    []string{"Moby Dick", "Black Swan"},
		},
	}
}

// fallbackCharacterOptions keeps the flow moving when character options cannot be generated
func fallbackCharacterOptions(p story.Premise) []story.DecisionOption {
	trait := p.Trait
	if trait == "" {
		trait = p.Statement
	}
	return []story.DecisionOption{
		{
			ID:          "characters_1",
			Title:       "Direct opposition",
			Description: fmt.Sprintf("A protagonist driven by %s faces an antagonist who stands for its opposite", trait),
			Impact:      story.Impact{Premise: 85, Character: 80, Structure: 80, Theme: 85},
			Analysis:    "Every confrontation tests the premise head on",
			Examples:    []string{},
		},
		{
			ID:          "characters_2",
			Title:       "Mirror image",
			Description: fmt.Sprintf("The antagonist once shared the protagonist's %s and shows where it ends", trait),
			Impact:      story.Impact{Premise: 80, Character: 90, Structure: 75, Theme: 90},
			Analysis:    "The antagonist becomes a warning the protagonist must refuse",
			Examples:    []string{},
		},
	}
}

// characterPair builds the protagonist and antagonist attached when the
// character configuration is chosen. Ids are derived from the clock.
func characterPair(premise string, stamp int64) (story.Character, story.Character) {
	protagonist := story.Character{
		ID:   fmt.Sprintf("char_%d_protagonist", stamp),
		Name: "Alex Morgan",
		Role: story.RoleProtagonist,
		Physiology: story.Physiology{
			Age:                    32,
			Appearance:             "Athletic build, determined eyes",
			DistinguishingFeatures: []string{"Scar on left hand", "Always wears a silver watch"},
		},
		Sociology: story.Sociology{
			Background:    "Middle-class upbringing",
			Occupation:    "Detective",
			Education:     "Criminal Justice degree",
			Relationships: []string{"Partner Sarah", "Mentor Captain Rodriguez"},
		},
		Psychology: story.Psychology{
			Motivation: "Seeking justice for the innocent",
			Fears:      []string{"Failing those who depend on them", "Losing control"},
			Flaws:      []string{"Overly trusting", "Stubborn"},
			Strengths:  []string{"Empathetic", "Persistent", "Intuitive"},
			MoralCode:  "Everyone deserves protection",
		},
		Premise: premise,
	}

	antagonist := story.Character{
		ID:   fmt.Sprintf("char_%d_antagonist", stamp),
		Name: "Marcus Vale",
		Role: story.RoleAntagonist,
		Physiology: story.Physiology{
			Age:                    45,
			Appearance:             "Imposing presence, cold eyes",
			DistinguishingFeatures: []string{"Expensive suits", "Calculating smile"},
		},
		Sociology: story.Sociology{
			Background:    "Wealthy family",
			Occupation:    "Corporate Executive",
			Education:     "MBA from prestigious university",
			Relationships: []string{"Board members", "Political connections"},
		},
		Psychology: story.Psychology{
			Motivation: "Maintaining power and control",
			Fears:      []string{"Exposure", "Loss of status"},
			Flaws:      []string{"Arrogant", "Ruthless"},
			Strengths:  []string{"Strategic mind", "Charismatic", "Resourceful"},
			MoralCode:  "Success justifies any means",
		},
		Premise: antagonistPremisePrefix + premise,
	}

	return protagonist, antagonist
}

func fallbackScene(id string, position int) story.Scene {
	return story.Scene{
		ID:                    id,
		Title:                 fmt.Sprintf("Scene %d", position),
		Content:               "Scene content will be generated here...",
		Position:              position,
		FrameworkBeats:        map[story.Framework]string{},
		PremiseAdvancement:    defaultSceneScore,
		ConflictLevel:         defaultSceneScore,
		CharacterDevelopments: map[string]string{},
		Perspectives: story.Perspectives{
			Objective:   "Objective view of the scene...",
			Protagonist: "How the protagonist experiences this scene...",
			Antagonist:  "How the antagonist interprets these events...",
		},
	}
}

func fallbackAnalysis() Analysis {
	return Analysis{
		Analysis:        "Story analysis will be generated here...",
		Recommendations: []string{"Continue developing the premise", "Add more character depth"},
		Strengths:       []string{"Strong concept", "Clear vision"},
		Weaknesses:      []string{"Needs more development", "Requires deeper analysis"},
		Degraded:        true,
	}
}
