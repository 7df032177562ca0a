package core

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/domain/story"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
	"github.com/dotcommander/imaginator/pkg/imaginator/utils"
)

const defaultSceneScore = 5.0

var validate = validator.New(validator.WithRequiredStructEnabled())

// Result is either a parsed provider answer or the ProviderError explaining why there is none
type Result[T any] struct {
	Value T
	Err   *storyerrors.ProviderError
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

func failed[T any](operation string, err error) Result[T] {
	return Result[T]{Err: storyerrors.NewProviderError(operation, err)}
}

func malformed[T any](operation string, err error) Result[T] {
	return failed[T](operation, fmt.Errorf("%w: %v", storyerrors.ErrMalformedResponse, err))
}

func (r Result[T]) Ok() bool {
	return r.Err == nil
}

type impactPayload struct {
	Premise   float64 `json:"premise" validate:"gte=0,lte=100"`
	Character float64 `json:"character" validate:"gte=0,lte=100"`
	Structure float64 `json:"structure" validate:"gte=0,lte=100"`
	Theme     float64 `json:"theme" validate:"gte=0,lte=100"`
}

type optionPayload struct {
	ID          string        `json:"id"`
	Title       string        `json:"title" validate:"required"`
	Description string        `json:"description"`
	Impact      impactPayload `json:"impact"`
	Analysis    string        `json:"analysis"`
	Examples    []string      `json:"examples"`
}

type optionsPayload struct {
	Options        []optionPayload `json:"options" validate:"required,min=1,max=8,dive"`
	Recommendation string          `json:"recommendation"`
}

// parsedOptions is the validated content of an options answer
type parsedOptions struct {
	Options        []story.DecisionOption
	Recommendation string
}

// parseOptions strictly decodes a decision options answer. Options without an
// id are numbered <idPrefix>_<n>; duplicate ids make the whole answer malformed.
func parseOptions(operation, raw, idPrefix string) Result[parsedOptions] {
	var payload optionsPayload
	if err := utils.ParseJSONResponse(raw, &payload); err != nil {
		return malformed[parsedOptions](operation, err)
	}

	for i := range payload.Options {
		o := &payload.Options[i]
		o.ID = strings.TrimSpace(o.ID)
		o.Title = strings.TrimSpace(o.Title)
		if o.ID == "" {
			o.ID = fmt.Sprintf("%s_%d", idPrefix, i+1)
		}
	}
	if err := validate.Struct(payload); err != nil {
		return malformed[parsedOptions](operation, err)
	}

	seen := make(map[string]bool, len(payload.Options))
	options := make([]story.DecisionOption, 0, len(payload.Options))
	for _, o := range payload.Options {
		if seen[o.ID] {
			return malformed[parsedOptions](operation, fmt.Errorf("duplicate option id %q", o.ID))
		}
		seen[o.ID] = true

		options = append(options, story.DecisionOption{
			ID:          o.ID,
			Title:       o.Title,
			Description: strings.TrimSpace(o.Description),
			Impact:      story.Impact(o.Impact),
			Analysis:    strings.TrimSpace(o.Analysis),
			Examples:    nonEmpty(o.Examples),
		})
	}

	return ok(parsedOptions{
		Options:        options,
		Recommendation: strings.TrimSpace(payload.Recommendation),
	})
}

type perspectivesPayload struct {
	Objective   string `json:"objective"`
	Protagonist string `json:"protagonist"`
	Antagonist  string `json:"antagonist"`
}

type scenePayload struct {
	Title                 string              `json:"title"`
	Content               string              `json:"content" validate:"required"`
	PremiseAdvancement    *float64            `json:"premise_advancement" validate:"omitempty,gte=0,lte=10"`
	ConflictLevel         *float64            `json:"conflict_level" validate:"omitempty,gte=0,lte=10"`
	FrameworkBeats        map[string]string   `json:"framework_beats"`
	CharacterDevelopments map[string]string   `json:"character_developments"`
	Perspectives          perspectivesPayload `json:"perspectives"`
}

// parseScene strictly decodes a generated scene. Missing optional fields take
// the documented defaults: title "Scene N", scores 5, objective perspective = content.
// Beats for frameworks outside the known set are dropped.
func parseScene(raw, id string, position int) Result[story.Scene] {
	var payload scenePayload
	if err := utils.ParseJSONResponse(raw, &payload); err != nil {
		return malformed[story.Scene](agent.OpScene, err)
	}
	payload.Content = strings.TrimSpace(payload.Content)
	if err := validate.Struct(payload); err != nil {
		return malformed[story.Scene](agent.OpScene, err)
	}

	scene := story.Scene{
		ID:                    id,
		Title:                 strings.TrimSpace(payload.Title),
		Content:               payload.Content,
		Position:              position,
		FrameworkBeats:        map[story.Framework]string{},
		PremiseAdvancement:    defaultSceneScore,
		ConflictLevel:         defaultSceneScore,
		CharacterDevelopments: map[string]string{},
		Perspectives: story.Perspectives{
			Objective:   strings.TrimSpace(payload.Perspectives.Objective),
			Protagonist: strings.TrimSpace(payload.Perspectives.Protagonist),
			Antagonist:  strings.TrimSpace(payload.Perspectives.Antagonist),
		},
	}
	if scene.Title == "" {
		scene.Title = fmt.Sprintf("Scene %d", position)
	}
	if payload.PremiseAdvancement != nil {
		scene.PremiseAdvancement = *payload.PremiseAdvancement
	}
	if payload.ConflictLevel != nil {
		scene.ConflictLevel = *payload.ConflictLevel
	}
	if scene.Perspectives.Objective == "" {
		scene.Perspectives.Objective = scene.Content
	}
	for name, beat := range payload.FrameworkBeats {
		if f := story.Framework(name); f.Valid() {
			scene.FrameworkBeats[f] = beat
		}
	}
	for characterID, note := range payload.CharacterDevelopments {
		scene.CharacterDevelopments[characterID] = note
	}

	return ok(scene)
}

type analysisPayload struct {
	Analysis        string   `json:"analysis" validate:"required"`
	Recommendations []string `json:"recommendations"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
}

func parseAnalysis(raw string) Result[Analysis] {
	var payload analysisPayload
	if err := utils.ParseJSONResponse(raw, &payload); err != nil {
		return malformed[Analysis](agent.OpAnalysis, err)
	}
	payload.Analysis = strings.TrimSpace(payload.Analysis)
	if err := validate.Struct(payload); err != nil {
		return malformed[Analysis](agent.OpAnalysis, err)
	}

	return ok(Analysis{
		Analysis:        payload.Analysis,
		Recommendations: nonEmpty(payload.Recommendations),
		Strengths:       nonEmpty(payload.Strengths),
		Weaknesses:      nonEmpty(payload.Weaknesses),
	})
}

// nonEmpty trims entries and drops blank ones; the result is never nil
func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
