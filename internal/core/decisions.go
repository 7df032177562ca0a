package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/domain/story"
	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

// Begin asks for premise options for a concept and moves an idle story to
// awaiting_premise_choice. Provider trouble degrades to the built-in options.
func (e *Engine) Begin(ctx context.Context, storyID, concept string) (Snapshot, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return Snapshot{}, storyerrors.NewValidationError("concept", "concept must not be empty", nil)
	}

	s, err := e.claim(storyID)
	if err != nil {
		return Snapshot{}, err
	}
	defer s.release()

	if state := s.State(); state != StateIdle {
		return Snapshot{}, fmt.Errorf("begin from %s: %w", state, storyerrors.ErrInvalidTransition)
	}

	point := e.premiseDecision(ctx, storyID, concept)
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	s.advance(StateAwaitingPremiseChoice, point)
	e.logger.Info("premise options ready",
		"story_id", storyID,
		"options", len(point.Options),
		"degraded", point.Degraded)
	e.notify(EventDecisionReady, s, point.Degraded)

	return s.Snapshot(), nil
}

// Choose resolves the pending decision with one of its options
func (e *Engine) Choose(ctx context.Context, storyID, optionID string) (Snapshot, error) {
	s, err := e.claim(storyID)
	if err != nil {
		return Snapshot{}, err
	}
	defer s.release()

	staged, state, point := s.stage()
	if state != StateAwaitingPremiseChoice && state != StateAwaitingCharacterChoice {
		return Snapshot{}, fmt.Errorf("choose from %s: %w", state, storyerrors.ErrInvalidTransition)
	}

	opt, ok := point.Option(optionID)
	if !ok {
		return Snapshot{}, storyerrors.NewValidationError("option_id", "no such option in the current decision", optionID)
	}

	if state == StateAwaitingPremiseChoice {
		err = e.choosePremise(ctx, s, staged, point, opt)
	} else {
		err = e.chooseCharacters(ctx, s, staged, point, opt)
	}
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

func (e *Engine) choosePremise(ctx context.Context, s *Session, staged *story.Document, point *story.DecisionPoint, opt story.DecisionOption) error {
	staged.ReplacePremise(story.PremiseFromOption(opt), e.now())
	staged.RefreshHealth()

	next := e.characterDecision(ctx, staged)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.persist(ctx, staged); err != nil {
		return err
	}

	s.commit(staged, StateAwaitingCharacterChoice, next)
	e.recordDecision(ctx, staged, point, opt)

	e.logger.Info("premise chosen",
		"story_id", staged.ID,
		"premise", staged.Premise.Statement,
		"character_options_degraded", next.Degraded)
	e.notify(EventStoryUpdated, s, next.Degraded)
	return nil
}

func (e *Engine) chooseCharacters(ctx context.Context, s *Session, staged *story.Document, point *story.DecisionPoint, opt story.DecisionOption) error {
	now := e.now()
	protagonist, antagonist := characterPair(staged.Premise.Statement, now.UnixNano())
	if err := staged.AttachCharacter(protagonist, now); err != nil {
		return err
	}
	if err := staged.AttachCharacter(antagonist, now); err != nil {
		return err
	}

	scene, degraded := e.generateScene(ctx, staged, openingSceneContext)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := staged.AttachScene(scene, e.now()); err != nil {
		return err
	}
	staged.RefreshHealth()

	if err := e.persist(ctx, staged); err != nil {
		return err
	}

	s.commit(staged, StateResolved, nil)
	e.recordDecision(ctx, staged, point, opt)

	e.logger.Info("characters chosen",
		"story_id", staged.ID,
		"configuration", opt.ID,
		"scene_degraded", degraded,
		"overall_health", staged.Health.Overall)
	e.notify(EventStoryUpdated, s, degraded)
	return nil
}

// NextScene generates one more scene for a resolved story. sceneContext
// describes what the scene should do; blank asks for the next escalation.
func (e *Engine) NextScene(ctx context.Context, storyID, sceneContext string) (Snapshot, error) {
	s, err := e.claim(storyID)
	if err != nil {
		return Snapshot{}, err
	}
	defer s.release()

	staged, state, _ := s.stage()
	if state != StateResolved {
		return Snapshot{}, fmt.Errorf("next scene from %s: %w", state, storyerrors.ErrInvalidTransition)
	}
	if _, ok := staged.Protagonist(); !ok {
		return Snapshot{}, storyerrors.NewPreconditionError("next_scene", "story has no protagonist")
	}
	if _, ok := staged.Antagonist(); !ok {
		return Snapshot{}, storyerrors.NewPreconditionError("next_scene", "story has no antagonist")
	}

	sceneContext = strings.TrimSpace(sceneContext)
	if sceneContext == "" {
		sceneContext = continuationSceneContext
	}

	scene, degraded := e.generateScene(ctx, staged, sceneContext)
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	if err := staged.AttachScene(scene, e.now()); err != nil {
		return Snapshot{}, err
	}
	staged.RefreshHealth()

	if err := e.persist(ctx, staged); err != nil {
		return Snapshot{}, err
	}
	s.commit(staged, StateResolved, nil)

	// scores are 0-10; history impact is 0-100
	point := &story.DecisionPoint{
		ID:      e.newID(),
		Type:    story.DecisionSceneChoice,
		Context: sceneContext,
	}
	e.recordDecision(ctx, staged, point, story.DecisionOption{
		ID:          scene.ID,
		Title:       scene.Title,
		Description: scene.Perspectives.Objective,
		Impact: story.Impact{
			Premise:   scene.PremiseAdvancement * 10,
			Structure: scene.ConflictLevel * 10,
		},
	})

	e.logger.Info("scene added",
		"story_id", storyID,
		"position", scene.Position,
		"degraded", degraded,
		"overall_health", staged.Health.Overall)
	e.notify(EventStoryUpdated, s, degraded)

	return s.Snapshot(), nil
}

func (e *Engine) premiseDecision(ctx context.Context, storyID, concept string) *story.DecisionPoint {
	point := &story.DecisionPoint{
		ID:             e.newID(),
		Type:           story.DecisionPremiseSelection,
		Context:        "Premise selection for concept: " + concept,
		Recommendation: premiseRecommendation,
	}

	res := e.requestOptions(ctx, agent.PromptSpec{
		Operation: agent.OpPremiseOptions,
		Data:      agent.StoryPrompt{Concept: concept},
		JSON:      true,
	}, "premise")
	if !res.Ok() {
		e.logger.Warn("premise options degraded to built-in set",
			"story_id", storyID,
			"malformed", res.Err.Malformed(),
			"error", res.Err)
		point.Options = fallbackPremiseOptions()
		point.Degraded = true
		return point
	}

	point.Options = res.Value.Options
	if res.Value.Recommendation != "" {
		point.Recommendation = res.Value.Recommendation
	}
	return point
}

func (e *Engine) characterDecision(ctx context.Context, doc *story.Document) *story.DecisionPoint {
	point := &story.DecisionPoint{
		ID:             e.newID(),
		Type:           story.DecisionCharacterConfiguration,
		Context:        "Character configuration for premise: " + doc.Premise.Statement,
		Recommendation: characterRecommendation,
	}

	res := e.requestOptions(ctx, agent.PromptSpec{
		Operation: agent.OpCharacterOptions,
		Data:      agent.StoryPrompt{Story: doc},
		JSON:      true,
	}, "characters")
	if !res.Ok() {
		e.logger.Warn("character options degraded to built-in set",
			"story_id", doc.ID,
			"malformed", res.Err.Malformed(),
			"error", res.Err)
		point.Options = fallbackCharacterOptions(doc.Premise)
		point.Degraded = true
		return point
	}

	point.Options = res.Value.Options
	if res.Value.Recommendation != "" {
		point.Recommendation = res.Value.Recommendation
	}
	return point
}

func (e *Engine) requestOptions(ctx context.Context, spec agent.PromptSpec, idPrefix string) Result[parsedOptions] {
	raw, err := e.generate(ctx, spec)
	if err != nil {
		return failed[parsedOptions](spec.Operation, err)
	}
	return parseOptions(spec.Operation, raw, idPrefix)
}

// generateScene asks for the scene at the next free position. The bool
// reports whether the built-in placeholder scene was used instead.
func (e *Engine) generateScene(ctx context.Context, doc *story.Document, sceneContext string) (story.Scene, bool) {
	position := doc.NextScenePosition()
	id := fmt.Sprintf("scene_%d", e.now().UnixNano())

	raw, err := e.generate(ctx, agent.PromptSpec{
		Operation: agent.OpScene,
		Data: agent.StoryPrompt{
			Story:    doc,
			Position: position,
			Context:  sceneContext,
		},
		JSON: true,
	})

	var res Result[story.Scene]
	if err != nil {
		res = failed[story.Scene](agent.OpScene, err)
	} else {
		res = parseScene(raw, id, position)
	}

	if !res.Ok() {
		e.logger.Warn("scene degraded to placeholder",
			"story_id", doc.ID,
			"position", position,
			"malformed", res.Err.Malformed(),
			"error", res.Err)
		return fallbackScene(id, position), true
	}
	return res.Value, false
}
