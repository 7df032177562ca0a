package story

import (
	"sort"
	"strings"
	"time"

	storyerrors "github.com/dotcommander/imaginator/pkg/imaginator/errors"
)

const (
	DefaultActs = 3

	// premiseDelimiter separates trait from consequence in an Egri premise statement
	premiseDelimiter = " leads to "

	// impactScale converts a 0-100 impact score to the 0-5 premise dimension scale
	impactScale = 20.0

	maxSceneScore = 10.0
)

// New creates an empty document: blank premise, no characters or scenes
func New(id, ownerID, title string, now time.Time) *Document {
	return &Document{
		ID:         id,
		Title:      title,
		OwnerID:    ownerID,
		Characters: []Character{},
		Scenes:     []Scene{},
		Structure: Structure{
			Format: FormatScreenplay,
			Acts:   DefaultActs,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PremiseFromOption derives a premise from a premise-selection option.
// The title is split on " leads to "; trait is the first segment and consequence
// the second. Without the delimiter the whole title is the trait.
func PremiseFromOption(opt DecisionOption) Premise {
	trait, consequence := opt.Title, ""
	if parts := strings.Split(opt.Title, premiseDelimiter); len(parts) > 1 {
		trait, consequence = parts[0], parts[1]
	}

	return Premise{
		ID:                 opt.ID,
		Statement:          opt.Title,
		Trait:              trait,
		Consequence:        consequence,
		Strength:           opt.Impact.Premise / impactScale,
		Provability:        opt.Impact.Structure / impactScale,
		ConflictPotential:  opt.Impact.Character / impactScale,
		PhilosophicalDepth: opt.Impact.Theme / impactScale,
		Examples:           append([]string(nil), opt.Examples...),
	}
}

// ReplacePremise swaps in a new premise
func (d *Document) ReplacePremise(p Premise, now time.Time) *Document {
	d.Premise = p
	d.UpdatedAt = now
	return d
}

// AttachCharacter appends a character, keeping creation order.
// At most one protagonist and one antagonist may exist.
func (d *Document) AttachCharacter(c Character, now time.Time) error {
	if strings.TrimSpace(c.ID) == "" {
		return storyerrors.NewValidationError("character.id", "character id is required", nil)
	}
	if !c.Role.Valid() {
		return storyerrors.NewValidationError("character.role", "unknown role", c.Role)
	}
	for _, existing := range d.Characters {
		if existing.ID == c.ID {
			return storyerrors.NewValidationError("character.id", "duplicate character id", c.ID)
		}
		if existing.Role == c.Role && (c.Role == RoleProtagonist || c.Role == RoleAntagonist) {
			return storyerrors.NewValidationError("character.role", "story already has a "+string(c.Role), c.Role)
		}
	}

	d.Characters = append(d.Characters, c)
	d.UpdatedAt = now
	return nil
}

// AttachScene inserts a scene in position order. Positions must be unique and 1-based.
func (d *Document) AttachScene(s Scene, now time.Time) error {
	if s.Position < 1 {
		return storyerrors.NewValidationError("scene.position", "position must be 1 or greater", s.Position)
	}
	if s.PremiseAdvancement < 0 || s.PremiseAdvancement > maxSceneScore {
		return storyerrors.NewValidationError("scene.premise_advancement", "score must be within [0,10]", s.PremiseAdvancement)
	}
	if s.ConflictLevel < 0 || s.ConflictLevel > maxSceneScore {
		return storyerrors.NewValidationError("scene.conflict_level", "score must be within [0,10]", s.ConflictLevel)
	}
	for _, existing := range d.Scenes {
		if existing.Position == s.Position {
			return storyerrors.NewValidationError("scene.position", "duplicate scene position", s.Position)
		}
	}

	if s.FrameworkBeats == nil {
		s.FrameworkBeats = map[Framework]string{}
	}
	if s.CharacterDevelopments == nil {
		s.CharacterDevelopments = map[string]string{}
	}

	d.Scenes = append(d.Scenes, s)
	sort.SliceStable(d.Scenes, func(i, j int) bool {
		return d.Scenes[i].Position < d.Scenes[j].Position
	})
	d.Structure.TotalScenes = len(d.Scenes)
	d.UpdatedAt = now
	return nil
}

// NextScenePosition returns the position a newly generated scene should take
func (d *Document) NextScenePosition() int {
	next := 1
	for _, s := range d.Scenes {
		if s.Position >= next {
			next = s.Position + 1
		}
	}
	return next
}

// RefreshHealth recomputes and caches the health snapshot
func (d *Document) RefreshHealth() Health {
	d.Health = Score(d)
	return d.Health
}

func (d *Document) characterByRole(role Role) (Character, bool) {
	for _, c := range d.Characters {
		if c.Role == role {
			return c, true
		}
	}
	return Character{}, false
}

func (d *Document) Protagonist() (Character, bool) {
	return d.characterByRole(RoleProtagonist)
}

func (d *Document) Antagonist() (Character, bool) {
	return d.characterByRole(RoleAntagonist)
}

// Summary returns a copy without characters and scenes, as listings return it
func (d *Document) Summary() *Document {
	s := *d
	s.Premise.Examples = append([]string(nil), d.Premise.Examples...)
	s.Characters = []Character{}
	s.Scenes = []Scene{}
	return &s
}

// Clone returns a deep copy
func (d *Document) Clone() *Document {
	c := *d
	c.Premise.Examples = append([]string(nil), d.Premise.Examples...)

	c.Characters = make([]Character, len(d.Characters))
	for i, ch := range d.Characters {
		ch.Physiology.DistinguishingFeatures = append([]string(nil), ch.Physiology.DistinguishingFeatures...)
		ch.Sociology.Relationships = append([]string(nil), ch.Sociology.Relationships...)
		ch.Psychology.Fears = append([]string(nil), ch.Psychology.Fears...)
		ch.Psychology.Flaws = append([]string(nil), ch.Psychology.Flaws...)
		ch.Psychology.Strengths = append([]string(nil), ch.Psychology.Strengths...)
		c.Characters[i] = ch
	}

	c.Scenes = make([]Scene, len(d.Scenes))
	for i, s := range d.Scenes {
		beats := make(map[Framework]string, len(s.FrameworkBeats))
		for k, v := range s.FrameworkBeats {
			beats[k] = v
		}
		devs := make(map[string]string, len(s.CharacterDevelopments))
		for k, v := range s.CharacterDevelopments {
			devs[k] = v
		}
		s.FrameworkBeats = beats
		s.CharacterDevelopments = devs
		c.Scenes[i] = s
	}
	return &c
}
