package story

import "time"

// Role is the dramatic function a character holds in the story
type Role string

const (
	RoleProtagonist       Role = "protagonist"
	RoleAntagonist        Role = "antagonist"
	RoleMentor            Role = "mentor"
	RoleAlly              Role = "ally"
	RoleThresholdGuardian Role = "threshold_guardian"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleProtagonist, RoleAntagonist, RoleMentor, RoleAlly, RoleThresholdGuardian:
		return true
	}
	return false
}

// Framework names a story-structure theory a scene beat can be tied to
type Framework string

const (
	FrameworkSaveTheCat  Framework = "save_the_cat"
	FrameworkHeroJourney Framework = "hero_journey"
	FrameworkAristotle   Framework = "aristotle"
	FrameworkEgri        Framework = "egri"
)

// Valid reports whether f is one of the known frameworks
func (f Framework) Valid() bool {
	switch f {
	case FrameworkSaveTheCat, FrameworkHeroJourney, FrameworkAristotle, FrameworkEgri:
		return true
	}
	return false
}

// Format is the target rendering of a finished story
type Format string

const (
	FormatScreenplay Format = "screenplay"
	FormatNovel      Format = "novel"
	FormatStagePlay  Format = "stage_play"
	FormatTVSeries   Format = "tv_series"
	FormatGame       Format = "game"
)

// Formats lists every supported target format in presentation order
var Formats = []Format{FormatScreenplay, FormatNovel, FormatStagePlay, FormatTVSeries, FormatGame}

// Valid reports whether f is one of the supported formats
func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Premise is the controlling idea the story is built to prove.
// The four dimensions are stored on the 0-5 scale produced by Impact/20.
type Premise struct {
	ID                 string   `json:"id"`
	Statement          string   `json:"statement"`
	Trait              string   `json:"trait"`
	Consequence        string   `json:"consequence"`
	Strength           float64  `json:"strength"`
	Provability        float64  `json:"provability"`
	ConflictPotential  float64  `json:"conflict_potential"`
	PhilosophicalDepth float64  `json:"philosophical_depth"`
	Examples           []string `json:"examples"`
}

type Physiology struct {
	Age                    int      `json:"age"`
	Appearance             string   `json:"appearance"`
	DistinguishingFeatures []string `json:"distinguishing_features"`
}

type Sociology struct {
	Background    string   `json:"background"`
	Occupation    string   `json:"occupation"`
	Education     string   `json:"education"`
	Relationships []string `json:"relationships"`
}

type Psychology struct {
	Motivation string   `json:"motivation"`
	Fears      []string `json:"fears"`
	Flaws      []string `json:"flaws"`
	Strengths  []string `json:"strengths"`
	MoralCode  string   `json:"moral_code"`
}

// Character is a three-dimensional participant in the story
type Character struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	Physiology Physiology `json:"physiology"`
	Sociology  Sociology  `json:"sociology"`
	Psychology Psychology `json:"psychology"`
	Premise    string     `json:"premise"`
}

// Perspectives holds the three renderings of a scene. Empty means not generated yet.
type Perspectives struct {
	Objective   string `json:"objective"`
	Protagonist string `json:"protagonist"`
	Antagonist  string `json:"antagonist"`
}

// Scene is an ordered narrative unit
type Scene struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	Content               string               `json:"content"`
	Position              int                  `json:"position"`
	FrameworkBeats        map[Framework]string `json:"framework_beats"`
	PremiseAdvancement    float64              `json:"premise_advancement"`
	ConflictLevel         float64              `json:"conflict_level"`
	CharacterDevelopments map[string]string    `json:"character_developments"`
	Perspectives          Perspectives         `json:"perspectives"`
}

type Structure struct {
	Format      Format `json:"format"`
	Acts        int    `json:"acts"`
	TotalScenes int    `json:"total_scenes"`
}

// Health holds the derived quality scores. Overall is always the mean of the other six.
type Health struct {
	PremiseClarity      float64 `json:"premise_clarity"`
	StructuralIntegrity float64 `json:"structural_integrity"`
	CharacterDepth      float64 `json:"character_depth"`
	PacingEffectiveness float64 `json:"pacing_effectiveness"`
	ConflictPower       float64 `json:"conflict_power"`
	ThematicUnity       float64 `json:"thematic_unity"`
	Overall             float64 `json:"overall"`
}

// FrameworkCompliance is populated externally and never derived in-core
type FrameworkCompliance struct {
	Egri        float64 `json:"egri"`
	Aristotle   float64 `json:"aristotle"`
	SaveTheCat  float64 `json:"save_the_cat"`
	HeroJourney float64 `json:"hero_journey"`
}

// Document is the aggregate root for one story
type Document struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	OwnerID    string              `json:"owner_id"`
	Premise    Premise             `json:"premise"`
	Characters []Character         `json:"characters"`
	Scenes     []Scene             `json:"scenes"`
	Structure  Structure           `json:"structure"`
	Health     Health              `json:"health"`
	Frameworks FrameworkCompliance `json:"frameworks"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// DecisionType is the stage a decision point belongs to
type DecisionType string

const (
	DecisionPremiseSelection       DecisionType = "premise_selection"
	DecisionCharacterConfiguration DecisionType = "character_configuration"
	DecisionSceneChoice            DecisionType = "scene_choice"
	DecisionPlotStructure          DecisionType = "plot_structure"
)

// Impact scores an option on four 0-100 axes
type Impact struct {
	Premise   float64 `json:"premise"`
	Character float64 `json:"character"`
	Structure float64 `json:"structure"`
	Theme     float64 `json:"theme"`
}

// DecisionOption is one immutable branch offered at a decision point
type DecisionOption struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Impact      Impact   `json:"impact"`
	Analysis    string   `json:"analysis"`
	Examples    []string `json:"examples"`
}

// DecisionPoint is a transient branching choice; it is never stored on the document
type DecisionPoint struct {
	ID             string           `json:"id"`
	Type           DecisionType     `json:"type"`
	Context        string           `json:"context"`
	Options        []DecisionOption `json:"options"`
	Recommendation string           `json:"recommendation,omitempty"`
	Degraded       bool             `json:"degraded"`
}

// Option looks up an option by id
func (d *DecisionPoint) Option(id string) (DecisionOption, bool) {
	for _, opt := range d.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return DecisionOption{}, false
}

// DecisionRecord is the history entry written when a decision is resolved
type DecisionRecord struct {
	ID                string       `json:"id"`
	StoryID           string       `json:"story_id"`
	OwnerID           string       `json:"owner_id"`
	Type              DecisionType `json:"type"`
	Context           string       `json:"context"`
	OptionID          string       `json:"option_id"`
	OptionTitle       string       `json:"option_title"`
	OptionDescription string       `json:"option_description"`
	Impact            Impact       `json:"impact"`
	CreatedAt         time.Time    `json:"created_at"`
}
