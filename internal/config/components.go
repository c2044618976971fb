package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Amendments visibility values
const (
	AmendmentsVisibilityAll          = "all"
	AmendmentsVisibilityParticipants = "participants"
)

// ComponentSettings toggles the features of one questions component
type ComponentSettings struct {
	VotesEnabled              bool   `toml:"votes_enabled" json:"votes_enabled"`
	VotesHidden               bool   `toml:"votes_hidden" json:"votes_hidden"`
	VotesBlocked              bool   `toml:"votes_blocked" json:"votes_blocked"`
	EndorsementsEnabled       bool   `toml:"endorsements_enabled" json:"endorsements_enabled"`
	CommentsEnabled           bool   `toml:"comments_enabled" json:"comments_enabled"`
	QuestionLengthMax         int    `toml:"question_length_max" json:"question_length_max"`
	AnswersWithCosts          bool   `toml:"answers_with_costs" json:"answers_with_costs"`
	ParticipatoryTextsEnabled bool   `toml:"participatory_texts_enabled" json:"participatory_texts_enabled"`
	OfficialQuestionsEnabled  bool   `toml:"official_questions_enabled" json:"official_questions_enabled"`
	QuestionAnsweringEnabled  bool   `toml:"question_answering_enabled" json:"question_answering_enabled"`
	PublishAnswersImmediately bool   `toml:"publish_answers_immediately" json:"publish_answers_immediately"`
	CreationEnabled           bool   `toml:"creation_enabled" json:"creation_enabled"`
	QuestionEditBeforeMinutes int    `toml:"question_edit_before_minutes" json:"question_edit_before_minutes"`
	AmendmentsVisibility      string `toml:"amendments_visibility" json:"amendments_visibility"`
}

// DefaultComponentSettings returns the settings used when nothing is configured
func DefaultComponentSettings() ComponentSettings {
	return ComponentSettings{
		VotesEnabled:              true,
		EndorsementsEnabled:       true,
		CommentsEnabled:           true,
		QuestionLengthMax:         500,
		OfficialQuestionsEnabled:  true,
		QuestionAnsweringEnabled:  true,
		PublishAnswersImmediately: true,
		QuestionEditBeforeMinutes: 5,
		AmendmentsVisibility:      AmendmentsVisibilityAll,
	}
}

// VotesAvailable reports whether vote counts can be shown and sorted on
func (s ComponentSettings) VotesAvailable() bool {
	return s.VotesEnabled && !s.VotesHidden
}

// ComponentRegistry resolves the settings of each component
type ComponentRegistry struct {
	defaults ComponentSettings
	byID     map[int64]ComponentSettings
}

// NewComponentRegistry builds a registry from explicit settings
func NewComponentRegistry(defaults ComponentSettings, byID map[int64]ComponentSettings) *ComponentRegistry {
	if byID == nil {
		byID = make(map[int64]ComponentSettings)
	}
	return &ComponentRegistry{defaults: defaults, byID: byID}
}

// For returns the settings of a component, falling back to the defaults
func (r *ComponentRegistry) For(componentID int64) ComponentSettings {
	if s, ok := r.byID[componentID]; ok {
		return s
	}
	return r.defaults
}

type settingsFile struct {
	Defaults   toml.Primitive            `toml:"defaults"`
	Components map[string]toml.Primitive `toml:"components"`
}

// LoadComponentSettings reads the component settings file.
// A missing file yields a registry with the built-in defaults.
//
// Format:
//
//	[defaults]
//	votes_enabled = true
//
//	[components.12]
//	votes_blocked = true
func LoadComponentSettings(path string) (*ComponentRegistry, error) {
	defaults := DefaultComponentSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewComponentRegistry(defaults, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read component settings: %w", err)
	}

	return ParseComponentSettings(string(data))
}

// ParseComponentSettings parses the TOML content of a settings file
func ParseComponentSettings(content string) (*ComponentRegistry, error) {
	defaults := DefaultComponentSettings()

	var file settingsFile
	md, err := toml.Decode(content, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse component settings: %w", err)
	}

	if md.IsDefined("defaults") {
		if err := md.PrimitiveDecode(file.Defaults, &defaults); err != nil {
			return nil, fmt.Errorf("failed to decode default settings: %w", err)
		}
	}

	byID := make(map[int64]ComponentSettings, len(file.Components))
	for key, prim := range file.Components {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid component id %q in settings", key)
		}
		settings := defaults
		if err := md.PrimitiveDecode(prim, &settings); err != nil {
			return nil, fmt.Errorf("failed to decode settings of component %d: %w", id, err)
		}
		if err := settings.validate(); err != nil {
			return nil, fmt.Errorf("component %d: %w", id, err)
		}
		byID[id] = settings
	}

	if err := defaults.validate(); err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}

	return NewComponentRegistry(defaults, byID), nil
}

func (s ComponentSettings) validate() error {
	if s.QuestionLengthMax < 0 {
		return fmt.Errorf("question_length_max must not be negative")
	}
	switch s.AmendmentsVisibility {
	case AmendmentsVisibilityAll, AmendmentsVisibilityParticipants:
	default:
		return fmt.Errorf("unknown amendments_visibility %q", s.AmendmentsVisibility)
	}
	return nil
}
