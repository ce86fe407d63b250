package models

import (
	"errors"
	"fmt"
	"strings"
)

// CommunicationStyle is the tone the user asked for during onboarding.
type CommunicationStyle string

const (
	StyleCasual CommunicationStyle = "casual"
	StyleFormal CommunicationStyle = "formal"
	StyleMixed  CommunicationStyle = "mixed"
)

// Valid reports whether s is one of the known styles.
func (s CommunicationStyle) Valid() bool {
	switch s {
	case StyleCasual, StyleFormal, StyleMixed:
		return true
	}
	return false
}

// LanguageMode is the language the user is most comfortable chatting in.
type LanguageMode string

const (
	LanguageEnglish  LanguageMode = "english"
	LanguageHindi    LanguageMode = "hindi"
	LanguageHinglish LanguageMode = "hinglish"
)

// Valid reports whether l is one of the known language modes.
func (l LanguageMode) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageHindi, LanguageHinglish:
		return true
	}
	return false
}

// AgeGroup buckets an age for prompt personalization.
type AgeGroup string

const (
	AgeGroupTeen        AgeGroup = "teen"
	AgeGroupYoungAdult  AgeGroup = "young_adult"
	AgeGroupAdult       AgeGroup = "adult"
	AgeGroupMatureAdult AgeGroup = "mature_adult"
)

// AgeGroupFor returns the bucket for age.
func AgeGroupFor(age int) AgeGroup {
	switch {
	case age < 18:
		return AgeGroupTeen
	case age < 25:
		return AgeGroupYoungAdult
	case age < 35:
		return AgeGroupAdult
	default:
		return AgeGroupMatureAdult
	}
}

// ErrInvalidPreferences is wrapped by every Validate failure.
var ErrInvalidPreferences = errors.New("invalid preferences")

// Preferences is the onboarding answer record stored under
// profiles.user_preferences. Context carries the fields the persona
// interpolates; Traits are derived from the style and language answers.
type Preferences struct {
	Name               string             `json:"name"`
	Age                int                `json:"age"`
	CommunicationStyle CommunicationStyle `json:"communication_style"`
	Context            PreferenceContext  `json:"context"`
	Traits             PersonalityTraits  `json:"personality_traits"`
}

// PreferenceContext holds the descriptive part of the record.
type PreferenceContext struct {
	Occupation         string       `json:"occupation"`
	AgeGroup           AgeGroup     `json:"age_group"`
	Interests          []string     `json:"interests"`
	Hobbies            []string     `json:"hobbies"`
	FavoriteTopics     []string     `json:"favorite_topics"`
	LanguagePreference LanguageMode `json:"language_preference"`
}

// PersonalityTraits are flags derived from the user's answers.
type PersonalityTraits struct {
	CasualTalk              bool `json:"casual_talk"`
	LanguageMixing          bool `json:"language_mixing"`
	EmojiUsage              bool `json:"emoji_usage"`
	LikesHumor              bool `json:"likes_humor"`
	PrefersEmotionalSupport bool `json:"prefers_emotional_support"`
}

// DeriveTraits computes the trait flags for a style and language.
func DeriveTraits(style CommunicationStyle, lang LanguageMode) PersonalityTraits {
	return PersonalityTraits{
		CasualTalk:              style == StyleCasual,
		LanguageMixing:          lang == LanguageHinglish,
		EmojiUsage:              true,
		LikesHumor:              true,
		PrefersEmotionalSupport: true,
	}
}

// DefaultName stands in for a missing display name.
const DefaultName = "friend"

// WithDefaults returns a copy with every optional field filled in, so
// consumers never have to check for presence: blank name becomes
// DefaultName, unknown enums fall back to casual/english, lists are
// trimmed and never nil.
func (p Preferences) WithDefaults() Preferences {
	out := p
	out.Name = strings.TrimSpace(p.Name)
	if out.Name == "" {
		out.Name = DefaultName
	}
	if !out.CommunicationStyle.Valid() {
		out.CommunicationStyle = StyleCasual
	}
	out.Context.Occupation = strings.TrimSpace(p.Context.Occupation)
	if !out.Context.LanguagePreference.Valid() {
		out.Context.LanguagePreference = LanguageEnglish
	}
	out.Context.Interests = cleanList(p.Context.Interests)
	out.Context.Hobbies = cleanList(p.Context.Hobbies)
	out.Context.FavoriteTopics = cleanList(p.Context.FavoriteTopics)
	if out.Context.AgeGroup == "" && p.Age > 0 {
		out.Context.AgeGroup = AgeGroupFor(p.Age)
	}
	return out
}

// Validate checks the invariant of a completed onboarding: every required
// field is present and well formed.
func (p Preferences) Validate() error {
	var errs []error
	if len([]rune(strings.TrimSpace(p.Name))) < 2 {
		errs = append(errs, fieldError("name", "must be at least 2 characters"))
	}
	if p.Age <= 0 {
		errs = append(errs, fieldError("age", "must be a positive number"))
	}
	if strings.TrimSpace(p.Context.Occupation) == "" {
		errs = append(errs, fieldError("occupation", "is required"))
	}
	if len(cleanList(p.Context.Interests)) == 0 {
		errs = append(errs, fieldError("interests", "need at least one entry"))
	}
	if len(cleanList(p.Context.Hobbies)) == 0 {
		errs = append(errs, fieldError("hobbies", "need at least one entry"))
	}
	if !p.CommunicationStyle.Valid() {
		errs = append(errs, fieldError("communication_style", fmt.Sprintf("unknown value %q", p.CommunicationStyle)))
	}
	if !p.Context.LanguagePreference.Valid() {
		errs = append(errs, fieldError("language_preference", fmt.Sprintf("unknown value %q", p.Context.LanguagePreference)))
	}
	return errors.Join(errs...)
}

func fieldError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidPreferences, field, reason)
}

// PreferencesUpdate carries an explicit edit. Nil fields are left as they are.
type PreferencesUpdate struct {
	Name               *string             `json:"name,omitempty"`
	Age                *int                `json:"age,omitempty"`
	Occupation         *string             `json:"occupation,omitempty"`
	Interests          []string            `json:"interests,omitempty"`
	Hobbies            []string            `json:"hobbies,omitempty"`
	FavoriteTopics     []string            `json:"favorite_topics,omitempty"`
	CommunicationStyle *CommunicationStyle `json:"communication_style,omitempty"`
	Language           *LanguageMode       `json:"language_preference,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u PreferencesUpdate) Empty() bool {
	return u.Name == nil && u.Age == nil && u.Occupation == nil &&
		u.Interests == nil && u.Hobbies == nil && u.FavoriteTopics == nil &&
		u.CommunicationStyle == nil && u.Language == nil
}

// Apply merges u into p and recomputes the derived fields.
func (p Preferences) Apply(u PreferencesUpdate) Preferences {
	out := p
	if u.Name != nil {
		out.Name = strings.TrimSpace(*u.Name)
	}
	if u.Age != nil {
		out.Age = *u.Age
		out.Context.AgeGroup = AgeGroupFor(*u.Age)
	}
	if u.Occupation != nil {
		out.Context.Occupation = strings.TrimSpace(*u.Occupation)
	}
	if u.Interests != nil {
		out.Context.Interests = cleanList(u.Interests)
	}
	if u.Hobbies != nil {
		out.Context.Hobbies = cleanList(u.Hobbies)
	}
	if u.FavoriteTopics != nil {
		out.Context.FavoriteTopics = cleanList(u.FavoriteTopics)
	}
	if u.CommunicationStyle != nil {
		out.CommunicationStyle = *u.CommunicationStyle
	}
	if u.Language != nil {
		out.Context.LanguagePreference = *u.Language
	}
	out.Traits = DeriveTraits(out.CommunicationStyle, out.Context.LanguagePreference)
	return out
}

// Clone returns a deep copy so callers can't alias the slices.
func (p Preferences) Clone() Preferences {
	out := p
	out.Context.Interests = append([]string(nil), p.Context.Interests...)
	out.Context.Hobbies = append([]string(nil), p.Context.Hobbies...)
	out.Context.FavoriteTopics = append([]string(nil), p.Context.FavoriteTopics...)
	return out
}
