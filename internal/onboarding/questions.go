// Package onboarding implements the first-run questionnaire that produces
// a user's Preference Record.
package onboarding

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/raphaelgruber/feelfree-go/internal/models"
)

// Answer keys, one per step.
const (
	KeyName               = "name"
	KeyAge                = "age"
	KeyWork               = "work"
	KeyInterests          = "interests"
	KeyFavoriteTopics     = "favorite_topics"
	KeyHobbies            = "hobbies"
	KeyCommunicationStyle = "communication_style"
	KeyLanguagePreference = "language_preference"
)

// Kind describes how a step's answer is entered.
type Kind string

const (
	KindText   Kind = "text"
	KindNumber Kind = "number"
	KindSelect Kind = "select"
)

// Option is one choice of a select step.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ErrInvalidAnswer is wrapped by every AnswerError.
var ErrInvalidAnswer = errors.New("invalid answer")

// AnswerError reports why a step rejected its answer. Message is shown to
// the user as is.
type AnswerError struct {
	Key     string
	Message string
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

func (e *AnswerError) Unwrap() error { return ErrInvalidAnswer }

// Answers maps step keys to the raw text the user entered.
type Answers map[string]string

// Step is a single question.
type Step struct {
	Key         string   `json:"key"`
	Kind        Kind     `json:"type"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []Option `json:"options,omitempty"`

	question func(Answers) string
	check    func(string) string
}

// Question renders the prompt, interpolating earlier answers.
func (s Step) Question(a Answers) string {
	return s.question(a)
}

// Validate checks a raw answer. Whitespace is trimmed first.
func (s Step) Validate(value string) error {
	if msg := s.check(strings.TrimSpace(value)); msg != "" {
		return &AnswerError{Key: s.Key, Message: msg}
	}
	return nil
}

func fixed(q string) func(Answers) string {
	return func(Answers) string { return q }
}

func minLen(n int, msg string) func(string) string {
	return func(v string) string {
		if len([]rune(v)) < n {
			return msg
		}
		return ""
	}
}

func oneOf(opts []Option, msg string) func(string) string {
	return func(v string) string {
		for _, o := range opts {
			if o.Value == v {
				return ""
			}
		}
		return msg
	}
}

var (
	styleOptions = []Option{
		{Value: string(models.StyleCasual), Label: "Casual and friendly"},
		{Value: string(models.StyleFormal), Label: "Formal and professional"},
		{Value: string(models.StyleMixed), Label: "Mix of both"},
	}
	languageOptions = []Option{
		{Value: string(models.LanguageEnglish), Label: "English"},
		{Value: string(models.LanguageHindi), Label: "Hindi"},
		{Value: string(models.LanguageHinglish), Label: "Hinglish (Mix of Hindi & English)"},
	}
)

var steps = []Step{
	{
		Key:         KeyName,
		Kind:        KindText,
		Placeholder: "Tell me your name 😊",
		question:    fixed("Hey! I'm excited to meet you! What's your name?"),
		check:       minLen(2, "Please enter your name"),
	},
	{
		Key:         KeyAge,
		Kind:        KindNumber,
		Placeholder: "Your age",
		question: func(a Answers) string {
			return fmt.Sprintf("Nice to meet you, %s! How old are you?", nameOf(a))
		},
		check: func(v string) string {
			if n, err := strconv.Atoi(v); err != nil || n <= 0 {
				return "Please enter a valid age"
			}
			return ""
		},
	},
	{
		Key:         KeyWork,
		Kind:        KindText,
		Placeholder: "E.g., College student, Software Engineer, Business owner...",
		question:    fixed("What keeps you busy these days - studying, working, or something else?"),
		check:       minLen(3, "Please tell me what you do"),
	},
	{
		Key:         KeyInterests,
		Kind:        KindText,
		Placeholder: "E.g., Technology, Movies, Sports, Music, Travel...",
		question: func(a Answers) string {
			return fmt.Sprintf("What kind of things interest you, %s? Could be anything!", nameOf(a))
		},
		check: listOf(3, "Please share some interests"),
	},
	{
		Key:         KeyFavoriteTopics,
		Kind:        KindText,
		Placeholder: "E.g., Life updates, Tech news, Movies, Sports...",
		question:    fixed("What topics do you usually enjoy talking about with friends?"),
		check:       listOf(3, "Please share some topics"),
	},
	{
		Key:         KeyHobbies,
		Kind:        KindText,
		Placeholder: "E.g., Gaming, Reading, Cooking, Working out...",
		question:    fixed("What do you like doing in your free time?"),
		check:       listOf(3, "Please share some hobbies"),
	},
	{
		Key:      KeyCommunicationStyle,
		Kind:     KindSelect,
		Options:  styleOptions,
		question: fixed("How do you prefer chatting? Casual, formal, or mix of both?"),
		check:    oneOf(styleOptions, "Please select your preferred style"),
	},
	{
		Key:      KeyLanguagePreference,
		Kind:     KindSelect,
		Options:  languageOptions,
		question: fixed("Last thing - what language would you be most comfortable chatting in?"),
		check:    oneOf(languageOptions, "Please select your preferred language"),
	},
}

// listOf requires at least n characters and one non-empty comma item.
func listOf(n int, msg string) func(string) string {
	base := minLen(n, msg)
	return func(v string) string {
		if m := base(v); m != "" {
			return m
		}
		if len(models.SplitList(v)) == 0 {
			return msg
		}
		return ""
	}
}

func nameOf(a Answers) string {
	if n := strings.TrimSpace(a[KeyName]); n != "" {
		return n
	}
	return models.DefaultName
}

// Steps returns the questionnaire in order.
func Steps() []Step {
	return append([]Step(nil), steps...)
}

// Total is the number of steps.
func Total() int { return len(steps) }
