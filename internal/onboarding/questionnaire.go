package onboarding

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/raphaelgruber/feelfree-go/internal/models"
)

// ErrComplete is returned by Answer once every step has been answered.
var ErrComplete = errors.New("questionnaire already complete")

// Questionnaire walks the steps one at a time. Each step finalizes one
// field; nothing is persisted until Build is called after the last step.
type Questionnaire struct {
	step    int
	answers Answers
}

// New starts an empty questionnaire.
func New() *Questionnaire {
	return &Questionnaire{answers: Answers{}}
}

// Current returns the step awaiting an answer. ok is false when done.
func (q *Questionnaire) Current() (step Step, ok bool) {
	if q.Done() {
		return Step{}, false
	}
	return steps[q.step], true
}

// Question renders the current prompt.
func (q *Questionnaire) Question() string {
	s, ok := q.Current()
	if !ok {
		return ""
	}
	return s.Question(q.answers)
}

// Index is the zero-based number of the current step.
func (q *Questionnaire) Index() int { return q.step }

// Answer validates value for the current step and advances on success.
func (q *Questionnaire) Answer(value string) error {
	s, ok := q.Current()
	if !ok {
		return ErrComplete
	}
	if err := s.Validate(value); err != nil {
		return err
	}
	q.answers[s.Key] = strings.TrimSpace(value)
	q.step++
	return nil
}

// Back returns to the previous step, keeping its answer as a draft.
func (q *Questionnaire) Back() {
	if q.step > 0 {
		q.step--
	}
}

// Done reports whether every step has been answered.
func (q *Questionnaire) Done() bool { return q.step >= len(steps) }

// Answers returns a copy of the answers collected so far.
func (q *Questionnaire) Answers() Answers {
	out := make(Answers, len(q.answers))
	for k, v := range q.answers {
		out[k] = v
	}
	return out
}

// Build turns the collected answers into a Preference Record.
func (q *Questionnaire) Build() (models.Preferences, error) {
	if !q.Done() {
		return models.Preferences{}, fmt.Errorf("build preferences: %d of %d steps answered", q.step, len(steps))
	}
	return Build(q.answers)
}

// Build validates a complete answer set in one go and builds the record.
// Every step is re-checked so callers that skip the step-by-step flow get
// the same rules.
func Build(a Answers) (models.Preferences, error) {
	var errs []error
	for _, s := range steps {
		if err := s.Validate(a[s.Key]); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return models.Preferences{}, err
	}

	age, _ := strconv.Atoi(strings.TrimSpace(a[KeyAge]))
	style := models.CommunicationStyle(strings.TrimSpace(a[KeyCommunicationStyle]))
	lang := models.LanguageMode(strings.TrimSpace(a[KeyLanguagePreference]))

	prefs := models.Preferences{
		Name:               strings.TrimSpace(a[KeyName]),
		Age:                age,
		CommunicationStyle: style,
		Context: models.PreferenceContext{
			Occupation:         strings.TrimSpace(a[KeyWork]),
			AgeGroup:           models.AgeGroupFor(age),
			Interests:          models.SplitList(a[KeyInterests]),
			Hobbies:            models.SplitList(a[KeyHobbies]),
			FavoriteTopics:     models.SplitList(a[KeyFavoriteTopics]),
			LanguagePreference: lang,
		},
		Traits: models.DeriveTraits(style, lang),
	}
	if err := prefs.Validate(); err != nil {
		return models.Preferences{}, err
	}
	return prefs, nil
}
