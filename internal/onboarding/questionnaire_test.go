package onboarding

import (
	"errors"
	"testing"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeAnswers() Answers {
	return Answers{
		KeyName:               "Asha",
		KeyAge:                "23",
		KeyWork:               "College student",
		KeyInterests:          "Music, travel, ",
		KeyFavoriteTopics:     "Movies,Tech news",
		KeyHobbies:            "Chess",
		KeyCommunicationStyle: "casual",
		KeyLanguagePreference: "hinglish",
	}
}

func TestSteps_Order(t *testing.T) {
	want := []string{
		KeyName, KeyAge, KeyWork, KeyInterests, KeyFavoriteTopics,
		KeyHobbies, KeyCommunicationStyle, KeyLanguagePreference,
	}
	var got []string
	for _, s := range Steps() {
		got = append(got, s.Key)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, len(want), Total())
}

func TestStep_Validate(t *testing.T) {
	byKey := map[string]Step{}
	for _, s := range Steps() {
		byKey[s.Key] = s
	}

	tests := []struct {
		key     string
		value   string
		wantMsg string
	}{
		{KeyName, "A", "Please enter your name"},
		{KeyName, " Al ", ""},
		{KeyAge, "0", "Please enter a valid age"},
		{KeyAge, "abc", "Please enter a valid age"},
		{KeyAge, "19", ""},
		{KeyWork, "ab", "Please tell me what you do"},
		{KeyInterests, ",,,", "Please share some interests"},
		{KeyInterests, "art", ""},
		{KeyHobbies, "", "Please share some hobbies"},
		{KeyFavoriteTopics, "xy", "Please share some topics"},
		{KeyCommunicationStyle, "loud", "Please select your preferred style"},
		{KeyCommunicationStyle, "mixed", ""},
		{KeyLanguagePreference, "", "Please select your preferred language"},
		{KeyLanguagePreference, "hindi", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key+"/"+tt.value, func(t *testing.T) {
			err := byKey[tt.key].Validate(tt.value)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var ae *AnswerError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.wantMsg, ae.Message)
			assert.True(t, errors.Is(err, ErrInvalidAnswer))
		})
	}
}

func TestQuestionnaire_Walkthrough(t *testing.T) {
	q := New()
	a := completeAnswers()

	assert.Equal(t, "Hey! I'm excited to meet you! What's your name?", q.Question())

	for i, s := range Steps() {
		cur, ok := q.Current()
		require.True(t, ok)
		assert.Equal(t, s.Key, cur.Key)
		assert.Equal(t, i, q.Index())
		require.NoError(t, q.Answer(a[s.Key]))
		if s.Key == KeyName {
			assert.Equal(t, "Nice to meet you, Asha! How old are you?", q.Question())
		}
	}

	assert.True(t, q.Done())
	assert.ErrorIs(t, q.Answer("more"), ErrComplete)

	prefs, err := q.Build()
	require.NoError(t, err)
	assert.Equal(t, "Asha", prefs.Name)
	assert.Equal(t, 23, prefs.Age)
	assert.Equal(t, models.AgeGroupYoungAdult, prefs.Context.AgeGroup)
	assert.Equal(t, []string{"Music", "travel"}, prefs.Context.Interests)
	assert.Equal(t, []string{"Movies", "Tech news"}, prefs.Context.FavoriteTopics)
	assert.Equal(t, models.LanguageHinglish, prefs.Context.LanguagePreference)
	assert.True(t, prefs.Traits.LanguageMixing)
	assert.True(t, prefs.Traits.CasualTalk)
}

func TestQuestionnaire_RejectDoesNotAdvance(t *testing.T) {
	q := New()
	err := q.Answer("A")
	require.Error(t, err)
	assert.Equal(t, 0, q.Index())
	assert.Empty(t, q.Answers())
}

func TestQuestionnaire_Back(t *testing.T) {
	q := New()
	require.NoError(t, q.Answer("Asha"))
	q.Back()
	assert.Equal(t, 0, q.Index())
	assert.Equal(t, "Asha", q.Answers()[KeyName])
	q.Back()
	assert.Equal(t, 0, q.Index())
}

func TestQuestionnaire_BuildIncomplete(t *testing.T) {
	q := New()
	require.NoError(t, q.Answer("Asha"))
	_, err := q.Build()
	assert.Error(t, err)
}

func TestBuild_Invalid(t *testing.T) {
	a := completeAnswers()
	a[KeyAge] = "-1"
	delete(a, KeyHobbies)

	_, err := Build(a)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAnswer)
	assert.Contains(t, err.Error(), "age")
	assert.Contains(t, err.Error(), "hobbies")
}
