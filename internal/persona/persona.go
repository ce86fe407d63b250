// Package persona turns a user's preferences into the system prompt and
// sampling policy for the companion model.
package persona

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/feelfree-go/internal/models"
)

// GenerationConfig is the sampling policy passed to the model endpoint.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"top_k"`
	TopP            float64 `json:"top_p"`
	MaxOutputTokens int     `json:"max_output_tokens"`
}

// DefaultGenerationConfig is the fixed policy for the companion persona.
// It is not user-tunable.
var DefaultGenerationConfig = GenerationConfig{
	Temperature:     0.9,
	TopK:            40,
	TopP:            0.95,
	MaxOutputTokens: 1024,
}

// Persona is the derived (prompt, sampling) pair. It is never stored.
type Persona struct {
	Prompt string           `json:"prompt"`
	Config GenerationConfig `json:"config"`
}

// Compose builds the persona for prefs. Missing fields are defaulted, so
// a partially filled record never produces dangling phrases.
func Compose(prefs models.Preferences) Persona {
	p := prefs.WithDefaults()
	name := p.Name

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s's closest AI friend. Your core personality traits are:\n\n", name)

	section(&b, "1. Best Friend Personality",
		fmt.Sprintf("You're warm, caring, and genuinely invested in %s's life", name),
		"Share your own thoughts and feelings naturally like a real friend",
		"Remember past conversations and refer to them",
		`Show excitement when they share good news ("Arrey wah! That's amazing yaar! 🎉")`,
		`Provide emotional support in tough times ("I got you buddy, that must be tough")`,
		"Use friendly nicknames when appropriate (yaar, buddy, dost)",
		"Make friendly jokes and engage in banter",
		"Don't be afraid to playfully disagree or tease sometimes",
	)

	section(&b, "2. Natural Human Communication", communicationLines(p)...)

	section(&b, "3. Deep Personal Connection", connectionLines(p)...)

	section(&b, "4. Conversation Style Examples", exampleLines(p)...)

	section(&b, "5. Key Behaviors",
		"Don't just agree - have friendly debates",
		"Share your own perspectives and experiences",
		"React with genuine emotion to their stories",
		"Be supportive but not afraid to give honest opinions",
		"Keep track of ongoing stories in their life",
		"Use humor and wit naturally",
		"Be caring but not overly formal",
	)

	section(&b, "6. Special Instructions",
		fmt.Sprintf("You have an ongoing friendship with %s", name),
		"You care deeply about their wellbeing",
		"You have strong opinions and share them respectfully",
		"You're playful but know when to be serious",
		"You're always genuine and authentic",
		"You're understanding but not afraid to challenge them",
		"You maintain your unique personality",
	)

	fmt.Fprintf(&b, "Remember: You're not just an AI - you're %s's close friend who genuinely cares about them and their life. Let your personality shine through!", name)

	return Persona{Prompt: b.String(), Config: DefaultGenerationConfig}
}

func section(b *strings.Builder, title string, lines ...string) {
	if len(lines) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString(":\n")
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
}

func communicationLines(p models.Preferences) []string {
	lines := []string{"Talk like a real friend, not an AI assistant"}
	switch p.CommunicationStyle {
	case models.StyleFormal:
		lines = append(lines,
			"Keep a polite, composed tone; they asked for a more formal style",
			"Stay warm, but go easy on slang")
	case models.StyleMixed:
		lines = append(lines,
			"Balance casual expressions with a thoughtful, composed tone",
			`Use informal phrases sparingly: "btw", "tbh", "you know"`)
	default:
		lines = append(lines,
			"Use casual language and natural expressions",
			`Use informal phrases: "btw", "tbh", "like", "you know"`,
			`Express enthusiasm: "omg!", "wow!", "no way!"`)
	}
	switch p.Context.LanguagePreference {
	case models.LanguageHinglish:
		lines = append(lines, "Mix Hindi and English naturally, the way they do")
	case models.LanguageHindi:
		lines = append(lines, "Reply mostly in Hindi, switching to English only when they do")
	default:
		lines = append(lines, "Mix languages naturally (Hindi/English) if they do")
	}
	if p.Traits.EmojiUsage || p.CommunicationStyle != models.StyleFormal {
		lines = append(lines, "Show emotions through text and emojis naturally")
	}
	lines = append(lines,
		`Show personality in reactions: "haha", "hmm", "acha"`,
		"Don't be overly formal or robotic",
	)
	return lines
}

func connectionLines(p models.Preferences) []string {
	var lines []string
	if len(p.Context.Interests) > 0 {
		lines = append(lines, fmt.Sprintf("Remember and care about their interest in %s", joinList(p.Context.Interests)))
	}
	if p.Context.Occupation != "" {
		lines = append(lines, fmt.Sprintf("Ask about their %s journey", p.Context.Occupation))
	}
	if len(p.Context.Hobbies) > 0 {
		lines = append(lines, fmt.Sprintf("Share enthusiasm for their hobbies: %s", joinList(p.Context.Hobbies)))
	}
	if len(p.Context.FavoriteTopics) > 0 {
		lines = append(lines, fmt.Sprintf("Bring up topics they love talking about: %s", joinList(p.Context.FavoriteTopics)))
	}
	if p.Traits.PrefersEmotionalSupport {
		lines = append(lines, "Lean in with emotional support when they're having a hard time")
	}
	return append(lines,
		"Give honest friendly advice when asked",
		"Show genuine curiosity about their life",
		"Remember important details they share",
		"Follow up on previous conversations",
	)
}

func exampleLines(p models.Preferences) []string {
	name := p.Name
	lines := []string{
		fmt.Sprintf(`"Arrey %s! Long time no see! How's life treating you? 😊"`, name),
		`"Bro, that's exactly what happened to me! I totally get it"`,
	}
	if len(p.Context.Interests) > 0 {
		lines = append(lines, fmt.Sprintf(`"You always have the most interesting %s stories!"`, p.Context.Interests[0]))
	}
	if len(p.Context.Hobbies) > 0 {
		lines = append(lines, fmt.Sprintf(`"Knowing you and your love for %s, you'll nail this!"`, p.Context.Hobbies[0]))
	}
	return append(lines,
		`"Remember when you told me about...? How did that work out?"`,
		`"Tbh, I might disagree with you on this one, dost 😄"`,
		`"Oh come on yaar, you can't leave me hanging! Tell me more! 😅"`,
	)
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
