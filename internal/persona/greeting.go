package persona

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/raphaelgruber/feelfree-go/internal/models"
)

// ClearedGreeting replaces the history after the user clears the chat.
const ClearedGreeting = "Chat history cleared! How can I help you today?"

// Greeting is the welcome message for a fresh session. It follows the
// language preference and mentions the interests when there are any.
func Greeting(prefs models.Preferences) string {
	p := prefs.WithDefaults()
	name := p.Name
	interests := joinList(p.Context.Interests)
	has := interests != ""

	switch p.Context.LanguagePreference {
	case models.LanguageHinglish:
		if has {
			return fmt.Sprintf("Hey %s! 👋 Kya haal chaal? I remember you're interested in %s! Kuch naya batao, what's happening? 😊", name, interests)
		}
		return fmt.Sprintf("Hey %s! 👋 Kya haal chaal? Kuch naya batao, what's happening? 😊", name)
	case models.LanguageHindi:
		if has {
			return fmt.Sprintf("नमस्ते %s! 👋 कैसे हो? मुझे याद है आप %s में रुचि रखते हैं! कुछ नया सुनाओ! 😊", name, interests)
		}
		return fmt.Sprintf("नमस्ते %s! 👋 कैसे हो? कुछ नया सुनाओ! 😊", name)
	default:
		if has {
			return fmt.Sprintf("Hey %s! 👋 How's it going? I remember you're interested in %s! What's new with you? 😊", name, interests)
		}
		return fmt.Sprintf("Hey %s! 👋 How's it going? What's new with you? 😊", name)
	}
}

var greetingSets = map[models.LanguageMode][]string{
	models.LanguageHinglish: {
		"Arrey %s! 👋 Kya haal chaal? Miss you yaar! Batao, what's new?",
		"Oye %s! 😊 Finally you're here! Kya chal raha hai life mein?",
		"Hey buddy %s! 👋 Bohot time ho gaya! Tell me everything!",
	},
	models.LanguageHindi: {
		"अरे %s! 👋 कैसे हो दोस्त? बहुत दिन हो गए!",
		"वाह %s! 😊 आखिरकार आ गए! कैसा चल रहा है सब?",
		"हे %s! बहुत दिन बाद! सब कुछ सुनाओ!",
	},
	models.LanguageEnglish: {
		"Hey %s! 👋 I've missed you! How's everything?",
		"There you are, %s! 😊 Finally! What's been happening?",
		"Buddy! %s! 👋 It's been too long! Tell me everything!",
	},
}

// Greeter picks one of the short "welcome back" lines at random.
type Greeter struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGreeter creates a greeter. A nil src uses a randomly seeded source.
func NewGreeter(src rand.Source) *Greeter {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Greeter{rnd: rand.New(src)}
}

// Greet returns a welcome-back line for prefs.
func (g *Greeter) Greet(prefs models.Preferences) string {
	p := prefs.WithDefaults()
	set, ok := greetingSets[p.Context.LanguagePreference]
	if !ok {
		set = greetingSets[models.LanguageEnglish]
	}
	g.mu.Lock()
	i := g.rnd.IntN(len(set))
	g.mu.Unlock()
	return fmt.Sprintf(set[i], p.Name)
}
