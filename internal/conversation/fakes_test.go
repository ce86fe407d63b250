package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu        sync.Mutex
	latest    *models.Conversation
	loadErr   error
	saveErr   error
	deleteErr error
	saves     []models.Conversation
	deleted   []string
	nextID    int
}

func (s *fakeStore) LatestConversation(_ context.Context, _ string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.latest, nil
}

func (s *fakeStore) SaveConversation(_ context.Context, conv models.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saves = append(s.saves, conv)
	if conv.ID != "" {
		return conv.ID, nil
	}
	s.nextID++
	return fmt.Sprintf("conv-%d", s.nextID), nil
}

func (s *fakeStore) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) setSaveErr(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

// inserts counts saves that carried no id.
func (s *fakeStore) inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.saves {
		if c.ID == "" {
			n++
		}
	}
	return n
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

type generateCall struct {
	persona persona.Persona
	history []models.Message
	text    string
}

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls []generateCall
	// block, when set, is waited on before replying.
	block chan struct{}
	// started is signalled when a call begins.
	started chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, p persona.Persona, history []models.Message, text string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, generateCall{persona: p, history: history, text: text})
	block, started := g.block, g.started
	reply, err := g.reply, g.err
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if reply == "" {
		reply = "echo: " + text
	}
	return reply, nil
}

func (g *fakeGenerator) setErr(err error) {
	g.mu.Lock()
	g.err = err
	g.mu.Unlock()
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGenerator) lastCall() generateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
	d  time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.d)
	return now
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []bool
}

func (n *recordingNotifier) Composing(_ string, active bool) {
	n.mu.Lock()
	n.events = append(n.events, active)
	n.mu.Unlock()
}

func testPrefs() models.Preferences {
	return models.Preferences{
		Name:               "Asha",
		Age:                24,
		CommunicationStyle: models.StyleCasual,
		Context: models.PreferenceContext{
			Occupation:         "engineer",
			Interests:          []string{"music"},
			Hobbies:            []string{"running"},
			LanguagePreference: models.LanguageEnglish,
		},
	}
}
