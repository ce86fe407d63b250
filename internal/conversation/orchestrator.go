package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
)

// Generator is the language-model endpoint. history holds the messages
// before text, oldest first.
type Generator interface {
	Generate(ctx context.Context, p persona.Persona, history []models.Message, text string) (string, error)
}

// Notifier is told when a reply starts and stops being composed.
type Notifier interface {
	Composing(userID string, active bool)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(userID string, active bool)

// Composing calls f.
func (f NotifierFunc) Composing(userID string, active bool) { f(userID, active) }

// Status is the outcome of an accepted exchange.
type Status string

const (
	StatusReplied Status = "replied"
	StatusFailed  Status = "failed"
)

// Exchange is the result of one Submit. UserMessage is always set for an
// accepted exchange; Reply only when Status is StatusReplied.
type Exchange struct {
	Status      Status          `json:"status"`
	UserMessage models.Message  `json:"user_message"`
	Reply       *models.Message `json:"reply,omitempty"`
	// PersistErr is the last failed save, if any. Local state is kept.
	PersistErr error `json:"-"`
}

const (
	composeDelayPerChar = 20 * time.Millisecond
	maxComposeDelay     = 2 * time.Second
)

// ComposeDelay is the cosmetic typing delay for a reply to text.
func ComposeDelay(text string) time.Duration {
	d := time.Duration(len([]rune(text))) * composeDelayPerChar
	return min(d, maxComposeDelay)
}

// Orchestrator drives request/response cycles for one session. At most
// one exchange runs at a time; Submit rejects the rest with ErrBusy.
type Orchestrator struct {
	session  *Manager
	gen      Generator
	notifier Notifier
	logger   *slog.Logger
	delay    bool
	sleep    func(context.Context, time.Duration) error

	busy   atomic.Bool
	closed atomic.Bool

	mu      sync.RWMutex
	prefs   models.Preferences
	persona *persona.Persona
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithNotifier sets the composing notifier.
func WithNotifier(n Notifier) OrchestratorOption {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithComposeDelay turns on the cosmetic typing delay.
func WithComposeDelay(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) { o.delay = enabled }
}

// withSleep replaces the delay implementation in tests.
func withSleep(sleep func(context.Context, time.Duration) error) OrchestratorOption {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// NewOrchestrator creates an orchestrator over an initialized session.
func NewOrchestrator(session *Manager, gen Generator, prefs models.Preferences, logger *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		session: session,
		gen:     gen,
		logger:  logger.With("component", "orchestrator"),
		sleep:   sleepCtx,
		prefs:   prefs.Clone(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetPreferences replaces the preferences. The persona is recomposed
// before the next model call.
func (o *Orchestrator) SetPreferences(prefs models.Preferences) {
	o.mu.Lock()
	o.prefs = prefs.Clone()
	o.persona = nil
	o.mu.Unlock()
}

// Preferences returns the current preferences.
func (o *Orchestrator) Preferences() models.Preferences {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.prefs.Clone()
}

// Busy reports whether an exchange is in flight.
func (o *Orchestrator) Busy() bool { return o.busy.Load() }

// Closed reports whether Close has retired the orchestrator.
func (o *Orchestrator) Closed() bool { return o.closed.Load() }

// claim takes the single-flight slot, or reports why it can't.
func (o *Orchestrator) claim() error {
	if o.busy.CompareAndSwap(false, true) {
		return nil
	}
	if o.closed.Load() {
		return ErrClosed
	}
	return ErrBusy
}

// Clear resets the session to the cleared notice. It holds the same slot
// as Submit, so no exchange can interleave with the reset.
func (o *Orchestrator) Clear(ctx context.Context) error {
	if err := o.claim(); err != nil {
		return err
	}
	defer o.busy.Store(false)
	return o.session.Reset(ctx)
}

// Close retires the orchestrator. It fails with ErrBusy while an exchange
// is in flight. Afterwards Submit and Clear return ErrClosed.
func (o *Orchestrator) Close() error {
	if o.closed.Load() {
		return nil
	}
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	// The slot is never released again.
	o.closed.Store(true)
	return nil
}

// Session returns the underlying session manager.
func (o *Orchestrator) Session() *Manager { return o.session }

func (o *Orchestrator) currentPersona() persona.Persona {
	o.mu.RLock()
	p := o.persona
	o.mu.RUnlock()
	if p != nil {
		return *p
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.persona == nil {
		composed := persona.Compose(o.prefs)
		o.persona = &composed
	}
	return *o.persona
}

// Submit runs one exchange. Empty input, concurrent calls and a closed
// orchestrator are rejected with no side effects. Once accepted, the user
// message is appended and kept even if the model call fails; the returned
// error is then the model error and the Exchange has StatusFailed. The
// user retries by submitting again.
func (o *Orchestrator) Submit(ctx context.Context, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}
	if err := o.claim(); err != nil {
		return Exchange{}, err
	}
	defer o.busy.Store(false)

	userID := o.session.UserID()
	log := o.logger.With("user_id", userID)

	history := o.session.Messages()
	userMsg, err := o.session.Append(ctx, models.RoleUser, text)
	var persistErr *PersistError
	switch {
	case errors.As(err, &persistErr):
	case err != nil:
		return Exchange{}, err
	}
	ex := Exchange{UserMessage: userMsg}
	if persistErr != nil {
		ex.PersistErr = persistErr
	}

	if o.notifier != nil {
		o.notifier.Composing(userID, true)
		defer o.notifier.Composing(userID, false)
	}

	reply, err := o.generate(ctx, history, text)
	if err != nil {
		log.Error("exchange failed", "error", err)
		ex.Status = StatusFailed
		return ex, err
	}

	replyMsg, err := o.session.Append(ctx, models.RoleAssistant, reply)
	var replyPersistErr *PersistError
	switch {
	case errors.As(err, &replyPersistErr):
		ex.PersistErr = replyPersistErr
	case err != nil:
		ex.Status = StatusFailed
		return ex, fmt.Errorf("append reply: %w", err)
	default:
		// The full list was saved, so the remote copy has caught up.
		ex.PersistErr = nil
	}

	ex.Status = StatusReplied
	ex.Reply = &replyMsg
	log.Debug("exchange completed", "reply_len", len(replyMsg.Content), "persisted", ex.PersistErr == nil)
	return ex, nil
}

func (o *Orchestrator) generate(ctx context.Context, history []models.Message, text string) (string, error) {
	if o.gen == nil {
		return "", ErrNoGenerator
	}
	p := o.currentPersona()

	if o.delay {
		if err := o.sleep(ctx, ComposeDelay(text)); err != nil {
			return "", err
		}
	}

	reply, err := o.gen.Generate(ctx, p, history, text)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
