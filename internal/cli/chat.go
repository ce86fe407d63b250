package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/feelfree-go/internal/api"
	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/client"
	"github.com/raphaelgruber/feelfree-go/internal/conversation"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/service"
	"github.com/spf13/cobra"
)

const (
	clearCommand = "/clear"
	requestLimit = 3 * time.Minute
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the chat",
	Long: `Open an interactive chat with your companion.

Type a message and press Enter to send. '/clear' starts the conversation
over. Esc or Ctrl+C leaves the chat; the conversation is kept.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

// exchangeMsg carries the result of one send.
type exchangeMsg struct {
	res *api.ExchangeResponse
	err error
}

// sessionMsg carries a reloaded session, e.g. after /clear.
type sessionMsg struct {
	session *api.ChatSession
	err     error
}

// eventMsg is a server push.
type eventMsg api.Event

// streamClosedMsg reports the event stream ending.
type streamClosedMsg struct{ err error }

// chatModel is the bubbletea model for the chat screen.
type chatModel struct {
	client   *client.Client
	input    textinput.Model
	spinner  spinner.Model
	theme    Theme
	messages []models.Message

	sending   bool
	composing bool
	notice    string
	err       error
	signedOut bool
	quitting  bool
}

// newChatModel creates a chat model showing the given session.
func newChatModel(c *client.Client, session *api.ChatSession) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	m := chatModel{
		client:  c,
		input:   ti,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		theme:   defaultTheme,
	}
	if session != nil {
		m.messages = session.Messages
		m.composing = session.Busy
		m.notice = session.Welcome
	}
	return m
}

// Init starts the spinner.
func (m chatModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.input.SetWidth(max(msg.Width-4, 10))
		return m, nil

	case exchangeMsg:
		m.sending = false
		if msg.err != nil {
			// The server rejected the send, so the optimistic message goes.
			if n := len(m.messages); n > 0 && m.messages[n-1].Role == models.RoleUser {
				m.messages = m.messages[:n-1]
			}
			m.err = msg.err
			return m, nil
		}
		if msg.res.Reply != nil {
			m.messages = append(m.messages, *msg.res.Reply)
		}
		if msg.res.Status == conversation.StatusFailed {
			m.err = errors.New(msg.res.Error)
		}
		if msg.res.PersistError != "" {
			m.notice = "Your messages may not have been saved."
		}
		return m, nil

	case sessionMsg:
		m.sending = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.messages = msg.session.Messages
		m.notice = "Conversation cleared."
		return m, nil

	case eventMsg:
		switch {
		case msg.Event == api.EventComposing:
			m.composing = msg.Active
		case strings.HasPrefix(msg.Event, api.EventAuthPrefix):
			if msg.Event == api.EventAuthPrefix+strings.ToLower(string(auth.EventSignedOut)) {
				m.signedOut = true
				return m, tea.Quit
			}
		}
		return m, nil

	case streamClosedMsg:
		if msg.err != nil {
			m.notice = "Live updates unavailable."
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line or runs a chat command.
func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.sending {
		m.notice = "Still waiting for a reply..."
		return m, nil
	}
	m.input.Reset()
	m.err = nil
	m.notice = ""
	m.sending = true

	if text == clearCommand {
		return m, m.clearSession()
	}
	m.messages = append(m.messages, models.Message{Role: models.RoleUser, Content: text, Timestamp: time.Now().UTC()})
	return m, m.send(text)
}

func (m chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestLimit)
		defer cancel()
		res, err := m.client.Send(ctx, text)
		return exchangeMsg{res: res, err: err}
	}
}

func (m chatModel) clearSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s, err := m.client.Clear(ctx)
		return sessionMsg{session: s, err: err}
	}
}

// View renders the chat screen.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m chatModel) renderContent() string {
	if m.quitting || m.signedOut {
		return m.finalView()
	}

	var b strings.Builder
	b.WriteString(renderTranscript(m.messages, m.theme))
	b.WriteString("\n")
	if m.composing || m.sending {
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), m.theme.hintStyle().Render("typing..."))
	}
	if m.err != nil {
		b.WriteString(m.theme.errorStyle().Render(chatErrorText(m.err)) + "\n")
	}
	if m.notice != "" {
		b.WriteString(m.theme.hintStyle().Render(m.notice) + "\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(m.theme.hintStyle().Render("Enter to send, /clear to start over, Esc to leave"))
	b.WriteString("\n")
	return b.String()
}

func (m chatModel) finalView() string {
	if m.signedOut {
		return m.theme.hintStyle().Render("\nYou were signed out.\n")
	}
	return m.theme.hintStyle().Render("\nSee you soon! Your conversation is saved.\n")
}

// renderTranscript formats messages oldest first.
func renderTranscript(msgs []models.Message, theme Theme) string {
	if len(msgs) == 0 {
		return theme.hintStyle().Render("No messages yet.") + "\n"
	}
	var b strings.Builder
	for _, msg := range msgs {
		who := theme.assistantStyle().Render("FeelFree")
		if msg.Role == models.RoleUser {
			who = theme.userStyle().Render("You")
		}
		stamp := theme.hintStyle().Render(msg.Timestamp.Local().Format("15:04"))
		fmt.Fprintf(&b, "%s %s\n%s\n\n", who, stamp, msg.Content)
	}
	return b.String()
}

func chatErrorText(err error) string {
	switch {
	case errors.Is(err, conversation.ErrBusy):
		return "Still waiting for the previous reply."
	case errors.Is(err, conversation.ErrEmptyMessage):
		return "Message is empty."
	case auth.Code(err) != "":
		return auth.Message(err)
	}
	return err.Error()
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, _, err := authedClient(ctx)
	if err != nil {
		return err
	}
	session, err := c.OpenChat(ctx)
	if errors.Is(err, service.ErrOnboardingIncomplete) {
		return errors.New("finish onboarding first with 'feelfree onboard'")
	}
	if err != nil {
		return userError(err)
	}
	logger.Info("chat opened", "session_id", session.SessionID, "messages", len(session.Messages))

	p := tea.NewProgram(newChatModel(c, session))
	go func() {
		err := c.Events(ctx, func(ev api.Event) error {
			p.Send(eventMsg(ev))
			return nil
		})
		if ctx.Err() == nil {
			if err != nil {
				logger.Warn("event stream ended", "error", err)
			}
			p.Send(streamClosedMsg{err: err})
		}
	}()

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	if m, ok := finalModel.(chatModel); ok && m.signedOut {
		_ = removeCredentials(credsPath)
	}

	// The server keeps the session until the user leaves.
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	if err := c.CloseChat(closeCtx); err != nil {
		logger.Debug("close chat failed", "error", err)
	}
	return nil
}
