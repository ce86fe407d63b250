package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, store *fakeStore, gen Generator, opts ...OrchestratorOption) *Orchestrator {
	t.Helper()
	m := freshManager(t, store)
	return NewOrchestrator(m, gen, testPrefs(), testLogger(), opts...)
}

func TestSubmit_Success(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{reply: "so good to hear from you!"}
	o := newTestOrchestrator(t, store, gen)

	ex, err := o.Submit(context.Background(), "  hey there  ")
	require.NoError(t, err)

	assert.Equal(t, StatusReplied, ex.Status)
	assert.Equal(t, "hey there", ex.UserMessage.Content)
	require.NotNil(t, ex.Reply)
	assert.Equal(t, "so good to hear from you!", ex.Reply.Content)
	assert.NoError(t, ex.PersistErr)

	msgs := o.Session().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)

	assert.Equal(t, 2, store.saveCount(), "one write per append")
	assert.Equal(t, 1, store.inserts())
	assert.False(t, o.Busy())
}

func TestSubmit_GrowsByTwoPerExchange(t *testing.T) {
	o := newTestOrchestrator(t, &fakeStore{}, &fakeGenerator{})
	ctx := context.Background()

	for i, text := range []string{"one", "two", "three"} {
		_, err := o.Submit(ctx, text)
		require.NoError(t, err)
		assert.Len(t, o.Session().Messages(), 1+2*(i+1))
	}
}

func TestSubmit_HistoryAndPersona(t *testing.T) {
	gen := &fakeGenerator{}
	o := newTestOrchestrator(t, &fakeStore{}, gen)

	_, err := o.Submit(context.Background(), "first")
	require.NoError(t, err)

	call := gen.lastCall()
	assert.Equal(t, "first", call.text)
	require.Len(t, call.history, 1, "history holds the messages before the new text")
	assert.Equal(t, models.RoleAssistant, call.history[0].Role)
	assert.Contains(t, call.persona.Prompt, "You are Asha's closest AI friend.")
	assert.Equal(t, 0.9, call.persona.Config.Temperature)
}

func TestSubmit_RecomposesPersonaAfterPreferenceChange(t *testing.T) {
	gen := &fakeGenerator{}
	o := newTestOrchestrator(t, &fakeStore{}, gen)
	ctx := context.Background()

	_, err := o.Submit(ctx, "hi")
	require.NoError(t, err)
	assert.Contains(t, gen.lastCall().persona.Prompt, "Asha")

	prefs := testPrefs()
	prefs.Name = "Meera"
	o.SetPreferences(prefs)

	_, err = o.Submit(ctx, "hi again")
	require.NoError(t, err)
	assert.Contains(t, gen.lastCall().persona.Prompt, "You are Meera's closest AI friend.")
	assert.Equal(t, "Meera", o.Preferences().Name)
}

func TestSubmit_EmptyInput(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{}
	o := newTestOrchestrator(t, store, gen)

	for _, text := range []string{"", "   ", "\n\t"} {
		ex, err := o.Submit(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
		assert.Empty(t, ex.Status)
	}

	assert.Len(t, o.Session().Messages(), 1)
	assert.Zero(t, gen.callCount())
	assert.Zero(t, store.saveCount())
}

func TestSubmit_FailureKeepsUserMessageAndAllowsRetry(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{err: errors.New("endpoint 500")}
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, store, gen, WithNotifier(notifier))
	ctx := context.Background()

	ex, err := o.Submit(ctx, "are you there?")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, ex.Status)
	assert.Nil(t, ex.Reply)
	assert.Equal(t, "are you there?", ex.UserMessage.Content)
	assert.Len(t, o.Session().Messages(), 2, "user message is never rolled back")
	assert.False(t, o.Busy(), "orchestrator re-arms after failure")
	assert.Equal(t, []bool{true, false}, notifier.events)

	gen.setErr(nil)
	ex, err = o.Submit(ctx, "are you there?")
	require.NoError(t, err)
	assert.Equal(t, StatusReplied, ex.Status)
	assert.Len(t, o.Session().Messages(), 4)
	assert.Equal(t, 1, store.inserts())
}

func TestSubmit_NoGenerator(t *testing.T) {
	o := newTestOrchestrator(t, &fakeStore{}, nil)

	ex, err := o.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoGenerator)
	assert.Equal(t, StatusFailed, ex.Status)
	assert.Len(t, o.Session().Messages(), 2)
}

func TestSubmit_EmptyReplyIsFailure(t *testing.T) {
	gen := &fakeGenerator{reply: "   "}
	o := newTestOrchestrator(t, &fakeStore{}, gen)

	ex, err := o.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyReply)
	assert.Equal(t, StatusFailed, ex.Status)
}

func TestSubmit_PersistFailureIsSoft(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("offline")}
	o := newTestOrchestrator(t, store, &fakeGenerator{})

	ex, err := o.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, StatusReplied, ex.Status)
	var pe *PersistError
	assert.ErrorAs(t, ex.PersistErr, &pe)
	assert.Len(t, o.Session().Messages(), 3)
}

func TestSubmit_SingleFlight(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{block: make(chan struct{}), started: make(chan struct{}, 1)}
	o := newTestOrchestrator(t, store, gen)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx, "a")
		done <- err
	}()

	<-gen.started
	assert.True(t, o.Busy())

	_, err := o.Submit(ctx, "b")
	assert.ErrorIs(t, err, ErrBusy)

	close(gen.block)
	require.NoError(t, <-done)

	msgs := o.Session().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "a", msgs[1].Content)
	assert.Equal(t, "echo: a", msgs[2].Content)
	assert.Equal(t, 1, store.inserts())
}

func TestClear_RejectedWhileSubmitting(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{block: make(chan struct{}), started: make(chan struct{}, 1)}
	o := newTestOrchestrator(t, store, gen)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx, "a")
		done <- err
	}()
	<-gen.started

	assert.ErrorIs(t, o.Clear(ctx), ErrBusy)

	close(gen.block)
	require.NoError(t, <-done)
	require.Len(t, o.Session().Messages(), 3)

	require.NoError(t, o.Clear(ctx))
	msgs := o.Session().Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, persona.ClearedGreeting, msgs[0].Content)
	assert.False(t, o.Busy())
}

func TestClose(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{block: make(chan struct{}), started: make(chan struct{}, 1)}
	o := newTestOrchestrator(t, store, gen)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(ctx, "a")
		done <- err
	}()
	<-gen.started

	assert.ErrorIs(t, o.Close(), ErrBusy)
	assert.False(t, o.Closed())

	close(gen.block)
	require.NoError(t, <-done)

	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.True(t, o.Closed())

	_, err := o.Submit(ctx, "b")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, o.Clear(ctx), ErrClosed)
	assert.Len(t, o.Session().Messages(), 3)
}

func TestSubmit_ConcurrentCallers(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(t, store, &fakeGenerator{})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		replied int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Submit(ctx, "ping")
			if err == nil {
				mu.Lock()
				replied++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrBusy)
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, replied, 1)
	assert.Len(t, o.Session().Messages(), 1+2*replied)
	assert.Equal(t, 1, store.inserts(), "never two identifier-less inserts")

	msgs := o.Session().Messages()
	for i := 1; i < len(msgs); i += 2 {
		assert.Equal(t, models.RoleUser, msgs[i].Role)
		assert.Equal(t, models.RoleAssistant, msgs[i+1].Role)
	}
}

func TestSubmit_ComposeDelay(t *testing.T) {
	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	o := newTestOrchestrator(t, &fakeStore{}, &fakeGenerator{}, WithComposeDelay(true), withSleep(sleep))

	_, err := o.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, slept)
}

func TestSubmit_ComposeDelayCancelled(t *testing.T) {
	o := newTestOrchestrator(t, &fakeStore{}, &fakeGenerator{}, WithComposeDelay(true))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex, err := o.Submit(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, ex.Status)
}

func TestComposeDelay(t *testing.T) {
	tests := []struct {
		text string
		want time.Duration
	}{
		{"", 0},
		{"hi", 40 * time.Millisecond},
		{"नमस्ते", 6 * 20 * time.Millisecond},
		{string(make([]byte, 500)), 2 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComposeDelay(tt.text))
	}
}

func TestNotifierFunc(t *testing.T) {
	var got []bool
	n := NotifierFunc(func(userID string, active bool) {
		assert.Equal(t, "user-1", userID)
		got = append(got, active)
	})
	o := newTestOrchestrator(t, &fakeStore{}, &fakeGenerator{}, WithNotifier(n))

	_, err := o.Submit(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, got)
}
