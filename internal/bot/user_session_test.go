package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/raine/sellsmart-bot/internal/llm"
	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handlerFunc adapts a function to MessageHandler.
type handlerFunc func(ctx context.Context, s *UserSession, msg SessionMessage)

func (f handlerFunc) HandleSessionMessage(ctx context.Context, s *UserSession, msg SessionMessage) {
	f(ctx, s, msg)
}

// recordingSender is a MessageSender that numbers sent messages from 501.
type recordingSender struct {
	mu       sync.Mutex
	lastID   int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastID == 0 {
		r.lastID = 500
	}
	r.lastID++
	r.sent = append(r.sent, c)
	return tgbotapi.Message{MessageID: r.lastID}, nil
}

func (r *recordingSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (r *recordingSender) statusTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok && strings.HasPrefix(msg.Text, MsgStatusPrefix) {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (r *recordingSender) deletedIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, c := range r.requests {
		if del, ok := c.(tgbotapi.DeleteMessageConfig); ok {
			out = append(out, del.MessageID)
		}
	}
	return out
}

func (r *recordingSender) chatActions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.requests {
		if action, ok := c.(tgbotapi.ChatActionConfig); ok {
			if action.Action == tgbotapi.ChatUploadPhoto {
				n++
			}
		}
	}
	return n
}

// assertTypingStopped waits out any action already in flight, then checks no
// new ones arrive.
func assertTypingStopped(t *testing.T, sender *recordingSender) {
	t.Helper()
	time.Sleep(20 * time.Millisecond)
	n := sender.chatActions()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, n, sender.chatActions(), "typing loop kept running")
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// recordTexts returns a handler that records message texts, panicking on
// "panic" and blocking on "hold" until gate is closed.
func recordTexts(gate <-chan struct{}, holding chan<- struct{}) (MessageHandler, func() []string) {
	var mu sync.Mutex
	var seen []string
	h := handlerFunc(func(ctx context.Context, s *UserSession, msg SessionMessage) {
		mu.Lock()
		seen = append(seen, msg.Text)
		mu.Unlock()

		switch msg.Text {
		case "panic":
			panic("handler exploded")
		case "hold":
			if holding != nil {
				holding <- struct{}{}
			}
			<-gate
		}
	})
	return h, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

// startSession starts a worker with no sender or controller behind it.
func startSession(id int64, handler MessageHandler) *UserSession {
	s := newUserSession(id, nil, nil)
	s.SetHandler(handler)
	s.StartWorker()
	return s
}

func TestUserSession_HandlesMessagesInOrder(t *testing.T) {
	handler, seen := recordTexts(nil, nil)
	s := startSession(10, handler)
	defer s.Stop()

	for _, text := range []string{"photo", "/edit", "Remove the background"} {
		s.Send(SessionMessage{Text: text})
	}
	s.SendSync(SessionMessage{Text: "/reset"})

	assert.Equal(t, []string{"photo", "/edit", "Remove the background", "/reset"}, seen())
}

func TestUserSession_SurvivesHandlerPanic(t *testing.T) {
	handler, seen := recordTexts(nil, nil)
	s := startSession(11, handler)
	defer s.Stop()

	s.SendSync(SessionMessage{Text: "panic"})
	s.SendSync(SessionMessage{Text: "after"})

	assert.Equal(t, []string{"panic", "after"}, seen())
}

func TestUserSession_SendSyncWaitsForHandler(t *testing.T) {
	gate := make(chan struct{})
	holding := make(chan struct{}, 1)
	handler, _ := recordTexts(gate, holding)
	s := startSession(12, handler)
	defer s.Stop()

	returned := make(chan struct{})
	go func() {
		s.SendSync(SessionMessage{Text: "hold"})
		close(returned)
	}()
	waitFor(t, holding, "handler to start")

	select {
	case <-returned:
		t.Fatal("SendSync returned while the handler was still running")
	case <-time.After(30 * time.Millisecond):
	}

	close(gate)
	waitFor(t, returned, "SendSync to return")
}

func TestUserSession_UsersDoNotBlockEachOther(t *testing.T) {
	gate := make(chan struct{})
	holding := make(chan struct{}, 1)
	busyHandler, _ := recordTexts(gate, holding)
	busy := startSession(13, busyHandler)
	defer busy.Stop()
	defer close(gate)

	idleHandler, seen := recordTexts(nil, nil)
	idle := startSession(14, idleHandler)
	defer idle.Stop()

	busy.Send(SessionMessage{Text: "hold"})
	waitFor(t, holding, "first user to block")

	idle.SendSync(SessionMessage{Text: "/details"})
	assert.Equal(t, []string{"/details"}, seen())
}

func TestUserSession_StopReleasesQueuedCallers(t *testing.T) {
	gate := make(chan struct{})
	holding := make(chan struct{}, 1)
	handler, _ := recordTexts(gate, holding)
	s := startSession(15, handler)

	s.Send(SessionMessage{Text: "hold"})
	waitFor(t, holding, "handler to block")

	var waiting []chan struct{}
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		waiting = append(waiting, done)
		s.Send(SessionMessage{Text: "queued", Done: done})
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	close(gate)

	waitFor(t, stopped, "Stop")
	for _, done := range waiting {
		waitFor(t, done, "queued caller release")
	}
}

// gatedAnalysis returns a gateway whose analysis blocks until release is
// closed, then returns the test draft or err.
func gatedAnalysis(started chan<- struct{}, release <-chan struct{}, err error) *stubGateway {
	return &stubGateway{analyze: func(listing.Payload) (*llm.AnalysisResult, error) {
		close(started)
		<-release
		if err != nil {
			return nil, err
		}
		return &llm.AnalysisResult{Draft: testDraft()}, nil
	}}
}

func TestUserSession_LoadingIndicatorFollowsGatewayCall(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "analysis succeeds"},
		{name: "analysis fails", err: llm.ErrAnalysisFailed, wantErr: true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started := make(chan struct{})
			release := make(chan struct{})
			sender := &recordingSender{}
			s := newUserSession(int64(20+i), sender, session.NewController(gatedAnalysis(started, release, tt.err)))
			s.typingEvery = 5 * time.Millisecond

			results := make(chan error, 1)
			s.SetHandler(handlerFunc(func(ctx context.Context, us *UserSession, msg SessionMessage) {
				_, err := us.Controller().SubmitImage(ctx, listing.NewPayload(pngBytes(t), "image/png"))
				results <- err
			}))
			s.StartWorker()
			defer s.Stop()

			s.Send(SessionMessage{Ctx: context.Background(), Type: msgTypePhoto})
			waitFor(t, started, "gateway call")

			require.Len(t, sender.statusTexts(), 1)
			assert.Contains(t, sender.statusTexts()[0], "Analyzing image")
			assert.Eventually(t, func() bool { return sender.chatActions() >= 2 },
				time.Second, 5*time.Millisecond, "typing action should repeat during the call")
			assert.Empty(t, sender.deletedIDs())

			close(release)
			err := <-results
			if tt.wantErr {
				assert.ErrorIs(t, err, llm.ErrAnalysisFailed)
			} else {
				assert.NoError(t, err)
			}

			assert.Equal(t, []int{501}, sender.deletedIDs(), "status message should be removed")
			assertTypingStopped(t, sender)
			assert.False(t, s.Controller().Snapshot().Loading.Active)
		})
	}
}

func TestUserSession_StopEndsTypingDuringCall(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sender := &recordingSender{}
	s := newUserSession(30, sender, session.NewController(gatedAnalysis(started, release, nil)))
	s.typingEvery = 5 * time.Millisecond

	go s.Controller().SubmitImage(context.Background(), listing.NewPayload(pngBytes(t), "image/png"))
	waitFor(t, started, "gateway call")
	require.Eventually(t, func() bool { return sender.chatActions() >= 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assertTypingStopped(t, sender)
	close(release)
}

func TestUserSession_JournalRecordsTransitions(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	close(release)
	s := newUserSession(31, &recordingSender{}, session.NewController(gatedAnalysis(started, release, nil)))
	defer s.Stop()
	s.journal.begin()

	_, err := s.Controller().SubmitImage(context.Background(), listing.NewPayload(pngBytes(t), "image/png"))
	require.NoError(t, err)
	require.NoError(t, s.Controller().SelectView(session.ViewGenerate))

	text := readJournal(t, 31)
	assert.Contains(t, text, "gateway call started status=")
	assert.Contains(t, text, `phase=ready title="Brass desk lamp" view=details`)
	assert.Contains(t, text, `phase=ready title="Brass desk lamp" view=generate`)
}
