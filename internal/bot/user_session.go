package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/rs/zerolog/log"
)

// Message types handled by the session worker.
const (
	msgTypeCallback = "callback"
	msgTypePhoto    = "photo"
	msgTypeText     = "text"
)

// Telegram hides a chat action after about five seconds.
const typingInterval = 4 * time.Second

// SessionMessage represents a message to be processed by the session worker.
type SessionMessage struct {
	Type string
	Ctx  context.Context
	Done chan struct{} // Closed when processing is complete (for synchronous dispatch)

	// Message data (only one is set based on Type)
	Message       *tgbotapi.Message
	CallbackQuery *tgbotapi.CallbackQuery
	Text          string
}

// MessageSender abstracts the ability to send Telegram messages.
// This interface decouples UserSession from the full Bot struct,
// improving testability.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MessageHandler is the interface for processing session messages.
// This allows the session to dispatch to external handlers without circular dependencies.
type MessageHandler interface {
	HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage)
}

// loadingIndicator tracks the status message and typing loop shown while
// the controller reports a running gateway call.
type loadingIndicator struct {
	active      bool
	statusMsgID int
	stopTyping  context.CancelFunc
}

// UserSession represents a user's session with the bot.
//
// Threading model:
//   - Each session has a dedicated worker goroutine that processes messages sequentially
//   - Message handlers are called only from the worker and can access session
//     fields without locks
//   - The listing state lives in the controller, which has its own lock
type UserSession struct {
	userId int64
	sender MessageSender

	// Worker channel for sequential message processing
	inbox   chan SessionMessage
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handler MessageHandler // Set after construction to avoid circular deps

	controller  *session.Controller
	loading     loadingIndicator
	typingEvery time.Duration
	removeHook  func()
	journal     *listingJournal

	// Message id of the last view message, so its keyboard can be replaced
	viewMsgID int
}

// newUserSession wires a session to its controller. The worker is not
// started.
func newUserSession(userId int64, sender MessageSender, controller *session.Controller) *UserSession {
	ctx, cancel := context.WithCancel(context.Background())
	s := &UserSession{
		userId:      userId,
		sender:      sender,
		inbox:       make(chan SessionMessage, 10), // Buffered to avoid blocking
		ctx:         ctx,
		cancel:      cancel,
		controller:  controller,
		typingEvery: typingInterval,
		journal:     newListingJournal(userId),
	}
	if controller != nil {
		s.removeHook = controller.OnChange(s.onStateChange)
	}
	return s
}

// Controller returns the listing state machine for this user.
func (s *UserSession) Controller() *session.Controller {
	return s.controller
}

// onStateChange renders the loading indicator. It runs on whichever
// goroutine changed the state, which is the worker for Telegram sessions.
func (s *UserSession) onStateChange(state session.State) {
	s.journal.observe(state)

	switch {
	case state.Loading.Active && !s.loading.active:
		s.loading.active = true
		sent := s._reply(MsgStatusPrefix+escapeMarkdown(state.Loading.Message), false)
		s.loading.statusMsgID = sent.MessageID
		typingCtx, cancel := context.WithCancel(s.ctx)
		s.loading.stopTyping = cancel
		go s.startTypingLoop(typingCtx)
	case !state.Loading.Active && s.loading.active:
		s.stopLoading()
	}
}

func (s *UserSession) stopLoading() {
	if s.loading.stopTyping != nil {
		s.loading.stopTyping()
	}
	if s.loading.statusMsgID != 0 {
		s.deleteMessage(s.loading.statusMsgID)
	}
	s.loading = loadingIndicator{}
}

func (s *UserSession) deleteMessage(messageID int) {
	if _, err := s.sender.Request(tgbotapi.NewDeleteMessage(s.userId, messageID)); err != nil {
		log.Debug().Err(err).Int64("userId", s.userId).Int("messageId", messageID).Msg("failed to delete message")
	}
}

func (s *UserSession) replyWithError(err error) tgbotapi.Message {
	log.Error().Stack().Err(err).Send()
	s.journal.failure(err)
	return s._reply(formatReplyText(MsgUnexpectedErr, escapeMarkdown(err.Error())), false)
}

// replyNotice sends the user-facing message for a failed controller
// operation.
func (s *UserSession) replyNotice(err error) tgbotapi.Message {
	s.journal.failure(err)
	log.Warn().Err(err).Int64("userId", s.userId).Msg("listing operation failed")
	return s._reply(escapeMarkdown(session.Notice(err)), false)
}

// sendTypingAction sends a "typing" chat action to show the user that the bot is processing.
// The typing indicator automatically expires after ~5 seconds in Telegram.
func (s *UserSession) sendTypingAction() {
	action := tgbotapi.NewChatAction(s.userId, tgbotapi.ChatUploadPhoto)
	// Use Request instead of Send because sendChatAction returns a boolean, not a Message
	_, err := s.sender.Request(action)
	if err != nil {
		log.Debug().Err(err).Int64("userId", s.userId).Msg("failed to send typing action")
	}
}

// startTypingLoop repeats the upload-photo chat action until ctx is
// cancelled, keeping the indicator visible during long gateway calls.
func (s *UserSession) startTypingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.typingEvery)
	defer ticker.Stop()

	s.sendTypingAction()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.sendTypingAction()
		}
	}
}

func (s *UserSession) replyWithMessage(msg tgbotapi.MessageConfig) tgbotapi.Message {
	msg.ChatID = s.userId
	sent, err := s.sender.Send(msg)
	if err != nil {
		log.Error().Stack().
			Interface("msg", msg).
			Err(fmt.Errorf("failed to send reply message: %w", err)).Send()
	} else {
		log.Info().Int64("userId", s.userId).Int("messageId", sent.MessageID).Msg("sent message")
		s.journal.bot("%s", msg.Text)
	}

	return sent
}

func (s *UserSession) _reply(text string, removeReplyKeyboard bool) tgbotapi.Message {
	msg := tgbotapi.MessageConfig{
		Text:      text,
		ParseMode: tgbotapi.ModeMarkdown,
	}

	if removeReplyKeyboard {
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	return s.replyWithMessage(msg)
}

func (s *UserSession) reply(text string, a ...any) tgbotapi.Message {
	return s._reply(formatReplyText(text, a...), false)
}

// --- Worker methods ---

// StartWorker starts the session's message processing worker goroutine.
// Must be called after setting the handler.
func (s *UserSession) StartWorker() {
	s.wg.Add(1)
	go s.runWorker()
}

// SetHandler sets the message handler for this session.
func (s *UserSession) SetHandler(handler MessageHandler) {
	s.handler = handler
}

// runWorker is the main worker loop that processes messages sequentially.
func (s *UserSession) runWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// Drain any remaining messages and signal completion
			for {
				select {
				case msg := <-s.inbox:
					if msg.Done != nil {
						close(msg.Done)
					}
				default:
					return
				}
			}
		case msg := <-s.inbox:
			s.processMessage(msg)
		}
	}
}

// processMessage handles a single message from the inbox.
func (s *UserSession) processMessage(msg SessionMessage) {
	defer func() {
		// Recover from any panics to keep the worker running
		if r := recover(); r != nil {
			log.Error().
				Int64("userId", s.userId).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		if msg.Done != nil {
			close(msg.Done)
		}
	}()

	if s.handler == nil {
		log.Error().Int64("userId", s.userId).Msg("session handler not set")
		return
	}

	s.handler.HandleSessionMessage(msg.Ctx, s, msg)
}

// Send queues a message for processing by the worker.
// This is non-blocking - it returns immediately after queuing.
func (s *UserSession) Send(msg SessionMessage) {
	select {
	case s.inbox <- msg:
	case <-s.ctx.Done():
		if msg.Done != nil {
			close(msg.Done)
		}
	}
}

// SendSync queues a message and waits for it to be processed.
// Returns when the message has been fully processed by the worker.
func (s *UserSession) SendSync(msg SessionMessage) {
	msg.Done = make(chan struct{})
	s.Send(msg)
	<-msg.Done
}

// Stop stops the worker and waits for it to finish.
func (s *UserSession) Stop() {
	s.cancel()
	s.wg.Wait()
	if s.removeHook != nil {
		s.removeHook()
	}
	if s.loading.stopTyping != nil {
		s.loading.stopTyping()
	}
}
