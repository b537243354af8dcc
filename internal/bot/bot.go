package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/sellsmart-bot/internal/llm"
	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/raine/sellsmart-bot/internal/storage"
	"github.com/rs/zerolog/log"
)

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg      BotAPI
	state   BotState
	store   storage.Store
	gateway llm.Gateway
	adminID int64

	listingHandler *ListingHandler
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, store storage.Store, gateway llm.Gateway, adminID int64) *Bot {
	bot := &Bot{
		tg:      tg,
		store:   store,
		gateway: gateway,
		adminID: adminID,
	}

	bot.state = bot.NewBotState()
	bot.listingHandler = NewListingHandler(tg, NewImageDownloader())

	return bot
}

// Shutdown stops all session workers.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	var userId int64

	// Determine user ID from the update
	if update.CallbackQuery != nil && update.CallbackQuery.From != nil {
		userId = update.CallbackQuery.From.ID
	} else if update.Message != nil && update.Message.From != nil {
		userId = update.Message.From.ID
	} else {
		return
	}

	// Check if user is allowed (admin always allowed)
	// MUST be before getUserSession to prevent memory exhaustion from random user IDs
	if userId != b.adminID {
		if b.store == nil {
			return
		}
		allowed, err := b.store.IsUserAllowed(userId)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userId).Msg("whitelist check failed")
			return // Fail closed
		}
		if !allowed {
			return // Silent drop
		}
	}

	session := b.state.getUserSession(userId)

	// Helper to send sync or async based on flag
	send := func(msg SessionMessage) {
		if sync {
			session.SendSync(msg)
		} else {
			session.Send(msg)
		}
	}

	if update.CallbackQuery != nil {
		send(SessionMessage{
			Type:          msgTypeCallback,
			Ctx:           ctx,
			CallbackQuery: update.CallbackQuery,
		})
		return
	}

	log.Info().Str("text", update.Message.Text).Str("caption", update.Message.Caption).Msg("got message")

	if hasImage(update.Message) {
		send(SessionMessage{
			Type:    msgTypePhoto,
			Ctx:     ctx,
			Message: update.Message,
		})
		return
	}

	send(SessionMessage{
		Type:    msgTypeText,
		Ctx:     ctx,
		Message: update.Message,
		Text:    update.Message.Text,
	})
}

// hasImage reports whether a message carries a photo, either compressed or
// sent as an image file.
func hasImage(message *tgbotapi.Message) bool {
	if len(message.Photo) > 0 {
		return true
	}
	return message.Document != nil && strings.HasPrefix(message.Document.MimeType, "image/")
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	switch msg.Type {
	case msgTypeCallback:
		b.handleCallbackQuery(ctx, session, msg.CallbackQuery)
	case msgTypePhoto:
		b.listingHandler.HandlePhoto(ctx, session, msg.Message)
	case msgTypeText:
		b.handleTextMessage(ctx, session, msg.Message)
	}
}

// handleTextMessage processes text messages.
// Called from session worker - no locking needed.
func (b *Bot) handleTextMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	session.journal.user("%s", message.Text)

	if strings.HasPrefix(message.Text, "/") {
		b.handleCommand(ctx, session, message)
		return
	}

	// Free text is an edit instruction or custom generation details,
	// depending on the active view.
	if b.listingHandler.HandleText(ctx, session, message.Text) {
		return
	}

	session.reply(MsgSendPhotoHelp)
}

// handleCommand processes bot commands.
// Called from session worker - no locking needed.
func (b *Bot) handleCommand(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	command, args := parseCommand(message.Text)
	argsStr := strings.TrimSpace(strings.Join(args, " "))
	switch command {
	case "/start":
		session.reply(MsgStartPrompt)
	case "/details":
		if argsStr != "" {
			b.listingHandler.HandleDraftEdit(session, argsStr)
			return
		}
		b.listingHandler.ShowView(session, sessionViewDetails)
	case "/edit":
		if argsStr != "" {
			b.listingHandler.ApplyEdit(ctx, session, argsStr)
			return
		}
		b.listingHandler.ShowView(session, sessionViewEdit)
	case "/generate":
		b.listingHandler.ShowView(session, sessionViewGenerate)
	case "/reset":
		b.listingHandler.Reset(session)
	case "/admin":
		b.handleAdminCommand(session, argsStr)
	case "/version":
		session.reply(MsgVersionInfo, Version, BuildTime)
	default:
		session.reply(MsgSendPhotoHelp)
	}
}

// handleCallbackQuery handles inline keyboard button presses.
// Called from session worker - no locking needed.
func (b *Bot) handleCallbackQuery(ctx context.Context, session *UserSession, query *tgbotapi.CallbackQuery) {
	// Answer the callback to remove the loading state
	callback := tgbotapi.NewCallback(query.ID, "")
	b.tg.Request(callback)

	session.journal.callback("%s", query.Data)

	// Route to appropriate handler
	switch {
	case strings.HasPrefix(query.Data, callbackView):
		b.listingHandler.HandleViewCallback(ctx, session, query)
	case strings.HasPrefix(query.Data, callbackQuickEdit):
		b.listingHandler.HandleQuickEditCallback(ctx, session, query)
	case strings.HasPrefix(query.Data, callbackGenerate):
		b.listingHandler.HandleGenerateCallback(ctx, session, query)
	default:
		log.Warn().Str("data", query.Data).Msg("unknown callback")
	}
}

// handleAdminCommand handles /admin command with subcommands.
// Only the admin user can use this command (defense in depth check).
func (b *Bot) handleAdminCommand(session *UserSession, args string) {
	// Defense in depth: verify caller is admin even though whitelist check passed
	if session.userId != b.adminID {
		return // Silent drop for non-admin users
	}

	parts := strings.Fields(args)
	if len(parts) < 2 || parts[0] != "users" {
		session.reply(MsgAdminUsage)
		return
	}
	b.handleAdminUsersCommand(session, parts[1], parts[2:])
}

// handleAdminUsersCommand handles /admin users subcommands.
func (b *Bot) handleAdminUsersCommand(session *UserSession, action string, args []string) {
	if b.store == nil {
		session.replyWithError(fmt.Errorf("user store is not configured"))
		return
	}

	switch action {
	case "add":
		if len(args) < 1 {
			session.reply(MsgAdminUserAddUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.AddAllowedUser(userID, session.userId); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserAdded, userID)

	case "remove":
		if len(args) < 1 {
			session.reply(MsgAdminUserRemoveUsage)
			return
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			session.reply(MsgAdminUserInvalidID)
			return
		}
		if err := b.store.RemoveAllowedUser(userID); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminUserRemoved, userID)

	case "list":
		users, err := b.store.GetAllowedUsers()
		if err != nil {
			session.replyWithError(err)
			return
		}
		if len(users) == 0 {
			session.reply(MsgAdminNoUsers)
			return
		}
		var sb strings.Builder
		sb.WriteString(MsgAdminAllowedUsers)
		for _, u := range users {
			sb.WriteString(fmt.Sprintf(MsgAdminUserLine, u.TelegramID, u.AddedAt.Format("2006-01-02")))
		}
		session.reply(sb.String())

	default:
		session.reply(MsgAdminUsage)
	}
}

// View shortcuts for handlers whose session parameter shadows the package.
const (
	sessionViewDetails  = session.ViewDetails
	sessionViewEdit     = session.ViewEdit
	sessionViewGenerate = session.ViewGenerate
	sessionPhaseReady   = session.PhaseReady
)

var (
	sessionErrNotReady = session.ErrNotReady
	parseSessionView   = session.ParseView
)

type draftEdit = session.DraftEdit
