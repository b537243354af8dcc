package bot

import (
	"sync"

	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/rs/zerolog/log"
)

type BotState struct {
	bot      *Bot
	mu       sync.Mutex
	sessions map[int64]*UserSession
}

func (b *Bot) NewBotState() BotState {
	return BotState{
		bot:      b,
		sessions: make(map[int64]*UserSession),
	}
}

func (bs *BotState) getUserSession(userId int64) *UserSession {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if session, ok := bs.sessions[userId]; ok {
		return session
	}

	us := newUserSession(userId, bs.bot.tg, session.NewController(bs.bot.gateway))
	// Set the bot as the message handler and start the worker
	us.SetHandler(bs.bot)
	us.StartWorker()
	bs.sessions[userId] = us
	log.Info().Int64("userId", userId).Msg("new user session created")
	return us
}

// Shutdown stops all session workers gracefully.
func (bs *BotState) Shutdown() {
	bs.mu.Lock()
	sessions := make([]*UserSession, 0, len(bs.sessions))
	for _, session := range bs.sessions {
		sessions = append(sessions, session)
	}
	bs.sessions = make(map[int64]*UserSession)
	bs.mu.Unlock()

	// Stop all workers (outside the lock to avoid blocking)
	for _, session := range sessions {
		session.Stop()
	}
	log.Info().Int("count", len(sessions)).Msg("stopped all session workers")
}
