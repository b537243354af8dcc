package bot

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var listingLogDir = "."

// InitListingLog sets the directory that holds the per-user listing journals.
func InitListingLog(dir string) error {
	if dir != "" {
		listingLogDir = dir
	}
	return os.MkdirAll(listingLogDir, 0755)
}

func journalPath(userID int64) string {
	return filepath.Join(listingLogDir, fmt.Sprintf("listing_%d.log", userID))
}

// listingJournal is a readable trail of one user's current listing: what the
// user sent, what the bot answered, gateway results and every phase or view
// change. A new photo starts a fresh journal.
type listingJournal struct {
	userID int64

	mu       sync.Mutex
	lastSeen *session.State
}

func newListingJournal(userID int64) *listingJournal {
	return &listingJournal{userID: userID}
}

// write opens the journal for one entry. truncate starts the file over.
func (j *listingJournal) write(truncate bool, entry func(l zerolog.Logger)) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(journalPath(j.userID), flags, 0644)
	if err != nil {
		log.Error().Err(err).Int64("userId", j.userID).Msg("failed to open listing journal")
		return
	}
	defer f.Close()

	entry(zerolog.New(zerolog.ConsoleWriter{
		Out:        f,
		NoColor:    true,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger())
}

func (j *listingJournal) event(from, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	j.write(false, func(l zerolog.Logger) {
		l.Info().Str("from", from).Msg(msg)
	})
}

// begin starts a new journal for a freshly sent photo.
func (j *listingJournal) begin() {
	j.mu.Lock()
	j.lastSeen = nil
	j.mu.Unlock()

	j.write(true, func(l zerolog.Logger) {
		l.Info().Int64("user", j.userID).Msg("listing started")
	})
}

func (j *listingJournal) user(format string, args ...any)     { j.event("user", format, args...) }
func (j *listingJournal) bot(format string, args ...any)      { j.event("bot", format, args...) }
func (j *listingJournal) callback(format string, args ...any) { j.event("callback", format, args...) }
func (j *listingJournal) gateway(format string, args ...any)  { j.event("gateway", format, args...) }

func (j *listingJournal) failure(err error) {
	j.write(false, func(l zerolog.Logger) {
		l.Error().Err(err).Msg("operation failed")
	})
}

// observe records the state when its phase or view moved, and when a gateway
// call started or finished. Other changes are skipped.
func (j *listingJournal) observe(state session.State) {
	j.mu.Lock()
	prev := j.lastSeen
	snap := state
	j.lastSeen = &snap
	j.mu.Unlock()

	if prev == nil || prev.Phase != state.Phase || prev.View != state.View {
		j.write(false, func(l zerolog.Logger) {
			ev := l.Info().Str("phase", state.Phase.String()).Str("view", state.View.String())
			if state.Draft != nil {
				ev = ev.Str("title", state.Draft.Title)
			}
			ev.Msg("state changed")
		})
	}

	wasLoading := prev != nil && prev.Loading.Active
	if state.Loading.Active == wasLoading {
		return
	}
	j.write(false, func(l zerolog.Logger) {
		if state.Loading.Active {
			l.Info().Str("status", state.Loading.Message).Msg("gateway call started")
		} else {
			l.Info().Msg("gateway call finished")
		}
	})
}
