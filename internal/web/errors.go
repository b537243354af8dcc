package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/raine/sellsmart-bot/internal/llm"
	"github.com/raine/sellsmart-bot/internal/prompt"
	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/rs/zerolog/log"
)

var (
	errSessionNotFound = errors.New("session not found")
	errBadRequest      = errors.New("bad request")
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrAuth):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrAnalysisFailed),
		errors.Is(err, llm.ErrEditFailed),
		errors.Is(err, llm.ErrGenerateFailed):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrBusy),
		errors.Is(err, session.ErrNotReady),
		errors.Is(err, session.ErrAlreadyReady),
		errors.Is(err, session.ErrNoImage):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, listing.ErrUnsupportedImage),
		errors.Is(err, listing.ErrImageTooLarge),
		errors.Is(err, listing.ErrInvalidEncoding),
		errors.Is(err, prompt.ErrEmptyInstruction):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusServiceUnavailable:
		return "auth"
	case http.StatusBadGateway:
		return "upstream"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "bad_request"
	}
	return "internal"
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, errSessionNotFound):
		return "Session not found."
	case errors.Is(err, errBadRequest):
		return err.Error()
	}
	return session.Notice(err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Warn().Err(err).Int("status", status).Msg("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: errorCode(status), Message: messageFor(err)})
}
