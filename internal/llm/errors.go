package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Failure kinds returned by the gateway. Every error returned by a gateway
// operation wraps the operation's failure (ErrAnalysisFailed, ErrEditFailed
// or ErrGenerateFailed), and additionally ErrAuth or ErrTransport when the
// call itself did not go through.
var (
	ErrAnalysisFailed = errors.New("analysis failed")
	ErrEditFailed     = errors.New("edit failed")
	ErrGenerateFailed = errors.New("generate failed")
	ErrAuth           = errors.New("authentication failed")
	ErrTransport      = errors.New("transport error")
)

// errMissingAPIKey is wrapped with ErrAuth when no credential is configured.
var errMissingAPIKey = fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrAuth)

// classifyCallError tags an error from the genai client with ErrAuth or
// ErrTransport.
func classifyCallError(err error) error {
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrTransport) {
		return err
	}
	if isAuthError(err) {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func isAuthError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return isAuthAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return isAuthAPIError(*apiErrPtr)
	}
	return false
}

func isAuthAPIError(e genai.APIError) bool {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusBadRequest:
		msg := strings.ToLower(e.Message)
		return strings.Contains(msg, "api key") || strings.Contains(msg, "api_key")
	}
	return false
}

// opError wraps err with the operation failure kind.
func opError(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// callError wraps a failed genai call with both the operation kind and the
// call's category.
func callError(kind error, err error) error {
	return fmt.Errorf("%w: %w", kind, classifyCallError(err))
}
