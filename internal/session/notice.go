package session

import (
	"errors"

	"github.com/raine/sellsmart-bot/internal/listing"
	"github.com/raine/sellsmart-bot/internal/llm"
	"github.com/raine/sellsmart-bot/internal/prompt"
)

const (
	NoticeAnalyzeFailed  = "Failed to analyze. Please try another photo or check your connection."
	NoticeEditFailed     = "Failed to edit image. Please try again."
	NoticeGenerateFailed = "Failed to generate image. Please try again."
	NoticeAuth           = "The AI service rejected the API key. Check GEMINI_API_KEY."
	NoticeBusy           = "Please wait, the previous request is still running."
	NoticeNotReady       = "Send a photo of the item first."
	NoticeAlreadyReady   = "You are already working on a photo. Reset to start over."
	NoticeBadImage       = "Please send a JPEG or PNG photo."
	NoticeImageTooLarge  = "The photo is too large, the limit is 10 MB."
	NoticeEmptyEdit      = "Please describe the edit."
	NoticeUnexpected     = "Something went wrong. Please try again."
)

// Notice maps an error from a controller operation to the single message the
// user sees.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrAuth):
		return NoticeAuth
	case errors.Is(err, llm.ErrAnalysisFailed):
		return NoticeAnalyzeFailed
	case errors.Is(err, llm.ErrEditFailed):
		return NoticeEditFailed
	case errors.Is(err, llm.ErrGenerateFailed):
		return NoticeGenerateFailed
	case errors.Is(err, ErrBusy):
		return NoticeBusy
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrNoImage):
		return NoticeNotReady
	case errors.Is(err, ErrAlreadyReady):
		return NoticeAlreadyReady
	case errors.Is(err, listing.ErrUnsupportedImage), errors.Is(err, listing.ErrInvalidEncoding):
		return NoticeBadImage
	case errors.Is(err, listing.ErrImageTooLarge):
		return NoticeImageTooLarge
	case errors.Is(err, prompt.ErrEmptyInstruction):
		return NoticeEmptyEdit
	}
	return NoticeUnexpected
}
