package assistant

import (
	"errors"

	"github.com/zombor/receipt-assistant/internal/failure"
)

// Messages shown to users. Provider payloads never reach them.
const (
	MsgTooShort          = "The audio is too short, please try again."
	MsgUnsupported       = "Sorry, I can only handle text, voice notes and receipt images."
	MsgInvalidReceipt    = "Sorry, I couldn't make sense of the purchase details. Please try describing them again."
	MsgSaveFailed        = "Error saving purchase to database"
	MsgAudioFailed       = "Sorry, I couldn't process your audio. Please try again."
	MsgImageFailed       = "Sorry, I couldn't read that image. Please try again."
	MsgBusy              = "The assistant is busy right now, please try again in a minute."
	MsgProviderFailed    = "Sorry, I couldn't process your message right now. Please try again later."
	MsgNothingHeard      = "Sorry, I didn't catch anything in that recording."
	MsgProcessingFailure = "Error processing your message."
)

// Diagnose turns an error from the pipeline into a plain-language message
// naming its general class.
func Diagnose(err error) string {
	var (
		tooShort    *failure.TooShortInputError
		unsupported *failure.UnsupportedInputError
		invalid     *failure.ValidationError
		persistence *failure.PersistenceError
		provider    *failure.ProviderError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &tooShort):
		return MsgTooShort
	case errors.As(err, &unsupported):
		return MsgUnsupported
	case errors.As(err, &invalid):
		return MsgInvalidReceipt
	case errors.As(err, &persistence):
		return MsgSaveFailed
	case errors.As(err, &provider):
		if provider.RateLimited() {
			return MsgBusy
		}
		switch provider.Capability {
		case failure.CapabilityTranscription:
			return MsgAudioFailed
		case failure.CapabilityVision:
			return MsgImageFailed
		}
		return MsgProviderFailed
	default:
		return MsgProcessingFailure
	}
}
