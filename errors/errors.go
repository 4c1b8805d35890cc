package errors

import (
	stderrors "errors"
	"fmt"
)

// Handshake failures. Fatal to the connection attempt only.
var (
	ErrMissingCredential = fmt.Errorf("missing_credential")
	ErrInvalidCredential = fmt.Errorf("invalid_credential")
)

// Message validation and delivery failures. Reported to the origin
// connection; the connection itself stays alive.
var (
	ErrMissingFields      = fmt.Errorf("missing_fields")
	ErrSelfMessage        = fmt.Errorf("self_message")
	ErrReceiverNotFound   = fmt.Errorf("receiver_not_found")
	ErrReplyTargetMissing = fmt.Errorf("reply_target_missing")
	ErrSendFailed         = fmt.Errorf("send_failed")
)

// Account surface failures.
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidCredentials = fmt.Errorf("invalid username or password")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrUserNotFound       = fmt.Errorf("user not found")
)

var ErrWorkerPanic = fmt.Errorf("worker panic")

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Reason returns the wire-level reason string for an error carried on
// an `error` event. Unknown errors collapse to send_failed so internal
// details never leak to the peer.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrMissingCredential):
		return "missing_credential"
	case Is(err, ErrInvalidCredential):
		return "invalid_credential"
	case Is(err, ErrMissingFields):
		return "missing_fields"
	case Is(err, ErrSelfMessage):
		return "self_message"
	case Is(err, ErrReceiverNotFound):
		return "receiver_not_found"
	case Is(err, ErrReplyTargetMissing):
		return "reply_target_missing"
	default:
		return "send_failed"
	}
}
