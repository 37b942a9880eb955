package alert

import "errors"

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation error")

// ValidationError carries a client-facing message for a rejected request.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

const (
	MsgAlertIDRequired   = "Alert ID is required"
	MsgInvalidAlertID    = "Invalid alert ID"
	MsgInvalidAlertType  = "Valid alert type (mild, moderate, severe) is required"
	MsgReasonRequired    = "Suspected reason is required"
	MsgAudioFileRequired = "Audio file is required"
	MsgAnalysisQueueFull = "analysis queue full"
)
