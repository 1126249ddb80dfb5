package cli

import (
	stderrors "errors"
	"io"
	"strings"

	"github.com/rileyhilliard/kstats/internal/errors"
	"github.com/rileyhilliard/kstats/internal/report"
)

// Error codes for machine-readable output.
// These map to specific actions automation can take.
const (
	ErrCodeConfigNotFound = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeInvalidRange   = "INVALID_RANGE"
	ErrCodeSSHFailed      = "SSH_CONNECTION_FAILED"
	ErrCodeLibvirtFailed  = "LIBVIRT_FAILED"
	ErrCodeCommandFailed  = "COMMAND_FAILED"
	ErrCodeOutputFailed   = "OUTPUT_FAILED"
	ErrCodeUnknown        = "UNKNOWN"
)

// WriteErrorEnvelope writes err as a failed envelope in format.
func WriteErrorEnvelope(w io.Writer, format report.Format, err error) error {
	return report.WriteEnvelope(w, format, report.Envelope{
		Success: false,
		Error:   ErrorToEnvelope(err),
	})
}

// ErrorToEnvelope converts a Go error to an EnvelopeError with code mapping.
func ErrorToEnvelope(err error) *report.EnvelopeError {
	if err == nil {
		return nil
	}

	var kErr *errors.Error
	if stderrors.As(err, &kErr) {
		msg := kErr.Message
		if kErr.Cause != nil {
			msg += ": " + kErr.Cause.Error()
		}
		return &report.EnvelopeError{
			Code:       mapErrorCode(kErr.Code, kErr.Message),
			Message:    msg,
			Suggestion: kErr.Suggestion,
		}
	}

	return &report.EnvelopeError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		// Distinguish between not found and invalid
		msgLower := strings.ToLower(message)
		if strings.Contains(msgLower, "not found") || strings.Contains(msgLower, "couldn't find") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrRange:
		return ErrCodeInvalidRange
	case errors.ErrSSH:
		return ErrCodeSSHFailed
	case errors.ErrLibvirt:
		return ErrCodeLibvirtFailed
	case errors.ErrExec:
		return ErrCodeCommandFailed
	case errors.ErrOutput:
		return ErrCodeOutputFailed
	}

	return ErrCodeUnknown
}
