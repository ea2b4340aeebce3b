package sdi12

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	// Configuration Errors
	ErrInvalidAddress = errors.ErrorCode("sdi12_invalid_address")
	ErrUnknownModel   = errors.ErrorCode("sdi12_unknown_model")

	// Protocol Errors
	ErrWrongAddress   = errors.ErrorCode("sdi12_wrong_address")
	ErrMalformed      = errors.ErrorCode("sdi12_malformed_response")
	ErrNoAcknowledge  = errors.ErrorCode("sdi12_no_acknowledgement")
	ErrNotTriggered   = errors.ErrorCode("sdi12_not_triggered")
	ErrIdentification = errors.ErrorCode("sdi12_identification_failed")
)
