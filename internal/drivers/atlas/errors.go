package atlas

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	ErrNoBus        = errors.ErrorCode("atlas_no_bus")
	ErrCommand      = errors.ErrorCode("atlas_command_failed")
	ErrNotTriggered = errors.ErrorCode("atlas_not_triggered")
	ErrMalformed    = errors.ErrorCode("atlas_malformed_response")
)
