package k30

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	ErrNotTriggered = errors.ErrorCode("k30_not_triggered")
	ErrFrame        = errors.ErrorCode("k30_bad_frame")
	ErrChecksum     = errors.ErrorCode("k30_checksum_mismatch")
)
