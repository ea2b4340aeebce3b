package power

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	ErrHostInit       = errors.ErrorCode("power_host_init_failed")
	ErrPinNotFound    = errors.ErrorCode("power_pin_not_found")
	ErrSwitchOn       = errors.ErrorCode("power_switch_on_failed")
	ErrSwitchOff      = errors.ErrorCode("power_switch_off_failed")
	ErrUnknownBackend = errors.ErrorCode("power_unknown_backend")
)
