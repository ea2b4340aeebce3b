package drivers

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	ErrUnknownDriver = errors.ErrorCode("drivers_unknown_driver")
	ErrOpenSensor    = errors.ErrorCode("drivers_open_sensor_failed")
	ErrOpenBus       = errors.ErrorCode("drivers_open_bus_failed")
	ErrClose         = errors.ErrorCode("drivers_close_failed")
)
