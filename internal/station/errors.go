package station

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrNoSensors       = errors.ErrorCode("station_no_sensors")

	// Cycle Errors
	ErrSetupSensors = errors.ErrSetupSensors
	ErrSetupFailed  = errors.ErrorCode("station_sensor_setup_failed")
	ErrCanceled     = errors.ErrorCode("station_cycle_canceled")
	ErrPowerDown    = errors.ErrorCode("station_power_down_failed")
	ErrReport       = errors.ErrReport
)
