package sensor

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrNoDriver      = errors.ErrorCode("sensor_no_driver")
	ErrNoVariables   = errors.ErrorCode("sensor_no_variables")

	// Timing violations. The call is rejected and nothing changes; poll again later.
	ErrNotStable          = errors.ErrorCode("sensor_not_stable")
	ErrNotMeasuring       = errors.ErrorCode("sensor_not_measuring")
	ErrAlreadyMeasuring   = errors.ErrorCode("sensor_already_measuring")
	ErrMeasurementPending = errors.ErrorCode("sensor_measurement_pending")

	// Power Errors
	ErrPowerUp   = errors.ErrorCode("sensor_power_up_failed")
	ErrPowerDown = errors.ErrorCode("sensor_power_down_failed")

	// Transport Errors
	ErrTriggerFailed = errors.ErrorCode("sensor_trigger_failed")
	ErrSetupFailed   = errors.ErrorCode("sensor_setup_failed")
)
