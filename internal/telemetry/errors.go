package telemetry

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")

	// Collection Errors
	ErrMetricsCollection = errors.ErrorCode("telemetry_metrics_collection_failed")
	ErrRegister          = errors.ErrorCode("telemetry_register_failed")

	// Listener Errors
	ErrListen = errors.ErrorCode("telemetry_listen_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrorCode("telemetry_operation_timeout")
	ErrServiceShutdown  = errors.ErrorCode("telemetry_service_shutdown_failed")
)
