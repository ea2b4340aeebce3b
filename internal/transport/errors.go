package transport

import "codeberg.org/mutker/envlogger/internal/errors"

const (
	// Port Errors
	ErrOpenPort   = errors.ErrorCode("transport_open_port_failed")
	ErrClosePorts = errors.ErrorCode("transport_close_failed")

	// I/O Errors
	ErrWrite      = errors.ErrorCode("transport_write_failed")
	ErrRead       = errors.ErrorCode("transport_read_failed")
	ErrNoResponse = errors.ErrorCode("transport_no_response")
	ErrCanceled   = errors.ErrorCode("transport_canceled")
)
