package router

import "inferd/pkg/types"

// unsupportedBackendError signals the device lacks the capability flag a
// backend requires.
type unsupportedBackendError struct{ backend types.Backend }

func (e unsupportedBackendError) Error() string {
	return "backend not supported on this device: " + string(e.backend)
}

// ErrUnsupportedBackend constructs an unsupportedBackendError.
func ErrUnsupportedBackend(b types.Backend) error { return unsupportedBackendError{backend: b} }

// IsUnsupportedBackend reports whether err indicates a missing device capability.
func IsUnsupportedBackend(err error) bool {
	_, ok := err.(unsupportedBackendError)
	return ok
}

// backendTestError signals the lightweight functional self-test failed.
type backendTestError struct {
	backend types.Backend
	cause   error
}

func (e backendTestError) Error() string {
	msg := "backend self-test failed: " + string(e.backend)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e backendTestError) Unwrap() error { return e.cause }

// ErrBackendTest constructs a backendTestError.
func ErrBackendTest(b types.Backend, cause error) error {
	return backendTestError{backend: b, cause: cause}
}

// IsBackendTest reports whether err indicates a failed backend self-test.
func IsBackendTest(err error) bool {
	_, ok := err.(backendTestError)
	return ok
}
