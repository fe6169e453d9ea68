package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned when the vendor API key is missing. Only an
// operator can fix it.
var ErrNotConfigured = errors.New("D-ID API key not configured")

// ValidationError means the request was incomplete and never reached the vendor.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// VendorRejected carries a non-success response from the vendor.
type VendorRejected struct {
	Status  int
	Message string
}

func (e *VendorRejected) Error() string {
	return fmt.Sprintf("D-ID returned status %d: %s", e.Status, e.Message)
}

// TransportError wraps network and decoding failures talking to the vendor.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps a gateway error onto the status the page API responds with,
// together with the client-visible message.
func HTTPStatus(err error) (int, string) {
	var validation *ValidationError
	var rejected *VendorRejected

	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusInternalServerError, ErrNotConfigured.Error()
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.As(err, &rejected):
		return rejected.Status, rejected.Message
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
