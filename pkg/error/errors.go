package error

import (
	"errors"
	"net/http"
)

// GenericError is implemented by every error the REST layer knows how to render.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}

type AuthenticationError string

func (err AuthenticationError) Error() string   { return string(err) }
func (err AuthenticationError) ErrCode() string { return "AUTHENTICATION_ERROR" }
func (err AuthenticationError) StatusCode() int { return http.StatusForbidden }

// ConfigurationError means the tenant or the process is missing required settings.
type ConfigurationError string

func (err ConfigurationError) Error() string   { return string(err) }
func (err ConfigurationError) ErrCode() string { return "CONFIGURATION_ERROR" }
func (err ConfigurationError) StatusCode() int { return http.StatusInternalServerError }

type ValidationError string

func (err ValidationError) Error() string   { return string(err) }
func (err ValidationError) ErrCode() string { return "VALIDATION_ERROR" }
func (err ValidationError) StatusCode() int { return http.StatusBadRequest }

// TransientInfraError wraps a failure of a dependency that may succeed on retry
// (database, cache, provider timeouts).
type TransientInfraError struct {
	Op  string
	Err error
}

func (err *TransientInfraError) Error() string {
	if err.Err == nil {
		return err.Op + ": transient infrastructure failure"
	}
	return err.Op + ": " + err.Err.Error()
}
func (err *TransientInfraError) Unwrap() error   { return err.Err }
func (err *TransientInfraError) ErrCode() string { return "TRANSIENT_INFRA_ERROR" }
func (err *TransientInfraError) StatusCode() int { return http.StatusServiceUnavailable }

// MediaProcessingError aborts a turn: the inbound media could not be turned into text.
type MediaProcessingError struct {
	MediaType string
	Err       error
}

func (err *MediaProcessingError) Error() string {
	if err.Err == nil {
		return "media processing failed (" + err.MediaType + ")"
	}
	return "media processing failed (" + err.MediaType + "): " + err.Err.Error()
}
func (err *MediaProcessingError) Unwrap() error   { return err.Err }
func (err *MediaProcessingError) ErrCode() string { return "MEDIA_PROCESSING_ERROR" }
func (err *MediaProcessingError) StatusCode() int { return http.StatusUnprocessableEntity }

type DeliveryError struct {
	Segment int
	Err     error
}

func (err *DeliveryError) Error() string {
	if err.Err == nil {
		return "delivery failed"
	}
	return "delivery failed: " + err.Err.Error()
}
func (err *DeliveryError) Unwrap() error   { return err.Err }
func (err *DeliveryError) ErrCode() string { return "DELIVERY_ERROR" }
func (err *DeliveryError) StatusCode() int { return http.StatusBadGateway }

// StatusOf returns the HTTP status of err if it (or something it wraps) is a GenericError.
func StatusOf(err error) int {
	var ge GenericError
	if errors.As(err, &ge) {
		return ge.StatusCode()
	}
	return http.StatusInternalServerError
}
