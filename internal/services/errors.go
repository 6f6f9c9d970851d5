package services

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse indicates a 2xx response that carried no usable payload.
var ErrEmptyResponse = errors.New("empty response from service")

// ServiceError describes a failed collaborator call.
type ServiceError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

// HTTPStatusCode returns the response status, or 0 for transport failures.
func (e *ServiceError) HTTPStatusCode() int { return e.StatusCode }

// UserMessage returns the text suitable for a status line.
func UserMessage(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
