package httputil

import (
	"context"
	"errors"
	"net/http"

	catalogport "courtsync/internal/modules/catalog/application/port"
	"courtsync/internal/shared/auth"
)

// HTTPErrorInfo contains the HTTP status code and message for an error.
type HTTPErrorInfo struct {
	Status  int
	Message string
}

// ErrorMapping represents a single error to HTTP status/message mapping.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

// ErrorMapper maps domain errors to HTTP status codes and messages.
// It provides a centralized way to handle error mapping across handlers.
type ErrorMapper struct {
	mappings       []ErrorMapping
	defaultStatus  int
	defaultMessage string
}

// NewErrorMapper creates a mapper preloaded with the gateway's sentinel
// errors. Additional mappings can be chained on top.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{
		mappings: []ErrorMapping{
			{Error: catalogport.ErrNotFound, Status: http.StatusNotFound, Message: "resource not found"},
			{Error: catalogport.ErrForbidden, Status: http.StatusForbidden, Message: "access denied"},
			{Error: catalogport.ErrUpstream, Status: http.StatusBadGateway, Message: "upstream unavailable"},
			{Error: auth.ErrMissingToken, Status: http.StatusUnauthorized, Message: "missing token"},
			{Error: auth.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid token"},
		},
		defaultStatus:  http.StatusInternalServerError,
		defaultMessage: "internal server error",
	}
}

// WithMapping adds an error mapping to the mapper.
func (m *ErrorMapper) WithMapping(err error, status int, message string) *ErrorMapper {
	m.mappings = append(m.mappings, ErrorMapping{
		Error:   err,
		Status:  status,
		Message: message,
	})
	return m
}

// WithDefault sets the default status and message for unmatched errors.
func (m *ErrorMapper) WithDefault(status int, message string) *ErrorMapper {
	m.defaultStatus = status
	m.defaultMessage = message
	return m
}

// Map converts an error to HTTP status and message. Context errors take
// precedence over registered mappings.
func (m *ErrorMapper) Map(err error) HTTPErrorInfo {
	if err == nil {
		return HTTPErrorInfo{Status: http.StatusOK, Message: ""}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return HTTPErrorInfo{Status: http.StatusGatewayTimeout, Message: "request timeout"}
	}
	if errors.Is(err, context.Canceled) {
		return HTTPErrorInfo{Status: http.StatusServiceUnavailable, Message: "request cancelled"}
	}

	for _, mapping := range m.mappings {
		if errors.Is(err, mapping.Error) {
			return HTTPErrorInfo{Status: mapping.Status, Message: mapping.Message}
		}
	}

	return HTTPErrorInfo{Status: m.defaultStatus, Message: m.defaultMessage}
}
