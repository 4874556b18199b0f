package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// QueryErrorKind classifies why a backend query failed.
type QueryErrorKind string

const (
	// KindConfiguration: no data source is configured.
	KindConfiguration QueryErrorKind = "configuration"
	// KindAuthentication: the data source rejected the credentials.
	KindAuthentication QueryErrorKind = "authentication"
	// KindTransient: network, timeout, 5xx or a rejected query.
	KindTransient QueryErrorKind = "transient"
	// KindUnknown: a failure that is not an error value.
	KindUnknown QueryErrorKind = "unknown"
)

const dataSourceMessage = "No metrics data source is configured or it rejected the request. " +
	"Configure a Prometheus-compatible data source to view service health."

// ErrNoEndpoint is returned when the metrics client has no endpoint.
var ErrNoEndpoint = errors.New("no VictoriaMetrics endpoint configured")

// ErrQueryTemplate marks a query template that failed to render.
var ErrQueryTemplate = errors.New("query template error")

// StatusError is a non-2xx response from the metrics backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("VictoriaMetrics returned status %d: %s", e.StatusCode, e.Body)
}

// QueryError is the structured failure carried into widget state.
type QueryError struct {
	Kind    QueryErrorKind
	Message string
	Err     error
}

func NewQueryError(kind QueryErrorKind, message string, err error) *QueryError {
	return &QueryError{Kind: kind, Message: message, Err: err}
}

// NewTemplateError is a configuration error for a query template that
// could not be rendered.
func NewTemplateError(err error) *QueryError {
	return NewQueryError(KindConfiguration, err.Error(), fmt.Errorf("%w: %w", ErrQueryTemplate, err))
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s query error: %s", e.Kind, e.Message)
}

func (e *QueryError) Unwrap() error { return e.Err }

// UserMessage is the text a widget shows for the error.
func (e *QueryError) UserMessage() string {
	switch e.Kind {
	case KindConfiguration:
		if errors.Is(e.Err, ErrQueryTemplate) {
			return "Invalid query template: " + e.Message
		}
		return dataSourceMessage
	case KindAuthentication:
		return dataSourceMessage
	case KindTransient:
		return "error loading data: " + e.Message
	default:
		return "Unknown error"
	}
}

// AsQueryError returns err as a *QueryError, classifying plain errors:
// ErrNoEndpoint is a configuration error, HTTP 401/403 an authentication
// error, anything else transient. nil stays nil.
func AsQueryError(err error) *QueryError {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe
	}

	var se *StatusError
	switch {
	case errors.Is(err, ErrNoEndpoint):
		return NewQueryError(KindConfiguration, err.Error(), err)
	case errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden):
		return NewQueryError(KindAuthentication, err.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewQueryError(KindTransient, "request timed out", err)
	default:
		return NewQueryError(KindTransient, err.Error(), err)
	}
}

// RecoverQueryError converts a recovered panic value. Error values are
// classified like AsQueryError; anything else is unknown.
func RecoverQueryError(v any) *QueryError {
	if err, ok := v.(error); ok {
		return AsQueryError(err)
	}
	return NewQueryError(KindUnknown, fmt.Sprint(v), nil)
}
