package apperr

import (
	"errors"
	"net/http"
)

// statusByCode is the single mapping table from §7's taxonomy to HTTP
// status. This is the only place that decides status codes for app errors.
var statusByCode = map[Code]int{
	NotFound:          http.StatusNotFound,
	BadLayout:         http.StatusBadRequest,
	BadGeometry:       http.StatusBadRequest,
	SourceUnavailable: http.StatusBadGateway,
	EncoderFailed:     http.StatusInternalServerError,
	StartupTimeout:    http.StatusGatewayTimeout,
	Busy:              http.StatusConflict,
	Internal:          http.StatusInternalServerError,
}

// HTTPStatus returns the status code for err, defaulting to 500 for any
// error that is not (or does not wrap) an *Error.
func HTTPStatus(err error) int {
	status, ok := statusByCode[CodeOf(err)]
	if !ok {
		return http.StatusInternalServerError
	}
	return status
}

// Envelope is the §7 error response body: {error, detail?}.
type Envelope struct {
	Error  Code   `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// EnvelopeFor builds the response envelope for err.
func EnvelopeFor(err error) Envelope {
	var ae *Error
	if !errors.As(err, &ae) {
		return Envelope{Error: Internal, Detail: err.Error()}
	}
	detail := ae.Detail
	if detail == "" {
		detail = ae.Msg
	}
	return Envelope{Error: ae.Code, Detail: detail}
}
