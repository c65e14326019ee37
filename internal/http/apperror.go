package http

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kikootwo/multiview/internal/apperr"
)

// apiError is the concrete type every non-2xx response carries, replacing
// huma's default problem-details body with the flat {error, detail?}
// envelope required by §6/§7.
type apiError struct {
	status int
	Kind   string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (e *apiError) Error() string  { return e.Kind }
func (e *apiError) GetStatus() int { return e.status }

// APIError translates any error returned by an orchestrator call into the
// envelope above, using apperr's code-to-status table and envelope builder
// (the single source of truth for both, shared with the raw Chi handlers).
func APIError(err error) huma.StatusError {
	env := apperr.EnvelopeFor(err)
	return &apiError{status: apperr.HTTPStatus(err), Kind: string(env.Error), Detail: env.Detail}
}

// init overrides huma's error-body constructor so that operations
// registered with huma.Register produce the same {error, detail?} shape as
// the raw chi handlers, instead of huma's default problem-details body.
// huma.NewError is a package-level hook meant for exactly this purpose: it
// is what every huma.ErrorNNN helper and huma's own request-validation
// failures funnel through before a response is written.
func init() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		detail := msg
		for _, e := range errs {
			var ae *apiError
			if errors.As(e, &ae) && ae.Detail != "" {
				detail = ae.Detail
				break
			}
		}
		kind := apperr.Internal
		switch {
		case status == http.StatusNotFound:
			kind = apperr.NotFound
		case status == http.StatusConflict:
			kind = apperr.Busy
		case status >= 400 && status < 500:
			kind = apperr.BadLayout
		}
		return &apiError{status: status, Kind: string(kind), Detail: detail}
	}
}
