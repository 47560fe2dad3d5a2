package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/VictorEZCodes/clothing-shop/pkg/errors"
)

// UpstreamError describes a non-2xx answer from a third-party API.
type UpstreamError struct {
	Service string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Message)
}

// Unwrap classifies the failure. Credential, quota and server problems are
// ours to fix, so they surface as ErrServiceUnavail; rejected input surfaces
// as ErrInvalidInput.
func (e *UpstreamError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidInput
	default:
		return apperrors.ErrServiceUnavail
	}
}

// Temporary reports whether retrying later may succeed.
func (e *UpstreamError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// upstreamBody covers the error shapes used by the APIs this service calls:
// {"message": ...}, {"error": {"message": ...}} and {"error-type": ...}.
type upstreamBody struct {
	Message   string          `json:"message"`
	ErrorType string          `json:"error-type"`
	Error     json.RawMessage `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// returns an *UpstreamError carrying the most specific message available.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &UpstreamError{Service: service, Status: resp.StatusCode, Message: "unreadable body: " + err.Error()}
	}
	return &UpstreamError{Service: service, Status: resp.StatusCode, Message: extractMessage(raw, resp.StatusCode)}
}

func extractMessage(raw []byte, status int) string {
	var body upstreamBody
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.ErrorType != "":
			return body.ErrorType
		case len(body.Error) > 0:
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
				return nested.Message
			}
			var s string
			if json.Unmarshal(body.Error, &s) == nil && s != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "<") {
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	return http.StatusText(status)
}

// IsUpstreamStatus reports whether err is an UpstreamError with the given status.
func IsUpstreamStatus(err error, status int) bool {
	var up *UpstreamError
	return errors.As(err, &up) && up.Status == status
}
