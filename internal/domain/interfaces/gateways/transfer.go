// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"fmt"
	"io"

	"github.com/ochairo/redist/internal/domain/entities"
)

// Transfer performs single-attempt HTTP transfers. Any final status outside
// 2xx is returned as a *StatusError.
type Transfer interface {
	// Download streams the response body of a GET into w
	Download(ctx context.Context, url string, w io.Writer, cred *entities.Credential) (int64, error)

	// Upload streams the file at path as the body of a PUT
	Upload(ctx context.Context, url, path, contentType string, cred *entities.Credential) error

	// PostJSON sends payload as JSON and returns the raw response body
	PostJSON(ctx context.Context, url string, payload any, headers map[string]string, cred *entities.Credential) ([]byte, error)
}

// StatusError is returned when a remote host answers with a non-2xx status
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	// Body is a short, redacted excerpt of the response
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: got a '%d' response", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}
