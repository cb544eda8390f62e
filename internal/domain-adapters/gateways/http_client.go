package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fluxcd/pkg/masktoken"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/ochairo/redist/internal/domain/entities"
	"github.com/ochairo/redist/internal/domain/interfaces"
	"github.com/ochairo/redist/internal/domain/interfaces/gateways"
)

const (
	// DefaultUserAgent identifies requests made by this tool
	DefaultUserAgent = "redist/1.0"

	// bodySnippetLimit bounds how much of an error response is kept
	bodySnippetLimit = 512
)

// HTTPClient implements gateways.Transfer on top of go-retryablehttp,
// configured for exactly one attempt per call. Redirects are followed.
type HTTPClient struct {
	client    *retryablehttp.Client
	userAgent string
	logger    interfaces.Logger
}

var _ gateways.Transfer = (*HTTPClient)(nil)

// HTTPClientOption customizes an HTTPClient
type HTTPClientOption func(*HTTPClient)

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) HTTPClientOption {
	return func(c *HTTPClient) { c.userAgent = ua }
}

// WithTimeout bounds a whole request including the body transfer
func WithTimeout(d time.Duration) HTTPClientOption {
	return func(c *HTTPClient) { c.client.HTTPClient.Timeout = d }
}

// NewHTTPClient creates a single-attempt HTTP client
func NewHTTPClient(logger interfaces.Logger, opts ...HTTPClientOption) *HTTPClient {
	logger = interfaces.OrNoOp(logger)

	rc := retryablehttp.NewClient()
	rc.RetryMax = 0
	rc.CheckRetry = noRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = newLeveledLogger(logger)

	c := &HTTPClient{
		client:    rc,
		userAgent: DefaultUserAgent,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// noRetry never asks for another attempt; transport errors pass through
func noRetry(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, err
}

// IsSuccess reports whether status is in the 2xx range
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// Download performs a GET and streams the body into w
func (c *HTTPClient) Download(ctx context.Context, url string, w io.Writer, cred *entities.Credential) (int64, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.prepare(req, cred)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s failed: %w", url, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return 0, c.statusError(http.MethodGet, url, resp, cred)
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	c.logger.Debug("downloaded", interfaces.F("url", url), interfaces.F("bytes", written))
	return written, nil
}

// Upload streams the file at path as the body of a PUT. The file is reopened
// for the request and never buffered in memory.
func (c *HTTPClient) Upload(ctx context.Context, url, path, contentType string, cred *entities.Credential) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot upload directory %s", path)
	}

	body := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		//nolint:gosec // G304: path is a workspace artifact produced by an earlier stage
		return os.Open(path)
	})

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", contentType)
	c.prepare(req, cred)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("PUT %s failed: %w", url, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return c.statusError(http.MethodPut, url, resp, cred)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("uploaded",
		interfaces.F("url", url),
		interfaces.F("bytes", info.Size()),
		interfaces.F("status", resp.StatusCode))
	return nil
}

// PostJSON sends payload as a JSON body and returns the raw response body
func (c *HTTPClient) PostJSON(ctx context.Context, url string, payload any, headers map[string]string, cred *entities.Credential) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.prepare(req, cred)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s failed: %w", url, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return nil, c.statusError(http.MethodPost, url, resp, cred)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return data, nil
}

func (c *HTTPClient) prepare(req *retryablehttp.Request, cred *entities.Credential) {
	req.Header.Set("User-Agent", c.userAgent)
	applyCredential(req, cred)
}

func applyCredential(req *retryablehttp.Request, cred *entities.Credential) {
	if cred == nil || cred.Secret == "" {
		return
	}
	switch cred.Kind {
	case entities.CredentialBasic:
		req.SetBasicAuth(cred.Username, cred.Secret)
	default:
		req.Header.Set("Authorization", "Bearer "+cred.Secret)
	}
}

// statusError builds a *gateways.StatusError with a redacted body excerpt
func (c *HTTPClient) statusError(method, url string, resp *http.Response, cred *entities.Credential) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, bodySnippetLimit))
	body := strings.TrimSpace(string(snippet))
	if cred != nil && body != "" {
		if masked, err := masktoken.MaskTokenFromString(body, cred.Secret); err == nil {
			body = masked
		} else {
			body = ""
		}
	}

	c.logger.Warn("remote host rejected request",
		interfaces.F("method", method),
		interfaces.F("url", url),
		interfaces.F("status", resp.StatusCode))

	return &gateways.StatusError{
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}

// AsStatusError unwraps a *gateways.StatusError from err
func AsStatusError(err error) (*gateways.StatusError, bool) {
	var se *gateways.StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
