package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Option configures an APIChecker.
type Option func(*APIChecker)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *APIChecker) {
		c.http = hc
	}
}

// APIChecker delegates the check to POST <base>/auth. Any transport error,
// non-2xx status or unexpected body is an invalid result.
type APIChecker struct {
	baseURL string
	http    *http.Client
}

// NewAPIChecker creates an APIChecker. The request carries no timeout and is
// never retried.
func NewAPIChecker(baseURL string, opts ...Option) *APIChecker {
	c := &APIChecker{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check posts creds to the remote endpoint.
func (c *APIChecker) Check(ctx context.Context, creds Credentials) Result {
	log := zap.L().With(zap.String("username", creds.Username))

	if c.baseURL == "" {
		log.Error("auth: api base url not configured")
		return Result{Message: MsgNotConfigured}
	}

	body, err := json.Marshal(creds)
	if err != nil {
		log.Error("auth: encode request", zap.Error(err))
		return Result{Message: MsgUnavailable}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath, bytes.NewReader(body))
	if err != nil {
		log.Error("auth: create request", zap.Error(err))
		return Result{Message: MsgUnavailable}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("auth: request failed", zap.Error(err))
		return Result{Message: MsgUnavailable}
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("auth: read response", zap.Error(err))
		return Result{Message: MsgUnavailable}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("auth: unexpected status", zap.Int("status", resp.StatusCode))
		return Result{Message: MsgInvalid}
	}

	// valid must be present and boolean; anything else is a rejection.
	var decoded struct {
		Valid   *bool  `json:"valid"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded.Valid == nil {
		log.Warn("auth: malformed response", zap.ByteString("body", raw))
		return Result{Message: MsgInvalid}
	}

	res := Result{Valid: *decoded.Valid, Message: decoded.Message}
	if res.Message == "" {
		res.Message = MsgInvalid
		if res.Valid {
			res.Message = MsgSuccess
		}
	}
	return res
}
