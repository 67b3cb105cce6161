// Package service implements the core forwarding logic.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"analytics-proxy/internal/client"
	"analytics-proxy/internal/config"
	"analytics-proxy/internal/model"
)

// APIKeyHeader carries the injected credential on every outbound request.
const APIKeyHeader = "x-api-key"

const userAgent = "analytics-proxy/1.0"

// ProxyService forwards dashboard requests to the upstream analytics API.
type ProxyService struct {
	client       *client.UpstreamClient
	apiKey       string
	allowedHosts map[string]bool // nil allows any host
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewProxyService creates a ProxyService. The API key is copied out of cfg once
// and never re-read.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) *ProxyService {
	var allowed map[string]bool
	if len(cfg.Upstream.AllowedHosts) > 0 {
		allowed = make(map[string]bool, len(cfg.Upstream.AllowedHosts))
		for _, h := range cfg.Upstream.AllowedHosts {
			allowed[strings.ToLower(h)] = true
		}
	}

	s := &ProxyService{
		client:       c,
		apiKey:       cfg.Upstream.APIKey,
		allowedHosts: allowed,
		maxBodyBytes: cfg.Upstream.MaxBodyBytes,
		logger:       logger.With("component", "proxy_service"),
	}
	// Redirect targets get the same scheme and allow-list checks as the first
	// hop; the client would otherwise carry x-api-key to any host.
	c.CheckRedirects(s.checkURL)
	return s
}

// HostRestricted reports whether an upstream host allow-list is active.
func (s *ProxyService) HostRestricted() bool {
	return s.allowedHosts != nil
}

// Forward fetches pr.URL with a GET carrying the injected API key and returns
// the upstream body once it has been verified to be JSON. Every failure is a
// *ForwardError.
func (s *ProxyService) Forward(ctx context.Context, pr *model.ProxyRequest) (json.RawMessage, error) {
	target, err := s.checkTarget(pr)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("forwarding request", "host", target.Host, "path", target.Path)

	resp, err := s.client.Get(ctx, target.String(), s.upstreamHeader())
	if err != nil {
		var fe *ForwardError
		if errors.As(err, &fe) {
			return nil, &ForwardError{Reason: fe.Reason, Err: err}
		}
		return nil, &ForwardError{Reason: classifyTransportError(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &ForwardError{
			Reason:     ReasonBadStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("upstream answered %s", resp.Status),
		}
	}

	body, err := s.readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// checkTarget validates the caller-supplied URL and applies the host allow-list.
func (s *ProxyService) checkTarget(pr *model.ProxyRequest) (*url.URL, error) {
	if pr == nil || strings.TrimSpace(pr.URL) == "" {
		return nil, &ForwardError{Reason: ReasonInvalidRequest, Err: errors.New("url is required")}
	}

	u, err := url.Parse(strings.TrimSpace(pr.URL))
	if err != nil {
		return nil, &ForwardError{Reason: ReasonInvalidURL, Err: fmt.Errorf("parse url: %w", err)}
	}
	if err := s.checkURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

// checkURL applies the scheme and allow-list rules to one hop.
func (s *ProxyService) checkURL(u *url.URL) error {
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return &ForwardError{Reason: ReasonInvalidURL, Err: fmt.Errorf("url must be absolute http(s); got scheme %q host %q", u.Scheme, u.Host)}
	}
	if s.allowedHosts != nil && !s.allowedHosts[strings.ToLower(u.Hostname())] {
		return &ForwardError{Reason: ReasonHostNotAllowed, Err: fmt.Errorf("upstream host %q is not in the allowlist", u.Hostname())}
	}
	return nil
}

// upstreamHeader builds a fresh header set; nothing from the inbound request is copied.
func (s *ProxyService) upstreamHeader() http.Header {
	h := make(http.Header, 3)
	h.Set(APIKeyHeader, s.apiKey)
	h.Set("Accept", "application/json")
	h.Set("User-Agent", userAgent)
	return h
}

// readBody reads at most maxBodyBytes and rejects anything that is not a single JSON value.
func (s *ProxyService) readBody(r io.Reader) (json.RawMessage, error) {
	limit := s.maxBodyBytes
	if limit <= 0 {
		limit = 32 << 20
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, &ForwardError{Reason: classifyTransportError(err), Err: fmt.Errorf("read upstream body: %w", err)}
	}
	if int64(len(data)) > limit {
		return nil, &ForwardError{Reason: ReasonBodyTooLarge, Err: fmt.Errorf("upstream body exceeds %d bytes", limit)}
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return nil, &ForwardError{Reason: ReasonMalformedBody, Err: errors.New("upstream body is not valid JSON")}
	}
	return json.RawMessage(data), nil
}

// Redact replaces every occurrence of the configured API key in msg.
func (s *ProxyService) Redact(msg string) string {
	if s.apiKey == "" {
		return msg
	}
	return strings.ReplaceAll(msg, s.apiKey, "[REDACTED]")
}
