package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Reason classifies why a forward failed. Callers only ever see the generic
// error body; reasons feed logs and metrics.
type Reason string

const (
	ReasonInvalidRequest  Reason = "invalid_request"
	ReasonRequestTooLarge Reason = "request_too_large"
	ReasonInvalidURL      Reason = "invalid_url"
	ReasonHostNotAllowed  Reason = "host_not_allowed"
	ReasonTimeout         Reason = "timeout"
	ReasonCanceled        Reason = "canceled"
	ReasonUnreachable     Reason = "unreachable"
	ReasonTransport       Reason = "transport"
	ReasonBadStatus       Reason = "bad_status"
	ReasonBodyTooLarge    Reason = "body_too_large"
	ReasonMalformedBody   Reason = "malformed_body"
)

// ForwardError is returned by ProxyService.Forward for every failure.
type ForwardError struct {
	Reason     Reason
	StatusCode int // upstream status, set for ReasonBadStatus
	Err        error
}

func (e *ForwardError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("forward %s (upstream %d): %v", e.Reason, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("forward %s: %v", e.Reason, e.Err)
}

func (e *ForwardError) Unwrap() error { return e.Err }

// ReasonOf returns the failure reason carried by err, or ReasonTransport for
// errors that did not come from Forward.
func ReasonOf(err error) Reason {
	var fe *ForwardError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ReasonTransport
}

// classifyTransportError maps an error from the HTTP client onto a Reason.
func classifyTransportError(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ReasonUnreachable
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return ReasonUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ReasonUnreachable
	}

	return ReasonTransport
}
