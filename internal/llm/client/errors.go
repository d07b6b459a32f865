package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindAuth        ErrorKind = "auth"
	KindRateLimit   ErrorKind = "rate_limit"
	KindUnavailable ErrorKind = "unavailable"
	KindMalformed   ErrorKind = "malformed"
	KindRouting     ErrorKind = "routing"
	KindConfig      ErrorKind = "config"
	KindCanceled    ErrorKind = "canceled"
)

// ProviderError is returned by the gateway for every failed completion.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	ModelID  string
	Err      error
}

func (e *ProviderError) Error() string {
	provider := e.Provider
	if provider == "" {
		provider = "gateway"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s (model %s)", provider, e.Kind, e.ModelID)
	}
	return fmt.Sprintf("%s: %s (model %s): %v", provider, e.Kind, e.ModelID, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Transient reports whether another attempt may succeed.
func (e *ProviderError) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindUnavailable:
		return true
	}
	return false
}

var (
	authMarkers = []string{
		"unauthorized", "forbidden", "invalid api key", "invalid_api_key",
		"incorrect api key", "authentication", "permission_denied", "permission denied",
	}
	rateLimitMarkers = []string{
		"rate limit", "rate_limit", "too many requests", "resource_exhausted", "quota",
	}
	configMarkers = []string{
		"invalid_request", "bad request", "model not found", "not_found",
	}
	unavailableMarkers = []string{
		"overloaded", "unavailable", "internal server error",
		"bad gateway", "connection refused", "connection reset",
	}

	// statusPattern finds an HTTP status where SDKs print one: leading the
	// message, after a quoted URL and colon, or after "status", "code", "http".
	statusPattern = regexp.MustCompile(`(?:^|"\s*:\s*|\b(?:status(?:[ _]?code)?|code|http(?:/[0-9.]+)?)["':= ]*)([1-5][0-9]{2})\b`)
)

// statusCode returns the HTTP status mentioned in msg, or 0.
func statusCode(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 429:
		return KindRateLimit
	case code == 408:
		return KindTimeout
	case code >= 500:
		return KindUnavailable
	case code >= 400:
		return KindConfig
	}
	return ""
}

// classifyError maps an SDK error onto an ErrorKind. The SDKs behind eino do
// not share an error type, so the message is inspected as a last resort.
func classifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindUnavailable
	}

	msg := strings.ToLower(err.Error())
	if kind := kindForStatus(statusCode(msg)); kind != "" {
		return kind
	}
	switch {
	case containsAny(msg, authMarkers):
		return KindAuth
	case containsAny(msg, rateLimitMarkers):
		return KindRateLimit
	case containsAny(msg, unavailableMarkers):
		return KindUnavailable
	case containsAny(msg, configMarkers):
		return KindConfig
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return KindTimeout
	}
	return KindUnavailable
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// asProviderError keeps an existing classification or wraps err with a fresh
// one, filling in the route details either way.
func asProviderError(err error, provider, modelID string) *ProviderError {
	var perr *ProviderError
	if errors.As(err, &perr) {
		out := *perr
		if out.Provider == "" {
			out.Provider = provider
		}
		if out.ModelID == "" {
			out.ModelID = modelID
		}
		return &out
	}
	return &ProviderError{Kind: classifyError(err), Provider: provider, ModelID: modelID, Err: err}
}
