package scrapeerr

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Category is a stable label for error classification in metrics and HTTP responses.
type Category string

// Category constants used as metric labels (parseErrorsTotal, scrapesTotal).
const (
	CategoryTimeout          Category = "timeout"
	CategoryNetwork          Category = "network"
	CategoryRateLimited      Category = "rate_limited"
	CategoryUpstream5xx      Category = "upstream_5xx"
	CategoryLocationNotFound Category = "location_not_found"
	CategoryDataExtraction   Category = "data_extraction"
	CategoryValidation       Category = "validation"
	CategoryParsing          Category = "parsing"
	CategoryStorage          Category = "storage"
	CategoryBrowser          Category = "browser"
	CategoryUnknown          Category = "unknown"
)

// Sentinels attached as causes by the HTTP fetcher so the category survives wrapping.
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrCircuitOpen     = errors.New("circuit breaker open")
)

// Categorize maps an error to a stable Category. Specific kinds are checked
// before their parents so a data extraction error is not reported as parsing.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	switch {
	case errors.Is(err, ErrLocationNotFound):
		return CategoryLocationNotFound
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimited
	case errors.Is(err, ErrUpstreamFailure):
		return CategoryUpstream5xx
	case errors.Is(err, ErrDataExtraction):
		return CategoryDataExtraction
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrParser):
		return CategoryParsing
	case errors.Is(err, ErrStorage):
		return CategoryStorage
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryNetwork
	}
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") {
		return CategoryNetwork
	}

	if errors.Is(err, ErrBrowser) {
		return CategoryBrowser
	}
	return CategoryUnknown
}

// Retryable reports whether a fetch-stage error is worth another attempt.
// Parse, validation, storage and not-found errors are deterministic for the
// same input and are never retried.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	switch Categorize(err) {
	case CategoryTimeout, CategoryNetwork, CategoryRateLimited, CategoryUpstream5xx:
		return true
	}
	return false
}
