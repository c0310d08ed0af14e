package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNotConfigured means no completion credential is available at all.
	ErrNotConfigured = errors.New("AI service not configured")

	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed completion response")
	ErrModelUnavailable  = errors.New("model unavailable")
	ErrNotFound          = errors.New("not found")
)

// RateLimitError marks a provider error as throttling.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// ChunkError carries the chunk index a per-chunk failure belongs to.
type ChunkError struct {
	Chunk int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Chunk, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is provider throttling.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"429", "rate limit", "too many requests", "quota", "resource exhausted", "resource_exhausted"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// IsModelUnavailable reports whether err says the requested model does not exist or was retired.
func IsModelUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrModelUnavailable) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "model") &&
		(strings.Contains(msg, "not found") || strings.Contains(msg, "deprecated") || strings.Contains(msg, "decommissioned"))
}
