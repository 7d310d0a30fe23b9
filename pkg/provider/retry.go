package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/logger"
)

const (
	maxAttempts      = 3
	baseRetryDelay   = time.Second
	statusOverloaded = 529
)

// VendorError is returned once a vendor call has failed for good.
type VendorError struct {
	Vendor   domain.ProviderName
	Attempts int
	Err      error
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s: request failed after %d attempt(s): %v", e.Vendor, e.Attempts, e.Err)
}

func (e *VendorError) Unwrap() error {
	return e.Err
}

// HTTPError is a non-2xx answer from a vendor called over plain HTTP.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		attempts:  maxAttempts,
		baseDelay: baseRetryDelay,
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do calls fn until it succeeds, fails with a non-retryable error or runs out of attempts.
// The delay after the n-th failure (counting from zero) is baseDelay * 2^n.
func (p retryPolicy) do(ctx context.Context, vendor domain.ProviderName, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return &VendorError{Vendor: vendor, Attempts: attempt + 1, Err: lastErr}
		}

		if attempt == p.attempts-1 {
			break
		}

		delay := p.baseDelay << attempt
		slog.WarnContext(ctx, "vendor call failed, retrying",
			"vendor", vendor,
			"attempt", attempt+1,
			"delay", delay,
			logger.Err(lastErr),
		)

		if err := p.sleep(ctx, delay); err != nil {
			return &VendorError{Vendor: vendor, Attempts: attempt + 1, Err: fmt.Errorf("waiting for retry: %w", err)}
		}
	}
	return &VendorError{Vendor: vendor, Attempts: p.attempts, Err: lastErr}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	status, code := errorStatus(err)
	if isContentPolicy(code) {
		return false
	}

	switch {
	case status == http.StatusTooManyRequests, status == statusOverloaded, status >= http.StatusInternalServerError:
		return true
	case status >= http.StatusBadRequest:
		return false
	}

	if isRetryableCode(code) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryableCode(code string) bool {
	code = strings.ToLower(code)
	for _, marker := range []string{"overloaded", "rate_limit", "resource_exhausted", "unavailable", "server_error"} {
		if strings.Contains(code, marker) {
			return true
		}
	}
	return false
}

func isContentPolicy(code string) bool {
	return strings.EqualFold(code, "content_policy_violation")
}

// errorStatus pulls the HTTP status and vendor error code out of the error chain.
func errorStatus(err error) (int, string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Type
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return apiErr.HTTPStatusCode, code
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, ""
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, httpErr.Code
	}

	return 0, ""
}

// IsContentPolicy reports whether the vendor refused the request on content grounds.
func IsContentPolicy(err error) bool {
	_, code := errorStatus(err)
	return isContentPolicy(code)
}

// IsVendorAuth reports whether the vendor rejected our credentials.
func IsVendorAuth(err error) bool {
	status, _ := errorStatus(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsRateLimited reports whether the vendor throttled the request or is overloaded.
func IsRateLimited(err error) bool {
	status, _ := errorStatus(err)
	return status == http.StatusTooManyRequests || status == statusOverloaded
}
