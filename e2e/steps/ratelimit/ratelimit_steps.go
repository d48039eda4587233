package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	SetClientIP(ip string)
}

// RegisterSteps registers per-IP rate limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^client "([^"]*)" has used its whole window on "([^"]*)"$`, steps.exhaustWindow)
	ctx.Step(`^client "([^"]*)" sends a request to "([^"]*)"$`, steps.sendAs)
	ctx.Step(`^the response should carry a Retry-After hint$`, steps.retryAfterPresent)
	ctx.Step(`^the response should carry rate limit headers$`, steps.rateLimitHeadersPresent)
}

type ratelimitSteps struct {
	tc TestContext
}

// exhaustWindow sends requests until the advertised remaining budget is spent.
func (s *ratelimitSteps) exhaustWindow(ctx context.Context, ip, path string) error {
	s.tc.SetClientIP(ip)
	if err := s.tc.GET(path, nil); err != nil {
		return err
	}
	remaining, err := strconv.Atoi(s.tc.GetLastResponseHeader("X-RateLimit-Remaining"))
	if err != nil {
		return fmt.Errorf("rate limiting is not enabled on the server: %w", err)
	}
	for range remaining {
		if err := s.tc.GET(path, nil); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() == 429 {
			return fmt.Errorf("rejected before the advertised budget was spent")
		}
	}
	return nil
}

func (s *ratelimitSteps) sendAs(ctx context.Context, ip, path string) error {
	s.tc.SetClientIP(ip)
	return s.tc.GET(path, nil)
}

func (s *ratelimitSteps) retryAfterPresent(ctx context.Context) error {
	v, err := strconv.Atoi(s.tc.GetLastResponseHeader("Retry-After"))
	if err != nil || v < 1 {
		return fmt.Errorf("expected a positive Retry-After header, got %q", s.tc.GetLastResponseHeader("Retry-After"))
	}
	body, err := s.tc.GetResponseField("retry_after")
	if err != nil {
		return err
	}
	if n, ok := body.(float64); !ok || int(n) != v {
		return fmt.Errorf("body retry_after %v does not match header %d", body, v)
	}
	return nil
}

func (s *ratelimitSteps) rateLimitHeadersPresent(ctx context.Context) error {
	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"} {
		if s.tc.GetLastResponseHeader(h) == "" {
			return fmt.Errorf("missing %s header", h)
		}
	}
	return nil
}
