package common

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	SetClientIP(ip string)
	Save(name, value string)
}

// RegisterSteps registers generic request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the API is running$`, steps.apiIsRunning)
	ctx.Step(`^requests come from IP "([^"]*)"$`, steps.requestsComeFrom)

	ctx.Step(`^I (GET|DELETE) "([^"]*)"$`, steps.sendWithoutBody)
	ctx.Step(`^I (POST|PUT) to "([^"]*)" with:$`, steps.sendWithBody)
	ctx.Step(`^I (POST|PUT) to "([^"]*)"$`, steps.sendEmpty)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (\d+)$`, steps.numberFieldShouldBe)
	ctx.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, steps.headerShouldBe)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, steps.saveField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) apiIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/health", nil); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return fmt.Errorf("health check returned %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) requestsComeFrom(ctx context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	return nil
}

func (s *commonSteps) sendWithoutBody(ctx context.Context, method, path string) error {
	return s.tc.Do(method, path, nil, nil)
}

func (s *commonSteps) sendWithBody(ctx context.Context, method, path string, body *godog.DocString) error {
	return s.tc.Do(method, path, body.Content, nil)
}

func (s *commonSteps) sendEmpty(ctx context.Context, method, path string) error {
	return s.tc.Do(method, path, nil, nil)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) numberFieldShouldBe(ctx context.Context, field string, expected int) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	n, ok := v.(float64)
	if !ok || int(n) != expected {
		return fmt.Errorf("expected %s to be %d, got %v", field, expected, v)
	}
	return nil
}

func (s *commonSteps) headerShouldBe(ctx context.Context, key, expected string) error {
	if got := s.tc.GetLastResponseHeader(key); got != expected {
		return fmt.Errorf("expected header %s to be %q, got %q", key, expected, got)
	}
	return nil
}

func (s *commonSteps) saveField(ctx context.Context, field, name string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Save(name, fmt.Sprint(v))
	return nil
}
