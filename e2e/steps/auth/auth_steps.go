package auth

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetAccessToken() string
	SetAccessToken(token string)
}

// RegisterSteps registers authentication-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I register as "([^"]*)" with password "([^"]*)"$`, steps.register)
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)"$`, steps.login)
	ctx.Step(`^I am logged in as "([^"]*)" with password "([^"]*)"$`, steps.loggedIn)
	ctx.Step(`^I use the returned token$`, steps.useReturnedToken)
	ctx.Step(`^I log out$`, steps.logout)
	ctx.Step(`^I have no token$`, steps.clearToken)
	ctx.Step(`^I GET "([^"]*)" with invalid token "([^"]*)"$`, steps.getWithInvalidToken)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) register(ctx context.Context, email, password string) error {
	return s.tc.POST("/api/auth/register", map[string]any{
		"firstName":       "Feature",
		"lastName":        "Tester",
		"email":           email,
		"password":        password,
		"confirmPassword": password,
	})
}

func (s *authSteps) login(ctx context.Context, email, password string) error {
	return s.tc.POST("/api/auth/login", map[string]any{
		"email":    email,
		"password": password,
	})
}

func (s *authSteps) loggedIn(ctx context.Context, email, password string) error {
	if err := s.login(ctx, email, password); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return fmt.Errorf("login as %s failed with %d: %s", email, s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	return s.useReturnedToken(ctx)
}

func (s *authSteps) useReturnedToken(ctx context.Context) error {
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	str, ok := token.(string)
	if !ok || str == "" {
		return fmt.Errorf("response carried no token")
	}
	s.tc.SetAccessToken(str)
	return nil
}

func (s *authSteps) logout(ctx context.Context) error {
	return s.tc.POST("/api/auth/logout", nil)
}

func (s *authSteps) clearToken(ctx context.Context) error {
	s.tc.SetAccessToken("")
	return nil
}

func (s *authSteps) getWithInvalidToken(ctx context.Context, path, token string) error {
	return s.tc.GET(path, map[string]string{
		"Authorization": "Bearer " + token,
	})
}
