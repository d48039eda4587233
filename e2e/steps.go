package e2e

import (
	"github.com/cucumber/godog"

	"lifeflow/e2e/steps/auth"
	"lifeflow/e2e/steps/common"
	"lifeflow/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register authentication-specific steps
	auth.RegisterSteps(ctx, tc)

	// Register per-IP rate limiting steps
	ratelimit.RegisterSteps(ctx, tc)
}
