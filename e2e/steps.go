package e2e

import (
	"github.com/cucumber/godog"

	"lexflow/e2e/steps/common"
	"lexflow/e2e/steps/relationships"
	"lexflow/e2e/steps/signing"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Principals, generic requests and response assertions
	common.RegisterSteps(ctx, tc)

	signing.RegisterSteps(ctx, tc)
	relationships.RegisterSteps(ctx, tc)
}
