package e2e

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the feature files against LEXFLOW_BASE_URL. The server
// must be started with ADMIN_API_TOKEN set to the same value.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("LEXFLOW_BASE_URL")
	adminToken := os.Getenv("ADMIN_API_TOKEN")
	if baseURL == "" || adminToken == "" {
		t.Skip("LEXFLOW_BASE_URL and ADMIN_API_TOKEN are required")
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			RegisterSteps(ctx, NewTestContext(baseURL, adminToken))
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature tests failed")
	}
}
