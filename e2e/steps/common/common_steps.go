package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	EnsureUser(name, role string, hasSignature bool) error
	AsUser(name string) error
	GetResponseField(field string) (any, error)
	ResponseLength() (int, error)
	LastStatus() int
	LastBody() []byte
}

// RegisterSteps registers principal setup and response assertions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^an? (client|lawyer|staff) "([^"]*)"$`, steps.userWithSignature)
	ctx.Step(`^an? (client|lawyer|staff) "([^"]*)" without a stored signature$`, steps.userWithoutSignature)
	ctx.Step(`^I am "([^"]*)"$`, steps.actAs)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the error should be "([^"]*)"$`, steps.errorShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response should list (\d+) items?$`, steps.lengthShouldBe)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) userWithSignature(ctx context.Context, role, name string) error {
	return s.tc.EnsureUser(name, role, true)
}

func (s *commonSteps) userWithoutSignature(ctx context.Context, role, name string) error {
	return s.tc.EnsureUser(name, role, false)
}

func (s *commonSteps) actAs(ctx context.Context, name string) error {
	return s.tc.AsUser(name)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, status int) error {
	if got := s.tc.LastStatus(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, s.tc.LastBody())
	}
	return nil
}

func (s *commonSteps) errorShouldBe(ctx context.Context, code string) error {
	return s.fieldShouldBe(ctx, "error", code)
}

func (s *commonSteps) fieldShouldBe(ctx context.Context, field, want string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	var got string
	switch t := v.(type) {
	case string:
		got = t
	case bool:
		got = strconv.FormatBool(t)
	case float64:
		got = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		got = fmt.Sprint(t)
	}
	if got != want {
		return fmt.Errorf("expected %s=%q, got %q", field, want, got)
	}
	return nil
}

func (s *commonSteps) lengthShouldBe(ctx context.Context, n int) error {
	got, err := s.tc.ResponseLength()
	if err != nil {
		return err
	}
	if got != n {
		return fmt.Errorf("expected %d items, got %d: %s", n, got, s.tc.LastBody())
	}
	return nil
}
