package relationships

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AsUser(name string) error
	RememberDocument(name, docID, owner string)
	Document(name string) (docID, owner string, err error)
	POST(path string, body any) error
	PATCH(path string, body any) error
	GET(path string) error
	DELETE(path string) error
	GetResponseField(field string) (any, error)
	LastStatus() int
	LastBody() []byte
}

// RegisterSteps registers relationship graph steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &relationshipSteps{tc: tc, ids: map[string]string{}}

	ctx.Step(`^"([^"]*)" creates draft document "([^"]*)"$`, steps.createDraft)
	ctx.Step(`^"([^"]*)" creates completed document "([^"]*)"$`, steps.createCompleted)
	ctx.Step(`^"([^"]*)" moves "([^"]*)" to state "([^"]*)"$`, steps.moveTo)
	ctx.Step(`^"([^"]*)" links "([^"]*)" to "([^"]*)"$`, steps.link)
	ctx.Step(`^"([^"]*)" links "([^"]*)" to "([^"]*)" allowing pending signatures$`, steps.linkAllowPending)
	ctx.Step(`^"([^"]*)" deletes the link from "([^"]*)" to "([^"]*)"$`, steps.unlink)
	ctx.Step(`^"([^"]*)" lists relationships of "([^"]*)"$`, steps.list)
}

type relationshipSteps struct {
	tc  TestContext
	ids map[string]string
}

func (s *relationshipSteps) createDraft(ctx context.Context, owner, name string) error {
	if err := s.tc.AsUser(owner); err != nil {
		return err
	}
	if err := s.tc.POST("/documents", map[string]any{"title": name}); err != nil {
		return err
	}
	if s.tc.LastStatus() != 201 {
		return fmt.Errorf("create %s: status %d: %s", name, s.tc.LastStatus(), s.tc.LastBody())
	}
	docID, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.RememberDocument(name, docID.(string), owner)
	return nil
}

func (s *relationshipSteps) createCompleted(ctx context.Context, owner, name string) error {
	if err := s.createDraft(ctx, owner, name); err != nil {
		return err
	}
	if err := s.moveTo(ctx, owner, name, "completed"); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("complete %s: status %d: %s", name, s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}

func (s *relationshipSteps) moveTo(ctx context.Context, actor, name, state string) error {
	docID, _, err := s.tc.Document(name)
	if err != nil {
		return err
	}
	if err := s.tc.AsUser(actor); err != nil {
		return err
	}
	return s.tc.PATCH("/documents/"+docID, map[string]any{"state": state})
}

func (s *relationshipSteps) link(ctx context.Context, actor, source, target string) error {
	return s.create(actor, source, target, false)
}

func (s *relationshipSteps) linkAllowPending(ctx context.Context, actor, source, target string) error {
	return s.create(actor, source, target, true)
}

func (s *relationshipSteps) create(actor, source, target string, allowPending bool) error {
	sourceID, _, err := s.tc.Document(source)
	if err != nil {
		return err
	}
	targetID, _, err := s.tc.Document(target)
	if err != nil {
		return err
	}
	if err := s.tc.AsUser(actor); err != nil {
		return err
	}
	if err := s.tc.POST("/relationships", map[string]any{
		"source_document":          sourceID,
		"target_document":          targetID,
		"allow_pending_signatures": allowPending,
	}); err != nil {
		return err
	}
	if s.tc.LastStatus() == 201 {
		relID, err := s.tc.GetResponseField("id")
		if err != nil {
			return err
		}
		s.ids[source+"->"+target] = relID.(string)
	}
	return nil
}

func (s *relationshipSteps) unlink(ctx context.Context, actor, source, target string) error {
	relID, ok := s.ids[source+"->"+target]
	if !ok {
		return fmt.Errorf("no relationship from %s to %s was created", source, target)
	}
	if err := s.tc.AsUser(actor); err != nil {
		return err
	}
	return s.tc.DELETE("/relationships/" + relID)
}

func (s *relationshipSteps) list(ctx context.Context, actor, name string) error {
	docID, _, err := s.tc.Document(name)
	if err != nil {
		return err
	}
	if err := s.tc.AsUser(actor); err != nil {
		return err
	}
	return s.tc.GET("/documents/" + docID + "/relationships")
}
