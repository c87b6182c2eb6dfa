package signing

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	AsUser(name string) error
	UserID(name string) (string, error)
	RememberDocument(name, docID, owner string)
	Document(name string) (docID, owner string, err error)
	POST(path string, body any) error
	GET(path string) error
	DELETE(path string) error
	GetResponseField(field string) (any, error)
	ResponseLength() (int, error)
	LastStatus() int
	LastBody() []byte
}

// RegisterSteps registers signature workflow steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &signingSteps{tc: tc}

	ctx.Step(`^"([^"]*)" creates document "([^"]*)" requiring signatures$`, steps.createDocument)
	ctx.Step(`^"([^"]*)" requests signatures on "([^"]*)" from "([^"]*)"$`, steps.requestSignatures)
	ctx.Step(`^"([^"]*)" requests ordered signatures on "([^"]*)" from "([^"]*)"$`, steps.requestOrderedSignatures)
	ctx.Step(`^"([^"]*)" signs "([^"]*)"$`, steps.sign)
	ctx.Step(`^"([^"]*)" signs "([^"]*)" on behalf of "([^"]*)"$`, steps.signOnBehalf)
	ctx.Step(`^"([^"]*)" rejects "([^"]*)" with comment "([^"]*)"$`, steps.reject)
	ctx.Step(`^"([^"]*)" reopens "([^"]*)"$`, steps.reopen)
	ctx.Step(`^"([^"]*)" removes the signature request of "([^"]*)" on "([^"]*)"$`, steps.removeRequest)
	ctx.Step(`^document "([^"]*)" should be in state "([^"]*)"$`, steps.stateShouldBe)
	ctx.Step(`^document "([^"]*)" should have (\d+) versions?$`, steps.versionsShouldBe)
	ctx.Step(`^"([^"]*)" should have (\d+) pending signatures?$`, steps.pendingShouldBe)
}

type signingSteps struct {
	tc TestContext
}

func (s *signingSteps) createDocument(ctx context.Context, owner, name string) error {
	if err := s.tc.AsUser(owner); err != nil {
		return err
	}
	if err := s.tc.POST("/documents", map[string]any{
		"title":              name,
		"content":            "Terms of " + name,
		"requires_signature": true,
	}); err != nil {
		return err
	}
	return s.remember(name, owner)
}

func (s *signingSteps) remember(name, owner string) error {
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

func (s *signingSteps) requestSignatures(ctx context.Context, actor, doc, signers string) error {
	return s.request(actor, doc, signers, false)
}

func (s *signingSteps) requestOrderedSignatures(ctx context.Context, actor, doc, signers string) error {
	return s.request(actor, doc, signers, true)
}

func (s *signingSteps) request(actor, doc, signers string, ordered bool) error {
	docID, _, err := s.tc.Document(doc)
	if err != nil {
		return err
	}
	var entries []map[string]any
	for i, name := range strings.Split(signers, ",") {
		userID, err := s.tc.UserID(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		entry := map[string]any{"signer": userID}
		if ordered {
			entry["signature_position"] = i + 1
		}
		entries = append(entries, entry)
	}
	if err := s.tc.AsUser(actor); err != nil {
		return err
	}
	return s.tc.POST("/documents/"+docID+"/signatures", map[string]any{"signers": entries})
}

func (s *signingSteps) sign(ctx context.Context, actor, doc string) error {
	return s.act(actor, doc, "sign", map[string]any{})
}

func (s *signingSteps) signOnBehalf(ctx context.Context, actor, doc, signer string) error {
	signerID, err := s.tc.UserID(signer)
	if err != nil {
		return err
	}
	return s.act(actor, doc, "sign", map[string]any{"signer": signerID})
}

func (s *signingSteps) reject(ctx context.Context, actor, doc, comment string) error {
	return s.act(actor, doc, "reject", map[string]any{"comment": comment})
}

func (s *signingSteps) reopen(ctx context.Context, actor, doc string) error {
	return s.act(actor, doc, "reopen", map[string]any{})
}

func (s *signingSteps) act(actor, doc, action string, body map[string]any) error {
	docID, _, err := s.tc.Document(doc)
	if err != nil {
		return err
	}
	if err := s.tc.AsUser(actor); err != nil {
		return err
	}
	return s.tc.POST("/documents/"+docID+"/"+action, body)
}

func (s *signingSteps) removeRequest(ctx context.Context, actor, signer, doc string) error {
	docID, _, err := s.tc.Document(doc)
	if err != nil {
		return err
	}
	signerID, err := s.tc.UserID(signer)
	if err != nil {
		return err
	}
	if err := s.tc.AsUser(actor); err != nil {
		return err
	}
	return s.tc.DELETE("/documents/" + docID + "/signatures/" + signerID)
}

func (s *signingSteps) stateShouldBe(ctx context.Context, doc, state string) error {
	if err := s.asOwner(doc, ""); err != nil {
		return err
	}
	got, err := s.tc.GetResponseField("state")
	if err != nil {
		return err
	}
	if got != state {
		return fmt.Errorf("expected %s to be %s, got %v", doc, state, got)
	}
	return nil
}

func (s *signingSteps) versionsShouldBe(ctx context.Context, doc string, n int) error {
	if err := s.asOwner(doc, "/versions"); err != nil {
		return err
	}
	count, err := s.tc.ResponseLength()
	if err != nil {
		return err
	}
	if count != n {
		return fmt.Errorf("expected %d versions of %s, got %d", n, doc, count)
	}
	return nil
}

func (s *signingSteps) pendingShouldBe(ctx context.Context, user string, n int) error {
	if err := s.tc.AsUser(user); err != nil {
		return err
	}
	if err := s.tc.GET("/signatures/pending"); err != nil {
		return err
	}
	count, err := s.tc.ResponseLength()
	if err != nil {
		return err
	}
	if count != n {
		return fmt.Errorf("expected %d pending for %s, got %d", n, user, count)
	}
	return nil
}

func (s *signingSteps) asOwner(doc, suffix string) error {
	docID, owner, err := s.tc.Document(doc)
	if err != nil {
		return err
	}
	if err := s.tc.AsUser(owner); err != nil {
		return err
	}
	if err := s.tc.GET("/documents/" + docID + suffix); err != nil {
		return err
	}
	if s.tc.LastStatus() != 200 {
		return fmt.Errorf("get %s%s: status %d: %s", doc, suffix, s.tc.LastStatus(), s.tc.LastBody())
	}
	return nil
}
