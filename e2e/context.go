package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TestContext is the per-scenario state shared by every step package. It
// talks to a running server over HTTP.
type TestContext struct {
	BaseURL    string
	AdminToken string
	client     *http.Client

	tokens  map[string]string
	userIDs map[string]string
	docs    map[string]string
	owners  map[string]string
	current string

	lastStatus int
	lastBody   []byte
}

func NewTestContext(baseURL, adminToken string) *TestContext {
	return &TestContext{
		BaseURL:    baseURL,
		AdminToken: adminToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		tokens:     map[string]string{},
		userIDs:    map[string]string{},
		docs:       map[string]string{},
		owners:     map[string]string{},
	}
}

// EnsureUser registers a principal through the admin API and mints a token
// for it.
func (tc *TestContext) EnsureUser(name, role string, hasSignature bool) error {
	userID, ok := tc.userIDs[name]
	if !ok {
		userID = uuid.NewString()
	}
	body := map[string]any{
		"name":          name,
		"role":          role,
		"has_signature": hasSignature,
	}
	if err := tc.admin(http.MethodPut, "/admin/users/"+userID, body); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusOK {
		return fmt.Errorf("upsert %s: status %d: %s", name, tc.lastStatus, tc.lastBody)
	}
	if err := tc.admin(http.MethodPost, "/admin/users/"+userID+"/token", nil); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusCreated {
		return fmt.Errorf("token for %s: status %d: %s", name, tc.lastStatus, tc.lastBody)
	}
	token, err := tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	tc.userIDs[name] = userID
	tc.tokens[name] = token.(string)
	return nil
}

func (tc *TestContext) AsUser(name string) error {
	if _, ok := tc.tokens[name]; !ok {
		return fmt.Errorf("unknown user %q", name)
	}
	tc.current = name
	return nil
}

func (tc *TestContext) UserID(name string) (string, error) {
	userID, ok := tc.userIDs[name]
	if !ok {
		return "", fmt.Errorf("unknown user %q", name)
	}
	return userID, nil
}

func (tc *TestContext) RememberDocument(name, docID, owner string) {
	tc.docs[name] = docID
	tc.owners[name] = owner
}

func (tc *TestContext) Document(name string) (docID, owner string, err error) {
	docID, ok := tc.docs[name]
	if !ok {
		return "", "", fmt.Errorf("unknown document %q", name)
	}
	return docID, tc.owners[name], nil
}

func (tc *TestContext) POST(path string, body any) error { return tc.do(http.MethodPost, path, body) }
func (tc *TestContext) PATCH(path string, body any) error { return tc.do(http.MethodPatch, path, body) }
func (tc *TestContext) GET(path string) error { return tc.do(http.MethodGet, path, nil) }
func (tc *TestContext) DELETE(path string) error { return tc.do(http.MethodDelete, path, nil) }
func (tc *TestContext) LastStatus() int { return tc.lastStatus }
func (tc *TestContext) LastBody() []byte { return tc.lastBody }

func (tc *TestContext) admin(method, path string, body any) error {
	return tc.send(method, path, body, map[string]string{"X-Admin-Token": tc.AdminToken})
}

func (tc *TestContext) do(method, path string, body any) error {
	headers := map[string]string{}
	if token, ok := tc.tokens[tc.current]; ok {
		headers["Authorization"] = "Bearer " + token
	}
	return tc.send(method, path, body, headers)
}

func (tc *TestContext) send(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// GetResponseField reads a top-level field of the last JSON object body.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var obj map[string]any
	if err := json.Unmarshal(tc.lastBody, &obj); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.lastBody)
	}
	v, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("field %q missing from %s", field, tc.lastBody)
	}
	return v, nil
}

// ResponseLength returns the length of the last JSON array body.
func (tc *TestContext) ResponseLength() (int, error) {
	var arr []any
	if err := json.Unmarshal(tc.lastBody, &arr); err != nil {
		return 0, fmt.Errorf("response is not a JSON array: %s", tc.lastBody)
	}
	return len(arr), nil
}
