package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexflow/internal/document/blob"
	"lexflow/internal/document/models"
	"lexflow/internal/document/service"
	"lexflow/internal/document/store/memory"
	idmodels "lexflow/internal/identity/models"
	idservice "lexflow/internal/identity/service"
	idstore "lexflow/internal/identity/store"
	id "lexflow/pkg/domain"
	adminmw "lexflow/pkg/platform/middleware/admin"
	"lexflow/pkg/testutil"
)

const adminToken = "sweep-token"

type fixture struct {
	router http.Handler
	users  *idstore.InMemory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.NewDB()
	users := idstore.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := service.New(service.Stores{
		Documents:     db.Documents(),
		Signatures:    db.Signatures(),
		Grants:        db.Grants(),
		Versions:      db.Versions(),
		Relationships: db.Relationships(),
	}, db, idservice.New(users, nil), blob.NewInMemory(), service.WithLogger(logger))
	require.NoError(t, err)

	h := New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	return &fixture{router: r, users: users}
}

func (f *fixture) user(t *testing.T, role idmodels.Role) id.UserID {
	t.Helper()
	userID := id.UserID(uuid.New())
	u, err := idmodels.NewUser(userID, "", "User "+userID.String()[:6], role, false, true, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.users.Upsert(context.Background(), u))
	return userID
}

func (f *fixture) do(t *testing.T, as id.UserID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	req = testutil.AsUser(req, as)
	req = testutil.FromAddress(req, "198.51.100.4", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15")
	return testutil.Do(f.router, req)
}

func (f *fixture) createDocument(t *testing.T, owner id.UserID, body map[string]any) models.Document {
	t.Helper()
	rr := f.do(t, owner, http.MethodPost, "/documents", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.Decode[models.Document](t, rr)
}

func (f *fixture) completedDocument(t *testing.T, owner id.UserID) models.Document {
	t.Helper()
	doc := f.createDocument(t, owner, map[string]any{"title": "Exhibit"})
	rr := f.do(t, owner, http.MethodPatch, "/documents/"+doc.ID.String(), map[string]any{"state": "completed"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return testutil.Decode[models.Document](t, rr)
}

func TestDocumentEndpoints(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, idmodels.RoleClient)
	stranger := f.user(t, idmodels.RoleClient)

	doc := f.createDocument(t, owner, map[string]any{"title": "  Lease  ", "content": "Rent: {{ amount }}"})
	assert.Equal(t, "Lease", doc.Title)
	assert.Equal(t, models.StateDraft, doc.State)

	t.Run("get as owner", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodGet, "/documents/"+doc.ID.String(), nil)
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("get as stranger", func(t *testing.T) {
		rr := f.do(t, stranger, http.MethodGet, "/documents/"+doc.ID.String(), nil)
		testutil.AssertError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("permission level", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodGet, "/documents/"+doc.ID.String()+"/permission", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "owner", testutil.Decode[PermissionResponse](t, rr).Permission)

		rr = f.do(t, stranger, http.MethodGet, "/documents/"+doc.ID.String()+"/permission", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "none", testutil.Decode[PermissionResponse](t, rr).Permission)
	})

	t.Run("list only shows visible documents", func(t *testing.T) {
		rr := f.do(t, stranger, http.MethodGet, "/documents", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, testutil.Decode[[]models.Document](t, rr))
	})

	t.Run("patch rejects signature states", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodPatch, "/documents/"+doc.ID.String(), map[string]any{"state": "fully_signed"})
		testutil.AssertError(t, rr, http.StatusBadRequest, "invalid_state")
	})

	t.Run("patch rejects unknown states", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodPatch, "/documents/"+doc.ID.String(), map[string]any{"state": "archived"})
		testutil.AssertError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("delete", func(t *testing.T) {
		rr := f.do(t, stranger, http.MethodDelete, "/documents/"+doc.ID.String(), nil)
		testutil.AssertError(t, rr, http.StatusForbidden, "forbidden")
		rr = f.do(t, owner, http.MethodDelete, "/documents/"+doc.ID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		rr = f.do(t, owner, http.MethodGet, "/documents/"+doc.ID.String(), nil)
		testutil.AssertError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, idmodels.RoleClient)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed document id", http.MethodGet, "/documents/nope", nil, http.StatusBadRequest, "invalid_input"},
		{"missing title", http.MethodPost, "/documents", map[string]any{"content": "x"}, http.StatusBadRequest, "validation_error"},
		{"unknown field", http.MethodPost, "/documents", map[string]any{"title": "x", "owner": "me"}, http.StatusBadRequest, "bad_request"},
		{"relationship without target", http.MethodPost, "/relationships", map[string]any{"source_document": uuid.NewString()}, http.StatusBadRequest, "validation_error"},
		{"non-boolean allow flag", http.MethodGet, "/documents/" + uuid.NewString() + "/relationships/available?allow_pending_signatures=maybe", nil, http.StatusBadRequest, "bad_request"},
		{"empty signer list", http.MethodPost, "/documents/" + uuid.NewString() + "/signatures", map[string]any{"signers": []any{}}, http.StatusBadRequest, "validation_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, owner, tc.method, tc.path, tc.body)
			testutil.AssertError(t, rr, tc.status, tc.code)
		})
	}

	t.Run("unauthenticated caller", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/documents", nil)
		rr := testutil.Do(f.router, req)
		testutil.AssertError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}

func TestGrantEndpoints(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, idmodels.RoleClient)
	grantee := f.user(t, idmodels.RoleClient)
	doc := f.createDocument(t, owner, map[string]any{"title": "Shared"})
	base := "/documents/" + doc.ID.String()

	rr := f.do(t, owner, http.MethodPost, base+"/usability", map[string]any{"user": grantee.String()})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, owner, http.MethodPost, base+"/usability", map[string]any{"user": grantee.String()})
	require.Equal(t, http.StatusOK, rr.Code, "second grant is a no-op")

	rr = f.do(t, owner, http.MethodGet, base+"/visibility", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, testutil.Decode[[]models.Grant](t, rr), 1, "usability implies a visibility grant")

	rr = f.do(t, grantee, http.MethodPost, base+"/visibility", map[string]any{"user": owner.String()})
	testutil.AssertError(t, rr, http.StatusForbidden, "forbidden")

	rr = f.do(t, owner, http.MethodDelete, base+"/visibility/"+grantee.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, owner, http.MethodGet, base+"/usability", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, testutil.Decode[[]models.Grant](t, rr))
}

func TestSigningFlow(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, idmodels.RoleClient)
	signer := f.user(t, idmodels.RoleClient)
	doc := f.createDocument(t, owner, map[string]any{"title": "NDA", "content": "Confidential", "requires_signature": true})
	base := "/documents/" + doc.ID.String()

	rr := f.do(t, owner, http.MethodPost, base+"/signatures", map[string]any{
		"signers": []map[string]any{{"signer": signer.String()}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Len(t, testutil.Decode[[]models.Signature](t, rr), 1)

	rr = f.do(t, signer, http.MethodGet, "/signatures/pending", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, testutil.Decode[[]service.PendingSignature](t, rr), 1)

	rr = f.do(t, signer, http.MethodPost, base+"/sign", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := testutil.Decode[service.SignResult](t, rr)
	assert.Equal(t, models.StateFullySigned, res.Document.State)
	assert.Equal(t, "198.51.100.4", res.Signature.IPAddress)
	require.Len(t, res.Versions, 2)

	t.Run("signing twice", func(t *testing.T) {
		rr := f.do(t, signer, http.MethodPost, base+"/sign", map[string]any{"signer": signer.String()})
		testutil.AssertError(t, rr, http.StatusBadRequest, "invalid_state")
	})

	t.Run("version content is served raw", func(t *testing.T) {
		signed := res.Versions[1]
		rr := f.do(t, owner, http.MethodGet, base+"/versions/"+signed.ID.String()+"/content", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
		assert.Equal(t, `"`+signed.Digest+`"`, rr.Header().Get("ETag"))
		assert.Contains(t, rr.Body.String(), "Confidential")
	})

	t.Run("versions list", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodGet, base+"/versions", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, testutil.Decode[[]models.Version](t, rr), 2)
	})

	t.Run("pending list is empty after signing", func(t *testing.T) {
		rr := f.do(t, signer, http.MethodGet, "/signatures/pending", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, testutil.Decode[[]service.PendingSignature](t, rr))
	})
}

func TestRejectAndReopen(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, idmodels.RoleClient)
	signer := f.user(t, idmodels.RoleClient)
	doc := f.createDocument(t, owner, map[string]any{"title": "Offer", "requires_signature": true})
	base := "/documents/" + doc.ID.String()

	rr := f.do(t, owner, http.MethodPost, base+"/signatures", map[string]any{
		"signers": []map[string]any{{"signer": signer.String(), "signature_position": 1}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, signer, http.MethodPost, base+"/reject", map[string]any{"comment": "salary too low"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sig := testutil.Decode[models.Signature](t, rr)
	assert.True(t, sig.Rejected)
	assert.Equal(t, "salary too low", sig.RejectionComment)

	rr = f.do(t, owner, http.MethodPost, base+"/reopen", map[string]any{})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, models.StatePendingSignatures, testutil.Decode[models.Document](t, rr).State)

	rr = f.do(t, owner, http.MethodDelete, base+"/signatures/"+signer.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, owner, http.MethodGet, base+"/signatures", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, testutil.Decode[[]models.Signature](t, rr))
}

func TestRelationshipEndpoints(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, idmodels.RoleClient)
	a := f.completedDocument(t, owner)
	b := f.completedDocument(t, owner)
	c := f.completedDocument(t, owner)

	rr := f.do(t, owner, http.MethodPost, "/relationships", map[string]any{
		"source_document": a.ID.String(),
		"target_document": b.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rel := testutil.Decode[models.Relationship](t, rr)

	t.Run("reverse duplicate conflicts", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodPost, "/relationships", map[string]any{
			"source_document": b.ID.String(),
			"target_document": a.ID.String(),
		})
		testutil.AssertError(t, rr, http.StatusBadRequest, "conflict")
	})

	t.Run("self link", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodPost, "/relationships", map[string]any{
			"source_document": c.ID.String(),
			"target_document": c.ID.String(),
		})
		testutil.AssertError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("available targets exclude related documents", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodGet, "/documents/"+a.ID.String()+"/relationships/available?allow_pending_signatures=true", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		docs := testutil.Decode[[]models.Document](t, rr)
		require.Len(t, docs, 1)
		assert.Equal(t, c.ID, docs[0].ID)
	})

	t.Run("list from either side", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodGet, "/documents/"+b.ID.String()+"/relationships", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, testutil.Decode[[]models.Relationship](t, rr), 1)
	})

	t.Run("get and delete", func(t *testing.T) {
		rr := f.do(t, owner, http.MethodGet, "/relationships/"+rel.ID.String(), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		rr = f.do(t, owner, http.MethodDelete, "/relationships/"+rel.ID.String(), nil)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		rr = f.do(t, owner, http.MethodGet, "/relationships/"+rel.ID.String(), nil)
		testutil.AssertError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestAdminSweep(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, idmodels.RoleClient)

	rr := f.do(t, owner, http.MethodPost, "/admin/signatures/sweep", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/admin/signatures/sweep", nil)
	req.Header.Set(adminmw.HeaderAdminToken, adminToken)
	rr = testutil.Do(f.router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 0, testutil.Decode[SweepResponse](t, rr).Expired)
}
