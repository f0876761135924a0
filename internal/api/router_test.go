package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formforge/formforge/internal/middleware"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewRouter(NewMemoryStore(), nil).Register(mux)
	srv := httptest.NewServer(middleware.WithAuth(mux))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func registerUser(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	var res struct {
		Token string `json:"token"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]string{"email": email, "password": "secret1"}, &res)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, res.Token)
	return res.Token
}

func TestFormLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "owner@example.com")

	var form Form
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms", token, map[string]string{"title": "Contact Us"}, &form)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, form.ID)
	require.NotEmpty(t, form.Slug)
	assert.False(t, form.Published)

	// save two new fields, ids carry the builder's temp- prefix
	var saved struct {
		Fields []Field `json:"fields"`
	}
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/forms/"+form.ID+"/fields", token, map[string]any{
		"fields": []map[string]any{
			{"id": "temp-1", "type": "text", "label": "Name", "required": true},
			{"id": "temp-2", "type": "email", "label": "Email"},
		},
	}, &saved)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, saved.Fields, 2)
	nameID := saved.Fields[0].ID
	emailID := saved.Fields[1].ID
	assert.NotContains(t, nameID, "temp-")
	assert.Equal(t, 0, saved.Fields[0].Position)
	assert.Equal(t, 1, saved.Fields[1].Position)

	// public page is hidden until publish
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/public/forms/"+form.Slug, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/forms/"+form.ID+"/publish", token, map[string]bool{"published": true}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		Title  string `json:"title"`
		Fields []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"fields"`
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/public/forms/"+form.Slug, "", nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Contact Us", view.Title)
	require.Len(t, view.Fields, 2)

	// invalid submission returns the field error map and stores nothing
	var failure struct {
		Errors map[string]string `json:"errors"`
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/public/forms/"+form.Slug+"/submissions", "", map[string]any{
		"values": map[string]string{emailID: "not-an-email"},
	}, &failure)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Name is required", failure.Errors[nameID])
	assert.Equal(t, "Invalid email", failure.Errors[emailID])

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/public/forms/"+form.Slug+"/submissions", "", map[string]any{
		"values": map[string]string{nameID: "Alice", emailID: "alice@example.com"},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var subs struct {
		Submissions []Submission `json:"submissions"`
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/forms/"+form.ID+"/submissions", token, nil, &subs)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, subs.Submissions, 1)
	assert.Len(t, subs.Submissions[0].Values, 2)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/forms/"+form.ID, token, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/public/forms/"+form.Slug, "", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRequiredOnBuilderRoutes(t *testing.T) {
	srv := newTestServer(t)
	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/api/forms"},
		{http.MethodPost, "/api/forms"},
		{http.MethodGet, "/api/forms/F1"},
		{http.MethodGet, "/api/audit"},
	} {
		resp := doJSON(t, r.method, srv.URL+r.path, "", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", r.method, r.path)
	}
}

func TestFormsAreOwnerScoped(t *testing.T) {
	srv := newTestServer(t)
	owner := registerUser(t, srv, "owner@example.com")
	other := registerUser(t, srv, "other@example.com")

	var form Form
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/forms", owner, map[string]string{"title": "Mine"}, &form)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/forms/"+form.ID, other, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/forms/"+form.ID, other, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var list struct {
		Forms []json.RawMessage `json:"forms"`
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/forms", other, nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, list.Forms)
}

func TestLoginEndpoint(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "owner@example.com")

	var res struct {
		Token string `json:"token"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{"email": "owner@example.com", "password": "secret1"}, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, res.Token)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{"email": "owner@example.com", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/auth/register", "", map[string]string{"email": "owner@example.com", "password": "x"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
