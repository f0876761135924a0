//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("FORMFORGE_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

// TestFormJourneyIntegration drives a running server end to end: register,
// build a form, publish it, submit to it anonymously, read the results back.
func TestFormJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	userEmail := fmt.Sprintf("integration_%d@example.com", time.Now().UnixNano())
	password := "Secret123!"

	var registerResp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	do(t, client, http.MethodPost, base+"/api/auth/register", "", map[string]string{
		"email":    userEmail,
		"password": password,
	}, &registerResp, http.StatusCreated)
	if registerResp.Token == "" || registerResp.UserID == "" {
		t.Fatalf("unexpected register response: %+v", registerResp)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	do(t, client, http.MethodPost, base+"/api/auth/login", "", map[string]string{
		"email":    userEmail,
		"password": password,
	}, &loginResp, http.StatusOK)
	token := loginResp.Token
	if token == "" {
		t.Fatal("login did not return token")
	}

	var createResp struct {
		ID   string `json:"id"`
		Slug string `json:"url_slug"`
	}
	do(t, client, http.MethodPost, base+"/api/forms", token, map[string]string{
		"title":       "Integration Contact Form",
		"description": "created by the integration suite",
	}, &createResp, http.StatusCreated)
	if createResp.ID == "" || createResp.Slug == "" {
		t.Fatalf("unexpected create response: %+v", createResp)
	}

	var saveResp struct {
		Fields []struct {
			ID       string `json:"id"`
			Label    string `json:"label"`
			Position int    `json:"position"`
		} `json:"fields"`
	}
	do(t, client, http.MethodPut, base+"/api/forms/"+createResp.ID+"/fields", token, map[string]any{
		"fields": []map[string]any{
			{"id": "temp-1", "type": "text", "label": "Name", "required": true},
			{"id": "temp-2", "type": "email", "label": "Email", "required": true},
			{"id": "temp-3", "type": "textarea", "label": "Message"},
		},
	}, &saveResp, http.StatusOK)
	if len(saveResp.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %+v", saveResp.Fields)
	}
	for i, f := range saveResp.Fields {
		if f.Position != i {
			t.Fatalf("field %d has position %d", i, f.Position)
		}
		if strings.HasPrefix(f.ID, "temp-") {
			t.Fatalf("field %d still carries a temp id: %q", i, f.ID)
		}
	}
	nameID := saveResp.Fields[0].ID
	emailID := saveResp.Fields[1].ID

	do(t, client, http.MethodPost, base+"/api/forms/"+createResp.ID+"/publish", token,
		map[string]bool{"published": true}, nil, http.StatusOK)

	var publicResp struct {
		Title  string `json:"title"`
		Fields []any  `json:"fields"`
	}
	do(t, client, http.MethodGet, base+"/api/public/forms/"+createResp.Slug, "", nil, &publicResp, http.StatusOK)
	if publicResp.Title != "Integration Contact Form" || len(publicResp.Fields) != 3 {
		t.Fatalf("unexpected public view: %+v", publicResp)
	}

	var failResp struct {
		Errors map[string]string `json:"errors"`
	}
	do(t, client, http.MethodPost, base+"/api/public/forms/"+createResp.Slug+"/submissions", "", map[string]any{
		"values": map[string]string{emailID: "invalid"},
	}, &failResp, http.StatusUnprocessableEntity)
	if failResp.Errors[nameID] == "" || failResp.Errors[emailID] != "Invalid email" {
		t.Fatalf("unexpected validation errors: %+v", failResp.Errors)
	}

	do(t, client, http.MethodPost, base+"/api/public/forms/"+createResp.Slug+"/submissions", "", map[string]any{
		"values": map[string]string{nameID: "Integration Bot", emailID: "bot@example.com"},
	}, nil, http.StatusCreated)

	var subsResp struct {
		Submissions []struct {
			Values []struct {
				FieldID string `json:"field_id"`
				Value   string `json:"value"`
			} `json:"values"`
		} `json:"submissions"`
	}
	do(t, client, http.MethodGet, base+"/api/forms/"+createResp.ID+"/submissions", token, nil, &subsResp, http.StatusOK)
	if len(subsResp.Submissions) != 1 || len(subsResp.Submissions[0].Values) != 2 {
		t.Fatalf("unexpected submissions: %+v", subsResp)
	}

	do(t, client, http.MethodDelete, base+"/api/forms/"+createResp.ID, token, nil, nil, http.StatusOK)
	do(t, client, http.MethodGet, base+"/api/public/forms/"+createResp.Slug, "", nil, nil, http.StatusNotFound)
}

func do(t *testing.T, client *http.Client, method, url, token string, body, out any, wantStatus int) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: status %d, want %d (body %s)", method, url, resp.StatusCode, wantStatus, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("%s %s: decode response: %v (body %s)", method, url, err, data)
		}
	}
}
