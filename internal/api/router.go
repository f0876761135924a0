package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/formforge/formforge/internal/middleware"
	"github.com/formforge/formforge/internal/services"
)

// Router wires HTTP endpoints to the services. All handlers speak JSON.
type Router struct {
	store  Store
	forms  *services.FormService
	subs   *services.SubmissionService
	auth   *services.AuthService
	logger *zap.Logger
}

func NewRouter(store Store, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		store:  store,
		forms:  services.NewFormService(newFormStoreAdapter(store)),
		subs:   services.NewSubmissionService(newSubmissionStoreAdapter(store)),
		auth:   services.NewAuthService(newAuthStoreAdapter(store), middleware.SignToken),
		logger: logger,
	}
}

// Forms exposes the form service for out-of-band callers such as seeding.
func (rt *Router) Forms() *services.FormService { return rt.forms }

// Submissions exposes the submission service.
func (rt *Router) Submissions() *services.SubmissionService { return rt.subs }

// Auth exposes the auth service.
func (rt *Router) Auth() *services.AuthService { return rt.auth }

// Register mounts all API routes on mux. Authenticated routes expect
// middleware.WithAuth to run on the outer chain so claims are in context.
func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", rt.handleRegister)
	mux.HandleFunc("/api/auth/login", rt.handleLogin)
	mux.Handle("/api/forms", middleware.RequireAuth(http.HandlerFunc(rt.handleForms)))
	mux.Handle("/api/forms/", middleware.RequireAuth(http.HandlerFunc(rt.handleFormScoped)))
	mux.HandleFunc("/api/public/forms/", rt.handlePublic)
	mux.Handle("/api/audit", middleware.RequireAuth(http.HandlerFunc(rt.handleAudit)))
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	res, err := rt.auth.Register(req.Email, req.Password)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: res.Token, UserID: res.UserID})
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	res, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: res.Token, UserID: res.UserID})
}

type createFormRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type formSummaryPayload struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Published       bool   `json:"published"`
	Slug            string `json:"url_slug"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
	SubmissionCount int    `json:"submission_count"`
}

// handleForms serves the collection: POST creates, GET lists the caller's
// forms with submission counts.
func (rt *Router) handleForms(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	switch r.Method {
	case http.MethodPost:
		var req createFormRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		f, err := rt.forms.Create(uid, req.Title, req.Description)
		if err != nil {
			rt.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, f)
	case http.MethodGet:
		summaries, err := rt.forms.List(uid)
		if err != nil {
			rt.writeErr(w, err)
			return
		}
		out := make([]formSummaryPayload, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, formSummaryPayload{
				ID:              s.Form.ID,
				Title:           s.Form.Title,
				Description:     s.Form.Description,
				Published:       s.Form.Published,
				Slug:            s.Form.Slug,
				CreatedAt:       s.Form.CreatedAt.Format(time.RFC3339),
				UpdatedAt:       s.Form.UpdatedAt.Format(time.RFC3339),
				SubmissionCount: s.SubmissionCount,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"forms": out})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFormScoped routes /api/forms/{id}[/...] by splitting the path the
// same way the rest of the API does.
func (rt *Router) handleFormScoped(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	rest := strings.TrimPrefix(r.URL.Path, "/api/forms/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	formID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			detail, err := rt.forms.Get(uid, formID)
			if err != nil {
				rt.writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, detail)
		case http.MethodDelete:
			if err := rt.forms.Delete(uid, formID); err != nil {
				rt.writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch parts[1] {
	case "fields":
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		rt.handleSaveFields(w, r, uid, formID)
	case "publish":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Published bool `json:"published"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := rt.forms.SetPublished(uid, formID, req.Published); err != nil {
			rt.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"published": req.Published})
	case "submissions":
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		detail, err := rt.forms.Get(uid, formID)
		if err != nil {
			rt.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"submissions": detail.Submissions})
	default:
		http.NotFound(w, r)
	}
}

// fieldPayload is the wire shape of one field in a save request. Position
// is taken from array order; ids that are empty or carry the builder's
// "temp-" prefix mark fields that do not exist in storage yet.
type fieldPayload struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Placeholder string   `json:"placeholder"`
	Required    bool     `json:"required"`
	Options     []string `json:"options"`
}

func (p fieldPayload) ref() services.FieldRef {
	if p.ID == "" || strings.HasPrefix(p.ID, "temp-") {
		return services.TempRef(strings.TrimPrefix(p.ID, "temp-"))
	}
	return services.StoredRef(p.ID)
}

func (rt *Router) handleSaveFields(w http.ResponseWriter, r *http.Request, uid, formID string) {
	var req struct {
		Fields []fieldPayload `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	drafts := make([]services.FieldDraft, 0, len(req.Fields))
	for i, p := range req.Fields {
		drafts = append(drafts, services.FieldDraft{
			Ref:         p.ref(),
			Type:        services.FieldType(p.Type),
			Label:       p.Label,
			Placeholder: p.Placeholder,
			Required:    p.Required,
			Options:     p.Options,
			Position:    i,
		})
	}
	if err := rt.forms.SaveFields(uid, formID, drafts); err != nil {
		rt.writeErr(w, err)
		return
	}
	detail, err := rt.forms.Get(uid, formID)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": detail.Fields})
}

// handlePublic serves the anonymous side: GET /api/public/forms/{slug}
// renders a published form, POST .../{slug}/submissions accepts values.
func (rt *Router) handlePublic(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/public/forms/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	slug := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		view, err := rt.subs.PublicForm(slug)
		if err != nil {
			rt.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case len(parts) == 2 && parts[1] == "submissions" && r.Method == http.MethodPost:
		var req struct {
			Values map[string]string `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		res, err := rt.subs.Submit(slug, req.Values)
		if err != nil {
			rt.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"submission_id": res.SubmissionID, "value_count": res.ValueCount})
	default:
		http.NotFound(w, r)
	}
}

func (rt *Router) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": rt.store.ListAudit()})
}

// writeErr maps service failures onto HTTP statuses. Validation errors get
// 422 with the per-field map so the form page can render them inline.
func (rt *Router) writeErr(w http.ResponseWriter, err error) {
	if ve, ok := services.AsValidationError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": ve.Fields})
		return
	}
	if errors.Is(err, services.ErrFormUnavailable) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if se, ok := services.AsServiceError(err); ok {
		status := http.StatusInternalServerError
		switch se.Code {
		case services.ErrorUnauthorized:
			status = http.StatusUnauthorized
		case services.ErrorForbidden:
			status = http.StatusForbidden
		case services.ErrorNotFound, services.ErrorUnavailable:
			status = http.StatusNotFound
		case services.ErrorInvalid:
			status = http.StatusBadRequest
		case services.ErrorConflict:
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": se.Message})
		return
	}
	rt.logger.Error("unhandled api error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
