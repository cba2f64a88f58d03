package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests must include a valid
// Authorization: Bearer <token> header. GET /v1/health, the webhook
// endpoints (which authenticate by signature), and the realtime
// endpoints (which authenticate by user token) are exempt.
func (s *ZyroServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/projects", s.handleCreateProject)
	mux.HandleFunc("GET /v1/projects", s.handleListProjects)
	mux.HandleFunc("GET /v1/projects/{id}", s.handleGetProject)
	mux.HandleFunc("PATCH /v1/projects/{id}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /v1/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("POST /v1/projects/{id}/members", s.handleAddProjectMember)
	mux.HandleFunc("GET /v1/projects/{id}/events", s.handleListEvents)

	mux.HandleFunc("POST /v1/projects/{id}/issues", s.handleCreateIssue)
	mux.HandleFunc("GET /v1/projects/{id}/issues", s.handleListIssues)
	mux.HandleFunc("GET /v1/issues/{id}", s.handleGetIssue)
	mux.HandleFunc("PATCH /v1/issues/{id}", s.handleUpdateIssue)
	mux.HandleFunc("DELETE /v1/issues/{id}", s.handleDeleteIssue)

	mux.HandleFunc("POST /v1/projects/{id}/sprints", s.handleCreateSprint)
	mux.HandleFunc("GET /v1/projects/{id}/sprints", s.handleListSprints)
	mux.HandleFunc("GET /v1/sprints/{id}", s.handleGetSprint)
	mux.HandleFunc("PATCH /v1/sprints/{id}", s.handleUpdateSprint)
	mux.HandleFunc("DELETE /v1/sprints/{id}", s.handleDeleteSprint)

	mux.HandleFunc("POST /v1/issues/{id}/comments", s.handleCreateComment)
	mux.HandleFunc("GET /v1/issues/{id}/comments", s.handleListComments)
	mux.HandleFunc("DELETE /v1/comments/{id}", s.handleDeleteComment)

	mux.HandleFunc("POST /v1/issues/{id}/attachments", s.handleCreateAttachment)
	mux.HandleFunc("GET /v1/issues/{id}/attachments", s.handleListAttachments)
	mux.HandleFunc("DELETE /v1/attachments/{id}", s.handleDeleteAttachment)

	mux.HandleFunc("POST /v1/webhooks/github", s.handleGitHubWebhook)
	mux.HandleFunc("POST /v1/webhooks/slack", s.handleSlackWebhook)

	mux.HandleFunc("GET /v1/realtime", s.handleRealtime)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)

	mux.HandleFunc("GET /v1/health", s.handleHealth)

	return AuthMiddleware(authToken, mux)
}

// handleHealth handles GET /v1/health.
func (s *ZyroServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authExempt reports whether a path authenticates by means other than
// the static API token.
func authExempt(r *http.Request) bool {
	if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/v1/webhooks/") {
		return true
	}
	if r.URL.Path == "/v1/realtime" || r.URL.Path == "/v1/events/stream" {
		return true
	}
	return false
}

// AuthMiddleware wraps an http.Handler and checks the Authorization
// header for a valid Bearer token. When token is empty, auth is
// disabled and all requests pass through.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		provided, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid authorization scheme")
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
