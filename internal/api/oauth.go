package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/akhatua2/designx/internal/oauth"
	"github.com/akhatua2/designx/internal/observability"
	"github.com/akhatua2/designx/internal/store"
	"github.com/akhatua2/designx/pkg/extapi"
)

func (s *Server) handleOAuthExchange(w http.ResponseWriter, r *http.Request, provider string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req extapi.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	var payload any
	var err error
	switch provider {
	case "github":
		payload, err = s.github.Exchange(r.Context(), req.Code)
	case "slack":
		payload, err = s.slack.Exchange(r.Context(), req.Code)
	case "jira":
		payload, err = s.jira.Exchange(r.Context(), req.Code)
	case "google":
		var resp extapi.GoogleTokenResponse
		resp, err = s.google.Exchange(r.Context(), req.Code)
		if err == nil {
			resp = s.recordGoogleUser(r.Context(), resp)
		}
		payload = resp
	default:
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	if err != nil {
		observability.Default.IncCounter("oauth_exchanges_total", map[string]string{"provider": provider, "result": "error"}, 1)
		writeOAuthError(w, err)
		return
	}
	observability.Default.IncCounter("oauth_exchanges_total", map[string]string{"provider": provider, "result": "ok"}, 1)
	writeJSON(w, http.StatusOK, payload)
}

// recordGoogleUser upserts the signed-in user so records created later
// can reference a stable id. A store failure downgrades to a log line;
// the caller still gets their token.
func (s *Server) recordGoogleUser(ctx context.Context, resp extapi.GoogleTokenResponse) extapi.GoogleTokenResponse {
	externalID, _ := resp.User["google_id"].(string)
	if externalID == "" {
		return resp
	}
	email, _ := resp.User["email"].(string)
	name, _ := resp.User["name"].(string)
	picture, _ := resp.User["picture"].(string)
	rec, err := s.store.UpsertUser(ctx, store.UserRecord{
		ID:         uuid.New().String(),
		Provider:   "google",
		ExternalID: externalID,
		Email:      email,
		Name:       name,
		AvatarURL:  picture,
	})
	if err != nil {
		log.Printf("provider=google: user upsert failed: %v", err)
		return resp
	}
	resp.User["id"] = rec.ID
	return resp
}

func writeOAuthError(w http.ResponseWriter, err error) {
	var xerr *oauth.ExchangeError
	switch {
	case errors.Is(err, oauth.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &xerr):
		writeError(w, http.StatusBadRequest, xerr.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// handleOAuthCallback is the browser-facing leg of the flow: the
// provider redirects here, and a tiny page forwards the code (or the
// error) to the success page, which talks to the extension.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request, provider string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	code := r.URL.Query().Get("code")
	errParam := r.URL.Query().Get("error")
	if code == "" && errParam == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code or error")
		return
	}
	renderCallbackPage(w, provider, code, errParam)
}

func (s *Server) handleAuthSuccess(w http.ResponseWriter, r *http.Request, provider string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	code := r.URL.Query().Get("code")
	errParam := r.URL.Query().Get("error")
	if code == "" && errParam == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}
	renderSuccessPage(w, provider, code, errParam)
}

func (s *Server) handleGithubUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		writeError(w, http.StatusBadRequest, "invalid authorization header format")
		return
	}
	token := strings.TrimPrefix(authz, "Bearer ")
	user, status, err := s.github.User(r.Context(), token)
	if err != nil {
		if status == http.StatusUnauthorized {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}
