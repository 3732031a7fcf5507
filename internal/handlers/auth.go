package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/example/watchtrack/internal/events"
	"github.com/example/watchtrack/internal/platform/api"
	"github.com/example/watchtrack/internal/platform/httpserver"
	"github.com/example/watchtrack/internal/tokens"
	"github.com/example/watchtrack/internal/users"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Signup handles POST /api/auth/signup.
func Signup(store users.Store, ep *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req signupRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Username == "" || req.Email == "" || req.Password == "" {
			api.BadRequest(w, "MISSING_FIELDS", "username, email and password are required", rid, nil)
			return
		}
		if !strings.Contains(req.Email, "@") {
			api.BadRequest(w, "INVALID_EMAIL", "email is malformed", rid, nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			api.Internal(w, rid)
			return
		}

		u, err := store.Create(r.Context(), users.CreateParams{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
		})
		if err != nil {
			if errors.Is(err, users.ErrConflict) {
				api.Conflict(w, "EMAIL_TAKEN", "email already registered", rid, nil)
				return
			}
			api.Internal(w, rid)
			return
		}

		ep.Publish(events.SubjectUserRegistered, "user_registered", u.ID, nil)
		api.WriteJSON(w, http.StatusCreated, u)
	}
}

// Login handles POST /api/auth/login and answers with a bearer token.
func Login(store users.Store, tok tokens.Service, ep *events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Email == "" || req.Password == "" {
			api.BadRequest(w, "MISSING_FIELDS", "email and password are required", rid, nil)
			return
		}

		u, err := store.GetByEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				api.Unauthorized(w, "INVALID_CREDENTIALS", "invalid credentials", rid)
				return
			}
			api.Internal(w, rid)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			api.Unauthorized(w, "INVALID_CREDENTIALS", "invalid credentials", rid)
			return
		}

		signed, exp, err := tok.NewAccessToken(u.ID, time.Time{})
		if err != nil {
			api.Internal(w, rid)
			return
		}

		ep.Publish(events.SubjectUserLoggedIn, "user_logged_in", u.ID, nil)
		api.WriteJSON(w, http.StatusOK, loginResponse{Token: signed, ExpiresAt: exp.UTC().Format(time.RFC3339)})
	}
}
