// ABOUTME: REST handlers for the in-memory backend's auth and message routes
// ABOUTME: Sets accessToken/refreshToken cookies on signup, login, and refresh

package fakeserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arham771790/Chat-Frontend/internal/api"
	"github.com/arham771790/Chat-Frontend/internal/auth"
)

const maxRequestSize = 16 << 20

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(auth.RefreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(w, r, &body); err == nil {
			token = body.RefreshToken
		}
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Refresh token missing")
		return
	}

	userID, err := s.issuer.Verify(token, auth.KindRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	user, ok := s.lookup(userID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not found")
		return
	}
	if _, _, err := s.issueCookies(w, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req api.SignupRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.FullName) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	user, err := s.Register(req.FullName, req.Email, req.Password)
	if errors.Is(err, ErrEmailTaken) {
		writeError(w, http.StatusBadRequest, "Email already exists")
		return
	}
	if err != nil {
		s.logger.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if _, _, err := s.issueCookies(w, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.logger.Info("account created", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := decodeBody(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.login(creds.Email, creds.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	access, refresh, err := s.issueCookies(w, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": api.LoginResult{User: user, AccessToken: access, RefreshToken: refresh},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	for _, name := range []string{auth.AccessCookie, auth.RefreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())

	var update api.ProfileUpdate
	if err := decodeBody(w, r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if update.FullName == "" && update.ProfilePic == "" {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[userID]
	if ok {
		if update.FullName != "" {
			acct.user.FullName = strings.TrimSpace(update.FullName)
		}
		if update.ProfilePic != "" {
			acct.user.ProfilePic = update.ProfilePic
		}
	}
	var user api.User
	if ok {
		user = acct.user
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": user})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"users": s.contacts(userID)})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, s.conversation(userID, chi.URLParam(r, "id")))
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	senderID := auth.UserFromContext(r.Context())
	receiverID := chi.URLParam(r, "id")

	var req api.SendRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" && req.Image == "" {
		writeError(w, http.StatusBadRequest, "Message must have text or an image")
		return
	}
	if _, ok := s.lookup(receiverID); !ok {
		writeError(w, http.StatusNotFound, "Receiver not found")
		return
	}

	s.mu.Lock()
	msg := api.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       req.Text,
		Image:      req.Image,
		CreatedAt:  s.timestamp(),
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	if err := s.hub.send(receiverID, eventNewMessage, msg); err != nil && !errors.Is(err, errOffline) {
		s.logger.Warn("failed to push message", "receiver", receiverID, "error", err)
	}
	if s.echo && senderID != receiverID {
		if err := s.hub.send(senderID, eventNewMessage, msg); err != nil && !errors.Is(err, errOffline) {
			s.logger.Warn("failed to echo message", "sender", senderID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, msg)
}

// currentUser resolves the authenticated user, answering 401 if the token's
// subject no longer exists.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (api.User, bool) {
	userID := auth.UserFromContext(r.Context())
	user, ok := s.lookup(userID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized - user not found")
		return api.User{}, false
	}
	return user, true
}

func (s *Server) issueCookies(w http.ResponseWriter, userID string) (string, string, error) {
	access, err := s.issuer.Generate(userID, auth.KindAccess, s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.issuer.Generate(userID, auth.KindRefresh, s.refreshTTL)
	if err != nil {
		return "", "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name: auth.AccessCookie, Value: access, Path: "/",
		MaxAge: int(s.accessTTL.Seconds()), HttpOnly: true, SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name: auth.RefreshCookie, Value: refresh, Path: "/",
		MaxAge: int(s.refreshTTL.Seconds()), HttpOnly: true, SameSite: http.SameSiteLaxMode,
	})
	return access, refresh, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
