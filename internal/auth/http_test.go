// ABOUTME: Tests for the JWT HTTP middleware
// ABOUTME: Covers cookie and header tokens, missing tokens, and refresh tokens used as access

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		token   string
		wantErr bool
	}{
		{header: "", wantErr: true},
		{header: "Basic abc", wantErr: true},
		{header: "Bearer ", wantErr: true},
		{header: "Bearer abc", token: "abc"},
	}
	for _, tt := range tests {
		token, errMsg := ExtractBearerToken(tt.header)
		assert.Equal(t, tt.token, token, tt.header)
		assert.Equal(t, tt.wantErr, errMsg != "", tt.header)
	}
}

func TestHTTPAuthMiddleware(t *testing.T) {
	issuer := NewIssuer(testSecret)
	access, err := issuer.Generate("u1", KindAccess, time.Hour)
	require.NoError(t, err)
	refresh, err := issuer.Generate("u1", KindRefresh, time.Hour)
	require.NoError(t, err)

	var seen string
	handler := HTTPAuthMiddleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		user   string
	}{
		{
			name:   "cookie",
			setup:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessCookie, Value: access}) },
			status: http.StatusNoContent,
			user:   "u1",
		},
		{
			name:   "bearer header",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) },
			status: http.StatusNoContent,
			user:   "u1",
		},
		{
			name:   "missing",
			setup:  func(*http.Request) {},
			status: http.StatusUnauthorized,
		},
		{
			name:   "refresh token is not an access token",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+refresh) },
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/auth/check", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.user, seen)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"message"`)
			}
		})
	}
}

func TestWriteUnauthorized_EscapesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeUnauthorized(rec, `Unauthorized - bad "token"`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, `Unauthorized - bad "token"`, body.Message)
}

func TestUserContext(t *testing.T) {
	assert.Empty(t, UserFromContext(t.Context()))
	assert.Equal(t, "u9", UserFromContext(WithUser(t.Context(), "u9")))
}
