package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
	"github.com/imadgeboyega/kiekky-events/internal/common/utils"
)

const testSecret = "test-secret"

func echoUser(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(id.String()))
	})
}

func token(t *testing.T, claims *utils.JWTClaims) string {
	signed, err := utils.GenerateJWT(claims, testSecret)
	require.NoError(t, err)
	return signed
}

func TestAuthenticate(t *testing.T) {
	m := NewMiddleware(testSecret, logger.NewNop())
	handler := m.Authenticate(echoUser(t))
	userID := uuid.New()

	refresh := utils.NewAccessClaims(userID, time.Hour)
	refresh.Type = "refresh"

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", "", http.StatusUnauthorized, ""},
		{"malformed header", "Token abc", "", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer abc", "", http.StatusUnauthorized, ""},
		{"refresh token", "Bearer " + token(t, refresh), "", http.StatusUnauthorized, ""},
		{"valid header", "Bearer " + token(t, utils.NewAccessClaims(userID, time.Hour)), "", http.StatusOK, userID.String()},
		{"valid query", "", "?token=" + token(t, utils.NewAccessClaims(userID, time.Hour)), http.StatusOK, userID.String()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/buddies"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	m := NewMiddleware(testSecret, logger.NewNop())
	handler := m.OptionalAuthenticate(echoUser(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	userID := uuid.New()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, utils.NewAccessClaims(userID, time.Hour)))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, userID.String(), rec.Body.String())
}
