package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"vtc-tracker/server/internal/model"
)

var errDeviceUnauthorized = errors.New("device_unauthorized")

// deviceTokenFromRequest resolves the Authorization header to a verified,
// unexpired device token. Every device-authenticated endpoint goes through
// here; the caller learns only that auth failed, never why.
func (s *Server) deviceTokenFromRequest(r *http.Request) (*model.DeviceToken, error) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return nil, errDeviceUnauthorized
	}

	accessToken := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	if accessToken == "" {
		return nil, errDeviceUnauthorized
	}

	token, err := s.store.GetDeviceTokenByAccessToken(r.Context(), accessToken)
	if err != nil {
		return nil, errDeviceUnauthorized
	}

	// Expired means absent. The record is left in place; cleanup is a
	// separate housekeeping concern.
	if token.Expired(time.Now().UTC()) {
		return nil, errDeviceUnauthorized
	}

	return token, nil
}

func writeDeviceUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired access token")
}
