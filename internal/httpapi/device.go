package httpapi

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vtc-tracker/server/internal/model"
	"vtc-tracker/server/internal/store"

	"github.com/google/uuid"
)

const pairingCodeExpiry = 5 * time.Minute
const deviceTokenExpiry = 30 * 24 * time.Hour
const defaultDeviceName = "VTC Desktop"

var pairingCodeRegex = regexp.MustCompile(`^[0-9]{6}$`)

// generatePairingCode returns a 6-digit code in 100000-999999. The modulo
// bias over the 900000-value range is negligible for a single-use code that
// lives five minutes.
func generatePairingCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint32(b[:])%900000 + 100000
	return strconv.Itoa(int(n)), nil
}

func generateAccessToken() string {
	return "vtc_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

type deviceCodeResponse struct {
	Code             string    `json:"code"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}

type deviceVerifyRequest struct {
	Code       string `json:"code"`
	DeviceName string `json:"device_name"`
}

type deviceVerifyResponse struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleDeviceCode(w, r)
	case http.MethodGet:
		s.handleDeviceList(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// handleDeviceCode issues a fresh pairing code for the authenticated user,
// superseding any unverified code issued earlier.
func (s *Server) handleDeviceCode(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	expiresAt := time.Now().UTC().Add(pairingCodeExpiry)

	var created model.DeviceToken
	for attempt := 0; ; attempt++ {
		code, err := generatePairingCode()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "failed to generate code")
			return
		}

		created, err = s.store.CreateDeviceCode(r.Context(), model.DeviceToken{
			UserID:    userID,
			Code:      code,
			ExpiresAt: expiresAt,
		})
		if err == nil {
			break
		}
		// A live unverified code for another user can collide on the
		// 6-digit space. Retry with a fresh code.
		if errors.Is(err, store.ErrConflict) && attempt < 2 {
			continue
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to generate code")
		return
	}

	writeJSON(w, http.StatusOK, deviceCodeResponse{
		Code:             created.Code,
		ExpiresAt:        created.ExpiresAt,
		ExpiresInSeconds: int(pairingCodeExpiry.Seconds()),
	})
}

func (s *Server) handleDeviceList(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "session required")
		return
	}

	tokens, err := s.store.ListDeviceTokens(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": tokens})
}

// handleDeviceVerify exchanges a pairing code for a long-lived access token.
// The code is the only secret here; no other auth applies.
func (s *Server) handleDeviceVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	var req deviceVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON")
		return
	}

	code := strings.TrimSpace(req.Code)
	if !pairingCodeRegex.MatchString(code) {
		writeError(w, http.StatusBadRequest, "invalid_code_format", "code must be a 6-digit number")
		return
	}

	deviceName := strings.TrimSpace(req.DeviceName)
	if deviceName == "" {
		deviceName = defaultDeviceName
	}

	token, err := s.store.ExchangeDeviceCode(r.Context(), store.ExchangeDeviceCodeRequest{
		Code:        code,
		AccessToken: generateAccessToken(),
		DeviceName:  deviceName,
		ExpiresAt:   time.Now().UTC().Add(deviceTokenExpiry),
	})
	if err != nil {
		// Unknown, already used and expired codes all read the same to a
		// guessing client.
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "invalid_code", "invalid or expired code")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to verify code")
		return
	}

	displayName := "Driver"
	avatarURL := ""
	if user, err := s.store.GetUserByID(r.Context(), token.UserID); err == nil {
		displayName = user.DisplayName
		avatarURL = user.AvatarURL
	}

	writeJSON(w, http.StatusOK, deviceVerifyResponse{
		AccessToken: token.AccessToken,
		UserID:      token.UserID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		ExpiresAt:   token.ExpiresAt,
	})
}
