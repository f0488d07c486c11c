package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vtc-tracker/server/internal/config"
	"vtc-tracker/server/internal/model"
	"vtc-tracker/server/internal/store/memory"
)

// newTestServer wires a server against an in-memory store. The store is
// returned too so tests can arrange state the HTTP surface cannot.
func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	cfg := config.Config{JWTSecret: "test-secret"}
	return NewServer(cfg, st), st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}

// registerTestUser runs the register endpoint and returns the user ID and a
// session JWT.
func registerTestUser(t *testing.T, srv *Server, username string) (userID, sessionToken string) {
	t.Helper()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/register", map[string]any{
		"username": username,
		"password": "Secret-1",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	user, _ := body["user"].(map[string]any)
	userID, _ = user["id"].(string)
	sessionToken, _ = body["token"].(string)
	if userID == "" || sessionToken == "" {
		t.Fatalf("register returned no identity: %s", rec.Body.String())
	}
	return userID, sessionToken
}

func issuePairingCode(t *testing.T, srv *Server, sessionToken string) string {
	t.Helper()
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device", nil, map[string]string{
		"Authorization": "Bearer " + sessionToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("issue pairing code failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	code, _ := body["code"].(string)
	if len(code) != 6 {
		t.Fatalf("expected a 6-digit code, got %q", code)
	}
	return code
}

// linkDevice runs the full pairing flow and returns a device access token.
func linkDevice(t *testing.T, srv *Server, sessionToken, deviceName string) string {
	t.Helper()
	code := issuePairingCode(t, srv, sessionToken)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{
		"code":        code,
		"device_name": deviceName,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify failed: %d %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	accessToken, _ := body["access_token"].(string)
	if accessToken == "" {
		t.Fatalf("verify returned no access token: %s", rec.Body.String())
	}
	return accessToken
}

func TestDeviceCodeIssue(t *testing.T) {
	srv, _ := newTestServer(t)
	_, sessionToken := registerTestUser(t, srv, "driver1")

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device", nil, map[string]string{
		"Authorization": "Bearer " + sessionToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	code, _ := body["code"].(string)
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		t.Errorf("expected a 6-digit numeric code, got %q", code)
	}
	if sec, _ := body["expires_in_seconds"].(float64); sec != 300 {
		t.Errorf("expected expires_in_seconds 300, got %v", body["expires_in_seconds"])
	}
	if _, ok := body["expires_at"].(string); !ok {
		t.Errorf("expected expires_at in response, got %s", rec.Body.String())
	}
}

func TestDeviceCodeIssueUnauthenticated(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeviceVerify(t *testing.T) {
	srv, st := newTestServer(t)
	userID, sessionToken := registerTestUser(t, srv, "driver1")
	code := issuePairingCode(t, srv, sessionToken)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{
		"code":        code,
		"device_name": "Gaming PC",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	accessToken, _ := body["access_token"].(string)
	if !strings.HasPrefix(accessToken, "vtc_") {
		t.Errorf("expected access token with vtc_ prefix, got %q", accessToken)
	}
	if got, _ := body["user_id"].(string); got != userID {
		t.Errorf("expected user_id %q, got %q", userID, got)
	}
	if got, _ := body["display_name"].(string); got != "driver1" {
		t.Errorf("expected display_name %q, got %q", "driver1", got)
	}

	// The stored token matured into a verified 30-day credential.
	tok, err := st.GetDeviceTokenByAccessToken(context.Background(), accessToken)
	if err != nil {
		t.Fatalf("lookup exchanged token: %v", err)
	}
	if !tok.IsVerified || tok.DeviceName != "Gaming PC" {
		t.Errorf("unexpected token state: %+v", tok)
	}
	if until := time.Until(tok.ExpiresAt); until < 29*24*time.Hour || until > 31*24*time.Hour {
		t.Errorf("expected ~30 day expiry, got %s", until)
	}
}

func TestDeviceVerifyCodeIsSingleUse(t *testing.T) {
	srv, _ := newTestServer(t)
	_, sessionToken := registerTestUser(t, srv, "driver1")
	code := issuePairingCode(t, srv, sessionToken)

	first := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{"code": code}, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first exchange should succeed: %d %s", first.Code, first.Body.String())
	}

	second := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{"code": code}, nil)
	if second.Code != http.StatusBadRequest {
		t.Fatalf("second exchange should fail with 400, got %d: %s", second.Code, second.Body.String())
	}
	if !strings.Contains(second.Body.String(), "invalid or expired code") {
		t.Errorf("expected generic invalid-or-expired error, got %s", second.Body.String())
	}
}

func TestDeviceVerifyMalformedCode(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, code := range []string{"", "12345", "1234567", "12a456", "abc123"} {
		rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{"code": code}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code %q: expected 400, got %d", code, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid_code_format") {
			t.Errorf("code %q: expected format error, got %s", code, rec.Body.String())
		}
	}
}

func TestDeviceVerifyUnknownCode(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{"code": "999999"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid or expired code") {
		t.Errorf("expected generic error, got %s", rec.Body.String())
	}
}

func TestDeviceVerifyExpiredCode(t *testing.T) {
	srv, st := newTestServer(t)
	userID, _ := registerTestUser(t, srv, "driver1")

	_, err := st.CreateDeviceCode(context.Background(), model.DeviceToken{
		UserID:    userID,
		Code:      "123456",
		ExpiresAt: time.Now().UTC().Add(-time.Second),
	})
	if err != nil {
		t.Fatalf("seed expired code: %v", err)
	}

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{"code": "123456"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid or expired code") {
		t.Errorf("expected generic error, got %s", rec.Body.String())
	}
}

func TestDeviceCodeReissueInvalidatesPrevious(t *testing.T) {
	srv, _ := newTestServer(t)
	_, sessionToken := registerTestUser(t, srv, "driver1")

	code1 := issuePairingCode(t, srv, sessionToken)
	code2 := issuePairingCode(t, srv, sessionToken)
	if code1 == code2 {
		t.Logf("reissued code happens to repeat (%s); still must be single-row", code1)
	}

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{"code": code2}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest code should exchange: %d %s", rec.Code, rec.Body.String())
	}

	if code1 != code2 {
		rec = doJSON(t, srv.Handler(), http.MethodPost, "/v1/auth/device/verify", map[string]any{"code": code1}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("superseded code should fail with 400, got %d: %s", rec.Code, rec.Body.String())
		}
	}
}

func TestDeviceList(t *testing.T) {
	srv, _ := newTestServer(t)
	_, sessionToken := registerTestUser(t, srv, "driver1")
	accessToken := linkDevice(t, srv, sessionToken, "Gaming PC")

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/v1/auth/device", nil, map[string]string{
		"Authorization": "Bearer " + sessionToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	raw := rec.Body.String()
	if !strings.Contains(raw, "Gaming PC") {
		t.Errorf("expected linked device in list, got %s", raw)
	}
	// Secrets never come back out.
	if strings.Contains(raw, accessToken) {
		t.Errorf("access token leaked in device list: %s", raw)
	}
}
