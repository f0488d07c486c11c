package httpapi

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"vtc-tracker/server/internal/model"
	"vtc-tracker/server/internal/store"

	"github.com/shopspring/decimal"
)

const heartbeatInterval = 30 * time.Second

type heartbeatRequest struct {
	GameRunning *bool          `json:"game_running"`
	CurrentCity string         `json:"current_city"`
	CurrentJob  map[string]any `json:"current_job"`
}

type heartbeatResponse struct {
	Success         bool      `json:"success"`
	Timestamp       time.Time `json:"timestamp"`
	NextHeartbeatIn int       `json:"next_heartbeat_in"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleHeartbeatPing(w, r)
	case http.MethodDelete:
		s.handleHeartbeatDisconnect(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (s *Server) handleHeartbeatPing(w http.ResponseWriter, r *http.Request) {
	token, err := s.deviceTokenFromRequest(r)
	if err != nil {
		writeDeviceUnauthorized(w)
		return
	}

	// Status payload is optional and loosely structured; an absent or
	// unparsable body is not an error.
	var req heartbeatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	now := time.Now().UTC()
	if err := s.store.TouchDeviceToken(r.Context(), token.AccessToken, now); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to record heartbeat")
		return
	}
	if err := s.store.SetUserPresence(r.Context(), token.UserID, true, now); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to record heartbeat")
		return
	}

	writeJSON(w, http.StatusOK, heartbeatResponse{
		Success:         true,
		Timestamp:       now,
		NextHeartbeatIn: int(heartbeatInterval.Seconds()),
	})
}

// handleHeartbeatDisconnect sets the user offline. A missing or malformed
// Authorization header is still a 401; only a token that no longer resolves
// is a no-op success, so a client tearing down after expiry never sees a
// failure. last_used_at is left alone: disconnecting is not use.
func (s *Server) handleHeartbeatDisconnect(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeDeviceUnauthorized(w)
		return
	}

	token, err := s.deviceTokenFromRequest(r)
	if err == nil {
		if err := s.store.SetUserPresence(r.Context(), token.UserID, false, time.Now().UTC()); err != nil {
			log.Printf("[telemetry] disconnect presence update failed: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type telemetryJobRequest struct {
	Game            string         `json:"game"`
	Server          string         `json:"server"`
	Cargo           string         `json:"cargo"`
	SourceCity      string         `json:"source_city"`
	DestinationCity string         `json:"destination_city"`
	DistanceKM      float64        `json:"distance_km"`
	Revenue         *json.Number   `json:"revenue"`
	DamagePercent   *json.Number   `json:"damage_percent"`
	TruckID         string         `json:"truck_id"`
	TrailerID       string         `json:"trailer_id"`
	TelemetryData   map[string]any `json:"telemetry_data"`
}

type telemetryJobResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// roundTwoPlaces parses a JSON number at its original decimal precision and
// rounds half away from zero to two places, so 2499.995 lands on 2500.00
// rather than wherever the nearest float64 happens to sit.
func roundTwoPlaces(n json.Number) (float64, bool) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, false
	}
	f, _ := d.Round(2).Float64()
	return f, true
}

func (s *Server) handleTelemetryJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST only")
		return
	}

	token, err := s.deviceTokenFromRequest(r)
	if err != nil {
		writeDeviceUnauthorized(w)
		return
	}

	var req telemetryJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	// All validation happens before any mutation.
	game := model.GameType(strings.TrimSpace(req.Game))
	if !game.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_game", "game must be one of: ets2, ats")
		return
	}
	if strings.TrimSpace(req.Cargo) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "cargo is required")
		return
	}
	if strings.TrimSpace(req.SourceCity) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "source_city is required")
		return
	}
	if strings.TrimSpace(req.DestinationCity) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "destination_city is required")
		return
	}
	if req.DistanceKM <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "distance_km must be positive")
		return
	}
	if req.Revenue == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "revenue is required")
		return
	}

	revenue, ok := roundTwoPlaces(*req.Revenue)
	if !ok || revenue < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "revenue must be a non-negative number")
		return
	}

	damagePercent := 0.0
	if req.DamagePercent != nil {
		damagePercent, ok = roundTwoPlaces(*req.DamagePercent)
		if !ok || damagePercent < 0 || damagePercent > 100 {
			writeError(w, http.StatusBadRequest, "invalid_request", "damage_percent must be between 0 and 100")
			return
		}
	}

	now := time.Now().UTC()
	if err := s.store.TouchDeviceToken(r.Context(), token.AccessToken, now); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to submit job")
		return
	}

	reviewedAt := now
	job, err := s.store.CreateJob(r.Context(), model.Job{
		UserID:          token.UserID,
		Game:            game,
		Server:          strings.TrimSpace(req.Server),
		Cargo:           strings.TrimSpace(req.Cargo),
		SourceCity:      strings.TrimSpace(req.SourceCity),
		DestinationCity: strings.TrimSpace(req.DestinationCity),
		DistanceKM:      int64(math.Round(req.DistanceKM)),
		Revenue:         revenue,
		DamagePercent:   damagePercent,
		TruckID:         strings.TrimSpace(req.TruckID),
		TrailerID:       strings.TrimSpace(req.TrailerID),
		CompletedAt:     now,
		// Telemetry jobs skip human review: trust is anchored in the
		// verified device credential, not the payload.
		Status:         model.JobStatusApproved,
		ReviewedAt:     &reviewedAt,
		IsTelemetryJob: true,
		TelemetryData:  req.TelemetryData,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to submit job")
		return
	}

	if job.TruckID != "" {
		err := s.store.IncrementTruckStats(r.Context(), store.IncrementTruckStatsRequest{
			TruckID:    job.TruckID,
			DistanceKM: job.DistanceKM,
			Revenue:    job.Revenue,
		})
		if err != nil {
			// The job row is already persisted; the failed increment is
			// still surfaced so the client can resubmit.
			log.Printf("[telemetry] truck stats increment failed for job %s: %v", job.ID, err)
			writeError(w, http.StatusInternalServerError, "truck_stats_failed", "failed to update truck stats")
			return
		}
	}

	writeJSON(w, http.StatusCreated, telemetryJobResponse{
		Success: true,
		JobID:   job.ID,
		Message: "Job submitted successfully",
	})
}
