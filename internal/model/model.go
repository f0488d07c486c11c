package model

import "time"

type GameType string

const (
	GameETS2 GameType = "ets2"
	GameATS  GameType = "ats"
)

// Valid reports whether g is one of the supported simulators.
func (g GameType) Valid() bool {
	return g == GameETS2 || g == GameATS
}

type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusApproved JobStatus = "approved"
	JobStatusRejected JobStatus = "rejected"
)

type Job struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Game            GameType       `json:"game"`
	Server          string         `json:"server,omitempty"`
	Cargo           string         `json:"cargo"`
	SourceCity      string         `json:"source_city"`
	DestinationCity string         `json:"destination_city"`
	DistanceKM      int64          `json:"distance_km"`
	Revenue         float64        `json:"revenue"`
	DamagePercent   float64        `json:"damage_percent"`
	TruckID         string         `json:"truck_id,omitempty"`
	TrailerID       string         `json:"trailer_id,omitempty"`
	CompletedAt     time.Time      `json:"completed_at"`
	Status          JobStatus      `json:"status"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	IsTelemetryJob  bool           `json:"is_telemetry_job"`
	TelemetryData   map[string]any `json:"telemetry_data,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

type Truck struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Game         GameType  `json:"game"`
	Brand        string    `json:"brand"`
	Model        string    `json:"model"`
	CustomName   string    `json:"custom_name,omitempty"`
	TotalJobs    int       `json:"total_jobs"`
	TotalKM      int64     `json:"total_km"`
	TotalRevenue float64   `json:"total_revenue"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
