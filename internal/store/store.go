package store

import (
	"context"
	"errors"
	"time"

	"vtc-tracker/server/internal/model"
)

var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
)

type ExchangeDeviceCodeRequest struct {
	Code        string    `json:"code"`
	AccessToken string    `json:"access_token"`
	DeviceName  string    `json:"device_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type IncrementTruckStatsRequest struct {
	TruckID    string  `json:"truck_id"`
	DistanceKM int64   `json:"distance_km"`
	Revenue    float64 `json:"revenue"`
}

type Store interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	SetUserPresence(ctx context.Context, userID string, online bool, at time.Time) error

	// CreateDeviceCode inserts a fresh unverified pairing code for the
	// user, deleting any older unverified codes first so at most one
	// unverified token exists per user.
	CreateDeviceCode(ctx context.Context, t model.DeviceToken) (model.DeviceToken, error)
	// ExchangeDeviceCode consumes an unverified, unexpired pairing code and
	// matures it into a bearer credential. Exactly one concurrent exchange
	// can win; every other caller observes ErrNotFound. Expired codes are
	// deleted on discovery and reported as ErrNotFound.
	ExchangeDeviceCode(ctx context.Context, req ExchangeDeviceCodeRequest) (*model.DeviceToken, error)
	GetDeviceTokenByAccessToken(ctx context.Context, accessToken string) (*model.DeviceToken, error)
	TouchDeviceToken(ctx context.Context, accessToken string, at time.Time) error
	ListDeviceTokens(ctx context.Context, userID string) ([]model.DeviceToken, error)
	PurgeExpiredDeviceCodes(ctx context.Context, before time.Time) (int, error)

	CreateJob(ctx context.Context, j model.Job) (model.Job, error)

	CreateTruck(ctx context.Context, t model.Truck) (model.Truck, error)
	GetTruck(ctx context.Context, id string) (*model.Truck, error)
	// IncrementTruckStats adds the job's distance and revenue to the
	// truck's cumulative counters in a single atomic update.
	IncrementTruckStats(ctx context.Context, req IncrementTruckStatsRequest) error
}
