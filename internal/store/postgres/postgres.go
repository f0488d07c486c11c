package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vtc-tracker/server/internal/model"
	"vtc-tracker/server/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping to fail fast.
	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) CreateJob(ctx context.Context, j model.Job) (model.Job, error) {
	if strings.TrimSpace(j.UserID) == "" {
		return model.Job{}, errors.New("user_id_required")
	}
	if !j.Game.Valid() {
		return model.Job{}, errors.New("invalid_game")
	}
	if strings.TrimSpace(j.Cargo) == "" {
		return model.Job{}, errors.New("cargo_required")
	}

	status := j.Status
	if status == "" {
		status = model.JobStatusPending
	}

	completedAt := j.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	var telemetryJSON []byte
	if j.TelemetryData != nil {
		if b, err := json.Marshal(j.TelemetryData); err == nil {
			telemetryJSON = b
		}
	}

	var out model.Job
	var outTelemetry []byte
	err := s.pool.QueryRow(ctx, `
		insert into public.jobs (user_id, game, server, cargo, source_city, destination_city,
		                         distance_km, revenue, damage_percent, truck_id, trailer_id,
		                         completed_at, status, reviewed_at, is_telemetry_job, telemetry_data)
		values ($1::uuid, $2, nullif($3, ''), $4, $5, $6,
		        $7, $8, $9, nullif($10, '')::uuid, nullif($11, '')::uuid,
		        $12, $13, $14, $15, $16::jsonb)
		returning id::text, user_id::text, game, coalesce(server, ''), cargo, source_city, destination_city,
		          distance_km, revenue, damage_percent, coalesce(truck_id::text, ''), coalesce(trailer_id::text, ''),
		          completed_at, status, reviewed_at, is_telemetry_job, telemetry_data, created_at
	`, j.UserID, string(j.Game), j.Server, j.Cargo, j.SourceCity, j.DestinationCity,
		j.DistanceKM, j.Revenue, j.DamagePercent, j.TruckID, j.TrailerID,
		completedAt, string(status), j.ReviewedAt, j.IsTelemetryJob, telemetryJSON).Scan(
		&out.ID,
		&out.UserID,
		&out.Game,
		&out.Server,
		&out.Cargo,
		&out.SourceCity,
		&out.DestinationCity,
		&out.DistanceKM,
		&out.Revenue,
		&out.DamagePercent,
		&out.TruckID,
		&out.TrailerID,
		&out.CompletedAt,
		&out.Status,
		&out.ReviewedAt,
		&out.IsTelemetryJob,
		&outTelemetry,
		&out.CreatedAt,
	)
	if err != nil {
		return model.Job{}, mapPgErr(err)
	}
	if len(outTelemetry) > 0 {
		_ = json.Unmarshal(outTelemetry, &out.TelemetryData)
	}
	return out, nil
}

func (s *Store) CreateTruck(ctx context.Context, t model.Truck) (model.Truck, error) {
	if strings.TrimSpace(t.UserID) == "" {
		return model.Truck{}, errors.New("user_id_required")
	}

	var out model.Truck
	err := s.pool.QueryRow(ctx, `
		insert into public.trucks (user_id, game, brand, model, custom_name)
		values ($1::uuid, $2, $3, $4, nullif($5, ''))
		returning id::text, user_id::text, game, brand, model, coalesce(custom_name, ''),
		          total_jobs, total_km, total_revenue, created_at, updated_at
	`, t.UserID, string(t.Game), t.Brand, t.Model, t.CustomName).Scan(
		&out.ID,
		&out.UserID,
		&out.Game,
		&out.Brand,
		&out.Model,
		&out.CustomName,
		&out.TotalJobs,
		&out.TotalKM,
		&out.TotalRevenue,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return model.Truck{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetTruck(ctx context.Context, id string) (*model.Truck, error) {
	var t model.Truck
	err := s.pool.QueryRow(ctx, `
		select id::text, user_id::text, game, brand, model, coalesce(custom_name, ''),
		       total_jobs, total_km, total_revenue, created_at, updated_at
		from public.trucks
		where id = $1::uuid
	`, id).Scan(
		&t.ID,
		&t.UserID,
		&t.Game,
		&t.Brand,
		&t.Model,
		&t.CustomName,
		&t.TotalJobs,
		&t.TotalKM,
		&t.TotalRevenue,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &t, nil
}

func (s *Store) IncrementTruckStats(ctx context.Context, req store.IncrementTruckStatsRequest) error {
	// Single-statement increment so concurrent submissions cannot lose updates.
	cmdTag, err := s.pool.Exec(ctx, `
		update public.trucks
		set total_jobs = total_jobs + 1,
		    total_km = total_km + $2,
		    total_revenue = total_revenue + $3,
		    updated_at = now()
		where id = $1::uuid
	`, req.TruckID, req.DistanceKM, req.Revenue)
	if err != nil {
		return mapPgErr(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapPgErr(err error) error {
	// Unique violation, etc.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return store.ErrConflict
		case "23503":
			return store.ErrNotFound
		default:
			return fmt.Errorf("db_error %s: %s", pgErr.Code, pgErr.Message)
		}
	}
	return err
}
