package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"vtc-tracker/server/internal/model"
	"vtc-tracker/server/internal/store"
)

type Store struct {
	mu sync.Mutex

	users  map[string]model.User
	tokens map[string]model.DeviceToken
	jobs   map[string]model.Job
	trucks map[string]model.Truck
}

func NewStore() *Store {
	return &Store{
		users:  make(map[string]model.User),
		tokens: make(map[string]model.DeviceToken),
		jobs:   make(map[string]model.Job),
		trucks: make(map[string]model.Truck),
	}
}

func errWithCode(code string) error {
	return errors.New(code)
}

func (s *Store) CreateJob(_ context.Context, j model.Job) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(j.UserID) == "" {
		return model.Job{}, errWithCode("user_id_required")
	}
	if !j.Game.Valid() {
		return model.Job{}, errWithCode("invalid_game")
	}
	if strings.TrimSpace(j.Cargo) == "" {
		return model.Job{}, errWithCode("cargo_required")
	}

	now := time.Now().UTC()
	j.ID = newID()
	if j.Status == "" {
		j.Status = model.JobStatusPending
	}
	if j.CompletedAt.IsZero() {
		j.CompletedAt = now
	}
	j.CreatedAt = now
	s.jobs[j.ID] = j
	return j, nil
}

func (s *Store) CreateTruck(_ context.Context, t model.Truck) (model.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(t.UserID) == "" {
		return model.Truck{}, errWithCode("user_id_required")
	}

	now := time.Now().UTC()
	t.ID = newID()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.trucks[t.ID] = t
	return t, nil
}

func (s *Store) GetTruck(_ context.Context, id string) (*model.Truck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trucks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) IncrementTruckStats(_ context.Context, req store.IncrementTruckStatsRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trucks[req.TruckID]
	if !ok {
		return store.ErrNotFound
	}

	t.TotalJobs++
	t.TotalKM += req.DistanceKM
	t.TotalRevenue += req.Revenue
	t.UpdatedAt = time.Now().UTC()
	s.trucks[req.TruckID] = t
	return nil
}
