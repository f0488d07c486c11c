package httpapi

import (
	"net/http"

	"vtc-tracker/server/internal/config"
	"vtc-tracker/server/internal/store"
)

type Server struct {
	cfg   config.Config
	store store.Store
	mux   *http.ServeMux
}

func NewServer(cfg config.Config, st store.Store) *Server {
	initJWTKey(cfg.JWTSecret)
	s := &Server{
		cfg:   cfg,
		store: st,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoverMiddleware(h)
	h = requestIDMiddleware(h)
	h = loggingMiddleware(h)
	h = authMiddleware(s.cfg, h)
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	s.mux.HandleFunc("/v1/auth/register", s.handleRegister)
	s.mux.HandleFunc("/v1/auth/login", s.handleLogin)
	s.mux.HandleFunc("/v1/auth/device", s.handleDevice)
	s.mux.HandleFunc("/v1/auth/device/verify", s.handleDeviceVerify)

	s.mux.HandleFunc("/v1/telemetry/heartbeat", s.handleHeartbeat)
	s.mux.HandleFunc("/v1/telemetry/jobs", s.handleTelemetryJob)
}
