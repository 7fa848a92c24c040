// Package runtime assembles the daemon: configuration, logging, audio
// backend, companion manager, and the local control server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/aveline-ai/companiond/internal/companion"
	appconfig "github.com/aveline-ai/companiond/internal/config"
	"github.com/aveline-ai/companiond/internal/control"
	"github.com/aveline-ai/companiond/internal/device"
	applogger "github.com/aveline-ai/companiond/internal/logger"
	"github.com/aveline-ai/companiond/pkg/audio"
)

// Server represents a server.
type Server struct {
	cfg     appconfig.Config
	logger  *zap.Logger
	manager *companion.Manager
	server  *http.Server
}

// New executes the new function.
func New(configPath string) (*Server, error) {
	cfg, err := appconfig.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load companiond config: %w", err)
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Info("companiond logger configured",
		zap.String("level", cfg.Log.Level),
		zap.Bool("stdout", cfg.Log.Stdout),
		zap.Bool("file_enabled", cfg.Log.File.Enabled),
		zap.String("file_path", cfg.Log.File.Path),
		zap.String("file_name", cfg.Log.File.Name),
	)
	logger.Info("companiond config loaded",
		zap.String("config_path", configPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("control_addr", cfg.ControlAddr),
		zap.String("gateway_url", cfg.GatewayURL),
	)
	audio.LogOpusBackend()

	hub := control.NewHub(logger)
	manager := companion.NewManager(cfg, device.NewPortAudio(), hub, logger)
	router := control.NewRouter(cfg, manager, hub, logger)
	httpServer := &http.Server{
		Addr:    cfg.ControlAddr,
		Handler: router,
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		server:  httpServer,
	}, nil
}

// Run executes the run method.
func (s *Server) Run() error {
	if s == nil || s.server == nil {
		return nil
	}

	s.logger.Info("starting control server", zap.String("addr", s.cfg.ControlAddr))
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr executes the addr method.
func (s *Server) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Manager returns the companion manager behind the control plane.
func (s *Server) Manager() *companion.Manager {
	if s == nil {
		return nil
	}
	return s.manager
}

// Shutdown ends any live session and stops the control server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	if s.manager != nil {
		s.manager.Shutdown()
	}
	return ignoreServerClosed(s.server.Shutdown(ctx))
}

func ignoreServerClosed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
