package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"badgeserver/internal/config"
	"badgeserver/internal/logger"
	"badgeserver/internal/repository/sqlite"
	"badgeserver/internal/route"
	"badgeserver/internal/services"
	"badgeserver/internal/services/builder"
	"badgeserver/internal/services/render"
	"badgeserver/internal/services/websocket"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	hubService *websocket.HubService
	builder    *builder.Builder
	handler    http.Handler
}

func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	badges := sqlite.NewBadgeRepository(db)
	gallery := sqlite.NewGalleryRepository(db)
	work := sqlite.NewWorkQueueRepository(db)

	hub := websocket.NewHubService(log)
	fw := builder.NewBuilder(cfg.FirmwarePath)
	renderer := render.NewRenderer(cfg.FontsDirectory, cfg.DefaultFont)

	personalizer := services.NewPersonalizer(badges, gallery, renderer, fw, hub, cfg.DefaultFont, log)
	queue := services.NewQueue(work, hub, log)

	handler := route.SetupRoutes(route.Dependencies{
		Config:       cfg,
		Logger:       log,
		Badges:       badges,
		Gallery:      gallery,
		Personalizer: personalizer,
		Queue:        queue,
		Hub:          hub,
	})

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		hubService: hub,
		builder:    fw,
		handler:    handler,
	}, nil
}

// Run serves HTTP until SIGINT/SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	defer a.db.Close()

	// Brak szablonu nie blokuje startu, personalizacja zwróci błąd
	if err := a.builder.Check(); err != nil {
		a.logger.Warning("Firmware template unusable: %v", err)
	}

	go a.hubService.Run()
	defer a.hubService.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Badge server listening on http://localhost:%d", a.config.Port)
		a.logger.Info("Firmware template: %s", a.config.FirmwarePath)
		a.logger.Info("Fonts: %s", a.config.FontsDirectory)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
		return err
	}
	return nil
}
