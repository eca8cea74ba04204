// Package server assembles the daemon: services, handlers, and routes.
package server

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/LucasionGS/ionmc-v2/internal/api"
	"github.com/LucasionGS/ionmc-v2/internal/auth"
	"github.com/LucasionGS/ionmc-v2/internal/backup"
	"github.com/LucasionGS/ionmc-v2/internal/config"
	"github.com/LucasionGS/ionmc-v2/internal/manager"
	"github.com/LucasionGS/ionmc-v2/internal/scheduler"
	"github.com/LucasionGS/ionmc-v2/internal/stats"
)

type Server struct {
	cfg       *config.Config
	db        *sql.DB
	router    chi.Router
	manager   *manager.Manager
	collector *stats.Collector
	scheduler *scheduler.Scheduler
}

func New(cfg *config.Config, db *sql.DB) (*Server, error) {
	authSvc := auth.NewService(db)
	if err := authSvc.EnsureDefaultUser(cfg.DefaultUser, cfg.DefaultPass); err != nil {
		return nil, fmt.Errorf("ensure default user: %w", err)
	}

	mgr, err := manager.New(db, cfg)
	if err != nil {
		return nil, fmt.Errorf("manager: %w", err)
	}

	collector := stats.NewCollector(db, mgr)
	collector.Start()

	backupSvc := backup.NewService(db, cfg.DataDir)

	sched := scheduler.New(db, mgr, backupSvc)
	sched.Start()

	authHandler := api.NewAuthHandler(authSvc)
	serverHandler := api.NewServerHandler(mgr)
	consoleHandler := api.NewConsoleHandler(mgr)
	statsHandler := api.NewStatsHandler(db, collector)
	backupHandler := api.NewBackupHandler(mgr, backupSvc)
	scheduleHandler := api.NewScheduleHandler(db)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(authSvc))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/me", authHandler.Me)

			r.Route("/servers", func(r chi.Router) {
				r.Get("/", serverHandler.List)
				r.Post("/", serverHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", serverHandler.Get)
					r.Delete("/", serverHandler.Delete)
					r.Post("/start", serverHandler.Start)
					r.Post("/stop", serverHandler.Stop)
					r.Post("/restart", serverHandler.Restart)
					r.Post("/kill", serverHandler.Kill)
					r.Post("/command", serverHandler.Command)
					r.Get("/players", serverHandler.Players)
					r.Post("/rcon", serverHandler.Rcon)
					r.Post("/mods", serverHandler.InstallMod)

					r.Get("/stats", statsHandler.Latest)
					r.Get("/stats/history", statsHandler.History)

					r.Get("/backups", backupHandler.List)
					r.Post("/backups", backupHandler.Create)
					r.Get("/backups/{backupId}/download", backupHandler.Download)
					r.Delete("/backups/{backupId}", backupHandler.Delete)
					r.Post("/backups/{backupId}/restore", backupHandler.Restore)

					r.Get("/schedules", scheduleHandler.List)
					r.Post("/schedules", scheduleHandler.Create)
					r.Put("/schedules/{scheduleId}", scheduleHandler.Update)
					r.Delete("/schedules/{scheduleId}", scheduleHandler.Delete)
				})
			})
		})

		// WebSocket routes authenticate via query token inside the
		// middleware's bearer fallback.
		r.Group(func(r chi.Router) {
			r.Use(api.AuthMiddleware(authSvc))
			r.Get("/servers/{id}/console", consoleHandler.Handle)
			r.Get("/servers/{id}/stats/live", statsHandler.Live)
		})
	})

	return &Server{
		cfg:       cfg,
		db:        db,
		router:    r,
		manager:   mgr,
		collector: collector,
		scheduler: sched,
	}, nil
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Stop() {
	if s.collector != nil {
		s.collector.Stop()
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.manager != nil {
		s.manager.Close()
	}
}
