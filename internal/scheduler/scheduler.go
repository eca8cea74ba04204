// Package scheduler runs cron-style actions (start, stop, restart,
// backup) against managed servers.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LucasionGS/ionmc-v2/internal/backup"
	"github.com/LucasionGS/ionmc-v2/internal/manager"
	"github.com/LucasionGS/ionmc-v2/internal/minecraft"
)

type Schedule struct {
	ID        string `json:"id"`
	ServerID  string `json:"server_id"`
	Name      string `json:"name"`
	CronExpr  string `json:"cron_expr"`
	Action    string `json:"action"` // start, stop, restart, backup
	Enabled   bool   `json:"enabled"`
	LastRun   string `json:"last_run"`
	CreatedAt string `json:"created_at"`
}

const stopGrace = 30 * time.Second

type Scheduler struct {
	db      *sql.DB
	manager *manager.Manager
	backups *backup.Service
	log     *logrus.Entry
	cancel  context.CancelFunc
}

func New(db *sql.DB, m *manager.Manager, backups *backup.Service) *Scheduler {
	return &Scheduler{
		db:      db,
		manager: m,
		backups: backups,
		log:     logrus.WithField("component", "scheduler"),
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		// Tick once per minute, aligned to the minute boundary.
		for {
			next := time.Now().Truncate(time.Minute).Add(time.Minute)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
				s.tick(ctx)
			}
		}
	}()

	s.log.Info("scheduler started")
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()

	rows, err := s.db.Query(
		`SELECT id, server_id, cron_expr, action FROM schedules WHERE enabled = 1`,
	)
	if err != nil {
		s.log.WithError(err).Warn("query schedules")
		return
	}

	type job struct {
		scheduleID string
		serverID   string
		cronExpr   string
		action     string
	}
	var jobs []job
	for rows.Next() {
		var j job
		if err := rows.Scan(&j.scheduleID, &j.serverID, &j.cronExpr, &j.action); err != nil {
			continue
		}
		jobs = append(jobs, j)
	}
	rows.Close()

	for _, j := range jobs {
		expr, err := Parse(j.cronExpr)
		if err != nil {
			s.log.WithField("schedule", j.scheduleID).WithError(err).Warn("invalid cron expression")
			continue
		}
		if !expr.Matches(now) {
			continue
		}

		s.log.WithFields(logrus.Fields{"action": j.action, "server": j.serverID}).Info("running scheduled action")
		s.execute(ctx, j.action, j.serverID)
		s.db.Exec("UPDATE schedules SET last_run = ? WHERE id = ?", now, j.scheduleID)
	}
}

func (s *Scheduler) execute(ctx context.Context, action, serverID string) {
	var err error
	switch action {
	case "start":
		err = s.manager.Start(ctx, serverID)
	case "stop":
		err = s.gracefulStop(ctx, serverID)
	case "restart":
		stopCtx, cancel := context.WithTimeout(ctx, stopGrace)
		err = s.manager.Restart(stopCtx, serverID)
		cancel()
	case "backup":
		err = s.backupServer(ctx, serverID)
	default:
		s.log.WithField("action", action).Warn("unknown action")
		return
	}

	if err != nil {
		s.log.WithFields(logrus.Fields{"action": action, "server": serverID}).WithError(err).Warn("scheduled action failed")
	}
}

func (s *Scheduler) gracefulStop(ctx context.Context, serverID string) error {
	stopCtx, cancel := context.WithTimeout(ctx, stopGrace)
	defer cancel()
	err := s.manager.Stop(stopCtx, serverID)
	if errors.Is(err, context.DeadlineExceeded) {
		return s.manager.Kill(serverID)
	}
	return err
}

// backupServer flushes the world to disk before archiving when the
// server is running.
func (s *Scheduler) backupServer(ctx context.Context, serverID string) error {
	srv, err := s.manager.Server(serverID)
	if err != nil {
		return err
	}

	running := srv.State() == minecraft.StateStarting || srv.State() == minecraft.StateReady
	if running {
		srv.WriteLine("save-off")
		srv.WriteLine("save-all")
		select {
		case <-time.After(3 * time.Second):
		case <-ctx.Done():
			srv.WriteLine("save-on")
			return ctx.Err()
		}
	}

	_, err = s.backups.Create(serverID)
	if running {
		srv.WriteLine("save-on")
	}
	return err
}
