// Package stats samples online-player counts for running servers into
// the registry database and feeds live subscribers.
package stats

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LucasionGS/ionmc-v2/internal/manager"
	"github.com/LucasionGS/ionmc-v2/internal/minecraft"
)

type Sample struct {
	ID         int64  `json:"id"`
	ServerID   string `json:"server_id"`
	Count      int    `json:"count"`
	RecordedAt string `json:"recorded_at"`
}

type Collector struct {
	db      *sql.DB
	manager *manager.Manager
	log     *logrus.Entry

	mu        sync.RWMutex
	latest    map[string]*Sample
	listeners map[string][]chan *Sample

	cancel context.CancelFunc
}

const sampleInterval = time.Minute

func NewCollector(db *sql.DB, m *manager.Manager) *Collector {
	return &Collector{
		db:        db,
		manager:   m,
		log:       logrus.WithField("component", "stats"),
		latest:    make(map[string]*Sample),
		listeners: make(map[string][]chan *Sample),
	}
}

func (c *Collector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.collect()
			}
		}
	}()

	c.log.Info("player-count sampler started")
}

func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Collector) collect() {
	records, err := c.manager.List()
	if err != nil {
		c.log.WithError(err).Warn("list servers")
		return
	}

	for _, rec := range records {
		srv, err := c.manager.Server(rec.ID)
		if err != nil {
			continue
		}
		state := srv.State()
		if state != minecraft.StateStarting && state != minecraft.StateReady {
			continue
		}

		// The supervisor's player set is maintained from join/leave
		// events; no console round-trip needed.
		sample := &Sample{
			ServerID:   rec.ID,
			Count:      len(srv.Players()),
			RecordedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if _, err := c.db.Exec(
			`INSERT INTO player_counts (server_id, count) VALUES (?, ?)`,
			sample.ServerID, sample.Count,
		); err != nil {
			c.log.WithError(err).WithField("server", rec.ID).Warn("record sample")
		}

		c.mu.Lock()
		c.latest[rec.ID] = sample
		listeners := c.listeners[rec.ID]
		c.mu.Unlock()

		for _, ch := range listeners {
			select {
			case ch <- sample:
			default:
			}
		}
	}

	// Keep a week of history.
	c.db.Exec("DELETE FROM player_counts WHERE recorded_at < datetime('now', '-7 days')")
}

func (c *Collector) Latest(serverID string) *Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest[serverID]
}

func (c *Collector) Subscribe(serverID string) chan *Sample {
	ch := make(chan *Sample, 8)
	c.mu.Lock()
	c.listeners[serverID] = append(c.listeners[serverID], ch)
	c.mu.Unlock()
	return ch
}

func (c *Collector) Unsubscribe(serverID string, ch chan *Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	listeners := c.listeners[serverID]
	for i, l := range listeners {
		if l == ch {
			c.listeners[serverID] = append(listeners[:i], listeners[i+1:]...)
			break
		}
	}
}
