// Package manager owns the server registry: database records, the live
// supervisor instances built from them, and the remote command sessions
// attached to running servers.
package manager

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/LucasionGS/ionmc-v2/internal/catalog"
	"github.com/LucasionGS/ionmc-v2/internal/config"
	"github.com/LucasionGS/ionmc-v2/internal/events"
	"github.com/LucasionGS/ionmc-v2/internal/minecraft"
	"github.com/LucasionGS/ionmc-v2/internal/rcon"
	"github.com/LucasionGS/ionmc-v2/internal/runtime"
	"github.com/LucasionGS/ionmc-v2/internal/versions"
)

var ErrNotFound = errors.New("server not found")

// Record is one row of the server registry.
type Record struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Version      string                `json:"version"`
	Dir          string                `json:"dir"`
	MemoryMB     int                   `json:"memory_mb"`
	Ports        []runtime.PortMapping `json:"ports"`
	RconPort     int                   `json:"rcon_port"`
	RconPassword string                `json:"-"`
	Status       string                `json:"status"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
}

type Manager struct {
	db       *sql.DB
	cfg      *config.Config
	launcher runtime.Launcher
	resolver *versions.Resolver
	mods     *catalog.Client
	log      *logrus.Entry

	mu     sync.Mutex
	live   map[string]*minecraft.Server
	remote map[string]*rcon.Client
}

func New(db *sql.DB, cfg *config.Config) (*Manager, error) {
	var launcher runtime.Launcher
	switch cfg.Runtime {
	case "", "local":
		launcher = runtime.ExecLauncher{}
	case "container":
		l, err := runtime.NewContainerLauncher(cfg.ContainerImage)
		if err != nil {
			return nil, fmt.Errorf("container runtime: %w", err)
		}
		launcher = l
	default:
		return nil, fmt.Errorf("unknown runtime %q", cfg.Runtime)
	}

	return &Manager{
		db:       db,
		cfg:      cfg,
		launcher: launcher,
		resolver: versions.NewResolver(),
		mods:     catalog.NewClient(cfg.CatalogURL, cfg.CatalogKey),
		log:      logrus.WithField("component", "manager"),
		live:     make(map[string]*minecraft.Server),
		remote:   make(map[string]*rcon.Client),
	}, nil
}

// Close kills every live server and drops remote sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.remote {
		c.Close()
	}
	for _, srv := range m.live {
		srv.Kill()
	}
}

// CreateParams describes a new server.
type CreateParams struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	MemoryMB   int               `json:"memory_mb"`
	Ports      []string          `json:"ports"`
	RconPort   int               `json:"rcon_port"`
	Properties map[string]string `json:"properties"`
	AcceptEULA bool              `json:"accept_eula"`
}

// Create provisions a server: resolves the version, downloads the
// artifact, writes eula.txt and server.properties, and records it.
func (m *Manager) Create(ctx context.Context, p CreateParams) (*Record, error) {
	if p.Name == "" {
		return nil, errors.New("name required")
	}
	if p.MemoryMB == 0 {
		p.MemoryMB = 1024
	}
	if p.RconPort == 0 {
		p.RconPort = 25575
	}

	v, err := m.resolver.Resolve(ctx, p.Version)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()[:8]
	dir := filepath.Join(m.cfg.DataDir, "servers", id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create server directory: %w", err)
	}

	m.log.WithFields(logrus.Fields{"id": id, "version": v.ID}).Info("downloading server artifact")
	if err := m.resolver.Download(ctx, v, filepath.Join(dir, "server.jar")); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	if p.AcceptEULA {
		if err := minecraft.AcceptEULA(dir); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}

	rconPassword, err := generatePassword()
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	props := map[string]string{
		"server-port":   "25565",
		"enable-rcon":   "true",
		"rcon.port":     strconv.Itoa(p.RconPort),
		"rcon.password": rconPassword,
	}
	for k, val := range p.Properties {
		props[k] = val
	}
	if err := minecraft.SaveProperties(filepath.Join(dir, "server.properties"), props); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	ports := runtime.ParsePortMappings(p.Ports)
	portsJSON, _ := json.Marshal(ports)
	_, err = m.db.Exec(
		`INSERT INTO servers (id, name, version, dir, memory_mb, ports, rcon_port, rcon_password) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, v.ID, dir, p.MemoryMB, string(portsJSON), p.RconPort, rconPassword,
	)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("save server: %w", err)
	}
	return m.GetRecord(id)
}

func (m *Manager) List() ([]Record, error) {
	rows, err := m.db.Query(`SELECT id, name, version, dir, memory_mb, ports, rcon_port, rcon_password, status, created_at, updated_at FROM servers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var portsJSON string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Version, &rec.Dir, &rec.MemoryMB, &portsJSON, &rec.RconPort, &rec.RconPassword, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(portsJSON), &rec.Ports)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (m *Manager) GetRecord(id string) (*Record, error) {
	var rec Record
	var portsJSON string
	err := m.db.QueryRow(
		`SELECT id, name, version, dir, memory_mb, ports, rcon_port, rcon_password, status, created_at, updated_at FROM servers WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &rec.Version, &rec.Dir, &rec.MemoryMB, &portsJSON, &rec.RconPort, &rec.RconPassword, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(portsJSON), &rec.Ports)
	return &rec, nil
}

// Server returns the live supervisor for id, creating it from the
// record on first use. The instance persists across restarts; only
// Delete discards it.
func (m *Manager) Server(id string) (*minecraft.Server, error) {
	m.mu.Lock()
	if srv, ok := m.live[id]; ok {
		m.mu.Unlock()
		return srv, nil
	}
	m.mu.Unlock()

	rec, err := m.GetRecord(id)
	if err != nil {
		return nil, err
	}

	srv := minecraft.NewServer(minecraft.Config{
		Name:     rec.ID,
		Dir:      rec.Dir,
		Jar:      "server.jar",
		JavaPath: m.cfg.JavaPath,
		Version:  rec.Version,
		MemoryMB: rec.MemoryMB,
		Ports:    rec.Ports,
	}, m.launcher)

	// Mirror lifecycle transitions into the registry row.
	srv.Events().Subscribe(events.Ready, func(events.Event) {
		m.setStatus(id, "ready")
	})
	srv.Events().Subscribe(events.Exit, func(events.Event) {
		m.setStatus(id, "exited")
		m.DisconnectRemote(id)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.live[id]; ok {
		return existing, nil
	}
	m.live[id] = srv
	return srv, nil
}

func (m *Manager) setStatus(id, status string) {
	m.db.Exec("UPDATE servers SET status = ?, updated_at = ? WHERE id = ?", status, time.Now(), id)
}

func (m *Manager) Start(ctx context.Context, id string) error {
	srv, err := m.Server(id)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}
	m.setStatus(id, "starting")
	return nil
}

func (m *Manager) Stop(ctx context.Context, id string) error {
	srv, err := m.Server(id)
	if err != nil {
		return err
	}
	return srv.Stop(ctx)
}

func (m *Manager) Restart(ctx context.Context, id string) error {
	srv, err := m.Server(id)
	if err != nil {
		return err
	}
	if err := srv.Restart(ctx); err != nil {
		return err
	}
	m.setStatus(id, "starting")
	return nil
}

func (m *Manager) Kill(id string) error {
	srv, err := m.Server(id)
	if err != nil {
		return err
	}
	return srv.Kill()
}

// Delete kills any running process and removes the record, its data
// directory, and the live instance.
func (m *Manager) Delete(id string) error {
	rec, err := m.GetRecord(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if srv, ok := m.live[id]; ok {
		srv.Kill()
		delete(m.live, id)
	}
	m.mu.Unlock()
	m.DisconnectRemote(id)

	os.RemoveAll(rec.Dir)
	_, err = m.db.Exec("DELETE FROM servers WHERE id = ?", id)
	return err
}

// ConnectRemote opens (or reuses) an RCON session to the server.
func (m *Manager) ConnectRemote(ctx context.Context, id string) (*rcon.Client, error) {
	m.mu.Lock()
	if c, ok := m.remote[id]; ok {
		m.mu.Unlock()
		return c, nil
	}
	m.mu.Unlock()

	rec, err := m.GetRecord(id)
	if err != nil {
		return nil, err
	}
	c, err := rcon.Connect(ctx, "127.0.0.1:"+strconv.Itoa(rec.RconPort), rec.RconPassword)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.remote[id]; ok {
		c.Close()
		return existing, nil
	}
	m.remote[id] = c
	return c, nil
}

// SendRemote issues one command over the server's RCON session.
func (m *Manager) SendRemote(ctx context.Context, id, command string) (string, error) {
	c, err := m.ConnectRemote(ctx, id)
	if err != nil {
		return "", err
	}
	out, err := c.Send(ctx, command)
	if errors.Is(err, rcon.ErrClosed) {
		// Stale session from a previous process generation.
		m.DisconnectRemote(id)
	}
	return out, err
}

func (m *Manager) DisconnectRemote(id string) {
	m.mu.Lock()
	c, ok := m.remote[id]
	delete(m.remote, id)
	m.mu.Unlock()
	if ok {
		c.Close()
	}
}

// InstallMod resolves a catalog file (latest when fileID is zero) and
// downloads it into the server's mods directory.
func (m *Manager) InstallMod(ctx context.Context, id string, modID, fileID int64) (string, error) {
	rec, err := m.GetRecord(id)
	if err != nil {
		return "", err
	}
	url, err := m.mods.ResolveFile(ctx, modID, fileID)
	if err != nil {
		return "", err
	}

	modsDir := filepath.Join(rec.Dir, "mods")
	if err := os.MkdirAll(modsDir, 0755); err != nil {
		return "", err
	}
	name := filepath.Base(url)
	dest := filepath.Join(modsDir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download mod: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download mod: unexpected status %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("download mod: %w", err)
	}
	return name, nil
}

func generatePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
