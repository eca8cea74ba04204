// Package minecraft supervises a single Minecraft server process: it
// owns the state machine, derives typed events from console output, and
// tracks the online-player set.
package minecraft

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LucasionGS/ionmc-v2/internal/console"
	"github.com/LucasionGS/ionmc-v2/internal/events"
	"github.com/LucasionGS/ionmc-v2/internal/runtime"
)

// State is the lifecycle state of a supervised server.
type State int

const (
	StateOffline State = iota
	StateStarting
	StateReady
	StateExited
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateExited:
		return "exited"
	}
	return "unknown"
}

// defaultListTimeout bounds how long GetPlayers waits for the list
// response.
const defaultListTimeout = 2 * time.Second

// Config describes one managed server instance.
type Config struct {
	Name     string
	Dir      string
	Jar      string
	JavaPath string
	Version  string
	MemoryMB int
	Ports    []runtime.PortMapping
}

// Server is the aggregate for one managed server. All exported methods
// are safe for concurrent use.
type Server struct {
	cfg      Config
	launcher runtime.Launcher
	bus      *events.Bus
	log      *logrus.Entry

	// listTimeout bounds the GetPlayers round-trip.
	listTimeout time.Duration

	mu       sync.Mutex
	state    State
	proc     runtime.Process
	players  map[string]struct{}
	exited   chan struct{}
	reasm    console.Reassembler
	lineSubs map[int]func(console.ParsedLine)
	nextSub  int
}

func NewServer(cfg Config, launcher runtime.Launcher) *Server {
	if cfg.JavaPath == "" {
		cfg.JavaPath = "java"
	}
	return &Server{
		cfg:         cfg,
		launcher:    launcher,
		bus:         events.NewBus(),
		log:         logrus.WithField("server", cfg.Name),
		listTimeout: defaultListTimeout,
		state:       StateOffline,
		players:     make(map[string]struct{}),
		lineSubs:    make(map[int]func(console.ParsedLine)),
	}
}

// Events exposes the server's event bus for subscription.
func (s *Server) Events() *events.Bus { return s.bus }

func (s *Server) Name() string { return s.cfg.Name }

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Players returns a sorted snapshot of the online-player set.
func (s *Server) Players() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.players))
	for name := range s.players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the server process and moves the state to Starting.
// Valid only from Offline or Exited; Exited restarts the same aggregate
// with a fresh process generation.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateOffline && s.state != StateExited {
		s.mu.Unlock()
		return fmt.Errorf("start from %s: %w", s.state, ErrInvalidState)
	}
	s.mu.Unlock()

	if info, err := os.Stat(s.cfg.Dir); err != nil || !info.IsDir() {
		return fmt.Errorf("server directory %s: %w", s.cfg.Dir, os.ErrNotExist)
	}

	args := []string{}
	if s.cfg.MemoryMB > 0 {
		args = append(args,
			"-Xms"+strconv.Itoa(s.cfg.MemoryMB)+"M",
			"-Xmx"+strconv.Itoa(s.cfg.MemoryMB)+"M",
		)
	}
	args = append(args, "-jar", s.cfg.Jar, "nogui")

	proc, err := s.launcher.Spawn(ctx, runtime.Spec{
		Name:     "ionmc-" + s.cfg.Name,
		Command:  s.cfg.JavaPath,
		Args:     args,
		Dir:      s.cfg.Dir,
		MemoryMB: s.cfg.MemoryMB,
		Ports:    s.cfg.Ports,
		OnData:   s.handleData,
		OnExit:   s.handleExit,
	})
	if err != nil {
		return fmt.Errorf("launch server %s: %w: %w", s.cfg.Name, ErrLaunch, err)
	}

	s.mu.Lock()
	s.proc = proc
	s.state = StateStarting
	s.players = make(map[string]struct{})
	s.reasm = console.Reassembler{}
	s.exited = make(chan struct{})
	s.mu.Unlock()

	s.log.WithField("version", s.cfg.Version).Info("server starting")
	return nil
}

// Stop writes the stop command and waits for the exit transition.
// Callers needing a hard bound should pass a context with a deadline
// and escalate to Kill.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStarting && s.state != StateReady {
		s.mu.Unlock()
		return fmt.Errorf("stop from %s: %w", s.state, ErrInvalidState)
	}
	exited := s.exited
	s.mu.Unlock()

	if err := s.WriteLine("stop"); err != nil {
		return err
	}

	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Kill terminates the process unconditionally. It is a no-op when no
// process is running; the Exited transition itself arrives through the
// normal exit path, which also unblocks any in-flight Stop waiter.
func (s *Server) Kill() error {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.Kill()
}

// Restart stops the server if it is running, waits for Exited, and
// starts it again. From Offline or Exited it goes straight to Start.
// Returns once the new process reaches Starting.
func (s *Server) Restart(ctx context.Context) error {
	switch s.State() {
	case StateStarting, StateReady:
		if err := s.Stop(ctx); err != nil {
			return err
		}
	}
	return s.Start(ctx)
}

// Write forwards raw text to the server's input.
func (s *Server) Write(text string) error {
	s.mu.Lock()
	proc := s.proc
	state := s.state
	s.mu.Unlock()
	if proc == nil || (state != StateStarting && state != StateReady) {
		return ErrNotRunning
	}
	_, err := proc.Write([]byte(text))
	return err
}

// WriteLine forwards text with a trailing newline.
func (s *Server) WriteLine(text string) error {
	return s.Write(text + "\n")
}

// GetPlayers asks the running server for its player list by writing the
// "list" command and awaiting the matching response line. Fails with
// ErrTimeout after two seconds; the temporary listener is deregistered
// exactly once whichever path settles first.
func (s *Server) GetPlayers(ctx context.Context) ([]string, error) {
	if s.State() != StateStarting && s.State() != StateReady {
		return nil, ErrNotRunning
	}

	result := make(chan []string, 1)
	cancel := s.subscribeLine(func(pl console.ParsedLine) {
		names, ok := parseListResponse(pl.Message)
		if !ok {
			return
		}
		select {
		case result <- names:
		default:
		}
	})
	defer cancel()

	if err := s.WriteLine("list"); err != nil {
		return nil, err
	}

	timer := time.NewTimer(s.listTimeout)
	defer timer.Stop()
	select {
	case names := <-result:
		return names, nil
	case <-timer.C:
		return nil, fmt.Errorf("list players: %w", ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// subscribeLine registers a listener invoked for every parsed console
// line. The returned cancel is idempotent.
func (s *Server) subscribeLine(fn func(console.ParsedLine)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.lineSubs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.lineSubs, id)
		s.mu.Unlock()
	}
}

// handleData is the single entry point for process output. The runtime
// backend guarantees sequential invocation, so each chunk's derived
// events are fully emitted before the next chunk arrives.
func (s *Server) handleData(chunk []byte) {
	s.mu.Lock()
	lines := s.reasm.Consume(chunk)
	s.mu.Unlock()
	for _, line := range lines {
		s.handleLine(line)
	}
}

func (s *Server) handleLine(line string) {
	pl := console.Parse(line)
	ev := console.Classify(pl)

	s.mu.Lock()
	var emit []events.Event
	switch ev.Kind {
	case console.EventJoin:
		s.players[ev.Player] = struct{}{}
		emit = append(emit, events.Event{Kind: events.Join, Player: ev.Player})
	case console.EventLeave:
		// A leave with no prior join is tolerated; the set cannot
		// underflow.
		delete(s.players, ev.Player)
		emit = append(emit, events.Event{Kind: events.Leave, Player: ev.Player})
	case console.EventReady:
		if s.state == StateStarting {
			s.state = StateReady
			emit = append(emit, events.Event{Kind: events.Ready})
		}
	case console.EventEulaRequired:
		emit = append(emit, events.Event{Kind: events.EulaRequired})
	}
	listeners := make([]func(console.ParsedLine), 0, len(s.lineSubs))
	for _, fn := range s.lineSubs {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.bus.Emit(events.Event{Kind: events.Data, Line: line})
	for _, e := range emit {
		s.bus.Emit(e)
	}
	for _, fn := range listeners {
		fn(pl)
	}
}

// handleExit records the exit transition. A non-zero code is normal
// lifecycle data, not a fault.
func (s *Server) handleExit(code int) {
	s.mu.Lock()
	s.state = StateExited
	s.proc = nil
	s.players = make(map[string]struct{})
	if remainder, ok := s.reasm.Flush(); ok {
		s.mu.Unlock()
		s.handleLine(remainder)
		s.mu.Lock()
	}
	exited := s.exited
	s.mu.Unlock()

	s.log.WithField("code", code).Info("server exited")
	s.bus.Emit(events.Event{Kind: events.Exit, Code: code})
	if exited != nil {
		close(exited)
	}
}
