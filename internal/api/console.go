package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/LucasionGS/ionmc-v2/internal/events"
	"github.com/LucasionGS/ionmc-v2/internal/manager"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type ConsoleHandler struct {
	manager *manager.Manager
}

func NewConsoleHandler(m *manager.Manager) *ConsoleHandler {
	return &ConsoleHandler{manager: m}
}

// Handle bridges a WebSocket to the server's console: event-bus lines
// flow out, client messages are written to the server's stdin.
func (h *ConsoleHandler) Handle(w http.ResponseWriter, r *http.Request) {
	srv, err := h.manager.Server(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "server not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("console websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Event-bus delivery is synchronous on the output pipeline, so hand
	// lines to a buffered channel and let this goroutine own the socket.
	lines := make(chan string, 256)
	cancelData := srv.Events().Subscribe(events.Data, func(ev events.Event) {
		select {
		case lines <- ev.Line:
		default:
			// Slow client; dropping beats stalling the pipeline.
		}
	})
	defer cancelData()
	cancelExit := srv.Events().Subscribe(events.Exit, func(events.Event) {
		select {
		case lines <- "[server exited]":
		default:
		}
	})
	defer cancelExit()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if len(msg) > 0 {
				srv.WriteLine(string(msg))
			}
		}
	}()

	for {
		select {
		case line := <-lines:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
