package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/signalmap/internal/adapters/nats"
	"github.com/samirrijal/signalmap/internal/pkg/metrics"
)

// wsMessage is sent from client to change what it receives.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Session string `json:"session"` // session filter for positions ("" = all)
	Channel string `json:"channel"` // "positions" | "measurements" (default: positions)
}

// sessionFilter narrows the position stream to a set of sessions. An empty
// set lets every session through.
type sessionFilter struct {
	mu  sync.RWMutex
	ids map[string]bool
}

func (f *sessionFilter) allows(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids) == 0 || f.ids[id]
}

func (f *sessionFilter) add(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		f.ids = map[string]bool{}
		return
	}
	f.ids[id] = true
}

func (f *sessionFilter) remove(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ids[id] {
		return false
	}
	delete(f.ids, id)
	return true
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// live position events from NATS. Clients receive every session by default
// and may narrow or widen with
// {"action":"subscribe","session":"abc"} / {"action":"unsubscribe","session":"abc"},
// or add measurement events with {"action":"subscribe","channel":"measurements"}.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("remote", remoteAddr)
		log.Debug("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		filter := &sessionFilter{ids: map[string]bool{}}
		positions, err := nc.Subscribe(natsadapter.SubjectPositions, func(msg *nats.Msg) {
			var head struct {
				SessionID string `json:"session_id"`
			}
			if json.Unmarshal(msg.Data, &head) != nil || !filter.allows(head.SessionID) {
				return
			}
			_ = writeJSON(json.RawMessage(msg.Data))
		})
		if err != nil {
			log.Error("ws subscribe failed", "error", err)
			return
		}
		var measurements *nats.Subscription

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			channel := m.Channel
			if channel == "" {
				channel = "positions"
			}

			switch {
			case channel == "positions" && m.Action == "subscribe":
				filter.add(m.Session)
				_ = writeJSON(map[string]string{"status": "subscribed", "channel": channel, "session": m.Session})

			case channel == "positions" && m.Action == "unsubscribe":
				if filter.remove(m.Session) {
					_ = writeJSON(map[string]string{"status": "unsubscribed", "channel": channel, "session": m.Session})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to session " + m.Session})
				}

			case channel == "measurements" && m.Action == "subscribe":
				if measurements != nil {
					_ = writeJSON(map[string]string{"status": "already subscribed", "channel": channel})
					continue
				}
				s, err := nc.Subscribe(natsadapter.SubjectMeasurements, func(msg *nats.Msg) {
					_ = writeJSON(json.RawMessage(msg.Data))
				})
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				measurements = s
				_ = writeJSON(map[string]string{"status": "subscribed", "channel": channel})

			case channel == "measurements" && m.Action == "unsubscribe":
				if measurements == nil {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + channel})
					continue
				}
				_ = measurements.Unsubscribe()
				measurements = nil
				_ = writeJSON(map[string]string{"status": "unsubscribed", "channel": channel})

			case channel != "positions" && channel != "measurements":
				_ = writeJSON(map[string]string{"error": "unknown channel: " + channel})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		_ = positions.Unsubscribe()
		if measurements != nil {
			_ = measurements.Unsubscribe()
		}
		log.Debug("ws client disconnected")
	}
}
