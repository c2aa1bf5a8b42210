// Package realtime provides the in-process fan-out hub behind the service
// notifier port. Connections subscribe to channels; delivery is at-most-once
// per connected subscriber and a full buffer drops the event instead of
// blocking the award path.
package realtime

import (
	"log/slog"
	"sync"

	"questline/contexts/player-progression/reward-service/ports"
)

const connectionBuffer = 128

// Connection is one subscriber's receive side. Events arrive on C; a
// connection that stops draining loses events, never stalls publishers.
type Connection struct {
	C chan ports.Event

	hub      *Hub
	channels map[string]struct{}
}

type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Connection]struct{}
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*Connection]struct{}),
		logger:   logger,
	}
}

var _ ports.Notifier = (*Hub)(nil)

// Connect registers a new connection subscribed to the given channels. The
// user's private channel is typically among them.
func (h *Hub) Connect(channels ...string) *Connection {
	conn := &Connection{
		C:        make(chan ports.Event, connectionBuffer),
		hub:      h,
		channels: make(map[string]struct{}, len(channels)),
	}

	h.mu.Lock()
	for _, channel := range channels {
		h.attach(conn, channel)
	}
	h.mu.Unlock()
	return conn
}

// Subscribe adds a channel to an existing connection.
func (h *Hub) Subscribe(conn *Connection, channel string) {
	h.mu.Lock()
	h.attach(conn, channel)
	h.mu.Unlock()
}

// Unsubscribe removes a channel from a connection.
func (h *Hub) Unsubscribe(conn *Connection, channel string) {
	h.mu.Lock()
	h.detach(conn, channel)
	h.mu.Unlock()
}

// Disconnect removes the connection from every channel and closes its
// receive side. The close happens inside the write-lock critical section:
// Publish sends while holding the read lock, so no send can interleave with
// the close.
func (h *Hub) Disconnect(conn *Connection) {
	h.mu.Lock()
	for channel := range conn.channels {
		h.detach(conn, channel)
	}
	close(conn.C)
	h.mu.Unlock()
}

func (h *Hub) SendToUser(userID string, event ports.Event) error {
	return h.Publish(ports.UserChannel(userID), event)
}

// Publish sends under the read lock. Sends are non-blocking, so holding the
// lock costs one buffered send per subscriber and guarantees no send races a
// concurrent Disconnect closing the channel.
func (h *Hub) Publish(channel string, event ports.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.channels[channel] {
		select {
		case conn.C <- event:
		default:
			if h.logger != nil {
				h.logger.Warn("dropping event for slow subscriber",
					"event", "realtime_publish_drop",
					"module", "internal/platform/realtime",
					"layer", "platform",
					"channel", channel,
					"event_kind", string(event.Kind()),
				)
			}
		}
	}
	return nil
}

func (h *Hub) attach(conn *Connection, channel string) {
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Connection]struct{})
	}
	h.channels[channel][conn] = struct{}{}
	conn.channels[channel] = struct{}{}
}

func (h *Hub) detach(conn *Connection, channel string) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, conn)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(conn.channels, channel)
}
