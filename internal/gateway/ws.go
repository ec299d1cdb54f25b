package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/techaura/aurabot/internal/engine"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	// Slow consumers are dropped rather than allowed to stall the feed.
	wsSendBuffer = 64
)

// wsClient is one subscriber of the decision-event feed. The feed is
// one-way: inbound frames are read only to detect the close.
type wsClient struct {
	conn *websocket.Conn
	send chan engine.DecisionEvent
	done chan struct{}
}

// handleWebSocket upgrades to WebSocket and streams scheduler decisions.
// Auth happens before the upgrade so a bad token costs one HTTP response.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.token == "" {
		writeError(w, http.StatusServiceUnavailable, "gateway token not configured")
		return
	}
	if !safeEqual(bearerToken(r), s.token) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rejected unauthorized websocket")
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan engine.DecisionEvent, wsSendBuffer),
		done: make(chan struct{}),
	}
	s.addClient(c)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("event feed subscriber connected")

	go s.writeLoop(c)
	s.readLoop(c)

	s.removeClient(c)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("event feed subscriber disconnected")
}

// readLoop drains inbound frames until the peer closes.
func (s *Server) readLoop(c *wsClient) {
	defer close(c.done)
	c.conn.SetReadLimit(1024)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop serializes all writes for one subscriber: events and pings.
func (s *Server) writeLoop(c *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast fans a decision event out to every subscriber. Non-blocking:
// a full send buffer drops the event for that subscriber only.
func (s *Server) broadcast(ev engine.DecisionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

func (s *Server) addClient(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) removeClient(c *wsClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// closeClients closes every subscriber connection during shutdown.
func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
}
