package rpc

import (
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tolelom/propchain/events"
)

const (
	streamBuffer = 64
	writeWait    = 10 * time.Second
)

type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Stream fans every emitted event out to connected websocket clients.
// Slow clients miss events rather than stall block production.
type Stream struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[string]*streamClient
	closed   bool
}

// NewStream subscribes a Stream to every event type on em. Browser
// upgrades are accepted from the listed origins ("*" allows any) and from
// the node's own host.
func NewStream(em *events.Emitter, origins ...string) *Stream {
	s := &Stream{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin(origins)},
		clients:  make(map[string]*streamClient),
	}
	em.SubscribeAll(s.broadcast)
	return s
}

func allowOrigin(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin) {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &streamClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, streamBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c.id] = c
	s.mu.Unlock()
	log.Debug().Str("client", c.id).Msg("stream client connected")

	go s.writeLoop(c)
	s.readLoop(c)
}

// Clients reports how many websocket clients are connected.
func (s *Stream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, c := range s.clients {
		close(c.send)
		delete(s.clients, id)
	}
}

// readLoop discards inbound frames; it only exists to notice disconnects.
func (s *Stream) readLoop(c *streamClient) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Stream) writeLoop(c *streamClient) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			_ = c.conn.Close()
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

func (s *Stream) unregister(c *streamClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; ok {
		close(c.send)
		delete(s.clients, c.id)
		log.Debug().Str("client", c.id).Msg("stream client disconnected")
	}
}

func (s *Stream) broadcast(ev events.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Msg("encode stream event")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		select {
		case c.send <- msg:
		default:
			log.Warn().Str("client", c.id).Msg("stream client too slow, dropping event")
		}
	}
}
