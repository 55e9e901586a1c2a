package broadcast

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn adapts a gorilla connection to the hub's Conn. Gorilla connections
// only support one concurrent writer, so writes are serialized here.
type wsConn struct {
	conn *websocket.Conn

	writeMutex sync.Mutex
}

func (c *wsConn) WriteWithDeadline(payload []byte, deadline time.Time) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	c.conn.SetWriteDeadline(deadline)

	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// Server exposes the hub over websocket at /ws/{audience}.
type Server struct {
	hub *Hub
}

func NewServer(hub *Hub) *Server {
	return &Server{hub: hub}
}

func (s *Server) Listen(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/", s.handleWebsocket)

	log.Info().Str("addr", addr).Msg("Broadcast server listening")

	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	audience, ok := parseAudience(strings.TrimPrefix(r.URL.Path, "/ws/"))
	if !ok {
		http.Error(w, "unknown audience", http.StatusNotFound)
		return
	}

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	conn := &wsConn{conn: socket}
	s.hub.Connect(conn, audience)

	// one receive loop per live connection
	go s.readLoop(conn)
}

func (s *Server) readLoop(conn *wsConn) {
	defer s.hub.Disconnect(conn)

	for {
		messageType, payload, err := conn.conn.ReadMessage()
		if err != nil {
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		s.hub.HandleClientMessage(conn, payload)
	}
}

func parseAudience(value string) (Audience, bool) {
	switch Audience(value) {
	case AudienceRealtime, AudienceAdmin, AudienceDriver:
		return Audience(value), true
	default:
		return "", false
	}
}
