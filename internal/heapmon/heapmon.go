// Package heapmon streams live collection statistics to websocket clients,
// so a heap under load can be watched from outside the process.
package heapmon

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"finch/internal/vm"
)

type statsPayload struct {
	Seq         uint64 `json:"seq"`
	StartedAt   string `json:"startedAt"`
	BytesBefore int    `json:"bytesBefore"`
	BytesAfter  int    `json:"bytesAfter"`
	NextGC      int    `json:"nextGC"`
	Freed       int    `json:"freed"`
	Survived    int    `json:"survived"`
	PauseNs     int64  `json:"pauseNs"`
}

// Server broadcasts every recorded collection to its websocket clients.
// It implements vm.Recorder.
type Server struct {
	addr     string
	log      *zap.Logger
	upgrader websocket.Upgrader
	srv      *http.Server

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	latest  []byte
}

// NewServer creates a monitor server listening on addr.
func NewServer(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:    addr,
		log:     logger,
		clients: make(map[*websocket.Conn]bool),
	}
}

// Start begins serving. It blocks until the listener fails or Close is
// called; run it on its own goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", s.handleStats)

	s.srv = &http.Server{Addr: s.addr, Handler: mux}
	s.log.Info("heap monitor listening", zap.String("addr", s.addr))

	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	latest := s.latest
	s.mu.Unlock()

	s.log.Debug("monitor client connected",
		zap.String("remote", conn.RemoteAddr().String()))

	// New clients get the most recent stats right away.
	if latest != nil {
		if err := conn.WriteMessage(websocket.TextMessage, latest); err != nil {
			s.drop(conn)
			return
		}
	}

	// Drain (and discard) client messages so pings and closes are
	// processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		conn.Close()
	}
	s.mu.Unlock()
}

// RecordCollection implements vm.Recorder: the stats are broadcast to
// every connected client. Write failures drop the client.
func (s *Server) RecordCollection(stats vm.GCStats) {
	payload, err := json.Marshal(statsPayload{
		Seq:         stats.Seq,
		StartedAt:   stats.When.UTC().Format("2006-01-02T15:04:05.000Z"),
		BytesBefore: stats.BytesBefore,
		BytesAfter:  stats.BytesAfter,
		NextGC:      stats.NextGC,
		Freed:       stats.Freed,
		Survived:    stats.Survived,
		PauseNs:     stats.Pause.Nanoseconds(),
	})
	if err != nil {
		s.log.Warn("failed to encode stats", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.latest = payload
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.drop(conn)
		}
	}
}

// Close shuts the listener down and disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()

	if s.srv != nil {
		return s.srv.Close()
	}
	return nil
}
