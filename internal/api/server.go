// Package api serves the admin endpoints: JSON status, prometheus metrics and
// a websocket feed of pool events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"github.com/hanchayi/web-server/internal/events"
	"github.com/hanchayi/web-server/internal/logger"
	"github.com/hanchayi/web-server/internal/metrics"
	"github.com/hanchayi/web-server/internal/threadpool"
)

const defaultStatusInterval = time.Second

// Server は管理APIサーバー
type Server struct {
	addr     string
	pool     *threadpool.Pool
	bus      *events.Bus
	log      *logger.Logger
	registry *prometheus.Registry
	interval time.Duration

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しい管理APIサーバーを作成する。bus は nil でもよい
func NewServer(addr string, pool *threadpool.Pool, bus *events.Bus, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(pool.Metrics(), pool),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		addr:      addr,
		pool:      pool,
		bus:       bus,
		log:       log,
		registry:  registry,
		interval:  defaultStatusInterval,
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始し、ctx がキャンセルされるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.startLoops(ctx)

	s.log.Info("", "Admin API starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) startLoops(ctx context.Context) {
	go s.broadcastLoop(ctx)
	if s.bus != nil {
		go s.forwardEvents(ctx, s.bus.Subscribe())
	}
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Size        int              `json:"size"`
	LiveWorkers int              `json:"live_workers"`
	QueueLength int              `json:"queue_length"`
	Closed      bool             `json:"closed"`
	PanicPolicy string           `json:"panic_policy"`
	Jobs        metrics.Snapshot `json:"jobs"`
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		Size:        s.pool.Size(),
		LiveWorkers: s.pool.LiveWorkers(),
		QueueLength: s.pool.QueueLen(),
		Closed:      s.pool.Closed(),
		PanicPolicy: s.pool.PanicPolicy().String(),
		Jobs:        s.pool.Metrics().Snapshot(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status())
}

// Message is the envelope sent to websocket clients.
type Message struct {
	Type   string          `json:"type"`
	Status *StatusResponse `json:"status,omitempty"`
	Event  *events.Event   `json:"event,omitempty"`
}

func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// クライアントが切断するまで接続を維持する
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(msg Message) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("", "Failed to encode websocket message: %v", err)
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			s.broadcast(Message{Type: "status", Status: &status})
		}
	}
}

func (s *Server) forwardEvents(ctx context.Context, ch <-chan events.Event) {
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(Message{Type: "event", Event: &ev})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("", "Failed to encode JSON: %v", err)
	}
}
