package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hanchayi/web-server/internal/events"
	"github.com/hanchayi/web-server/internal/logger"
	"github.com/hanchayi/web-server/internal/metrics"
	"github.com/hanchayi/web-server/internal/threadpool"
)

// Config はWebサーバーの設定
type Config struct {
	Addr        string
	Root        string // hello.html と 404.html を置くディレクトリ
	Workers     int
	PanicPolicy threadpool.PanicPolicy
	MaxRequests int           // 0 で無制限
	SleepDelay  time.Duration // GET /sleep の待ち時間
	ReadTimeout time.Duration // リクエスト行の読み込み期限（0で無制限）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:        "127.0.0.1:7878",
		Root:        "public",
		Workers:     4,
		PanicPolicy: threadpool.PanicPolicyExit,
		SleepDelay:  5 * time.Second,
		ReadTimeout: 10 * time.Second,
	}
}

// Option はServerのオプション
type Option func(*Server)

// WithLogger はロガーを設定する
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithBus はイベントバスを設定する
func WithBus(b *events.Bus) Option {
	return func(s *Server) {
		s.bus = b
	}
}

// WithMetrics はジョブメトリクスを設定する
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// Server は接続をスレッドプールに渡すTCPサーバー
type Server struct {
	config  Config
	log     *logger.Logger
	bus     *events.Bus
	metrics *metrics.Metrics
	pool    *threadpool.Pool

	mu       sync.Mutex
	listener net.Listener
	accepted atomic.Int64
	served   atomic.Int64
}

// New はサーバーを作成し、ワーカープールを起動する。
// Workers が 0 以下の場合は threadpool.New と同様に panic する
func New(config Config, opts ...Option) *Server {
	s := &Server{
		config: config,
		log:    logger.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	s.pool = threadpool.NewWithConfig(threadpool.Config{
		Size:        config.Workers,
		PanicPolicy: config.PanicPolicy,
		Logger:      s.log,
		Metrics:     s.metrics,
		Bus:         s.bus,
	})
	return s
}

// Pool はサーバーが使うワーカープールを返す
func (s *Server) Pool() *threadpool.Pool {
	return s.pool
}

// Accepted は受け付けた接続数を返す
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// Served はレスポンスを書き込んだ接続数を返す
func (s *Server) Served() int64 {
	return s.served.Load()
}

// Addr はリッスン中のアドレスを返す。未起動の場合は nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve は Config.Addr でリッスンし、ServeListener を実行する
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.pool.Shutdown()
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener は接続を受け付けてプールに投入する。
// ctx のキャンセルか MaxRequests 到達で受付を止め、プールを停止してから返る
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	defer s.pool.Shutdown()
	defer ln.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	s.log.Info("", "Listening on %s", ln.Addr())

	for {
		if limit := s.config.MaxRequests; limit > 0 && s.accepted.Load() >= int64(limit) {
			s.log.Info("", "Served %d requests; no longer accepting", limit)
			break
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.accepted.Add(1)
		s.log.Debug("", "Connection established: %s", conn.RemoteAddr())

		if err := s.pool.Execute(func() { s.handleConnection(conn) }); err != nil {
			s.log.Error("", "Failed to dispatch connection: %v", err)
			_ = conn.Close()
		}
	}

	s.log.Info("", "Shutting down.")
	return nil
}

// Close はリスナーを閉じ、プールを停止する
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	var err error
	if ln != nil {
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	s.pool.Shutdown()
	return err
}

// handleConnection は1つの接続を処理する。ワーカー上で実行される
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	scope := "conn-" + connID[:8]
	start := time.Now()

	if s.config.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.config.ReadTimeout))
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	requestLine := strings.TrimRight(line, "\r\n")
	if err != nil && requestLine == "" {
		s.log.Warn(scope, "Failed to read request line: %v", err)
	}

	r := resolve(requestLine)
	if r.sleep {
		time.Sleep(s.config.SleepDelay)
	}

	status := r.status
	var body []byte
	if r.page != "" {
		body, err = os.ReadFile(filepath.Join(s.config.Root, r.page))
		if err != nil {
			s.log.Error(scope, "Failed to read page %s: %v", r.page, err)
			status = statusInternalError
			body = nil
		}
	}

	if _, err := conn.Write(formatResponse(status, body)); err != nil {
		s.log.Warn(scope, "Failed to write response: %v", err)
		return
	}

	elapsed := time.Since(start)
	s.served.Add(1)
	s.log.Info(scope, "%q -> %s (%v)", requestLine, status, elapsed)
	s.bus.Publish(events.NewRequestServedEvent(connID, requestLine, status, elapsed))
}
