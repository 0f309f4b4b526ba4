package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanchayi/web-server/internal/logger"
	"github.com/hanchayi/web-server/internal/metrics"
	"github.com/hanchayi/web-server/internal/threadpool"
)

// Config はClientの設定
type Config struct {
	Addr          string
	NumWorkers    int           // 同時接続数（1以上）
	SleepRatio    float64       // GET /sleep の比率（0.0〜1.0）
	NotFoundRatio float64       // 存在しないパスの比率（0.0〜1.0）
	Timeout       time.Duration // 1リクエストの期限
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Addr:          "127.0.0.1:7878",
		NumWorkers:    4,
		SleepRatio:    0,
		NotFoundRatio: 0.1,
		Timeout:       10 * time.Second,
	}
}

// Result は負荷生成の結果
type Result struct {
	Jobs     metrics.Snapshot
	Statuses map[string]uint64
	Failures uint64
	Elapsed  time.Duration
}

// Client は負荷生成器
type Client struct {
	config Config
	log    *logger.Logger

	mu       sync.Mutex
	statuses map[string]uint64
	failures atomic.Uint64
}

// New は新しいClientを作成する
func New(config Config) *Client {
	return &Client{
		config:   config,
		log:      logger.Default,
		statuses: make(map[string]uint64),
	}
}

// SetLogger はロガーを設定する
func (c *Client) SetLogger(l *logger.Logger) {
	c.log = l
}

// RunRequests は count 件のリクエストを送り、全件完了してから結果を返す。
// ctx がキャンセルされた場合は未投入のリクエストを送らない
func (c *Client) RunRequests(ctx context.Context, count uint64) Result {
	start := time.Now()
	pool := threadpool.NewWithConfig(threadpool.Config{
		Size:   c.config.NumWorkers,
		Logger: c.log,
	})

	c.log.Info("", "Client started (workers: %d, requests: %d)", pool.Size(), count)

	for i := uint64(0); i < count; i++ {
		if ctx.Err() != nil {
			break
		}
		path := c.pickPath()
		if err := pool.Execute(func() { c.record(c.Do(path)) }); err != nil {
			break
		}
	}

	pool.Shutdown()

	result := Result{
		Jobs:     pool.Metrics().Snapshot(),
		Statuses: c.Statuses(),
		Failures: c.failures.Load(),
		Elapsed:  time.Since(start),
	}
	c.log.Info("", "Client finished: %d requests, %d failures", result.Jobs.Completed, result.Failures)
	return result
}

// pickPath は比率に従ってリクエストパスを選ぶ
func (c *Client) pickPath() string {
	r := rand.Float64()
	switch {
	case r < c.config.SleepRatio:
		return "/sleep"
	case r < c.config.SleepRatio+c.config.NotFoundRatio:
		return fmt.Sprintf("/missing-%d", rand.IntN(1000))
	default:
		return "/"
	}
}

// Do は1件のリクエストを送り、ステータス行を返す
func (c *Client) Do(path string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.config.Addr, c.config.Timeout)
	if err != nil {
		return "", fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if c.config.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.config.Timeout))
	}

	if _, err := fmt.Fprintf(conn, "GET %s HTTP/1.1\r\n", path); err != nil {
		return "", fmt.Errorf("write request: %w", err)
	}

	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read status line: %w", err)
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	status := strings.TrimRight(statusLine, "\r\n")
	if !strings.HasPrefix(status, "HTTP/1.1 ") {
		return status, errors.New("malformed status line")
	}
	return status, nil
}

func (c *Client) record(status string, err error) {
	if err != nil {
		c.failures.Add(1)
		c.log.Debug("", "request failed: %v", err)
		return
	}
	c.mu.Lock()
	c.statuses[status]++
	c.mu.Unlock()
}

// Statuses はステータス行ごとの件数のコピーを返す
func (c *Client) Statuses() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]uint64, len(c.statuses))
	for k, v := range c.statuses {
		out[k] = v
	}
	return out
}

// Report は結果を人が読める形式で返す
func (r Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Requests:  %d (%d failed)\n", r.Jobs.Completed, r.Failures)
	fmt.Fprintf(&b, "Elapsed:   %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "Avg:       %v\n", r.Jobs.AverageLatency.Round(time.Microsecond))
	fmt.Fprintf(&b, "P99:       %v\n", r.Jobs.P99Latency.Round(time.Microsecond))
	fmt.Fprintf(&b, "Peak conc: %d\n", r.Jobs.PeakActive)

	statuses := make([]string, 0, len(r.Statuses))
	for s := range r.Statuses {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		fmt.Fprintf(&b, "  %-32s %d\n", s, r.Statuses[s])
	}
	return b.String()
}
