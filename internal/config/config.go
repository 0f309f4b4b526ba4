package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hanchayi/web-server/internal/logger"
	"github.com/hanchayi/web-server/internal/server"
	"github.com/hanchayi/web-server/internal/threadpool"
)

// DefaultAdminAddr は管理APIのデフォルトアドレス
const DefaultAdminAddr = "127.0.0.1:9090"

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Pool   PoolConfig   `yaml:"pool" json:"pool"`
	Admin  AdminConfig  `yaml:"admin" json:"admin"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// ServerConfig はWebサーバー設定
type ServerConfig struct {
	Addr        string `yaml:"addr" json:"addr"`
	Root        string `yaml:"root" json:"root"`
	MaxRequests int    `yaml:"max_requests" json:"max_requests"`
	SleepDelay  string `yaml:"sleep_delay" json:"sleep_delay"`
	ReadTimeout string `yaml:"read_timeout" json:"read_timeout"`
}

// PoolConfig はスレッドプール設定
type PoolConfig struct {
	Workers     int    `yaml:"workers" json:"workers"`
	PanicPolicy string `yaml:"panic_policy" json:"panic_policy"`
}

// AdminConfig は管理API設定
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Runtime は各パッケージに渡す実行時設定
type Runtime struct {
	Server    server.Config
	AdminAddr string // 空の場合は管理APIを起動しない
	LogLevel  logger.Level
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定を検証する。
// ワーカー数 0 は「未指定」としてデフォルトを使うが、負数はエラーにする
func (f *FileConfig) Validate() error {
	if f.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be positive, got %d", f.Pool.Workers)
	}

	if _, err := threadpool.ParsePanicPolicy(f.Pool.PanicPolicy); err != nil {
		return fmt.Errorf("pool.panic_policy: %w", err)
	}

	if f.Server.MaxRequests < 0 {
		return fmt.Errorf("server.max_requests must be non-negative")
	}

	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	for name, value := range map[string]string{
		"server.sleep_delay":  f.Server.SleepDelay,
		"server.read_timeout": f.Server.ReadTimeout,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative", name)
		}
	}

	return nil
}

// ToRuntime はFileConfigを実行時設定に変換する
func (f *FileConfig) ToRuntime() (Runtime, error) {
	rt := Runtime{
		Server:   server.DefaultConfig(),
		LogLevel: logger.LevelInfo,
	}
	sc := &rt.Server

	if f.Server.Addr != "" {
		sc.Addr = f.Server.Addr
	}
	if f.Server.Root != "" {
		sc.Root = f.Server.Root
	}
	if f.Server.MaxRequests > 0 {
		sc.MaxRequests = f.Server.MaxRequests
	}
	if f.Server.SleepDelay != "" {
		d, err := time.ParseDuration(f.Server.SleepDelay)
		if err != nil {
			return rt, fmt.Errorf("invalid sleep delay: %w", err)
		}
		sc.SleepDelay = d
	}
	if f.Server.ReadTimeout != "" {
		d, err := time.ParseDuration(f.Server.ReadTimeout)
		if err != nil {
			return rt, fmt.Errorf("invalid read timeout: %w", err)
		}
		sc.ReadTimeout = d
	}

	// Pool設定
	if f.Pool.Workers > 0 {
		sc.Workers = f.Pool.Workers
	}
	policy, err := threadpool.ParsePanicPolicy(f.Pool.PanicPolicy)
	if err != nil {
		return rt, err
	}
	sc.PanicPolicy = policy

	// Admin設定
	if f.Admin.Enabled {
		rt.AdminAddr = f.Admin.Addr
		if rt.AdminAddr == "" {
			rt.AdminAddr = DefaultAdminAddr
		}
	}

	// Log設定
	level, err := logger.ParseLevel(f.Log.Level)
	if err != nil {
		return rt, err
	}
	rt.LogLevel = level

	return rt, nil
}
