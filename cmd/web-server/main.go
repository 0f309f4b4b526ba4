// Package main is the entry point for web-server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hanchayi/web-server/internal/api"
	"github.com/hanchayi/web-server/internal/client"
	"github.com/hanchayi/web-server/internal/config"
	"github.com/hanchayi/web-server/internal/events"
	"github.com/hanchayi/web-server/internal/logger"
	"github.com/hanchayi/web-server/internal/server"
	"github.com/hanchayi/web-server/internal/threadpool"
)

var (
	version = "dev"
)

type flags struct {
	configFile  string
	addr        string
	root        string
	workers     int
	maxRequests int
	adminAddr   string
	panicPolicy string
	logLevel    string
	load        uint64
	sleepRatio  float64
}

func main() {
	var f flags
	flag.StringVar(&f.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.StringVar(&f.addr, "addr", "", "リッスンアドレス (例: 127.0.0.1:7878)")
	flag.StringVar(&f.root, "root", "", "hello.html と 404.html のディレクトリ")
	flag.IntVar(&f.workers, "workers", 0, "ワーカー数")
	flag.IntVar(&f.maxRequests, "max-requests", -1, "この数の接続を処理したら終了 (0で無制限)")
	flag.StringVar(&f.adminAddr, "admin-addr", "", "管理APIアドレス (空で無効)")
	flag.StringVar(&f.panicPolicy, "panic-policy", "", "ジョブがpanicした時の動作 (exit, respawn)")
	flag.StringVar(&f.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flag.Uint64Var(&f.load, "load", 0, "サーバーを起動せず、-addr にこの数のリクエストを送る")
	flag.Float64Var(&f.sleepRatio, "load-sleep-ratio", 0, "負荷生成時に GET /sleep を送る比率")
	showVersion := flag.Bool("version", false, "バージョンを表示")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `web-server - static web server on a fixed-size thread pool

Usage:
  web-server [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # デフォルト設定で起動 (127.0.0.1:7878, 4 workers)
  web-server

  # 2件処理したら終了
  web-server --max-requests 2

  # 起動中のサーバーに1000件のリクエストを送る
  web-server --load 1000 --workers 16

  # 設定ファイルと管理APIを使う
  web-server --config server.yaml --admin-addr 127.0.0.1:9090
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("web-server version %s\n", version)
		return
	}

	rt, err := buildRuntime(f)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}
	logger.Default.SetLevel(rt.LogLevel)

	if f.load > 0 {
		runLoad(rt, f)
		return
	}

	if err := run(rt); err != nil {
		logger.Error("", "サーバーエラー: %v", err)
		os.Exit(1)
	}
}

// buildRuntime は設定ファイルとフラグから実行時設定を構築する
func buildRuntime(f flags) (config.Runtime, error) {
	fileConfig := &config.FileConfig{}

	if f.configFile != "" {
		loaded, err := config.LoadFile(f.configFile)
		if err != nil {
			return config.Runtime{}, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		fileConfig = loaded
	}

	// フラグでオーバーライド
	if f.addr != "" {
		fileConfig.Server.Addr = f.addr
	}
	if f.root != "" {
		fileConfig.Server.Root = f.root
	}
	if f.workers != 0 {
		fileConfig.Pool.Workers = f.workers
	}
	if f.maxRequests >= 0 {
		fileConfig.Server.MaxRequests = f.maxRequests
	}
	if f.panicPolicy != "" {
		fileConfig.Pool.PanicPolicy = f.panicPolicy
	}
	if f.logLevel != "" {
		fileConfig.Log.Level = f.logLevel
	}
	if f.adminAddr != "" {
		fileConfig.Admin.Enabled = true
		fileConfig.Admin.Addr = f.adminAddr
	}

	if err := fileConfig.Validate(); err != nil {
		return config.Runtime{}, fmt.Errorf("設定検証エラー: %w", err)
	}
	return fileConfig.ToRuntime()
}

// run はWebサーバーと管理APIを起動し、どちらかが終了するまでブロックする
func run(rt config.Runtime) error {
	fmt.Println("web-server - static web server on a fixed-size thread pool")
	fmt.Println("==========================================================")
	fmt.Printf("Addr: %s, Root: %s\n", rt.Server.Addr, rt.Server.Root)
	fmt.Printf("Workers: %d, Panic policy: %s\n", rt.Server.Workers, rt.Server.PanicPolicy)
	if rt.AdminAddr != "" {
		fmt.Printf("Admin: http://%s\n", rt.AdminAddr)
	}
	fmt.Println("==========================================================")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	defer bus.Close()

	srv := server.New(rt.Server, server.WithBus(bus))

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, cancelServe := context.WithCancel(gctx)
	defer cancelServe()

	g.Go(func() error {
		// MaxRequests 到達で Serve が返ったら管理APIも止める
		defer cancelServe()
		return srv.Serve(serveCtx)
	})

	if rt.AdminAddr != "" {
		admin := api.NewServer(rt.AdminAddr, srv.Pool(), bus, logger.Default)
		g.Go(func() error {
			return admin.Start(serveCtx)
		})
	}

	err := g.Wait()
	if srv.Pool().PanicPolicy() == threadpool.PanicPolicyExit && srv.Pool().Metrics().Panicked() > 0 {
		logger.Warn("", "%d jobs panicked; pool ran degraded", srv.Pool().Metrics().Panicked())
	}
	return err
}

// runLoad は負荷生成モードを実行する
func runLoad(rt config.Runtime, f flags) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := client.DefaultConfig()
	cfg.Addr = rt.Server.Addr
	cfg.NumWorkers = rt.Server.Workers
	cfg.SleepRatio = f.sleepRatio

	result := client.New(cfg).RunRequests(ctx, f.load)
	fmt.Println(result.Report())
}
