package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wfunc/whotserver/auth"
	"github.com/wfunc/whotserver/broadcast"
	"github.com/wfunc/whotserver/cache"
	"github.com/wfunc/whotserver/config"
	"github.com/wfunc/whotserver/logger"
	"github.com/wfunc/whotserver/monitor"
	"github.com/wfunc/whotserver/oracle"
	"github.com/wfunc/whotserver/persistence"
	"github.com/wfunc/whotserver/room"
	"github.com/wfunc/whotserver/rpc"
	"github.com/wfunc/whotserver/server"
	"github.com/wfunc/whotserver/services"
	"github.com/wfunc/whotserver/session"
	"github.com/wfunc/whotserver/shuffle"
	"github.com/wfunc/whotserver/timer"
)

func openStore(cfg *config.Config) (persistence.Store, error) {
	switch cfg.Database.Driver {
	case "gorm":
		return persistence.NewGormPostgreSQL(cfg.Database.Postgres.DSN())
	case "pq":
		return persistence.NewPostgreSQL(cfg.Database.Postgres.DSN())
	default:
		return persistence.NewMemoryStore(), nil
	}
}

func openCache(ctx context.Context, cfg *config.Config) (cache.GameCache, func()) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryCache(), func() {}
	}
	c, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to redis: %v", err)
	}
	logger.Log.Infof("Redis cache at %s", cfg.Redis.Addr)
	return c, func() { _ = c.Close() }
}

func jwtSecret(cfg *config.Config) string {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret
	}
	// 未配置密钥时随机生成, 重启后旧令牌失效
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		logger.Log.Fatalf("Failed to generate jwt secret: %v", err)
	}
	logger.Log.Warn("auth.jwt_secret is empty, using a random secret; tokens will not survive a restart")
	return hex.EncodeToString(buf)
}

func main() {
	// 先用默认级别, 配置加载失败也能看到日志
	if err := logger.Init(""); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		logger.Log.Fatalf("Invalid log.level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hasher, err := shuffle.ParseHasher(cfg.Game.Hasher)
	if err != nil {
		logger.Log.Fatalf("Invalid game.hasher: %v", err)
	}
	source, err := oracle.ParseSource(cfg.Game.Oracle, hasher)
	if err != nil {
		logger.Log.Fatalf("Invalid game.oracle: %v", err)
	}

	// Initialize Database
	store, err := openStore(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	logger.Log.Infof("Store ready (driver=%s)", cfg.Database.Driver)

	gameCache, closeCache := openCache(ctx, cfg)
	defer closeCache()

	timers := timer.NewTimerManager(100 * time.Millisecond)
	defer timers.Stop()
	randomness := oracle.New(timers, cfg.Game.RandomnessDelay, source)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mon := monitor.NewMonitor(cfg.Server.MetricsNamespace, reg, reg)
	mon.PublishExpvar()

	rooms := room.NewRoomManager()
	sessions := session.NewManager()
	broadcaster := broadcast.NewRoomBroadcaster(rooms, sessions)

	games := services.NewGameService(rooms, store, store, gameCache, randomness, timers, mon, broadcaster, services.Options{
		Hasher:            hasher,
		AllowedAssets:     cfg.Game.AllowedAssets,
		DefaultWaitWindow: cfg.Game.DefaultWaitWindow,
	})
	restored, err := games.Restore(ctx)
	if err != nil {
		logger.Log.Fatalf("Failed to restore open games: %v", err)
	}
	logger.Log.Infof("Restored %d open games", restored)

	players := services.NewPlayerService(store, store, cfg.Game.AllowedAssets, cfg.Game.StartingBalance)

	issuer, err := auth.NewIssuer(jwtSecret(cfg), cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Log.Fatalf("Failed to create token issuer: %v", err)
	}

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, rpc.NewGameService(games, players, issuer))
	if err != nil {
		logger.Log.Fatalf("Failed to listen for rpc: %v", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()
	logger.Log.Infof("RPC server on %s", rpcServer.Addr())

	gameServer := server.NewGameServer(server.Options{
		Addr:        cfg.Server.HTTPAddress,
		DevTokens:   cfg.Auth.DevTokens,
		Heartbeat:   60 * time.Second,
		IdleTimeout: cfg.Server.IdleTimeout,
	}, rooms, sessions, games, players, issuer, mon, timers)

	errc := make(chan error, 1)
	go func() {
		errc <- gameServer.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info("Shutting down")
	case err := <-errc:
		if err != nil {
			logger.Log.Errorf("Game server stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Shutdown: %v", err)
	}
}
