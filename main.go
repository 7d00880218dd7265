package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/blockbattle/bot"
	"github.com/wfunc/blockbattle/broadcast"
	"github.com/wfunc/blockbattle/config"
	"github.com/wfunc/blockbattle/logger"
	"github.com/wfunc/blockbattle/monitor"
	"github.com/wfunc/blockbattle/persistence"
	"github.com/wfunc/blockbattle/room"
	"github.com/wfunc/blockbattle/rpc"
	"github.com/wfunc/blockbattle/server"
	"github.com/wfunc/blockbattle/services"
	"github.com/wfunc/blockbattle/session"
	"github.com/wfunc/blockbattle/timer"
)

func main() {
	// Initialize logger
	if err := logger.Init(""); err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		logger.Log.Fatalf("Invalid log level %q: %v", cfg.Log.Level, err)
	}

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open %s database: %v", cfg.Database.Driver, err)
	}
	defer db.Close()
	logger.Log.Infof("Round history backend: %s", cfg.Database.Driver)

	mon := monitor.NewMonitor("blockbattle")
	metricsServer := mon.StartServer(cfg.Server.MetricsAddress)

	timers := timer.NewTimerManager(50 * time.Millisecond)
	defer timers.Close()

	rounds := services.NewRoundService(db)
	sessions := session.NewManager()
	rooms := room.NewRoomManager(room.Deps{
		Metrics:  mon,
		Observer: rounds,
		NewBot:   bot.Factory{Timers: timers, Tick: cfg.Room.BotTickInterval}.New,
	}, cfg.Room.Rules)
	rooms.SetBroadcaster(broadcast.NewRoomBroadcaster(rooms, sessions))

	// 初始化RPC服务器
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	if err := rpcServer.Register(rpc.NewRoomService(rooms, rounds)); err != nil {
		logger.Log.Fatalf("Failed to register RPC service: %v", err)
	}
	go rpcServer.Start()

	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, rooms, sessions, mon)
	go func() {
		if err := gameServer.Start(); err != nil {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down.")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gameServer.Shutdown(ctx); err != nil {
		logger.Log.Warnf("Game server shutdown: %v", err)
	}
	rpcServer.Stop()
	rooms.Close()
	rounds.Wait()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Log.Warnf("Metrics server shutdown: %v", err)
	}
}
