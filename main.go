// Command playdate-server starts the PlayDate realtime game server.
//
// It exposes the REST API, the websocket protocol endpoint, and a health
// check on a single HTTP listener. Flags control host/port and debug
// logging; everything else (redis, outcome directory, sweep tuning) comes
// from the environment, optionally via a .env file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/playdate-app/playdate-server/api"
	"github.com/playdate-app/playdate-server/game/service"
	"github.com/playdate-app/playdate-server/game/session"
	"github.com/playdate-app/playdate-server/identity"
	"github.com/playdate-app/playdate-server/persist"
	"github.com/playdate-app/playdate-server/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "PlayDate Server"
)

// Configuration flags control how the server starts.
var (
	port    = flag.Int("port", 8080, "HTTP server port")
	host    = flag.String("host", "localhost", "HTTP server host")
	debug   = flag.Bool("debug", false, "Enable debug logging")
	version = flag.Bool("version", false, "Show version information")
)

// envConfig is the environment-driven part of the configuration.
type envConfig struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	OutcomeTTL    time.Duration `env:"OUTCOME_TTL" envDefault:"0"`
	OutcomeDir    string        `env:"OUTCOME_DIR"`

	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"90s"`
	TerminalGrace    time.Duration `env:"TERMINAL_GRACE" envDefault:"2m"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
}

// main parses configuration, wires the core and runs the HTTP server until
// a shutdown signal arrives.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to parse environment: %v", err)
	}

	log.Printf("Starting %s v%s", AppName, Version)

	runHTTPServer(cfg)
}

// runHTTPServer wires the session core, starts the presence sweeper, and
// serves HTTP until interrupted.
func runHTTPServer(cfg envConfig) {
	store := session.NewStore()
	hub := websocket.NewHub()
	engine := websocket.NewEngine(hub, store)

	recorder := newRecorder(cfg)
	gameService := service.New(store, identity.Synthesized{}, recorder)

	apiServer := api.NewServer(gameService, engine)

	// Presence sweeper: stale players are evicted through the same leave
	// path a disconnect takes; finished sessions expire after the grace
	// period.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := session.NewSweeper(store,
		cfg.HeartbeatTimeout, cfg.TerminalGrace, cfg.SweepInterval,
		engine.EvictStale, engine.ExpireSession)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	addr := fmt.Sprintf("%s:%d", *host, *port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sig := <-stop
	log.Printf("Received signal: %v. Shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()

	if closer, ok := recorder.(io.Closer); ok {
		closer.Close()
	}
	log.Println("Server stopped")
}

// newRecorder picks the outcome recorder backend: redis when configured,
// otherwise a file directory, otherwise nothing.
func newRecorder(cfg envConfig) persist.Recorder {
	if cfg.RedisAddr != "" {
		recorder, err := persist.NewRedisRecorder(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.OutcomeTTL)
		if err != nil {
			log.Printf("Warning: redis recorder unavailable, falling back: %v", err)
		} else {
			log.Printf("Recording session outcomes to redis at %s", cfg.RedisAddr)
			return recorder
		}
	}
	if cfg.OutcomeDir != "" {
		recorder, err := persist.NewFileRecorder(cfg.OutcomeDir)
		if err != nil {
			log.Printf("Warning: file recorder unavailable: %v", err)
		} else {
			log.Printf("Recording session outcomes to %s", cfg.OutcomeDir)
			return recorder
		}
	}
	return persist.Noop{}
}
