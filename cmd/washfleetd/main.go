package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"washfleet/config"
	"washfleet/engine"
	"washfleet/fleet"
	"washfleet/messaging"
	"washfleet/nav"
	"washfleet/store"
	"washfleet/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "washfleet.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("washfleet", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("washfleet: database open (%s)", cfg.Database.Driver)

	// Redis mirror (optional; fleet state is authoritative in memory)
	var mirror *fleet.Mirror
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("washfleet: redis not available (%v), running without mirror", err)
	} else {
		log.Printf("washfleet: redis connected (%s)", cfg.Redis.Address)
		mirror = fleet.NewMirror(redisClient)
	}
	cancel()
	defer redisClient.Close()

	// Fleet registry: robots register themselves on their first exchange.
	robots := fleet.NewRegistry(fleet.TrackerConfig{
		ConfirmCount:   cfg.Fleet.ConfirmCount,
		ConfirmSpacing: cfg.Fleet.ConfirmSpacing,
		Grace:          cfg.Fleet.TargetGrace,
	}, cfg.Fleet.LivenessWindow)

	// Messaging client (customer notifications)
	msgClient := messaging.NewClient(&cfg.Messaging)
	if err := msgClient.Connect(); err != nil {
		log.Printf("washfleet: messaging connect failed (%v), notices stay queued", err)
	} else {
		log.Printf("washfleet: messaging connected (%s)", cfg.Messaging.Backend)
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		Robots:     robots,
		Nav:        nav.NewRegistry(db),
		Mirror:     mirror,
		MsgClient:  msgClient,
	})
	if err := eng.Start(); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer eng.Stop()

	// Outbox drainer (outbound customer notices)
	drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
	drainer.Start()
	defer drainer.Stop()

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("washfleet: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("washfleet: ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("washfleet: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("washfleet: stopped")
}
