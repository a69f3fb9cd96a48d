package main // Relay server entry point

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/ggokuldas06/senior-launcher-sub001/internal/config"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/database"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/handler"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/middleware"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/queue"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/registry"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/relay"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/repository"
	"github.com/ggokuldas06/senior-launcher-sub001/internal/router"
	queue_publisher "github.com/ggokuldas06/senior-launcher-sub001/internal/service"
)

func main() {
	_ = godotenv.Load() // optional .env for local runs
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis holds the live pairing codes and the pairing-API rate buckets.
	// When it is unreachable the relay still starts, with single-instance
	// in-memory codes and no rate limiting.
	var codes repository.CodeStore
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
		codes = repository.NewRedisCodeStore(rdb)
	} else {
		log.Printf("server: redis unavailable, pairing codes are in-memory only")
		codes = repository.NewMemoryCodeStore()
	}

	pairings := repository.NewPairingRepo(db)
	guardians := repository.NewGuardianRepo(db)

	reg := registry.New()
	fanout := relay.NewFanout(reg, pairings, queue_publisher.PublishAlertDispatched)
	relayRouter := relay.NewRouter(reg, fanout, cfg.RequestTimeout)

	health := &handler.HealthHandler{Reg: reg, Router: relayRouter}
	pairing := handler.NewPairingHandler(codes, pairings, fanout, cfg.PairingCodeTTL)
	guardian := handler.NewGuardianHandler(cfg, guardians, pairings, reg)
	ws := handler.NewWSHandler(reg, relayRouter, pairings)

	pairLimiter := middleware.RateLimit(middleware.RateLimitConfig{
		Capacity:       cfg.PairRateBurst,
		RefillInterval: cfg.PairRateRefill,
		Prefix:         "relay:rl",
	}, rdb)

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, health, pairing, guardian, ws, cfg.JWTSecret, pairLimiter)

	// Audit trail consumer; runs its own reconnect loop for the broker.
	go func() {
		if err := queue.StartAlertConsumer(); err != nil {
			log.Printf("alert-consumer: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("relay listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
