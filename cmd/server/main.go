package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/ptdat4/stocktalk/internal/adapter/handler"
	"github.com/ptdat4/stocktalk/internal/adapter/storage"
	"github.com/ptdat4/stocktalk/internal/config"
	"github.com/ptdat4/stocktalk/internal/core/domain"
	"github.com/ptdat4/stocktalk/internal/core/service"
	"github.com/ptdat4/stocktalk/internal/port"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var (
		store port.LedgerStore
		cache port.QuantityCache
		db    *sql.DB
		rdb   *redis.Client
	)

	if !cfg.MemoryOnly {
		db, err = sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping mysql: %v", err)
		}
		log.Println("connected to mysql")
		store = storage.NewMySQLAdapter(db)

		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 20,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		log.Println("connected to redis")
		cache = storage.NewRedisAdapter(rdb)
	}

	interp := service.NewInterpreter(cfg.StrictDirection)
	tracker := service.NewTracker(interp, store, cache, cfg.DedupTTL, cfg.QueueSize)

	if cfg.MemoryOnly {
		tracker.Seed(seedItems())
		log.Printf("running in memory with %d seeded items", len(tracker.Items()))
	} else {
		if err := tracker.Load(ctx); err != nil {
			log.Fatalf("failed to load ledger: %v", err)
		}

		// Warm the quantity mirror so UI reads hit Redis immediately.
		for _, item := range tracker.Items() {
			if err := cache.SetQuantity(ctx, item.ID, item.Quantity); err != nil {
				log.Printf("failed to mirror quantity for %s: %v", item.Name, err)
			}
		}
		log.Printf("loaded %d items", len(tracker.Items()))
	}

	// Movement writers persist the audit trail off the command path.
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			movementLoop(id, tracker.MovementQueue(), store)
		}(i)
	}
	log.Printf("started %d movement writers", cfg.WorkerCount)

	hub := handler.NewEventHub()
	go hub.Run()

	httpHandler := handler.NewHTTPHandler(tracker, hub)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/command", httpHandler.Command)
	mux.HandleFunc("/api/items", httpHandler.Items)
	mux.HandleFunc("/api/quantity", httpHandler.Quantity)
	mux.HandleFunc("/ws", hub.Serve)

	httpServer := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	hub.Stop()
	log.Println("event hub stopped")

	tracker.Close()
	wg.Wait()
	log.Println("movement writers stopped")

	if rdb != nil {
		rdb.Close()
	}
	if db != nil {
		db.Close()
	}
	log.Println("connections closed")
}

func movementLoop(id int, queue <-chan domain.Movement, store port.LedgerStore) {
	for m := range queue {
		if store == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.InsertMovement(ctx, m); err != nil {
			// Audit trail is best-effort; the ledger update already landed.
			log.Printf("writer %d: failed to record movement %s: %v", id, m.ID, err)
		}
		cancel()
	}
}

func seedItems() []domain.Item {
	now := time.Now()
	items := []domain.Item{
		{Name: "Syringes", Quantity: 25, Unit: "pieces", LowStockThreshold: 10},
		{Name: "Gloves", Quantity: 50, Unit: "pairs", LowStockThreshold: 20},
		{Name: "Lidocaine", Quantity: 8, Unit: "vials", LowStockThreshold: 3},
		{Name: "Bandages", Quantity: 40, Unit: "rolls", LowStockThreshold: 15},
	}
	for i := range items {
		items[i].ID = int64(i + 1)
		items[i].CreatedAt = now
		items[i].LastUpdated = now
	}
	return items
}
