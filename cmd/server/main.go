package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/adapter/handler"
	"github.com/fidzella89/online-inventory/internal/adapter/storage"
	"github.com/fidzella89/online-inventory/internal/core/domain"
	"github.com/fidzella89/online-inventory/internal/core/service"
	"github.com/fidzella89/online-inventory/internal/port"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	seed := flag.Bool("seed", false, "seed demo categories and products when the catalog is empty")
	flag.Parse()

	httpAddr := getenv("HTTP_ADDR", ":8080")
	mysqlDSN := getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/inventory?parseTime=true")
	redisAddr := getenv("REDIS_ADDR", "localhost:6379")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// Redis is the optional fast path; the service runs correct without it.
	var cache port.CacheRepository
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis unavailable, stock gate and idempotency disabled: %v", err)
		rdb.Close()
		rdb = nil
	} else {
		log.Println("connected to redis")
		cache = storage.NewRedisAdapter(rdb)
	}

	if *seed {
		if err := seedCatalog(ctx, mysqlAdapter); err != nil {
			log.Fatalf("failed to seed catalog: %v", err)
		}
	}

	if cache != nil {
		if err := syncStockCache(ctx, mysqlAdapter, cache); err != nil {
			log.Fatalf("failed to sync stock cache: %v", err)
		}
	}

	productService := service.NewProductService(mysqlAdapter, mysqlAdapter, cache)
	inventoryService := service.NewInventoryService(mysqlAdapter, mysqlAdapter, cache)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, cache)

	mux := http.NewServeMux()
	handler.NewHTTPHandler(productService, inventoryService, orderService).Register(mux)

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	log.Println("connections closed")
}

// syncStockCache primes the cached counts from the authoritative store so
// the gate starts from the truth.
func syncStockCache(ctx context.Context, store port.Store, cache port.CacheRepository) error {
	page := 1
	for {
		result, err := store.Products().List(ctx, nil, page, 100)
		if err != nil {
			return err
		}
		for _, p := range result.Items {
			if err := cache.SetStock(ctx, p.ID, p.Stock); err != nil {
				return err
			}
		}
		if page*result.PageSize >= result.TotalCount {
			return nil
		}
		page++
	}
}

func seedCatalog(ctx context.Context, adapter *storage.MySQLAdapter) error {
	existing, err := adapter.Products().List(ctx, nil, 1, 1)
	if err != nil {
		return err
	}
	if existing.TotalCount > 0 {
		log.Println("catalog not empty, skipping seed")
		return nil
	}

	return adapter.WithinTx(ctx, func(ctx context.Context, st port.Store) error {
		electronics := &domain.Category{Name: "Electronics"}
		office := &domain.Category{Name: "Office Supplies"}
		for _, c := range []*domain.Category{electronics, office} {
			if err := st.Categories().Create(ctx, c); err != nil {
				return err
			}
		}

		products := []*domain.Product{
			{SKU: "ELEC-001", Name: "Wireless Mouse", Description: "2.4GHz wireless mouse", Price: decimal.NewFromFloat(24.99), Stock: 150, CategoryID: electronics.ID},
			{SKU: "ELEC-002", Name: "USB-C Hub", Description: "7-port USB-C hub", Price: decimal.NewFromFloat(49.90), Stock: 80, CategoryID: electronics.ID},
			{SKU: "OFFC-001", Name: "A4 Paper Ream", Description: "500 sheets, 80gsm", Price: decimal.NewFromFloat(6.50), Stock: 400, CategoryID: office.ID},
		}
		for _, p := range products {
			if err := st.Products().Create(ctx, p); err != nil {
				return err
			}
			entry := &domain.LedgerEntry{
				ProductID: p.ID,
				Delta:     p.Stock,
				Timestamp: time.Now().UTC(),
				Reason:    domain.ReasonInitialStock,
			}
			if err := st.Ledger().Append(ctx, entry); err != nil {
				return err
			}
		}
		log.Printf("seeded %d products", len(products))
		return nil
	})
}
