package tests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/fidzella89/online-inventory/internal/adapter/storage"
	"github.com/fidzella89/online-inventory/internal/core/domain"
	"github.com/fidzella89/online-inventory/internal/core/service"
)

type testEnv struct {
	redis     *redis.Client
	mysql     *sql.DB
	cache     *storage.RedisAdapter
	db        *storage.MySQLAdapter
	inventory *service.InventoryService
	orders    *service.OrderService
	products  *service.ProductService
	cleanup   func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/inventory?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cache := storage.NewRedisAdapter(rdb)

	return &testEnv{
		redis:     rdb,
		mysql:     db,
		cache:     cache,
		db:        mysqlAdapter,
		inventory: service.NewInventoryService(mysqlAdapter, mysqlAdapter, cache),
		orders:    service.NewOrderService(mysqlAdapter, mysqlAdapter, cache),
		products:  service.NewProductService(mysqlAdapter, mysqlAdapter, cache),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (env *testEnv) createProduct(t *testing.T, price string, stock int) *domain.Product {
	t.Helper()
	ctx := context.Background()

	cat := &domain.Category{Name: "integration"}
	if err := env.db.Categories().Create(ctx, cat); err != nil {
		t.Fatalf("create category: %v", err)
	}

	p, err := env.products.Create(ctx, service.CreateProductInput{
		SKU:          fmt.Sprintf("ITG-%d", time.Now().UnixNano()),
		Name:         "Integration Widget",
		Price:        decimal.RequireFromString(price),
		InitialStock: stock,
		CategoryID:   cat.ID,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func TestIntegration_AdjustAndSettleFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	p := env.createProduct(t, "10.00", 10)

	// manual adjustment
	entry, err := env.inventory.Adjust(ctx, p.ID, -3, "Shrinkage")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if entry.Delta != -3 {
		t.Errorf("expected delta -3, got %d", entry.Delta)
	}

	// settlement
	order, err := env.orders.Settle(ctx, uuid.NewString(), []domain.OrderLineInput{
		{ProductID: p.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if order.Total.StringFixed(2) != "20.00" {
		t.Errorf("expected total 20.00, got %s", order.Total.StringFixed(2))
	}

	// stock reconciles with the ledger in the database
	after, err := env.db.Products().GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if after.Stock != 5 {
		t.Errorf("expected stock 5, got %d", after.Stock)
	}

	ledger, err := env.inventory.ListLedger(ctx, &p.ID, 1, 100)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	sum := 0
	for _, e := range ledger.Items {
		sum += e.Delta
	}
	if sum != after.Stock {
		t.Errorf("ledger sum %d does not reconcile with stock %d", sum, after.Stock)
	}

	// the cached count followed
	cached, err := env.redis.Get(ctx, fmt.Sprintf("stock:%d", p.ID)).Int()
	if err != nil {
		t.Fatalf("read cached stock: %v", err)
	}
	if cached != 5 {
		t.Errorf("expected cached stock 5, got %d", cached)
	}
}

func TestIntegration_DuplicateRequestSuppressed(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	p := env.createProduct(t, "10.00", 10)
	requestID := uuid.NewString()
	lines := []domain.OrderLineInput{{ProductID: p.ID, Quantity: 1}}

	if _, err := env.orders.Settle(ctx, requestID, lines); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	_, err := env.orders.Settle(ctx, requestID, lines)
	if !errors.Is(err, domain.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}

	after, _ := env.db.Products().GetByID(ctx, p.ID)
	if after.Stock != 9 {
		t.Errorf("expected stock decremented once to 9, got %d", after.Stock)
	}
}

func TestIntegration_ConcurrentSettlementsNeverOversell(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	initialStock := 10
	totalRequests := 25
	p := env.createProduct(t, "5.00", initialStock)

	var successCount, rejectedCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.orders.Settle(ctx, uuid.NewString(), []domain.OrderLineInput{
				{ProductID: p.ID, Quantity: 1},
			})
			var stockErr *domain.InsufficientStockError
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.As(err, &stockErr):
				rejectedCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	if rejectedCount.Load() != int32(totalRequests-initialStock) {
		t.Errorf("expected %d rejections, got %d", totalRequests-initialStock, rejectedCount.Load())
	}

	after, _ := env.db.Products().GetByID(ctx, p.ID)
	if after.Stock != 0 {
		t.Errorf("expected final stock 0, got %d", after.Stock)
	}

	ledger, _ := env.inventory.ListLedger(ctx, &p.ID, 1, 100)
	sum := 0
	for _, e := range ledger.Items {
		sum += e.Delta
	}
	if sum != 0 {
		t.Errorf("ledger sum %d does not reconcile with stock 0", sum)
	}
}

func TestIntegration_ThreeLineAtomicity(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()
	ctx := context.Background()

	p1 := env.createProduct(t, "10.00", 10)
	p2 := env.createProduct(t, "5.00", 1)
	p3 := env.createProduct(t, "2.00", 10)

	_, err := env.orders.Settle(ctx, uuid.NewString(), []domain.OrderLineInput{
		{ProductID: p1.ID, Quantity: 2},
		{ProductID: p2.ID, Quantity: 5},
		{ProductID: p3.ID, Quantity: 1},
	})
	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}

	for _, p := range []*domain.Product{p1, p2, p3} {
		after, _ := env.db.Products().GetByID(ctx, p.ID)
		if after.Stock != p.Stock {
			t.Errorf("product %d: expected stock %d untouched, got %d", p.ID, p.Stock, after.Stock)
		}
		ledger, _ := env.inventory.ListLedger(ctx, &p.ID, 1, 100)
		// only the opening entry may exist
		if ledger.TotalCount != 1 {
			t.Errorf("product %d: expected 1 ledger entry, got %d", p.ID, ledger.TotalCount)
		}
	}
}
