package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Fires concurrent single-line settlements at a running server to observe
// oversell protection under load: successes should never exceed the
// product's starting stock.
func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	productID := flag.Int64("product", 1, "product id to order")
	requests := flag.Int("requests", 200, "total settlement requests")
	concurrency := flag.Int("concurrency", 20, "concurrent workers")
	quantity := flag.Int("quantity", 1, "quantity per order")
	flag.Parse()

	type settleRequest struct {
		RequestID string `json:"request_id"`
		Lines     []struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		} `json:"lines"`
	}

	var (
		created      atomic.Int32
		insufficient atomic.Int32
		failed       atomic.Int32
	)

	jobs := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}
			for range jobs {
				req := settleRequest{RequestID: uuid.NewString()}
				req.Lines = append(req.Lines, struct {
					ProductID int64 `json:"product_id"`
					Quantity  int   `json:"quantity"`
				}{ProductID: *productID, Quantity: *quantity})

				body, _ := json.Marshal(req)
				resp, err := client.Post(*addr+"/api/orders", "application/json", bytes.NewReader(body))
				if err != nil {
					failed.Add(1)
					continue
				}
				resp.Body.Close()

				switch resp.StatusCode {
				case http.StatusCreated:
					created.Add(1)
				case http.StatusUnprocessableEntity:
					insufficient.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	for i := 0; i < *requests; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	elapsed := time.Since(start)

	log.Printf("done in %s", elapsed)
	fmt.Printf("requests:     %d\n", *requests)
	fmt.Printf("created:      %d\n", created.Load())
	fmt.Printf("insufficient: %d\n", insufficient.Load())
	fmt.Printf("failed:       %d\n", failed.Load())
	fmt.Printf("throughput:   %.1f req/s\n", float64(*requests)/elapsed.Seconds())
}
