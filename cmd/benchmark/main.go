package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	idsFile     string
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Applied
	fail409       uint64 // Duplicates
	fail422       uint64 // Insufficient balance
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.StringVar(&idsFile, "ids", "representatives.txt", "File with seeded representative IDs, one per line")
}

func main() {
	flag.Parse()

	ids, err := loadIDs(idsFile)
	if err != nil {
		log.Fatalf("Unable to load representative IDs: %v", err)
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s | Targets: %d", workload, concurrency, duration, len(ids))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, ids)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func loadIDs(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			ids = append(ids, line)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no IDs in %s", path)
	}
	return ids, nil
}

func worker(wg *sync.WaitGroup, start time.Time, ids []string) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		id := pickTarget(ids)

		// Alternate deposits and withdrawals so balances hover around the
		// seeded amount and 422s stay realistic instead of dominating.
		op := "deposits"
		if rand.Float32() < 0.5 {
			op = "withdrawals"
		}

		payload := map[string]interface{}{
			"amount":         1.00,
			"payment_method": "cash",
			"reference":      fmt.Sprintf("bench-%d", time.Now().UnixNano()),
		}
		body, _ := json.Marshal(payload)

		url := fmt.Sprintf("%s/api/v1/representatives/%s/%s", targetURL, id, op)
		req, _ := http.NewRequest("POST", url, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 409:
			atomic.AddUint64(&fail409, 1)
		case 422:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickTarget(ids []string) string {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic hits the first two representatives,
		// stressing the row lock serialization.
		if rand.Float32() < 0.90 {
			return ids[rand.Intn(2)]
		}
	}
	return ids[rand.Intn(len(ids))]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()

	results := map[string]interface{}{
		"workload":             workload,
		"duration_sec":         d.Seconds(),
		"total_requests":       total,
		"throughput_tps":       tps,
		"applied":              s201,
		"duplicates":           f409,
		"insufficient_balance": f422,
		"errors":               fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
