// Benchmark tool for replaying marketplace price events against Shrike.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/events.csv -url http://localhost:8080
//
// This tool:
//   1. Reads a CSV of price-change observations (one row per event)
//   2. Seeds a listing snapshot for each distinct SKU
//   3. Replays the events against Shrike with concurrent workers
//   4. Reports outcome distribution, latency, and throughput
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PriceObservation represents a row from the replay dataset.
type PriceObservation struct {
	SKU             string
	ASIN            string
	Market          string
	ListedPrice     string
	MinPrice        string
	MaxPrice        string
	CompetitorPrice string
	OfferCount      int
	IsBuyBoxWinner  bool
}

// EventRequest is the Shrike wire format for POST /events.
type EventRequest struct {
	SellerID        string `json:"seller_id"`
	SKU             string `json:"sku"`
	ASIN            string `json:"asin,omitempty"`
	Market          string `json:"market,omitempty"`
	CompetitorPrice string `json:"competitor_price,omitempty"`
	OfferCount      int    `json:"offer_count"`
	IsBuyBoxWinner  bool   `json:"is_buybox_winner"`
}

// OutcomeResponse is the Shrike API response format.
type OutcomeResponse struct {
	EventID      string `json:"eventId"`
	Kind         string `json:"kind"` // repriced, skipped, violation, error
	PriceChanged bool   `json:"priceChanged"`
	NewPrice     string `json:"newPrice,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Metrics tracks replay results.
type Metrics struct {
	Repriced      int64
	Skipped       int64
	Violations    int64
	Failures      int64
	PricesChanged int64

	TotalProcessed int64
	TotalErrors    int64 // transport-level failures

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to price events CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Shrike base URL")
	sellerID := flag.String("seller", "benchmark-test", "Seller ID for requests")
	limit := flag.Int("limit", 10000, "Maximum events to replay (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	strategyID := flag.String("strategy", "", "Strategy ID to attach to seeded listings")
	verbose := flag.Bool("verbose", false, "Print each event result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/events.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           SHRIKE BENCHMARK - Price Event Replay               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Shrike URL:  %s\n", *baseURL)
	fmt.Printf("Seller ID:   %s\n", *sellerID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Shrike is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Shrike not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Shrike is running:")
		fmt.Println("  cd shrike && go run cmd/shrike/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Shrike is healthy")

	// Read replay data
	fmt.Printf("\nReading price events from %s...\n", *csvPath)
	observations, err := readEventsCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d events\n", len(observations))

	// Seed one listing per distinct SKU before replaying
	client := &http.Client{Timeout: 10 * time.Second}
	seeded, err := seedListings(client, *baseURL, *sellerID, *strategyID, observations)
	if err != nil {
		fmt.Printf("ERROR: Failed to seed listings: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Seeded %d listings\n", seeded)

	// Run replay
	fmt.Printf("\nReplaying with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runReplay(observations, *baseURL, *sellerID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Expected CSV columns: sku, asin, market, listed_price, min_price,
// max_price, competitor_price, offer_count, is_buybox_winner.
func readEventsCSV(path string, limit int) ([]PriceObservation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := colIndex["sku"]; !ok {
		return nil, fmt.Errorf("missing required column: sku")
	}

	col := func(record []string, name string) string {
		i, ok := colIndex[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var observations []PriceObservation

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		offerCount, _ := strconv.Atoi(col(record, "offer_count"))

		obs := PriceObservation{
			SKU:             col(record, "sku"),
			ASIN:            col(record, "asin"),
			Market:          col(record, "market"),
			ListedPrice:     col(record, "listed_price"),
			MinPrice:        col(record, "min_price"),
			MaxPrice:        col(record, "max_price"),
			CompetitorPrice: col(record, "competitor_price"),
			OfferCount:      offerCount,
			IsBuyBoxWinner:  col(record, "is_buybox_winner") == "1",
		}
		if obs.SKU == "" {
			continue
		}

		observations = append(observations, obs)

		if limit > 0 && len(observations) >= limit {
			break
		}
	}

	return observations, nil
}

// seedListings upserts one listing per distinct SKU using the first
// observation seen for it.
func seedListings(client *http.Client, baseURL, sellerID, strategyID string, observations []PriceObservation) (int, error) {
	seen := make(map[string]bool)
	count := 0

	for _, obs := range observations {
		if seen[obs.SKU] {
			continue
		}
		seen[obs.SKU] = true

		listing := map[string]any{
			"asin":        obs.ASIN,
			"market":      obs.Market,
			"listedPrice": obs.ListedPrice,
		}
		if obs.MinPrice != "" {
			listing["minPrice"] = obs.MinPrice
		}
		if obs.MaxPrice != "" {
			listing["maxPrice"] = obs.MaxPrice
		}
		if strategyID != "" {
			listing["strategyId"] = strategyID
		}

		body, err := json.Marshal(listing)
		if err != nil {
			return count, err
		}

		req, err := http.NewRequest(http.MethodPut, baseURL+"/listings/"+obs.SKU, bytes.NewReader(body))
		if err != nil {
			return count, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Seller-ID", sellerID)

		resp, err := client.Do(req)
		if err != nil {
			return count, err
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return count, fmt.Errorf("seeding %s: status %d", obs.SKU, resp.StatusCode)
		}
		count++
	}

	return count, nil
}

func runReplay(observations []PriceObservation, baseURL, sellerID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan PriceObservation, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for obs := range work {
				start := time.Now()
				result, err := sendEvent(client, baseURL, sellerID, obs)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", obs.SKU, err)
					}
					continue
				}

				switch result.Kind {
				case "repriced":
					atomic.AddInt64(&metrics.Repriced, 1)
				case "skipped":
					atomic.AddInt64(&metrics.Skipped, 1)
				case "violation":
					atomic.AddInt64(&metrics.Violations, 1)
				default:
					atomic.AddInt64(&metrics.Failures, 1)
				}
				if result.PriceChanged {
					atomic.AddInt64(&metrics.PricesChanged, 1)
				}

				if verbose {
					fmt.Printf("%-14s | Competitor: %-10s | Offers: %3d | Outcome: %-9s | New: %-10s | %s\n",
						obs.SKU,
						obs.CompetitorPrice,
						obs.OfferCount,
						result.Kind,
						result.NewPrice,
						result.Reason,
					)
				}
			}
		}()
	}

	// Send work
	for _, obs := range observations {
		work <- obs
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func sendEvent(client *http.Client, baseURL, sellerID string, obs PriceObservation) (*OutcomeResponse, error) {
	req := EventRequest{
		SellerID:        sellerID,
		SKU:             obs.SKU,
		ASIN:            obs.ASIN,
		Market:          obs.Market,
		CompetitorPrice: obs.CompetitorPrice,
		OfferCount:      obs.OfferCount,
		IsBuyBoxWinner:  obs.IsBuyBoxWinner,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Seller-ID", sellerID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result OutcomeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       REPLAY RESULTS                          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 OUTCOME DISTRIBUTION\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Repriced:         %d\n", m.Repriced)
	fmt.Printf("   Skipped:          %d\n", m.Skipped)
	fmt.Printf("   Violations:       %d\n", m.Violations)
	fmt.Printf("   Failures:         %d\n", m.Failures)
	fmt.Printf("   Prices Changed:   %d\n", m.PricesChanged)
	fmt.Printf("   Transport Errors: %d\n", m.TotalErrors)

	processed := m.Repriced + m.Skipped + m.Violations + m.Failures
	if processed > 0 {
		fmt.Printf("\n🎯 RATES\n")
		fmt.Printf("   Reprice Rate:    %.2f%%\n", 100*float64(m.Repriced)/float64(processed))
		fmt.Printf("   Skip Rate:       %.2f%%\n", 100*float64(m.Skipped)/float64(processed))
		fmt.Printf("   Violation Rate:  %.2f%%\n", 100*float64(m.Violations)/float64(processed))
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		eps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f events/sec\n", eps)
	}

	fmt.Println()
}
