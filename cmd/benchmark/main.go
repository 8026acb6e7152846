package main

import (
	"flag"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kass/echo-trails/pkg/geo"
	"github.com/kass/echo-trails/pkg/models"
	"github.com/kass/echo-trails/pkg/store"
	"github.com/kass/echo-trails/pkg/unlock"
)

type BenchmarkResult struct {
	QueryType     string
	TotalQueries  int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	P99Duration   time.Duration
	QueriesPerSec float64
	MinDuration   time.Duration
	MaxDuration   time.Duration
	TotalResults  int64
	AvgResults    float64
}

// query runs one randomized operation and returns its result count
type query func(r *rand.Rand) int

func main() {
	var (
		snapshotFile = flag.String("i", "data/drops.gob", "Snapshot file path")
		queryType    = flag.String("t", "filter", "Query type: filter, radius, nearest, mixed")
		numQueries   = flag.Int("n", 1000, "Number of queries to run")
		workers      = flag.Int("w", runtime.NumCPU(), "Number of concurrent workers")
		centerLat    = flag.Float64("lat", 12.9716, "Latitude queries are scattered around")
		centerLon    = flag.Float64("lon", 77.5946, "Longitude queries are scattered around")
		jitter       = flag.Float64("jitter", 0.2, "Maximum query offset from the center in degrees")
		radius       = flag.Float64("radius", 500, "Radius in meters (for radius queries)")
		k            = flag.Int("k", 10, "Number of nearest drops")
	)
	flag.Parse()

	log.WithField("file", *snapshotFile).Info("Loading snapshot")
	snap, err := store.Load(*snapshotFile)
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}

	evals, report := unlock.Annotate(models.GeoPoint{}, time.Now(), snap.Drops)
	drops := make([]models.AudioDrop, len(evals))
	for i, ev := range evals {
		drops[i] = ev.Drop
	}

	start := time.Now()
	index := geo.NewDropIndex()
	index.IndexDrops(drops)
	log.WithFields(log.Fields{
		"records":  report.Total,
		"indexed":  index.Count(),
		"skipped":  report.Malformed + report.Incomplete,
		"duration": time.Since(start),
	}).Info("Index built")

	center := models.GeoPoint{Lat: *centerLat, Lon: *centerLon}
	j := *jitter
	randomPoint := func(r *rand.Rand) models.GeoPoint {
		return models.GeoPoint{
			Lat: center.Lat + (r.Float64()*2-1)*j,
			Lon: center.Lon + (r.Float64()*2-1)*j,
		}
	}

	queries := map[string]query{
		"filter": func(r *rand.Rand) int {
			unlocked, _ := unlock.Filter(randomPoint(r), time.Now(), snap.Drops)
			return len(unlocked)
		},
		"radius": func(r *rand.Rand) int {
			matches, err := index.QueryRadius(randomPoint(r), *radius)
			if err != nil {
				return 0
			}
			return len(matches)
		},
		"nearest": func(r *rand.Rand) int {
			return len(index.Nearest(randomPoint(r), *k))
		},
	}
	queries["mixed"] = func(r *rand.Rand) int {
		switch r.Intn(3) {
		case 0:
			return queries["filter"](r)
		case 1:
			return queries["radius"](r)
		default:
			return queries["nearest"](r)
		}
	}

	q, ok := queries[*queryType]
	if !ok {
		log.Fatalf("Unknown query type: %s", *queryType)
	}

	log.Infof("Running %d %s queries with %d workers", *numQueries, *queryType, *workers)
	result := runBenchmark(*queryType, q, *numQueries, *workers)

	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Query Type: %s\n", result.QueryType)
	fmt.Printf("Total Queries: %d\n", result.TotalQueries)
	fmt.Printf("Total Duration: %v\n", result.TotalDuration)
	fmt.Printf("Average Duration: %v\n", result.AvgDuration)
	fmt.Printf("P99 Duration: %v\n", result.P99Duration)
	fmt.Printf("Queries/Second: %.2f\n", result.QueriesPerSec)
	fmt.Printf("Min Duration: %v\n", result.MinDuration)
	fmt.Printf("Max Duration: %v\n", result.MaxDuration)
	fmt.Printf("Total Results: %d\n", result.TotalResults)
	fmt.Printf("Avg Results/Query: %.2f\n", result.AvgResults)
	fmt.Printf("Workers Used: %d\n", *workers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
}

func runBenchmark(name string, q query, numQueries, workers int) BenchmarkResult {
	if workers < 1 {
		workers = 1
	}

	var (
		totalResults atomic.Int64
		durations    = make([]time.Duration, 0, numQueries)
		mu           sync.Mutex
	)

	startTime := time.Now()

	queryCh := make(chan int, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))

			for range queryCh {
				queryStart := time.Now()
				n := q(r)
				queryDuration := time.Since(queryStart)

				totalResults.Add(int64(n))
				mu.Lock()
				durations = append(durations, queryDuration)
				mu.Unlock()
			}
		}(startTime.UnixNano() + int64(w))
	}

	for i := 0; i < numQueries; i++ {
		queryCh <- i
	}
	close(queryCh)
	wg.Wait()

	result := BenchmarkResult{
		QueryType:     name,
		TotalQueries:  len(durations),
		TotalDuration: time.Since(startTime),
		TotalResults:  totalResults.Load(),
	}
	if len(durations) == 0 {
		return result
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	result.AvgDuration = sum / time.Duration(len(durations))
	result.MinDuration = durations[0]
	result.MaxDuration = durations[len(durations)-1]
	result.P99Duration = durations[len(durations)*99/100]
	result.QueriesPerSec = float64(len(durations)) / result.TotalDuration.Seconds()
	result.AvgResults = float64(result.TotalResults) / float64(len(durations))
	return result
}
