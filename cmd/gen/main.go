package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kass/echo-trails/pkg/geo"
	"github.com/kass/echo-trails/pkg/models"
	"github.com/kass/echo-trails/pkg/store"
)

func main() {
	var (
		numDrops   = flag.Int("n", 10000, "Number of drops to generate")
		outputFile = flag.String("o", "data/drops.gob", "Output snapshot path")
		workers    = flag.Int("w", runtime.NumCPU(), "Number of worker goroutines")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		// Drops are scattered around this point (default: Bangalore)
		centerLat = flag.Float64("lat", 12.9716, "Center latitude")
		centerLon = flag.Float64("lon", 77.5946, "Center longitude")
		spread    = flag.Float64("spread", 20000, "Maximum distance from the center in meters")
		badRatio  = flag.Float64("bad", 0.02, "Fraction of malformed or incomplete records")
	)
	flag.Parse()

	center := models.GeoPoint{Lat: *centerLat, Lon: *centerLon}
	if err := geo.Validate(center); err != nil {
		log.Fatalf("Invalid center: %v", err)
	}
	if *workers < 1 {
		*workers = 1
	}

	log.WithFields(log.Fields{
		"drops":   *numDrops,
		"workers": *workers,
		"center":  fmt.Sprintf("%.4f,%.4f", center.Lat, center.Lon),
		"spread":  *spread,
	}).Info("Generating drops")

	start := time.Now()
	drops := generateDrops(*numDrops, center, *spread, *badRatio, *workers, *seed, time.Now().UTC())
	log.WithField("duration", time.Since(start)).Info("Drops generated")

	snap := store.Snapshot{
		FetchedAt: time.Now().UTC(),
		Source:    "synthetic",
		Drops:     drops,
	}
	if err := store.Save(*outputFile, snap); err != nil {
		log.Fatalf("Failed to save snapshot: %v", err)
	}

	fileInfo, err := os.Stat(*outputFile)
	if err == nil {
		log.WithFields(log.Fields{
			"file":    *outputFile,
			"size_mb": fmt.Sprintf("%.2f", float64(fileInfo.Size())/(1024*1024)),
		}).Info("Snapshot saved")
	}
}

func generateDrops(n int, center models.GeoPoint, spread, badRatio float64, workers int, seed int64, now time.Time) []models.RawDrop {
	drops := make([]models.RawDrop, n)

	perWorker := n / workers
	remainder := n % workers

	var wg sync.WaitGroup
	start := 0
	for w := 0; w < workers; w++ {
		size := perWorker
		if w < remainder {
			size++
		}

		wg.Add(1)
		go func(from, to int, r *rand.Rand) {
			defer wg.Done()
			for i := from; i < to; i++ {
				drops[i] = randomDrop(r, i, center, spread, badRatio, now)
			}
		}(start, start+size, rand.New(rand.NewSource(seed+int64(w))))

		start += size
	}
	wg.Wait()

	return drops
}

func randomDrop(r *rand.Rand, i int, center models.GeoPoint, spread, badRatio float64, now time.Time) models.RawDrop {
	// Uniform over the disc around center
	dist := spread * math.Sqrt(r.Float64())
	bearing := r.Float64() * 2 * math.Pi
	p := offset(center, dist, bearing)

	rng := 20 + r.Float64()*480
	hiddenUntil := now.Add(time.Duration(r.Int63n(int64(14*24*time.Hour))) - 7*24*time.Hour)

	drop := models.RawDrop{
		ID:          fmt.Sprintf("drop_%d", i),
		Title:       fmt.Sprintf("Drop %d", i),
		FileName:    fmt.Sprintf("drop_%d.mp3", i),
		Location:    &models.RawLocation{Type: "Point", Coordinates: models.Coordinates(p.Lon, p.Lat)},
		Range:       &rng,
		HiddenUntil: hiddenUntil.Format(time.RFC3339Nano),
		CreatedAt:   hiddenUntil.Add(-24 * time.Hour).Format(time.RFC3339Nano),
	}

	if r.Float64() < badRatio {
		switch r.Intn(3) {
		case 0:
			drop.Location.Coordinates = drop.Location.Coordinates[:1]
		case 1:
			drop.Location.Coordinates[0] = json.RawMessage(`"77.5"`)
		default:
			drop.Range = nil
		}
	}
	return drop
}

// offset moves p by dist meters along bearing (radians from north)
func offset(p models.GeoPoint, dist, bearing float64) models.GeoPoint {
	lat1 := p.Lat * math.Pi / 180
	lon1 := p.Lon * math.Pi / 180
	d := dist / geo.EarthRadiusMeters

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(bearing))
	lon2 := lon1 + math.Atan2(math.Sin(bearing)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	lon := math.Mod(lon2*180/math.Pi+540, 360) - 180
	return models.GeoPoint{Lat: lat2 * 180 / math.Pi, Lon: lon}
}
