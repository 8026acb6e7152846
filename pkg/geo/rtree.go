package geo

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dhconnelly/rtreego"
	"github.com/pkg/errors"

	"github.com/kass/echo-trails/pkg/models"
)

const (
	tolerance   = 1e-7
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// Match is a drop found by a proximity query together with its distance.
// Index is the drop's position in the slice given to IndexDrops.
type Match struct {
	Drop     models.AudioDrop
	Distance float64 // meters
	Index    int
}

// spatialDrop wraps a drop for R-Tree indexing
type spatialDrop struct {
	drop  models.AudioDrop
	index int
	rect  rtreego.Rect
}

func (sd *spatialDrop) Bounds() rtreego.Rect {
	return sd.rect
}

// DropIndex is a thread-safe R-Tree over drop locations
type DropIndex struct {
	tree      *rtreego.Rtree
	mu        sync.RWMutex
	itemCount atomic.Int64
}

// NewDropIndex creates an empty index
func NewDropIndex() *DropIndex {
	return &DropIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// IndexDrops adds drops to the index. Drops without a location are skipped.
func (d *DropIndex) IndexDrops(drops []models.AudioDrop) {
	if len(drops) == 0 {
		return
	}

	numCPU := runtime.NumCPU()
	items := make([]*spatialDrop, len(drops))
	var wg sync.WaitGroup

	batchSize := len(drops) / numCPU
	if batchSize < 1 {
		batchSize = 1
		numCPU = len(drops)
	}

	for i := 0; i < numCPU && i*batchSize < len(drops); i++ {
		start := i * batchSize
		end := start + batchSize
		if i == numCPU-1 || end > len(drops) {
			end = len(drops)
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for j := start; j < end; j++ {
				loc := drops[j].Location
				if loc == nil {
					continue
				}
				p := rtreego.Point{loc.Lat, loc.Lon}
				items[j] = &spatialDrop{drop: drops[j], index: j, rect: p.ToRect(tolerance)}
			}
		}(start, end)
	}

	wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	count := int64(0)
	for _, item := range items {
		if item != nil {
			d.tree.Insert(item)
			count++
		}
	}
	d.itemCount.Add(count)
}

// QueryRadius returns the drops within radiusMeters of center, nearest first
func (d *DropIndex) QueryRadius(center models.GeoPoint, radiusMeters float64) ([]Match, error) {
	if radiusMeters < 0 || math.IsNaN(radiusMeters) {
		return nil, errors.Errorf("invalid radius %f", radiusMeters)
	}

	bounds, err := searchBounds(center, radiusMeters)
	if err != nil {
		return nil, errors.Wrap(err, "invalid radius search")
	}

	d.mu.RLock()
	results := d.tree.SearchIntersect(bounds)
	d.mu.RUnlock()

	// Filter by actual distance
	matches := make([]Match, 0, len(results))
	for _, result := range results {
		item, ok := result.(*spatialDrop)
		if !ok {
			continue
		}
		dist := Distance(center, *item.drop.Location)
		if dist <= radiusMeters {
			matches = append(matches, Match{Drop: item.drop, Distance: dist, Index: item.index})
		}
	}

	sortMatches(matches)
	return matches, nil
}

// Nearest returns up to n drops closest to center by great-circle distance.
// The planar neighbours from the tree only bound the search: the farthest of
// them sets a radius that is guaranteed to hold the n nearest drops.
func (d *DropIndex) Nearest(center models.GeoPoint, n int) []Match {
	if n <= 0 {
		return nil
	}

	d.mu.RLock()
	results := d.tree.NearestNeighbors(n, rtreego.Point{center.Lat, center.Lon})
	d.mu.RUnlock()

	radius := -1.0
	for _, result := range results {
		item, ok := result.(*spatialDrop)
		if !ok || item == nil {
			continue
		}
		radius = math.Max(radius, Distance(center, *item.drop.Location))
	}
	if radius < 0 || math.IsNaN(radius) {
		return nil
	}

	matches, err := d.QueryRadius(center, radius)
	if err != nil {
		return nil
	}
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches
}

// Count returns the number of indexed drops
func (d *DropIndex) Count() int64 {
	return d.itemCount.Load()
}

// Clear removes all drops from the index
func (d *DropIndex) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tree = rtreego.NewTree(dimensions, minChildren, maxChildren)
	d.itemCount.Store(0)
}

// searchBounds builds the lat/lon box enclosing the spherical cap around
// center. Caps that reach a pole or cross the antimeridian get the full
// longitude range; the exact distance check discards the extra candidates.
func searchBounds(center models.GeoPoint, radiusMeters float64) (rtreego.Rect, error) {
	angular := radiusMeters / EarthRadiusMeters
	latDeg := metersToDegrees(radiusMeters)

	minLat := center.Lat - latDeg
	maxLat := center.Lat + latDeg

	minLon, maxLon := -180.0, 180.0
	if minLat > -90 && maxLat < 90 && angular < math.Pi/2 {
		// Widest longitude offset of the cap is asin(sin r / cos lat)
		if ratio := math.Sin(angular) / math.Cos(toRadians(center.Lat)); ratio < 1 {
			lonDeg := math.Asin(ratio) * 180 / math.Pi
			if center.Lon-lonDeg >= -180 && center.Lon+lonDeg <= 180 {
				minLon = center.Lon - lonDeg
				maxLon = center.Lon + lonDeg
			}
		}
	}

	minLat = math.Max(minLat, -90)
	maxLat = math.Min(maxLat, 90)

	return rtreego.NewRect(
		rtreego.Point{minLat - tolerance, minLon - tolerance},
		[]float64{maxLat - minLat + 2*tolerance, maxLon - minLon + 2*tolerance},
	)
}

func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		if matches[i].Drop.ID != matches[j].Drop.ID {
			return matches[i].Drop.ID < matches[j].Drop.ID
		}
		return matches[i].Index < matches[j].Index
	})
}
