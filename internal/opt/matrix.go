package opt

import (
	"fmt"
	"math"

	"routeplan/internal/model"
)

// Matrix is a dense square cost matrix indexed by node.
type Matrix [][]int64

// Metric selects how distances between positions are measured.
type Metric string

const (
	// Euclidean is planar distance over raw degrees multiplied by Scale.
	Euclidean Metric = "euclidean"
	// Haversine is great-circle distance in metres.
	Haversine Metric = "haversine"
)

// DefaultScale turns degree differences into integer costs with useful
// resolution (about one unit per metre near the equator).
const DefaultScale = 100000

type MatrixOptions struct {
	Metric Metric
	Scale  float64 // Euclidean only; 0 means DefaultScale
}

// BuildMatrix computes a symmetric, zero-diagonal integer cost matrix over
// points. points[0] is the depot.
func BuildMatrix(points []model.Position, o MatrixOptions) (Matrix, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("build matrix: need at least 2 points, got %d", len(points))
	}
	for i, p := range points {
		if !finite(p.Lat) || !finite(p.Lon) {
			return nil, fmt.Errorf("build matrix: point %d has non-finite coordinates", i)
		}
	}
	var dist func(a, b model.Position) float64
	switch o.Metric {
	case Euclidean, "":
		scale := o.Scale
		if scale == 0 {
			scale = DefaultScale
		}
		if scale < 0 {
			return nil, fmt.Errorf("build matrix: negative scale %v", scale)
		}
		dist = func(a, b model.Position) float64 {
			return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon) * scale
		}
	case Haversine:
		dist = func(a, b model.Position) float64 {
			return haversine(a.Lat, a.Lon, b.Lat, b.Lon)
		}
	default:
		return nil, fmt.Errorf("build matrix: unknown metric %q", o.Metric)
	}
	n := len(points)
	flat := make([]int64, n*n)
	m := make(Matrix, n)
	for i := range m {
		m[i] = flat[i*n : (i+1)*n]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := int64(math.Round(dist(points[i], points[j])))
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// Centroid is the arithmetic mean of positions.
func Centroid(ps []model.Position) model.Position {
	if len(ps) == 0 {
		return model.Position{}
	}
	var lat, lon float64
	for _, p := range ps {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(ps))
	return model.Position{Lat: lat / n, Lon: lon / n}
}
