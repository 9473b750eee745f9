package geo

import (
	"context"
	"errors"
	"math"
	"time"
)

const earthRadiusMeters = 6371000

var (
	// ErrPermissionDenied means the device refused to share its position.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrLocationUnavailable covers missing fixes, bad coordinates and timeouts.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether the point lies inside the coordinate ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Locator acquires the caller's current position.
type Locator interface {
	Locate(ctx context.Context) (Point, error)
}

// Result is the outcome of a proximity check. Distance is nil when the gate
// is disabled.
type Result struct {
	WithinRadius bool     `json:"within_radius"`
	Distance     *float64 `json:"distance"`
}

// Gate decides whether a position is close enough to the reference point.
type Gate struct {
	Enabled      bool
	Reference    Point
	RadiusMeters float64
	Timeout      time.Duration
}

// Check acquires one fix from loc and compares it with the reference point.
// Acquisition errors other than a permission refusal become ErrLocationUnavailable.
func (g Gate) Check(ctx context.Context, loc Locator) (Result, error) {
	if !g.Enabled {
		return Result{WithinRadius: true}, nil
	}
	if loc == nil {
		return Result{}, ErrLocationUnavailable
	}
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	p, err := loc.Locate(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return Result{}, ErrPermissionDenied
		}
		return Result{}, ErrLocationUnavailable
	}
	if !p.Valid() {
		return Result{}, ErrLocationUnavailable
	}

	d := Distance(p, g.Reference)
	return Result{WithinRadius: d <= g.RadiusMeters, Distance: &d}, nil
}
