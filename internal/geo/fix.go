package geo

import (
	"context"
	"strings"
)

// Permission values a client reports with its fix.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// Fix is a position reported by the client alongside its permission state.
// The server cannot verify it; the gate built on it is advisory.
type Fix struct {
	Permission string   `json:"permission"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
}

// Locate implements Locator.
func (f Fix) Locate(ctx context.Context) (Point, error) {
	if err := ctx.Err(); err != nil {
		return Point{}, ErrLocationUnavailable
	}
	if strings.EqualFold(strings.TrimSpace(f.Permission), PermissionDenied) {
		return Point{}, ErrPermissionDenied
	}
	if f.Latitude == nil || f.Longitude == nil {
		return Point{}, ErrLocationUnavailable
	}
	p := Point{Lat: *f.Latitude, Lng: *f.Longitude}
	if !p.Valid() {
		return Point{}, ErrLocationUnavailable
	}
	return p, nil
}
