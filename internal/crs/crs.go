// Package crs reprojects coordinates between the EPSG systems the
// hydrography service accepts.
package crs

import (
	"fmt"
	"math"

	"github.com/openhydro/nhdquery/internal/model"
)

const earthRadius = 6378137.0 // WGS84 semi-major axis, meters

// Transform reprojects a single coordinate pair from one EPSG code to
// another. EPSG:4326 and EPSG:4269 are axis-compatible geographic systems
// whose datum shift is below the service's precision; they map 1:1.
func Transform(x, y float64, from, to int) (float64, float64, error) {
	if from == to {
		return x, y, nil
	}

	lon, lat := x, y
	switch from {
	case model.CRSWGS84, model.CRSNAD83:
	case model.CRSWebMercator:
		lon = x / earthRadius * 180 / math.Pi
		lat = (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	default:
		return 0, 0, fmt.Errorf("unsupported source CRS EPSG:%d", from)
	}

	switch to {
	case model.CRSWGS84, model.CRSNAD83:
		return lon, lat, nil
	case model.CRSWebMercator:
		if lat <= -90 || lat >= 90 {
			return 0, 0, fmt.Errorf("latitude %v out of range for EPSG:3857", lat)
		}
		mx := lon * math.Pi / 180 * earthRadius
		my := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
		return mx, my, nil
	default:
		return 0, 0, fmt.Errorf("unsupported target CRS EPSG:%d", to)
	}
}

// Point reprojects p to the target EPSG code.
func Point(p model.Point, to int) (model.Point, error) {
	lon, lat, err := Transform(p.Lon, p.Lat, p.CRS, to)
	if err != nil {
		return model.Point{}, fmt.Errorf("reproject point: %w", err)
	}
	return model.Point{Lon: lon, Lat: lat, CRS: to}, nil
}

// Envelope reprojects a region to the target EPSG code and returns its
// bounding envelope. Bounds are computed from the reprojected corners,
// never from the raw input coordinates.
func Envelope(b model.Box, to int) (model.BBox, error) {
	west, south, err := Transform(b.MinX, b.MinY, b.CRS, to)
	if err != nil {
		return model.BBox{}, fmt.Errorf("reproject region: %w", err)
	}
	east, north, err := Transform(b.MaxX, b.MaxY, b.CRS, to)
	if err != nil {
		return model.BBox{}, fmt.Errorf("reproject region: %w", err)
	}
	if south > north {
		south, north = north, south
	}
	if west > east {
		west, east = east, west
	}
	return model.BBox{South: south, West: west, North: north, East: east}, nil
}
