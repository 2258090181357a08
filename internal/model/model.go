// Package model defines core domain types shared across the client.
package model

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// EPSG codes the client deals in.
const (
	CRSWGS84       = 4326 // service CRS for filter bodies
	CRSNAD83       = 4269 // service CRS for the point-lookup GET path
	CRSWebMercator = 3857
)

// Point is a single location tagged with the EPSG code of its coordinates.
type Point struct {
	Lon, Lat float64
	CRS      int
}

// Box is a rectangular region in the coordinates of its own CRS.
// MinX/MinY is the south-west corner, MaxX/MaxY the north-east corner.
type Box struct {
	MinX, MinY float64
	MaxX, MaxY float64
	CRS        int
}

// BBox holds envelope bounds after reprojection to the service CRS.
type BBox struct {
	South, West float64
	North, East float64
}

// Layer selects which NHDPlus feature type a query targets.
type Layer string

const (
	LayerCatchment Layer = "catchmentsp"
	LayerFlowline  Layer = "nhdflowline_network"
	LayerWaterbody Layer = "nhdwaterbody"
	LayerArea      Layer = "nhdarea"
)

// TypeName is the qualified WFS feature type for the layer.
func (l Layer) TypeName() string {
	return "nhdplus:" + string(l)
}

var idAttributes = map[Layer]string{
	LayerCatchment: "featureid",
	LayerFlowline:  "comid",
}

var boxLayers = map[Layer]struct{}{
	LayerArea:      {},
	LayerWaterbody: {},
	LayerCatchment: {},
	LayerFlowline:  {},
}

// IDAttribute returns the attribute name ID filters compare against,
// or an error naming the accepted layers if l cannot be queried by ID.
func (l Layer) IDAttribute() (string, error) {
	attr, ok := idAttributes[l]
	if !ok {
		return "", fmt.Errorf("layer %q is not queryable by ID; valid layers: %s",
			l, layerList(LayerCatchment, LayerFlowline))
	}
	return attr, nil
}

// ValidateForBox reports whether l accepts bounding-box queries,
// erroring with the accepted set if not.
func (l Layer) ValidateForBox() error {
	if _, ok := boxLayers[l]; !ok {
		return fmt.Errorf("layer %q is not queryable by bounding box; valid layers: %s",
			l, layerList(LayerArea, LayerWaterbody, LayerCatchment, LayerFlowline))
	}
	return nil
}

func layerList(ls ...Layer) string {
	names := make([]string, len(ls))
	for i, l := range ls {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

// FeatureRef identifies a feature in an upstream source system,
// e.g. {Source: "nwissite", ID: "USGS-08279500"}.
type FeatureRef struct {
	Source string
	ID     string
	Tier   string // resolution environment; defaulted to "prod" when empty
}

// Feature is a single decoded service feature.
type Feature struct {
	Geometry   orb.Geometry
	Properties geojson.Properties
}

// QueryResult is the decoded outcome of one service round trip. A nil or
// empty Features slice is a valid empty result; failure detail goes to the
// log, never into the result.
type QueryResult struct {
	Features []Feature
}

// Empty reports whether the result carries no features.
func (r QueryResult) Empty() bool { return len(r.Features) == 0 }

type locatorKind int

const (
	locatorNone locatorKind = iota
	locatorPoint
	locatorRef
)

// Locator is the input to identifier resolution: either a point location or
// an upstream feature reference, never both. The zero Locator is invalid and
// rejected before any network activity.
type Locator struct {
	kind  locatorKind
	point Point
	ref   FeatureRef
}

// AtPoint builds a Locator resolving via spatial lookup.
func AtPoint(p Point) Locator {
	return Locator{kind: locatorPoint, point: p}
}

// ByReference builds a Locator resolving via the upstream registry.
func ByReference(ref FeatureRef) Locator {
	return Locator{kind: locatorRef, ref: ref}
}

// Point returns the point variant, if set.
func (l Locator) Point() (Point, bool) {
	return l.point, l.kind == locatorPoint
}

// Reference returns the reference variant, if set.
func (l Locator) Reference() (FeatureRef, bool) {
	return l.ref, l.kind == locatorRef
}
