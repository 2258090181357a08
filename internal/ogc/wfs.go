// Package ogc builds WFS GetFeature requests for the NHDPlus GeoServer
// endpoint: identifier filters and BBOX filters as 1.1.0 POST bodies, and
// the degenerate-bbox point lookup as 1.0.0 GET params.
package ogc

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/openhydro/nhdquery/internal/model"
)

const (
	outputFormat = "application/json"
	srsName      = "EPSG:4326"

	wfsNS = "http://www.opengis.net/wfs"
	ogcNS = "http://www.opengis.net/ogc"
	gmlNS = "http://www.opengis.net/gml"

	// PointEpsilon widens a point into the minimal envelope the service
	// will intersect against.
	PointEpsilon = 1e-5
)

func Endpoint(base string) string {
	return strings.TrimRight(base, "/") + "/nwc/geoserver/nhdplus/ows"
}

type getFeature struct {
	XMLName      xml.Name `xml:"wfs:GetFeature"`
	Service      string   `xml:"service,attr"`
	Version      string   `xml:"version,attr"`
	OutputFormat string   `xml:"outputFormat,attr"`
	XMLNSWfs     string   `xml:"xmlns:wfs,attr"`
	XMLNSOgc     string   `xml:"xmlns:ogc,attr"`
	XMLNSGml     string   `xml:"xmlns:gml,attr,omitempty"`
	Query        wfsQuery `xml:"wfs:Query"`
}

type wfsQuery struct {
	TypeName string    `xml:"typeName,attr"`
	SrsName  string    `xml:"srsName,attr"`
	Filter   ogcFilter `xml:"ogc:Filter"`
}

type ogcFilter struct {
	Or   *orClause   `xml:"ogc:Or,omitempty"`
	BBox *bboxClause `xml:"ogc:BBOX,omitempty"`
}

type orClause struct {
	Predicates []equalTo `xml:"ogc:PropertyIsEqualTo"`
}

type equalTo struct {
	PropertyName string `xml:"ogc:PropertyName"`
	Literal      string `xml:"ogc:Literal"`
}

type bboxClause struct {
	PropertyName string      `xml:"ogc:PropertyName"`
	Envelope     gmlEnvelope `xml:"gml:Envelope"`
}

type gmlEnvelope struct {
	SrsName     string `xml:"srsName,attr"`
	LowerCorner string `xml:"gml:lowerCorner"`
	UpperCorner string `xml:"gml:upperCorner"`
}

// BuildIDFilterBody serializes a WFS 1.1.0 GetFeature body matching every
// identifier in ids against the layer's ID attribute, as a single Or of
// equality predicates. A one-element set still yields a (degenerate) Or.
// The layer must be ID-queryable and ids non-empty; both are checked before
// anything is serialized.
func BuildIDFilterBody(layer model.Layer, ids []string) ([]byte, error) {
	attr, err := layer.IDAttribute()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no identifiers given for layer %q", layer)
	}

	preds := make([]equalTo, len(ids))
	for i, id := range ids {
		preds[i] = equalTo{PropertyName: attr, Literal: id}
	}

	doc := getFeature{
		Service:      "WFS",
		Version:      "1.1.0",
		OutputFormat: outputFormat,
		XMLNSWfs:     wfsNS,
		XMLNSOgc:     ogcNS,
		Query: wfsQuery{
			TypeName: layer.TypeName(),
			SrsName:  srsName,
			Filter:   ogcFilter{Or: &orClause{Predicates: preds}},
		},
	}
	return marshalBody(doc)
}

// BuildBoxFilterBody serializes a WFS 1.1.0 GetFeature body with a BBOX
// predicate on the_geom. The envelope corners are space-separated "lat lon"
// pairs: lowerCorner "south west", upperCorner "north east". bbox must
// already be in EPSG:4326.
func BuildBoxFilterBody(layer model.Layer, bbox model.BBox) ([]byte, error) {
	if err := layer.ValidateForBox(); err != nil {
		return nil, err
	}

	doc := getFeature{
		Service:      "WFS",
		Version:      "1.1.0",
		OutputFormat: outputFormat,
		XMLNSWfs:     wfsNS,
		XMLNSOgc:     ogcNS,
		XMLNSGml:     gmlNS,
		Query: wfsQuery{
			TypeName: layer.TypeName(),
			SrsName:  srsName,
			Filter: ogcFilter{BBox: &bboxClause{
				PropertyName: "the_geom",
				Envelope: gmlEnvelope{
					SrsName:     srsName,
					LowerCorner: corner(bbox.South, bbox.West),
					UpperCorner: corner(bbox.North, bbox.East),
				},
			}},
		},
	}
	return marshalBody(doc)
}

// BuildPointLookupParams builds WFS 1.0.0 GET params for a single-point
// catchment lookup: the point widened by eps in both axes. The 1.0.0 bbox is
// comma-separated lon,lat order, unlike the 1.1.0 envelope. p must already
// be in EPSG:4269.
func BuildPointLookupParams(p model.Point, eps float64) url.Values {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "1.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeName", model.LayerCatchment.TypeName())
	params.Set("outputFormat", outputFormat)
	params.Set("srsName", "EPSG:4269")
	params.Set("bbox", fmt.Sprintf("%s,%s,%s,%s",
		coord(p.Lon), coord(p.Lat), coord(p.Lon+eps), coord(p.Lat+eps)))
	return params
}

func corner(lat, lon float64) string {
	return coord(lat) + " " + coord(lon)
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func marshalBody(doc getFeature) ([]byte, error) {
	b, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal filter body: %w", err)
	}
	return append([]byte(xml.Header), b...), nil
}
