// Package waterdata queries the NHDPlus WFS layers: identifier batches and
// bounding boxes as filtered POSTs, single-point lookups as a degenerate
// bbox GET.
package waterdata

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/crs"
	"github.com/openhydro/nhdquery/internal/decode"
	"github.com/openhydro/nhdquery/internal/httpclient"
	"github.com/openhydro/nhdquery/internal/model"
	"github.com/openhydro/nhdquery/internal/ogc"
)

// Transport performs one upstream exchange. *httpclient.Client satisfies it;
// tests substitute recorders.
type Transport interface {
	Send(ctx context.Context, method, url string, body []byte, contentType string) (httpclient.Response, error)
}

type Client struct {
	transport Transport
	dec       *decode.Decoder
	endpoint  string
	log       zerolog.Logger
}

// New builds a query client against the ows endpoint derived from base,
// e.g. "https://cida.usgs.gov".
func New(base string, transport Transport, log zerolog.Logger) *Client {
	return &Client{
		transport: transport,
		dec:       decode.New(log),
		endpoint:  ogc.Endpoint(base),
		log:       log,
	}
}

// QueryByIDs fetches every feature of layer whose ID attribute matches one
// of ids, in a single POST. Layer and set validation happen before any
// network traffic; validation failure is the only error path, everything
// downstream degrades to an empty result.
func (c *Client) QueryByIDs(ctx context.Context, layer model.Layer, ids []string) (model.QueryResult, error) {
	body, err := ogc.BuildIDFilterBody(layer, ids)
	if err != nil {
		return model.QueryResult{}, err
	}

	c.log.Debug().
		Str("layer", string(layer)).
		Int("ids", len(ids)).
		Msg("query by ids")
	return c.post(ctx, body)
}

// QueryByBox fetches every feature of layer intersecting region. The region
// is reprojected to EPSG:4326 before the envelope is computed.
func (c *Client) QueryByBox(ctx context.Context, layer model.Layer, region model.Box) (model.QueryResult, error) {
	if err := layer.ValidateForBox(); err != nil {
		return model.QueryResult{}, err
	}

	bbox, err := crs.Envelope(region, model.CRSWGS84)
	if err != nil {
		return model.QueryResult{}, err
	}
	body, err := ogc.BuildBoxFilterBody(layer, bbox)
	if err != nil {
		return model.QueryResult{}, err
	}

	c.log.Debug().
		Str("layer", string(layer)).
		Float64("south", bbox.South).
		Float64("west", bbox.West).
		Float64("north", bbox.North).
		Float64("east", bbox.East).
		Msg("query by box")
	return c.post(ctx, body)
}

// QueryAtPoint looks up the catchment containing p via the WFS 1.0.0 GET
// path, widening the point by ogc.PointEpsilon. The point is reprojected to
// EPSG:4269 first.
func (c *Client) QueryAtPoint(ctx context.Context, p model.Point) (model.QueryResult, error) {
	pt, err := crs.Point(p, model.CRSNAD83)
	if err != nil {
		return model.QueryResult{}, err
	}
	params := ogc.BuildPointLookupParams(pt, ogc.PointEpsilon)
	url := c.endpoint + "?" + params.Encode()

	c.log.Debug().
		Float64("lon", pt.Lon).
		Float64("lat", pt.Lat).
		Msg("point lookup")
	resp, err := c.transport.Send(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		c.log.Warn().Str("url", url).Err(err).Msg("transport failed")
		return model.QueryResult{}, nil
	}
	return c.dec.Decode(resp), nil
}

func (c *Client) post(ctx context.Context, body []byte) (model.QueryResult, error) {
	resp, err := c.transport.Send(ctx, http.MethodPost, c.endpoint, body, "application/xml")
	if err != nil {
		c.log.Warn().Str("url", c.endpoint).Err(err).Msg("transport failed")
		return model.QueryResult{}, nil
	}
	return c.dec.Decode(resp), nil
}

// Endpoint exposes the resolved ows URL, mainly for logging and tests.
func (c *Client) Endpoint() string { return c.endpoint }
