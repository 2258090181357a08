// Package decode normalizes upstream responses into query results.
//
// Failures at this boundary are not errors: a non-success status or a
// malformed payload produces an empty result and a log line, never a
// propagated failure.
package decode

import (
	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/httpclient"
	"github.com/openhydro/nhdquery/internal/model"
)

type Decoder struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Decode turns a transport response into a QueryResult. A 2xx response is
// parsed as a GeoJSON feature collection; zero features is a valid empty
// result. Any other status, or a payload that does not parse, yields an
// empty result with the cause logged.
func (d *Decoder) Decode(resp httpclient.Response) model.QueryResult {
	if !resp.OK() {
		d.log.Warn().
			Str("url", resp.URL).
			Int("status", resp.StatusCode).
			Msg("service request failed")
		return model.QueryResult{}
	}

	fc, err := geojson.UnmarshalFeatureCollection(resp.Body)
	if err != nil {
		d.log.Warn().
			Str("url", resp.URL).
			Err(err).
			Msg("feature collection decode failed")
		return model.QueryResult{}
	}

	features := make([]model.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		features = append(features, model.Feature{
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}

	d.log.Debug().
		Str("url", resp.URL).
		Int("features", len(features)).
		Uint64("payload_digest", xxhash.Sum64(resp.Body)).
		Msg("decoded feature collection")
	return model.QueryResult{Features: features}
}
