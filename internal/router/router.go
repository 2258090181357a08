// Package router validates query parameters and serves the HTTP API over
// the waterdata client and the resolver.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/model"
	"github.com/openhydro/nhdquery/internal/observability"
)

// Querier is the layer-query surface; *waterdata.Client satisfies it.
type Querier interface {
	QueryByIDs(ctx context.Context, layer model.Layer, ids []string) (model.QueryResult, error)
	QueryByBox(ctx context.Context, layer model.Layer, region model.Box) (model.QueryResult, error)
}

// ComIDResolver is the resolution surface; *resolver.Client satisfies it.
type ComIDResolver interface {
	ComID(ctx context.Context, loc model.Locator) (int, error)
}

// HandleBoxQuery serves GET /query?layer=&bbox=minx,miny,maxx,maxy&crs=.
func HandleBoxQuery(log zerolog.Logger, q Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/query", sw.code, time.Since(start).Seconds())
		}()

		layer := model.Layer(strings.TrimSpace(r.URL.Query().Get("layer")))
		if layer == "" {
			http.Error(sw, "missing required parameter: layer", http.StatusBadRequest)
			return
		}
		box, err := parseBox(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}

		res, err := q.QueryByBox(r.Context(), layer, box)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}
		writeFeatures(sw, log, res)
	}
}

// HandleIDQuery serves GET /query/ids?layer=&ids=1,2,3.
func HandleIDQuery(log zerolog.Logger, q Querier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/query/ids", sw.code, time.Since(start).Seconds())
		}()

		layer := model.Layer(strings.TrimSpace(r.URL.Query().Get("layer")))
		if layer == "" {
			http.Error(sw, "missing required parameter: layer", http.StatusBadRequest)
			return
		}
		ids := splitIDs(r.URL.Query().Get("ids"))
		if len(ids) == 0 {
			http.Error(sw, "missing required parameter: ids", http.StatusBadRequest)
			return
		}

		res, err := q.QueryByIDs(r.Context(), layer, ids)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}
		writeFeatures(sw, log, res)
	}
}

// HandleResolve serves GET /resolve with either lon/lat[/crs] or
// source/id[/tier] parameter groups.
func HandleResolve(log zerolog.Logger, rs ComIDResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/resolve", sw.code, time.Since(start).Seconds())
		}()

		loc, err := parseLocator(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			return
		}

		comid, err := rs.ComID(r.Context(), loc)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusNotFound)
			return
		}
		sw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(sw).Encode(map[string]int{"comid": comid})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func parseBox(r *http.Request) (model.Box, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("bbox"))
	if raw == "" {
		return model.Box{}, errors.New("missing required parameter: bbox")
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.Box{}, fmt.Errorf("bbox needs 4 comma-separated values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.Box{}, fmt.Errorf("invalid bbox value %q", p)
		}
		vals[i] = v
	}
	crsCode, err := parseCRS(r, model.CRSWGS84)
	if err != nil {
		return model.Box{}, err
	}
	return model.Box{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3], CRS: crsCode}, nil
}

func parseLocator(r *http.Request) (model.Locator, error) {
	q := r.URL.Query()
	lon, lat := strings.TrimSpace(q.Get("lon")), strings.TrimSpace(q.Get("lat"))
	source, id := strings.TrimSpace(q.Get("source")), strings.TrimSpace(q.Get("id"))

	switch {
	case lon != "" && lat != "":
		x, err := strconv.ParseFloat(lon, 64)
		if err != nil {
			return model.Locator{}, fmt.Errorf("invalid lon %q", lon)
		}
		y, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return model.Locator{}, fmt.Errorf("invalid lat %q", lat)
		}
		crsCode, err := parseCRS(r, model.CRSWGS84)
		if err != nil {
			return model.Locator{}, err
		}
		return model.AtPoint(model.Point{Lon: x, Lat: y, CRS: crsCode}), nil

	case source != "" && id != "":
		return model.ByReference(model.FeatureRef{
			Source: source,
			ID:     id,
			Tier:   strings.TrimSpace(q.Get("tier")),
		}), nil

	default:
		return model.Locator{}, errors.New("resolve needs either lon+lat or source+id")
	}
}

func parseCRS(r *http.Request, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("crs"))
	if raw == "" {
		return def, nil
	}
	raw = strings.TrimPrefix(strings.ToUpper(raw), "EPSG:")
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid crs %q", r.URL.Query().Get("crs"))
	}
	return code, nil
}

func splitIDs(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeFeatures(w http.ResponseWriter, log zerolog.Logger, res model.QueryResult) {
	fc := geojson.NewFeatureCollection()
	for _, f := range res.Features {
		gf := geojson.NewFeature(f.Geometry)
		gf.Properties = f.Properties
		fc.Append(gf)
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		log.Error().Err(err).Msg("write feature collection")
	}
}
