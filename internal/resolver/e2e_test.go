package resolver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/httpclient"
	"github.com/openhydro/nhdquery/internal/model"
	"github.com/openhydro/nhdquery/internal/nldi"
	"github.com/openhydro/nhdquery/internal/resolver"
	"github.com/openhydro/nhdquery/internal/waterdata"
)

type upstreamRecorder struct {
	mu        sync.Mutex
	lastPath  string
	lastQuery url.Values
	payload   string
}

func (u *upstreamRecorder) handler(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.lastPath = r.URL.Path
	u.lastQuery = r.URL.Query()
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(u.payload))
}

func (u *upstreamRecorder) snapshot() (string, url.Values) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastPath, u.lastQuery
}

func newTransport(srv *httptest.Server) *httpclient.Client {
	return httpclient.New("test", zerolog.Nop(),
		httpclient.WithHTTPClient(srv.Client()),
		httpclient.WithRetry(0, time.Millisecond))
}

func TestResolve_PointEndToEnd(t *testing.T) {
	up := &upstreamRecorder{payload: `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "Polygon", "coordinates": [[[-76.88,39.48],[-76.86,39.48],[-76.86,39.49],[-76.88,39.48]]]},
			"properties": {"featureid": 1722317, "gridcode": 591}
		}]
	}`}
	srv := httptest.NewServer(http.HandlerFunc(up.handler))
	defer srv.Close()

	wd := waterdata.New(srv.URL, newTransport(srv), zerolog.Nop())
	rs := resolver.New(wd, nldi.New(newTransport(srv), zerolog.Nop()), zerolog.Nop())

	comid, err := rs.ComID(context.Background(),
		model.AtPoint(model.Point{Lon: -76.87479, Lat: 39.48233, CRS: model.CRSWGS84}))
	if err != nil {
		t.Fatalf("ComID: %v", err)
	}
	if comid != 1722317 {
		t.Fatalf("comid=%d want 1722317", comid)
	}

	path, q := up.snapshot()
	if path != "/nwc/geoserver/nhdplus/ows" {
		t.Fatalf("path=%q", path)
	}
	if got := q.Get("version"); got != "1.0.0" {
		t.Fatalf("version=%q want 1.0.0", got)
	}
	if got := q.Get("typeName"); got != "nhdplus:catchmentsp" {
		t.Fatalf("typeName=%q", got)
	}
	if got := q.Get("bbox"); got != "-76.87479,39.48233,-76.87478,39.48234" {
		t.Fatalf("bbox=%q", got)
	}
}

func TestResolve_ReferenceEndToEnd(t *testing.T) {
	up := &upstreamRecorder{payload: `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [-105.9639722, 36.20555556]},
			"properties": {"comid": "17864756", "identifier": "USGS-08279500"}
		}]
	}`}
	srv := httptest.NewServer(http.HandlerFunc(up.handler))
	defer srv.Close()

	refs := nldi.NewWithBase(srv.URL, newTransport(srv), zerolog.Nop())
	rs := resolver.New(nil, refs, zerolog.Nop())

	comid, err := rs.ComID(context.Background(),
		model.ByReference(model.FeatureRef{Source: "nwissite", ID: "USGS-08279500"}))
	if err != nil {
		t.Fatalf("ComID: %v", err)
	}
	if comid != 17864756 {
		t.Fatalf("comid=%d want 17864756", comid)
	}

	path, _ := up.snapshot()
	if path != "/linked-data/nwissite/USGS-08279500" {
		t.Fatalf("path=%q", path)
	}
}
