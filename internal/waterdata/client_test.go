package waterdata

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/httpclient"
	"github.com/openhydro/nhdquery/internal/model"
)

type spyTransport struct {
	calls    int
	method   string
	url      string
	body     []byte
	response httpclient.Response
	err      error
}

func (s *spyTransport) Send(_ context.Context, method, u string, body []byte, _ string) (httpclient.Response, error) {
	s.calls++
	s.method = method
	s.url = u
	s.body = body
	if s.response.URL == "" {
		s.response.URL = u
	}
	return s.response, s.err
}

func okCollection(features string) httpclient.Response {
	return httpclient.Response{
		StatusCode: 200,
		Body:       []byte(`{"type":"FeatureCollection","features":[` + features + `]}`),
	}
}

func newClient(spy *spyTransport) *Client {
	return New("https://cida.usgs.gov", spy, zerolog.Nop())
}

func TestQueryByIDs_BuildsFilterPost(t *testing.T) {
	spy := &spyTransport{response: okCollection("")}
	c := newClient(spy)

	_, err := c.QueryByIDs(context.Background(), model.LayerFlowline,
		[]string{"1722317", "1722319", "1722321"})
	if err != nil {
		t.Fatalf("QueryByIDs: %v", err)
	}

	if spy.calls != 1 {
		t.Fatalf("calls=%d want 1", spy.calls)
	}
	if spy.method != "POST" {
		t.Fatalf("method=%q want POST", spy.method)
	}
	if spy.url != "https://cida.usgs.gov/nwc/geoserver/nhdplus/ows" {
		t.Fatalf("url=%q", spy.url)
	}
	body := string(spy.body)
	if got := strings.Count(body, "<ogc:PropertyIsEqualTo>"); got != 3 {
		t.Fatalf("predicates=%d want 3 in %s", got, body)
	}
	if got := strings.Count(body, "<ogc:PropertyName>comid</ogc:PropertyName>"); got != 3 {
		t.Fatalf("comid references=%d want 3 in %s", got, body)
	}
}

func TestQueryByIDs_InvalidLayerSkipsNetwork(t *testing.T) {
	spy := &spyTransport{response: okCollection("")}
	c := newClient(spy)

	_, err := c.QueryByIDs(context.Background(), model.LayerWaterbody, []string{"1"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if spy.calls != 0 {
		t.Fatalf("transport must not be called on validation failure, calls=%d", spy.calls)
	}
}

func TestQueryByBox_ReprojectsBeforeEnvelope(t *testing.T) {
	spy := &spyTransport{response: okCollection("")}
	c := newClient(spy)

	// web mercator region around the Patapsco headwaters
	box := model.Box{
		MinX: -8559000, MinY: 4780000,
		MaxX: -8551000, MaxY: 4788000,
		CRS: model.CRSWebMercator,
	}
	if _, err := c.QueryByBox(context.Background(), model.LayerCatchment, box); err != nil {
		t.Fatalf("QueryByBox: %v", err)
	}

	body := string(spy.body)
	if strings.Contains(body, "-8559000") || strings.Contains(body, "4780000") {
		t.Fatalf("raw pre-reprojection coordinates leaked into filter: %s", body)
	}
	if !strings.Contains(body, "<gml:lowerCorner>39.3") {
		t.Fatalf("expected reprojected lower corner in degrees: %s", body)
	}
	if !strings.Contains(body, "<ogc:BBOX>") {
		t.Fatalf("missing BBOX clause: %s", body)
	}
}

func TestQueryByBox_InvalidLayerSkipsNetwork(t *testing.T) {
	spy := &spyTransport{}
	c := newClient(spy)

	_, err := c.QueryByBox(context.Background(), "gagesii", model.Box{CRS: model.CRSWGS84})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if spy.calls != 0 {
		t.Fatalf("transport must not be called on validation failure, calls=%d", spy.calls)
	}
}

func TestQueryAtPoint_GetWithEpsilonBBox(t *testing.T) {
	feature := `{"type":"Feature",
		"geometry":{"type":"Point","coordinates":[-76.87,39.48]},
		"properties":{"featureid":1722317}}`
	spy := &spyTransport{response: okCollection(feature)}
	c := newClient(spy)

	res, err := c.QueryAtPoint(context.Background(),
		model.Point{Lon: -76.87479, Lat: 39.48233, CRS: model.CRSWGS84})
	if err != nil {
		t.Fatalf("QueryAtPoint: %v", err)
	}
	if len(res.Features) != 1 {
		t.Fatalf("features=%d want 1", len(res.Features))
	}

	if spy.method != "GET" {
		t.Fatalf("method=%q want GET", spy.method)
	}
	u, err := url.Parse(spy.url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if got := q.Get("version"); got != "1.0.0" {
		t.Fatalf("version=%q want 1.0.0", got)
	}
	if got := q.Get("srsName"); got != "EPSG:4269" {
		t.Fatalf("srsName=%q want EPSG:4269", got)
	}
	if got := q.Get("bbox"); got != "-76.87479,39.48233,-76.87478,39.48234" {
		t.Fatalf("bbox=%q", got)
	}
}

func TestQuery_FailureStatusDegradesToEmpty(t *testing.T) {
	spy := &spyTransport{response: httpclient.Response{StatusCode: 500, Body: []byte("boom")}}
	c := newClient(spy)

	res, err := c.QueryByIDs(context.Background(), model.LayerCatchment, []string{"7"})
	if err != nil {
		t.Fatalf("failure status must not surface as error: %v", err)
	}
	if !res.Empty() {
		t.Fatal("expected empty result")
	}
}
