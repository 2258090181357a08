// Package nldi talks to the hydro network linked data index, the registry
// that maps upstream-system feature references to NHDPlus ComIDs.
package nldi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/httpclient"
	"github.com/openhydro/nhdquery/internal/model"
)

// Record is the subset of a linked-data response the resolver needs.
type Record struct {
	ComID      int
	Identifier string
	Name       string
	URI        string
}

// Resolver resolves an upstream feature reference to its network record.
type Resolver interface {
	Resolve(ctx context.Context, ref model.FeatureRef) (Record, error)
}

// Transport matches waterdata.Transport; both are satisfied by
// *httpclient.Client.
type Transport interface {
	Send(ctx context.Context, method, url string, body []byte, contentType string) (httpclient.Response, error)
}

var tierBases = map[string]string{
	"prod": "https://labs.waterdata.usgs.gov/api/nldi",
	"test": "https://labs-beta.waterdata.usgs.gov/api/nldi",
}

type Client struct {
	transport Transport
	log       zerolog.Logger
	baseOvr   string // test override for tier base URLs
}

func New(transport Transport, log zerolog.Logger) *Client {
	return &Client{transport: transport, log: log}
}

// NewWithBase pins every tier to one base URL; used by tests against a
// local server.
func NewWithBase(base string, transport Transport, log zerolog.Logger) *Client {
	return &Client{transport: transport, log: log, baseOvr: strings.TrimRight(base, "/")}
}

// geojson feature response from /linked-data/{source}/{id}
type linkedDataResponse struct {
	Features []struct {
		Properties struct {
			ComID      string `json:"comid"`
			Identifier string `json:"identifier"`
			Name       string `json:"name"`
			URI        string `json:"uri"`
		} `json:"properties"`
	} `json:"features"`
}

// Resolve fetches the linked-data record for ref. The ref must carry source
// and id; tier must already be filled in by the caller.
func (c *Client) Resolve(ctx context.Context, ref model.FeatureRef) (Record, error) {
	base := c.baseOvr
	if base == "" {
		var ok bool
		base, ok = tierBases[ref.Tier]
		if !ok {
			return Record{}, fmt.Errorf("unknown tier %q; valid tiers: prod, test", ref.Tier)
		}
	}
	u := fmt.Sprintf("%s/linked-data/%s/%s",
		base, url.PathEscape(ref.Source), url.PathEscape(ref.ID))

	resp, err := c.transport.Send(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return Record{}, fmt.Errorf("resolve %s/%s: %w", ref.Source, ref.ID, err)
	}
	if !resp.OK() {
		return Record{}, fmt.Errorf("resolve %s/%s: status %d from %s",
			ref.Source, ref.ID, resp.StatusCode, resp.URL)
	}

	var decoded linkedDataResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return Record{}, fmt.Errorf("decode linked-data response: %w", err)
	}
	if len(decoded.Features) == 0 {
		return Record{}, fmt.Errorf("no linked-data record for %s/%s", ref.Source, ref.ID)
	}

	props := decoded.Features[0].Properties
	comid, err := strconv.Atoi(strings.TrimSpace(props.ComID))
	if err != nil {
		return Record{}, fmt.Errorf("non-numeric comid %q for %s/%s", props.ComID, ref.Source, ref.ID)
	}

	c.log.Debug().
		Str("source", ref.Source).
		Str("id", ref.ID).
		Int("comid", comid).
		Msg("resolved linked-data reference")
	return Record{
		ComID:      comid,
		Identifier: props.Identifier,
		Name:       props.Name,
		URI:        props.URI,
	}, nil
}
