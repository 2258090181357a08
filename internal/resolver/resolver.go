// Package resolver turns a location or an upstream feature reference into a
// canonical NHDPlus ComID.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/openhydro/nhdquery/internal/model"
	"github.com/openhydro/nhdquery/internal/nldi"
)

// DefaultTier is applied to a feature reference with no tier of its own.
const DefaultTier = "prod"

// ErrNoLocator is returned for a zero-value Locator.
var ErrNoLocator = errors.New("locator must carry a point or a feature reference")

// PointQuerier is the spatial lookup path; *waterdata.Client satisfies it.
type PointQuerier interface {
	QueryAtPoint(ctx context.Context, p model.Point) (model.QueryResult, error)
}

type Client struct {
	points PointQuerier
	refs   nldi.Resolver
	log    zerolog.Logger
}

func New(points PointQuerier, refs nldi.Resolver, log zerolog.Logger) *Client {
	return &Client{points: points, refs: refs, log: log}
}

// ComID resolves loc to the integer network identifier. Input validation
// errors fail before any network activity.
func (c *Client) ComID(ctx context.Context, loc model.Locator) (int, error) {
	if p, ok := loc.Point(); ok {
		return c.fromPoint(ctx, p)
	}
	if ref, ok := loc.Reference(); ok {
		return c.fromReference(ctx, ref)
	}
	return 0, ErrNoLocator
}

// fromPoint looks up the catchment containing p and returns its featureid.
// More than one match means the point sits close to a catchment boundary;
// that is logged as a warning and the first match wins.
func (c *Client) fromPoint(ctx context.Context, p model.Point) (int, error) {
	res, err := c.points.QueryAtPoint(ctx, p)
	if err != nil {
		return 0, err
	}
	if res.Empty() {
		return 0, fmt.Errorf("no catchment found at (%v, %v)", p.Lon, p.Lat)
	}
	if len(res.Features) > 1 {
		c.log.Warn().
			Float64("lon", p.Lon).
			Float64("lat", p.Lat).
			Int("matches", len(res.Features)).
			Msg("point too close to edge of catchment; multiple matches, using first")
	}
	return featureID(res.Features[0])
}

func (c *Client) fromReference(ctx context.Context, ref model.FeatureRef) (int, error) {
	if ref.Source == "" || ref.ID == "" {
		return 0, errors.New("feature reference requires both source and id")
	}
	if ref.Tier == "" {
		ref.Tier = DefaultTier
	}
	rec, err := c.refs.Resolve(ctx, ref)
	if err != nil {
		return 0, err
	}
	return rec.ComID, nil
}

// featureID extracts the catchment's identifier attribute as an integer.
// GeoJSON numbers decode as float64; string-typed attributes also occur.
func featureID(f model.Feature) (int, error) {
	v, ok := f.Properties["featureid"]
	if !ok {
		return 0, errors.New("matched feature carries no featureid attribute")
	}
	switch id := v.(type) {
	case float64:
		return int(id), nil
	case string:
		n, err := strconv.Atoi(id)
		if err != nil {
			return 0, fmt.Errorf("non-numeric featureid %q", id)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected featureid type %T", v)
	}
}
