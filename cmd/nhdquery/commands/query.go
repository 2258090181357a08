package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/openhydro/nhdquery/internal/model"
)

func queryIDsCmd() *cobra.Command {
	var layer string
	cmd := &cobra.Command{
		Use:   "query-ids <id> [id...]",
		Short: "Fetch features matching network identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := queries.QueryByIDs(cmd.Context(), model.Layer(layer), args)
			if err != nil {
				return err
			}
			return printFeatures(res)
		},
	}
	cmd.Flags().StringVar(&layer, "layer", string(model.LayerFlowline), "target layer")
	return cmd
}

func queryBoxCmd() *cobra.Command {
	var layer string
	var crs int
	cmd := &cobra.Command{
		Use:   "query-bbox <minx,miny,maxx,maxy>",
		Short: "Fetch features intersecting a bounding box",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := parseBoxArg(args[0], crs)
			if err != nil {
				return err
			}
			res, err := queries.QueryByBox(cmd.Context(), model.Layer(layer), box)
			if err != nil {
				return err
			}
			return printFeatures(res)
		},
	}
	cmd.Flags().StringVar(&layer, "layer", string(model.LayerCatchment), "target layer")
	cmd.Flags().IntVar(&crs, "crs", model.CRSWGS84, "EPSG code of the input coordinates")
	return cmd
}

func resolveCmd() *cobra.Command {
	var (
		lon, lat   float64
		crs        int
		source, id string
		tier       string
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a point or an upstream feature reference to a ComID",
		RunE: func(cmd *cobra.Command, args []string) error {
			var loc model.Locator
			switch {
			case cmd.Flags().Changed("lon") && cmd.Flags().Changed("lat"):
				loc = model.AtPoint(model.Point{Lon: lon, Lat: lat, CRS: crs})
			case source != "" && id != "":
				loc = model.ByReference(model.FeatureRef{Source: source, ID: id, Tier: tier})
			}
			comid, err := resolves.ComID(cmd.Context(), loc)
			if err != nil {
				return err
			}
			fmt.Println(comid)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().IntVar(&crs, "crs", model.CRSWGS84, "EPSG code of the point")
	cmd.Flags().StringVar(&source, "source", "", "upstream source system, e.g. nwissite")
	cmd.Flags().StringVar(&id, "id", "", "source-local identifier, e.g. USGS-08279500")
	cmd.Flags().StringVar(&tier, "tier", "", "resolution tier (default prod)")
	return cmd
}

func parseBoxArg(raw string, crs int) (model.Box, error) {
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
	return model.Box{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3], CRS: crs}, nil
}

func printFeatures(res model.QueryResult) error {
	fc := geojson.NewFeatureCollection()
	for _, f := range res.Features {
		gf := geojson.NewFeature(f.Geometry)
		gf.Properties = f.Properties
		fc.Append(gf)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}
