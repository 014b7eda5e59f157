package export

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/solar-cli/pkg/solar"
)

// InstallationsGeoJSON encodes installations as a FeatureCollection of
// lon/lat points. The collection carries a bbox when it has features.
func InstallationsGeoJSON(insts []solar.Installation) ([]byte, error) {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(insts)),
	}

	bounds := geom.NewBounds(geom.XY)
	for _, in := range insts {
		pt := geom.NewPointFlat(geom.XY, []float64{in.Longitude, in.Latitude}).SetSRID(4326)
		bounds.Extend(pt)

		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.FormatInt(in.CaseID, 10),
			Geometry: pt,
			Properties: map[string]any{
				"case_id":     in.CaseID,
				"name":        in.Name,
				"county":      in.County,
				"state":       in.State,
				"capacity_ac": in.CapacityAC,
				"year":        in.Year,
			},
		})
	}
	if len(insts) > 0 {
		fc.BBox = bounds
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "geojson: marshal feature collection")
	}
	return data, nil
}
