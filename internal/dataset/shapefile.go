package dataset

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// loadShapefile reads a USPVDB shapefile. Attributes come from the DBF and the
// shape geometry fills in coordinates when ylat/xlong are missing.
func loadShapefile(path string) (*Result, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}
	cols := newColumnIndex(names)
	if _, ok := cols[colCaseID]; !ok {
		return nil, eris.Errorf("dataset: shapefile %s has no %s field", path, colCaseID)
	}

	res := &Result{}
	for reader.Next() {
		n, shape := reader.Shape()

		row := make([]string, len(fields))
		for i := range fields {
			row[i] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}

		in, err := parseInstallation(cols.lookup(row), func() (float64, float64, bool) {
			return shapeCenter(shape)
		})
		if err != nil {
			res.Failed++
			if res.Failed <= maxLoggedFailures {
				zap.L().Warn("dataset: skipping shape",
					zap.Int("record", n),
					zap.Strings("attributes", row),
					zap.Error(err),
				)
			}
			continue
		}
		res.Installations = append(res.Installations, in)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "dataset: read shapefile %s", path)
	}

	return res, nil
}

// shapeCenter returns the lon/lat of a point shape, or the bounding box center
// of any other shape.
func shapeCenter(shape shp.Shape) (lon, lat float64, ok bool) {
	switch s := shape.(type) {
	case nil, *shp.Null:
		return 0, 0, false
	case *shp.Point:
		p := geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
		return p.X(), p.Y(), true
	default:
		box := shape.BBox()
		b := geom.NewBounds(geom.XY).Set(box.MinX, box.MinY, box.MaxX, box.MaxY)
		return (b.Min(0) + b.Max(0)) / 2, (b.Min(1) + b.Max(1)) / 2, true
	}
}
