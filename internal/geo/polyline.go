package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// LineStringFrom4326 validates [longitude, latitude] pairs and builds the
// route line projected to EPSG:3857.
func LineStringFrom4326(points [][]float64) (geom.LineString, error) {
	if len(points) < 2 {
		return geom.LineString{}, fmt.Errorf("%w: polyline must have at least 2 points, got %d", ErrInvalidRoute, len(points))
	}

	flatCoords := make([]float64, 0, len(points)*2)
	for i, p := range points {
		if len(p) < 2 {
			return geom.LineString{}, fmt.Errorf("%w: coordinate %d has insufficient values", ErrInvalidRoute, i)
		}
		pt, err := Coords3857From4326(p[0], p[1])
		if err != nil {
			return geom.LineString{}, fmt.Errorf("coordinate %d: %w", i, err)
		}
		c, _ := pt.Coordinates()
		flatCoords = append(flatCoords, c.X, c.Y)
	}

	return geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY)), nil
}
