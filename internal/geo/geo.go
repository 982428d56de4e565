// Package geo lays the one-dimensional track coordinate onto a map.
package geo

import (
	"errors"
	"math"
	"sort"

	"github.com/openato/onboard/internal/config"
	"github.com/openato/onboard/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Positions are stored as EPSG:3857 alongside their longitude and latitude.
// SQLite has no spatial awareness, so the geometry goes to the database as WKB.

var (
	// ErrInvalidCoordinates is returned when the coordinates are invalid
	ErrInvalidCoordinates = errors.New("invalid coordinates provided")
	// ErrInvalidRoute is returned for a polyline that cannot carry a track
	ErrInvalidRoute = errors.New("invalid route")
)

// Coords3857From4326 creates a web mercator point from a longitude and latitude
func Coords3857From4326(longitude, latitude float64) (geom.Point, error) {
	if math.IsNaN(longitude) || math.IsNaN(latitude) ||
		longitude < -180 || longitude > 180 || latitude < -85.06 || latitude > 85.06 {
		return geom.Point{}, ErrInvalidCoordinates
	}
	x, y, _ := wgs84.EPSG().Transform(4326, 3857)(longitude, latitude, 0)
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}}), nil
}

// Coords4326From3857 is the inverse of Coords3857From4326.
func Coords4326From3857(x, y float64) (longitude, latitude float64) {
	longitude, latitude, _ = wgs84.EPSG().Transform(3857, 4326)(x, y, 0)
	return longitude, latitude
}

// Route maps track coordinates to points along a polyline. The track
// coordinate Origin sits on the first vertex and grows along the line.
type Route struct {
	name   string
	origin float64
	line   geom.LineString
	// cumulative ground distance at each vertex
	cum []float64
}

// NewRoute builds a route from configuration.
func NewRoute(cfg config.RouteConfig) (*Route, error) {
	line, err := LineStringFrom4326(cfg.Points)
	if err != nil {
		return nil, err
	}

	seq := line.Coordinates()
	cum := make([]float64, seq.Length())
	for i := 1; i < seq.Length(); i++ {
		cum[i] = cum[i-1] + groundDistance(seq.GetXY(i-1), seq.GetXY(i))
	}
	if cum[len(cum)-1] == 0 {
		return nil, ErrInvalidRoute
	}

	return &Route{
		name:   cfg.Name,
		origin: cfg.Origin,
		line:   line,
		cum:    cum,
	}, nil
}

// Name is the configured route name.
func (r *Route) Name() string { return r.name }

// Length is the ground length of the route in metres.
func (r *Route) Length() float64 { return r.cum[len(r.cum)-1] }

// LineString is the route in EPSG:3857.
func (r *Route) LineString() geom.LineString { return r.line }

// Locate maps a track coordinate onto the route. Locations off either end
// of the route report false.
func (r *Route) Locate(location float64) (core.GeoPoint, bool) {
	d := location - r.origin
	if math.IsNaN(d) || d < 0 || d > r.Length() {
		return core.GeoPoint{}, false
	}

	// first vertex at or beyond d
	i := sort.SearchFloat64s(r.cum, d)
	seq := r.line.Coordinates()
	if i == 0 {
		return r.pointAt(seq.GetXY(0)), true
	}

	a, b := seq.GetXY(i-1), seq.GetXY(i)
	frac := (d - r.cum[i-1]) / (r.cum[i] - r.cum[i-1])
	return r.pointAt(geom.XY{
		X: a.X + (b.X-a.X)*frac,
		Y: a.Y + (b.Y-a.Y)*frac,
	}), true
}

func (r *Route) pointAt(xy geom.XY) core.GeoPoint {
	lon, lat := Coords4326From3857(xy.X, xy.Y)
	return core.GeoPoint{Longitude: lon, Latitude: lat, X: xy.X, Y: xy.Y}
}

// groundDistance scales the mercator distance by the cosine of the segment's
// mid latitude. Good to well under a metre for segments of a few kilometres.
func groundDistance(a, b geom.XY) float64 {
	_, latA := Coords4326From3857(a.X, a.Y)
	_, latB := Coords4326From3857(b.X, b.Y)
	mid := (latA + latB) / 2 * math.Pi / 180
	return math.Hypot(b.X-a.X, b.Y-a.Y) * math.Cos(mid)
}
