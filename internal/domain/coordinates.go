package domain

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64 `json:"lon" bson:"lon"`
	Lat float64 `json:"lat" bson:"lat"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Bounds is the bounding box enclosing every stop of a route.
type Bounds struct {
	SouthWest Coordinates `json:"south_west" bson:"southWest"`
	NorthEast Coordinates `json:"north_east" bson:"northEast"`
}

// BoundsOf returns the smallest box containing all coordinates, or nil when empty.
func BoundsOf(coords []Coordinates) *Bounds {
	if len(coords) == 0 {
		return nil
	}

	b := &Bounds{SouthWest: coords[0], NorthEast: coords[0]}
	for _, c := range coords[1:] {
		b.SouthWest.Lon = min(b.SouthWest.Lon, c.Lon)
		b.SouthWest.Lat = min(b.SouthWest.Lat, c.Lat)
		b.NorthEast.Lon = max(b.NorthEast.Lon, c.Lon)
		b.NorthEast.Lat = max(b.NorthEast.Lat, c.Lat)
	}

	return b
}
