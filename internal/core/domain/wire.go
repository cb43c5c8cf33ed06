package domain

// PolygonInput is the flat polygon shape the routing and zone-persistence
// services speak: a single coordinate list, no ring nesting.
type PolygonInput struct {
	Coordinates []Position `json:"coordinates"`
}

// EncodePolygon converts an internal polygon to its wire shape by taking the
// outer ring only. Holes are not supported by the services and are dropped.
func EncodePolygon(p Polygon) PolygonInput {
	return PolygonInput{Coordinates: p.Outer().Clone()}
}

// DecodePolygon wraps a wire polygon back into the ring-nested form the map
// renderer expects. The unwrap-on-send / wrap-on-receive asymmetry with
// EncodePolygon is the documented boundary convention, not an accident:
// Encode(Decode(x)) == x for any wire polygon x.
func DecodePolygon(in PolygonInput) Polygon {
	ring := make(Ring, len(in.Coordinates))
	copy(ring, in.Coordinates)
	return Polygon{ring}
}

// EncodeZoneSet converts both collections to wire shape.
func EncodeZoneSet(z ZoneSet) (exclusion, safe []PolygonInput) {
	exclusion = make([]PolygonInput, 0, len(z.Exclusion))
	for _, p := range z.Exclusion {
		exclusion = append(exclusion, EncodePolygon(p))
	}
	safe = make([]PolygonInput, 0, len(z.Safe))
	for _, p := range z.Safe {
		safe = append(safe, EncodePolygon(p))
	}
	return exclusion, safe
}

// DecodeZoneSet converts wire polygons back to the internal representation.
func DecodeZoneSet(exclusion, safe []PolygonInput) ZoneSet {
	z := ZoneSet{
		Exclusion: make([]Polygon, 0, len(exclusion)),
		Safe:      make([]Polygon, 0, len(safe)),
	}
	for _, in := range exclusion {
		z.Exclusion = append(z.Exclusion, DecodePolygon(in))
	}
	for _, in := range safe {
		z.Safe = append(z.Safe, DecodePolygon(in))
	}
	return z
}
