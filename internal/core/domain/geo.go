package domain

import (
	"encoding/json"
	"fmt"
)

// Position is a WGS 84 coordinate pair. On the wire it is the GeoJSON-style
// two-element array [longitude, latitude]. Out-of-range values are carried
// through unchanged; the routing service owns validation.
type Position struct {
	Lon float64
	Lat float64
}

// MarshalJSON encodes the position as [lon, lat].
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lon, p.Lat})
}

// UnmarshalJSON decodes [lon, lat].
func (p *Position) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("position must be a [lon, lat] pair: %w", err)
	}
	p.Lon, p.Lat = pair[0], pair[1]
	return nil
}

// Ring is an ordered sequence of positions forming a closed ring. Per the
// GeoJSON convention the first and last vertex conceptually coincide; this
// is not enforced here.
type Ring []Position

// Clone returns a deep copy.
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// Polygon is a set of rings. Ring 0 is the outer boundary. Interior rings
// (holes) can exist in memory but never cross the wire; see wire.go.
type Polygon []Ring

// Clone returns a deep copy.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	for i, ring := range p {
		out[i] = ring.Clone()
	}
	return out
}

// Outer returns the outer ring, or nil for an empty polygon.
func (p Polygon) Outer() Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// ZoneSet holds the two committed polygon collections: hazard areas routes
// must avoid and destination areas considered safe. Persistence is
// replace-all; there is no partial update.
type ZoneSet struct {
	Exclusion []Polygon `json:"exclusion"`
	Safe      []Polygon `json:"safe"`
}

// Clone returns a deep copy, used to snapshot zones at dispatch time so an
// in-flight request is immune to later edits.
func (z ZoneSet) Clone() ZoneSet {
	out := ZoneSet{}
	if z.Exclusion != nil {
		out.Exclusion = make([]Polygon, len(z.Exclusion))
		for i, p := range z.Exclusion {
			out.Exclusion[i] = p.Clone()
		}
	}
	if z.Safe != nil {
		out.Safe = make([]Polygon, len(z.Safe))
		for i, p := range z.Safe {
			out.Safe[i] = p.Clone()
		}
	}
	return out
}
