package domain

// GeoJSON projection of session state for the map renderer. The presenter
// holds these read-only snapshots; it never mutates session state through
// them.

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type Geometry struct {
	Type string `json:"type"`
	// Point: Position. LineString: []Position. Polygon: []Ring.
	Coordinates any `json:"coordinates"`
}

// LayerSet is everything the map needs to redraw one session.
type LayerSet struct {
	Mode      string            `json:"mode"`
	Exclusion FeatureCollection `json:"exclusion"`
	Safe      FeatureCollection `json:"safe"`
	Start     FeatureCollection `json:"start"`
	Paths     FeatureCollection `json:"paths"`
	InFlight  bool              `json:"in_flight"`
}

func emptyCollection() FeatureCollection {
	return FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}
}

func zoneCollection(kind ZoneKind, polys []Polygon, editable bool) FeatureCollection {
	fc := emptyCollection()
	for i, p := range polys {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Polygon",
				Coordinates: []Ring(p),
			},
			Properties: map[string]any{
				"kind":     string(kind),
				"index":    i,
				"editable": editable,
			},
		})
	}
	return fc
}

// BuildLayers projects session state into renderable layers. The zone set
// matching the active draw mode is flagged editable; everything else is a
// static overlay.
func BuildLayers(mode InteractionMode, zones ZoneSet, start *Position, requests []*PathRequest, inFlight bool) LayerSet {
	ls := LayerSet{
		Mode:      mode.String(),
		Exclusion: zoneCollection(ZoneExclusion, zones.Exclusion, mode == ModeDrawExclusion),
		Safe:      zoneCollection(ZoneSafe, zones.Safe, mode == ModeDrawSafe),
		Start:     emptyCollection(),
		Paths:     emptyCollection(),
		InFlight:  inFlight,
	}

	if start != nil {
		ls.Start.Features = append(ls.Start.Features, Feature{
			Type:     "Feature",
			Geometry: Geometry{Type: "Point", Coordinates: *start},
			Properties: map[string]any{
				"kind": "start",
			},
		})
	}

	// Insertion order is display order.
	for _, req := range requests {
		props := map[string]any{
			"request_id": req.ID,
			"state":      string(req.State),
		}
		if req.FailureCause != "" {
			props["failure_cause"] = req.FailureCause
		}
		if req.State == RequestResolved && len(req.Path) > 0 {
			ls.Paths.Features = append(ls.Paths.Features, Feature{
				Type:       "Feature",
				Geometry:   Geometry{Type: "LineString", Coordinates: req.Path},
				Properties: props,
			})
			continue
		}
		// Pending and failed requests render as a marker at their start
		// point so the user can see what is outstanding or went wrong.
		ls.Paths.Features = append(ls.Paths.Features, Feature{
			Type:       "Feature",
			Geometry:   Geometry{Type: "Point", Coordinates: req.Start},
			Properties: props,
		})
	}

	return ls
}
