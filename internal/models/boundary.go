package models

import "encoding/json"

// BoundaryFeature is one region of the choropleth layer.
type BoundaryFeature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// BoundaryCollection is a GeoJSON FeatureCollection ready for the map.
type BoundaryCollection struct {
	Type     string            `json:"type"`
	Features []BoundaryFeature `json:"features"`
	Count    int               `json:"count"`
}
