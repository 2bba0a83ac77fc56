package models

import (
	"encoding/json"
	"fmt"
)

// TextDetection is one entry of a text-detection response. The modeled fields
// follow the recognition service's wire names; any other key the service sends
// is kept in Extra and written back out unchanged.
type TextDetection struct {
	DetectedText string
	Type         string // LINE or WORD
	ID           *int32
	ParentID     *int32
	Confidence   float64 // percent, 0..100
	Geometry     *Geometry
	Children     []TextDetection
	Extra        map[string]any

	// noConfidence is set when a decoded detection had no Confidence key,
	// so Document does not invent one.
	noConfidence bool
}

// Geometry keeps unmodeled keys in Extra, like TextDetection.
type Geometry struct {
	BoundingBox *BoundingBox
	Polygon     []Point
	Extra       map[string]any
}

// BoundingBox coordinates are fractions of the image width and height.
type BoundingBox struct {
	Width  float64 `json:"Width"`
	Height float64 `json:"Height"`
	Left   float64 `json:"Left"`
	Top    float64 `json:"Top"`
}

type Point struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

const (
	TextTypeLine = "LINE"
	TextTypeWord = "WORD"
)

var geometryKeys = map[string]bool{
	"BoundingBox": true,
	"Polygon":     true,
}

var detectionKeys = map[string]bool{
	"DetectedText": true,
	"Type":         true,
	"Id":           true,
	"ParentId":     true,
	"Confidence":   true,
	"Geometry":     true,
	"Children":     true,
}

// Document returns the detection as a generic tree of maps, slices and
// scalars. Scalar Go types are kept as-is (float64 stays float64, int32 stays
// int32), which is what the storage normalizer walks.
func (d TextDetection) Document() map[string]any {
	doc := make(map[string]any, len(d.Extra)+len(detectionKeys))
	for k, v := range d.Extra {
		doc[k] = v
	}
	doc["DetectedText"] = d.DetectedText
	if !d.noConfidence {
		doc["Confidence"] = d.Confidence
	}
	if d.Type != "" {
		doc["Type"] = d.Type
	}
	if d.ID != nil {
		doc["Id"] = *d.ID
	}
	if d.ParentID != nil {
		doc["ParentId"] = *d.ParentID
	}
	if d.Geometry != nil {
		doc["Geometry"] = d.Geometry.document()
	}
	if len(d.Children) > 0 {
		doc["Children"] = Documents(d.Children)
	}
	return doc
}

func (g Geometry) document() map[string]any {
	doc := make(map[string]any, len(g.Extra)+len(geometryKeys))
	for k, v := range g.Extra {
		doc[k] = v
	}
	if g.BoundingBox != nil {
		doc["BoundingBox"] = map[string]any{
			"Width":  g.BoundingBox.Width,
			"Height": g.BoundingBox.Height,
			"Left":   g.BoundingBox.Left,
			"Top":    g.BoundingBox.Top,
		}
	}
	if len(g.Polygon) > 0 {
		points := make([]any, 0, len(g.Polygon))
		for _, p := range g.Polygon {
			points = append(points, map[string]any{"X": p.X, "Y": p.Y})
		}
		doc["Polygon"] = points
	}
	return doc
}

// Documents converts a detection list to its generic form, preserving order.
func Documents(dets []TextDetection) []any {
	out := make([]any, 0, len(dets))
	for _, d := range dets {
		out = append(out, d.Document())
	}
	return out
}

func (d TextDetection) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Document())
}

func (d *TextDetection) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out TextDetection
	fields := []struct {
		key string
		dst any
	}{
		{"DetectedText", &out.DetectedText},
		{"Type", &out.Type},
		{"Id", &out.ID},
		{"ParentId", &out.ParentID},
		{"Confidence", &out.Confidence},
		{"Geometry", &out.Geometry},
		{"Children", &out.Children},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("decode %s: %w", f.key, err)
		}
	}

	if _, ok := raw["Confidence"]; !ok {
		out.noConfidence = true
	}

	extra, err := decodeExtra(raw, detectionKeys)
	if err != nil {
		return err
	}
	out.Extra = extra

	*d = out
	return nil
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.document())
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Geometry
	if v, ok := raw["BoundingBox"]; ok {
		if err := json.Unmarshal(v, &out.BoundingBox); err != nil {
			return fmt.Errorf("decode BoundingBox: %w", err)
		}
	}
	if v, ok := raw["Polygon"]; ok {
		if err := json.Unmarshal(v, &out.Polygon); err != nil {
			return fmt.Errorf("decode Polygon: %w", err)
		}
	}

	extra, err := decodeExtra(raw, geometryKeys)
	if err != nil {
		return err
	}
	out.Extra = extra

	*g = out
	return nil
}

// decodeExtra decodes every key of raw that is not in known. It returns nil
// when there are none.
func decodeExtra(raw map[string]json.RawMessage, known map[string]bool) (map[string]any, error) {
	var extra map[string]any
	for k, v := range raw {
		if known[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = val
	}
	return extra, nil
}
