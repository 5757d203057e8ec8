package health

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// DecodeSnapshot leniently decodes a stored snapshot document.
//
// Wrong-typed or missing fields fall back to zero values instead of failing the whole
// document; only input that is not a JSON object returns an error (with an empty snapshot).
// A document wrapped as {"snapshot": {...}} is unwrapped.
func DecodeSnapshot(b []byte) (WeeklySnapshot, error) {
	empty := WeeklySnapshot{Categories: []CategorySnapshot{}, Alerts: []string{}}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return empty, nil
	}

	// some drivers hand back JSON documents as JSON strings
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return empty, errors.Wrap(err, "decoding snapshot string")
		}
		b = []byte(s)
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return empty, errors.Wrap(err, "decoding snapshot")
	}
	if inner, ok := raw["snapshot"].(map[string]interface{}); ok && raw["categories"] == nil {
		raw = inner
	}

	s := empty
	s.WeekLabel = toString(raw["weekLabel"])
	s.AsOfDateISO = toString(raw["asOfDateISO"])

	if list, ok := raw["categories"].([]interface{}); ok {
		seen := make(map[string]bool, len(list))
		for i, item := range list {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			c := decodeCategory(obj)
			if c.ID == "" {
				c.ID = Slugify(c.Name)
			}
			if c.ID == "" {
				c.ID = fmt.Sprintf("category-%d", i+1)
			}
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			s.Categories = append(s.Categories, c)
		}
	}

	if list, ok := raw["alerts"].([]interface{}); ok {
		for _, item := range list {
			if a := strings.TrimSpace(toString(item)); a != "" {
				s.Alerts = append(s.Alerts, a)
			}
		}
	}

	s.Metrics = toFloatMap(raw["metrics"])
	return s, nil
}

func decodeCategory(obj map[string]interface{}) CategorySnapshot {
	c := CategorySnapshot{
		ID:       strings.TrimSpace(toString(obj["id"])),
		Name:     toString(obj["name"]),
		Headline: toString(obj["headline"]),
		Notes:    toString(obj["notes"]),
		Metrics:  toFloatMap(obj["metrics"]),
	}
	pct, _ := toFloat(obj["focusPercent"])
	c.FocusPercent = Clamp(pct)
	if st := ParseStatus(toString(obj["status"])); st != "" {
		c.RecordedStatus = st
	} else {
		c.RecordedStatus = c.DerivedStatus()
	}
	return c
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case nil:
		return ""
	case bool, float64:
		return fmt.Sprint(s)
	default:
		return ""
	}
}

func toFloatMap(v interface{}) map[string]float64 {
	obj, ok := v.(map[string]interface{})
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make(map[string]float64, len(obj))
	for k, val := range obj {
		if f, ok := toFloat(val); ok {
			out[k] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// EncodeSnapshot returns the normalized JSON document stored for s.
func EncodeSnapshot(s WeeklySnapshot) ([]byte, error) {
	b, err := json.Marshal(s.Normalize())
	if err != nil {
		return nil, errors.Wrap(err, "encoding snapshot")
	}
	return b, nil
}
