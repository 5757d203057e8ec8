package health

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Meta kinds
const (
	MetaNone MetaKind = ""
	MetaPair MetaKind = "pair"
	MetaNote MetaKind = "note"
	MetaRaw  MetaKind = "raw"
)

type MetaKind string

// Meta is the typed form of the free-form metadata attached to a MetricRow.
//
//	pair: {active, total} counts, optionally with a note
//	note: free text only
//	raw:  anything else, kept verbatim
type Meta struct {
	Kind   MetaKind
	Active float64
	Total  float64
	Text   string
	Data   map[string]interface{}
}

func PairMeta(active, total float64) Meta {
	return Meta{Kind: MetaPair, Active: active, Total: total}
}

func NoteMeta(text string) Meta {
	return Meta{Kind: MetaNote, Text: text}
}

// ParseMeta classifies a decoded JSON object. A payload carrying numeric "active" and
// "total" keys is a pair; one carrying only "note" is a note; anything else is raw.
func ParseMeta(data map[string]interface{}) Meta {
	if len(data) == 0 {
		return Meta{}
	}
	note, _ := data["note"].(string)
	active, okA := toFloat(data["active"])
	total, okT := toFloat(data["total"])
	if okA && okT {
		return Meta{Kind: MetaPair, Active: active, Total: total, Text: note, Data: data}
	}
	if _, ok := data["note"]; ok && len(data) == 1 {
		return Meta{Kind: MetaNote, Text: note, Data: data}
	}
	return Meta{Kind: MetaRaw, Text: note, Data: data}
}

// Percent returns active/total*100 for pair metas with a positive total.
func (m Meta) Percent() (float64, bool) {
	if m.Kind != MetaPair || !isFinite(m.Active) || !isFinite(m.Total) || m.Total <= 0 {
		return 0, false
	}
	return m.Active / m.Total * 100, true
}

func (m Meta) IsZero() bool {
	return m.Kind == MetaNone
}

// Map returns the flat wire shape of m.
func (m Meta) Map() map[string]interface{} {
	switch m.Kind {
	case MetaPair:
		out := make(map[string]interface{}, len(m.Data)+3)
		for k, v := range m.Data {
			out[k] = v
		}
		out["active"] = m.Active
		out["total"] = m.Total
		if m.Text != "" {
			out["note"] = m.Text
		}
		return out
	case MetaNote:
		return map[string]interface{}{"note": m.Text}
	case MetaRaw:
		return m.Data
	default:
		return nil
	}
}

func (m Meta) MarshalJSON() ([]byte, error) {
	data := m.Map()
	if data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(data)
}

func (m *Meta) UnmarshalJSON(b []byte) error {
	var data map[string]interface{}
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	*m = ParseMeta(data)
	return nil
}

// toFloat coerces JSON numbers and numeric strings.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, isFinite(n)
	case float32:
		return float64(n), isFinite(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil && isFinite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%")), 64)
		return f, err == nil && isFinite(f)
	default:
		return 0, false
	}
}
