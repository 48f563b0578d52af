// Package normalize extracts a stable field subset from analysis engine
// responses and re-emits those responses with a record id attached.
package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/and161185/analysis-keeper/internal/model"
)

// AnalysisIDKey is the member injected into responses returned to the caller.
const AnalysisIDKey = "analysis_id"

// Normalize reads file_id, summary and charts[0].url from an engine body.
// It never fails: anything missing or malformed is left nil. ok is false
// when the body could not be read as a JSON object at all.
func Normalize(raw []byte) (n model.Normalized, ok bool) {
	obj, err := ParseObject(raw)
	if err != nil {
		return model.Normalized{}, false
	}
	if v, found := obj.Get("file_id"); found {
		n.FileID = asText(v)
	}
	if v, found := obj.Get("summary"); found {
		n.Summary = asText(v)
	}
	if v, found := obj.Get("charts"); found {
		n.Thumbnail = firstChartURL(v)
	}
	return n, true
}

// InjectID returns raw with analysis_id=id as the first member, all other
// members kept in order. An existing analysis_id member is replaced.
func InjectID(raw []byte, id int64) ([]byte, error) {
	obj, err := ParseObject(raw)
	if err != nil {
		return nil, err
	}
	obj.Prepend(AnalysisIDKey, json.RawMessage(strconv.FormatInt(id, 10)))
	return obj.MarshalJSON()
}

// asText renders strings as-is and other scalars as their JSON text.
// null, objects and arrays carry no usable text.
func asText(v json.RawMessage) *string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return nil
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil
		}
		return &s
	case '{', '[', 'n':
		return nil
	default:
		s := string(v)
		return &s
	}
}

func firstChartURL(v json.RawMessage) *string {
	var charts []json.RawMessage
	if err := json.Unmarshal(v, &charts); err != nil || len(charts) == 0 {
		return nil
	}
	first, err := ParseObject(charts[0])
	if err != nil {
		return nil
	}
	u, found := first.Get("url")
	if !found {
		return nil
	}
	var s string
	if err := json.Unmarshal(u, &s); err != nil {
		return nil
	}
	return &s
}
