package detection

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/codes"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/jsonx"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

// rawExcerptLen caps the reply text kept in a degraded result
const rawExcerptLen = 200

// ErrUnparseable marks a reply from which no item could be recovered.
var ErrUnparseable = errors.New("structured output unparseable")

// text accepts a JSON string, number, boolean, null or a list of those.
// Lists are joined with ", "; objects keep their compact JSON text.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case 'n':
		*t = ""
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
	case '[':
		var items []text
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if s := strings.TrimSpace(string(it)); s != "" {
				parts = append(parts, s)
			}
		}
		*t = text(strings.Join(parts, ", "))
	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return err
		}
		*t = text(buf.String())
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*t = text(string(data))
	}
	return nil
}

type featureReply struct {
	Color           text `json:"color"`
	Motif           text `json:"motif"`
	Characteristics text `json:"characteristics"`
}

type itemReply struct {
	ItemCode       text         `json:"item_code"`
	VisualFeatures featureReply `json:"visual_features"`
}

func (r itemReply) empty() bool {
	return r.ItemCode == "" && r.VisualFeatures == (featureReply{})
}

func (r itemReply) result() types.AnalysisResult {
	return types.AnalysisResult{
		ItemCode: itemCode(string(r.ItemCode)),
		VisualFeatures: types.VisualFeatures{
			Color:           orUnknown(string(r.VisualFeatures.Color)),
			Motif:           orUnknown(string(r.VisualFeatures.Motif)),
			Characteristics: orUnknown(string(r.VisualFeatures.Characteristics)),
		},
	}
}

// ParseItem decodes a single-item reply. When nothing can be recovered it
// returns a degraded result carrying the start of the reply, together with
// an error wrapping ErrUnparseable.
func ParseItem(raw string) (types.AnalysisResult, error) {
	var reply itemReply
	if err := jsonx.Decode(raw, &reply); err != nil || reply.empty() {
		return Unparseable(raw), ErrUnparseable
	}
	return reply.result(), nil
}

// ParseItems decodes a whole-image reply: a JSON array, an object wrapping
// an array (e.g. {"items":[...]}), or a single item object. Array entries
// are decoded one at a time; an entry that cannot be decoded becomes a
// degraded result and its siblings are kept.
func ParseItems(raw string) ([]types.AnalysisResult, error) {
	var list []json.RawMessage
	if err := jsonx.Decode(raw, &list); err == nil && allObjects(list) {
		results := make([]types.AnalysisResult, 0, len(list))
		for _, entry := range list {
			var r itemReply
			if err := json.Unmarshal(entry, &r); err != nil {
				results = append(results, Unparseable(string(entry)))
				continue
			}
			if !r.empty() {
				results = append(results, r.result())
			}
		}
		return results, nil
	}

	var single itemReply
	if err := jsonx.Decode(raw, &single); err == nil && !single.empty() {
		return []types.AnalysisResult{single.result()}, nil
	}
	return nil, ErrUnparseable
}

// allObjects rejects arrays of plain values, such as a feature list picked
// out of a single item object.
func allObjects(list []json.RawMessage) bool {
	for _, entry := range list {
		if e := bytes.TrimSpace(entry); len(e) == 0 || e[0] != '{' {
			return false
		}
	}
	return true
}

// Unparseable builds the degraded result for a reply that is not JSON.
func Unparseable(raw string) types.AnalysisResult {
	res := types.DegradedResult(types.UnknownCode, ErrUnparseable.Error())
	res.VisualFeatures.Characteristics = excerpt(raw, rawExcerptLen)
	return res
}

// MergeCode applies the crop's OCR code, which wins over the model whenever known.
func MergeCode(res types.AnalysisResult, crop types.DetectedCrop) types.AnalysisResult {
	if crop.HasCode() {
		res.ItemCode = crop.OCRCode
	}
	return res
}

func itemCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, types.UnknownCode) || strings.EqualFold(s, "detected_code_or_unknown") {
		return types.UnknownCode
	}
	if code, ok := codes.Normalize(s); ok {
		return code
	}
	return s
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return types.UnknownCode
	}
	return s
}

func excerpt(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
