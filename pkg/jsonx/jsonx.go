// Package jsonx recovers JSON documents from free-form model replies.
package jsonx

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no decodable JSON span exists in a reply.
var ErrNoJSON = errors.New("no json found in model output")

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)\s//[^"\n]*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// Sanitize removes code fences, comments and trailing commas from a model reply
func Sanitize(raw string) string {
	raw = StripFences(raw)

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	return strings.TrimSpace(raw)
}

// StripFences removes a surrounding ```lang ... ``` block, keeping any text around it out.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "```")
	if start < 0 {
		return raw
	}
	body := raw[start+3:]
	// drop the language tag line
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(strings.Trim(body, "`"))
}

// ExtractObject returns the span from the first '{' to the last '}'
func ExtractObject(raw string) (string, bool) {
	return span(raw, '{', '}')
}

// ExtractArray returns the span from the first '[' to the last ']'
func ExtractArray(raw string) (string, bool) {
	return span(raw, '[', ']')
}

func span(raw string, left, right byte) (string, bool) {
	start := strings.IndexByte(raw, left)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(raw, right)
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// Decode unmarshals the JSON document found in raw into v, which must be a pointer.
//
// It tries, in order: raw as is, the sanitized reply, then the outermost
// object or array span of the sanitized reply matching the kind of v.
func Decode(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		return ErrNoJSON
	}
	target := reflect.ValueOf(v)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return errors.New("jsonx: decode target must be a non-nil pointer")
	}
	try := func(s string) bool {
		target.Elem().Set(reflect.Zero(target.Elem().Type()))
		return json.Unmarshal([]byte(s), v) == nil
	}

	if try(raw) {
		return nil
	}
	clean := Sanitize(raw)
	if try(clean) {
		return nil
	}

	extractors := []func(string) (string, bool){ExtractObject, ExtractArray}
	switch target.Elem().Kind() {
	case reflect.Slice, reflect.Array:
		extractors[0], extractors[1] = extractors[1], extractors[0]
	}
	for _, extract := range extractors {
		if s, ok := extract(clean); ok && try(s) {
			return nil
		}
	}
	target.Elem().Set(reflect.Zero(target.Elem().Type()))
	return ErrNoJSON
}
