// Package listing models restaurant listing records and fetches them page by
// page from the platform's listing endpoint.
package listing

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Location is a geocoded query point for the listing endpoint.
type Location struct {
	// City is the label written to every row fetched at this point.
	City string

	Lat float64
	Lng float64

	// PlaceID and Address are carried over from place resolution and are
	// informational only.
	PlaceID string
	Address string
}

// Record is one loosely structured restaurant object as returned by the
// listing endpoint. Every field is optional and may be absent or null.
type Record map[string]any

// Lookup walks nested objects along path and returns the value found there.
// It returns nil when any level is missing, null or not an object.
func (r Record) Lookup(path ...string) any {
	var node any = map[string]any(r)
	for _, key := range path {
		var obj map[string]any
		switch v := node.(type) {
		case map[string]any:
			obj = v
		case Record:
			obj = v
		default:
			return nil
		}

		next, ok := obj[key]
		if !ok {
			return nil
		}
		node = next
	}
	return node
}

// Key returns a stable identifier for the restaurant: the listing link, or
// the platform id when no link is present. Empty when neither exists.
func (r Record) Key() string {
	if link := FormatValue(r.Lookup("cta", "link"), ""); link != "" {
		return link
	}
	return FormatValue(r.Lookup("info", "id"), "")
}

// FormatValue renders a decoded JSON value as a single cell. Null and
// unsupported values render as def.
func FormatValue(v any, def string) string {
	switch val := v.(type) {
	case nil:
		return def
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []any:
		return JoinList(val, def)
	case []string:
		return strings.Join(val, ", ")
	default:
		return def
	}
}

// JoinList joins list elements with ", ", keeping empty strings. Null and
// nested elements are skipped. Non-list values render as def.
func JoinList(v any, def string) string {
	switch list := v.(type) {
	case []any:
		parts := make([]string, 0, len(list))
		for _, item := range list {
			switch item.(type) {
			case nil, map[string]any, []any:
				continue
			}
			parts = append(parts, FormatValue(item, ""))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(list, ", ")
	default:
		return def
	}
}
