package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Shape names the envelope a list response arrived in
type Shape int

const (
	// ShapeUnrecognized is anything else; it decodes to no items
	ShapeUnrecognized Shape = iota
	// ShapeNestedSuccess is {"success":..,"data":{"data":{"<key>":[..]}}} or data.data as the array
	ShapeNestedSuccess
	// ShapeFlat is {"data":{"<key>":[..]}}, {"data":[..]} or {"<key>":[..]}
	ShapeFlat
	// ShapeBareArray is a top level array
	ShapeBareArray
)

func (s Shape) String() string {
	switch s {
	case ShapeNestedSuccess:
		return "nested_success"
	case ShapeFlat:
		return "flat"
	case ShapeBareArray:
		return "bare_array"
	default:
		return "unrecognized"
	}
}

// Envelope is a list response normalized once at the edge
type Envelope struct {
	Shape Shape
	Items []json.RawMessage
	// HasMore is the server's explicit "more pages" signal, nil when it sent none
	HasMore *bool
}

type object = map[string]json.RawMessage

// DecodeList finds the item array named key in body, whatever envelope wraps it
func DecodeList(body []byte, key string) Envelope {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Envelope{}
	}
	if body[0] == '[' {
		if items, ok := asArray(body); ok {
			return Envelope{Shape: ShapeBareArray, Items: items}
		}
		return Envelope{}
	}

	top, ok := asObject(body)
	if !ok {
		return Envelope{}
	}
	if data, ok := asObject(top["data"]); ok {
		if inner, ok := asObject(data["data"]); ok {
			if items, ok := asArray(inner[key]); ok {
				return Envelope{Shape: ShapeNestedSuccess, Items: items, HasMore: firstHasMore(inner, data, top)}
			}
		}
		if items, ok := asArray(data["data"]); ok {
			return Envelope{Shape: ShapeNestedSuccess, Items: items, HasMore: firstHasMore(data, top)}
		}
		if items, ok := asArray(data[key]); ok {
			return Envelope{Shape: ShapeFlat, Items: items, HasMore: firstHasMore(data, top)}
		}
	}
	if items, ok := asArray(top["data"]); ok {
		return Envelope{Shape: ShapeFlat, Items: items, HasMore: firstHasMore(top)}
	}
	if items, ok := asArray(top[key]); ok {
		return Envelope{Shape: ShapeFlat, Items: items, HasMore: firstHasMore(top)}
	}
	return Envelope{}
}

// DecodeObject finds the single record named key in a write response
// It tries data.data.<key>, data.<key>, data, <key> and finally the body itself; ok is false when none is an object
func DecodeObject(body []byte, key string) (json.RawMessage, bool) {
	top, ok := asObject(bytes.TrimSpace(body))
	if !ok {
		return nil, false
	}
	if data, ok := asObject(top["data"]); ok {
		if inner, ok := asObject(data["data"]); ok {
			if rec, ok := asObject(inner[key]); ok {
				return raw(rec), true
			}
			return raw(inner), true
		}
		if rec, ok := asObject(data[key]); ok {
			return raw(rec), true
		}
		return raw(data), true
	}
	if rec, ok := asObject(top[key]); ok {
		return raw(rec), true
	}
	return raw(top), true
}

// Field returns a top level scalar of a write response, looking through data and data.data too
func Field(body []byte, name string) (json.RawMessage, bool) {
	top, ok := asObject(bytes.TrimSpace(body))
	if !ok {
		return nil, false
	}
	for cur := top; cur != nil; {
		if v, ok := cur[name]; ok && !isNull(v) {
			return v, true
		}
		next, ok := asObject(cur["data"])
		if !ok {
			break
		}
		cur = next
	}
	return nil, false
}

func asObject(b json.RawMessage) (object, bool) {
	if len(b) == 0 || b[0] != '{' {
		return nil, false
	}
	var o object
	if json.Unmarshal(b, &o) != nil {
		return nil, false
	}
	return o, true
}

func asArray(b json.RawMessage) ([]json.RawMessage, bool) {
	if len(b) == 0 || b[0] != '[' {
		return nil, false
	}
	var a []json.RawMessage
	if json.Unmarshal(b, &a) != nil {
		return nil, false
	}
	return a, true
}

func isNull(b json.RawMessage) bool { return len(b) == 0 || string(b) == "null" }

func raw(o object) json.RawMessage {
	b, _ := json.Marshal(o)
	return b
}

var hasMoreKeys = []string{"has_more", "hasMore", "has_next", "hasNext", "hasNextPage"}

// firstHasMore reads the explicit pagination signal from the innermost container that has one
func firstHasMore(containers ...object) *bool {
	for _, c := range containers {
		if v := hasMoreIn(c); v != nil {
			return v
		}
		if p, ok := asObject(c["pagination"]); ok {
			if v := hasMoreIn(p); v != nil {
				return v
			}
			if v := pagesLeft(p); v != nil {
				return v
			}
		}
	}
	return nil
}

func hasMoreIn(o object) *bool {
	for _, k := range hasMoreKeys {
		var b bool
		if v, ok := o[k]; ok && json.Unmarshal(v, &b) == nil {
			return &b
		}
	}
	return nil
}

func pagesLeft(p object) *bool {
	cur, ok1 := intField(p, "current_page", "currentPage", "page")
	total, ok2 := intField(p, "total_pages", "totalPages")
	if !ok1 || !ok2 {
		return nil
	}
	more := cur < total
	return &more
}

func intField(o object, keys ...string) (int64, bool) {
	for _, k := range keys {
		v, ok := o[k]
		if !ok {
			continue
		}
		var n json.Number
		if json.Unmarshal(v, &n) == nil {
			if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
				return i, true
			}
		}
	}
	return 0, false
}
