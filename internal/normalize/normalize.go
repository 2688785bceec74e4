// Package normalize reduces the varying shapes of an extraction result payload to the
// structured data inside it.
package normalize

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Shape names the rule that produced a normalized value.
type Shape string

// Shapes, in matching order. ShapeVerbatim marks a downloaded body used as-is.
const (
	ShapeResult        Shape = "result"
	ShapeData          Shape = "data"
	ShapeExtractionRun Shape = "extraction_run.result"
	ShapeRun           Shape = "run.result"
	ShapeResultsResult Shape = "results[0].result"
	ShapeResultsData   Shape = "results[0].data"
	ShapePayload       Shape = "payload"
	ShapeVerbatim      Shape = "verbatim"
	ShapeNone          Shape = ""
)

// object is a decoded JSON object with its members left raw.
type object map[string]json.RawMessage

// Payload is a result payload that decoded as a JSON object.
type Payload struct {
	Raw    json.RawMessage
	Fields map[string]json.RawMessage
}

// Matcher recognizes one payload shape.
type Matcher struct {
	Name  string
	Match func(p Payload) (json.RawMessage, Shape, bool)
}

// Matchers is the ordered rule list. The first match wins; values are never merged.
var Matchers = []Matcher{
	{Name: "result", Match: field("result", ShapeResult)},
	{Name: "data", Match: field("data", ShapeData)},
	{Name: "run", Match: matchRun},
	{Name: "results", Match: matchResults},
	{Name: "payload", Match: matchPayload},
}

// Normalize returns the structured data carried by payload and the shape that matched.
// ok is false when nothing matched, including when payload is not a JSON object.
func Normalize(payload json.RawMessage) (json.RawMessage, Shape, bool) {
	obj, ok := decodeObject(payload)
	if !ok {
		return nil, ShapeNone, false
	}
	p := Payload{Raw: bytes.TrimSpace(payload), Fields: obj}
	for _, m := range Matchers {
		if value, shape, ok := m.Match(p); ok {
			return value, shape, true
		}
	}
	return nil, ShapeNone, false
}

// DownloadURL returns the download_url carried by payload, if any.
func DownloadURL(payload json.RawMessage) (string, bool) {
	obj, ok := decodeObject(payload)
	if !ok {
		return "", false
	}
	raw, ok := present(obj, "download_url")
	if !ok {
		return "", false
	}
	var u string
	if err := json.Unmarshal(raw, &u); err != nil {
		return "", false
	}
	u = strings.TrimSpace(u)
	return u, u != ""
}

// Verbatim turns a downloaded body that matched no shape into a result: the body
// itself when it is JSON, otherwise the body as a JSON string. ok is false for an
// empty body.
func Verbatim(body []byte) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}
	if json.Valid(trimmed) {
		if isNull(trimmed) {
			return nil, false
		}
		return json.RawMessage(trimmed), true
	}
	quoted, err := json.Marshal(string(trimmed))
	if err != nil {
		return nil, false
	}
	return quoted, true
}

func field(key string, shape Shape) func(Payload) (json.RawMessage, Shape, bool) {
	return func(p Payload) (json.RawMessage, Shape, bool) {
		if v, ok := present(p.Fields, key); ok {
			return v, shape, true
		}
		return nil, ShapeNone, false
	}
}

func matchRun(p Payload) (json.RawMessage, Shape, bool) {
	for _, c := range []struct {
		key   string
		shape Shape
	}{
		{"extraction_run", ShapeExtractionRun},
		{"run", ShapeRun},
	} {
		raw, ok := present(p.Fields, c.key)
		if !ok {
			continue
		}
		run, ok := decodeObject(raw)
		if !ok {
			continue
		}
		if v, ok := present(run, "result"); ok {
			return v, c.shape, true
		}
	}
	return nil, ShapeNone, false
}

func matchResults(p Payload) (json.RawMessage, Shape, bool) {
	raw, ok := present(p.Fields, "results")
	if !ok {
		return nil, ShapeNone, false
	}
	var results []json.RawMessage
	if err := json.Unmarshal(raw, &results); err != nil || len(results) == 0 {
		return nil, ShapeNone, false
	}
	first, ok := decodeObject(results[0])
	if !ok {
		return nil, ShapeNone, false
	}
	if v, ok := present(first, "result"); ok {
		return v, ShapeResultsResult, true
	}
	if v, ok := present(first, "data"); ok {
		return v, ShapeResultsData, true
	}
	return nil, ShapeNone, false
}

// matchPayload accepts the payload itself, unless it only points at a download.
func matchPayload(p Payload) (json.RawMessage, Shape, bool) {
	if _, ok := present(p.Fields, "download_url"); ok {
		return nil, ShapeNone, false
	}
	return p.Raw, ShapePayload, true
}

// present returns obj[key] when it exists and is not null.
func present(obj object, key string) (json.RawMessage, bool) {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}

func decodeObject(raw []byte) (object, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var obj object
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
