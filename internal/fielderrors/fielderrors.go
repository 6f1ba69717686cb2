// Package fielderrors normalizes backend validation-error payloads into a
// stable field-error map and a single display message.
//
// The wire shape is an object with optional code, message and detail
// fields, where detail is either a plain string or an ordered sequence of
// {loc, msg} items (loc is a path of strings and array indexes rooted at
// a "body" sentinel). Both extractors are total: any unrecognized shape
// degrades to the caller's fallback or an empty map, never an error.
package fielderrors

import (
	"encoding/json"
	"errors"
	"strings"
)

// bodySentinel is the root segment validation locations start with; it
// never names a field.
const bodySentinel = "body"

// transportPlaceholders are generic messages transport layers substitute
// for a real server response. They carry no information, so Message skips
// them in favor of the fallback.
var transportPlaceholders = map[string]bool{
	"network error":   true,
	"failed to fetch": true,
	"load failed":     true,
}

// fieldNameOverrides pins the camelCase form of known multi-word fields.
// Anything not listed goes through the generic underscore-to-camel rule.
var fieldNameOverrides = map[string]string{
	"budget_type":                "budgetType",
	"budget_amount":              "budgetAmount",
	"voting_deadline":            "votingDeadline",
	"participant_count_estimate": "participantCountEstimate",
	"location_region":            "locationRegion",
	"invite_code":                "inviteCode",
	"avatar_url":                 "avatarUrl",
}

// Item is one entry of a structured validation detail. It marshals to the
// backend's {loc, msg} shape and unmarshals both the loc/msg and
// location/message spellings.
type Item struct {
	Loc []any
	Msg string
}

// MarshalJSON emits the canonical {loc, msg} form.
func (it Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}{Loc: it.Loc, Msg: it.Msg})
}

// UnmarshalJSON accepts either field spelling.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Loc      []any  `json:"loc"`
		Location []any  `json:"location"`
		Msg      string `json:"msg"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	it.Loc = raw.Loc
	if it.Loc == nil {
		it.Loc = raw.Location
	}
	it.Msg = raw.Msg
	if it.Msg == "" {
		it.Msg = raw.Message
	}
	return nil
}

// payload is the top-level backend error object. Detail is deferred so a
// string and an array shape can both be handled.
type payload struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// Message extracts the most specific human-readable message from an error
// body. Precedence: structured detail (string, or the first item's
// message), then the top-level message unless it is a transport
// placeholder, then the fallback.
func Message(body []byte, fallback string) string {
	if msg, ok := messageFromBody(body); ok {
		return msg
	}
	return fallback
}

// MessageFromError is Message for Go errors. Errors that carry a response
// body (see ResponseCarrier) are unwrapped first; otherwise the error
// text itself is used before the fallback.
func MessageFromError(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var carrier ResponseCarrier
	if errors.As(err, &carrier) {
		if msg, ok := messageFromBody(carrier.ResponseBody()); ok {
			return msg
		}
	}
	if text := strings.TrimSpace(err.Error()); text != "" {
		return text
	}
	return fallback
}

// ResponseCarrier is implemented by errors that retain the raw response
// body of a failed request.
type ResponseCarrier interface {
	ResponseBody() []byte
}

func messageFromBody(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", false
	}

	if len(p.Detail) > 0 {
		var detailText string
		if err := json.Unmarshal(p.Detail, &detailText); err == nil && detailText != "" {
			return detailText, true
		}
		var items []Item
		if err := json.Unmarshal(p.Detail, &items); err == nil {
			for _, item := range items {
				if item.Msg != "" {
					return item.Msg, true
				}
			}
		}
	}

	if p.Message != "" && !transportPlaceholders[strings.ToLower(p.Message)] {
		return p.Message, true
	}
	return "", false
}

// Fields extracts a field-error map from an error body: one entry per
// structured detail item, keyed by the camelCase field name. Returns an
// empty map for any non-conforming shape.
func Fields(body []byte) map[string]string {
	fields := make(map[string]string)
	if len(body) == 0 {
		return fields
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil || len(p.Detail) == 0 {
		return fields
	}
	var items []Item
	if err := json.Unmarshal(p.Detail, &items); err != nil {
		// A string detail is a message, not field-structured.
		return fields
	}

	for _, item := range items {
		key := fieldKey(item.Loc)
		if key == "" {
			continue
		}
		if _, exists := fields[key]; exists {
			continue
		}
		fields[key] = item.Msg
	}
	return fields
}

// FieldsFromError is Fields for Go errors carrying a response body.
func FieldsFromError(err error) map[string]string {
	var carrier ResponseCarrier
	if errors.As(err, &carrier) {
		return Fields(carrier.ResponseBody())
	}
	return map[string]string{}
}

// fieldKey resolves the last string element of a location path, skipping
// the body sentinel, and remaps it to camelCase. Empty when the path
// names no field.
func fieldKey(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		segment, ok := loc[i].(string)
		if !ok || segment == "" || segment == bodySentinel {
			continue
		}
		return camelCase(segment)
	}
	return ""
}

// camelCase converts a snake_case field name to camelCase, preferring the
// override table for known fields.
func camelCase(name string) string {
	if mapped, ok := fieldNameOverrides[name]; ok {
		return mapped
	}
	parts := strings.Split(name, "_")
	var b strings.Builder
	first := true
	for _, part := range parts {
		if part == "" {
			continue
		}
		if first {
			b.WriteString(part)
			first = false
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
