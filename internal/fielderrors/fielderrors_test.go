package fielderrors

import (
	"errors"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		fallback string
		want     string
	}{
		{
			name:     "string detail wins",
			body:     `{"message": "Validation failed", "detail": "plain string"}`,
			fallback: "fallback",
			want:     "plain string",
		},
		{
			name:     "first structured detail message wins",
			body:     `{"detail": [{"loc": ["body", "name"], "msg": "Name is required"}, {"loc": ["body", "email"], "msg": "Invalid email"}]}`,
			fallback: "fallback",
			want:     "Name is required",
		},
		{
			name:     "top-level message when no detail",
			body:     `{"message": "Room not found"}`,
			fallback: "fallback",
			want:     "Room not found",
		},
		{
			name:     "transport placeholder is skipped",
			body:     `{"message": "Network Error"}`,
			fallback: "Something went wrong",
			want:     "Something went wrong",
		},
		{
			name:     "non-json body",
			body:     `<html>502 Bad Gateway</html>`,
			fallback: "fallback",
			want:     "fallback",
		},
		{
			name:     "empty body",
			body:     "",
			fallback: "fallback",
			want:     "fallback",
		},
		{
			name:     "empty object",
			body:     `{}`,
			fallback: "fallback",
			want:     "fallback",
		},
		{
			name:     "detail items without messages fall through",
			body:     `{"detail": [{"loc": ["body", "name"]}], "message": "Validation failed"}`,
			fallback: "fallback",
			want:     "Validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message([]byte(tt.body), tt.fallback); got != tt.want {
				t.Errorf("Message = %q, want %q", got, tt.want)
			}
		})
	}
}

type bodyError struct {
	body []byte
}

func (e *bodyError) Error() string        { return "request failed" }
func (e *bodyError) ResponseBody() []byte { return e.body }

func TestMessageFromError(t *testing.T) {
	t.Run("unwraps carried body", func(t *testing.T) {
		err := &bodyError{body: []byte(`{"detail": "Room not found with this invite code"}`)}
		if got := MessageFromError(err, "fallback"); got != "Room not found with this invite code" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("falls back to error text", func(t *testing.T) {
		err := errors.New("connection refused")
		if got := MessageFromError(err, "fallback"); got != "connection refused" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("wrapped carrier is found", func(t *testing.T) {
		inner := &bodyError{body: []byte(`{"message": "Forbidden"}`)}
		err := errors.Join(errors.New("outer"), inner)
		if got := MessageFromError(err, "fallback"); got != "Forbidden" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("nil error", func(t *testing.T) {
		if got := MessageFromError(nil, "fallback"); got != "fallback" {
			t.Errorf("got %q", got)
		}
	})
}

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		want map[string]string
	}{
		{
			name: "snake_case key remapped",
			body: `{"detail": [{"loc": ["body", "budget_type"], "msg": "Invalid"}]}`,
			want: map[string]string{"budgetType": "Invalid"},
		},
		{
			name: "multiple fields",
			body: `{"detail": [
				{"loc": ["body", "name"], "msg": "Name is required"},
				{"loc": ["body", "voting_deadline"], "msg": "Must be in the future"}
			]}`,
			want: map[string]string{
				"name":           "Name is required",
				"votingDeadline": "Must be in the future",
			},
		},
		{
			name: "array index in location is skipped",
			body: `{"detail": [{"loc": ["body", "date_options", 0, "start_time"], "msg": "Invalid time"}]}`,
			want: map[string]string{"startTime": "Invalid time"},
		},
		{
			name: "generic snake to camel rule",
			body: `{"detail": [{"loc": ["body", "some_new_field"], "msg": "Bad"}]}`,
			want: map[string]string{"someNewField": "Bad"},
		},
		{
			name: "location/message spelling accepted",
			body: `{"detail": [{"location": ["body", "invite_code"], "message": "Invalid invite code"}]}`,
			want: map[string]string{"inviteCode": "Invalid invite code"},
		},
		{
			name: "body-only location is skipped",
			body: `{"detail": [{"loc": ["body"], "msg": "Invalid"}]}`,
			want: map[string]string{},
		},
		{
			name: "item without location is skipped",
			body: `{"detail": [{"msg": "Invalid"}]}`,
			want: map[string]string{},
		},
		{
			name: "string detail is not field-structured",
			body: `{"detail": "plain string"}`,
			want: map[string]string{},
		},
		{
			name: "first occurrence of a key wins",
			body: `{"detail": [
				{"loc": ["body", "name"], "msg": "first"},
				{"loc": ["body", "name"], "msg": "second"}
			]}`,
			want: map[string]string{"name": "first"},
		},
		{
			name: "non-json body",
			body: `not json`,
			want: map[string]string{},
		},
		{
			name: "empty body",
			body: "",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fields([]byte(tt.body))
			if len(got) != len(tt.want) {
				t.Fatalf("Fields = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Fields[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestStringDetailMessageVsFields(t *testing.T) {
	// The same payload yields a message but no field map.
	body := []byte(`{"detail": "plain string"}`)

	if got := Message(body, "fallback"); got != "plain string" {
		t.Errorf("Message = %q, want plain string", got)
	}
	if got := Fields(body); len(got) != 0 {
		t.Errorf("Fields = %v, want empty", got)
	}
}

func TestItemRoundTrip(t *testing.T) {
	item := Item{Loc: []any{"body", "budget_type"}, Msg: "Invalid"}

	data, err := item.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	var decoded Item
	if err := decoded.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if decoded.Msg != "Invalid" || len(decoded.Loc) != 2 {
		t.Errorf("round trip lost data: %+v", decoded)
	}
}
