package command

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantSource  Source
		wantJSON    string
	}{
		{"jsonObject", `{"x": 1, "y": "a"}`, "application/json", SourceJSON, `{"x":1,"y":"a"}`},
		{"jsonCharset", `{"command":"stop"}`, "application/json; charset=utf-8", SourceJSON, `{"command":"stop"}`},
		{"jsonNoContentType", `{"command":"left"}`, "", SourceJSON, `{"command":"left"}`},
		{"jsonVendorType", `{"a":true}`, "application/vnd.rover+json", SourceJSON, `{"a":true}`},
		{"jsonNested", `{"command":"mode_change","opts":{"mode":"assisted","n":[1,2]}}`, "application/json", SourceJSON, `{"command":"mode_change","opts":{"mode":"assisted","n":[1,2]}}`},
		{"jsonBigNumberKept", `{"n": 12345678901234567890}`, "application/json", SourceJSON, `{"n":12345678901234567890}`},
		{"jsonEmptyObject", `{}`, "application/json", SourceEmpty, `{}`},
		{"jsonArray", `[1,2,3]`, "application/json", SourceEmpty, `{}`},
		{"jsonNull", `null`, "application/json", SourceEmpty, `{}`},
		{"jsonTrailingGarbage", `{"a":1} junk`, "application/json", SourceEmpty, `{}`},
		{"jsonMalformed", `{"a":`, "application/json", SourceEmpty, `{}`},
		{"emptyBody", ``, "application/json", SourceEmpty, `{}`},
		{"emptyNoType", ``, "", SourceEmpty, `{}`},
		{"garbageNoType", `not json at all`, "", SourceEmpty, `{}`},
		{"form", `command=forward&speed=3`, "application/x-www-form-urlencoded", SourceForm, `{"command":"forward","speed":"3"}`},
		{"formFirstValueWins", `k=1&k=2`, "application/x-www-form-urlencoded", SourceForm, `{"k":"1"}`},
		{"formEmpty", ``, "application/x-www-form-urlencoded", SourceEmpty, `{}`},
		{"textPlain", `command=forward`, "text/plain", SourceEmpty, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source := Parse(newRequest(tt.body, tt.contentType), 0)

			if got == nil {
				t.Fatal("Parse() returned nil map")
			}
			if source != tt.wantSource {
				t.Errorf("source = %q, want %q", source, tt.wantSource)
			}
			raw, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) != tt.wantJSON {
				t.Errorf("payload = %s, want %s", raw, tt.wantJSON)
			}
		})
	}
}

func TestParse_Multipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("command", "stop")
	_ = mw.WriteField("reason", "manual")
	_ = mw.Close()

	req := newRequest(buf.String(), mw.FormDataContentType())
	got, source := Parse(req, 0)

	if source != SourceForm {
		t.Errorf("source = %q, want form", source)
	}
	if got["command"] != "stop" || got["reason"] != "manual" {
		t.Errorf("payload = %v, want command=stop reason=manual", got)
	}
}

func TestParse_NilBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/command", nil)
	req.Body = nil

	got, source := Parse(req, 0)
	if len(got) != 0 || source != SourceEmpty {
		t.Errorf("Parse(nil body) = %v, %q; want empty", got, source)
	}
}

func TestParse_TruncatedBodyIsEmpty(t *testing.T) {
	body := `{"command":"` + strings.Repeat("a", 64) + `"}`

	got, source := Parse(newRequest(body, "application/json"), 16)
	if len(got) != 0 || source != SourceEmpty {
		t.Errorf("Parse(oversized) = %v, %q; want empty", got, source)
	}
}

func TestName(t *testing.T) {
	tests := []struct {
		payload map[string]any
		want    string
	}{
		{map[string]any{"command": "forward"}, "forward"},
		{map[string]any{"command": "  stop "}, "stop"},
		{map[string]any{"command": 3}, ""},
		{map[string]any{}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Name(tt.payload); got != tt.want {
			t.Errorf("Name(%v) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
