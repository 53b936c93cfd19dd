// Package command turns a POST /command body into the key/value mapping echoed back
// to the caller. Parsing never fails: anything unusable becomes an empty mapping.
package command

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Source reports which decoder produced a payload.
type Source string

const (
	SourceJSON  Source = "json"
	SourceForm  Source = "form"
	SourceEmpty Source = "empty"
)

// DefaultMaxBodyBytes caps how much of a command body is read.
const DefaultMaxBodyBytes int64 = 1 << 20

// Parse reads r's body and decodes it as a JSON object, falling back to form data.
// The returned map is never nil. Bodies larger than maxBytes are truncated, which
// normally makes them undecodable and therefore empty.
func Parse(r *http.Request, maxBytes int64) (map[string]any, Source) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
		if err == nil {
			body = b
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if isJSONType(mediaType) {
		if m, ok := decodeObject(body); ok && len(m) > 0 {
			return m, SourceJSON
		}
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		if m := decodeURLEncoded(body); len(m) > 0 {
			return m, SourceForm
		}
	case "multipart/form-data":
		if m := decodeMultipart(r, body, maxBytes); len(m) > 0 {
			return m, SourceForm
		}
	}
	return map[string]any{}, SourceEmpty
}

// Name returns the "command" field of a payload, or "" if absent or not a string.
func Name(payload map[string]any) string {
	if v, ok := payload["command"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// isJSONType accepts JSON media types and a missing Content-Type.
func isJSONType(mediaType string) bool {
	return mediaType == "" || mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// decodeObject decodes exactly one JSON object. Numbers keep their literal form.
func decodeObject(body []byte) (map[string]any, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return m, true
}

// decodeURLEncoded keeps the first value of each key. Malformed pairs are skipped.
func decodeURLEncoded(body []byte) map[string]any {
	values, _ := url.ParseQuery(string(body))
	return firstValues(values)
}

func decodeMultipart(r *http.Request, body []byte, maxBytes int64) map[string]any {
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err := r.ParseMultipartForm(maxBytes); err != nil || r.MultipartForm == nil {
		return nil
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	return firstValues(r.MultipartForm.Value)
}

func firstValues(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
