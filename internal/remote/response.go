package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Verdict is the normalized meaning of a remote response body.
type Verdict int

const (
	VerdictMalformed Verdict = iota
	VerdictSuccess
	VerdictRejected
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictRejected:
		return "rejected"
	default:
		return "malformed"
	}
}

// Response is the tagged result of one remote call.
type Response struct {
	Verdict    Verdict
	StatusCode int
	ID         string
	Message    string
}

func (r Response) OK() bool {
	return r.Verdict == VerdictSuccess && r.StatusCode < 400
}

var (
	successWords  = map[string]bool{"success": true, "ok": true, "done": true, "updated": true, "created": true}
	rejectedWords = map[string]bool{"error": true, "fail": true, "failed": true, "failure": true, "rejected": true, "invalid": true}
)

// Normalize maps the remote's ad-hoc bodies onto a Verdict. Three shapes are understood:
// plain text "Success", JSON {"success": bool}, and JSON {"status": "..."}.
// Anything else is VerdictMalformed.
func Normalize(statusCode int, body []byte) Response {
	resp := Response{StatusCode: statusCode}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		resp.Message = "empty response body"
		return resp
	}

	switch trimmed[0] {
	case '{':
		return normalizeObject(resp, trimmed)
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			resp.Message = fmt.Sprintf("unparseable response: %v", err)
			return resp
		}
		return normalizeText(resp, s)
	default:
		return normalizeText(resp, string(trimmed))
	}
}

func normalizeText(resp Response, text string) Response {
	text = strings.TrimSpace(text)
	resp.Message = text
	word := strings.ToLower(text)
	if i := strings.IndexAny(word, " :.,!"); i >= 0 {
		word = word[:i]
	}
	switch {
	case successWords[word] && strings.EqualFold(strings.TrimRight(text, ".! "), word):
		resp.Verdict = VerdictSuccess
	case rejectedWords[word]:
		resp.Verdict = VerdictRejected
	default:
		resp.Verdict = VerdictMalformed
	}
	return resp
}

func normalizeObject(resp Response, body []byte) Response {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		resp.Message = fmt.Sprintf("unparseable response: %v", err)
		return resp
	}

	resp.ID = stringField(obj, "id")
	resp.Message = stringField(obj, "message")
	if resp.Message == "" {
		resp.Message = stringField(obj, "error")
	}

	if v, ok := obj["success"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			resp.Verdict = VerdictMalformed
			return resp
		}
		if b {
			resp.Verdict = VerdictSuccess
		} else {
			resp.Verdict = VerdictRejected
		}
		return resp
	}

	if v, ok := obj["status"].(string); ok {
		s := strings.ToLower(strings.TrimSpace(v))
		switch {
		case successWords[s]:
			resp.Verdict = VerdictSuccess
		case rejectedWords[s]:
			resp.Verdict = VerdictRejected
		default:
			resp.Verdict = VerdictMalformed
		}
		return resp
	}

	resp.Verdict = VerdictMalformed
	return resp
}

func stringField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
