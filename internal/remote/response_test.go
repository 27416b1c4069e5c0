package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		verdict Verdict
		id      string
	}{
		{"plain success", 200, "Success", VerdictSuccess, ""},
		{"plain success with newline", 200, "Success\n", VerdictSuccess, ""},
		{"quoted success", 200, `"Success"`, VerdictSuccess, ""},
		{"plain error", 200, "Error: property not found", VerdictRejected, ""},
		{"plain noise", 200, "<html>gateway</html>", VerdictMalformed, ""},
		{"success sentence is ambiguous", 200, "Success maybe later", VerdictMalformed, ""},
		{"empty", 200, "  ", VerdictMalformed, ""},
		{"json success true", 200, `{"success": true, "id": 42}`, VerdictSuccess, "42"},
		{"json success false", 200, `{"success": false, "message": "bad property"}`, VerdictRejected, ""},
		{"json success non-bool", 200, `{"success": "yes"}`, VerdictMalformed, ""},
		{"json status ok", 200, `{"status": "OK", "id": "wo-9"}`, VerdictSuccess, "wo-9"},
		{"json status error", 200, `{"status": "error", "error": "locked"}`, VerdictRejected, ""},
		{"json status unknown", 200, `{"status": "queued"}`, VerdictMalformed, ""},
		{"json no marker", 200, `{"id": 1}`, VerdictMalformed, "1"},
		{"broken json", 200, `{"success": tr`, VerdictMalformed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.code, []byte(tt.body))
			assert.Equal(t, tt.verdict, got.Verdict)
			assert.Equal(t, tt.id, got.ID)
			assert.Equal(t, tt.code, got.StatusCode)
		})
	}
}

func TestResponseOK(t *testing.T) {
	assert.True(t, Response{Verdict: VerdictSuccess, StatusCode: 200}.OK())
	assert.False(t, Response{Verdict: VerdictSuccess, StatusCode: 500}.OK())
	assert.False(t, Response{Verdict: VerdictRejected, StatusCode: 200}.OK())
	assert.False(t, Response{Verdict: VerdictMalformed, StatusCode: 200}.OK())
}
