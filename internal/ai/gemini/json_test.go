package gemini

import (
	"errors"
	"net/http"
	"testing"

	"google.golang.org/genai"
)

func TestExtractJSONStripsFences(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced no lang", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"backticks", "`{\"a\": 1}`", `{"a": 1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractJSON(tc.raw); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUnmarshalLenientRepairsSyntaxErrors(t *testing.T) {
	var data map[string]any
	if err := unmarshalLenient([]byte(`{"a": 1,}`), &data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["a"] != float64(1) {
		t.Fatalf("unexpected value: %v", data["a"])
	}
}

func TestClampScore(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{-10, 0},
		{0, 0},
		{55.5, 55.5},
		{100, 100},
		{140, 100},
	}
	for _, tc := range cases {
		if got := clampScore(tc.in); got != tc.want {
			t.Fatalf("clampScore(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestIsTemporary(t *testing.T) {
	if !isTemporary(genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}) {
		t.Fatalf("quota errors are retryable")
	}
	if !isTemporary(genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}) {
		t.Fatalf("server errors are retryable")
	}
	if isTemporary(genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}) {
		t.Fatalf("client mistakes are not retryable")
	}
	if isTemporary(errors.New("plain failure")) {
		t.Fatalf("non-api errors are not retryable")
	}
}
