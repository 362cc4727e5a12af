package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/odvcencio/songlist/internal/service"
)

func TestSafeReturnTo(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "/"},
		{in: "/songlists/4", want: "/songlists/4"},
		{in: "/share/abc?stage=1", want: "/share/abc?stage=1"},
		{in: "https://evil.example", want: "/"},
		{in: "//evil.example/path", want: "/"},
		{in: "/\\evil.example", want: "/"},
		{in: "relative/path", want: "/"},
		{in: "/ok\r\nSet-Cookie: x", want: "/"},
	}
	for _, tt := range tests {
		if got := safeReturnTo(tt.in); got != tt.want {
			t.Fatalf("safeReturnTo(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: &testKindError{kind: service.ErrValidation}, want: http.StatusBadRequest},
		{name: "not found", err: &testKindError{kind: service.ErrNotFound}, want: http.StatusNotFound},
		{name: "forbidden", err: &testKindError{kind: service.ErrForbidden}, want: http.StatusForbidden},
		{name: "unauthenticated", err: &testKindError{kind: service.ErrUnauthenticated}, want: http.StatusUnauthorized},
		{name: "conflict", err: &testKindError{kind: service.ErrConflict}, want: http.StatusConflict},
		{name: "unsupported", err: &testKindError{kind: service.ErrUnsupported}, want: http.StatusNotImplemented},
		{name: "wrapped", err: fmt.Errorf("outer: %w", &testKindError{kind: service.ErrNotFound}), want: http.StatusNotFound},
		{name: "unknown", err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), tt.err)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "disk on fire") {
				t.Fatal("internal error details leaked to the client")
			}
		})
	}
}

type testKindError struct {
	kind error
}

func (e *testKindError) Error() string { return "kind: " + e.kind.Error() }
func (e *testKindError) Unwrap() error { return e.kind }

func TestParsePathID(t *testing.T) {
	for _, raw := range []string{"0", "-3", "abc", "9999999999999999999999"} {
		req := httptest.NewRequest(http.MethodGet, "/api/songs/"+raw, nil)
		req.SetPathValue("id", raw)
		rec := httptest.NewRecorder()
		if _, ok := parsePathID(rec, req, "id", "song id"); ok {
			t.Fatalf("parsePathID(%q) accepted invalid id", raw)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("parsePathID(%q) status = %d, want 400", raw, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/songs/42", nil)
	req.SetPathValue("id", "42")
	id, ok := parsePathID(httptest.NewRecorder(), req, "id", "song id")
	if !ok || id != 42 {
		t.Fatalf("parsePathID(42) = %d, %v", id, ok)
	}
}
