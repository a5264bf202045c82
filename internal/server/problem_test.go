package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteProblem(t *testing.T) {
	w := httptest.NewRecorder()

	WriteProblem(w, Problem{
		Type:     ProblemTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   "session abc not found",
		Instance: "/api/v1/sessions/abc/history",
	})

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content-type = %q, want %q", ct, "application/problem+json")
	}

	var p Problem
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if p.Type != ProblemTypeNotFound {
		t.Errorf("type = %q, want %q", p.Type, ProblemTypeNotFound)
	}
	if p.Status != 404 {
		t.Errorf("status = %d, want 404", p.Status)
	}
	if p.Detail != "session abc not found" {
		t.Errorf("detail = %q, want %q", p.Detail, "session abc not found")
	}
	if p.Instance != "/api/v1/sessions/abc/history" {
		t.Errorf("instance = %q, want %q", p.Instance, "/api/v1/sessions/abc/history")
	}
}

func TestProblemWriters(t *testing.T) {
	tests := []struct {
		name      string
		write     func(w http.ResponseWriter, detail, instance string)
		wantCode  int
		wantType  string
		wantTitle string
	}{
		{"not found", NotFound, http.StatusNotFound, ProblemTypeNotFound, "Not Found"},
		{"bad request", BadRequest, http.StatusBadRequest, ProblemTypeBadRequest, "Bad Request"},
		{"internal", InternalError, http.StatusInternalServerError, ProblemTypeInternal, "Internal Server Error"},
		{"unauthorized", Unauthorized, http.StatusUnauthorized, ProblemTypeUnauthorized, "Unauthorized"},
		{"unavailable", Unavailable, http.StatusServiceUnavailable, ProblemTypeUnavailable, "Service Unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.write(w, "detail", "/test")

			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantCode)
			}
			var p Problem
			if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if p.Type != tc.wantType {
				t.Errorf("type = %q, want %q", p.Type, tc.wantType)
			}
			if p.Title != tc.wantTitle {
				t.Errorf("title = %q, want %q", p.Title, tc.wantTitle)
			}
		})
	}
}

func TestWriteProblem_OmitsEmptyOptionalFields(t *testing.T) {
	w := httptest.NewRecorder()

	WriteProblem(w, Problem{
		Type:   ProblemTypeInternal,
		Title:  "Internal Server Error",
		Status: 500,
	})

	var raw map[string]interface{}
	json.NewDecoder(w.Body).Decode(&raw)

	if _, ok := raw["detail"]; ok {
		t.Error("expected detail to be omitted when empty")
	}
	if _, ok := raw["instance"]; ok {
		t.Error("expected instance to be omitted when empty")
	}
}
