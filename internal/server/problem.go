package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound     = "https://skillpath.dev/problems/not-found"
	ProblemTypeBadRequest   = "https://skillpath.dev/problems/bad-request"
	ProblemTypeInternal     = "https://skillpath.dev/problems/internal-error"
	ProblemTypeUnauthorized = "https://skillpath.dev/problems/unauthorized"
	ProblemTypeUnavailable  = "https://skillpath.dev/problems/unavailable"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func problem(typ string, status int) func(w http.ResponseWriter, detail, instance string) {
	return func(w http.ResponseWriter, detail, instance string) {
		WriteProblem(w, Problem{
			Type:     typ,
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Instance: instance,
		})
	}
}

// Problem writers for the statuses the API returns.
var (
	NotFound      = problem(ProblemTypeNotFound, http.StatusNotFound)
	BadRequest    = problem(ProblemTypeBadRequest, http.StatusBadRequest)
	InternalError = problem(ProblemTypeInternal, http.StatusInternalServerError)
	Unauthorized  = problem(ProblemTypeUnauthorized, http.StatusUnauthorized)
	Unavailable   = problem(ProblemTypeUnavailable, http.StatusServiceUnavailable)
)
