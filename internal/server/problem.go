package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 responses.
const (
	ProblemTypeNotFound     = "https://heartbeat.dev/problems/not-found"
	ProblemTypeBadRequest   = "https://heartbeat.dev/problems/bad-request"
	ProblemTypeInternal     = "https://heartbeat.dev/problems/internal-error"
	ProblemTypeUnauthorized = "https://heartbeat.dev/problems/unauthorized"
	ProblemTypeRateLimited  = "https://heartbeat.dev/problems/rate-limited"
	ProblemTypeUnavailable  = "https://heartbeat.dev/problems/unavailable"
	ProblemTypeConflict     = "https://heartbeat.dev/problems/conflict"
)

// Problem is an RFC 7807 Problem Details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes p as application/problem+json.
func WriteProblem(w http.ResponseWriter, p Problem) {
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func problem(w http.ResponseWriter, typ string, status int, detail, instance string) {
	WriteProblem(w, Problem{Type: typ, Status: status, Detail: detail, Instance: instance})
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeNotFound, http.StatusNotFound, detail, instance)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeBadRequest, http.StatusBadRequest, detail, instance)
}

// Unauthorized writes a 401 problem with a Bearer challenge.
func Unauthorized(w http.ResponseWriter, detail, instance string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="heartbeat"`)
	problem(w, ProblemTypeUnauthorized, http.StatusUnauthorized, detail, instance)
}

// Conflict writes a 409 problem.
func Conflict(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeConflict, http.StatusConflict, detail, instance)
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeInternal, http.StatusInternalServerError, detail, instance)
}

// RateLimited writes a 429 problem.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeRateLimited, http.StatusTooManyRequests, detail, instance)
}

// Unavailable writes a 503 problem.
func Unavailable(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeUnavailable, http.StatusServiceUnavailable, detail, instance)
}
