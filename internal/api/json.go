package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"routeplan/internal/model"
	"routeplan/internal/plan"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Mismatches lists the offending assignments of a data integrity fault.
	Mismatches []plan.Mismatch `json:"mismatches,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeProblemBody(w, Problem{Title: title, Status: status, Detail: detail, Instance: instance})
}

func writeProblemBody(w http.ResponseWriter, p Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// writePlanError maps a planning error to its problem response:
// invalid input is 400, a data integrity fault 422, anything else 500.
func writePlanError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *model.ValidationError
	var fault *plan.DataIntegrityFault
	switch {
	case errors.As(err, &ve):
		writeProblem(w, http.StatusBadRequest, "Invalid orders", ve.Error(), r.URL.Path)
	case errors.As(err, &fault):
		writeProblemBody(w, Problem{
			Title:      "Data integrity fault",
			Status:     http.StatusUnprocessableEntity,
			Detail:     fault.Error(),
			Instance:   r.URL.Path,
			Mismatches: fault.Mismatches,
		})
	default:
		writeProblem(w, http.StatusInternalServerError, "Plan failed", err.Error(), r.URL.Path)
	}
}
