package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the coordinator's HTTP response envelope: every endpoint
// returns one of these, success or failure, so clients have a single
// shape to parse. Grounded on
// _examples/wilke-GoWe/internal/server/response.go's envelope.
type Response struct {
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

// APIError is the error shape nested in a failed Response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp Response) {
	resp.RequestID = requestIDFrom(r)
	resp.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func respondOK(w http.ResponseWriter, r *http.Request, data any) {
	respondJSON(w, r, http.StatusOK, Response{Status: "ok", Data: data})
}

func respondCreated(w http.ResponseWriter, r *http.Request, data any) {
	respondJSON(w, r, http.StatusCreated, Response{Status: "ok", Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, Response{Status: "error", Error: &APIError{Code: code, Message: message}})
}
