package models

import (
	"encoding/json"
	"net/http"
	"time"
)

type ErrorResponse struct {
	Error     string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"-"`
}

func (r *ErrorResponse) MarshalJSON() ([]byte, error) {
	type Alias ErrorResponse
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(r),
		Timestamp: r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func NewErrorResponse(message string, details string) *ErrorResponse {
	return &ErrorResponse{
		Error:     message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// TimestampedStats is a stats snapshot tagged with the time it was computed.
type TimestampedStats struct {
	ContactStats
	Timestamp time.Time `json:"_timestamp"`
}

type ContactPage struct {
	Contacts   []Contact         `json:"contacts"`
	TotalCount int64             `json:"totalCount"`
	Stats      *TimestampedStats `json:"stats,omitempty"`
}

type InsertResponse struct {
	Inserted int    `json:"inserted"`
	ID       string `json:"id,omitempty"`
}

type UpdateResponse struct {
	Updated int `json:"updated"`
}

// InitializeResult is returned with HTTP 200 even when Success is false:
// the request was served, the data did not land as expected.
type InitializeResult struct {
	Inserted      int    `json:"inserted"`
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	ExistingCount *int64 `json:"existingCount,omitempty"`
}

type MigrateResult struct {
	Migrated  int    `json:"migrated"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	BackupURL string `json:"backupUrl,omitempty"`
}

func RespondWithJSON(w http.ResponseWriter, statusCode int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
