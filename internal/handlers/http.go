package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/thisdougb/telemetry/internal/core"
	"github.com/thisdougb/telemetry/internal/storage"
)

// StateInterface defines what the handlers need from a client
type StateInterface interface {
	Status() core.Status
	PendingUploads() ([]storage.UploadRecord, error)
	Engine() *storage.Engine
}

// PendingUpload is the public view of a queued ping, without its body
type PendingUpload struct {
	DocumentID string    `json:"document_id"`
	Ping       string    `json:"ping"`
	Path       string    `json:"path"`
	Attempts   int       `json:"attempts"`
	NotBefore  time.Time `json:"not_before,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// StoredMetric is one entry of a ping store
type StoredMetric struct {
	Identifier string      `json:"identifier"`
	Lifetime   string      `json:"lifetime"`
	Type       string      `json:"type"`
	Value      interface{} `json:"value"`
}

// HealthHandler serves the client status as JSON
func HealthHandler(state StateInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, state.Status())
	}
}

// StatusHandler returns a simple UP/DOWN status endpoint
// Returns 200 OK once the dispatcher is running, 503 Service Unavailable otherwise
func StatusHandler(state StateInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")

		switch state.Status().State {
		case "draining", "live":
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "UP\n")
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "DOWN\n")
		}
	}
}

// PendingUploadsHandler lists the pings waiting for delivery
func PendingUploadsHandler(state StateInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := state.PendingUploads()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read uploads: %v", err), http.StatusServiceUnavailable)
			return
		}

		pending := make([]PendingUpload, 0, len(records))
		for _, rec := range records {
			pending = append(pending, PendingUpload{
				DocumentID: rec.DocumentID,
				Ping:       rec.PingName,
				Path:       rec.Path,
				Attempts:   rec.Attempts,
				NotBefore:  rec.NotBefore,
				EnqueuedAt: rec.EnqueuedAt,
			})
		}
		writeJSON(w, http.StatusOK, pending)
	}
}

// MetricsHandler serves the current content of one ping store
// Supports URL pattern: /metrics?ping={name}
func MetricsHandler(state StateInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("ping")
		if name == "" {
			http.Error(w, "ping parameter is required", http.StatusBadRequest)
			return
		}

		engine := state.Engine()
		if engine == nil {
			http.Error(w, "client is not initialized", http.StatusServiceUnavailable)
			return
		}

		entries, err := engine.Snapshot(name)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read metrics: %v", err), http.StatusInternalServerError)
			return
		}

		stored := make([]StoredMetric, 0, len(entries))
		for _, e := range entries {
			stored = append(stored, StoredMetric{
				Identifier: e.Identifier,
				Lifetime:   e.Lifetime.String(),
				Type:       string(e.Value.Kind),
				Value:      e.Value.Payload(),
			})
		}
		writeJSON(w, http.StatusOK, stored)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
