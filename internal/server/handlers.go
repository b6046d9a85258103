package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/raseed/receipt-pipeline/internal/extraction"
	"github.com/raseed/receipt-pipeline/internal/mailfetch"
)

// storageEvent accepts both a CloudEvent body ({"data": {"bucket", "name"}})
// and the flattened form ({"bucket", "name"}).
type storageEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
	Data   struct {
		Bucket string `json:"bucket"`
		Name   string `json:"name"`
	} `json:"data"`
}

func (e storageEvent) bucketAndName() (string, string) {
	if e.Data.Bucket != "" || e.Data.Name != "" {
		return e.Data.Bucket, e.Data.Name
	}
	return e.Bucket, e.Name
}

func (s *Server) handleStorageEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var event storageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, fmt.Sprintf("Invalid event payload: %v", err), http.StatusBadRequest)
		return
	}

	bucket, name := event.bucketAndName()
	if bucket == "" || name == "" {
		http.Error(w, "Event is missing bucket or object name", http.StatusBadRequest)
		return
	}

	slog.Info("Processing storage event", "bucket", bucket, "object", name)
	if err := s.processor.ProcessObject(r.Context(), bucket, name); err != nil {
		var malformed *extraction.MalformedOutputError
		var unsupported *extraction.ErrUnsupportedType
		if errors.As(err, &unsupported) || errors.As(err, &malformed) {
			// Retrying won't change the outcome, so acknowledge the event.
			slog.Error("Dropping unprocessable object", "object", name, "error", err)
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprintln(w, err.Error())
			return
		}
		slog.Error("Error processing object", "object", name, "error", err)
		http.Error(w, fmt.Sprintf("Error processing object: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleGmailPush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	if err := s.mail.HandlePush(r.Context(), body); err != nil {
		if errors.Is(err, mailfetch.ErrInvalidEnvelope) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Error handling Gmail push", "error", err)
		http.Error(w, fmt.Sprintf("Error handling push: %v", err), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleInsightsRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	count, err := s.insights.Run(r.Context())
	if err != nil {
		slog.Error("Error generating insights", "error", err)
		http.Error(w, fmt.Sprintf("Error generating insights: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok", "insights": count})
}

func (s *Server) handlePredictionsRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.predictions.RunAll(r.Context()); err != nil {
		slog.Error("Error running predictions", "error", err)
		http.Error(w, fmt.Sprintf("Error running predictions: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
