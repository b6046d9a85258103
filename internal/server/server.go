package server

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
)

// ReceiptProcessor handles one uploaded-document event.
type ReceiptProcessor interface {
	ProcessObject(ctx context.Context, bucket, object string) error
}

// MailHandler handles one Gmail Pub/Sub push.
type MailHandler interface {
	HandlePush(ctx context.Context, body []byte) error
}

// InsightRunner derives and stores insights.
type InsightRunner interface {
	Run(ctx context.Context) (int, error)
}

// PredictionRunner executes the predictive queries.
type PredictionRunner interface {
	RunAll(ctx context.Context) error
}

// BasicAuth holds basic authentication credentials for the run endpoints.
type BasicAuth struct {
	Username string
	Password string
}

// Server exposes the pipeline's triggers over HTTP: storage events, Gmail
// pushes, and the scheduled insight/prediction runs.
type Server struct {
	processor   ReceiptProcessor
	mail        MailHandler
	insights    InsightRunner
	predictions PredictionRunner
	basicAuth   BasicAuth
	mux         *http.ServeMux
}

// New creates a Server with a default mux.
func New(processor ReceiptProcessor, mail MailHandler, insights InsightRunner, predictions PredictionRunner, basicAuth BasicAuth) *Server {
	return NewWithMux(processor, mail, insights, predictions, basicAuth, http.NewServeMux())
}

// NewWithMux creates a Server with a custom mux for testing.
func NewWithMux(processor ReceiptProcessor, mail MailHandler, insights InsightRunner, predictions PredictionRunner, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		processor:   processor,
		mail:        mail,
		insights:    insights,
		predictions: predictions,
		basicAuth:   basicAuth,
		mux:         mux,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/events/storage", s.handleStorageEvent)
	s.mux.HandleFunc("/events/gmail", s.handleGmailPush)
	s.mux.HandleFunc("/insights/run", s.requireAuth(s.handleInsightsRun))
	s.mux.HandleFunc("/predictions/run", s.requireAuth(s.handlePredictionsRun))
	s.mux.HandleFunc("/healthz", s.handleHealth)
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Receipt Pipeline"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}
