// Package stubserver is a development stand-in for the remote screening
// backend: patients CRUD, detection start/save/cancel with pending-session
// expiry, and filtered history. The classifier is a deterministic fake;
// no inference happens here.
package stubserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/retiscan/retiscan/internal/database"
	"github.com/retiscan/retiscan/internal/models"
)

// SessionTTL mirrors the production backend: a pending detection not
// saved within this window expires server-side.
const SessionTTL = 15 * time.Minute

type pendingSession struct {
	id             string
	idempotencyKey string
	patient        models.PatientRecord
	eyeSide        models.EyeSide
	preview        models.PreviewResult
	startedAt      time.Time
}

type Server struct {
	store database.Store
	token string

	mu      sync.Mutex
	pending map[string]*pendingSession
	byKey   map[string]string

	// now is swapped out by tests that fake session expiry.
	now func() time.Time
}

type Option func(*Server)

// WithToken requires a static bearer token on every request.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func New(store database.Store, opts ...Option) *Server {
	s := &Server{
		store:   store,
		pending: make(map[string]*pendingSession),
		byKey:   make(map[string]string),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	if s.token != "" {
		r.Use(s.authMiddleware)
	}

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/detections/start", s.startDetectionHandler)
		r.Post("/detections/save", s.saveDetectionHandler)
		r.Post("/detections/cancel", s.cancelDetectionHandler)
		r.Get("/detections", s.listDetectionsHandler)

		r.Get("/patients", s.listPatientsHandler)
		r.Post("/patients", s.createPatientHandler)
		r.Put("/patients/{id}", s.updatePatientHandler)
		r.Delete("/patients/{id}", s.deletePatientHandler)

		r.Get("/regions", s.listRegionsHandler)
	})

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// classify is the fake model: a deterministic grade derived from the
// image bytes, so repeated uploads of the same image agree.
func classify(imageBytes []byte) models.PreviewResult {
	sum := 0
	for _, b := range imageBytes {
		sum += int(b)
	}
	grade := sum % 5
	return models.PreviewResult{
		Classification: grade,
		PredictedLabel: models.GradeLabel(grade),
		Confidence:     0.87,
	}
}

// takePending removes and returns the session, enforcing expiry.
func (s *Server) takePending(sessionID string) (*pendingSession, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.pending[sessionID]
	if !ok {
		return nil, "session_not_found"
	}
	delete(s.pending, sessionID)
	delete(s.byKey, pending.idempotencyKey)

	if s.now().Sub(pending.startedAt) > SessionTTL {
		return nil, "session_expired"
	}
	return pending, ""
}

func (s *Server) openPending(patient models.PatientRecord, eye models.EyeSide, key string, preview models.PreviewResult) *pendingSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A repeated start with the same idempotency key reissues the same
	// session instead of stacking a duplicate pending detection.
	if key != "" {
		if id, ok := s.byKey[key]; ok {
			if existing, ok := s.pending[id]; ok {
				existing.preview = preview
				existing.startedAt = s.now()
				return existing
			}
		}
	}

	pending := &pendingSession{
		id:             uuid.New().String(),
		idempotencyKey: key,
		patient:        patient,
		eyeSide:        eye,
		preview:        preview,
		startedAt:      s.now(),
	}
	s.pending[pending.id] = pending
	if key != "" {
		s.byKey[key] = pending.id
	}
	return pending
}
