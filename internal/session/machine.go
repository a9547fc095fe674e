// Package session drives the start -> preview -> save/cancel protocol
// against the remote classifier. At most one detection session exists at
// a time; the machine enforces that with an explicit precondition rather
// than a lock around the whole workflow.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/retiscan/retiscan/internal/apperr"
	"github.com/retiscan/retiscan/internal/models"
	"github.com/retiscan/retiscan/internal/pipeline"
	"github.com/retiscan/retiscan/internal/remote"
)

type State int

const (
	StateIdle State = iota
	StateStarting
	StatePreviewing
	StateSaving
	StateCancelling
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StatePreviewing:
		return "previewing"
	case StateSaving:
		return "saving"
	case StateCancelling:
		return "cancelling"
	default:
		return "idle"
	}
}

// Session is the client's view of the server-tracked pending detection.
// Its existence implies the image upload succeeded.
type Session struct {
	ID          string
	PatientCode string
	EyeSide     models.EyeSide
	Preview     models.PreviewResult
	StartedAt   time.Time
}

// Invalidator is the slice of the detections cache the machine needs:
// after a successful save the next history read must hit the server.
type Invalidator interface {
	Invalidate()
}

// Machine holds the single active session plus the image it was started
// from. Remote failures propagate unchanged; the machine only guarantees
// local state stays consistent.
type Machine struct {
	api        remote.API
	detections Invalidator

	mu         sync.Mutex
	state      State
	session    *Session
	image      *pipeline.ReadyImage
	generation uint64
}

func NewMachine(api remote.API, detections Invalidator) *Machine {
	return &Machine{api: api, detections: detections}
}

// SetImage installs the pipeline output the next Start will upload.
func (m *Machine) SetImage(img *pipeline.ReadyImage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.image = img
}

// Image returns the held upload artifact, nil after session end.
func (m *Machine) Image() *pipeline.ReadyImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.image
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active session, if any.
func (m *Machine) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, false
	}
	s := *m.session
	return &s, true
}

// Start uploads the held image and opens a pending session. Preconditions:
// an image must be present, and no session may be active. On remote
// failure the machine returns to Idle but keeps the image so the user can
// start again without re-running the pipeline.
func (m *Machine) Start(ctx context.Context, patientCode string, eye models.EyeSide) (*Session, error) {
	m.mu.Lock()
	if m.image == nil {
		m.mu.Unlock()
		return nil, apperr.New(apperr.KindValidation, apperr.CodeNoImageSelected, "no image selected")
	}
	if m.state != StateIdle || m.session != nil {
		m.mu.Unlock()
		return nil, apperr.New(apperr.KindValidation, apperr.CodeSessionConflict, "a detection session is already active")
	}
	m.state = StateStarting
	gen := m.generation
	img := m.image
	m.mu.Unlock()

	result, err := m.api.StartDetection(ctx, remote.StartRequest{
		PatientCode:    patientCode,
		EyeSide:        eye,
		ImageBytes:     img.Bytes,
		IdempotencyKey: img.Token,
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen {
		// Cancelled or reset while the upload was in flight; the result
		// belongs to an abandoned workflow.
		log.Printf("[SESSION] dropping orphaned start result")
		return nil, apperr.New(apperr.KindCancelled, apperr.CodeSessionNotFound, "session reset during start")
	}

	if err != nil {
		m.state = StateIdle
		return nil, err
	}

	m.session = &Session{
		ID:          result.SessionID,
		PatientCode: patientCode,
		EyeSide:     eye,
		Preview:     result.Preview,
		StartedAt:   time.Now(),
	}
	m.state = StatePreviewing
	log.Printf("[SESSION] previewing %s: grade %d (%s, %.2f)",
		result.SessionID, result.Preview.Classification, result.Preview.PredictedLabel, result.Preview.Confidence)

	s := *m.session
	return &s, nil
}

// Restart re-invokes the remote start with the active session's inputs
// and the same idempotency token, replacing the preview in place. Only
// valid while previewing; distinct from Retry, which is purely local.
func (m *Machine) Restart(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.state != StatePreviewing || m.session == nil {
		m.mu.Unlock()
		return nil, apperr.New(apperr.KindValidation, apperr.CodeSessionNotFound, "no session to restart")
	}
	if m.image == nil {
		m.mu.Unlock()
		return nil, apperr.New(apperr.KindValidation, apperr.CodeNoImageSelected, "no image selected")
	}
	m.state = StateStarting
	gen := m.generation
	img := m.image
	patientCode := m.session.PatientCode
	eye := m.session.EyeSide
	m.mu.Unlock()

	result, err := m.api.StartDetection(ctx, remote.StartRequest{
		PatientCode:    patientCode,
		EyeSide:        eye,
		ImageBytes:     img.Bytes,
		IdempotencyKey: img.Token,
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen {
		log.Printf("[SESSION] dropping orphaned restart result")
		return nil, apperr.New(apperr.KindCancelled, apperr.CodeSessionNotFound, "session reset during restart")
	}

	if err != nil {
		// The old preview is gone either way; back to Idle with the
		// image kept, same as a failed first start.
		m.session = nil
		m.state = StateIdle
		return nil, err
	}

	m.session = &Session{
		ID:          result.SessionID,
		PatientCode: patientCode,
		EyeSide:     eye,
		Preview:     result.Preview,
		StartedAt:   time.Now(),
	}
	m.state = StatePreviewing

	s := *m.session
	return &s, nil
}

// Save commits the pending session. On success the session is destroyed,
// the image cleared, and the detections cache invalidated — that
// invalidation is part of Save's contract, not a courtesy. On failure the
// session stays intact so save can be retried.
func (m *Machine) Save(ctx context.Context) (*models.DetectionRecord, error) {
	m.mu.Lock()
	if m.state != StatePreviewing || m.session == nil {
		m.mu.Unlock()
		return nil, apperr.New(apperr.KindValidation, apperr.CodeSessionNotFound, "no session to save")
	}
	m.state = StateSaving
	gen := m.generation
	sessionID := m.session.ID
	m.mu.Unlock()

	record, err := m.api.SaveDetection(ctx, sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen {
		log.Printf("[SESSION] dropping orphaned save result")
		return nil, apperr.New(apperr.KindCancelled, apperr.CodeSessionNotFound, "session reset during save")
	}

	if err != nil {
		m.state = StatePreviewing
		return nil, err
	}

	m.session = nil
	m.image = nil
	m.state = StateIdle
	if m.detections != nil {
		m.detections.Invalidate()
	}
	log.Printf("[SESSION] saved %s", sessionID)
	return record, nil
}

// Cancel abandons the pending session. Clearing local state is
// unconditional: the remote cancel may fail and its error is still
// returned, but the machine always ends Idle with session and image
// cleared. With no session active it is a no-op that still clears the
// image.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	sessionID := ""
	if m.session != nil {
		sessionID = m.session.ID
	}
	if m.state == StateIdle && sessionID == "" {
		m.image = nil
		m.generation++
		m.mu.Unlock()
		return nil
	}
	m.state = StateCancelling
	m.generation++
	m.mu.Unlock()

	var remoteErr error
	if sessionID != "" {
		remoteErr = m.api.CancelDetection(ctx, sessionID)
		if remoteErr != nil {
			log.Printf("[SESSION] remote cancel failed for %s: %v", sessionID, remoteErr)
		}
	}

	m.mu.Lock()
	m.session = nil
	m.image = nil
	m.state = StateIdle
	m.mu.Unlock()

	return remoteErr
}

// Retry is the purely local reset: it clears session and image so the
// user can restart capture. No remote call is made; the server-side
// pending session, if any, is left to expire on its own.
func (m *Machine) Retry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	m.image = nil
	m.state = StateIdle
	m.generation++
}
