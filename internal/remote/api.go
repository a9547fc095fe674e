// Package remote declares the screening backend contract the client core
// consumes, and an HTTP implementation of it.
package remote

import (
	"context"

	"github.com/retiscan/retiscan/internal/filter"
	"github.com/retiscan/retiscan/internal/models"
)

// StartRequest carries everything the classifier needs for one pending
// detection. IdempotencyKey is minted per pipeline run and repeated on
// re-issued starts so the server can de-duplicate.
type StartRequest struct {
	PatientCode    string         `json:"patient_code"`
	EyeSide        models.EyeSide `json:"eye_side"`
	ImageBytes     []byte         `json:"image_base64"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// StartResult is the server's answer: the pending session handle plus
// the classifier preview. The session stays pending server-side until
// saved, cancelled, or expired.
type StartResult struct {
	SessionID string               `json:"session_id"`
	Preview   models.PreviewResult `json:"preview"`
}

// API is the full remote surface. Every call may suspend on the network
// and takes a context. Errors come back as apperr values with KindRemote
// codes passed through unchanged from the server.
type API interface {
	StartDetection(ctx context.Context, req StartRequest) (*StartResult, error)
	SaveDetection(ctx context.Context, sessionID string) (*models.DetectionRecord, error)
	CancelDetection(ctx context.Context, sessionID string) error

	ListDetections(ctx context.Context, p filter.Predicate) ([]models.DetectionRecord, error)

	ListPatients(ctx context.Context) ([]models.PatientRecord, error)
	CreatePatient(ctx context.Context, patient models.PatientRecord) (*models.PatientRecord, error)
	UpdatePatient(ctx context.Context, patient models.PatientRecord) (*models.PatientRecord, error)
	DeletePatient(ctx context.Context, id string) error

	ListRegions(ctx context.Context) ([]models.Region, error)
}
