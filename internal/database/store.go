// Package database backs the development stub server with either SQLite
// or a plain in-memory store. The real backend owns persistence; this
// exists so the CLI and integration tests can run against something.
package database

import (
	"context"
	"errors"

	"github.com/retiscan/retiscan/internal/filter"
	"github.com/retiscan/retiscan/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type Store interface {
	CreatePatient(ctx context.Context, patient *models.PatientRecord) error
	UpdatePatient(ctx context.Context, patient *models.PatientRecord) error
	DeletePatient(ctx context.Context, id string) error
	GetPatient(ctx context.Context, id string) (*models.PatientRecord, error)
	GetPatientByCode(ctx context.Context, code string) (*models.PatientRecord, error)
	ListPatients(ctx context.Context) ([]models.PatientRecord, error)

	InsertDetection(ctx context.Context, record *models.DetectionRecord) error
	ListDetections(ctx context.Context, p filter.Predicate) ([]models.DetectionRecord, error)

	ListRegions(ctx context.Context) ([]models.Region, error)

	Close() error
}

// defaultRegions seeds the administrative-region reference dataset.
var defaultRegions = []models.Region{
	{Code: "N", Name: "North"},
	{Code: "S", Name: "South"},
	{Code: "E", Name: "East"},
	{Code: "W", Name: "West"},
	{Code: "C", Name: "Central"},
}
