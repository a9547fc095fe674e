package database

import (
	"context"
	"sync"
	"time"

	"github.com/retiscan/retiscan/internal/filter"
	"github.com/retiscan/retiscan/internal/models"
)

// MemoryStore is the zero-setup Store used by tests and throwaway runs.
type MemoryStore struct {
	mu         sync.Mutex
	patients   []models.PatientRecord
	detections []models.DetectionRecord
	regions    []models.Region
}

func NewMemoryStore() *MemoryStore {
	regions := make([]models.Region, len(defaultRegions))
	copy(regions, defaultRegions)
	return &MemoryStore{regions: regions}
}

func (m *MemoryStore) CreatePatient(ctx context.Context, patient *models.PatientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.Code == patient.Code {
			return ErrConflict
		}
	}
	m.patients = append(m.patients, *patient)
	return nil
}

func (m *MemoryStore) UpdatePatient(ctx context.Context, patient *models.PatientRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.patients {
		if m.patients[i].ID == patient.ID {
			m.patients[i] = *patient
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) DeletePatient(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.patients {
		if m.patients[i].ID == id {
			m.patients = append(m.patients[:i], m.patients[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) GetPatient(ctx context.Context, id string) (*models.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) GetPatientByCode(ctx context.Context, code string) (*models.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.Code == code {
			found := p
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListPatients(ctx context.Context) ([]models.PatientRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.PatientRecord, len(m.patients))
	copy(out, m.patients)
	return out, nil
}

func (m *MemoryStore) InsertDetection(ctx context.Context, record *models.DetectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = append(m.detections, *record)
	return nil
}

func (m *MemoryStore) ListDetections(ctx context.Context, p filter.Predicate) ([]models.DetectionRecord, error) {
	m.mu.Lock()
	out := make([]models.DetectionRecord, len(m.detections))
	copy(out, m.detections)
	m.mu.Unlock()

	filter.SortNewestFirst(out)
	return filter.Project(out, p, time.Now()), nil
}

func (m *MemoryStore) ListRegions(ctx context.Context) ([]models.Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Region, len(m.regions))
	copy(out, m.regions)
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
