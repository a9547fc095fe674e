package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/retiscan/retiscan/internal/filter"
	"github.com/retiscan/retiscan/internal/models"
)

type SQLiteStore struct {
	conn *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.seedRegions(); err != nil {
		return nil, fmt.Errorf("failed to seed regions: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS patients (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		gender TEXT NOT NULL,
		region_code TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS detections (
		id TEXT PRIMARY KEY,
		patient_code TEXT NOT NULL,
		patient_name TEXT NOT NULL,
		patient_age INTEGER NOT NULL,
		patient_gender TEXT NOT NULL,
		eye_side TEXT NOT NULL,
		classification INTEGER NOT NULL,
		predicted_label TEXT NOT NULL,
		confidence REAL NOT NULL,
		captured_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS regions (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);
	`
	_, err := s.conn.Exec(query)
	return err
}

func (s *SQLiteStore) seedRegions() error {
	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM regions`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, region := range defaultRegions {
		if _, err := s.conn.Exec(`INSERT INTO regions (code, name) VALUES (?, ?)`, region.Code, region.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreatePatient(ctx context.Context, patient *models.PatientRecord) error {
	if existing, err := s.GetPatientByCode(ctx, patient.Code); err == nil && existing != nil {
		return ErrConflict
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO patients (id, code, name, age, gender, region_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		patient.ID, patient.Code, patient.Name, patient.Age, patient.Gender, patient.RegionCode, patient.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert patient: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePatient(ctx context.Context, patient *models.PatientRecord) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE patients SET code = ?, name = ?, age = ?, gender = ?, region_code = ? WHERE id = ?`,
		patient.Code, patient.Name, patient.Age, patient.Gender, patient.RegionCode, patient.ID)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeletePatient(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetPatient(ctx context.Context, id string) (*models.PatientRecord, error) {
	return s.getPatient(ctx, `SELECT id, code, name, age, gender, region_code, created_at FROM patients WHERE id = ?`, id)
}

func (s *SQLiteStore) GetPatientByCode(ctx context.Context, code string) (*models.PatientRecord, error) {
	return s.getPatient(ctx, `SELECT id, code, name, age, gender, region_code, created_at FROM patients WHERE code = ?`, code)
}

func (s *SQLiteStore) getPatient(ctx context.Context, query, arg string) (*models.PatientRecord, error) {
	var p models.PatientRecord
	var createdAt time.Time
	err := s.conn.QueryRowContext(ctx, query, arg).
		Scan(&p.ID, &p.Code, &p.Name, &p.Age, &p.Gender, &p.RegionCode, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	p.CreatedAt = createdAt
	return &p, nil
}

func (s *SQLiteStore) ListPatients(ctx context.Context) ([]models.PatientRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, code, name, age, gender, region_code, created_at FROM patients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	patients := []models.PatientRecord{}
	for rows.Next() {
		var p models.PatientRecord
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Age, &p.Gender, &p.RegionCode, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (s *SQLiteStore) InsertDetection(ctx context.Context, record *models.DetectionRecord) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO detections (id, patient_code, patient_name, patient_age, patient_gender,
		 eye_side, classification, predicted_label, confidence, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.PatientCode, record.PatientName, record.PatientAge, record.PatientGender,
		record.EyeSide, record.Classification, record.PredictedLabel, record.Confidence, record.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	return nil
}

// ListDetections reads the ordered rows and applies the predicate with
// the same projection the client uses, so both stores filter identically.
func (s *SQLiteStore) ListDetections(ctx context.Context, p filter.Predicate) ([]models.DetectionRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, patient_code, patient_name, patient_age, patient_gender,
		 eye_side, classification, predicted_label, confidence, captured_at
		 FROM detections ORDER BY captured_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	records := []models.DetectionRecord{}
	for rows.Next() {
		var r models.DetectionRecord
		if err := rows.Scan(&r.ID, &r.PatientCode, &r.PatientName, &r.PatientAge, &r.PatientGender,
			&r.EyeSide, &r.Classification, &r.PredictedLabel, &r.Confidence, &r.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filter.Project(records, p, time.Now()), nil
}

func (s *SQLiteStore) ListRegions(ctx context.Context) ([]models.Region, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT code, name FROM regions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}
	defer rows.Close()

	regions := []models.Region{}
	for rows.Next() {
		var region models.Region
		if err := rows.Scan(&region.Code, &region.Name); err != nil {
			return nil, fmt.Errorf("failed to scan region: %w", err)
		}
		regions = append(regions, region)
	}
	return regions, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
