package stubserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/retiscan/retiscan/internal/database"
	"github.com/retiscan/retiscan/internal/filter"
	"github.com/retiscan/retiscan/internal/models"
)

type startRequest struct {
	PatientCode    string         `json:"patient_code"`
	EyeSide        models.EyeSide `json:"eye_side"`
	ImageBytes     []byte         `json:"image_base64"`
	IdempotencyKey string         `json:"idempotency_key"`
}

type startResponse struct {
	SessionID string               `json:"session_id"`
	Preview   models.PreviewResult `json:"preview"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) startDetectionHandler(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_rejected", "invalid request body")
		return
	}
	if !req.EyeSide.Valid() {
		writeError(w, http.StatusBadRequest, "validation_rejected", "eye_side must be Left or Right")
		return
	}
	if len(req.ImageBytes) == 0 {
		writeError(w, http.StatusBadRequest, "validation_rejected", "image is required")
		return
	}

	patient, err := s.store.GetPatientByCode(r.Context(), req.PatientCode)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "unknown patient code")
		return
	}

	pending := s.openPending(*patient, req.EyeSide, req.IdempotencyKey, classify(req.ImageBytes))
	log.Printf("[STUB] pending session %s for patient %s (%s eye)", pending.id, patient.Code, req.EyeSide)

	writeJSON(w, http.StatusOK, startResponse{SessionID: pending.id, Preview: pending.preview})
}

func (s *Server) saveDetectionHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_rejected", "invalid request body")
		return
	}

	pending, code := s.takePending(req.SessionID)
	if code == "session_expired" {
		writeError(w, http.StatusGone, code, "pending session expired")
		return
	}
	if code != "" {
		writeError(w, http.StatusNotFound, code, "no such pending session")
		return
	}

	record := models.NewDetection(&pending.patient, pending.eyeSide, pending.preview)
	if err := s.store.InsertDetection(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "server_unavailable", "failed to persist detection")
		return
	}

	log.Printf("[STUB] saved detection %s (session %s)", record.ID, pending.id)
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) cancelDetectionHandler(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_rejected", "invalid request body")
		return
	}

	if _, code := s.takePending(req.SessionID); code == "session_not_found" {
		writeError(w, http.StatusNotFound, code, "no such pending session")
		return
	}
	// An expired session cancels cleanly; the outcome is identical.
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDetectionsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListDetections(r.Context(), predicateFromQuery(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_unavailable", "failed to list detections")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) listPatientsHandler(w http.ResponseWriter, r *http.Request) {
	patients, err := s.store.ListPatients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_unavailable", "failed to list patients")
		return
	}
	writeJSON(w, http.StatusOK, patients)
}

func (s *Server) createPatientHandler(w http.ResponseWriter, r *http.Request) {
	var patient models.PatientRecord
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		writeError(w, http.StatusBadRequest, "validation_rejected", "invalid request body")
		return
	}
	if patient.Code == "" || patient.Name == "" {
		writeError(w, http.StatusBadRequest, "validation_rejected", "code and name are required")
		return
	}

	created := models.NewPatient(patient.Code, patient.Name, patient.Age, patient.Gender, patient.RegionCode)
	if err := s.store.CreatePatient(r.Context(), created); err != nil {
		if errors.Is(err, database.ErrConflict) {
			writeError(w, http.StatusConflict, "conflict", "patient code already registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_unavailable", "failed to create patient")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) updatePatientHandler(w http.ResponseWriter, r *http.Request) {
	var patient models.PatientRecord
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		writeError(w, http.StatusBadRequest, "validation_rejected", "invalid request body")
		return
	}
	patient.ID = chi.URLParam(r, "id")

	if err := s.store.UpdatePatient(r.Context(), &patient); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such patient")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_unavailable", "failed to update patient")
		return
	}
	writeJSON(w, http.StatusOK, patient)
}

func (s *Server) deletePatientHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeletePatient(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such patient")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_unavailable", "failed to delete patient")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRegionsHandler(w http.ResponseWriter, r *http.Request) {
	regions, err := s.store.ListRegions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_unavailable", "failed to list regions")
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func predicateFromQuery(r *http.Request) filter.Predicate {
	q := r.URL.Query()
	var p filter.Predicate

	if v := q.Get("classification"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Classification = &n
		}
	}
	if v := q.Get("age_min"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.AgeMin = &n
		}
	}
	if v := q.Get("age_max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.AgeMax = &n
		}
	}
	if v := q.Get("gender"); v != "" {
		gender := v
		p.Gender = &gender
	}
	if v := q.Get("period"); v != "" {
		p.Period = filter.Period(v)
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[STUB] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
