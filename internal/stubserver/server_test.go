package stubserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/retiscan/retiscan/internal/database"
	"github.com/retiscan/retiscan/internal/models"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	store := database.NewMemoryStore()
	if err := store.CreatePatient(context.Background(),
		models.NewPatient("P001", "Alice Santos", 34, "female", "N")); err != nil {
		t.Fatalf("failed to seed patient: %v", err)
	}

	server := New(store, opts...)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	return server, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func startSession(t *testing.T, ts *httptest.Server, key string) startResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/detections/start", map[string]any{
		"patient_code":    "P001",
		"eye_side":        "Left",
		"image_base64":    []byte("fundus image bytes"),
		"idempotency_key": key,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start failed with status %d", resp.StatusCode)
	}
	var sr startResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("failed to decode start response: %v", err)
	}
	return sr
}

func TestStartSaveListFlow(t *testing.T) {
	_, ts := newTestServer(t)

	sr := startSession(t, ts, "key-1")
	if sr.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if sr.Preview.PredictedLabel != models.GradeLabel(sr.Preview.Classification) {
		t.Errorf("label %q does not match grade %d", sr.Preview.PredictedLabel, sr.Preview.Classification)
	}

	resp := postJSON(t, ts.URL+"/api/detections/save", map[string]string{"session_id": sr.SessionID})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save failed with status %d", resp.StatusCode)
	}
	var record models.DetectionRecord
	json.NewDecoder(resp.Body).Decode(&record)
	if record.PatientCode != "P001" || record.PatientAge != 34 {
		t.Errorf("saved record missing denormalized patient data: %+v", record)
	}

	listResp, err := http.Get(ts.URL + "/api/detections")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	defer listResp.Body.Close()
	var records []models.DetectionRecord
	json.NewDecoder(listResp.Body).Decode(&records)
	if len(records) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(records))
	}
}

func TestSaveTwiceReturnsNotFound(t *testing.T) {
	_, ts := newTestServer(t)
	sr := startSession(t, ts, "key-1")

	first := postJSON(t, ts.URL+"/api/detections/save", map[string]string{"session_id": sr.SessionID})
	first.Body.Close()

	second := postJSON(t, ts.URL+"/api/detections/save", map[string]string{"session_id": sr.SessionID})
	defer second.Body.Close()
	if second.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for an already-saved session, got %d", second.StatusCode)
	}
}

func TestExpiredSessionSaveReturnsGone(t *testing.T) {
	now := time.Now()
	clock := &now
	_, ts := newTestServer(t, WithClock(func() time.Time { return *clock }))

	sr := startSession(t, ts, "key-1")

	// Jump past the pending-session TTL.
	later := now.Add(SessionTTL + time.Minute)
	clock = &later

	resp := postJSON(t, ts.URL+"/api/detections/save", map[string]string{"session_id": sr.SessionID})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected 410 for expired session, got %d", resp.StatusCode)
	}
	var eb map[string]string
	json.NewDecoder(resp.Body).Decode(&eb)
	if eb["error"] != "session_expired" {
		t.Errorf("expected session_expired code, got %q", eb["error"])
	}
}

func TestIdempotentStartReissuesSameSession(t *testing.T) {
	_, ts := newTestServer(t)

	first := startSession(t, ts, "same-key")
	second := startSession(t, ts, "same-key")

	if first.SessionID != second.SessionID {
		t.Errorf("same idempotency key must reuse the session: %s vs %s", first.SessionID, second.SessionID)
	}

	third := startSession(t, ts, "other-key")
	if third.SessionID == first.SessionID {
		t.Error("a different key must open a new session")
	}
}

func TestCancelIsIdempotentForExpiredButNotMissing(t *testing.T) {
	_, ts := newTestServer(t)
	sr := startSession(t, ts, "key-1")

	resp := postJSON(t, ts.URL+"/api/detections/cancel", map[string]string{"session_id": sr.SessionID})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/detections/cancel", map[string]string{"session_id": sr.SessionID})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cancelling a missing session should 404, got %d", resp.StatusCode)
	}
}

func TestStartValidation(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "unknown patient",
			body:       map[string]any{"patient_code": "NOPE", "eye_side": "Left", "image_base64": []byte("x")},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "bad eye side",
			body:       map[string]any{"patient_code": "P001", "eye_side": "Middle", "image_base64": []byte("x")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing image",
			body:       map[string]any{"patient_code": "P001", "eye_side": "Left"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/api/detections/start", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestDuplicatePatientCodeConflicts(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/patients", models.PatientRecord{Code: "P001", Name: "Duplicate"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate code, got %d", resp.StatusCode)
	}
}

func TestListDetectionsAppliesQueryFilters(t *testing.T) {
	_, ts := newTestServer(t)
	sr := startSession(t, ts, "key-1")
	postJSON(t, ts.URL+"/api/detections/save", map[string]string{"session_id": sr.SessionID}).Body.Close()

	resp, err := http.Get(ts.URL + "/api/detections?age_min=50")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	defer resp.Body.Close()
	var records []models.DetectionRecord
	json.NewDecoder(resp.Body).Decode(&records)
	if len(records) != 0 {
		t.Errorf("age filter should exclude the 34-year-old patient, got %d records", len(records))
	}

	resp2, err := http.Get(ts.URL + "/api/detections?age_min=30&age_max=40")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	defer resp2.Body.Close()
	records = nil
	json.NewDecoder(resp2.Body).Decode(&records)
	if len(records) != 1 {
		t.Errorf("expected the patient to match, got %d records", len(records))
	}
}

func TestBearerTokenRequired(t *testing.T) {
	_, ts := newTestServer(t, WithToken("secret"))

	resp, err := http.Get(ts.URL + "/api/regions")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/regions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", authed.StatusCode)
	}
}
