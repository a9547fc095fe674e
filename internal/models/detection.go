package models

import (
	"time"

	"github.com/google/uuid"
)

type EyeSide string

const (
	EyeLeft  EyeSide = "Left"
	EyeRight EyeSide = "Right"
)

func (e EyeSide) Valid() bool {
	return e == EyeLeft || e == EyeRight
}

// Retinopathy grades follow the international 0-4 severity scale.
const (
	GradeNoDR          = 0
	GradeMild          = 1
	GradeModerate      = 2
	GradeSevere        = 3
	GradeProliferative = 4
)

var gradeLabels = map[int]string{
	GradeNoDR:          "No DR",
	GradeMild:          "Mild",
	GradeModerate:      "Moderate",
	GradeSevere:        "Severe",
	GradeProliferative: "Proliferative DR",
}

func GradeLabel(grade int) string {
	if label, ok := gradeLabels[grade]; ok {
		return label
	}
	return "Unknown"
}

// PreviewResult is the remote classifier's answer for an uploaded image.
// It is immutable once returned; a re-issued start replaces the whole value.
type PreviewResult struct {
	Classification int     `json:"classification"`
	PredictedLabel string  `json:"predicted_label"`
	Confidence     float64 `json:"confidence"`
}

// DetectionRecord is a saved screening result as the history endpoints
// return it. Patient age and gender are denormalized onto the row so
// history filters work without a second lookup.
type DetectionRecord struct {
	ID             string    `json:"id"`
	PatientCode    string    `json:"patient_code"`
	PatientName    string    `json:"patient_name"`
	PatientAge     int       `json:"patient_age"`
	PatientGender  string    `json:"patient_gender"`
	EyeSide        EyeSide   `json:"eye_side"`
	Classification int       `json:"classification"`
	PredictedLabel string    `json:"predicted_label"`
	Confidence     float64   `json:"confidence"`
	CapturedAt     time.Time `json:"captured_at"`
}

func NewDetection(patient *PatientRecord, eye EyeSide, preview PreviewResult) *DetectionRecord {
	return &DetectionRecord{
		ID:             uuid.New().String(),
		PatientCode:    patient.Code,
		PatientName:    patient.Name,
		PatientAge:     patient.Age,
		PatientGender:  patient.Gender,
		EyeSide:        eye,
		Classification: preview.Classification,
		PredictedLabel: preview.PredictedLabel,
		Confidence:     preview.Confidence,
		CapturedAt:     time.Now(),
	}
}
