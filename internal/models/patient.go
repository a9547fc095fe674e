package models

import (
	"time"

	"github.com/google/uuid"
)

type PatientRecord struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Age        int       `json:"age"`
	Gender     string    `json:"gender"`
	RegionCode string    `json:"region_code"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewPatient(code, name string, age int, gender, regionCode string) *PatientRecord {
	return &PatientRecord{
		ID:         uuid.New().String(),
		Code:       code,
		Name:       name,
		Age:        age,
		Gender:     gender,
		RegionCode: regionCode,
		CreatedAt:  time.Now(),
	}
}

// Region is a row of the administrative-region reference dataset used
// when registering patients. It changes rarely, so its cache TTL is much
// longer than the list caches.
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
