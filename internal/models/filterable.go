package models

import "github.com/retiscan/retiscan/internal/filter"

func (d DetectionRecord) FilterFields() filter.Fields {
	return filter.Fields{
		Name:              d.PatientName,
		Code:              d.PatientCode,
		Age:               d.PatientAge,
		Gender:            d.PatientGender,
		Classification:    d.Classification,
		HasClassification: true,
		OccurredAt:        d.CapturedAt,
	}
}

func (p PatientRecord) FilterFields() filter.Fields {
	return filter.Fields{
		Name:       p.Name,
		Code:       p.Code,
		Age:        p.Age,
		Gender:     p.Gender,
		OccurredAt: p.CreatedAt,
	}
}
