// Package filter holds the pure predicate and projection layer applied to
// cached history and patient lists.
package filter

import (
	"sort"
	"strings"
	"time"
)

type Period string

const (
	PeriodAny   Period = ""
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Predicate is the set of active filters. Nil pointer fields and zero
// strings mean "not filtering on this". All server-side fields compose as
// logical AND; TextQuery is applied client-side as a secondary pass.
type Predicate struct {
	Classification *int
	AgeMin         *int
	AgeMax         *int
	Gender         *string
	Period         Period
	TextQuery      string
}

// IsZero reports whether no predicate field is set at all.
func (p Predicate) IsZero() bool {
	return !p.ServerSide() && p.TextQuery == ""
}

// ServerSide reports whether any field the server filters on is set.
// TextQuery alone never counts; it is resolved locally.
func (p Predicate) ServerSide() bool {
	return p.Classification != nil || p.AgeMin != nil || p.AgeMax != nil ||
		p.Gender != nil || p.Period != PeriodAny
}

// WithoutText returns the predicate as sent to the server.
func (p Predicate) WithoutText() Predicate {
	p.TextQuery = ""
	return p
}

// ServerEquals compares only the server-side fields of two predicates.
func (p Predicate) ServerEquals(o Predicate) bool {
	return eqInt(p.Classification, o.Classification) &&
		eqInt(p.AgeMin, o.AgeMin) &&
		eqInt(p.AgeMax, o.AgeMax) &&
		eqStr(p.Gender, o.Gender) &&
		p.Period == o.Period
}

func eqInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// CutoffFrom resolves the period to its inclusive lower time bound.
// PeriodAny yields the zero time, matching everything.
func (p Period) CutoffFrom(now time.Time) time.Time {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case PeriodYear:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

// Fields is the flattened view of one record that predicates match on.
// Text search covers Name and Code only, by substring, case-insensitively.
type Fields struct {
	Name              string
	Code              string
	Age               int
	Gender            string
	Classification    int
	HasClassification bool
	OccurredAt        time.Time
}

// Item is anything the projection can filter.
type Item interface {
	FilterFields() Fields
}

// Project applies the predicate to items, AND across all set fields.
// It never mutates or reorders the input; callers needing chronological
// output sort before projecting.
func Project[T Item](items []T, p Predicate, now time.Time) []T {
	if p.IsZero() {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}

	cutoff := p.Period.CutoffFrom(now)
	query := strings.ToLower(strings.TrimSpace(p.TextQuery))

	out := make([]T, 0, len(items))
	for _, item := range items {
		f := item.FilterFields()
		if p.Classification != nil && (!f.HasClassification || f.Classification != *p.Classification) {
			continue
		}
		if p.AgeMin != nil && f.Age < *p.AgeMin {
			continue
		}
		if p.AgeMax != nil && f.Age > *p.AgeMax {
			continue
		}
		if p.Gender != nil && !strings.EqualFold(f.Gender, *p.Gender) {
			continue
		}
		if !cutoff.IsZero() && f.OccurredAt.Before(cutoff) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(f.Name), query) &&
			!strings.Contains(strings.ToLower(f.Code), query) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// SortNewestFirst orders items by occurrence time, descending, in place.
// History views call this immediately before projecting.
func SortNewestFirst[T Item](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].FilterFields().OccurredAt.After(items[j].FilterFields().OccurredAt)
	})
}
