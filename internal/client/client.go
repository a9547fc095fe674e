// Package client wires the pipeline, session machine, caches, and filter
// state into one explicit container with a lifecycle, instead of ambient
// singletons reachable from anywhere.
package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/retiscan/retiscan/internal/apperr"
	"github.com/retiscan/retiscan/internal/cache"
	"github.com/retiscan/retiscan/internal/device"
	"github.com/retiscan/retiscan/internal/filter"
	"github.com/retiscan/retiscan/internal/models"
	"github.com/retiscan/retiscan/internal/pipeline"
	"github.com/retiscan/retiscan/internal/remote"
	"github.com/retiscan/retiscan/internal/session"
)

// timeNow is swapped out by tests that pin the clock.
var timeNow = time.Now

// Client is the application-scoped dependency container. Construct one
// per app lifetime, Initialize it, and pass it to whatever consumes it.
type Client struct {
	api remote.API

	Pipeline *pipeline.Pipeline
	Machine  *session.Machine

	Detections *cache.Collection[models.DetectionRecord]
	Patients   *cache.Collection[models.PatientRecord]
	Regions    *cache.Collection[models.Region]

	mu          sync.Mutex
	predicate   filter.Predicate
	initialized bool
}

func New(api remote.API, picker device.FilePicker, permissions device.Permissions, cropper device.Cropper) *Client {
	c := &Client{api: api}

	c.Detections = cache.NewCollection("detections", func(ctx context.Context) ([]models.DetectionRecord, error) {
		return api.ListDetections(ctx, c.serverPredicate())
	})
	c.Patients = cache.NewCollection("patients", func(ctx context.Context) ([]models.PatientRecord, error) {
		return api.ListPatients(ctx)
	})
	c.Regions = cache.NewCollection("regions", func(ctx context.Context) ([]models.Region, error) {
		return api.ListRegions(ctx)
	})

	c.Pipeline = pipeline.New(picker, permissions, cropper)
	c.Machine = session.NewMachine(api, c.Detections)
	return c
}

// Initialize marks the container live. Caches stay NotLoaded until first
// use; nothing remote happens here.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return nil
	}
	c.initialized = true
	log.Printf("[CLIENT] initialized")
	return nil
}

// Dispose tears the container down: pipeline outputs dropped, session
// state reset locally, caches returned to NotLoaded. Idempotent.
func (c *Client) Dispose() {
	c.mu.Lock()
	c.initialized = false
	c.predicate = filter.Predicate{}
	c.mu.Unlock()

	c.Pipeline.Clear()
	c.Machine.Retry()
	c.Detections.Reset()
	c.Patients.Reset()
	c.Regions.Reset()
	log.Printf("[CLIENT] disposed")
}

// Filter returns the currently active predicate.
func (c *Client) Filter() filter.Predicate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predicate
}

// SetFilter installs a new predicate. Any change to a server-side field
// invalidates the detections cache so the next history read reflects
// fresh server truth under the new predicate; a text-only change is
// resolved locally and dirties nothing.
func (c *Client) SetFilter(p filter.Predicate) {
	c.mu.Lock()
	serverChanged := !c.predicate.ServerEquals(p)
	c.predicate = p
	c.mu.Unlock()

	c.Detections.SetServerFilterActive(p.ServerSide())
	if serverChanged {
		c.Detections.Invalidate()
	}
}

func (c *Client) serverPredicate() filter.Predicate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predicate.WithoutText()
}

// CaptureImage runs the full pipeline and hands the result to the
// session machine, ready for Start.
func (c *Client) CaptureImage(ctx context.Context) (*pipeline.ReadyImage, error) {
	img, err := c.Pipeline.Run(ctx)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	c.Machine.SetImage(img)
	return img, nil
}

// History loads the detections list (cached unless force or the cache is
// dirty), sorts newest first, then applies the client-side predicate
// pass for the text query.
func (c *Client) History(ctx context.Context, force bool) ([]models.DetectionRecord, error) {
	if !force && c.Detections.IsStale(cache.DetectionTTL) && c.Detections.State() == cache.StateLoaded {
		force = true
	}
	records, err := c.Detections.Load(ctx, force)
	if err != nil {
		return nil, apperr.Normalize(err)
	}

	filter.SortNewestFirst(records)
	p := c.Filter()
	if p.TextQuery == "" {
		return records, nil
	}
	return filter.Project(records, filter.Predicate{TextQuery: p.TextQuery}, timeNow()), nil
}

// PatientList loads the patient registry, applying the text query as a
// pure local projection.
func (c *Client) PatientList(ctx context.Context, force bool) ([]models.PatientRecord, error) {
	if !force && c.Patients.IsStale(cache.PatientTTL) && c.Patients.State() == cache.StateLoaded {
		force = true
	}
	patients, err := c.Patients.Load(ctx, force)
	if err != nil {
		return nil, apperr.Normalize(err)
	}

	p := c.Filter()
	if p.TextQuery == "" {
		return patients, nil
	}
	return filter.Project(patients, filter.Predicate{TextQuery: p.TextQuery}, timeNow()), nil
}

// RegionList loads the administrative-region reference data. Its long
// TTL means it is effectively fetched once per install.
func (c *Client) RegionList(ctx context.Context) ([]models.Region, error) {
	force := c.Regions.State() == cache.StateLoaded && c.Regions.IsStale(cache.RegionTTL)
	regions, err := c.Regions.Load(ctx, force)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	return regions, nil
}

// CreatePatient registers a patient and invalidates the registry cache;
// creation has no authoritative local item to patch in.
func (c *Client) CreatePatient(ctx context.Context, patient models.PatientRecord) (*models.PatientRecord, error) {
	created, err := c.api.CreatePatient(ctx, patient)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	c.Patients.Invalidate()
	return created, nil
}

// UpdatePatient pushes the change and patches the cached row in place
// when possible, falling back to invalidation.
func (c *Client) UpdatePatient(ctx context.Context, patient models.PatientRecord) (*models.PatientRecord, error) {
	updated, err := c.api.UpdatePatient(ctx, patient)
	if err != nil {
		return nil, apperr.Normalize(err)
	}
	if !c.Patients.PatchOne(func(p models.PatientRecord) bool { return p.ID == updated.ID }, *updated) {
		c.Patients.Invalidate()
	}
	return updated, nil
}

// DeletePatient removes the patient remotely, drops the cached row, and
// dirties the detections cache since history rows embed patient data.
func (c *Client) DeletePatient(ctx context.Context, id string) error {
	if err := c.api.DeletePatient(ctx, id); err != nil {
		return apperr.Normalize(err)
	}
	if !c.Patients.RemoveOne(func(p models.PatientRecord) bool { return p.ID == id }) {
		c.Patients.Invalidate()
	}
	c.Detections.Invalidate()
	return nil
}

// TrendFor computes the severity trend of one patient's eye from the
// loaded history.
func (c *Client) TrendFor(ctx context.Context, patientCode string, eye models.EyeSide) (filter.Trend, error) {
	records, err := c.Detections.Load(ctx, false)
	if err != nil {
		return filter.TrendUndetermined, apperr.Normalize(err)
	}

	series := make([]models.DetectionRecord, 0, len(records))
	for _, r := range records {
		if r.PatientCode == patientCode && r.EyeSide == eye {
			series = append(series, r)
		}
	}
	filter.SortNewestFirst(series)

	// ClassifyTrend wants chronological order, oldest first.
	severities := make([]float64, len(series))
	for i, r := range series {
		severities[len(series)-1-i] = float64(r.Classification)
	}
	return filter.ClassifyTrend(severities), nil
}
