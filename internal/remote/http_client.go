package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/retiscan/retiscan/internal/apperr"
	"github.com/retiscan/retiscan/internal/filter"
	"github.com/retiscan/retiscan/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client talks JSON over HTTP to the screening backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) StartDetection(ctx context.Context, req StartRequest) (*StartResult, error) {
	var result StartResult
	if err := c.do(ctx, http.MethodPost, "/api/detections/start", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SaveDetection(ctx context.Context, sessionID string) (*models.DetectionRecord, error) {
	body := map[string]string{"session_id": sessionID}
	var record models.DetectionRecord
	if err := c.do(ctx, http.MethodPost, "/api/detections/save", body, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) CancelDetection(ctx context.Context, sessionID string) error {
	body := map[string]string{"session_id": sessionID}
	return c.do(ctx, http.MethodPost, "/api/detections/cancel", body, nil)
}

func (c *Client) ListDetections(ctx context.Context, p filter.Predicate) ([]models.DetectionRecord, error) {
	path := "/api/detections"
	if query := encodePredicate(p); query != "" {
		path += "?" + query
	}
	var records []models.DetectionRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) ListPatients(ctx context.Context) ([]models.PatientRecord, error) {
	var patients []models.PatientRecord
	if err := c.do(ctx, http.MethodGet, "/api/patients", nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

func (c *Client) CreatePatient(ctx context.Context, patient models.PatientRecord) (*models.PatientRecord, error) {
	var created models.PatientRecord
	if err := c.do(ctx, http.MethodPost, "/api/patients", patient, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdatePatient(ctx context.Context, patient models.PatientRecord) (*models.PatientRecord, error) {
	var updated models.PatientRecord
	path := "/api/patients/" + url.PathEscape(patient.ID)
	if err := c.do(ctx, http.MethodPut, path, patient, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeletePatient(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/patients/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListRegions(ctx context.Context) ([]models.Region, error) {
	var regions []models.Region
	if err := c.do(ctx, http.MethodGet, "/api/regions", nil, &regions); err != nil {
		return nil, err
	}
	return regions, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindRemote, apperr.CodeUnknown, "reading response", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return apperr.Wrap(apperr.KindRemote, apperr.CodeUnknown, "decoding response", err)
		}
	}
	return nil
}

// transportError maps network-level failures before any server answer.
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindRemote, apperr.CodeNetworkTimeout, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.KindRemote, apperr.CodeNetworkTimeout, "request timed out", err)
	}
	return apperr.Wrap(apperr.KindRemote, apperr.CodeServerUnavailable, "request failed", err)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusError carries the server's own error code through unchanged when
// the body declares one; only shapeless responses fall back to a
// status-derived code.
func statusError(status int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return apperr.New(apperr.KindRemote, apperr.Code(eb.Error), msg)
	}

	code := apperr.CodeUnknown
	switch {
	case status == http.StatusNotFound:
		code = apperr.CodeNotFound
	case status == http.StatusConflict:
		code = apperr.CodeConflict
	case status == http.StatusGone:
		code = apperr.CodeSessionExpired
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code = apperr.CodeValidationRejected
	case status >= 500:
		code = apperr.CodeServerUnavailable
	}
	return apperr.New(apperr.KindRemote, code, fmt.Sprintf("server returned status %d", status))
}

// encodePredicate serializes the server-side predicate fields as query
// parameters. TextQuery stays client-side and is never sent.
func encodePredicate(p filter.Predicate) string {
	values := url.Values{}
	if p.Classification != nil {
		values.Set("classification", strconv.Itoa(*p.Classification))
	}
	if p.AgeMin != nil {
		values.Set("age_min", strconv.Itoa(*p.AgeMin))
	}
	if p.AgeMax != nil {
		values.Set("age_max", strconv.Itoa(*p.AgeMax))
	}
	if p.Gender != nil {
		values.Set("gender", *p.Gender)
	}
	if p.Period != filter.PeriodAny {
		values.Set("period", string(p.Period))
	}
	return values.Encode()
}
