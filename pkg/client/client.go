package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/terra-clan/pathway-engine/internal/deadlines"
	"github.com/terra-clan/pathway-engine/internal/models"
	"github.com/terra-clan/pathway-engine/internal/readiness"
)

// Client is a Go SDK for the pathway-engine API
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new pathway-engine client. credential is either an
// API key or a trainee bearer token.
func NewClient(baseURL, credential string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		credential: credential,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a failure reported by the server in its response envelope
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Activity is an activity as returned by the server
type Activity struct {
	models.Activity
	Classification readiness.Category `json:"classification"`
}

// Dashboard is the cards-and-gauge view
type Dashboard struct {
	UserID           string            `json:"userId"`
	Summary          readiness.Summary `json:"summary"`
	Readiness        readiness.Series  `json:"readiness"`
	Specialty        *models.Specialty `json:"specialty,omitempty"`
	Progress         *int              `json:"progress"`
	ProgressError    string            `json:"progressError,omitempty"`
	NextDeadline     *deadlines.Item   `json:"nextDeadline"`
	PendingDeadlines int               `json:"pendingDeadlines"`
	GeneratedAt      time.Time         `json:"generatedAt"`
}

// ChecklistItem is one guideline on the pathway view
type ChecklistItem struct {
	Guideline models.Guideline `json:"guideline"`
	Points    float64          `json:"points"`
	Met       bool             `json:"met"`
}

// Pathway is the radar-and-checklist view
type Pathway struct {
	UserID        string            `json:"userId"`
	Specialty     *models.Specialty `json:"specialty,omitempty"`
	Summary       readiness.Summary `json:"summary"`
	Readiness     readiness.Series  `json:"readiness"`
	Progress      *int              `json:"progress"`
	ProgressError string            `json:"progressError,omitempty"`
	Checklist     []ChecklistItem   `json:"checklist"`
	GeneratedAt   time.Time         `json:"generatedAt"`
}

// SpecialtyDetail is a specialty with the guidelines that apply to it
type SpecialtyDetail struct {
	Specialty  *models.Specialty  `json:"specialty"`
	Guidelines []models.Guideline `json:"guidelines"`
}

func userPath(userID string, parts ...string) string {
	p := "/api/v1/users/" + url.PathEscape(userID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// Activities

// ListActivities retrieves every activity a user has logged
func (c *Client) ListActivities(ctx context.Context, userID string) ([]*Activity, error) {
	var data struct {
		Activities []*Activity `json:"activities"`
		Total      int         `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, userPath(userID, "activities"), nil, &data); err != nil {
		return nil, err
	}
	return data.Activities, nil
}

// CreateActivity logs a new activity
func (c *Client) CreateActivity(ctx context.Context, userID string, in models.ActivityInput) (*Activity, error) {
	var a Activity
	if err := c.call(ctx, http.MethodPost, userPath(userID, "activities"), in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActivity retrieves one activity
func (c *Client) GetActivity(ctx context.Context, userID, id string) (*Activity, error) {
	var a Activity
	if err := c.call(ctx, http.MethodGet, userPath(userID, "activities", id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateActivity replaces an activity's fields
func (c *Client) UpdateActivity(ctx context.Context, userID, id string, in models.ActivityInput) (*Activity, error) {
	var a Activity
	if err := c.call(ctx, http.MethodPut, userPath(userID, "activities", id), in, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteActivity removes an activity
func (c *Client) DeleteActivity(ctx context.Context, userID, id string) error {
	return c.call(ctx, http.MethodDelete, userPath(userID, "activities", id), nil, nil)
}

// Tasks and events

// ListTasks retrieves a user's task documents
func (c *Client) ListTasks(ctx context.Context, userID string) ([]models.DeadlineDoc, error) {
	var data struct {
		Tasks []models.DeadlineDoc `json:"tasks"`
	}
	if err := c.call(ctx, http.MethodGet, userPath(userID, "tasks"), nil, &data); err != nil {
		return nil, err
	}
	return data.Tasks, nil
}

// CreateTask stores a task document
func (c *Client) CreateTask(ctx context.Context, userID string, doc models.DeadlineDoc) (*models.DeadlineDoc, error) {
	var out models.DeadlineDoc
	if err := c.call(ctx, http.MethodPost, userPath(userID, "tasks"), doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTask replaces a task document
func (c *Client) UpdateTask(ctx context.Context, userID, id string, doc models.DeadlineDoc) (*models.DeadlineDoc, error) {
	var out models.DeadlineDoc
	if err := c.call(ctx, http.MethodPut, userPath(userID, "tasks", id), doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteTask marks a task as done
func (c *Client) CompleteTask(ctx context.Context, userID, id string) (*models.DeadlineDoc, error) {
	var out models.DeadlineDoc
	if err := c.call(ctx, http.MethodPost, userPath(userID, "tasks", id, "complete"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask removes a task
func (c *Client) DeleteTask(ctx context.Context, userID, id string) error {
	return c.call(ctx, http.MethodDelete, userPath(userID, "tasks", id), nil, nil)
}

// ListEvents retrieves a user's event documents
func (c *Client) ListEvents(ctx context.Context, userID string) ([]models.DeadlineDoc, error) {
	var data struct {
		Events []models.DeadlineDoc `json:"events"`
	}
	if err := c.call(ctx, http.MethodGet, userPath(userID, "events"), nil, &data); err != nil {
		return nil, err
	}
	return data.Events, nil
}

// CreateEvent stores an event document
func (c *Client) CreateEvent(ctx context.Context, userID string, doc models.DeadlineDoc) (*models.DeadlineDoc, error) {
	var out models.DeadlineDoc
	if err := c.call(ctx, http.MethodPost, userPath(userID, "events"), doc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteEvent removes an event
func (c *Client) DeleteEvent(ctx context.Context, userID, id string) error {
	return c.call(ctx, http.MethodDelete, userPath(userID, "events", id), nil, nil)
}

// Profile

// GetProfile retrieves a user's profile
func (c *Client) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := c.call(ctx, http.MethodGet, userPath(userID, "profile"), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile creates or replaces a user's profile
func (c *Client) UpsertProfile(ctx context.Context, userID string, in models.ProfileInput) (*models.Profile, error) {
	var p models.Profile
	if err := c.call(ctx, http.MethodPut, userPath(userID, "profile"), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Views

// GetDashboard retrieves the computed dashboard
func (c *Client) GetDashboard(ctx context.Context, userID string) (*Dashboard, error) {
	var d Dashboard
	if err := c.call(ctx, http.MethodGet, userPath(userID, "dashboard"), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetPathway retrieves the pathway view. An empty specialtyID uses the
// profile's specialty.
func (c *Client) GetPathway(ctx context.Context, userID, specialtyID string) (*Pathway, error) {
	path := userPath(userID, "pathway")
	if specialtyID != "" {
		path += "?specialty=" + url.QueryEscape(specialtyID)
	}

	var p Pathway
	if err := c.call(ctx, http.MethodGet, path, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Progress asks the server for total as a percentage of goal
func (c *Client) Progress(ctx context.Context, total, goal float64) (int, error) {
	req := map[string]float64{"totalPoints": total, "goalPoints": goal}

	var data struct {
		Progress int `json:"progress"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/progress", req, &data); err != nil {
		return 0, err
	}
	return data.Progress, nil
}

// Catalog

// ListSpecialties retrieves all specialties
func (c *Client) ListSpecialties(ctx context.Context) ([]*models.Specialty, error) {
	var data struct {
		Specialties []*models.Specialty `json:"specialties"`
		Total       int                 `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/specialties", nil, &data); err != nil {
		return nil, err
	}
	return data.Specialties, nil
}

// GetSpecialty retrieves a specialty and its guidelines
func (c *Client) GetSpecialty(ctx context.Context, id string) (*SpecialtyDetail, error) {
	var d SpecialtyDetail
	if err := c.call(ctx, http.MethodGet, "/api/v1/specialties/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListGuidelines retrieves the guideline table
func (c *Client) ListGuidelines(ctx context.Context) ([]models.Guideline, error) {
	var data struct {
		Guidelines []models.Guideline `json:"guidelines"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/guidelines", nil, &data); err != nil {
		return nil, err
	}
	return data.Guidelines, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// call sends in as the JSON body (when non-nil) and decodes the envelope's
// data into out (when non-nil)
func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var result envelope
	if err := json.Unmarshal(resp, &result); err != nil {
		if status >= 400 {
			return &APIError{StatusCode: status, Code: "http_error", Message: string(resp)}
		}
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success || status >= 400 {
		apiErr := &APIError{StatusCode: status, Code: "unknown_error"}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return apiErr
	}

	if out == nil || len(result.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
