package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/terra-clan/apply-wizard/internal/models"
)

// Client is a Go SDK for the apply-wizard API
type Client struct {
	baseURL    string
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

// NewClient creates a new apply-wizard client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is returned for every non-2xx API response
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  models.FieldErrors
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s - %s", e.Status, e.Code, e.Message)
}

// IsValidation reports whether err is a failed step validation
func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity
}

// IsNotFound reports whether err means the wizard does not exist
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// StepDefinition is one entry of the field catalog
type StepDefinition struct {
	Step   string             `json:"step"`
	Route  string             `json:"route"`
	Title  string             `json:"title"`
	Fields []models.StepField `json:"fields"`
}

// CreateWizard starts a new wizard
func (c *Client) CreateWizard(ctx context.Context) (*models.WizardState, error) {
	var state models.WizardState
	if err := c.call(ctx, http.MethodPost, "/api/v1/wizards", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetState returns the current state of a wizard
func (c *Client) GetState(ctx context.Context, id string) (*models.WizardState, error) {
	var state models.WizardState
	if err := c.call(ctx, http.MethodGet, wizardPath(id, "/state"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ResumeRoute returns the step route a wizard should be resumed on
func (c *Client) ResumeRoute(ctx context.Context, id string) (string, error) {
	noRedirect := *c.httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+wizardPath(id, ""), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := noRedirect.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(resp.Body)
		return "", decodeError(resp.StatusCode, body)
	}

	location := resp.Header.Get("Location")
	prefix := wizardPath(id, "")
	if !strings.HasPrefix(location, prefix) {
		return "", fmt.Errorf("unexpected redirect location: %q", location)
	}
	return strings.TrimPrefix(location, prefix), nil
}

// StepView returns the visible fields of step along with the wizard state
func (c *Client) StepView(ctx context.Context, id, step string) (*models.StepView, error) {
	var view models.StepView
	if err := c.call(ctx, http.MethodGet, wizardPath(id, "/step/"+step), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// PatchSection merges value into one section of the answers
func (c *Client) PatchSection(ctx context.Context, id string, section models.SectionName, value interface{}) (*models.PatchResponse, error) {
	var resp models.PatchResponse
	if err := c.call(ctx, http.MethodPatch, wizardPath(id, "/sections/"+string(section)), value, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Next validates the current step and advances. values may be nil.
func (c *Client) Next(ctx context.Context, id string, values *models.SectionPatch) (*models.WizardState, error) {
	var state models.WizardState
	req := models.NextRequest{Values: values}
	if err := c.call(ctx, http.MethodPost, wizardPath(id, "/next"), req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Back returns to the previous step
func (c *Client) Back(ctx context.Context, id string) (*models.WizardState, error) {
	var state models.WizardState
	if err := c.call(ctx, http.MethodPost, wizardPath(id, "/back"), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Reset discards all answers and the draft. confirm must be true.
func (c *Client) Reset(ctx context.Context, id string, confirm bool) (*models.WizardState, error) {
	var state models.WizardState
	req := models.ResetRequest{Confirm: confirm}
	if err := c.call(ctx, http.MethodPost, wizardPath(id, "/reset"), req, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Submit sends the application from the review step
func (c *Client) Submit(ctx context.Context, id string) (*models.SubmitResponse, error) {
	var resp models.SubmitResponse
	if err := c.call(ctx, http.MethodPost, wizardPath(id, "/submit"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckEmail runs the uniqueness check for email
func (c *Client) CheckEmail(ctx context.Context, id, email string) (*models.EmailCheckResponse, error) {
	var resp models.EmailCheckResponse
	req := models.EmailCheckRequest{Email: email}
	if err := c.call(ctx, http.MethodPost, wizardPath(id, "/email-check"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloseWizard releases a wizard on the server; its draft is kept
func (c *Client) CloseWizard(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, wizardPath(id, ""), nil, nil)
}

// ListSteps returns the field catalog
func (c *Client) ListSteps(ctx context.Context) ([]StepDefinition, error) {
	var result struct {
		Steps []StepDefinition `json:"steps"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/steps", nil, &result); err != nil {
		return nil, err
	}
	return result.Steps, nil
}

// Health checks the API health
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

func wizardPath(id, suffix string) string {
	return "/api/v1/wizards/" + id + suffix
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string             `json:"code"`
		Message string             `json:"message"`
		Fields  models.FieldErrors `json:"fields"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return decodeError(status, resp)
	}

	var env envelope
	if err := json.Unmarshal(resp, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{Status: status, Code: "unknown", Message: http.StatusText(status)}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Fields = env.Error.Fields
	}
	return apiErr
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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
