// Package activiti is a minimal client for the Activiti enterprise REST API.
// It fetches the task, task form and task process variables that feed
// visibility evaluation.
package activiti

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dlovans/formvis/pkg/visibility"
)

const (
	tracerName = "github.com/dlovans/formvis/pkg/activiti"

	// maxErrorBody caps how much of a failed response is kept in StatusError.
	maxErrorBody = 4 << 10
)

// ErrNotFound is wrapped by StatusError for 404 responses.
var ErrNotFound = errors.New("not found")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Task is the subset of the task representation the form runtime needs.
type Task struct {
	ID                            string `json:"id"`
	Name                          string `json:"name,omitempty"`
	ProcessInstanceID             string `json:"processInstanceId,omitempty"`
	ProcessDefinitionID           string `json:"processDefinitionId,omitempty"`
	ProcessDefinitionDeploymentID string `json:"processDefinitionDeploymentId,omitempty"`
	FormKey                       string `json:"formKey,omitempty"`
}

// IsProcessTask reports whether the task belongs to a deployed process and
// therefore has process variables.
func (t *Task) IsProcessTask() bool {
	return t != nil && t.ProcessDefinitionID != "" && t.ProcessDefinitionDeploymentID != "null"
}

// Client talks to one Activiti server.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	username   string
	password   string
	logger     *zap.Logger
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithBasicAuth sets the credentials sent with every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider sets the provider of the request spans. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080/activiti-app".
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("activiti: base url is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("activiti: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("activiti: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetTask fetches a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	var task Task
	if err := c.getJSON(ctx, "GetTask", taskID, "/api/enterprise/tasks/"+url.PathEscape(taskID), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTaskForm fetches the raw form definition of a task, ready for visibility.Parse.
func (c *Client) GetTaskForm(ctx context.Context, taskID string) ([]byte, error) {
	return c.get(ctx, "GetTaskForm", taskID, "/api/enterprise/task-forms/"+url.PathEscape(taskID))
}

// GetTaskFormVariables fetches the process variables visible to a task form.
func (c *Client) GetTaskFormVariables(ctx context.Context, taskID string) ([]visibility.ProcessVariable, error) {
	var vars []visibility.ProcessVariable
	path := "/api/enterprise/task-forms/" + url.PathEscape(taskID) + "/variables"
	if err := c.getJSON(ctx, "GetTaskFormVariables", taskID, path, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

func (c *Client) getJSON(ctx context.Context, op, taskID, path string, out any) error {
	body, err := c.get(ctx, op, taskID, path)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("activiti: %s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, taskID, path string) (_ []byte, err error) {
	ctx, span := c.tracer.Start(ctx, "activiti."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("activiti.task_id", taskID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	endpoint := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("activiti: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("activiti: %s: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("activiti request",
		zap.String("op", op),
		zap.String("url", endpoint.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method:     http.MethodGet,
			URL:        endpoint.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("activiti: %s: read body: %w", op, err)
	}
	return body, nil
}
