// Package session is the form controller that owns a loaded task form.
// It loads the form and the task's process variables, and recomputes every
// visibility flag whenever a value changes.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dlovans/formvis/pkg/activiti"
	"github.com/dlovans/formvis/pkg/visibility"
)

// ErrNoForm is returned by operations that need a loaded form.
var ErrNoForm = errors.New("session: no form loaded")

// Backend is the part of the REST API a session needs.
type Backend interface {
	GetTask(ctx context.Context, taskID string) (*activiti.Task, error)
	GetTaskForm(ctx context.Context, taskID string) ([]byte, error)
	GetTaskFormVariables(ctx context.Context, taskID string) ([]visibility.ProcessVariable, error)
}

// Session holds one task form at a time. It is not safe for concurrent use.
type Session struct {
	ID string

	backend   Backend
	evaluator *visibility.Evaluator
	logger    *zap.Logger
	data      map[string]any

	taskID string
	task   *activiti.Task
	form   *visibility.Form
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. The evaluator logs through it too.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithData overlays field values on every form the session loads.
func WithData(data map[string]any) Option {
	return func(s *Session) {
		s.data = data
	}
}

// New creates a session bound to a backend.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		backend: backend,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.ID))
	s.evaluator = visibility.New(visibility.WithLogger(s.logger))
	return s
}

// Load replaces the current form with the form of taskID.
// The process-variable cache is cleared first and refilled only for process tasks.
// A failed task lookup is logged and the form is loaded without process variables.
func (s *Session) Load(ctx context.Context, taskID string) error {
	s.evaluator.ClearProcessVariables()
	s.form = nil
	s.task = nil
	s.taskID = taskID

	task, err := s.backend.GetTask(ctx, taskID)
	if err != nil {
		// The form still loads; conditions on process variables see empty values.
		s.logger.Warn("task lookup failed, loading form without process variables",
			zap.String("task", taskID), zap.Error(err))
	} else if err := s.useTask(ctx, taskID, task); err != nil {
		return err
	}

	raw, err := s.backend.GetTaskForm(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load form of task %s: %w", taskID, err)
	}
	form, err := visibility.Parse(raw, visibility.WithData(s.data))
	if err != nil {
		return fmt.Errorf("parse form of task %s: %w", taskID, err)
	}
	if form.TaskID == "" {
		form.TaskID = taskID
	}

	s.form = form
	s.evaluator.Refresh(form)
	s.logger.Info("form loaded",
		zap.String("task", taskID),
		zap.Int("fields", len(form.Fields())),
		zap.Int("processVariables", len(s.evaluator.ProcessVariables())))
	return nil
}

func (s *Session) loadProcessVariables(ctx context.Context, taskID string) error {
	task, err := s.backend.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", taskID, err)
	}
	return s.useTask(ctx, taskID, task)
}

// useTask records the task and fetches its process variables if it has any.
func (s *Session) useTask(ctx context.Context, taskID string, task *activiti.Task) error {
	s.task = task
	if !task.IsProcessTask() {
		s.logger.Debug("standalone task, no process variables", zap.String("task", taskID))
		return nil
	}

	vars, err := s.backend.GetTaskFormVariables(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load process variables of task %s: %w", taskID, err)
	}
	s.evaluator.SetProcessVariables(vars)
	return nil
}

// SetValue changes a field value and recomputes every visibility flag.
func (s *Session) SetValue(fieldID string, value any) error {
	if s.form == nil {
		return ErrNoForm
	}
	s.form.SetValue(fieldID, value)
	s.evaluator.Refresh(s.form)
	return nil
}

// RefreshVisibility recomputes every visibility flag of the loaded form.
func (s *Session) RefreshVisibility() error {
	if s.form == nil {
		return ErrNoForm
	}
	s.evaluator.Refresh(s.form)
	return nil
}

// ReloadProcessVariables refetches the process variables of the current task
// and recomputes the flags.
func (s *Session) ReloadProcessVariables(ctx context.Context) error {
	if s.form == nil {
		return ErrNoForm
	}
	s.evaluator.ClearProcessVariables()
	if err := s.loadProcessVariables(ctx, s.taskID); err != nil {
		return err
	}
	s.evaluator.Refresh(s.form)
	return nil
}

// Form returns the loaded form, or nil.
func (s *Session) Form() *visibility.Form {
	return s.form
}

// Task returns the loaded task, or nil.
func (s *Session) Task() *activiti.Task {
	return s.task
}

// Report returns the current flags of the loaded form.
func (s *Session) Report() (*visibility.Report, error) {
	if s.form == nil {
		return nil, ErrNoForm
	}
	return visibility.NewReport(s.form), nil
}

// Close drops the form and the cached process variables.
func (s *Session) Close() {
	s.evaluator.ClearProcessVariables()
	s.form = nil
	s.task = nil
	s.taskID = ""
}
