package visibility

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Evaluator computes visibility flags for forms.
// It owns the process-variable cache of the task currently loaded.
// An Evaluator is not safe for concurrent use.
type Evaluator struct {
	logger      *zap.Logger
	processVars []ProcessVariable
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used to report invalid operators and connectors.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProcessVariables seeds the process-variable cache.
func WithProcessVariables(vars []ProcessVariable) Option {
	return func(e *Evaluator) {
		e.SetProcessVariables(vars)
	}
}

// New creates an evaluator with an empty process-variable cache.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetProcessVariables replaces the cached process variables.
func (e *Evaluator) SetProcessVariables(vars []ProcessVariable) {
	e.processVars = append([]ProcessVariable(nil), vars...)
}

// ClearProcessVariables empties the cache. Call it when switching tasks.
func (e *Evaluator) ClearProcessVariables() {
	e.processVars = nil
}

// ProcessVariables returns a copy of the cached process variables.
func (e *Evaluator) ProcessVariables() []ProcessVariable {
	return append([]ProcessVariable(nil), e.processVars...)
}

// EvaluateVisibility reports whether the owner of cond is visible.
// A missing condition, or one without a left operand, is always visible.
func (e *Evaluator) EvaluateVisibility(form *Form, cond *Condition) bool {
	if !cond.HasLeft() {
		return true
	}
	return e.IsFieldVisible(form, cond)
}

// IsFieldVisible evaluates cond and, right-associatively, its chained conditions.
func (e *Evaluator) IsFieldVisible(form *Form, cond *Condition) bool {
	if cond == nil {
		return true
	}
	if form == nil {
		form = &Form{}
	}

	left := e.leftValue(form, cond)
	right := e.rightValue(form, cond)
	actual := e.EvaluateCondition(left, right, cond.Operator)

	if cond.NextCondition == nil {
		return actual
	}
	return e.EvaluateLogicalOperation(cond.NextConditionOperator, actual, e.IsFieldVisible(form, cond.NextCondition))
}

// Refresh recomputes the flag of every tab and every widget of the form.
// The owning controller calls it after each value change and after the process
// variables are (re)loaded.
func (e *Evaluator) Refresh(form *Form) {
	if form == nil {
		return
	}
	for _, tab := range form.Tabs {
		e.RefreshTab(form, tab)
	}
	for _, field := range form.Fields() {
		e.RefreshField(form, field)
	}
}

// RefreshField recomputes one widget's flag.
func (e *Evaluator) RefreshField(form *Form, field *Field) {
	if field == nil {
		return
	}
	field.Visible = e.EvaluateVisibility(form, field.VisibilityCondition)
	if !field.Visible {
		e.logger.Debug("field hidden", zap.Stringer("field", field))
	}
}

// RefreshTab recomputes one tab's flag.
func (e *Evaluator) RefreshTab(form *Form, tab *Tab) {
	if tab == nil {
		return
	}
	tab.Visible = e.EvaluateVisibility(form, tab.VisibilityCondition)
}

// Report summarizes the computed flags of a form.
type Report struct {
	FormID string          `json:"formId,omitempty" yaml:"formId,omitempty"`
	Name   string          `json:"name,omitempty" yaml:"name,omitempty"`
	Fields map[string]bool `json:"fields" yaml:"fields"`
	Tabs   map[string]bool `json:"tabs,omitempty" yaml:"tabs,omitempty"`
}

// Report refreshes the form and returns its flags keyed by id.
func (e *Evaluator) Report(form *Form) *Report {
	e.Refresh(form)
	return NewReport(form)
}

// NewReport captures the flags as last computed, without re-evaluating.
func NewReport(form *Form) *Report {
	report := &Report{Fields: make(map[string]bool)}
	if form == nil {
		return report
	}
	if form.ID != nil {
		report.FormID = stringify(form.ID)
	}
	report.Name = form.Name
	for _, field := range form.Fields() {
		if field.ID != "" {
			report.Fields[field.ID] = field.Visible
		}
	}
	if len(form.Tabs) > 0 {
		report.Tabs = make(map[string]bool, len(form.Tabs))
		for _, tab := range form.Tabs {
			if tab != nil && tab.ID != "" {
				report.Tabs[tab.ID] = tab.Visible
			}
		}
	}
	return report
}

// Run parses a form definition, evaluates every visibility rule against the
// given process variables and returns the form JSON with isVisible flags set.
func Run(jsonText string, vars []ProcessVariable, opts ...Option) (string, error) {
	form, err := Parse([]byte(jsonText))
	if err != nil {
		return "", err
	}

	e := New(opts...)
	e.SetProcessVariables(vars)
	e.Refresh(form)

	result, err := json.MarshalIndent(form, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(result), nil
}
