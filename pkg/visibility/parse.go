package visibility

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ConditionError reports an invalid condition found while parsing.
type ConditionError struct {
	Owner string // "field <id>" or "tab <id>"
	Depth int    // 0 for the root condition, 1 for its next condition, ...
	Err   error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("%s: condition %d: %v", e.Owner, e.Depth, e.Err)
}

func (e *ConditionError) Unwrap() error {
	return e.Err
}

type parseConfig struct {
	data    map[string]any
	lenient bool
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

// WithData overlays field values by id, as supplied by the embedding application.
func WithData(data map[string]any) ParseOption {
	return func(c *parseConfig) {
		c.data = data
	}
}

// WithLenient skips condition validation. Invalid operators then evaluate to false.
func WithLenient() ParseOption {
	return func(c *parseConfig) {
		c.lenient = true
	}
}

// Parse decodes a form definition, wraps plain top-level fields in one-column
// containers, builds the value map and validates every visibility condition.
// All flags start visible.
func Parse(data []byte, opts ...ParseOption) (*Form, error) {
	var cfg parseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var form Form
	if err := json.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	form.wrapPlainFields()

	for _, field := range form.Fields() {
		field.Visible = true
		if v, ok := cfg.data[field.ID]; ok && !field.IsContainer() {
			field.Value = v
		}
	}
	for _, tab := range form.Tabs {
		if tab != nil {
			tab.Visible = true
		}
	}
	form.rebuildValues()

	if !cfg.lenient {
		if err := Validate(&form); err != nil {
			return nil, err
		}
	}
	return &form, nil
}

// wrapPlainFields puts every non-container top-level widget in its own container.
func (f *Form) wrapPlainFields() {
	widgets := make([]*Field, 0, len(f.Widgets))
	for _, w := range f.Widgets {
		if w == nil {
			continue
		}
		if w.IsContainer() {
			widgets = append(widgets, w)
			continue
		}
		widgets = append(widgets, &Field{
			ID:              w.ID + "-container",
			Type:            TypeContainer,
			FieldType:       FieldTypeContainer,
			NumberOfColumns: 1,
			Tab:             w.Tab,
			Columns:         []*Column{{Fields: []*Field{w}}},
			synthetic:       true,
		})
	}
	f.Widgets = widgets
}

// Validate checks the operators and connectors of every condition on the form.
// Conditions without a left operand are never evaluated and are skipped.
func Validate(form *Form) error {
	var errs []error
	for _, field := range form.Fields() {
		errs = append(errs, validateCondition("field "+field.ID, field.VisibilityCondition, 0)...)
	}
	for _, tab := range form.Tabs {
		if tab != nil {
			errs = append(errs, validateCondition("tab "+tab.ID, tab.VisibilityCondition, 0)...)
		}
	}
	return errors.Join(errs...)
}

func validateCondition(owner string, c *Condition, depth int) []error {
	if c == nil || (depth == 0 && !c.HasLeft()) {
		return nil
	}

	var errs []error
	if _, err := ParseOperator(string(c.Operator)); err != nil {
		errs = append(errs, &ConditionError{Owner: owner, Depth: depth, Err: err})
	}
	if c.NextCondition != nil {
		if _, err := ParseConnector(string(c.NextConditionOperator)); err != nil {
			errs = append(errs, &ConditionError{Owner: owner, Depth: depth, Err: err})
		}
		errs = append(errs, validateCondition(owner, c.NextCondition, depth+1)...)
	}
	return errs
}
