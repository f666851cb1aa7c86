// Package lint provides static analysis for form definitions.
// It detects broken visibility rules without evaluating them.
package lint

import (
	"fmt"
	"sort"

	"github.com/dlovans/formvis/pkg/visibility"
)

// Issue represents a problem found during static analysis.
type Issue struct {
	Severity string `json:"severity" yaml:"severity"` // "error", "warning"
	Field    string `json:"field,omitempty" yaml:"field,omitempty"`
	Tab      string `json:"tab,omitempty" yaml:"tab,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

// Result contains all issues found by the linter.
type Result struct {
	Valid  bool    `json:"valid" yaml:"valid"`
	Issues []Issue `json:"issues" yaml:"issues"`
}

// Run performs static analysis on a form definition without evaluating it.
// Detects invalid operators and connectors, dangling references, broken chains,
// undeclared tabs and duplicate field ids.
func Run(jsonText string) (*Result, error) {
	form, err := visibility.Parse([]byte(jsonText), visibility.WithLenient())
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	result := &Result{
		Valid:  true,
		Issues: make([]Issue, 0),
	}

	// Collect known ids and names
	fieldIDs := make(map[string]int)
	fieldNames := make(map[string]bool)
	for _, field := range form.Fields() {
		fieldIDs[field.ID]++
		if field.Name != "" {
			fieldNames[field.Name] = true
		}
	}
	variables := make(map[string]bool)
	for _, v := range form.Variables {
		if v != nil {
			variables[v.Name] = true
		}
	}
	tabs := make(map[string]bool)
	for _, tab := range form.Tabs {
		if tab != nil {
			tabs[tab.ID] = true
		}
	}

	known := func(ref string) bool {
		return fieldIDs[ref] > 0 || fieldNames[ref] || variables[ref] || fieldIDs[trimLabel(ref)] > 0
	}

	// Check 1: duplicate ids
	var duplicates []string
	for id, n := range fieldIDs {
		if n > 1 {
			duplicates = append(duplicates, id)
		}
	}
	sort.Strings(duplicates)
	for _, id := range duplicates {
		result.addError(id, "", fmt.Sprintf("field id '%s' is declared %d times", id, fieldIDs[id]))
	}

	// Check 2: conditions on fields and tabs
	for _, field := range form.Fields() {
		checkCondition(result, field.VisibilityCondition, field.ID, "", known)

		// Check 3: undeclared tabs
		if field.Tab != "" && len(tabs) > 0 && !tabs[field.Tab] {
			result.addWarning(field.ID, field.Tab, fmt.Sprintf("field '%s' refers to undeclared tab '%s'", field.ID, field.Tab))
		}
	}
	for _, tab := range form.Tabs {
		if tab != nil {
			checkCondition(result, tab.VisibilityCondition, "", tab.ID, known)
		}
	}

	return result, nil
}

// checkCondition walks one condition chain.
// Process variables are only known at runtime, so an unknown rest response id is not reported.
func checkCondition(r *Result, c *visibility.Condition, field, tab string, known func(string) bool) {
	if !c.HasLeft() {
		return
	}
	for depth := 0; c != nil; depth++ {
		if _, err := visibility.ParseOperator(string(c.Operator)); err != nil {
			r.addError(field, tab, fmt.Sprintf("condition %d: %v", depth, err))
		}
		if c.LeftFormFieldID != "" && c.LeftFormFieldID != "null" && !known(c.LeftFormFieldID) {
			r.addWarning(field, tab, fmt.Sprintf("condition %d: '%s' matches no field or form variable", depth, c.LeftFormFieldID))
		}
		if c.RightFormFieldID != "" && c.RightFormFieldID != "null" && !known(c.RightFormFieldID) {
			r.addWarning(field, tab, fmt.Sprintf("condition %d: right operand '%s' matches no field or form variable", depth, c.RightFormFieldID))
		}
		if field != "" && c.LeftFormFieldID == field {
			r.addWarning(field, tab, fmt.Sprintf("condition %d: field depends on its own value", depth))
		}

		switch {
		case c.NextCondition != nil:
			if _, err := visibility.ParseConnector(string(c.NextConditionOperator)); err != nil {
				r.addError(field, tab, fmt.Sprintf("condition %d: %v", depth, err))
			}
		case c.NextConditionOperator != "":
			r.addWarning(field, tab, fmt.Sprintf("condition %d: connector '%s' has no next condition", depth, c.NextConditionOperator))
		}
		c = c.NextCondition
	}
}

func (r *Result) addError(field, tab, message string) {
	r.Valid = false
	r.Issues = append(r.Issues, Issue{
		Severity: "error",
		Field:    field,
		Tab:      tab,
		Message:  message,
	})
}

func (r *Result) addWarning(field, tab, message string) {
	r.Issues = append(r.Issues, Issue{
		Severity: "warning",
		Field:    field,
		Tab:      tab,
		Message:  message,
	})
}

// trimLabel removes the _LABEL suffix used to read an option name.
func trimLabel(ref string) string {
	const suffix = "_LABEL"
	if len(ref) > len(suffix) && ref[len(ref)-len(suffix):] == suffix {
		return ref[:len(ref)-len(suffix)]
	}
	return ref
}

