package visibility

import (
	"strings"
)

// labelSuffix selects an option's display name instead of its id.
const labelSuffix = "_LABEL"

// leftValue resolves the left operand.
// A rest response id is looked up in the variables only. A form field id is looked
// up in the form first and falls back to the variables when the form value is falsy.
func (e *Evaluator) leftValue(form *Form, c *Condition) any {
	if isReference(c.LeftRestResponseID) {
		return orEmpty(e.variableValue(form, c.LeftRestResponseID))
	}

	value := e.formValue(form, c.LeftFormFieldID)
	if !isTruthy(value) {
		if alt := e.variableValue(form, c.LeftFormFieldID); alt != nil {
			value = alt
		}
	}
	return orEmpty(value)
}

// rightValue resolves the right operand: a variable, another field or a literal.
func (e *Evaluator) rightValue(form *Form, c *Condition) any {
	switch {
	case isReference(c.RightRestResponseID):
		return orEmpty(e.variableValue(form, c.RightRestResponseID))
	case isReference(c.RightFormFieldID):
		return orEmpty(e.formValue(form, c.RightFormFieldID))
	default:
		return orEmpty(normalizeDateLiteral(c.RightValue))
	}
}

// formValue looks a name up in the value map, then searches the widgets by name.
func (e *Evaluator) formValue(form *Form, name string) any {
	value := fieldValue(form.Values, name)
	if isTruthy(value) {
		return value
	}
	if found, ok := searchForm(form, name); ok {
		return found
	}
	return value
}

// fieldValue reads a value map entry.
// "<id>_LABEL" yields the selected option name of <id>; option values yield their id.
func fieldValue(values map[string]any, name string) any {
	if values == nil || name == "" {
		return nil
	}

	if base, ok := stripLabel(name); ok {
		if selected, ok := values[base].(map[string]any); ok {
			return selected["name"]
		}
		return nil
	}

	value := values[name]
	if obj, ok := value.(map[string]any); ok && isTruthy(obj["id"]) {
		return obj["id"]
	}
	return value
}

// searchForm finds a widget whose name matches, ignoring case.
// When several widgets match, the last one wins.
func searchForm(form *Form, name string) (any, bool) {
	var (
		result any
		found  bool
	)
	for _, field := range form.inputFields() {
		if !isSearchedField(field, name) {
			continue
		}
		found = true
		result = objectValue(field)
		if !isTruthy(result) {
			if obj, ok := field.Value.(map[string]any); ok && isTruthy(obj["id"]) {
				result = obj["id"]
			} else {
				result = field.Value
			}
		}
	}
	return result, found
}

// objectValue returns the display name of a field's value when it has one.
func objectValue(field *Field) any {
	if obj, ok := field.Value.(map[string]any); ok && isTruthy(obj["name"]) {
		return obj["name"]
	}
	if field.Options == nil {
		return ""
	}
	if field.Value != nil {
		id := stringify(field.Value)
		for _, opt := range field.Options {
			if opt != nil && opt.ID == id {
				return opt.Name
			}
		}
	}
	return field.Value
}

func isSearchedField(field *Field, name string) bool {
	if field.Name == "" {
		return false
	}
	target := name
	if field.FieldType == FieldTypeRest {
		if base, ok := stripLabel(name); ok {
			target = base
		}
	}
	return strings.EqualFold(field.Name, target)
}

// stripLabel removes a trailing _LABEL from a non-empty base name.
func stripLabel(name string) (string, bool) {
	if len(name) <= len(labelSuffix) || !strings.HasSuffix(name, labelSuffix) {
		return name, false
	}
	return strings.TrimSuffix(name, labelSuffix), true
}

// variableValue checks the form-declared variables, then the process variables.
func (e *Evaluator) variableValue(form *Form, name string) any {
	value := formVariableValue(form, name)
	if isTruthy(value) {
		return value
	}
	if pv := e.processVariableValue(name); pv != nil {
		return pv
	}
	return value
}

func formVariableValue(form *Form, name string) any {
	for _, v := range form.Variables {
		if v != nil && v.Name == name {
			return v.Value
		}
	}
	return nil
}

func (e *Evaluator) processVariableValue(id string) any {
	for _, v := range e.processVars {
		if v.ID == id {
			return v.Value
		}
	}
	return nil
}

// orEmpty degrades a missing value to the empty string.
func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
