// Package visibility evaluates widget visibility rules for Activiti form definitions.
// It resolves condition operands against form values, form variables and task process
// variables, and writes the resulting visibility flags back onto fields and tabs.
package visibility

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Widget field types that the evaluator treats specially.
const (
	FieldTypeContainer = "ContainerRepresentation"
	FieldTypeRest      = "RestFieldRepresentation"

	TypeContainer    = "container"
	TypeGroup        = "group"
	TypeDropdown     = "dropdown"
	TypeRadioButtons = "radio-buttons"
)

// Form is a runtime instance of a form definition.
// Values is rebuilt from the field values whenever a field changes.
type Form struct {
	ID                  any         `json:"id,omitempty"`
	Name                string      `json:"name,omitempty"`
	TaskID              string      `json:"taskId,omitempty"`
	TaskName            string      `json:"taskName,omitempty"`
	ProcessDefinitionID string      `json:"processDefinitionId,omitempty"`
	Widgets             []*Field    `json:"fields"`
	Tabs                []*Tab      `json:"tabs,omitempty"`
	Variables           []*Variable `json:"variables,omitempty"`
	Outcomes            []*Outcome  `json:"outcomes,omitempty"`

	Values map[string]any `json:"-"`

	extra map[string]json.RawMessage
}

// Field is a single widget. Containers carry their children in Columns.
type Field struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name,omitempty"`
	Type                string     `json:"type,omitempty"`
	FieldType           string     `json:"fieldType,omitempty"`
	Value               any        `json:"value,omitempty"`
	Options             []*FieldOption `json:"options,omitempty"`
	Tab                 string     `json:"tab,omitempty"`
	ReadOnly            bool       `json:"readOnly,omitempty"`
	Required            bool       `json:"required,omitempty"`
	NumberOfColumns     int        `json:"numberOfColumns,omitempty"`
	VisibilityCondition *Condition `json:"visibilityCondition,omitempty"`
	Visible             bool       `json:"isVisible"`

	Columns []*Column `json:"-"`

	synthetic bool
	extra     map[string]json.RawMessage
}

// Column is one column of a container widget.
type Column struct {
	Fields []*Field
}

// FieldOption is a selectable entry of a dropdown, radio or rest-backed field.
type FieldOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tab groups fields and may be hidden by its own condition.
type Tab struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title,omitempty"`
	VisibilityCondition *Condition `json:"visibilityCondition,omitempty"`
	Visible             bool       `json:"isVisible"`
}

// Variable is a form-declared name/value pair, fixed at definition time.
type Variable struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value,omitempty"`
}

// ProcessVariable is a task variable supplied by the BPM backend.
type ProcessVariable struct {
	ID    string `json:"id"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value,omitempty"`
}

// Outcome is a form completion button.
type Outcome struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Condition is a node of a visibility expression.
// Left operand: LeftFormFieldID or LeftRestResponseID.
// Right operand: RightFormFieldID, RightRestResponseID or the literal RightValue.
type Condition struct {
	LeftFormFieldID       string     `json:"leftFormFieldId,omitempty"`
	LeftRestResponseID    string     `json:"leftRestResponseId,omitempty"`
	Operator              Operator   `json:"operator,omitempty"`
	RightValue            any        `json:"rightValue,omitempty"`
	RightType             string     `json:"rightType,omitempty"`
	RightFormFieldID      string     `json:"rightFormFieldId,omitempty"`
	RightRestResponseID   string     `json:"rightRestResponseId,omitempty"`
	NextConditionOperator Connector  `json:"nextConditionOperator,omitempty"`
	NextCondition         *Condition `json:"nextCondition,omitempty"`
}

// Keys decoded into Form and Field. Other members are kept verbatim and written back.
var (
	formKeys = keySet("id", "name", "taskId", "taskName", "processDefinitionId",
		"fields", "tabs", "variables", "outcomes")
	fieldKeys = keySet("id", "name", "type", "fieldType", "value", "options", "tab",
		"readOnly", "required", "numberOfColumns", "visibilityCondition", "isVisible", "fields")
)

func keySet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// unknownMembers returns the members of a JSON object whose keys are not in known.
func unknownMembers(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	for k := range members {
		if known[k] {
			delete(members, k)
		}
	}
	if len(members) == 0 {
		return nil, nil
	}
	return members, nil
}

// mergeMembers adds extra to the encoded object. Encoded keys win.
func mergeMembers(encoded []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return encoded, nil
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &members); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := members[k]; !ok {
			members[k] = v
		}
	}
	return json.Marshal(members)
}

// HasLeft reports whether the condition names a left operand.
func (c *Condition) HasLeft() bool {
	return c != nil && (isReference(c.LeftFormFieldID) || isReference(c.LeftRestResponseID))
}

// isReference treats the REST API's "null" placeholder as an absent id.
func isReference(id string) bool {
	return id != "" && id != "null"
}

// IsContainer reports whether the widget holds columns of child fields.
func (f *Field) IsContainer() bool {
	return f.FieldType == FieldTypeContainer || f.Type == TypeContainer || f.Type == TypeGroup
}

// UnmarshalJSON decodes the container "fields" map ({"1": [...], "2": [...]}) into Columns.
func (f *Field) UnmarshalJSON(data []byte) error {
	type plain Field
	aux := struct {
		*plain
		Fields map[string][]*Field `json:"fields,omitempty"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	extra, err := unknownMembers(data, fieldKeys)
	if err != nil {
		return err
	}
	f.extra = extra
	if len(aux.Fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(aux.Fields))
	for k := range aux.Fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})

	f.Columns = make([]*Column, 0, len(keys))
	for _, k := range keys {
		f.Columns = append(f.Columns, &Column{Fields: aux.Fields[k]})
	}
	return nil
}

// MarshalJSON writes Columns back in the REST shape.
func (f Field) MarshalJSON() ([]byte, error) {
	type plain Field
	aux := struct {
		plain
		Fields map[string][]*Field `json:"fields,omitempty"`
	}{plain: plain(f)}
	if len(f.Columns) > 0 {
		aux.Fields = make(map[string][]*Field, len(f.Columns))
		for i, col := range f.Columns {
			aux.Fields[strconv.Itoa(i+1)] = col.Fields
		}
	}
	encoded, err := json.Marshal(aux)
	if err != nil {
		return nil, err
	}
	return mergeMembers(encoded, f.extra)
}

// UnmarshalJSON decodes a form and keeps members it does not model.
func (f *Form) UnmarshalJSON(data []byte) error {
	type plain Form
	if err := json.Unmarshal(data, (*plain)(f)); err != nil {
		return err
	}
	extra, err := unknownMembers(data, formKeys)
	if err != nil {
		return err
	}
	f.extra = extra
	return nil
}

// MarshalJSON writes wrapped plain fields back at the top level.
func (f Form) MarshalJSON() ([]byte, error) {
	type plain Form
	out := plain(f)
	out.Widgets = make([]*Field, 0, len(f.Widgets))
	for _, w := range f.Widgets {
		if w != nil && w.synthetic && len(w.Columns) == 1 && len(w.Columns[0].Fields) == 1 {
			out.Widgets = append(out.Widgets, w.Columns[0].Fields[0])
			continue
		}
		out.Widgets = append(out.Widgets, w)
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return mergeMembers(encoded, f.extra)
}

// Fields returns every widget in document order. A container precedes its children.
func (f *Form) Fields() []*Field {
	var result []*Field
	for _, w := range f.Widgets {
		if w == nil {
			continue
		}
		if !w.synthetic {
			result = append(result, w)
		}
		for _, col := range w.Columns {
			for _, child := range col.Fields {
				if child != nil {
					result = append(result, child)
				}
			}
		}
	}
	return result
}

// inputFields returns the non-container widgets.
func (f *Form) inputFields() []*Field {
	var result []*Field
	for _, field := range f.Fields() {
		if !field.IsContainer() {
			result = append(result, field)
		}
	}
	return result
}

// FieldByID finds a widget by id. Returns nil if absent.
func (f *Form) FieldByID(id string) *Field {
	for _, field := range f.Fields() {
		if field.ID == id {
			return field
		}
	}
	return nil
}

// VisibleTabs returns the tabs whose last computed flag is visible.
func (f *Form) VisibleTabs() []*Tab {
	var result []*Tab
	for _, tab := range f.Tabs {
		if tab != nil && tab.Visible {
			result = append(result, tab)
		}
	}
	return result
}

// SetValue updates a field value and the value map.
// Ids that match no field are stored in the value map only.
func (f *Form) SetValue(id string, value any) {
	if f.Values == nil {
		f.Values = make(map[string]any)
	}
	field := f.FieldByID(id)
	if field == nil {
		f.Values[id] = value
		return
	}
	field.Value = value
	f.Values[id] = field.formValue()
}

// rebuildValues recomputes the value map from the current field values.
func (f *Form) rebuildValues() {
	f.Values = make(map[string]any)
	for _, field := range f.inputFields() {
		if field.ID == "" {
			continue
		}
		f.Values[field.ID] = field.formValue()
	}
}

// formValue is the value a field contributes to the value map.
// Option-backed fields expose the selected option as {id, name}.
func (f *Field) formValue() any {
	if f.Type != TypeDropdown && f.Type != TypeRadioButtons {
		return f.Value
	}
	id, ok := f.Value.(string)
	if !ok {
		return f.Value
	}
	for _, opt := range f.Options {
		if opt != nil && opt.ID == id {
			return map[string]any{"id": opt.ID, "name": opt.Name}
		}
	}
	return f.Value
}

// String identifies a field in log output.
func (f *Field) String() string {
	return fmt.Sprintf("%s(%s)", f.ID, f.Type)
}
