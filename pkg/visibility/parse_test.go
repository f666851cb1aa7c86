package visibility

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBuildsColumnsAndValues(t *testing.T) {
	form, err := Parse([]byte(expenseForm))
	require.NoError(t, err)

	require.Len(t, form.Widgets, 4)
	section := form.Widgets[0]
	assert.True(t, section.IsContainer())
	require.Len(t, section.Columns, 2)
	assert.Equal(t, "amount", section.Columns[0].Fields[0].ID)
	assert.Equal(t, "status", section.Columns[1].Fields[0].ID)

	assert.Equal(t, float64(500), form.Values["amount"])
	assert.Equal(t, map[string]any{"id": "APPROVED", "name": "Approved"}, form.Values["status"])
	assert.NotContains(t, form.Values, "section1")

	for _, field := range form.Fields() {
		assert.True(t, field.Visible, "field %s starts visible", field.ID)
	}
}

func TestParseOrdersColumnsNumerically(t *testing.T) {
	doc := `{"fields": [{"fieldType": "ContainerRepresentation", "id": "c", "type": "container",
		"fields": {"10": [{"id": "ten"}], "2": [{"id": "two"}], "1": [{"id": "one"}]}}]}`

	form, err := Parse([]byte(doc))
	require.NoError(t, err)

	var ids []string
	for _, col := range form.Widgets[0].Columns {
		ids = append(ids, col.Fields[0].ID)
	}
	assert.Equal(t, []string{"one", "two", "ten"}, ids)
}

func TestParseWithData(t *testing.T) {
	form, err := Parse([]byte(expenseForm), WithData(map[string]any{"amount": float64(2000), "section1": "ignored"}))
	require.NoError(t, err)

	assert.Equal(t, float64(2000), form.FieldByID("amount").Value)
	assert.Equal(t, float64(2000), form.Values["amount"])
	assert.Nil(t, form.FieldByID("section1").Value)
}

func TestParseRejectsInvalidConditions(t *testing.T) {
	doc := `{
	  "tabs": [{"id": "t1", "visibilityCondition": {"leftFormFieldId": "a", "operator": "==", "rightValue": "x",
	            "nextCondition": {"leftFormFieldId": "b", "operator": "=="}}}],
	  "fields": [
	    {"id": "a", "type": "text", "visibilityCondition": {"leftFormFieldId": "b", "operator": "~~"}},
	    {"id": "b", "type": "text", "visibilityCondition": {"operator": "~~"}}
	  ]
	}`

	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidOperator))
	assert.True(t, errors.Is(err, ErrInvalidConnector))

	var condErr *ConditionError
	require.True(t, errors.As(err, &condErr))
	assert.Equal(t, "field a", condErr.Owner)
	assert.Contains(t, err.Error(), "tab t1: condition 0")
	// Field b has no left operand, so its operator is never evaluated.
	assert.NotContains(t, err.Error(), "field b")
}

func TestParseLenientAcceptsInvalidConditions(t *testing.T) {
	doc := `{"fields": [{"id": "a", "type": "text", "value": "x",
		"visibilityCondition": {"leftFormFieldId": "a", "operator": "~~", "rightValue": "x"}}]}`

	form, err := Parse([]byte(doc), WithLenient())
	require.NoError(t, err)

	New().Refresh(form)
	assert.False(t, form.FieldByID("a").Visible)
}

func TestParseWrapsPlainFields(t *testing.T) {
	doc := `{"fields": [{"id": "solo", "name": "Solo", "type": "text", "value": "v"}]}`

	form, err := Parse([]byte(doc))
	require.NoError(t, err)

	require.Len(t, form.Widgets, 1)
	assert.True(t, form.Widgets[0].IsContainer())
	assert.Len(t, form.Fields(), 1, "wrapper containers are not listed")
	assert.Equal(t, "v", form.Values["solo"])

	out, err := json.Marshal(form)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fields": [{"id": "solo", "name": "Solo", "type": "text", "value": "v", "isVisible": true}]}`, string(out))
}

func TestSearchFormByName(t *testing.T) {
	doc := `{"fields": [
	  {"id": "f1", "name": "Customer Name", "type": "text", "value": "ACME"},
	  {"id": "f2", "name": "country", "fieldType": "RestFieldRepresentation", "type": "rest", "value": "it",
	   "options": [{"id": "it", "name": "Italy"}, {"id": "fr", "name": "France"}]},
	  {"id": "f3", "name": "owner", "type": "people", "value": {"id": "7", "name": "Jane"}}
	]}`
	form, err := Parse([]byte(doc))
	require.NoError(t, err)

	tests := []struct {
		name string
		want any
	}{
		{"customer name", "ACME"},
		{"country_LABEL", "Italy"},
		{"country", "Italy"},
		{"OWNER", "Jane"},
		{"missing", nil},
	}
	for _, tt := range tests {
		got, _ := searchForm(form, tt.name)
		if got != tt.want {
			t.Errorf("searchForm(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	// Ids win over names; f2 holds a plain id in the value map.
	assert.Equal(t, "it", New().formValue(form, "f2"))
}
