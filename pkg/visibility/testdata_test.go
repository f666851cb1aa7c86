package visibility

// expenseForm is a task form as returned by the REST API: one two-column
// container, three plain fields and a tab hidden until the amount is large.
const expenseForm = `{
  "id": 1001,
  "name": "Expense claim",
  "taskId": "42",
  "tabs": [
    {"id": "general", "title": "General"},
    {"id": "approval", "title": "Approval",
     "visibilityCondition": {"leftFormFieldId": "amount", "operator": ">", "rightValue": "1000"}}
  ],
  "variables": [{"name": "region", "type": "string", "value": "EU"}],
  "fields": [
    {"fieldType": "ContainerRepresentation", "id": "section1", "name": "Section", "type": "container",
     "numberOfColumns": 2, "tab": "general",
     "fields": {
       "1": [{"fieldType": "FormFieldRepresentation", "id": "amount", "name": "Amount", "type": "integer",
              "value": 500, "tab": "general"}],
       "2": [{"fieldType": "RestFieldRepresentation", "id": "status", "name": "Status", "type": "dropdown",
              "value": "APPROVED", "tab": "general",
              "options": [{"id": "PENDING", "name": "Pending"}, {"id": "APPROVED", "name": "Approved"}]}]
     }},
    {"fieldType": "FormFieldRepresentation", "id": "manager", "name": "Manager", "type": "text", "tab": "approval",
     "visibilityCondition": {
       "leftFormFieldId": "status", "operator": "==", "rightValue": "APPROVED",
       "nextConditionOperator": "and",
       "nextCondition": {"leftRestResponseId": "region", "operator": "==", "rightValue": "EU"}}},
    {"fieldType": "FormFieldRepresentation", "id": "reason", "name": "Reason", "type": "text",
     "visibilityCondition": {"leftFormFieldId": "amount", "operator": ">=", "rightValue": "1000"}},
    {"fieldType": "FormFieldRepresentation", "id": "due", "name": "Due", "type": "date",
     "value": "2023-01-01T00:00:00.000Z",
     "visibilityCondition": {"leftFormFieldId": "due", "operator": "==", "rightValue": "2023-01-01"}}
  ]
}`
