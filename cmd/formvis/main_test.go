package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dlovans/formvis/internal/config"
	"github.com/dlovans/formvis/pkg/visibility"
)

const amountForm = `{
  "id": "f1",
  "fields": [
    {"id": "amount", "name": "Amount", "type": "integer", "value": 500},
    {"id": "note", "name": "Note", "type": "text",
     "visibilityCondition": {"leftFormFieldId": "amount", "operator": ">", "rightValue": "1000"}},
    {"id": "vip", "name": "VIP", "type": "text",
     "visibilityCondition": {"leftRestResponseId": "tier", "operator": "==", "rightValue": "gold"}}
  ]
}`

const brokenForm = `{"id": "f2", "fields": [
  {"id": "x", "visibilityCondition": {"leftFormFieldId": "x", "operator": "~~", "rightValue": 1}}
]}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the CLI with an isolated environment and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	return out.String(), err
}

func TestEvaluateFilesKeepsOrderAndIsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	good := writeFile(t, "good.json", amountForm)
	broken := writeFile(t, "broken.json", brokenForm)
	missing := filepath.Join(t.TempDir(), "missing.json")
	opts := evalOptions{
		vars: []visibility.ProcessVariable{{ID: "tier", Value: "gold"}},
		data: map[string]any{"amount": 2000},
	}

	results, err := evaluateFiles(context.Background(), []string{good, broken, missing, good}, opts)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, good, results[0].File)
	assert.Empty(t, results[0].Error)
	assert.True(t, results[0].Report.Fields["note"])
	assert.True(t, results[0].Report.Fields["vip"])

	assert.Contains(t, results[1].Error, "invalid visibility operator")
	assert.NotEmpty(t, results[2].Error)
	assert.Equal(t, results[0].Report, results[3].Report)
	assert.Equal(t, 2, countFailed(results))
}

func TestEvaluateFilesCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := evaluateFiles(ctx, []string{writeFile(t, "a.json", amountForm)}, evalOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvalCommandFromStdin(t *testing.T) {
	vars := writeFile(t, "vars.json", `[{"id": "tier", "type": "string", "value": "gold"}]`)

	out, err := execute(t, amountForm, "eval", "--vars", vars)
	require.NoError(t, err)

	var report visibility.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "f1", report.FormID)
	assert.Equal(t, map[string]bool{"amount": true, "note": false, "vip": true}, report.Fields)
}

func TestEvalCommandYAMLForm(t *testing.T) {
	form := writeFile(t, "form.json", amountForm)
	data := writeFile(t, "data.yaml", "amount: 5000\n")

	out, err := execute(t, "", "eval", "--data", data, "--form", "--output", "yaml", form)
	require.NoError(t, err)
	assert.Contains(t, out, "id: note")
	assert.Contains(t, out, "isVisible: true")
	assert.NotContains(t, out, "container")
}

func TestEvalCommandBatchReportsFailures(t *testing.T) {
	good := writeFile(t, "good.json", amountForm)
	broken := writeFile(t, "broken.json", brokenForm)

	out, err := execute(t, "", "eval", good, broken)
	assert.EqualError(t, err, "1 of 2 forms failed")

	var results []evalResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error)
}

func TestEvalCommandRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, amountForm, "eval", "--output", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestLintCommand(t *testing.T) {
	out, err := execute(t, amountForm, "lint")
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)

	out, err = execute(t, "", "lint", "--output", "yaml", writeFile(t, "broken.json", brokenForm))
	assert.ErrorContains(t, err, "lint errors")
	assert.Contains(t, out, "valid: false")
	assert.Contains(t, out, "severity: error")
}

func TestFetchCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/activiti-app/api/enterprise/tasks/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "42", "processDefinitionId": "p:1:1", "processDefinitionDeploymentId": "1"}`))
	})
	mux.HandleFunc("/activiti-app/api/enterprise/task-forms/42", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(amountForm))
	})
	mux.HandleFunc("/activiti-app/api/enterprise/task-forms/42/variables", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id": "tier", "type": "string", "value": "gold"}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := execute(t, "", "fetch", "--task", "42", "--base-url", srv.URL+"/activiti-app")
	require.NoError(t, err)

	var report visibility.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Fields["vip"])
	assert.False(t, report.Fields["note"])
}

func TestFetchCommandNeedsBaseURL(t *testing.T) {
	_, err := execute(t, "", "fetch", "--task", "42")
	assert.ErrorContains(t, err, "no Activiti base URL")

	_, err = execute(t, "", "fetch")
	assert.ErrorContains(t, err, "task")
}
