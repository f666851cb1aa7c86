//go:build js && wasm

// Package main provides WASM bindings for the visibility evaluator.
// Browsers call it to recompute isVisible flags while the user edits a form.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/dlovans/formvis/pkg/lint"
	"github.com/dlovans/formvis/pkg/visibility"
)

func main() {
	js.Global().Set("FormvisRun", js.FuncOf(formvisRun))
	js.Global().Set("FormvisLint", js.FuncOf(formvisLint))

	// Keep the Go runtime alive
	select {}
}

// formvisRun wraps visibility.Run.
// Usage: FormvisRun(formJSON, varsJSON?) -> { result: object, error?: string }
func formvisRun(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("FormvisRun requires at least 1 argument: formJson")
	}

	var vars []visibility.ProcessVariable
	if len(args) > 1 && args[1].Type() == js.TypeString && args[1].String() != "" {
		if err := json.Unmarshal([]byte(args[1].String()), &vars); err != nil {
			return makeError("invalid process variables: " + err.Error())
		}
	}

	result, err := visibility.Run(args[0].String(), vars)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(result)
}

// formvisLint wraps lint.Run.
// Usage: FormvisLint(formJSON) -> { result: {valid, issues}, error?: string }
func formvisLint(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return makeError("FormvisLint requires 1 argument: formJson")
	}

	res, err := lint.Run(args[0].String())
	if err != nil {
		return makeError(err.Error())
	}
	out, err := json.Marshal(res)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(string(out))
}

func makeError(msg string) map[string]any {
	return map[string]any{
		"error": msg,
	}
}

// makeResult returns the JSON as a JS object, or as a string if it does not parse.
func makeResult(jsonStr string) map[string]any {
	var result any
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return map[string]any{
			"result": jsonStr,
		}
	}
	return map[string]any{
		"result": result,
	}
}
