package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dlovans/formvis/pkg/visibility"
)

const stdinName = "-"

type evalOptions struct {
	vars        []visibility.ProcessVariable
	data        map[string]any
	includeForm bool
	logger      *zap.Logger
}

// evalResult is the outcome for one form definition.
type evalResult struct {
	File   string             `json:"file" yaml:"file"`
	Report *visibility.Report `json:"report,omitempty" yaml:"report,omitempty"`
	Form   any                `json:"form,omitempty" yaml:"form,omitempty"`
	Error  string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r evalResult) document() any {
	if r.Form != nil {
		return r.Form
	}
	return r.Report
}

func newEvalCmd(a *app) *cobra.Command {
	var (
		varsPath string
		dataPath string
		output   string
		opts     evalOptions
	)

	cmd := &cobra.Command{
		Use:   "eval [files...]",
		Short: "Evaluate the visibility of every field and tab",
		Long:  "Evaluate form definitions read from files, or from stdin when no file is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			if err := decodeFile(varsPath, &opts.vars); err != nil {
				return fmt.Errorf("process variables: %w", err)
			}
			if err := decodeFile(dataPath, &opts.data); err != nil {
				return fmt.Errorf("form data: %w", err)
			}
			opts.logger = a.logger

			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				result := evaluateSource(stdinName, raw, opts)
				if result.Error != "" {
					return errors.New(result.Error)
				}
				return writeOutput(cmd.OutOrStdout(), output, result.document())
			}

			results, err := evaluateFiles(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			if len(results) == 1 {
				if results[0].Error != "" {
					return errors.New(results[0].Error)
				}
				return writeOutput(cmd.OutOrStdout(), output, results[0].document())
			}
			if err := writeOutput(cmd.OutOrStdout(), output, results); err != nil {
				return err
			}
			if failed := countFailed(results); failed > 0 {
				return fmt.Errorf("%d of %d forms failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&varsPath, "vars", "", "process variables file (JSON or YAML list of {id, type, value})")
	cmd.Flags().StringVar(&dataPath, "data", "", "field values overlay (JSON or YAML map of field id to value)")
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "output format: json or yaml")
	cmd.Flags().BoolVar(&opts.includeForm, "form", false, "print the full form with isVisible flags instead of the report")
	return cmd
}

// evaluateFiles evaluates every path concurrently. Results keep the order of paths;
// per-file failures are reported in the result, not as the returned error.
func evaluateFiles(ctx context.Context, paths []string, opts evalOptions) ([]evalResult, error) {
	results := make([]evalResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				results[i] = evalResult{File: path, Error: err.Error()}
				return nil
			}
			results[i] = evaluateSource(path, raw, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func evaluateSource(name string, raw []byte, opts evalOptions) evalResult {
	result := evalResult{File: name}
	logger := opts.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("file", name))

	form, err := visibility.Parse(raw, visibility.WithData(opts.data))
	if err != nil {
		logger.Debug("form rejected", zap.Error(err))
		result.Error = fmt.Sprintf("%s: %v", name, err)
		return result
	}

	e := visibility.New(visibility.WithLogger(logger), visibility.WithProcessVariables(opts.vars))
	result.Report = e.Report(form)
	if opts.includeForm {
		doc, err := formDocument(form)
		if err != nil {
			result.Error = fmt.Sprintf("%s: %v", name, err)
			return result
		}
		result.Form = doc
	}
	logger.Debug("form evaluated", zap.Int("fields", len(result.Report.Fields)))
	return result
}

func countFailed(results []evalResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
