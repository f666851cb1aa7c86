package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dlovans/formvis/pkg/lint"
)

type lintResult struct {
	File string `json:"file" yaml:"file"`
	lint.Result `yaml:",inline"`
}

func newLintCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "lint [files...]",
		Short: "Check visibility rules without evaluating them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}

			var results []lintResult
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				res, err := lint.Run(string(raw))
				if err != nil {
					return err
				}
				results = append(results, lintResult{File: stdinName, Result: *res})
			}
			for _, path := range args {
				raw, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				res, err := lint.Run(string(raw))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				a.logger.Debug("linted", zap.String("file", path), zap.Int("issues", len(res.Issues)))
				results = append(results, lintResult{File: path, Result: *res})
			}

			var doc any = results
			if len(results) == 1 {
				doc = results[0].Result
			}
			if err := writeOutput(cmd.OutOrStdout(), output, doc); err != nil {
				return err
			}
			for _, r := range results {
				if !r.Valid {
					return fmt.Errorf("lint errors in %s", r.File)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "output format: json or yaml")
	return cmd
}
