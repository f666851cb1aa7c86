package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const watchDebounce = 200 * time.Millisecond

// reportWatcher re-evaluates one form file on every save and prints what changed.
type reportWatcher struct {
	path     string
	opts     evalOptions
	format   string
	out      io.Writer
	logger   *zap.Logger
	debounce time.Duration

	last string
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		varsPath string
		dataPath string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-evaluate a form file whenever it is saved",
		Long: `Watch prints the visibility report of a form file, then a unified diff
of the report every time a save changes which fields or tabs are visible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			var opts evalOptions
			if err := decodeFile(varsPath, &opts.vars); err != nil {
				return fmt.Errorf("process variables: %w", err)
			}
			if err := decodeFile(dataPath, &opts.data); err != nil {
				return fmt.Errorf("form data: %w", err)
			}
			opts.logger = a.logger

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			w := &reportWatcher{
				path:     path,
				opts:     opts,
				format:   output,
				out:      cmd.OutOrStdout(),
				logger:   a.logger,
				debounce: watchDebounce,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&varsPath, "vars", "", "process variables file (JSON or YAML)")
	cmd.Flags().StringVar(&dataPath, "data", "", "field values overlay (JSON or YAML)")
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "output format: json or yaml")
	return cmd
}

// Run blocks until ctx is done. The directory is watched rather than the file
// so that editors which save by rename are still followed.
func (w *reportWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	_ = w.refresh()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			pending = time.After(w.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-pending:
			pending = nil
			_ = w.refresh()
		}
	}
}

// refresh evaluates the file and writes the full report the first time,
// then only a diff against the previous report.
func (w *reportWatcher) refresh() error {
	current, err := w.render()
	if err != nil {
		w.logger.Warn("evaluation failed", zap.String("file", w.path), zap.Error(err))
		return err
	}

	switch {
	case w.last == "":
		_, err = io.WriteString(w.out, current)
	case current == w.last:
		w.logger.Debug("visibility unchanged", zap.String("file", w.path))
	default:
		var diff string
		diff, err = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(w.last),
			B:        difflib.SplitLines(current),
			FromFile: w.path + " (before)",
			ToFile:   w.path + " (after)",
			Context:  1,
		})
		if err == nil {
			_, err = io.WriteString(w.out, diff)
		}
	}
	w.last = current
	return err
}

func (w *reportWatcher) render() (string, error) {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return "", err
	}
	result := evaluateSource(w.path, raw, w.opts)
	if result.Error != "" {
		return "", errors.New(result.Error)
	}
	var buf bytes.Buffer
	if err := writeOutput(&buf, w.format, result.document()); err != nil {
		return "", err
	}
	return buf.String(), nil
}
