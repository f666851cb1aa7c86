package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlovans/formvis/pkg/activiti"
	"github.com/dlovans/formvis/pkg/session"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		taskID   string
		baseURL  string
		username string
		password string
		dataPath string
		output   string
		withForm bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load a task form from an Activiti server and evaluate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			settings := a.cfg.Activiti
			if cmd.Flags().Changed("base-url") {
				settings.BaseURL = baseURL
			}
			if cmd.Flags().Changed("username") {
				settings.Username = username
			}
			if cmd.Flags().Changed("password") {
				settings.Password = password
			}
			if settings.BaseURL == "" {
				return errors.New("no Activiti base URL: set activiti.base_url, FORMVIS_BASE_URL or --base-url")
			}

			var data map[string]any
			if err := decodeFile(dataPath, &data); err != nil {
				return fmt.Errorf("form data: %w", err)
			}

			opts := []activiti.Option{
				activiti.WithTimeout(settings.Timeout),
				activiti.WithLogger(a.logger),
			}
			if settings.Username != "" {
				opts = append(opts, activiti.WithBasicAuth(settings.Username, settings.Password))
			}
			client, err := activiti.New(settings.BaseURL, opts...)
			if err != nil {
				return err
			}

			s := session.New(client, session.WithLogger(a.logger), session.WithData(data))
			defer s.Close()
			if err := s.Load(cmd.Context(), taskID); err != nil {
				return err
			}

			if withForm {
				doc, err := formDocument(s.Form())
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), output, doc)
			}
			report, err := s.Report()
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, report)
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Activiti app URL, e.g. http://localhost:8080/activiti-app")
	cmd.Flags().StringVar(&username, "username", "", "basic auth user")
	cmd.Flags().StringVar(&password, "password", "", "basic auth password")
	cmd.Flags().StringVar(&dataPath, "data", "", "field values overlay (JSON or YAML)")
	cmd.Flags().StringVarP(&output, "output", "o", formatJSON, "output format: json or yaml")
	cmd.Flags().BoolVar(&withForm, "form", false, "print the full form instead of the report")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}
