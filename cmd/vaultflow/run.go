package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/vaultflow/agent"
	"github.com/kbukum/vaultflow/bootstrap"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/steps"
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		id       string
		printCtx bool
	)
	cmd := &cobra.Command{
		Use:   "run AGENTS",
		Short: "Run one agent pipeline now",
		Long: `Run the pipeline of one agent from an agent document. With more than one
agent in the document, --id selects which. Exits 1 when the document or
agent cannot be loaded and 2 when the pipeline fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgs, err := agent.Load(args[0])
			if err != nil {
				return withCode(exitConfig, err)
			}
			selected, err := agent.Select(cfgs, id)
			if err != nil {
				return withCode(exitConfig, err)
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return withCode(exitConfig, err)
			}

			var out step.Context
			err = app.RunTask(cmd.Context(), func(ctx context.Context) error {
				var runErr error
				out, runErr = app.Runner.Run(ctx, selected)
				return runErr
			})
			if err != nil {
				return withCode(exitPipeline, fmt.Errorf("pipeline %s failed: %w", selected.ID, err))
			}

			if printCtx {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pipeline executed successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "agent id to run")
	cmd.Flags().BoolVar(&printCtx, "print", false, "print the final context as JSON")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate AGENTS",
		Short: "Check an agent document against the step registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgs, err := agent.Load(args[0])
			if err != nil {
				return withCode(exitConfig, err)
			}
			reg, err := stepRegistry()
			if err != nil {
				return err
			}
			report := agent.Validate(cfgs, reg)
			w := cmd.OutOrStdout()
			if report.OK() {
				fmt.Fprintf(w, "OK: %d agent(s), all steps registered\n", report.Agents)
				return nil
			}
			for _, issue := range report.Issues {
				fmt.Fprintln(w, issue.String())
			}
			return withCode(exitConfig, fmt.Errorf("%d issue(s) in %s", len(report.Issues), args[0]))
		},
	}
}

// stepRegistry registers every step without dependencies; enough to list
// and validate names without touching the vault.
func stepRegistry() (*step.Registry, error) {
	reg := step.NewRegistry()
	if err := steps.RegisterAll(reg, &steps.Deps{}); err != nil {
		return nil, err
	}
	return reg, nil
}

func newStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List registered step names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := stepRegistry()
			if err != nil {
				return err
			}
			for _, name := range reg.Keys() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
