package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/vaultflow/agent"
	"github.com/kbukum/vaultflow/bootstrap"
	"github.com/kbukum/vaultflow/planner"
)

func newScheduleCmd(g *globalFlags) *cobra.Command {
	var agentsPath, timezone string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run agents on their cron schedules until interrupted",
		Long: `Schedule every enabled agent with a cron expression and run until
SIGINT/SIGTERM. Running jobs finish before the process exits. When
server.enabled is set the admin API is served alongside.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if agentsPath != "" {
				cfg.Agents.Path = agentsPath
			}
			if timezone != "" {
				cfg.Agents.Timezone = timezone
			}
			if cfg.Agents.Path == "" {
				return withCode(exitConfig, fmt.Errorf("no agent document: pass --agents or set agents.path"))
			}

			cfgs, err := agent.Load(cfg.Agents.Path)
			if err != nil {
				return withCode(exitConfig, err)
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return withCode(exitConfig, err)
			}
			if _, err := app.Schedule(cfgs); err != nil {
				return withCode(exitConfig, err)
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&agentsPath, "agents", "", "agent document (overrides agents.path)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA time zone for cron expressions (overrides agents.timezone)")
	return cmd
}

func newAssistCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "assist",
		Short: "Plan and run vault actions from plain-language requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg)
			if err != nil {
				return withCode(exitConfig, err)
			}
			session := &planner.Session{
				Runner: app.Runner,
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
				Banner: "vaultflow assistant. Describe what to do; Ctrl-D to quit.",
			}
			return app.RunTask(cmd.Context(), func(ctx context.Context) error {
				return session.Loop(ctx)
			})
		},
	}
}
