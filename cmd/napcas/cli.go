package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/napcas-ml/napcas/internal/envconfig"
	"github.com/napcas-ml/napcas/internal/parallel"
	"github.com/napcas-ml/napcas/internal/version"
)

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI builds the napcas command tree.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "napcas",
		Short:         "Small neural network engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				versionHandler(cmd, args)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	trainCmd := newTrainCmd()
	evalCmd := newEvalCmd()
	inspectCmd := newInspectCmd()

	envVars := envconfig.AsMap()
	for _, cmd := range []*cobra.Command{trainCmd, evalCmd} {
		appendEnvDocs(cmd, []envconfig.EnvVar{
			envVars["NAPCAS_DEBUG"],
			envVars["NAPCAS_NUM_THREADS"],
			envVars["NAPCAS_NO_PARALLEL"],
			envVars["NAPCAS_SEED"],
			envVars["NAPCAS_CHECKPOINT_DIR"],
		})
	}
	appendEnvDocs(inspectCmd, []envconfig.EnvVar{envVars["NAPCAS_DEBUG"]})

	rootCmd.AddCommand(
		trainCmd,
		evalCmd,
		inspectCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Args:  cobra.NoArgs,
			Run:   versionHandler,
		},
	)
	return rootCmd
}

// setupLogging installs a text logger on stderr at the NAPCAS_DEBUG level
// and applies the kernel worker pool settings.
func setupLogging(cmd *cobra.Command) {
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: envconfig.LogLevel()})))
	cfg := parallel.DefaultConfig()
	parallel.SetDefault(cfg)
	slog.Debug("worker pool", "enabled", cfg.Enabled, "workers", cfg.NumWorkers)
}

func versionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "napcas version %s\n", version.Version)
}
