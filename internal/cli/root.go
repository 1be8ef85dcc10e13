// Package cli provides the command-line interface for legacyscan.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/legacyscan/internal/cli/commands"
	"github.com/leapstack-labs/legacyscan/internal/cli/config"
	"github.com/leapstack-labs/legacyscan/internal/cli/output"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// rendererKey is used to store renderer in context.
type rendererKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "legacyscan",
		Short: "legacyscan - Legacy table and field reference scanner",
		Long: `legacyscan finds where legacy tables and fields are used across a
codebase of SQL, HiveQL, shell, Python/PySpark, Scala, Java and config files.

Given a dictionary of (table, field) entries it reports every occurrence,
resolving table aliases, and builds a lineage graph of scripts and the
tables they read and write, with diagram views of that graph.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)

			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			ctx = context.WithValue(ctx, rendererKey{}, renderer)
			cmd.SetContext(ctx)

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", slog.String("path", configFile))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./legacyscan.yaml)")
	rootCmd.PersistentFlags().String("root", "", "Source root to scan (default: project root)")
	rootCmd.PersistentFlags().StringSlice("dictionary", nil, "Dictionary files (.csv, .tsv, .yaml, .json); repeatable")
	rootCmd.PersistentFlags().String("state", "", "Path to state database")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("dictionary", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"csv", "tsv", "yaml", "yml", "json"}, cobra.ShellCompDirectiveFilterFileExt
	})

	rootCmd.AddCommand(commands.NewVersionCommand(Version, BuildDate, GitCommit))
	rootCmd.AddCommand(commands.NewScanCommand())
	rootCmd.AddCommand(commands.NewViewCommand())
	rootCmd.AddCommand(commands.NewLineageCommand())
	rootCmd.AddCommand(commands.NewSearchCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return config.Default()
}

// GetRenderer retrieves the renderer from the command context.
func GetRenderer(ctx context.Context) *output.Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	return output.NewRenderer(os.Stdout, os.Stderr, output.ModeAuto)
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for legacyscan.

To load completions:

Bash:
  $ source <(legacyscan completion bash)

Zsh:
  $ legacyscan completion zsh > "${fpath[1]}/_legacyscan"

Fish:
  $ legacyscan completion fish | source

PowerShell:
  PS> legacyscan completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
