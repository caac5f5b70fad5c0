package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// flagKeys maps command flags onto configuration keys. A flag only
// overrides the key when the running command defines it.
var flagKeys = map[string]string{
	"log-level":     "logger.level",
	"backend":       "browser.backend",
	"headless":      "browser.headless",
	"base-url":      "target.base_url",
	"log-date":      "target.log_date",
	"timeout":       "runner.default_timeout",
	"concurrency":   "runner.concurrency",
	"format":        "report.format",
	"output":        "report.output",
	"theme":         "report.theme",
	"artifacts-dir": "artifacts.dir",
}

// NewRootCommand builds the command tree with the production browser backends.
func NewRootCommand() *cobra.Command {
	return newRootCommand(NewSessionFactoryProvider())
}

func newRootCommand(provider sessionFactoryProvider) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "walkthrough",
		Short: "Walkthrough drives LogMind through a real browser and reports what broke.",
		Long: `Walkthrough runs scripted user journeys (login, daily logs, user management)
against a LogMind deployment. Each step performs an action, then polls a check
until it holds or times out. Informative checks only warn; critical ones end the
journey.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "walkthrough"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded.", zap.String("version", Version), zap.String("backend", cfg.Browser.Backend))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./walkthrough.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.SetVersionTemplate("walkthrough version {{.Version}}\n")

	rootCmd.AddCommand(newRunCmd(provider))
	rootCmd.AddCommand(newWatchCmd(provider))
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the CLI. Failures are logged once here; the caller only maps
// the error to an exit code.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrScenarioFailed) {
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
	}
	return err
}

// initializeConfig layers the config file, WALKTHROUGH_* environment
// variables and command flags onto v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("walkthrough")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WALKTHROUGH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment apply.
	}

	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
