package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RULEBOX"

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "rulebox",
		Short: "Run review rule files in an isolated JavaScript environment",
		Long: `rulebox - Run dangerfile-style review rules against a repository.

Rule files call fail, warn, message and markdown as plain globals. Every
file given to one invocation shares a single result set, which is printed
once all files have run. Capabilities beyond reporting (filesystem, HTTP,
key-value store) are off unless enabled with flags.

Flags can also be set with RULEBOX_* environment variables or a
rulebox.yaml file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(v, cmd); err != nil {
				return err
			}
			return setupLogging(cmd, v.GetString("log-level"))
		},
	}

	root.PersistentFlags().String("config", "", "Config file (default: ./rulebox.yaml)")
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(newRunCmd(v), newCleanCmd(v))
	return root
}

// loadConfig layers flags over RULEBOX_* env vars over the config file.
func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rulebox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	return bindErr
}

func setupLogging(cmd *cobra.Command, level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.Kitchen,
		NoColor:    cmd.ErrOrStderr() != os.Stderr,
	}).Level(lvl).With().Timestamp().Logger()

	cmd.SetContext(logger.WithContext(cmd.Context()))
	return nil
}
