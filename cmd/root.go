/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/allbin/go-serialwait"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
	fs      = afero.NewOsFs()
	logger  = zerolog.Nop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "serialwait",
	Short: "Deadline-aware, interruptible waits on serial descriptors",
	Long: `serialwait computes and runs the bounded waits used to read from serial
ports, ptys and pipes without ever blocking past a deadline or beyond the
reach of an interrupt.

Settings are read from flags, SERIALWAIT_* environment variables and
$HOME/.serialwait.yaml, in that order of precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(v, fs, cfgFile); err != nil {
			return err
		}
		l, err := newLogger(v.GetString("log-level"), os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.serialwait.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().Duration("poll-period", serialwait.DefaultPollPeriod, "Interrupt poll period, whole milliseconds (0 disables polling)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Default read timeout (0 waits until data arrives or Ctrl+C)")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name != "config" {
			_ = v.BindPFlag(f.Name, f)
		}
	})
}

// loadConfig wires environment variables and the optional config file into
// v. A missing default config file is not an error; a missing explicit one is.
func loadConfig(v *viper.Viper, fs afero.Fs, path string) error {
	v.SetFs(fs)
	v.SetEnvPrefix("SERIALWAIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".serialwait")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

// waitOptions turns the resolved configuration into library options
func waitOptions(v *viper.Viper, logger zerolog.Logger) []serialwait.Option {
	opts := []serialwait.Option{
		serialwait.WithPollPeriod(v.GetDuration("poll-period")),
		serialwait.WithLogger(logger),
	}
	if timeout := v.GetDuration("timeout"); timeout > 0 {
		opts = append(opts, serialwait.WithTimeout(timeout))
	} else {
		opts = append(opts, serialwait.WithoutTimeout())
	}
	return opts
}

// describeTimeout renders a timeout flag value for humans
func describeTimeout(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}
