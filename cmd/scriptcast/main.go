// Command scriptcast renders multi-speaker dialogue scripts into a single
// WAV track.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/MrWong99/scriptcast/internal/config"
)

// Version is set at build time.
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scriptcast",
		Short:         "Turn dialogue scripts into multi-voice audio",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("config", "", "path to the YAML configuration file (default: built-in defaults)")
	root.AddCommand(newSynthesizeCmd(), newBackendsCmd())
	return root
}

// loadConfig loads the file named by --config, or the defaults when the flag
// is empty, and installs the logger for the configured level.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found", path)
		}
		return nil, err
	}

	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Debug("configuration loaded",
		"config", path,
		"output_dir", cfg.Output.Dir,
		"log_level", cfg.Server.LogLevel,
	)
	return cfg, nil
}

// newLogger returns a slog logger backed by a charmbracelet/log handler on
// stderr.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl charmlog.Level
	switch level {
	case config.LogDebug:
		lvl = charmlog.DebugLevel
	case config.LogWarn:
		lvl = charmlog.WarnLevel
	case config.LogError:
		lvl = charmlog.ErrorLevel
	default:
		lvl = charmlog.InfoLevel
	}
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           lvl,
		Prefix:          "scriptcast",
	})
	return slog.New(handler)
}
