// Package cli implements the porter command-line tool. Each command builds
// the same pipeline the HTTP server uses and prints outcomes to stdout;
// logs go to stderr.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/dataporter/internal/app"
	"github.com/JonMunkholm/dataporter/internal/config"
	"github.com/JonMunkholm/dataporter/internal/core"
	"github.com/JonMunkholm/dataporter/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// loadConfig reads .env and the environment and installs a stderr logger.
// Values already set in the environment win over .env for the CLI.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

// withApp loads configuration, builds the pipeline, and runs fn under a
// context that is cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Export.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Export.Timeout)
		defer cancel()
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// exportFlags are shared by run and export.
type exportFlags struct {
	format  string
	mode    string
	start   string
	end     string
	dir     string
	onEmpty string
}

func (f *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "output format: xlsx, csv, or txt (default from EXPORT_DEFAULT_FORMAT)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "EX", "file naming mode: EX, IM, or adhoc")
	cmd.Flags().StringVarP(&f.start, "start", "s", "", "period start (YYYYMMDD)")
	cmd.Flags().StringVarP(&f.end, "end", "e", "", "period end (YYYYMMDD)")
	cmd.Flags().StringVarP(&f.dir, "dir", "d", "", "output directory (default from config)")
	cmd.Flags().StringVar(&f.onEmpty, "on-empty", "export", "empty tables: export, skip, or prompt")
}

// resolved is exportFlags converted to pipeline values.
type resolved struct {
	format  core.Format
	mode    core.Mode
	dir     string
	onEmpty core.ZeroRecordFunc
}

func (f *exportFlags) resolve(cfg *config.Config, in io.Reader, out io.Writer) (resolved, error) {
	format, err := resolveFormat(f.format, cfg.Export.DefaultFormat)
	if err != nil {
		return resolved{}, err
	}
	mode, err := core.ParseMode(f.mode)
	if err != nil {
		return resolved{}, err
	}
	onEmpty, err := zeroRecordPolicy(f.onEmpty, in, out)
	if err != nil {
		return resolved{}, err
	}
	dir := f.dir
	if dir == "" {
		dir = cfg.Export.DirFor(string(mode))
	}
	return resolved{format: format, mode: mode, dir: dir, onEmpty: onEmpty}, nil
}

func resolveFormat(requested, fallback string) (core.Format, error) {
	if strings.TrimSpace(requested) == "" {
		requested = fallback
	}
	return core.ParseFormat(requested)
}

// userError wraps err with its coded user message for display.
func userError(err error) error {
	if err == nil {
		return nil
	}
	if msg := core.FormatUserError(err); msg != "" && core.IsUserFacing(err) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}
