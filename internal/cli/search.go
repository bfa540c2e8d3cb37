package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kiiskristo/howdoyoufindme/internal/config"
	"github.com/kiiskristo/howdoyoufindme/internal/logging"
	"github.com/kiiskristo/howdoyoufindme/internal/observability"
	"github.com/kiiskristo/howdoyoufindme/internal/search"
	"github.com/kiiskristo/howdoyoufindme/internal/stream"
)

// NewSearchCmd runs one search against the backend and renders its progress and report.
func NewSearchCmd(opts *Options) *cobra.Command {
	var replayPath string
	var format string
	var showStats bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "search \"<query>\"",
		Short: "Analyze how a company ranks in its market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			opener, err := buildOpener(cfg, replayPath, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			r := newRenderer(out)
			metrics := observability.NewMetrics()
			controllerOpts := []search.Option{
				search.WithLogger(logger),
				search.WithMetrics(metrics),
				search.WithContext(ctx),
			}
			if format == "text" {
				controllerOpts = append(controllerOpts, search.WithOnChange(newProgress(r).update))
			}

			c := search.NewController(opener, controllerOpts...)
			c.StartSearch(args[0])

			if err := wait(ctx, c, timeout); err != nil {
				return err
			}
			state := c.State()

			switch format {
			case "json":
				err = r.writeJSON(state)
			case "yaml":
				err = r.writeYAML(state)
			default:
				r.report(state)
			}
			if err != nil {
				return err
			}

			if showStats {
				if err := r.stats(metrics); err != nil {
					return err
				}
			}

			if state.HasError() {
				return fmt.Errorf("search failed: %s", state.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&replayPath, "replay", "", "Replay recorded frames from a file instead of calling the backend")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print client stream statistics after the search")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up waiting after this long (0 waits forever)")
	return cmd
}

func wait(ctx context.Context, c *search.Controller, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-c.Done():
		return nil
	case <-expired:
		return fmt.Errorf("search timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildOpener(cfg *config.Config, replayPath string, logger *zap.Logger) (stream.Opener, error) {
	if replayPath != "" {
		f, err := os.Open(replayPath)
		if err != nil {
			return nil, fmt.Errorf("open replay: %w", err)
		}
		defer f.Close()

		replay, err := stream.LoadReplay(f)
		if err != nil {
			return nil, fmt.Errorf("load replay: %w", err)
		}
		return replay, nil
	}

	switch transportName(cfg.Client.Transport) {
	case "connect":
		return stream.NewConnectOpener(cfg.Client.APIURL, nil, cfg.Client.DialTimeout, logger), nil
	case "sse":
		return stream.NewSSEOpener(cfg.Client.APIURL, nil, logger), nil
	default:
		return nil, errors.New("unsupported client transport " + cfg.Client.Transport)
	}
}

func transportName(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "" {
		return "sse"
	}
	return t
}
