package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiiskristo/howdoyoufindme/internal/config"
	"github.com/kiiskristo/howdoyoufindme/internal/version"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	var ping bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. API: %s (transport: %s)\n", cfg.Client.APIURL, transportName(cfg.Client.Transport))
			if err := cfg.ValidateBackend(); err != nil {
				fmt.Fprintf(out, "Daemon config incomplete: %v\n", err)
			} else {
				fmt.Fprintf(out, "Providers: %d, models: %d, listen: %s, metrics: %v\n",
					len(cfg.Providers), len(cfg.Models), cfg.Server.Addr, cfg.Server.MetricsEnabled)
			}

			if !ping {
				return nil
			}
			if err := pingBackend(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("backend unreachable: %w", err)
			}
			fmt.Fprintln(out, "Backend OK")
			return nil
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "Also check that the backend answers /health")
	return cmd
}

func pingBackend(ctx context.Context, cfg *config.Config) error {
	timeout := cfg.Client.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(cfg.Client.APIURL, "/")+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", res.Status)
	}
	return nil
}
