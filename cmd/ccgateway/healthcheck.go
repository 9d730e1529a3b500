package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/ccgateway/internal/healthcheck"
)

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Probe a running gateway and exit non-zero when it is unhealthy",
	Long: `Performs GET /health against the gateway. Exits 0 only for HTTP 200 with
status "healthy". Inside containers the claude-code binary must also be on PATH.`,
	RunE: runHealthcheck,
}

var (
	healthURL     string
	healthTimeout time.Duration
)

func init() {
	healthcheckCmd.Flags().StringVar(&healthURL, "url", "", "Health URL (default http://localhost:$MCP_PORT/health)")
	healthcheckCmd.Flags().DurationVar(&healthTimeout, "timeout", 0, "Probe timeout (default $HEALTH_CHECK_TIMEOUT seconds)")
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	url := healthURL
	if url == "" {
		url = fmt.Sprintf("http://localhost:%d/health", cfg.Port)
	}
	timeout := healthTimeout
	if timeout <= 0 {
		timeout = cfg.HealthCheckTimeout
	}

	probe := healthcheck.New(url, cfg.Runner.Binary, timeout)
	report, err := probe.Check(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Health check passed - status: %s, uptime: %dms\n", report.Status, report.UptimeMS)
	return nil
}
