package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/ccgateway/internal/tui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Launch the terminal dashboard",
	RunE:  runDashboard,
}

var startGateway bool

func init() {
	dashboardCmd.Flags().BoolVar(&startGateway, "start", false, "Start a background gateway when none is reachable")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if startGateway && !isGatewayRunning(apiAddr) {
		fmt.Println("Gateway not running. Starting background service...")
		if err := startBackgroundGateway(); err != nil {
			return fmt.Errorf("failed to start gateway: %w", err)
		}
	}

	app := tui.New(apiAddr)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func isGatewayRunning(addr string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func startBackgroundGateway() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"serve"}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	for _, f := range envFiles {
		args = append(args, "--env-file", f)
	}
	cmd := exec.Command(exe, args...)
	// Detach so the gateway survives the dashboard exiting.
	configureDetached(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	fmt.Print("   Waiting for gateway...")
	for i := 0; i < 20; i++ {
		if isGatewayRunning(apiAddr) {
			fmt.Println(" Done.")
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" Timeout!")
	return fmt.Errorf("gateway started but API not reachable at %s", apiAddr)
}
