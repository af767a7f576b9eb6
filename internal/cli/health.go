package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/scrapouille/scrapouille/internal/client"
	"github.com/spf13/cobra"
)

var (
	healthWatch    bool
	healthInterval time.Duration
	healthJSON     bool
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the extraction service's health",
	Long: `Query the extraction service's /health endpoint. With --watch, poll
continuously and print a status line per check until interrupted.`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().BoolVarP(&healthWatch, "watch", "w", false, "poll continuously")
	healthCmd.Flags().DurationVar(&healthInterval, "interval", 0, "poll interval for --watch (default from config)")
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print the raw health payload as JSON")
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !healthWatch {
		status, err := apiClient.Health(ctx)
		if err != nil {
			printHealthError(err)
			return fmt.Errorf("service unreachable")
		}
		if healthJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}
		printHealthStatus(status)
		if !status.Healthy() {
			return fmt.Errorf("service %s", status.Status)
		}
		return nil
	}

	interval := healthInterval
	if interval == 0 {
		interval = cfg.HealthInterval
	}
	poller := client.NewPoller(apiClient, interval, logger)
	for update := range poller.Watch(ctx) {
		stamp := time.Now().Format("15:04:05")
		if update.Err != nil {
			fmt.Printf("%s %s %v\n", stamp, defaultTheme.errorStyle().Render("unreachable"), update.Err)
			continue
		}
		fmt.Printf("%s %s ollama=%v redis=%v uptime=%s\n",
			stamp,
			renderHealthState(update.Status),
			update.Status.Connections.Ollama,
			update.Status.Connections.Redis,
			formatUptime(update.Status.UptimeSeconds))
	}
	return nil
}

func printHealthError(err error) {
	fmt.Println(defaultTheme.errorStyle().Render("Service unreachable"))
	fmt.Printf("  %v\n", err)
	fmt.Println(defaultTheme.hintStyle().Render("  Is the extraction API running? Check --api-url or SCRAPOUILLE_API_URL."))
}

func printHealthStatus(status *client.HealthStatus) {
	fmt.Printf("Status:   %s\n", renderHealthState(status))
	fmt.Printf("Version:  %s\n", status.Version)
	fmt.Printf("Uptime:   %s\n", formatUptime(status.UptimeSeconds))
	fmt.Printf("Ollama:   %s\n", renderConn(status.Connections.Ollama))
	fmt.Printf("Redis:    %s\n", renderConn(status.Connections.Redis))
	fmt.Printf("Cache:    %v\n", status.Backend.CacheEnabled)
	fmt.Printf("Metrics:  %v\n", status.Backend.MetricsEnabled)
}

func renderHealthState(status *client.HealthStatus) string {
	switch status.Status {
	case "healthy":
		return defaultTheme.successStyle().Render(status.Status)
	case "degraded":
		return defaultTheme.warningStyle().Render(status.Status)
	default:
		return defaultTheme.errorStyle().Render(status.Status)
	}
}

func renderConn(up bool) string {
	if up {
		return defaultTheme.successStyle().Render("connected")
	}
	return defaultTheme.errorStyle().Render("down")
}

func formatUptime(seconds float64) string {
	return (time.Duration(seconds) * time.Second).String()
}
