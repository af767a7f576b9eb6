package cli

import (
	"fmt"

	"github.com/scrapouille/scrapouille/internal/history"
	"github.com/spf13/cobra"
)

var (
	statsDays  int
	statsLimit int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local scrape history and statistics",
	Long: `Show aggregate statistics over the local scrape history, plus the
most recent scrapes. History is recorded automatically by the scrape
and batch commands.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 7, "aggregate over the last N days")
	statsCmd.Flags().IntVar(&statsLimit, "limit", 10, "number of recent scrapes to list")
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer db.Close()

	stats, err := db.Stats(statsDays)
	if err != nil {
		return err
	}

	theme := defaultTheme
	fmt.Printf("Scrape statistics, last %d days (%s)\n\n", statsDays, db.Path())

	if stats.TotalScrapes == 0 {
		fmt.Println(theme.hintStyle().Render("No scrapes recorded yet."))
		return nil
	}

	fmt.Printf("Total scrapes:        %d\n", stats.TotalScrapes)
	fmt.Printf("Avg execution time:   %.2fs\n", stats.AvgTime)
	fmt.Printf("Cache hits:           %d (%.1f%%)\n", stats.CacheHits, stats.CacheHitRate)
	fmt.Printf("Errors:               %d (%.1f%%)\n", stats.Errors, stats.ErrorRate)
	fmt.Printf("Validation failures:  %d\n", stats.ValidationFailures)

	if len(stats.ModelUsage) > 0 {
		fmt.Println("\nModel usage:")
		for _, mc := range stats.ModelUsage {
			fmt.Printf("  %-25s %d\n", mc.Model, mc.Count)
		}
	}

	records, err := db.Recent(statsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	fmt.Printf("\nRecent scrapes:\n")
	fmt.Printf("  %-16s %-45s %-8s %-20s %s\n", "WHEN", "URL", "TIME", "MODEL", "STATUS")
	for _, rec := range records {
		status := theme.successStyle().Render("ok")
		if rec.Error != "" {
			status = theme.errorStyle().Render(truncate(rec.Error, 25))
		} else if rec.Cached {
			status = theme.accentStyle().Render("cached")
		}
		fmt.Printf("  %-16s %-45s %-8s %-20s %s\n",
			rec.Timestamp.Format("Jan 02 15:04"),
			truncate(rec.URL, 45),
			fmt.Sprintf("%.2fs", rec.ExecutionTime.Seconds()),
			truncate(rec.Model, 20),
			status)
	}
	return nil
}
