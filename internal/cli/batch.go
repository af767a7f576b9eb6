package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/scrapouille/scrapouille/internal/batch"
	"github.com/scrapouille/scrapouille/internal/client"
	"github.com/scrapouille/scrapouille/internal/history"
	"github.com/scrapouille/scrapouille/internal/templates"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	batchPrompt      string
	batchTemplate    string
	batchFile        string
	batchModelName      string
	batchSchema      string
	batchConcurrency int
	batchTimeout     time.Duration
	batchNoCache     bool
	batchNoRateLimit bool
	batchStealth     bool
	batchJSON        bool
	batchPlain       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch [url...]",
	Short: "Scrape a batch of URLs concurrently",
	Long: `Scrape multiple URLs with a shared extraction prompt.

URLs come from arguments, from --file (plain text or CSV), or from stdin
(one per line). Up to --concurrency extractions run in flight at once;
each URL's outcome is tracked independently, so one failure never stops
the rest of the batch.

Examples:
  scrapouille batch https://a.example https://b.example -p "Extract the title"
  scrapouille batch --file urls.csv --template products
  cat urls.txt | scrapouille batch -p "Extract title and author" -c 10`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchPrompt, "prompt", "p", "", "shared extraction prompt")
	batchCmd.Flags().StringVarP(&batchTemplate, "template", "t", "", "use a built-in prompt template")
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "read URLs from a file (.csv or plain text)")
	batchCmd.Flags().StringVarP(&batchModelName, "model", "m", "", "primary LLM model")
	batchCmd.Flags().StringVarP(&batchSchema, "schema", "s", "", "validation schema name")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", batch.DefaultConcurrency, "max concurrent extractions (1-20)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", batch.DefaultTimeout, "per-URL timeout")
	batchCmd.Flags().BoolVar(&batchNoCache, "no-cache", false, "bypass the service cache")
	batchCmd.Flags().BoolVar(&batchNoRateLimit, "no-rate-limit", false, "disable service rate limiting")
	batchCmd.Flags().BoolVar(&batchStealth, "stealth", false, "enable stealth mode anti-detection")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "print results as JSON")
	batchCmd.Flags().BoolVar(&batchPlain, "plain", false, "line-based progress instead of the dashboard")
}

func runBatch(cmd *cobra.Command, args []string) error {
	urls, err := collectURLs(args)
	if err != nil {
		return err
	}

	prompt, err := resolvePrompt(batchPrompt, batchTemplate)
	if err != nil {
		return err
	}

	model := batchModelName
	if model == "" {
		model = cfg.DefaultModel
	}

	req := batch.Request{
		URLs:            urls,
		Prompt:          prompt,
		Model:           model,
		SchemaName:      batchSchema,
		Concurrency:     batchConcurrency,
		TimeoutPerURL:   batchTimeout,
		UseCache:        !batchNoCache,
		UseRateLimiting: !batchNoRateLimit,
		UseStealth:      batchStealth,
	}

	runner, err := batch.NewRunner(req, client.NewExtractor(apiClient, req), logger)
	if err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	var outcome *batch.Outcome
	if useDashboard() {
		outcome, err = RunBatchDashboard(runner, urls)
	} else {
		outcome, err = runPlainBatch(runner, urls)
	}
	if err != nil {
		return err
	}
	if outcome == nil {
		fmt.Fprintln(os.Stderr, "Batch abandoned before the drain finished.")
		return nil
	}

	recordBatchHistory(runner, prompt, outcome)

	if batchJSON {
		if err := printBatchJSON(outcome); err != nil {
			return err
		}
	} else {
		printBatchResults(outcome)
	}

	// Exit code mirrors the service's batch semantics: the run counts as
	// failed only when every attempted item failed.
	if outcome.Summary.Attempted > 0 && outcome.Summary.Successful == 0 {
		return fmt.Errorf("batch failed: no URL extracted successfully")
	}
	return nil
}

// collectURLs gathers the URL list from args, --file, or stdin.
func collectURLs(args []string) ([]string, error) {
	if batchFile != "" {
		data, err := os.ReadFile(batchFile)
		if err != nil {
			return nil, fmt.Errorf("read URL file: %w", err)
		}
		urls := batch.ParseURLs(string(data), batch.DetectSource(batchFile))
		if len(urls) == 0 {
			return nil, fmt.Errorf("no URLs found in %s", batchFile)
		}
		return urls, nil
	}

	if len(args) > 0 {
		return batch.ParseURLs(strings.Join(args, "\n"), batch.SourcePasted), nil
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, fmt.Errorf("no URLs given: pass them as arguments, via --file, or on stdin")
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return batch.ParseURLs(string(data), batch.SourcePasted), nil
}

// resolvePrompt picks the template or the custom prompt.
func resolvePrompt(prompt, templateName string) (string, error) {
	if templateName != "" {
		tmpl, ok := templates.Get(templateName)
		if !ok {
			return "", fmt.Errorf("unknown template %q (see 'scrapouille templates')", templateName)
		}
		return tmpl, nil
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("a prompt is required: use --prompt or --template")
	}
	return prompt, nil
}

func useDashboard() bool {
	return !batchPlain && !batchJSON && term.IsTerminal(int(os.Stdout.Fd()))
}

// runPlainBatch drives the run without the TUI, printing one line per
// completed item. Used for pipes and --plain. Ctrl+C cancels dispatch and
// drains in-flight extractions.
func runPlainBatch(runner *batch.Runner, urls []string) (*batch.Outcome, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	updates, unsub := runner.Tracker().Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			if u.Result == nil {
				continue
			}
			mark := "ok"
			if !u.Result.Success {
				mark = "failed: " + u.Result.Error
			} else if u.Result.Cached {
				mark = "ok (cached)"
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s %s\n",
				u.Progress.Completed, u.Progress.Total, u.Result.URL, mark)
		}
	}()

	outcome, err := runner.Run(ctx)
	<-done
	return outcome, err
}

// recordBatchHistory logs every completed item to the local history store.
// History failures are logged, never fatal.
func recordBatchHistory(runner *batch.Runner, prompt string, outcome *batch.Outcome) {
	db, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	defer db.Close()

	hash := history.HashPrompt(prompt)
	for _, res := range outcome.Results {
		rec := history.Record{
			URL:              res.URL,
			PromptHash:       hash,
			Model:            res.ModelUsed,
			ExecutionTime:    res.ExecutionTime,
			FallbackAttempts: res.FallbackAttempts,
			Cached:           res.Cached,
			ValidationPassed: res.ValidationPassed == nil || *res.ValidationPassed,
			SchemaUsed:       batchSchema,
			Error:            res.Error,
			BatchID:          runner.ID().String(),
		}
		if err := db.Log(rec); err != nil {
			logger.Warn("failed to record history", "url", res.URL, "error", err)
		}
	}
}

// batchResultJSON mirrors the service's batch result wire shape.
type batchResultJSON struct {
	URL              string         `json:"url"`
	Index            int            `json:"index"`
	Success          bool           `json:"success"`
	Data             map[string]any `json:"data,omitempty"`
	Error            string         `json:"error,omitempty"`
	ExecutionTime    float64        `json:"execution_time"`
	ModelUsed        string         `json:"model_used,omitempty"`
	FallbackAttempts int            `json:"fallback_attempts"`
	Cached           bool           `json:"cached"`
	ValidationPassed *bool          `json:"validation_passed,omitempty"`
}

type batchSummaryJSON struct {
	Total         int     `json:"total"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	Cached        int     `json:"cached"`
	Attempted     int     `json:"attempted"`
	Skipped       int     `json:"skipped"`
	TotalTime     float64 `json:"total_time"`
	AvgTimePerURL float64 `json:"avg_time_per_url"`
	Cancelled     bool    `json:"cancelled"`
}

func printBatchJSON(outcome *batch.Outcome) error {
	results := make([]batchResultJSON, 0, len(outcome.Results))
	for _, res := range outcome.Results {
		results = append(results, batchResultJSON{
			URL:              res.URL,
			Index:            res.Index,
			Success:          res.Success,
			Data:             res.Data,
			Error:            res.Error,
			ExecutionTime:    res.ExecutionTime.Seconds(),
			ModelUsed:        res.ModelUsed,
			FallbackAttempts: res.FallbackAttempts,
			Cached:           res.Cached,
			ValidationPassed: res.ValidationPassed,
		})
	}
	s := outcome.Summary
	out := struct {
		Results []batchResultJSON `json:"results"`
		Summary batchSummaryJSON  `json:"summary"`
	}{
		Results: results,
		Summary: batchSummaryJSON{
			Total:         s.Total,
			Successful:    s.Successful,
			Failed:        s.Failed,
			Cached:        s.Cached,
			Attempted:     s.Attempted,
			Skipped:       s.Skipped,
			TotalTime:     s.TotalTime.Seconds(),
			AvgTimePerURL: s.AvgTimePerURL.Seconds(),
			Cancelled:     outcome.Cancelled,
		},
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// printBatchResults renders the final table and summary.
func printBatchResults(outcome *batch.Outcome) {
	theme := defaultTheme

	fmt.Println()
	fmt.Printf("%-50s %-10s %-8s %-20s %-7s %s\n", "URL", "STATUS", "TIME", "MODEL", "CACHED", "ERROR")
	fmt.Println(strings.Repeat("-", 110))
	for _, res := range outcome.Results {
		status := theme.successStyle().Render("ok")
		if !res.Success {
			status = theme.errorStyle().Render("failed")
		}
		cached := "no"
		if res.Cached {
			cached = "yes"
		}
		fmt.Printf("%-50s %-10s %-8s %-20s %-7s %s\n",
			truncate(res.URL, 50),
			status,
			fmt.Sprintf("%.2fs", res.ExecutionTime.Seconds()),
			truncate(res.ModelUsed, 20),
			cached,
			truncate(res.Error, 30))
	}

	s := outcome.Summary
	fmt.Println()
	state := theme.successStyle().Render("Batch completed")
	if outcome.Cancelled {
		state = theme.warningStyle().Render("Batch cancelled")
	}
	fmt.Printf("%s: %d/%d successful, %d failed, %d cached", state, s.Successful, s.Total, s.Failed, s.Cached)
	if s.Skipped > 0 {
		fmt.Printf(", %d skipped", s.Skipped)
	}
	fmt.Println()
	fmt.Printf("Total time: %.2fs, avg per URL: %.2fs (over %d attempted)\n",
		s.TotalTime.Seconds(), s.AvgTimePerURL.Seconds(), s.Attempted)
}
