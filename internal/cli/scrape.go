package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/scrapouille/scrapouille/internal/client"
	"github.com/scrapouille/scrapouille/internal/history"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	scrapePrompt      string
	scrapeTemplate    string
	scrapeModel       string
	scrapeSchema      string
	scrapeNoCache     bool
	scrapeNoRateLimit bool
	scrapeStealth     bool
	scrapeMarkdown    bool
	scrapeJSON        bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape a single URL",
	Long: `Extract structured data from one URL using the remote extraction
service. The prompt describes what to pull out of the page; use a
built-in template for common cases.

Examples:
  scrapouille scrape https://example.com/item -p "Extract name and price"
  scrapouille scrape https://example.com/post --template articles
  scrapouille scrape https://example.com --template products --json | jq .data`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapePrompt, "prompt", "p", "", "extraction prompt")
	scrapeCmd.Flags().StringVarP(&scrapeTemplate, "template", "t", "", "use a built-in prompt template")
	scrapeCmd.Flags().StringVarP(&scrapeModel, "model", "m", "", "primary LLM model")
	scrapeCmd.Flags().StringVarP(&scrapeSchema, "schema", "s", "", "validation schema name")
	scrapeCmd.Flags().BoolVar(&scrapeNoCache, "no-cache", false, "bypass the service cache")
	scrapeCmd.Flags().BoolVar(&scrapeNoRateLimit, "no-rate-limit", false, "disable service rate limiting")
	scrapeCmd.Flags().BoolVar(&scrapeStealth, "stealth", false, "enable stealth mode anti-detection")
	scrapeCmd.Flags().BoolVar(&scrapeMarkdown, "markdown", false, "extract from a markdown rendering of the page")
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "print the full response as JSON")
}

func runScrape(cmd *cobra.Command, args []string) error {
	url := args[0]

	prompt, err := resolvePrompt(scrapePrompt, scrapeTemplate)
	if err != nil {
		return err
	}

	model := scrapeModel
	if model == "" {
		model = cfg.DefaultModel
	}
	rateLimit := cfg.DefaultRateLim
	if scrapeNoRateLimit {
		rateLimit = "none"
	}
	stealth := "off"
	if scrapeStealth {
		stealth = cfg.DefaultStealth
		if stealth == "off" {
			stealth = "medium"
		}
	}

	req := client.ScrapeRequest{
		URL:           url,
		Prompt:        prompt,
		Model:         model,
		SchemaName:    scrapeSchema,
		UseCache:      !scrapeNoCache,
		RateLimitMode: rateLimit,
		StealthLevel:  stealth,
		MarkdownMode:  scrapeMarkdown,
	}

	// Ctrl+C cancels the request instead of killing the process mid-write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	var resp *client.ScrapeResponse
	if !scrapeJSON && term.IsTerminal(int(os.Stdout.Fd())) {
		resp, err = scrapeWithSpinner(ctx, url, req)
	} else {
		resp, err = apiClient.Scrape(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}

	recordScrapeHistory(url, prompt, resp, time.Since(start))

	if scrapeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	return printScrapeResult(resp)
}

func printScrapeResult(resp *client.ScrapeResponse) error {
	theme := defaultTheme

	if !resp.Success {
		detail := ""
		if resp.Error != nil {
			detail = ": " + *resp.Error
		}
		fmt.Println(theme.errorStyle().Render("Extraction failed") + detail)
		return fmt.Errorf("extraction failed")
	}

	data, err := json.MarshalIndent(resp.Data, "", "  ")
	if err != nil {
		return fmt.Errorf("render result: %w", err)
	}
	fmt.Println(string(data))

	m := resp.Metadata
	fmt.Println()
	fmt.Printf("%s model=%s time=%.2fs fallbacks=%d cached=%v",
		theme.hintStyle().Render("meta:"),
		m.ModelUsed, m.ExecutionTime, m.FallbackAttempts, m.Cached)
	if m.ValidationPassed != nil {
		fmt.Printf(" validation=%v", *m.ValidationPassed)
	}
	fmt.Println()
	return nil
}

// scrapeDoneMsg carries the API response into the spinner model.
type scrapeDoneMsg struct {
	resp *client.ScrapeResponse
	err  error
}

// scrapeSpinnerModel shows a spinner while the extraction runs.
type scrapeSpinnerModel struct {
	spinner spinner.Model
	url     string
	req     client.ScrapeRequest
	ctx     context.Context

	resp *client.ScrapeResponse
	err  error
}

func newScrapeSpinnerModel(ctx context.Context, url string, req client.ScrapeRequest) scrapeSpinnerModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return scrapeSpinnerModel{spinner: sp, url: url, req: req, ctx: ctx}
}

func (m scrapeSpinnerModel) Init() tea.Cmd {
	ctx, req := m.ctx, m.req
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg {
			resp, err := apiClient.Scrape(ctx, req)
			return scrapeDoneMsg{resp: resp, err: err}
		},
	)
}

func (m scrapeSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			m.err = context.Canceled
			return m, tea.Quit
		}
	case scrapeDoneMsg:
		m.resp = msg.resp
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m scrapeSpinnerModel) View() tea.View {
	return tea.NewView(fmt.Sprintf("%s Scraping %s ...", m.spinner.View(), truncate(m.url, 60)))
}

func scrapeWithSpinner(ctx context.Context, url string, req client.ScrapeRequest) (*client.ScrapeResponse, error) {
	p := tea.NewProgram(newScrapeSpinnerModel(ctx, url, req))
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}
	m, ok := finalModel.(scrapeSpinnerModel)
	if !ok {
		return nil, fmt.Errorf("unexpected scrape model type")
	}
	return m.resp, m.err
}

func recordScrapeHistory(url, prompt string, resp *client.ScrapeResponse, elapsed time.Duration) {
	db, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	defer db.Close()

	m := resp.Metadata
	execTime := time.Duration(m.ExecutionTime * float64(time.Second))
	if execTime == 0 {
		execTime = elapsed
	}

	errText := ""
	if resp.Error != nil {
		errText = *resp.Error
	}
	rec := history.Record{
		URL:              url,
		PromptHash:       history.HashPrompt(prompt),
		Model:            m.ModelUsed,
		ExecutionTime:    execTime,
		FallbackAttempts: m.FallbackAttempts,
		Cached:           m.Cached,
		ValidationPassed: m.ValidationPassed == nil || *m.ValidationPassed,
		SchemaUsed:       scrapeSchema,
		Error:            errText,
	}
	if err := db.Log(rec); err != nil {
		logger.Warn("failed to record history", "url", url, "error", err)
	}
}
