package cli

import (
	"fmt"

	"github.com/scrapouille/scrapouille/internal/templates"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [name]",
	Short: "List built-in prompt templates",
	Long: `List the built-in extraction prompt templates, or show the full
prompt text of one. Pass a template to scrape or batch with --template.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplates,
}

func runTemplates(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		prompt, ok := templates.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown template %q", args[0])
		}
		fmt.Println(prompt)
		return nil
	}

	fmt.Println("Built-in templates:")
	for _, name := range templates.Names() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println(defaultTheme.hintStyle().Render("\nUse 'scrapouille templates <name>' to see the prompt text."))
	return nil
}
