package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	ingestCmd.Flags().StringSliceP("url", "u", nil, "Page to ingest (repeatable, default: the organization website)")
	ingestCmd.Flags().Bool("clear", false, "Delete every indexed chunk instead of ingesting")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Scrape pages into the document index",
	Example: `
# Ingest the configured website
agentctl ingest

# Ingest specific pages
agentctl ingest -u https://example.com/about -u https://example.com/contact

# Clear the index
agentctl ingest --clear
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls, _ := cmd.Flags().GetStringSlice("url")
		clearIndex, _ := cmd.Flags().GetBool("clear")

		core, cleanup, err := openCore()
		if err != nil {
			return err
		}
		defer cleanup()

		if clearIndex {
			if err := core.Ingester.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear index: %w", err)
			}
			color.Green("Index cleared (collection %s)", core.Config.Retrieval.Collection)
			return nil
		}

		if len(urls) == 0 {
			urls = []string{core.Config.Agent.WebsiteURL}
		}

		var failed int
		for _, u := range urls {
			n, err := core.Ingester.Ingest(cmd.Context(), u)
			if err != nil {
				failed++
				color.Red("✗ %s: %v", u, err)
				continue
			}
			color.Green("✓ %s (%d chunks)", u, n)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d pages failed", failed, len(urls))
		}
		return nil
	},
}
