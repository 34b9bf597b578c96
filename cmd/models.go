package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetwise-cli/internal/ai"
)

var (
	modelsProvider string
	modelsJSON     bool
	syncPath       string
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models per provider",
	Example: `  sheetwise models
  sheetwise models --provider groq
  sheetwise models --catalog ./models.json --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath != "" {
			m, err := ai.LoadCatalogFromJSON(syncPath)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			ai.MergeCatalog(m)
		}
		provider := ""
		if modelsProvider != "" {
			provider = ai.NormalizeProvider(modelsProvider)
		}
		list := ai.ListModels(provider)
		out := cmd.OutOrStdout()
		if modelsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\t$/1K IN\t$/1K OUT\tDEFAULT")
		for _, m := range list {
			def := ""
			if ai.DefaultModel(m.Provider) == m.Name {
				def = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.5f\t%.5f\t%s\n", m.Provider, m.Name, m.ContextTokens, m.InputPerK, m.OutputPerK, def)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringVar(&modelsProvider, "provider", "", "only list models for this provider")
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the catalog as JSON")
	modelsCmd.Flags().StringVar(&syncPath, "catalog", "", "merge a JSON catalog file ({\"model\": {...}}) before listing")
}
