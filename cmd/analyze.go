package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/table"
	"github.com/KaramelBytes/sheetwise-cli/internal/utils"
)

var (
	anaSheet      string
	anaAllSheets  bool
	anaSampleRows int
	anaThreshold  int
	anaMaxRows    int
	anaDelimiter  string
	anaJSON       bool
	anaOutputPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Print the data profile that would be sent with a question",
	Long: `analyze loads a CSV/TSV/XLSX file and prints the profile of one sheet (or all of them):
column types, missing values, numeric ranges, category counts and sample rows.
No model is contacted and no API key is needed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _ := requireConfig()
		lopt, err := loadOptions(c, anaMaxRows, anaDelimiter)
		if err != nil {
			return err
		}
		popt := profileOptions(c)
		if anaSampleRows > 0 {
			popt.SampleRows = anaSampleRows
		}
		if anaThreshold > 0 {
			popt.CategoryThreshold = anaThreshold
		}

		wb, err := table.LoadFile(args[0], lopt)
		if err != nil {
			return err
		}
		sheets := wb.Sheets
		if !anaAllSheets {
			ds, err := wb.Sheet(anaSheet)
			if err != nil {
				return err
			}
			sheets = []*table.Dataset{ds}
		}

		var profiles []*profile.Profile
		for _, ds := range sheets {
			p, err := profile.Build(ds, popt)
			if err != nil {
				if profile.IsEmptyDataset(err) && anaAllSheets {
					fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Skipping %s: %v\n", ds.Name, err)
					continue
				}
				return err
			}
			profiles = append(profiles, p)
		}

		var out string
		if anaJSON {
			b, err := utils.PrettyJSON(profiles)
			if err != nil {
				return err
			}
			out = string(b)
		} else {
			parts := make([]string, len(profiles))
			for i, p := range profiles {
				parts[i] = strings.TrimRight(p.Text(), "\n")
			}
			out = strings.Join(parts, "\n\n")
		}

		if anaOutputPath != "" {
			if err := utils.SafeWriteFile(anaOutputPath, []byte(out+"\n")); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote profile to %s\n", anaOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaSheet, "sheet", "", "sheet name or 1-based index (default: first sheet)")
	analyzeCmd.Flags().BoolVar(&anaAllSheets, "all-sheets", false, "profile every sheet of the workbook")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 0, "number of sample rows to include (default from config)")
	analyzeCmd.Flags().IntVar(&anaThreshold, "threshold", 0, "distinct values above which a category lists only its top values")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 0, "maximum rows to load per sheet (0 = unlimited)")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "print the profile as JSON")
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "optional path to write the profile")
}
