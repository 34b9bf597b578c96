package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetwise-cli/internal/utils"
)

var (
	askSheet       string
	askProvider    string
	askModel       string
	askOllamaHost  string
	askTimeoutSec  int
	askMaxRows     int
	askDelimiter   string
	askJSON        bool
	askStream      bool
	askPrintPrompt bool
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Ask a single question about a spreadsheet",
	Example: `  sheetwise ask staff.xlsx "How many employees work in Finance?"
  sheetwise ask sales.csv "Which region had the highest total?" --provider ollama
  sheetwise ask company.xlsx "Average salary?" --sheet Finance --json`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		question := strings.Join(args[1:], " ")

		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: askProvider, OllamaHost: askOllamaHost})
		if err != nil {
			return err
		}
		lopt, err := loadOptions(c, askMaxRows, askDelimiter)
		if err != nil {
			return err
		}
		_, ds, err := openDataset(args[0], askSheet, lopt)
		if err != nil {
			return err
		}

		model := selectModel(c, provider, askModel)
		oo := orchestratorOptions{Model: model, Timeout: time.Duration(askTimeoutSec) * time.Second}
		if askStream && !askJSON {
			oo.Stream = cmd.OutOrStdout()
		}
		orch := buildOrchestrator(c, rt, oo)

		req, err := orch.Prepare(question, ds, nil)
		if err != nil {
			return err
		}
		if askPrintPrompt {
			cmd.PrintErrln(req.Prompt)
		}
		tokens := warnNearContext(model, req.Prompt)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		log.Debug().Str("provider", provider).Str("model", model).Str("dataset", ds.Name).Msg("asking")
		answer, _, err := orch.Send(ctx, req)
		if err != nil {
			return err
		}
		if oo.Stream != nil {
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		}

		out := answerOutput{
			JSON:         askJSON,
			Dataset:      ds.Name,
			Provider:     provider,
			Model:        model,
			Question:     question,
			PromptTokens: tokens,
			Writer:       cmd.OutOrStdout(),
		}
		if askJSON {
			out.Breakdown = utils.TokenBreakdown(map[string]string{"profile": req.Profile, "question": req.Question})
		}
		return writeAnswer(answer, out)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askSheet, "sheet", "", "sheet name or 1-based index (default: first sheet)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "model provider: groq|openrouter|openai|gemini|ollama (default from config)")
	askCmd.Flags().StringVar(&askModel, "model", "", "model name (default depends on provider)")
	askCmd.Flags().StringVar(&askOllamaHost, "ollama-host", "", "Ollama host URL (overrides config)")
	askCmd.Flags().IntVar(&askTimeoutSec, "timeout-sec", 0, "give up on the answer after this many seconds (default from config)")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 0, "maximum rows to load per sheet (0 = unlimited)")
	askCmd.Flags().StringVar(&askDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer and request metadata as JSON")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer as it is generated")
	askCmd.Flags().BoolVar(&askPrintPrompt, "print-prompt", false, "print the prompt to stderr before sending it")
}
