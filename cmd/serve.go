package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetwise-cli/internal/server"
	"github.com/KaramelBytes/sheetwise-cli/internal/session"
)

var (
	serveAddr       string
	serveProvider   string
	serveModel      string
	serveOllamaHost string
	serveIdleMin    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question/answer API over HTTP",
	Long: `serve starts an HTTP server. Each client creates a session, uploads a CSV or XLSX file
and asks questions about it; GET /sessions/<id> shows the conversation as a web page.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: serveProvider, OllamaHost: serveOllamaHost})
		if err != nil {
			return err
		}
		model := selectModel(c, provider, serveModel)
		orch := buildOrchestrator(c, rt, orchestratorOptions{Model: model})

		addr := c.ServerAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		lopt, err := loadOptions(c, 0, "")
		if err != nil {
			return err
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := server.New(orch, session.NewStore(), server.Options{
			Addr:           addr,
			MaxUploadBytes: int64(c.MaxUploadMB) << 20,
			Profile:        profileOptions(c),
			Load:           lopt,
			IdleTTL:        time.Duration(serveIdleMin) * time.Minute,
		}, log.Logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		log.Info().Str("provider", provider).Str("model", model).Msg("answering with")
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "model provider (default from config)")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "model name (default depends on provider)")
	serveCmd.Flags().StringVar(&serveOllamaHost, "ollama-host", "", "Ollama host URL (overrides config)")
	serveCmd.Flags().IntVar(&serveIdleMin, "idle-minutes", 0, "drop sessions idle for this many minutes (0 = keep)")
}
