package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sheetwise-cli/internal/ai"
	"github.com/KaramelBytes/sheetwise-cli/internal/chat"
	"github.com/KaramelBytes/sheetwise-cli/internal/profile"
	"github.com/KaramelBytes/sheetwise-cli/internal/session"
)

var (
	chatSheet      string
	chatProvider   string
	chatModel      string
	chatOllamaHost string
	chatTimeoutSec int
	chatMaxRows    int
	chatDelimiter  string
	chatSavePath   string
	chatResumePath string
	chatStream     bool
)

const chatHelp = `Commands:
  /sheets          list sheets with row and column counts
  /sheet <name>    switch the active sheet (name or 1-based index)
  /profile         show the profile of the active sheet
  /history         show the conversation so far
  /clear           forget the conversation
  /quit            leave
Anything else is sent as a question.`

var chatCmd = &cobra.Command{
	Use:   "chat <file>",
	Short: "Start an interactive conversation about a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: chatProvider, OllamaHost: chatOllamaHost})
		if err != nil {
			return err
		}
		lopt, err := loadOptions(c, chatMaxRows, chatDelimiter)
		if err != nil {
			return err
		}
		wb, _, err := openDataset(args[0], "", lopt)
		if err != nil {
			return err
		}

		sess := session.New()
		if err := sess.Load(wb); err != nil {
			return err
		}
		if chatSheet != "" {
			if _, err := sess.Select(chatSheet); err != nil {
				return err
			}
		}
		if chatResumePath != "" {
			tr, err := session.LoadTranscript(chatResumePath)
			if err != nil {
				return err
			}
			if tr.Source != "" && tr.Source != wb.Source {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Transcript was recorded for %s, resuming with %s\n", tr.Source, wb.Source)
			}
			if tr.Sheet != "" && chatSheet == "" {
				if _, err := sess.Select(tr.Sheet); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %v\n", err)
				}
			}
			sess.SetHistory(tr.History)
		}

		model := selectModel(c, provider, chatModel)
		oo := orchestratorOptions{Model: model, Timeout: time.Duration(chatTimeoutSec) * time.Second}
		if chatStream {
			oo.Stream = cmd.OutOrStdout()
		}
		orch := buildOrchestrator(c, rt, oo)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), sess, orch, replOptions{
			Provider:  provider,
			Model:     model,
			Profile:   profileOptions(c),
			SavePath:  chatSavePath,
			Streaming: chatStream,
		})
	},
}

type replOptions struct {
	Provider  string
	Model     string
	Profile   profile.Options
	SavePath  string
	Streaming bool
}

// runREPL reads one line at a time from in until EOF or /quit.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, sess *session.Session, orch *chat.Orchestrator, opts replOptions) error {
	ds, err := sess.Dataset()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %s (%d sheets). Active sheet: %s (%d rows). Model: %s/%s\n",
		sess.Snapshot().Source, len(sess.Sheets()), ds.Name, ds.Len(), opts.Provider, opts.Model)
	if n := len(sess.History()); n > 0 {
		fmt.Fprintf(out, "Resumed %d previous exchanges.\n", n)
	}
	fmt.Fprintln(out, "Type /help for commands.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := replCommand(out, sess, line, opts)
			if err != nil {
				fmt.Fprintln(out, "✗", err)
			}
			if quit {
				break
			}
			continue
		}

		answer, err := sess.Ask(ctx, orch, line)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, "✗", err)
			if hint := ai.Hint(err); hint != "" {
				fmt.Fprintln(out, "  hint:", hint)
			}
			continue
		}
		if opts.Streaming {
			fmt.Fprintln(out)
		} else {
			fmt.Fprintln(out, strings.TrimRight(answer, "\n"))
		}
		if opts.SavePath != "" {
			if err := sess.SaveTranscript(opts.SavePath); err != nil {
				log.Warn().Err(err).Str("path", opts.SavePath).Msg("could not save transcript")
			}
		}
	}
	return scanner.Err()
}

func replCommand(out io.Writer, sess *session.Session, line string, opts replOptions) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/?":
		fmt.Fprintln(out, chatHelp)
	case "/sheets":
		active := sess.Snapshot().Active
		for i, s := range sess.Sheets() {
			marker := " "
			if s.Name == active {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %d. %s (%d rows, %d columns)\n", marker, i+1, s.Name, s.Rows, s.Columns)
		}
	case "/sheet":
		if arg == "" {
			return false, errors.New("usage: /sheet <name or index>")
		}
		ds, err := sess.Select(arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Active sheet: %s (%d rows)\n", ds.Name, ds.Len())
	case "/profile":
		p, err := sess.Profile(opts.Profile)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(out, strings.TrimRight(p.Text(), "\n"))
	case "/history":
		h := sess.History()
		if len(h) == 0 {
			fmt.Fprintln(out, "No questions asked yet.")
		}
		for i, t := range h {
			fmt.Fprintf(out, "%d. [%s] %s\n   %s\n", i+1, t.Dataset, t.Question, strings.ReplaceAll(strings.TrimSpace(t.Answer), "\n", "\n   "))
		}
	case "/clear":
		sess.Clear()
		fmt.Fprintln(out, "Conversation cleared.")
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatSheet, "sheet", "", "sheet to start with (default: first sheet)")
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "model provider: groq|openrouter|openai|gemini|ollama (default from config)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model name (default depends on provider)")
	chatCmd.Flags().StringVar(&chatOllamaHost, "ollama-host", "", "Ollama host URL (overrides config)")
	chatCmd.Flags().IntVar(&chatTimeoutSec, "timeout-sec", 0, "give up on an answer after this many seconds (default from config)")
	chatCmd.Flags().IntVar(&chatMaxRows, "max-rows", 0, "maximum rows to load per sheet (0 = unlimited)")
	chatCmd.Flags().StringVar(&chatDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (auto-detect if omitted)")
	chatCmd.Flags().StringVar(&chatSavePath, "save", "", "write the transcript to this JSON file after every answer")
	chatCmd.Flags().StringVar(&chatResumePath, "resume", "", "continue the conversation stored in a transcript file")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "print answers as they are generated")
}
