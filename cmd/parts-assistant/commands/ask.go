package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/cmd/parts-assistant/ui"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/retrieval"
)

var (
	askConversation string
	askFile         string
	askWorkers      int
	askTimeout      time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a question",
	Long: `Ask a single question, or start an interactive session when no question is
given. With --file every non-empty line is answered concurrently in its own
conversation.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "conversation id to continue (defaults to a new one)")
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "answer every line of a file as a separate question")
	askCmd.Flags().IntVar(&askWorkers, "workers", 5, "concurrent questions in --file mode")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall timeout in --file mode")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if askFile != "" {
		questions, err := readQuestions(askFile)
		if err != nil {
			return err
		}
		return runBatch(ctx, a.Router, questions)
	}

	convID := askConversation
	if convID == "" {
		convID = uuid.NewString()
	}

	if len(args) > 0 {
		return askOnce(ctx, a.Router, convID, strings.Join(args, " "))
	}
	return runInteractive(ctx, a.Router, convID, cmd.InOrStdin())
}

func askOnce(ctx context.Context, router *retrieval.Router, convID, question string) error {
	spin := ui.NewSpinner("Thinking...")
	spin.Start()
	res := router.Handle(ctx, convID, question)
	spin.Stop()

	printResult(res)
	if res.Err != nil {
		return res.Err
	}
	return nil
}

func runInteractive(ctx context.Context, router *retrieval.Router, convID string, in io.Reader) error {
	ui.Section("Parts Assistant")
	ui.Info("Conversation %s. Type 'exit' to quit.", convID)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(ui.Out, "\n> ")
		if !scanner.Scan() {
			ui.Newline()
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		spin := ui.NewSpinner("Thinking...")
		spin.Start()
		res := router.Handle(ctx, convID, q)
		spin.Stop()
		printResult(res)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func runBatch(ctx context.Context, router *retrieval.Router, questions []string) error {
	if len(questions) == 0 {
		ui.Warning("No questions in %s", askFile)
		return nil
	}
	ui.Info("Answering %d questions with %d workers", len(questions), askWorkers)

	spin := ui.NewSpinner(fmt.Sprintf("Routing %d questions...", len(questions)))
	spin.Start()
	started := time.Now()
	bp := retrieval.NewBatchProcessor(router, askWorkers, askTimeout)
	results, err := bp.ProcessQueries(ctx, "batch", questions)
	spin.Stop()

	rows := make([][]string, 0, len(results))
	for i, res := range results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			truncateText(questions[i], 48),
			string(res.Source),
			fmt.Sprintf("%.2f", res.Confidence),
			ui.FormatDuration(res.Duration),
		})
	}
	ui.Section("Batch Results")
	ui.Table([]string{"#", "QUESTION", "SOURCE", "CONFIDENCE", "TIME"}, rows)

	stats := router.Metrics().Snapshot()
	ui.Newline()
	ui.KeyValue("Elapsed", ui.FormatDuration(time.Since(started)))
	for _, src := range []retrieval.Source{retrieval.SourceCache, retrieval.SourceFastLookup, retrieval.SourcePattern, retrieval.SourcePipeline} {
		ui.KeyValue(string(src), fmt.Sprintf("%d hits", stats.Hits[src]))
	}
	if stats.Exhausted > 0 {
		ui.Warning("%d questions could not be answered", stats.Exhausted)
	}

	if verbose {
		for i, res := range results {
			ui.Box(fmt.Sprintf("%d. %s", i+1, questions[i]), ui.Wrap(res.Response, 76))
		}
	}
	return err
}

func printResult(res retrieval.Result) {
	ui.Newline()
	ui.Box(fmt.Sprintf("Assistant (%s, %.0f%%)", res.Source, res.Confidence*100), ui.Wrap(res.Response, 76))

	for _, m := range res.Mismatches {
		ui.Warning("%s", m.Message)
	}

	if len(res.Parts) > 0 {
		rows := make([][]string, 0, len(res.Parts))
		for _, p := range res.Parts {
			rows = append(rows, []string{p.PartID, truncateText(p.Name, 40), p.Price, p.Availability})
		}
		ui.Newline()
		ui.Table([]string{"PART", "NAME", "PRICE", "STOCK"}, rows)
	}
	if len(res.Repairs) > 0 {
		ui.Newline()
		for _, r := range res.Repairs {
			ui.KeyValue("Repair", r.Symptom)
		}
	}
	if len(res.SuggestedQuestions) > 0 {
		ui.Newline()
		ui.Message("Try asking:")
		fmt.Fprint(ui.Out, ui.FormatList(res.SuggestedQuestions))
	}
	ui.Debug("conversation=%s stage=%s took=%s", res.ConversationID, res.Context.Stage, res.Duration)
}

func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open questions: %w", err)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return questions, nil
}

func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
