package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/control"
)

var (
	askConversation string
	askTimeout      time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Answer a query through iterative refinement",
	Args:  cobra.MinimumNArgs(1),
	Run:   runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askConversation, "conversation", "", "conversation id to continue (new one when empty)")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 5*time.Minute, "overall deadline for the refinement loop")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(shutdownCtx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	query := strings.Join(args, " ")
	answer, err := app.Engine().Think(ctx, query, askConversation)
	if err != nil {
		slog.Error("Refinement failed", "error", err)
		os.Exit(1)
	}

	fmt.Println(answer.Text)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "score\t%.3f\n", answer.Score)
	_, _ = fmt.Fprintf(w, "rounds\t%d (best: %d)\n", answer.RoundsUsed, answer.BestRound)
	_, _ = fmt.Fprintf(w, "stop\t%s\n", answer.StopReason)
	_, _ = fmt.Fprintf(w, "calls\t%d\n", answer.TotalCost.Calls)
	_, _ = fmt.Fprintf(w, "tokens\t%d\n", answer.TotalCost.TotalTokens())

	usage := app.Status().Budget
	endpoints := make([]string, 0, len(usage.EndpointCalls))
	for endpoint := range usage.EndpointCalls {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)
	for _, endpoint := range endpoints {
		_, _ = fmt.Fprintf(w, "  %s\t%d\n", endpoint, usage.EndpointCalls[endpoint])
	}
	if answer.RecursionFailed {
		_, _ = fmt.Fprintf(w, "note\tpartial result, a later round failed\n")
	}
	_ = w.Flush()
}
