package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DqkrLord0Xerod/Multistage-Intelligence-Looping-System/internal/infra/storage/postgres"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recently recorded answers",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "number of answers to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if cfg.Database.URL == "" {
		slog.Error("status requires a configured database")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.QueryContext(ctx, `
		SELECT conversation_id, score, rounds_used, stop_reason, created_at
		FROM conversation_answers
		ORDER BY created_at DESC
		LIMIT $1`, statusLimit)
	if err != nil {
		slog.Error("Failed to query answers", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CONVERSATION\tSCORE\tROUNDS\tSTOP\tCREATED")

	for rows.Next() {
		var conversationID, stopReason string
		var score float64
		var roundsUsed int
		var createdAt time.Time
		if err := rows.Scan(&conversationID, &score, &roundsUsed, &stopReason, &createdAt); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%.3f\t%d\t%s\t%s\n", conversationID, score, roundsUsed, stopReason, createdAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
