package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"quizforge/internal/observability"
	"quizforge/internal/services"
	contextutils "quizforge/internal/utils"

	"github.com/spf13/cobra"
)

// ProgressCommands returns the learner progress inspection commands
func ProgressCommands(progressService *services.ProgressService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Learner progress commands",
		Long: `Learner progress inspection commands.

Available commands:
  show      - Show the analytics snapshot for a learner`,
	}

	progressCmd.AddCommand(showProgressCmd(progressService, logger, db))

	return progressCmd
}

// showProgressCmd returns the show command
func showProgressCmd(progressService *services.ProgressService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "show <learner-id>",
		Short: "Show the analytics snapshot for a learner",
		Long:  `Compute and print the full progress snapshot for a learner, including per-topic averages and the score trend.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runShowProgress(progressService, logger, db),
	}
}

// runShowProgress returns a function that prints a learner's snapshot
func runShowProgress(progressService *services.ProgressService, logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		// Log diagnostic information
		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("QUIZFORGE_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		learnerID, err := strconv.Atoi(args[0])
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid learner id %q", args[0])
		}

		snapshot, err := progressService.Analyze(ctx, learnerID)
		if err != nil {
			logger.Error(ctx, "Failed to analyze learner progress", err, map[string]interface{}{"learner_id": learnerID})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to analyze learner %d: %v", learnerID, err)
		}

		fmt.Printf("Learner %d\n", snapshot.LearnerID)
		fmt.Printf("  Attempts:     %d total, %d completed\n", snapshot.TotalAttempts, snapshot.CompletedAttempts)
		fmt.Printf("  Success rate: %.1f%%\n", snapshot.SuccessRate)
		fmt.Printf("  Avg score:    %.2f\n", snapshot.AverageScore)
		fmt.Printf("  Time spent:   %ds\n", snapshot.TotalTimeSeconds)
		fmt.Printf("  Trend:        %s (slope %.4f)\n", snapshot.Trend, snapshot.TrendSlope)
		if snapshot.LastActive != nil {
			fmt.Printf("  Last active:  %s\n", snapshot.LastActive.Format("2006-01-02 15:04:05 MST"))
		}
		if len(snapshot.TopicAverages) > 0 {
			fmt.Println("  Topic averages:")
			for topic, avg := range snapshot.TopicAverages {
				fmt.Printf("    %-20s %.2f\n", topic, avg)
			}
		}
		if len(snapshot.StrongTopics) > 0 {
			fmt.Printf("  Strong topics: %s\n", strings.Join(snapshot.StrongTopics, ", "))
		}
		if len(snapshot.WeakTopics) > 0 {
			fmt.Printf("  Weak topics:   %s\n", strings.Join(snapshot.WeakTopics, ", "))
		}

		return nil
	}
}
