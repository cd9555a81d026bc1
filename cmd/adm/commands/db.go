// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"
	"os"

	"quizforge/internal/database"
	"quizforge/internal/observability"
	contextutils "quizforge/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(dbManager *database.Manager, logger *observability.Logger, db *sql.DB, databaseURL string) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the quizforge engine.

Available commands:
  migrate   - Apply pending schema migrations
  seed      - Insert sample learners, courses and course materials
  stats     - Show database statistics`,
	}

	// Add subcommands
	dbCmd.AddCommand(migrateCmd(dbManager, logger, databaseURL))
	dbCmd.AddCommand(seedCmd(logger, db))
	dbCmd.AddCommand(statsCmd(logger, db))

	return dbCmd
}

// migrateCmd returns the migrate command
func migrateCmd(dbManager *database.Manager, logger *observability.Logger, databaseURL string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  `Apply all pending schema migrations to the configured database.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			logger.Info(ctx, "Running migrations", map[string]interface{}{"database": maskDatabaseURL(databaseURL)})

			if err := dbManager.RunMigrations(databaseURL); err != nil {
				logger.Error(ctx, "Migrations failed", err, map[string]interface{}{})
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "migrations failed: %v", err)
			}

			logger.Info(ctx, "Migrations applied successfully", map[string]interface{}{})
			return nil
		},
	}
}

// seedCmd returns the seed command
func seedCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert sample data",
		Long: `Insert sample learners, courses and course materials.

Intended for local development. Rows are inserted unconditionally, so
running seed twice produces duplicates.`,
		RunE: runSeed(logger, db),
	}
}

// statsCmd returns the stats command
func statsCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show database statistics including learner, course and attempt counts.`,
		RunE:  runStats(logger, db),
	}
}

// runSeed returns a function that inserts sample data
func runSeed(logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		// Log diagnostic information
		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("QUIZFORGE_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		if db == nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "database connection not available")
		}

		var learnerID int
		err := db.QueryRowContext(ctx,
			`INSERT INTO learners (name, email, timezone) VALUES ($1, $2, $3) RETURNING id`,
			"Sample Learner", "sample@example.com", "UTC",
		).Scan(&learnerID)
		if err != nil {
			logger.Error(ctx, "Failed to seed learner", err, map[string]interface{}{})
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to seed learner: %v", err)
		}

		courses := []struct {
			title, topic, description string
			material                  string
		}{
			{"Algebra Fundamentals", "algebra", "Linear equations and factoring", "Solving linear equations. A linear equation has the form ax + b = 0."},
			{"Plane Geometry", "geometry", "Angles, triangles and circles", "Triangle angle sums. The interior angles of a triangle sum to 180 degrees."},
		}

		for _, c := range courses {
			var courseID int
			err := db.QueryRowContext(ctx,
				`INSERT INTO courses (title, topic, description) VALUES ($1, $2, $3) RETURNING id`,
				c.title, c.topic, c.description,
			).Scan(&courseID)
			if err != nil {
				logger.Error(ctx, "Failed to seed course", err, map[string]interface{}{"title": c.title})
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to seed course %q: %v", c.title, err)
			}

			_, err = db.ExecContext(ctx,
				`INSERT INTO course_materials (course_id, title, content) VALUES ($1, $2, $3)`,
				courseID, c.title+" notes", c.material,
			)
			if err != nil {
				logger.Error(ctx, "Failed to seed course material", err, map[string]interface{}{"course_id": courseID})
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to seed course material: %v", err)
			}
		}

		logger.Info(ctx, "Seed data inserted", map[string]interface{}{"learner_id": learnerID, "courses": len(courses)})
		return nil
	}
}

// runStats returns a function that shows database statistics
func runStats(logger *observability.Logger, db *sql.DB) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		// Log diagnostic information
		logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("QUIZFORGE_CONFIG_FILE"), "database": getDatabaseInfo(db)})

		if db == nil {
			return contextutils.WrapErrorf(contextutils.ErrInternalError, "database connection not available")
		}

		counts := map[string]int{}
		for _, table := range []string{"learners", "courses", "quizzes", "attempts", "recommendations"} {
			var n int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
				logger.Error(ctx, "Failed to count table", err, map[string]interface{}{"table": table})
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to count %s: %v", table, err)
			}
			counts[table] = n
		}

		logger.Info(ctx, "Database statistics", map[string]interface{}{
			"learners":        counts["learners"],
			"courses":         counts["courses"],
			"quizzes":         counts["quizzes"],
			"attempts":        counts["attempts"],
			"recommendations": counts["recommendations"],
			"database":        "PostgreSQL",
			"status":          "Connected",
		})

		return nil
	}
}
