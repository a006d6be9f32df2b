package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SAP-F-2025/assessment-engine/internal/models"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// withApp builds the application for a one-shot command and releases it afterwards.
func withApp(ctx context.Context, v *viper.Viper, fn func(*app) error) (err error) {
	a, err := newApp(ctx, v)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(a)
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// reportSummary prints the import summary and fails the command when any row was rejected.
func reportSummary(cmd *cobra.Command, summary *models.ImportSummary) error {
	if err := printJSON(cmd, summary); err != nil {
		return err
	}
	if summary.ErrorCount > 0 {
		return fmt.Errorf("%d of %d rows failed", summary.ErrorCount, summary.TotalRows)
	}
	return nil
}

func loadQuestionsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "load-questions <file.json|file.xlsx>",
		Short: "Upsert multiple-choice questions by number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			return withApp(cmd.Context(), v, func(a *app) error {
				summary, err := a.manager.ImportExport().ImportQuestions(cmd.Context(), file, filepath.Base(args[0]))
				if err != nil {
					return err
				}
				return reportSummary(cmd, summary)
			})
		},
	}
}

func loadTasksCmd(v *viper.Viper) *cobra.Command {
	var baseDir string
	cmd := &cobra.Command{
		Use:   "load-tasks <file.json>",
		Short: "Upsert written exam tasks by category and title",
		Long: `Upsert written exam tasks by category and title.

Reference decisions given as file paths are read relative to --base-dir,
which defaults to the directory of the task file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			dir := baseDir
			if dir == "" {
				dir = filepath.Dir(args[0])
			}
			return withApp(cmd.Context(), v, func(a *app) error {
				summary, err := a.manager.ImportExport().ImportTasks(cmd.Context(), file, dir)
				if err != nil {
					return err
				}
				return reportSummary(cmd, summary)
			})
		},
	}
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "directory reference file paths are resolved against")
	return cmd
}

func applyRubricCmd(v *viper.Viper) *cobra.Command {
	var (
		category string
		maxScore string
	)
	cmd := &cobra.Command{
		Use:   "apply-rubric <file.json|file.yaml>",
		Short: "Validate a rubric and attach it to every task of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &services.ApplyRubricRequest{Category: models.Category(category)}
			if maxScore != "" {
				d, err := decimal.NewFromString(maxScore)
				if err != nil {
					return fmt.Errorf("invalid --max-score: %w", err)
				}
				req.MaxScore = &d
			}

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			return withApp(cmd.Context(), v, func(a *app) error {
				result, err := a.manager.ImportExport().ApplyRubric(cmd.Context(), file, filepath.Base(args[0]), req)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "task category (civil, criminal)")
	cmd.Flags().StringVar(&maxScore, "max-score", "", "new max score of the category's tasks")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func exportResultsCmd(v *viper.Viper) *cobra.Command {
	var (
		kind string
		out  string
	)
	cmd := &cobra.Command{
		Use:   "export-results",
		Short: "Write completed sessions to an Excel workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters repositories.SessionFilters
			if kind != "" {
				k := models.ExamKind(kind)
				if k != models.ExamKindTest && k != models.ExamKindPractice {
					return fmt.Errorf("invalid --kind %q", kind)
				}
				filters.Kind = &k
			}

			return withApp(cmd.Context(), v, func(a *app) error {
				data, err := a.manager.ImportExport().ExportResults(cmd.Context(), filters)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "exam kind (test, practice); all when empty")
	cmd.Flags().StringVarP(&out, "out", "o", "results.xlsx", "output file")
	return cmd
}
