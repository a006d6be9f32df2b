package main

import (
	"fmt"
	"os"

	"github.com/SAP-F-2025/assessment-engine/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version = "dev"

func main() {
	v := config.NewViper()

	rootCmd := &cobra.Command{
		Use:           "assessment-engine",
		Short:         "Timed test and written exam sessions with rubric grading",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("storage", "", "storage driver (postgres, memory); overrides STORAGE_DRIVER")
	bindFlag(v, rootCmd, "log_format", "log-format")
	bindFlag(v, rootCmd, "log_level", "log-level")
	bindFlag(v, rootCmd, "storage_driver", "storage")

	rootCmd.AddCommand(serveCmd(v))
	rootCmd.AddCommand(loadQuestionsCmd(v))
	rootCmd.AddCommand(loadTasksCmd(v))
	rootCmd.AddCommand(applyRubricCmd(v))
	rootCmd.AddCommand(exportResultsCmd(v))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}
