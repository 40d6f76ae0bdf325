package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/cmd/parts-assistant/ui"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/app"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/config"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "parts-assistant",
	Short: "Appliance parts assistant - ask questions and manage the parts catalog",
	Long: `parts-assistant answers refrigerator and dishwasher parts questions from the
terminal using the same tiered router as the API server, and manages the SQL
catalog the server reads from.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables win.
		_ = godotenv.Load()
		ui.InitUI(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults to $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger keeps the terminal quiet unless --verbose is set.
func newLogger(cfg *config.Config) *observability.Logger {
	level := "error"
	if verbose {
		level = "debug"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      "console",
		ServiceName: cfg.Observability.ServiceName,
		Output:      ui.Err,
	})
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, newLogger(cfg), app.Options{})
	if err != nil {
		return nil, fmt.Errorf("start assistant: %w", err)
	}
	return a, nil
}
