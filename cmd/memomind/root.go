package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/memomind/internal/config"
	"github.com/conorfennell/memomind/internal/web"
)

var (
	configPath string
	cfg        *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memomind",
	Short: "Learning notes with AI feedback and a daily practice habit",
	Long: `MemoMind stores what you learned, asks a language model to review it
and serves a small random batch of due notes to practice every day.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded
		web.InitLogger(cfg.Log.Level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "memomind.yaml", "Path to the YAML configuration file")
	flags.String("db", "", "Path to the SQLite database file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("timezone", "", "IANA timezone whose midnight starts a practice day")
}
