package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conorfennell/memomind/internal/importer"
	"github.com/conorfennell/memomind/internal/storage"
)

var (
	importOwner  string
	importSource string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Create notes from markdown files in a directory or git repository",
	Long: `Import walks every .md file of the source. A "# " heading starts a note
whose understanding is the text up to the next heading or "---" line.
Notes the owner already has are skipped, so imports can be repeated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := importer.New(db, cfg.Import.ReposDir).Import(cmd.Context(), importOwner, importSource)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importOwner, "owner", "", "User id that will own the imported notes")
	importCmd.Flags().StringVar(&importSource, "source", "", "Directory or git URL to import from")
	importCmd.Flags().String("repos-dir", "", "Directory git sources are cloned into")
	_ = importCmd.MarkFlagRequired("owner")
	_ = importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}

func printReport(report importer.Report) {
	fmt.Printf("Scanned %d files, found %d notes.\n", report.Files, report.Parsed)
	color.Green("Created: %d", report.Created)
	color.Yellow("Skipped (already imported): %d", report.Skipped)
	if len(report.Errors) > 0 {
		color.Red("Errors: %d", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("- %s\n", e)
		}
	}
}
