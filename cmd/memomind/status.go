package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conorfennell/memomind/internal/practice"
	"github.com/conorfennell/memomind/internal/storage"
)

var statusOwner string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show today's practice status of a user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		loc, err := cfg.Practice.Location()
		if err != nil {
			return err
		}
		st, err := practice.NewEngine(db, practice.WithLocation(loc)).Status(cmd.Context(), statusOwner)
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusOwner, "owner", "", "User id to report on")
	_ = statusCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(st practice.Status) {
	fmt.Printf("Notes: %d total, %d due\n", st.TotalNotes, st.NotesNeedingReview)
	fmt.Printf("Reviewed today: %d/%d\n", st.ReviewedToday, practice.DailyQuota)
	switch {
	case st.Completed:
		color.Green("Today's practice is complete.")
	case st.NotesNeedingReview == 0:
		color.Green("All caught up.")
	default:
		color.Yellow("Practice %d more note(s) to complete today.", practice.DailyQuota-st.ReviewedToday)
	}
}
