package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iliyamo/table-reservations/internal/config"
	"github.com/iliyamo/table-reservations/internal/model"
	"github.com/iliyamo/table-reservations/internal/repository"
)

func newAvailabilityCmd() *cobra.Command {
	var (
		date        string
		slot        string
		maxCapacity int
		asJSON      bool
	)
	c := &cobra.Command{
		Use:   "availability",
		Short: "Print slot availability for a date, read straight from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			evaluator, err := newEvaluator(cfg, repository.NewReservationRepo(db))
			if err != nil {
				return err
			}
			var report []model.AvailabilitySlot
			if slot != "" {
				s, err := evaluator.EvaluateSlot(ctx, date, slot, maxCapacity)
				if err != nil {
					return err
				}
				report = []model.AvailabilitySlot{s}
			} else if report, err = evaluator.Evaluate(ctx, date, maxCapacity); err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"date": date, "slots": report})
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	c.Flags().StringVar(&date, "date", "", "date to check (YYYY-MM-DD)")
	c.Flags().StringVar(&slot, "slot", "", "report only this start time (HH:MM)")
	c.Flags().IntVar(&maxCapacity, "max-capacity", 0, "seats per slot (0 uses MAX_CAPACITY_PER_SLOT)")
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	_ = c.MarkFlagRequired("date")
	return c
}

func printReport(w io.Writer, report []model.AvailabilitySlot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tBOOKED\tCAPACITY\tREMAINING\tAVAILABLE")
	for _, s := range report {
		avail := "yes"
		if !s.Available {
			avail = "no"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", s.Time, s.CurrentReservations, s.MaxCapacity, s.Remaining(), avail)
	}
	return tw.Flush()
}
