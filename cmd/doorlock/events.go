package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"face-door-lock/internal/db/repository"
	"face-door-lock/internal/util/timezone"

	"github.com/spf13/cobra"
)

var (
	eventsType  string
	eventsLimit int
	eventsSince time.Duration
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the access audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepository()
		if err != nil {
			return err
		}

		filter := repository.EventFilter{Type: eventsType, Limit: eventsLimit}
		if eventsSince > 0 {
			filter.Since = timezone.Now().Add(-eventsSince)
		}
		events, total, err := repo.GetEvents(filter)
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No events found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tIDENTITY\tDOOR\tDETAIL")
		fmt.Fprintln(w, "----\t----\t--------\t----\t------")
		for _, ev := range events {
			detail := ev.Reason
			if detail == "" {
				detail = ev.ImagePath
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", timezone.In(ev.Timestamp).Format("2006-01-02 15:04:05"),
				ev.Type, ev.Identity, ev.DoorState, detail)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\nShowing %d of %d events\n", len(events), total)
		return nil
	},
}

func init() {
	eventsCmd.Flags().StringVarP(&eventsType, "type", "t", "", "only show events of this type (unlock, door_closed, spoof_rejected, unknown_alert, alert_failed)")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 50, "maximum number of events")
	eventsCmd.Flags().DurationVar(&eventsSince, "since", 0, "only show events newer than this duration (e.g. 24h)")
	rootCmd.AddCommand(eventsCmd)
}
