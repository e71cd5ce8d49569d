package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and replay requests queued while offline",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending requests in replay order",
	RunE:  runQueueList,
}

var queueSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay pending requests now",
	RunE:  runQueueSync,
}

var queueListLocal bool

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueSyncCmd)

	queueListCmd.Flags().BoolVar(&queueListLocal, "local", false, "also list reminders and notes saved offline")
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	items, err := rt.offline.Queue().List(ctx)
	if err != nil {
		return err
	}
	for i, item := range items {
		fmt.Fprintf(out, "%3d  %s  %s  %s\n", i+1, item.EnqueuedAt.Format("2006-01-02 15:04"), item.ID, item.Text)
	}
	fmt.Fprintf(out, "%d pending\n", len(items))

	if !queueListLocal {
		return nil
	}
	reminders, err := rt.offline.Local().Reminders(ctx)
	if err != nil {
		return err
	}
	for _, r := range reminders {
		fmt.Fprintf(out, "reminder  %s %s\n", r.Content, r.Time)
	}
	notes, err := rt.offline.Local().Notes(ctx)
	if err != nil {
		return err
	}
	for _, n := range notes {
		fmt.Fprintf(out, "note      %s\n", n.Content)
	}
	return nil
}

func runQueueSync(cmd *cobra.Command, _ []string) error {
	rt, err := buildRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.offline.SyncPendingActions(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d, failed %d, remaining %d\n", report.Replayed, report.Failed, report.Remaining)
	return err
}
