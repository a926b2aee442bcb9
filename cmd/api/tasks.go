package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	db "github.com/markdave123-py/ragdesk/internal/core/database"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List background tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

var tasksLimit int

func init() {
	tasksCmd.Flags().IntVarP(&tasksLimit, "limit", "n", 20, "Maximum number of tasks to show")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	client, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	list, err := client.ListTasks(ctx, tasksLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tPROGRESS\tREAD\tCREATED\tMESSAGE")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\t%t\t%s\t%s\n",
			t.ID, t.Category, t.Status, t.Progress, t.IsRead,
			t.CreatedAt.Local().Format("2006-01-02 15:04:05"), t.Message)
	}
	return w.Flush()
}
