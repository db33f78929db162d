package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tasksync/internal/engine"
	"tasksync/internal/model"
)

var (
	flagDescription string
	flagPriority    string
	flagStatus      string
	flagType        string
	flagAssignedTo  string

	flagFilterStatus   []string
	flagFilterPriority []string
	flagSortBy         string
	flagSortDesc       bool
	flagJSON           bool
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task (applied locally, synced when possible)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		task, err := a.engine.CreateTask(cmd.Context(), engine.CreateInput{
			Title:       args[0],
			Description: flagDescription,
			Priority:    model.Priority(flagPriority),
			Status:      model.Status(flagStatus),
			Type:        flagType,
			AssignedTo:  flagAssignedTo,
		})
		if err != nil {
			return err
		}
		return printTask(task)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		var upd model.TaskUpdate
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			upd.Title = &v
		}
		if cmd.Flags().Changed("description") {
			upd.Description = &flagDescription
		}
		if cmd.Flags().Changed("priority") {
			p := model.Priority(flagPriority)
			upd.Priority = &p
		}
		if cmd.Flags().Changed("status") {
			s := model.Status(flagStatus)
			upd.Status = &s
		}
		if cmd.Flags().Changed("assigned-to") {
			upd.AssignedTo = &flagAssignedTo
		}

		task, err := a.engine.UpdateTask(cmd.Context(), args[0], upd)
		if err != nil {
			return err
		}
		return printTask(task)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		if err := a.engine.DeleteTask(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List local task snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		f := model.Filter{}
		for _, s := range flagFilterStatus {
			f.Statuses = append(f.Statuses, model.Status(strings.TrimSpace(s)))
		}
		for _, p := range flagFilterPriority {
			f.Priorities = append(f.Priorities, model.Priority(strings.TrimSpace(p)))
		}

		tasks, err := a.engine.Tasks(f, model.SortKey(flagSortBy), flagSortDesc)
		if err != nil {
			return err
		}
		if flagJSON {
			return json.NewEncoder(os.Stdout).Encode(tasks)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPRIORITY\tSTATUS\tSYNC")
		for _, t := range tasks {
			sync := string(t.SyncState)
			if sync == "" {
				sync = "confirmed"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Title, t.Priority, t.Status, sync)
		}
		return w.Flush()
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one task snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := newApp()
		defer a.close()

		task, err := a.engine.Task(args[0])
		if err != nil {
			return err
		}
		if task == nil {
			return model.ErrTaskNotFound
		}
		return printTask(task)
	},
}

func init() {
	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringVar(&flagDescription, "description", "", "task description")
		c.Flags().StringVar(&flagPriority, "priority", "", "low, medium or high")
		c.Flags().StringVar(&flagStatus, "status", "", "todo, in-progress or done")
		c.Flags().StringVar(&flagAssignedTo, "assigned-to", "", "assignee")
	}
	createCmd.Flags().StringVar(&flagType, "type", "", "task type")
	updateCmd.Flags().String("title", "", "new title")

	listCmd.Flags().StringSliceVar(&flagFilterStatus, "filter-status", nil, "statuses to keep")
	listCmd.Flags().StringSliceVar(&flagFilterPriority, "filter-priority", nil, "priorities to keep")
	listCmd.Flags().StringVar(&flagSortBy, "sort", "", "sort key: priority, status, createdAt, updatedAt, title")
	listCmd.Flags().BoolVar(&flagSortDesc, "desc", false, "sort descending")
	listCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON")
}

func printTask(t *model.Task) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}
