package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <text...>",
		Short: "Capture a task from free-form text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			draft := d.pipeline.Process(cmd.Context(), strings.Join(args, " "))
			task, err := d.manager.Create(cmd.Context(), draft)
			if err != nil {
				return err
			}
			fmt.Printf("added %d: %s [%s/%s]\n", task.ID, task.Title, task.Category, task.Priority)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			tasks, err := d.manager.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Println("no tasks")
				return nil
			}
			for _, t := range tasks {
				mark := " "
				if t.Completed {
					mark = "x"
				}
				line := fmt.Sprintf("[%s] %d  %s  (%s, %s)", mark, t.ID, t.Title, t.Category, t.Priority)
				if t.DueDate != "" {
					line += "  due " + t.DueDate
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newDoneCmd() *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task completed (or not, with --undo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			d, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			task, err := d.manager.Complete(cmd.Context(), id, !undo)
			if err != nil {
				return err
			}
			state := "completed"
			if !task.Completed {
				state = "reopened"
			}
			fmt.Printf("%s %d: %s\n", state, task.ID, task.Title)
			return nil
		},
	}

	cmd.Flags().BoolVar(&undo, "undo", false, "mark the task as not completed")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			d, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			if err := d.manager.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("deleted %d\n", id)
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed tasks, or everything with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			if all {
				if err := d.guest.ClearAll(cmd.Context()); err != nil {
					return err
				}
				d.manager.InvalidateCache()
				fmt.Println("cleared all guest tasks")
				return nil
			}

			removed, err := d.manager.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d completed task(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "wipe every guest task, not just completed ones")
	return cmd
}

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <text...>",
		Short: "Summarize free-form text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := openDevice(cmd)
			if err != nil {
				return err
			}
			defer d.close()

			fmt.Println(d.pipeline.Summarize(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}

func parseTaskID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}
