package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskhub/pkg/dependency"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Inspect the task dependency graph",
}

var depsCheckCmd = &cobra.Command{
	Use:   "check <task-id>",
	Short: "Report whether a task can be completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.Close()

		if _, err := be.repos.Tasks.Get(cmd.Context(), id); err != nil {
			return err
		}
		open, err := dependency.NewValidator(be.repos.Dependencies, be.repos.Tasks).OpenBlockers(cmd.Context(), id)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			cmd.Printf("task %d can be completed\n", id)
			return nil
		}
		cmd.Printf("task %d is blocked by %d open task(s)\n", id, len(open))
		rows := make([][]string, 0, len(open))
		for _, t := range open {
			rows = append(rows, []string{strconv.FormatInt(t.ID, 10), string(t.Status), t.Title})
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "STATUS", "TITLE"}, rows)
		return nil
	},
}

var depsPathCmd = &cobra.Command{
	Use:   "path <from-task-id> <to-task-id>",
	Short: "Show a blocked-by chain between two tasks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		to, err := parseTaskID(args[1])
		if err != nil {
			return err
		}
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		be, err := openBackend(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer be.Close()

		edges, err := be.repos.Dependencies.Reachable(cmd.Context(), from)
		if err != nil {
			return err
		}
		path := dependency.NewGraph(edges).Path(from, to)
		if path == nil {
			cmd.Printf("task %d does not depend on task %d\n", from, to)
			return nil
		}
		parts := make([]string, len(path))
		for i, id := range path {
			parts[i] = strconv.FormatInt(id, 10)
		}
		cmd.Println(strings.Join(parts, " -> "))
		return nil
	},
}

func init() {
	depsCmd.AddCommand(depsCheckCmd, depsPathCmd)
	rootCmd.AddCommand(depsCmd)
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
