package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tazhate/tasksync/internal/domain"
	"github.com/tazhate/tasksync/internal/service"
)

func taskCommands() []*cobra.Command {
	var all bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List local tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := a.tasks.List(all)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), a.tasks.FormatTaskList(tasks))
			return nil
		},
	}
	listCmd.Flags().BoolVar(&all, "all", false, "include done tasks")

	addCmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Add a local task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.tasks.Create(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added #%d\n", task.ID)
			return nil
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync [PROVIDER]",
		Short: "Refresh linked tasks and import new items now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			var (
				res service.SyncResult
				err error
			)
			if len(args) == 1 {
				p, lerr := lookupProvider(args[0])
				if lerr != nil {
					return lerr
				}
				res, err = a.tasks.SyncProvider(ctx, p)
			} else {
				res, err = a.tasks.SyncAll(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d updated, %d imported\n", res.Updated, res.Imported)
			return nil
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search PROVIDER [TEXT]",
		Short: "Search open items of a provider by title",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := lookupProvider(args[0])
			if err != nil {
				return err
			}
			var text string
			if len(args) == 2 {
				text = args[1]
			}
			results, err := a.issues.Search(context.Background(), p, text)
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Issue.ID(), r.Title)
			}
			return nil
		},
	}

	itemsCmd := &cobra.Command{
		Use:   "items PROVIDER",
		Short: "List open items on a provider's calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := lookupProvider(args[0])
			if err != nil {
				return err
			}
			issues, err := a.issues.ListOpen(context.Background(), p)
			if err != nil {
				return err
			}
			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), formatIssue(issue, a.cfg.Timezone))
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get PROVIDER UID",
		Short: "Show one remote item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := lookupProvider(args[0])
			if err != nil {
				return err
			}
			issue, err := a.issues.Get(context.Background(), p, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatIssue(issue, a.cfg.Timezone))
			if issue.URL() != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", issue.URL())
			}
			return nil
		},
	}

	linkCmd := &cobra.Command{
		Use:   "link PROVIDER UID",
		Short: "Import one remote item as a local task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := a.tasks.Link(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linked #%d %s\n", task.ID, task.Title)
			return nil
		},
	}

	doneCmd := &cobra.Command{
		Use:   "done ID",
		Short: "Complete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.tasks.MarkDone(context.Background(), id)
		},
	}

	undoCmd := &cobra.Command{
		Use:   "undo ID",
		Short: "Reopen a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.tasks.MarkUndone(context.Background(), id)
		},
	}

	var title, notes, due string
	editCmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a task and write the change back to its item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var changes domain.TaskChanges
			if cmd.Flags().Changed("title") {
				changes.Title = &title
			}
			if cmd.Flags().Changed("notes") {
				changes.Notes = &notes
			}
			if cmd.Flags().Changed("due") {
				t, err := parseDue(due, a.cfg.Timezone)
				if err != nil {
					return err
				}
				changes.DueWithTime = &t
			}
			return a.tasks.Edit(context.Background(), id, changes)
		},
	}
	editCmd.Flags().StringVar(&title, "title", "", "new title")
	editCmd.Flags().StringVar(&notes, "notes", "", "new notes; empty clears them")
	editCmd.Flags().StringVar(&due, "due", "", `new start, "2006-01-02 15:04" or RFC 3339`)

	var event string
	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task, optionally with its calendar event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var confirm service.Confirmer = promptConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			if event != "" {
				confirm = flagConfirmer(event)
			}
			return a.tasks.Delete(context.Background(), id, confirm)
		},
	}
	deleteCmd.Flags().StringVar(&event, "event", "", "delete-both or keep-event; asks when unset")

	return []*cobra.Command{listCmd, addCmd, syncCmd, itemsCmd, getCmd, searchCmd, linkCmd, doneCmd, undoCmd, editCmd, deleteCmd}
}

// formatIssue renders one remote item on a single line: UID, state, start, title
func formatIssue(issue domain.Issue, loc *time.Location) string {
	state := "[ ]"
	if issue.Completed() {
		state = "[x]"
	}

	var when string
	switch {
	case issue.Kind == domain.ComponentEvent && issue.Event.AllDay:
		when = issue.Event.Start.Format("2006-01-02")
	case issue.Kind == domain.ComponentEvent:
		when = issue.Event.Start.In(loc).Format("2006-01-02 15:04")
	case issue.Todo.Due != nil:
		when = "due " + issue.Todo.Due.In(loc).Format("2006-01-02 15:04")
	}

	line := fmt.Sprintf("%s\t%s\t", issue.ID(), state)
	if when != "" {
		line += when + "  "
	}
	return line + issue.Title()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task ID %q", s)
	}
	return id, nil
}

func parseDue(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due %q: use \"2006-01-02 15:04\" or RFC 3339", s)
	}
	return t, nil
}

// promptConfirmer asks on the terminal; anything but "y" keeps the event
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p promptConfirmer) ConfirmEventDeletion(_ context.Context, task *domain.Task) (service.DeleteChoice, error) {
	fmt.Fprintf(p.out, "Also delete the calendar event %q? [y/N] ", task.Title)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if answer := strings.ToLower(strings.TrimSpace(line)); answer == "y" || answer == "yes" {
		return service.DeleteBoth, nil
	}
	return service.KeepEvent, nil
}

type flagConfirmer string

func (f flagConfirmer) ConfirmEventDeletion(context.Context, *domain.Task) (service.DeleteChoice, error) {
	switch c := service.DeleteChoice(f); c {
	case service.DeleteBoth, service.KeepEvent:
		return c, nil
	}
	return "", fmt.Errorf("--event must be %s or %s", service.DeleteBoth, service.KeepEvent)
}
