package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tasktimer/internal/task/domain"
	"tasktimer/internal/task/dto"
	"tasktimer/internal/task/sorter"
	"tasktimer/internal/task/usecase"
	"tasktimer/pkg/datefmt"
)

// withStore opens an execution context for one command and closes it after.
func withStore(cmd *cobra.Command, configPath func() string, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, configPath())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// warnOrFail prints persistence failures as warnings and returns anything else.
func warnOrFail(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsPersistenceError(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		return nil
	}
	return err
}

func taskFlags(cmd *cobra.Command, in *usecase.TaskInput) {
	cmd.Flags().StringVarP(&in.Deadline, "deadline", "d", "", "deadline (YYYY-MM-DD or DD.MM.YYYY)")
	cmd.Flags().StringVarP(&in.Notes, "notes", "n", "", "notes")
	cmd.Flags().BoolVarP(&in.Highlight, "important", "i", false, "mark as important")
}

func addCmd(configPath func() string) *cobra.Command {
	var in usecase.TaskInput

	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = strings.Join(args, " ")
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				task, err := a.store.CreateTask(ctx, in)
				if err := warnOrFail(cmd, err); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", dto.MessageCreated, task.ID)
				return nil
			})
		},
	}
	taskFlags(cmd, &in)
	return cmd
}

func editCmd(configPath func() string) *cobra.Command {
	var (
		title string
		in    usecase.TaskInput
	)

	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Edit a task; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				task, err := resolve(a.store, args[0])
				if err != nil {
					return err
				}

				form := dto.Form(task)
				next := usecase.TaskInput{Title: form.Title, Deadline: form.Deadline, Notes: form.Notes, Highlight: form.Highlight}
				flags := cmd.Flags()
				if flags.Changed("title") {
					next.Title = title
				}
				if flags.Changed("deadline") {
					next.Deadline = in.Deadline
				}
				if flags.Changed("notes") {
					next.Notes = in.Notes
				}
				if flags.Changed("important") {
					next.Highlight = in.Highlight
				}

				_, err = a.store.EditTask(ctx, task.ID, next)
				if err := warnOrFail(cmd, err); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dto.MessageUpdated)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "title")
	taskFlags(cmd, &in)
	return cmd
}

func listCmd(configPath func() string) *cobra.Command {
	var (
		sortMode string
		query    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				mode := sorter.ParseMode(a.cfg.DefaultSortMode)
				if sortMode != "" {
					mode = sorter.ParseMode(sortMode)
				}
				tasks := a.store.SearchTasks(query, mode)
				writeTasks(cmd.OutOrStdout(), a.clock.Now(), tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sortMode, "sort", "s", "", "sort mode (created_desc, created_asc, deadline_asc, deadline_desc, important_first)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "fuzzy filter on title and notes")
	return cmd
}

func historyCmd(configPath func() string) *cobra.Command {
	var newest bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed tasks in completion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				order := sorter.HistoryCompleted
				if newest {
					order = sorter.HistoryNewest
				}
				tasks := sorter.SortHistory(a.store.CompletedTasks(), order)
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), dto.MessageHistoryEmpty)
					return nil
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTITLE\tCREATED\tDEADLINE\tDONE\tTIME")
				for _, t := range tasks {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", shortID(t.ID), t.Title,
						datefmt.Format(t.CreationDate), datefmt.Format(t.Deadline),
						dto.FormatDoneDate(t.DoneDate), dto.FormatElapsed(t.TimeSpentMs))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&newest, "newest", false, "show the most recently completed first")
	return cmd
}

func timerCmd(configPath func() string, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				task, err := resolve(a.store, args[0])
				if err != nil {
					return err
				}
				if action == "start" {
					task, err = a.store.StartTimer(ctx, task.ID)
				} else {
					task, err = a.store.StopTimer(ctx, task.ID)
				}
				if err := warnOrFail(cmd, err); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", task.Title, dto.FormatElapsed(domain.CurrentElapsed(task, a.clock.Now())))
				return nil
			})
		},
	}
}

func doneCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "done [id]",
		Short: "Mark a task as done and move it to history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				task, err := resolve(a.store, args[0])
				if err != nil {
					return err
				}
				_, err = a.store.CompleteTask(ctx, task.ID)
				if err := warnOrFail(cmd, err); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dto.MessageCompleted)
				return nil
			})
		},
	}
}

func importantCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "important [id]",
		Short: "Toggle the important flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				task, err := resolve(a.store, args[0])
				if err != nil {
					return err
				}
				task, err = a.store.ToggleImportant(ctx, task.ID)
				if err := warnOrFail(cmd, err); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s important: %t\n", task.Title, task.Highlight)
				return nil
			})
		},
	}
}

func deleteCmd(configPath func() string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("%s Re-run with --yes to confirm", dto.PromptDelete)
			}
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				task, err := resolve(a.store, args[0])
				if err != nil {
					return err
				}
				if err := warnOrFail(cmd, a.store.DeleteTask(ctx, task.ID)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dto.MessageDeleted)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func clearHistoryCmd(configPath func() string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear-history",
		Short: "Remove every completed task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("%s Re-run with --yes to confirm", dto.PromptClearHistory)
			}
			return withStore(cmd, configPath, func(ctx context.Context, a *app) error {
				if err := warnOrFail(cmd, a.store.ClearHistory(ctx)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dto.MessageHistoryClear)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}

// resolve finds an active task by full ID or unique ID prefix.
func resolve(store usecase.TaskUsecase, ref string) (domain.Task, error) {
	if task, err := store.GetTask(ref); err == nil {
		return task, nil
	}

	var found []domain.Task
	for _, t := range store.ActiveTasks(sorter.DefaultMode) {
		if strings.HasPrefix(t.ID, ref) {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return domain.Task{}, &domain.NotFoundError{ID: ref}
	case 1:
		return found[0], nil
	default:
		return domain.Task{}, errors.New("ambiguous task id " + ref)
	}
}

func writeTasks(out io.Writer, now time.Time, tasks []domain.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\t!\tTITLE\tCREATED\tDEADLINE\tTIME\t")
	for _, t := range tasks {
		mark := ""
		if t.Highlight {
			mark = "*"
		}
		timer := dto.FormatElapsed(domain.CurrentElapsed(t, now))
		if t.TimerRunning {
			timer += " ▶"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", shortID(t.ID), mark, t.Title,
			datefmt.Format(t.CreationDate), datefmt.Format(t.Deadline), timer)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
