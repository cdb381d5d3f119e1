package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"nextstep/internal/app"
	"nextstep/internal/config"
	"nextstep/internal/db"
	"nextstep/internal/domain"
	"nextstep/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ns",
	Short: "Nextstep CLI",
	Long: `Nextstep organizes personal work with the capture -> process -> engage loop.
- Capture: dump every raw thought into the inbox ('ns capture').
- Process: turn each inbox item into a next action and/or a project,
  or drop it ('ns process', 'ns inbox drop').
- Engage: work the next-action list, filtered by project or context,
  and mark things done ('ns action list', 'ns action done').
Projects track progress from their actions, or hold a manually set
percentage. Contexts (@computer, @home, ...) come from nextstep.yml.
State lives in the .nextstep workspace database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("NEXTSTEP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(captureCmd())
	rootCmd.AddCommand(inboxCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

func captureCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "capture <title>",
		Short: "Capture a thought into the inbox",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				item, err := a.Store.AddInboxItem(strings.Join(args, " "), description)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "longer note")
	return cmd
}

func inboxCmd() *cobra.Command {
	inbox := &cobra.Command{Use: "inbox", Short: "Manage the inbox"}
	inbox.AddCommand(inboxListCmd())
	inbox.AddCommand(inboxDropCmd())
	return inbox
}

func inboxListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured items, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items := a.Store.InboxItems()
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Captured"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Title, it.CreatedAt.Format(time.DateTime)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func inboxDropCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Discard an inbox item",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.RemoveInboxItem(id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "inbox item id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func processCmd() *cobra.Command {
	var opts store.ProcessOptions
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process an inbox item into an action and/or project",
		Long: `Processes one captured item as a single transaction: optionally
creates a project, optionally creates a next action (linked to the new
or an existing project, and to a context), then removes the item.
With no --action and no --project the item is simply discarded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ItemID == "" {
				return fmt.Errorf("--id required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Store.ProcessInboxItem(opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ItemID, "id", "", "inbox item id")
	cmd.Flags().StringVar(&opts.ActionTitle, "action", "", "next action title")
	cmd.Flags().StringVar(&opts.ActionDescription, "action-description", "", "next action description")
	cmd.Flags().StringVar(&opts.ProjectName, "project", "", "new project name")
	cmd.Flags().StringVar(&opts.ProjectDescription, "project-description", "", "new project description")
	cmd.Flags().StringVar(&opts.ProjectID, "project-id", "", "existing project to link the action to")
	cmd.Flags().StringVar(&opts.ContextID, "context-id", "", "context to tag the action with")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectAddCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectProgressCmd())
	return prj
}

func projectAddCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Store.AddProject(strings.Join(args, " "), description)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "description")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects with displayed progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				projects := a.Store.Projects()
				if viper.GetBool("json") {
					return printJSON(projects)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Progress", "Actions", "Completed"})
				for _, p := range projects {
					actions := a.Store.ActionsForProject(p.ID)
					done := 0
					for _, act := range actions {
						if act.Completed {
							done++
						}
					}
					tw.AppendRow(table.Row{p.ID, p.Name, fmt.Sprintf("%d%%", a.Store.Progress(p.ID)), len(actions), done})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a project and its actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, ok := a.Store.ProjectByID(id)
				if !ok {
					return fmt.Errorf("project %s not found", id)
				}
				out := struct {
					domain.Project
					Progress int                 `json:"progress"`
					Actions  []domain.NextAction `json:"actions"`
				}{p, a.Store.Progress(p.ID), a.Store.ActionsForProject(p.ID)}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a project and every action linked to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.DeleteProject(id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func projectProgressCmd() *cobra.Command {
	var id string
	var progress int
	var auto bool
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Set manual progress, or switch back to automatic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.UpdateProjectProgress(id, progress, !auto)
				p, ok := a.Store.ProjectByID(id)
				if !ok {
					return fmt.Errorf("project %s not found", id)
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id")
	cmd.Flags().IntVar(&progress, "value", 0, "manual progress percent (clamped to 0-100)")
	cmd.Flags().BoolVar(&auto, "auto", false, "compute progress from actions instead")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func actionCmd() *cobra.Command {
	act := &cobra.Command{Use: "action", Short: "Manage next actions"}
	act.AddCommand(actionAddCmd())
	act.AddCommand(actionListCmd())
	act.AddCommand(actionDoneCmd())
	act.AddCommand(actionDeleteCmd())
	act.AddCommand(actionClearCompletedCmd())
	return act
}

func actionAddCmd() *cobra.Command {
	var description, projectID, contextID string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a next action",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				act, err := a.Store.AddNextAction(strings.Join(args, " "), description, optionalString(projectID), optionalString(contextID))
				if err != nil {
					return err
				}
				return printJSONOrTable(act)
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&projectID, "project-id", "", "project to link to")
	cmd.Flags().StringVar(&contextID, "context-id", "", "context to tag with")
	return cmd
}

func actionListCmd() *cobra.Command {
	var projectID, contextID string
	var completed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List next actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var actions []domain.NextAction
				switch {
				case projectID != "":
					actions = a.Store.ActionsForProject(projectID)
				case contextID != "":
					actions = a.Store.ActionsForContext(contextID)
				default:
					actions = a.Store.NextActions()
				}
				if !completed {
					active := actions[:0]
					for _, act := range actions {
						if !act.Completed {
							active = append(active, act)
						}
					}
					actions = active
				}
				if viper.GetBool("json") {
					return printJSON(actions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Project", "Context", "Status"})
				for _, act := range actions {
					project := ""
					if act.ProjectID != nil {
						// dangling references render as no project
						if p, ok := a.Store.ProjectByID(*act.ProjectID); ok {
							project = p.Name
						}
					}
					contextName := ""
					if act.ContextID != nil {
						if c, ok := a.Store.ContextByID(*act.ContextID); ok {
							contextName = c.Name
						}
					}
					status := "active"
					if act.Completed {
						status = "completed"
					}
					tw.AppendRow(table.Row{act.ID, act.Title, project, contextName, status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "", "filter by project")
	cmd.Flags().StringVar(&contextID, "context-id", "", "filter by context")
	cmd.Flags().BoolVar(&completed, "completed", false, "include completed actions")
	return cmd
}

func actionDoneCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "done",
		Short: "Mark a next action completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.CompleteNextAction(id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "action id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func actionDeleteCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a next action",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.DeleteNextAction(id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "action id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func actionClearCompletedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete all completed actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				a.Store.DeleteCompletedActions()
				return nil
			})
		},
	}
	return cmd
}

func contextCmd() *cobra.Command {
	ctxCmd := &cobra.Command{Use: "context", Short: "Manage contexts"}
	ctxCmd.AddCommand(contextListCmd())
	ctxCmd.AddCommand(contextAddCmd())
	return ctxCmd
}

func contextListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contexts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				contexts := a.Store.Contexts()
				if viper.GetBool("json") {
					return printJSON(contexts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Color", "Active actions"})
				for _, c := range contexts {
					active := 0
					for _, act := range a.Store.ActionsForContext(c.ID) {
						if !act.Completed {
							active++
						}
					}
					tw.AppendRow(table.Row{c.ID, c.Name, c.Color, active})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func contextAddCmd() *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an in-memory context (edit nextstep.yml to keep it)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				c, err := a.Store.AddContext(strings.Join(args, " "), color)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "display color (#RRGGBB)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize inbox, projects and actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				st := a.Store.Snapshot()
				active, done := 0, 0
				for _, act := range st.NextActions {
					if act.Completed {
						done++
					} else {
						active++
					}
				}
				out := map[string]any{
					"inbox":            len(st.InboxItems),
					"projects":         len(st.Projects),
					"contexts":         len(st.Contexts),
					"activeActions":    active,
					"completedActions": done,
				}
				return printJSONOrTable(out)
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{Use: "log", Short: "Inspect the change journal"}
	logRoot.AddCommand(logTailCmd())
	return logRoot
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail recent changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				entries, err := a.Journal.Tail(ctx, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(entries)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	return cmd
}

func configCmd() *cobra.Command {
	cfgRoot := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfgRoot.AddCommand(configInitCmd())
	return cfgRoot
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default nextstep.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			return os.WriteFile(path, []byte(config.GenerateDefault()), 0o644)
		},
	}
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	workspace := viper.GetString("workspace")
	a, err := app.Open(ctx, workspace)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
