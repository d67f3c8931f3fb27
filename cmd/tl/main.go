package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tasklens/internal/analytics"
	"tasklens/internal/cache"
	"tasklens/internal/config"
	"tasklens/internal/db"
	"tasklens/internal/domain"
	"tasklens/internal/events"
	"tasklens/internal/migrate"
	"tasklens/internal/repo"
	"tasklens/internal/scope"
	"tasklens/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tl",
	Short: "TaskLens CLI",
	Long: `TaskLens serves role-scoped analytics over a task and issue datastore.
Admins see every record; members see only tasks they created or were
assigned and issues they reported, were suggested for, or were assigned.
Start the API with 'tl serve' and inspect the workspace with the list
commands below.`,
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
	viper.SetEnvPrefix("TASKLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(logCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			secret := os.Getenv("TASKLENS_JWT_SECRET")
			if secret == "" {
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("TASKLENS_JWT_SECRET is required for bearer auth")
			}
			e := analytics.New(conn, cfg)
			handler, err := server.New(server.Config{
				Engine:   e,
				Cache:    cache.New(cfg.Cache.MaxEntries),
				BasePath: cfg.Server.BasePath,
				Auth:     server.AuthConfig{JWTSecret: secret},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving TaskLens API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var userID, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("TASKLENS_JWT_SECRET")
			if secret == "" {
				cfg, err := config.Load(viper.GetString("workspace"))
				if err != nil {
					return err
				}
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("TASKLENS_JWT_SECRET is required to mint tokens")
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if role != domain.RoleAdmin && role != domain.RoleMember {
				return fmt.Errorf("role must be admin or member")
			}
			token, err := server.MintToken(secret, domain.Caller{ID: userID, Role: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&role, "role", domain.RoleMember, "role claim (admin or member)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func profileCmd() *cobra.Command {
	prof := &cobra.Command{Use: "profile", Short: "Inspect profiles"}
	prof.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProfiles(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Score", "Hours"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.FullName, p.Email, p.Role, p.EffectiveScore(), intOrBlank(p.WeeklyHours)})
				}
				tw.Render()
				return nil
			})
		},
	})
	prof.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	})
	return prof
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Inspect tasks"}
	var userID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				sc := scope.Scope{Admin: true}
				if userID != "" {
					sc = scope.Scope{UserID: userID}
				}
				items, err := r.ListTasks(ctx, sc)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Assignee", "Due"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, strOrBlank(t.AssignedTo), strOrBlank(t.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&userID, "user", "", "restrict to a member's visible tasks")
	task.AddCommand(list)
	return task
}

func issueCmd() *cobra.Command {
	issue := &cobra.Command{Use: "issue", Short: "Inspect issues"}
	var userID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				sc := scope.Scope{Admin: true}
				if userID != "" {
					sc = scope.Scope{UserID: userID}
				}
				items, err := r.ListIssues(ctx, sc)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Reporter", "Assignee"})
				for _, i := range items {
					tw.AppendRow(table.Row{i.ID, i.Title, i.Status, i.Priority, i.ReportedBy, strOrBlank(i.AssignedTo)})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&userID, "user", "", "restrict to a member's visible issues")
	issue.AddCommand(list)
	return issue
}

func logCmd() *cobra.Command {
	logRoot := &cobra.Command{Use: "log", Short: "Event log"}
	var n int
	var evtType string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.LatestEvents(ctx, n, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor"})
				for _, e := range items {
					tw.AppendRow(table.Row{e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVarP(&n, "lines", "n", 20, "number of events")
	tail.Flags().StringVar(&evtType, "type", "", "filter by event type")
	logRoot.AddCommand(tail)
	return logRoot
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func strOrBlank(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrBlank(n *int) string {
	if n == nil {
		return ""
	}
	return fmt.Sprintf("%d", *n)
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo profiles, tasks and issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return seedDemo(ctx, r, viper.GetString("actor-id"))
			})
		},
	}
}

func seedDemo(ctx context.Context, r repo.Repo, actorID string) error {
	existing, err := r.CountTasks(ctx, scope.Scope{Admin: true})
	if err != nil {
		return err
	}
	if existing > 0 {
		return fmt.Errorf("workspace already holds %d tasks; seed expects an empty store", existing)
	}
	now := time.Now().UTC()
	ts := func(d time.Duration) string { return now.Add(d).Format(time.RFC3339) }
	tsPtr := func(d time.Duration) *string { s := ts(d); return &s }
	intPtr := func(n int) *int { return &n }

	admin := domain.Profile{ID: uuid.NewString(), FullName: "Ada Moreno", Email: "ada@tasklens.dev", Role: domain.RoleAdmin, JobDescription: "Engineering manager"}
	kei := domain.Profile{ID: uuid.NewString(), FullName: "Kei Tanaka", Email: "kei@tasklens.dev", Role: domain.RoleMember, JobDescription: "Backend developer", Score: intPtr(82), WeeklyHours: intPtr(38)}
	lena := domain.Profile{ID: uuid.NewString(), FullName: "Lena Fischer", Email: "lena@tasklens.dev", Role: domain.RoleMember, JobDescription: "Frontend developer", Score: intPtr(64), WeeklyHours: intPtr(40)}
	omar := domain.Profile{ID: uuid.NewString(), FullName: "Omar Haddad", Email: "omar@tasklens.dev", Role: domain.RoleMember, JobDescription: "QA engineer", WeeklyHours: intPtr(32)}
	profiles := []domain.Profile{admin, kei, lena, omar}

	tasks := []domain.Task{
		{ID: uuid.NewString(), Title: "Wire payment webhook retries", Status: domain.TaskInProgress, Priority: domain.PriorityHigh, AssignedTo: &kei.ID, CreatedBy: admin.ID, DueDate: tsPtr(72 * time.Hour), CreatedAt: ts(-96 * time.Hour), UpdatedAt: ts(-2 * time.Hour)},
		{ID: uuid.NewString(), Title: "Migrate sessions to new store", Status: domain.TaskCompleted, Priority: domain.PriorityCritical, AssignedTo: &kei.ID, CreatedBy: admin.ID, DueDate: tsPtr(-24 * time.Hour), LateCompletion: true, CreatedAt: ts(-240 * time.Hour), UpdatedAt: ts(-12 * time.Hour), CompletedAt: tsPtr(-12 * time.Hour)},
		{ID: uuid.NewString(), Title: "Refresh onboarding checklist", Status: domain.TaskNotStarted, Priority: domain.PriorityLow, AssignedTo: &lena.ID, CreatedBy: admin.ID, DueDate: tsPtr(-48 * time.Hour), CreatedAt: ts(-120 * time.Hour), UpdatedAt: ts(-120 * time.Hour)},
		{ID: uuid.NewString(), Title: "Redesign settings page", Status: domain.TaskInProgress, Priority: domain.PriorityMedium, AssignedTo: &lena.ID, CreatedBy: lena.ID, CreatedAt: ts(-48 * time.Hour), UpdatedAt: ts(-3 * time.Hour)},
		{ID: uuid.NewString(), Title: "Regression suite for exports", Status: domain.TaskCompleted, Priority: domain.PriorityMedium, AssignedTo: &omar.ID, CreatedBy: admin.ID, CreatedAt: ts(-72 * time.Hour), UpdatedAt: ts(-24 * time.Hour), CompletedAt: tsPtr(-24 * time.Hour)},
		{ID: uuid.NewString(), Title: "Flaky login test triage", Status: domain.TaskBlocked, Priority: domain.PriorityHigh, AssignedTo: &omar.ID, CreatedBy: omar.ID, DueDate: tsPtr(24 * time.Hour), CreatedAt: ts(-36 * time.Hour), UpdatedAt: ts(-6 * time.Hour)},
	}

	issues := []domain.Issue{
		{ID: uuid.NewString(), Title: "Export job stalls on large orgs", Status: domain.IssueInProgress, Priority: domain.PriorityCritical, ReportedBy: omar.ID, AssignedTo: &kei.ID, CreatedAt: ts(-60 * time.Hour)},
		{ID: uuid.NewString(), Title: "Avatar upload rejects PNG", Status: domain.IssueResolved, Priority: domain.PriorityLow, ReportedBy: lena.ID, AssignedTo: &lena.ID, CreatedAt: ts(-100 * time.Hour), ResolvedAt: tsPtr(-80 * time.Hour)},
		{ID: uuid.NewString(), Title: "Duplicate notification emails", Status: domain.IssuePendingAssignment, Priority: domain.PriorityMedium, ReportedBy: kei.ID, SuggestedAssigneeID: &lena.ID, CreatedAt: ts(-20 * time.Hour)},
		{ID: uuid.NewString(), Title: "Search index lag after import", Status: domain.IssueClosed, Priority: domain.PriorityHigh, ReportedBy: admin.ID, AssignedTo: &kei.ID, CreatedAt: ts(-200 * time.Hour), ResolvedAt: tsPtr(-150 * time.Hour)},
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	w := events.Writer{DB: r.DB, Now: time.Now}
	for _, p := range profiles {
		if err := r.InsertProfile(ctx, tx, p); err != nil {
			return err
		}
		if err := w.Append(ctx, tx, "profile.seeded", "profile", p.ID, actorID, events.EventPayload{"full_name": p.FullName}); err != nil {
			return err
		}
	}
	for _, t := range tasks {
		if err := r.InsertTask(ctx, tx, t); err != nil {
			return err
		}
		if err := w.Append(ctx, tx, "task.seeded", "task", t.ID, actorID, events.EventPayload{"title": t.Title}); err != nil {
			return err
		}
	}
	for _, i := range issues {
		if err := r.InsertIssue(ctx, tx, i); err != nil {
			return err
		}
		if err := w.Append(ctx, tx, "issue.seeded", "issue", i.ID, actorID, events.EventPayload{"title": i.Title}); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	fmt.Printf("seeded %d profiles, %d tasks, %d issues\n", len(profiles), len(tasks), len(issues))
	return nil
}
