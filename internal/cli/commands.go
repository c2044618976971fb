package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"questions/internal/auth"
	"questions/internal/config"
	"questions/internal/database"
	"questions/migrations"
)

// MigrateCmd applies the embedded schema migrations
func MigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			executor := database.NewMigrationExecutor(a.db.DB)
			if status {
				pending, err := executor.Pending(cmd.Context(), migrations.FS)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					okStyle.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
					return nil
				}
				for _, m := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", warnStyle.Sprint("pending"), m.Version, m.Title)
				}
				return nil
			}

			applied, err := executor.RunMigrations(cmd.Context(), migrations.FS)
			if err != nil {
				return err
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Sprint("applied"), v)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", len(applied))
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "List pending migrations without applying them")
	return cmd
}

// PublishAnswersCmd releases the answers of the given questions
func PublishAnswersCmd() *cobra.Command {
	var componentID, userID int64

	cmd := &cobra.Command{
		Use:   "publish-answers ID[,ID...]",
		Short: "Publish the answers of questions in a component",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.answers.PublishAnswers(cmd.Context(), componentID, ids, userID)
			if err != nil {
				return err
			}

			for _, id := range result.Published {
				fmt.Fprintf(cmd.OutOrStdout(), "%s question %d\n", okStyle.Sprint("published"), id)
			}
			failed := make([]int64, 0, len(result.Failed))
			for id := range result.Failed {
				failed = append(failed, id)
			}
			sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
			for _, id := range failed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s question %d: %s\n", failStyle.Sprint("failed"), id, result.Failed[id])
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&componentID, "component", 0, "Component id")
	cmd.Flags().Int64Var(&userID, "user", 0, "Acting admin user id")
	_ = cmd.MarkFlagRequired("component")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ImportTextCmd imports a markdown document as participatory text drafts
func ImportTextCmd() *cobra.Command {
	var componentID, userID int64

	cmd := &cobra.Command{
		Use:   "import-text FILE",
		Short: "Import a markdown document as participatory text drafts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			document, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			drafts, err := a.texts.Import(cmd.Context(), componentID, string(document), userID)
			if err != nil {
				return err
			}

			for _, d := range drafts {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", d.ParticipatoryTextLevel, d.Title.Default(a.cfg.App.DefaultLocale))
			}
			boldStyle.Fprintf(cmd.OutOrStdout(), "%d draft(s) imported\n", len(drafts))
			return nil
		},
	}

	cmd.Flags().Int64Var(&componentID, "component", 0, "Component id")
	cmd.Flags().Int64Var(&userID, "user", 0, "Acting admin user id")
	_ = cmd.MarkFlagRequired("component")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// DeliverCmd runs one notification delivery pass
func DeliverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Deliver pending notifications once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.deliverer.DeliverPending(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "claimed %d, %s, %s\n",
				stats.Claimed,
				okStyle.Sprintf("sent %d", stats.Sent),
				failStyle.Sprintf("failed %d", stats.Failed),
			)
			return nil
		},
	}
}

// ReconcileCmd repairs drifted counter caches
func ReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-counters",
		Short: "Repair question counters that disagree with their rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			drifts, err := a.metrics.ReconcileCounters(cmd.Context())
			if err != nil {
				return err
			}
			if len(drifts) == 0 {
				okStyle.Fprintln(cmd.OutOrStdout(), "All counters are consistent")
				return nil
			}
			for _, d := range drifts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s question %d %s: %d -> %d\n",
					warnStyle.Sprint("repaired"), d.QuestionID, d.Counter, d.Cached, d.Actual)
			}
			return nil
		},
	}
}

// TokenCmd mints an access token signed with the configured secret
func TokenCmd() *cobra.Command {
	var (
		userID int64
		mail   string
		admin  bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			token, err := auth.NewService(&cfg.JWT).GenerateToken(userID, mail, admin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "User id")
	cmd.Flags().StringVar(&mail, "email", "", "User email")
	cmd.Flags().BoolVar(&admin, "admin", false, "Issue an organization admin token")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
