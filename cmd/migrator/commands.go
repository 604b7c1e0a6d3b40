package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"mini_orm/internal/storage"
	"mini_orm/migrations"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the scripts directory and copy in the embedded baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.EnsureBase(); err != nil {
				return err
			}
			copied, err := a.store.Seed(storage.FromFS(migrations.FS()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(copied) == 0 {
				fmt.Fprintln(out, "baseline already present in", a.cfg.Migrations.Dir)
				return nil
			}
			for _, id := range copied {
				fmt.Fprintln(out, "added", id)
			}
			return nil
		},
	}
}

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show the DDL needed to bring each table in line with the models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen, err := a.generator()
			if err != nil {
				return err
			}
			ctx, cancel := a.bounded(cmd.Context())
			defer cancel()

			changes, err := gen.Diff(ctx, a.catalog.Descriptors())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			pending := 0
			for _, ch := range changes {
				if !ch.HasChanges() {
					continue
				}
				pending++
				up, down := ch.Script()
				fmt.Fprintf(out, "-- %s: up\n%s\n\n-- %s: down\n%s\n\n", ch.Table, up, ch.Table, down)
			}
			if pending == 0 {
				fmt.Fprintln(out, "schema is up to date")
			}
			return nil
		},
	}
}

func newGenerateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <description>",
		Short: "Generate a migration from the current diff and store it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := a.generator()
			if err != nil {
				return err
			}
			ctx, cancel := a.bounded(cmd.Context())
			defer cancel()

			m, err := gen.Generate(ctx, a.catalog.Descriptors(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if m.Empty() {
				fmt.Fprintln(out, "no changes, nothing generated")
				return nil
			}
			if err := a.store.EnsureBase(); err != nil {
				return err
			}
			manifest, err := a.store.Save(m)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "generated %s in %s\n", manifest.ID, filepath.Join(a.cfg.Migrations.Dir, "scripts", manifest.ID))
			return nil
		},
	}
}

func newApplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply [id]",
		Short: "Apply one stored migration, or every pending one in order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.runner()
			if err != nil {
				return err
			}
			ctx, cancel := a.bounded(cmd.Context())
			defer cancel()

			ids := args
			if len(ids) == 0 {
				available, err := a.store.List()
				if err != nil {
					return err
				}
				st, err := runner.Status(ctx, available)
				if err != nil {
					return err
				}
				ids = st.Pending
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintln(out, "no pending migrations")
				return nil
			}
			for _, id := range ids {
				m, err := a.store.Lookup(id)
				if err != nil {
					return err
				}
				if err := runner.Apply(ctx, m); err != nil {
					return err
				}
				fmt.Fprintln(out, "applied", id)
			}
			return nil
		},
	}
}

func newRollbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <id>",
		Short: "Roll back a single applied migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.runner()
			if err != nil {
				return err
			}
			m, err := a.store.Lookup(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.bounded(cmd.Context())
			defer cancel()
			if err := runner.Rollback(ctx, m); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rolled back", m.ID)
			return nil
		},
	}
}

func newRollbackToCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback-to [id]",
		Short: "Roll back every migration applied after id, or all of them when id is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := a.runner()
			if err != nil {
				return err
			}
			var target string
			if len(args) == 1 {
				target = args[0]
			}
			ctx, cancel := a.bounded(cmd.Context())
			defer cancel()
			if err := runner.RollbackTo(ctx, target, a.store); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "rollback complete")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := a.runner()
			if err != nil {
				return err
			}
			available, err := a.store.List()
			if err != nil {
				return err
			}
			ctx, cancel := a.bounded(cmd.Context())
			defer cancel()
			st, err := runner.Status(ctx, available)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(st.Applied) == 0 && len(st.Pending) == 0 {
				fmt.Fprintln(out, "no migrations found")
				return nil
			}
			if len(st.Applied) > 0 {
				fmt.Fprintln(out, "applied:")
				for _, e := range st.Applied {
					fmt.Fprintf(out, "  %s  %s\n", e.ID, e.AppliedAt.Format("2006-01-02 15:04:05"))
				}
			}
			if len(st.Pending) > 0 {
				fmt.Fprintln(out, "pending:")
				for _, id := range st.Pending {
					fmt.Fprintf(out, "  %s\n", id)
				}
			}
			return nil
		},
	}
}

func newEnsureCreatedCmd(a *app) *cobra.Command {
	var recreate bool
	cmd := &cobra.Command{
		Use:   "ensure-created",
		Short: "Create every model table that does not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.session()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if recreate {
				if err := s.DropAll(ctx); err != nil {
					return err
				}
			}
			warnings, err := s.EnsureCreated(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range warnings {
				fmt.Fprintln(out, "skipped:", w.Error())
			}
			fmt.Fprintf(out, "%d tables ensured\n", len(a.catalog.Descriptors()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop every model table first")
	return cmd
}
