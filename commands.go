package main

import (
	"fmt"

	"dei-tracker/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: withApp(func(cmd *cobra.Command, a *app) error {
		if err := database.Migrate(cmd.Context(), a.db); err != nil {
			return err
		}
		a.log.Info("migrations applied", "dialect", a.db.Dialector.Name())
		return nil
	}),
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the analytics cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live cache keys by prefix",
	RunE: withApp(func(cmd *cobra.Command, a *app) error {
		st, err := a.cache.Stats(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend: %s\n", st.Backend)
		fmt.Fprintf(out, "keys:    %d\n", st.TotalKeys)
		for _, p := range st.SortedPrefixes() {
			fmt.Fprintf(out, "  %-28s %d\n", p, st.ByPrefix[p])
		}
		return nil
	}),
}

var clearPattern string

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cache entries matching a pattern",
	RunE: withApp(func(cmd *cobra.Command, a *app) error {
		n, err := a.cache.Clear(cmd.Context(), clearPattern)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries matching %q\n", n, clearPattern)
		return nil
	}),
}

func init() {
	cacheClearCmd.Flags().StringVar(&clearPattern, "pattern", "*", "glob pattern, e.g. analytics:*")
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(migrateCmd, cacheCmd)
}
