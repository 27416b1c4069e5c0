package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"hotelsync/internal/export"
	"hotelsync/internal/models"
	"hotelsync/internal/service"

	"github.com/spf13/cobra"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show how many mutations are waiting to sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts, "status")
			if err != nil {
				return err
			}
			defer a.Close()

			svc := service.NewMutationService(a.db, nil, a.cfg.Sync.MaxAttempts, a.logger)
			counts, stuck, err := svc.PendingCounts(cmd.Context())
			if err != nil {
				return err
			}

			total := 0
			for _, n := range counts {
				total += n
			}

			out := cmd.OutOrStdout()
			if asJSON {
				byKind := make(map[string]int, len(counts))
				for kind, n := range counts {
					byKind[string(kind)] = n
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"total": total, "by_kind": byKind, "stuck": stuck})
			}

			kinds := make([]string, 0, len(counts))
			for kind := range counts {
				kinds = append(kinds, string(kind))
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				fmt.Fprintf(out, "%-18s %d\n", kind, counts[models.Kind(kind)])
			}
			fmt.Fprintf(out, "%-18s %d\n", "total", total)
			if stuck > 0 {
				fmt.Fprintf(out, "%-18s %d\n", "stuck", stuck)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print counts as JSON")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write pending mutations to an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts, "export")
			if err != nil {
				return err
			}
			defer a.Close()

			if dir == "" {
				dir = a.cfg.Exports.Path
			}
			path, err := export.NewExporter(a.db, dir, a.logger).Export(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (defaults to exports.path)")
	return cmd
}

func newSweepCommand(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete orphaned photos left behind by fallback submissions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts, "sweep")
			if err != nil {
				return err
			}
			defer a.Close()

			var removed int
			if olderThan > 0 {
				removed, err = a.artifacts.SweepOrphans(cmd.Context(), a.db, olderThan)
			} else {
				removed, err = a.sweepOrphans(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned artifacts\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override artifacts.orphan_retention")
	return cmd
}
