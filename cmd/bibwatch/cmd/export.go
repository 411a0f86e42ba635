package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bibwatch/internal/export"
	"github.com/MeKo-Tech/bibwatch/internal/result"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored results to an Excel workbook",
	Long: `Read the result store and write an .xlsx workbook with one sheet listing
every result and one sheet listing every number with its timestamp.

Examples:
  bibwatch export -o results.xlsx
  bibwatch export --state PENDING_MANUALLY --state DETECTING_MANUALLY`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "results.xlsx", "workbook to write")
	exportCmd.Flags().StringSlice("state", nil, "only export results in these states (repeatable)")
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg := GetConfig()
	logger := slog.Default()

	var opts export.Options
	names, _ := cmd.Flags().GetStringSlice("state")
	for _, n := range names {
		st, err := result.ParseState(n)
		if err != nil {
			return err
		}
		opts.States = append(opts.States, st)
	}

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	defer func() { _ = store.Close() }()

	snaps, err := store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("load results: %w", err)
	}
	slices.SortFunc(snaps, func(a, b result.Snapshot) int {
		if c := a.CaptureTime.Compare(b.CaptureTime); c != 0 {
			return c
		}
		return strings.Compare(a.Identity, b.Identity)
	})

	data, err := export.XLSX(snaps, opts)
	if err != nil {
		return fmt.Errorf("render workbook: %w", err)
	}
	out, _ := cmd.Flags().GetString("output")
	if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec // G306: export is meant to be shared
		return err
	}
	n := 0
	for _, s := range snaps {
		if opts.Keep(s) {
			n++
		}
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d results to %s\n", n, out)
	return nil
}
