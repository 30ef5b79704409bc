package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/service"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [catalogue.json]",
		Short: "Run one translation sync and print its report",
		Long: "Translate the multilingual fields that are missing a target language. " +
			"With an argument the given catalogue file is used instead of the configured store.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			sc, err := buildSync(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer sc.close()

			catalogPath := ""
			if len(args) == 1 {
				catalogPath = args[0]
			}
			report, err := sc.service.RunOnce(cmd.Context(), catalogPath)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			if report.Failed > 0 {
				return fmt.Errorf("%d records could not be written", report.Failed)
			}
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, report *service.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s (%s)\n", report.RunID, report.Kind)
	fmt.Fprintf(out, "examined=%d updated=%d skipped=%d partial=%d failed=%d\n",
		report.Examined, report.Updated, report.Skipped, report.Partial, report.Failed)
	for _, rec := range report.Records {
		line := fmt.Sprintf("  %s: %s", rec.ID, rec.State)
		if len(rec.Fields) > 0 {
			line += fmt.Sprintf(" %v", rec.Fields)
		}
		if len(rec.PartialFields) > 0 {
			line += fmt.Sprintf(" partial=%v", rec.PartialFields)
		}
		if rec.Error != "" {
			line += " error=" + rec.Error
		}
		fmt.Fprintln(out, line)
	}
}
