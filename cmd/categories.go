package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/category"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
)

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories [counts.json]",
		Short: "List material types by group, or total per-type counts by group",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(args) == 0 {
				fmt.Fprintln(w, "GROUP\tCODE\tNAME")
				for _, g := range category.Groups() {
					for _, code := range g.Types {
						mt, _ := category.Lookup(code.Code)
						fmt.Fprintf(w, "%s\t%s\t%s\n", g.ID, mt.Code, mt.Name)
					}
				}
				return w.Flush()
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var counts []category.Count
			if err := json.Unmarshal(raw, &counts); err != nil {
				return errs.Wrap(err, errs.ErrMalformedInput, "decode counts file").WithContext("path", args[0])
			}
			fmt.Fprintln(w, "GROUP\tNAME\tTOTAL")
			for _, t := range category.Aggregate(counts) {
				fmt.Fprintf(w, "%s\t%s\t%d\n", t.Group, t.Name, t.Total)
			}
			return w.Flush()
		},
	}
}
