package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/offline"
)

func newOfflineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Inspect and maintain the offline library cache",
	}
	cmd.AddCommand(
		offlineSub(a, "list [query]", "List cached books, optionally filtered", cobra.MaximumNArgs(1), runOfflineList),
		offlineSub(a, "info", "Show storage usage", cobra.NoArgs, runOfflineInfo),
		offlineSub(a, "export <file>", "Write the cache to a JSON file", cobra.ExactArgs(1), runOfflineExport),
		offlineSub(a, "import <file>", "Merge a JSON export into the cache", cobra.ExactArgs(1), runOfflineImport),
		offlineSub(a, "clear", "Delete every cached book and translation", cobra.NoArgs, runOfflineClear),
	)
	return cmd
}

type offlineRunner func(cmd *cobra.Command, library *offline.Store, args []string) error

func offlineSub(a *app, use, short string, args cobra.PositionalArgs, run offlineRunner) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			library, err := openLibrary(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer library.Close()
			return run(cmd, library, args)
		},
	}
}

func runOfflineList(cmd *cobra.Command, library *offline.Store, args []string) error {
	var (
		books []offline.Book
		err   error
	)
	if len(args) == 1 {
		books, err = library.SearchBooks(cmd.Context(), args[0])
	} else {
		books, err = library.GetAllBooks(cmd.Context())
	}
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tDOWNLOADED")
	for _, b := range books {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.DownloadedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runOfflineInfo(cmd *cobra.Command, library *offline.Store, _ []string) error {
	info, err := library.GetStorageInfo(cmd.Context())
	if err != nil {
		return err
	}
	if info == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "storage quota unknown")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "used %d of %d bytes (%.2f%%)\n", info.Used, info.Quota, info.Percentage)
	return nil
}

func runOfflineExport(cmd *cobra.Command, library *offline.Store, args []string) error {
	data, err := library.ExportToFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d books and %d translations to %s\n",
		len(data.Books), len(data.Translations), args[0])
	return nil
}

func runOfflineImport(cmd *cobra.Command, library *offline.Store, args []string) error {
	res, err := library.ImportFromFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out, _ := json.Marshal(res)
	fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", out)
	return nil
}

func runOfflineClear(cmd *cobra.Command, library *offline.Store, _ []string) error {
	if err := library.ClearAllOfflineData(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "offline library cleared")
	return nil
}
