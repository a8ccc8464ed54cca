package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/promptdeck/promptdeck-backend/internal/library"
	"github.com/promptdeck/promptdeck-backend/internal/library/domain"
	"github.com/promptdeck/promptdeck-backend/internal/library/transfer"
)

var (
	listFilter   domain.Filter
	exportFormat string
	exportIDs    []string
	exportOut    string
	importFormat string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		items, err := a.cache.ListPrompts(listFilter)
		if err != nil {
			return err
		}
		return writePromptTable(cmd.OutOrStdout(), items, a.cache.IsPending)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export prompts as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := transfer.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		data, err := a.cache.Export(library.ExportOptions{Format: format, IDs: exportIDs})
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		return os.WriteFile(exportOut, data, 0o644)
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import prompts and folders from a JSON or CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		format := transfer.DetectFormat(data)
		if importFormat != "" {
			if format, err = transfer.ParseFormat(importFormat); err != nil {
				return err
			}
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.cache.Import(cmd.Context(), format, data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d, folders created %d, folders reused %d\n",
			res.Imported, res.Skipped, res.FoldersCreated, res.FoldersSkipped)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending local changes to the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userID == "" {
			return fmt.Errorf("sync needs --uid")
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		queued := a.cache.RetryPending(cmd.Context())
		if err := a.cache.Flush(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "state %s, queued %d, still pending %d\n",
			a.cache.State(), queued, a.cache.PendingCount())
		return nil
	},
}

func init() {
	f := listCmd.Flags()
	f.StringVar((*string)(&listFilter.Status), "status", "", "all, active, draft or archived")
	f.StringVar(&listFilter.Folder, "folder", "", "folder id, favorites or archived")
	f.StringVar(&listFilter.Search, "search", "", "case-insensitive text search")
	f.StringVar((*string)(&listFilter.Sort), "sort", "", "sort field")
	f.StringVar((*string)(&listFilter.Order), "order", "", "asc or desc")

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "json or csv")
	exportCmd.Flags().StringSliceVar(&exportIDs, "ids", nil, "prompt ids to export (default: all non-archived)")
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "output file")

	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "json or csv (default: detect)")
}

func writePromptTable(w io.Writer, prompts []domain.Prompt, pending func(string) bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tVERSION\tFAV\tSYNC")
	for _, p := range prompts {
		state := "ok"
		if pending(p.ID) {
			state = "pending"
		}
		fav := ""
		if p.IsFavorite {
			fav = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, truncate(p.Title, 40), p.Status, p.Version, fav, state)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
