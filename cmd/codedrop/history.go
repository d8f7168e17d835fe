package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/spf13/cobra"

	"github.com/rescp17/codedrop/internal/history"
	"github.com/rescp17/codedrop/internal/style"
	"github.com/rescp17/codedrop/internal/util"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		limit    int
		clearAll bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past transfers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(c.cfg.HistoryPath, c.cfg.Retention())
			if err != nil {
				return fmt.Errorf("failed to open history: %w", err)
			}
			defer closeHistory(store)

			out := cmd.OutOrStdout()
			if clearAll {
				if err := store.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(out, "History cleared.")
				return nil
			}

			records, err := store.List(limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No transfers yet.")
				return nil
			}
			fmt.Fprintln(out, historyTable(records))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show, 0 shows all")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

var historyColumns = []table.Column{
	{Title: "When", Width: 16},
	{Title: "Dir", Width: 8},
	{Title: "Name", Width: 28},
	{Title: "Size", Width: 10},
	{Title: "Status", Width: 10},
	{Title: "Took", Width: 10},
	{Title: "Detail", Width: 32},
}

func historyTable(records []history.Record) string {
	rows := make([]table.Row, 0, len(records))
	for _, r := range records {
		detail := r.Path
		if r.Status == history.StatusFailed {
			detail = r.Error
		}
		rows = append(rows, table.Row{
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Direction,
			r.Name,
			util.PadLeft(util.FormatSize(r.Size), 10),
			string(r.Status),
			r.Duration,
			detail,
		})
	}
	t := table.New(
		table.WithColumns(historyColumns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
	)
	t.SetStyles(style.NewTableStyles())
	t.Blur()
	return style.BaseStyle.Render(t.View())
}
