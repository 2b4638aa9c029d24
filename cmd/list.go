package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

func newListCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Prints the most recent stored readings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = appInstance.Config().API.RecentLimit
			}
			readings, err := appInstance.Service().Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(readings); err != nil {
					return fmt.Errorf("write readings: %w", err)
				}
				return nil
			}
			renderReadings(cmd, readings)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of readings to show (default api.recent_limit)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func renderReadings(cmd *cobra.Command, readings []volume.Reading) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(cmd.OutOrStdout())

	header := table.Row{"ID", "Data Type", "Last Updated CT"}
	for _, label := range volume.CountLabels {
		header = append(header, label)
	}
	header = append(header, "Scraped At")
	t.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, volume.CountFields)
	for i := range volume.CountFields {
		configs = append(configs, table.ColumnConfig{Number: i + 4, Align: text.AlignRight})
	}
	t.SetColumnConfigs(configs)

	for _, r := range readings {
		row := table.Row{r.ID, cell(r.Label), cell(r.LastUpdated)}
		for _, c := range r.Counts() {
			if c == nil {
				row = append(row, "-")
				continue
			}
			row = append(row, strconv.FormatInt(*c, 10))
		}
		row = append(row, r.ScrapedAt.Format(time.RFC3339))
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d readings", len(readings))})
	t.Render()
}

func cell(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
