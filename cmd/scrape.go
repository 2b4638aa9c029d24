package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

type scrapeResult struct {
	OK        bool            `json:"ok"`
	Data      *volume.Reading `json:"data,omitempty"`
	Inserted  *bool           `json:"inserted,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Runs one scrape cycle and prints the outcome as JSON",
		RunE:  runScrapeCommand,
	}
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	out, runErr := appInstance.Service().Run(cmd.Context())
	result := scrapeResult{OK: runErr == nil, Timestamp: time.Now().UTC()}
	if runErr != nil {
		result.Error = runErr.Error()
	} else {
		result.Data = &out.Reading
		result.Inserted = &out.Inserted
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if runErr != nil {
		return errors.New("scrape failed")
	}
	return nil
}
