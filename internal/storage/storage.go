// Package storage holds the SQL shape of the readings table shared by the
// database-backed stores. Concrete stores live in the subpackages.
package storage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

// DefaultTable is the readings table name used when none is configured.
const DefaultTable = "volume_readings"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// countColumns are the subtotal columns in page order.
var countColumns = [volume.CountFields]string{
	"totals_globex",
	"totals_open_outcry",
	"totals_pnt_clearport",
	"totals_total_volume",
	"totals_block_trades",
	"totals_efp",
	"totals_efr",
	"totals_tas",
	"totals_deliveries",
	"totals_at_close",
	"totals_change",
}

// TableName validates name, falling back to DefaultTable when empty.
func TableName(name string) (string, error) {
	if name == "" {
		name = DefaultTable
	}
	if !validTableName.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return name, nil
}

// ValueColumns lists every column written on insert, in InsertArgs order.
func ValueColumns() []string {
	cols := make([]string, 0, volume.CountFields+3)
	cols = append(cols, "data_type", "last_updated_ct")
	cols = append(cols, countColumns[:]...)
	return append(cols, "scraped_at")
}

// SelectColumns is the projection used by the readers; ScanTargets matches it.
func SelectColumns() string {
	return "id, " + strings.Join(ValueColumns(), ", ")
}

// Placeholders renders n positional parameters in the given style: "$" for
// $1..$n or "?" for plain question marks.
func Placeholders(style string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if style == "$" {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

// InsertArgs returns the values of r in ValueColumns order. scrapedAt lets the
// caller choose the timestamp encoding its driver prefers.
func InsertArgs(r volume.Reading, scrapedAt any) []any {
	args := make([]any, 0, volume.CountFields+3)
	args = append(args, r.Label, r.LastUpdated)
	for _, c := range r.Counts() {
		args = append(args, c)
	}
	return append(args, scrapedAt)
}

// ScanTargets returns destinations for a SelectColumns row. The timestamp is
// written to scrapedAt so the caller can decode it.
func ScanTargets(r *volume.Reading, scrapedAt any) []any {
	targets := make([]any, 0, volume.CountFields+4)
	targets = append(targets, &r.ID, &r.Label, &r.LastUpdated)
	for _, ref := range r.CountRefs() {
		targets = append(targets, ref)
	}
	return append(targets, scrapedAt)
}

// CreateTableSQL returns the DDL for the readings table. idType is the
// dialect's auto-increment primary key, tsType its timestamp column type.
func CreateTableSQL(table, idType, tsType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\tid %s,\n\tdata_type TEXT,\n\tlast_updated_ct TEXT,\n", table, idType)
	for _, col := range countColumns {
		fmt.Fprintf(&b, "\t%s BIGINT,\n", col)
	}
	fmt.Fprintf(&b, "\tscraped_at %s NOT NULL\n)", tsType)
	return b.String()
}
