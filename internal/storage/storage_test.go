package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

func TestTableName(t *testing.T) {
	t.Parallel()

	name, err := TableName("")
	require.NoError(t, err)
	require.Equal(t, DefaultTable, name)

	name, err = TableName("gold_volume")
	require.NoError(t, err)
	require.Equal(t, "gold_volume", name)

	_, err = TableName("readings; DROP TABLE x")
	require.Error(t, err)
}

func TestColumnsAndArgsAlign(t *testing.T) {
	t.Parallel()

	label := "Final"
	globex := int64(5)
	r := volume.Reading{Label: &label, Globex: &globex}
	ts := time.Unix(10, 0)

	args := InsertArgs(r, ts)
	require.Len(t, args, len(ValueColumns()))
	require.Equal(t, &label, args[0])
	require.Equal(t, &globex, args[2])
	require.Equal(t, ts, args[len(args)-1])

	var dst volume.Reading
	var scanned time.Time
	targets := ScanTargets(&dst, &scanned)
	require.Len(t, targets, len(ValueColumns())+1)
	require.Len(t, strings.Split(SelectColumns(), ", "), len(targets))
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	require.Equal(t, "$1, $2, $3", Placeholders("$", 3))
	require.Equal(t, "?, ?", Placeholders("?", 2))
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	ddl := CreateTableSQL("volume_readings", "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ")
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS volume_readings")
	require.Contains(t, ddl, "id BIGSERIAL PRIMARY KEY")
	require.Contains(t, ddl, "totals_change BIGINT")
	require.Contains(t, ddl, "scraped_at TIMESTAMPTZ NOT NULL")
}
