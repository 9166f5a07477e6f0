package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFill() FillRecord {
	return FillRecord{
		RecordID:   NewRecordID(),
		OrderID:    3,
		Symbol:     "BTC-USDT",
		Side:       "BUY",
		Size:       0.5,
		Price:      42000.5,
		Notional:   21000.25,
		Commission: 14.7,
		RealizedPL: 0,
		Reason:     "open",
		Time:       time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC),
	}
}

func sampleEquity() EquitySnapshot {
	return EquitySnapshot{
		Time:         time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC),
		Balance:      985.3,
		Equity:       992.1,
		UsedMargin:   2100.025,
		UnrealizedPL: 6.8,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalWritesFills(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fills := filepath.Join(dir, "fills.csv")

	j, err := NewCSV(fills, filepath.Join(dir, "equity.csv"))
	require.NoError(t, err)

	rec := sampleFill()
	require.NoError(t, j.RecordFill(rec))
	require.NoError(t, j.Close())

	rows := readCSV(t, fills)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"record_id", "order_id", "symbol", "side", "size", "price", "notional", "commission", "realized_pl", "reason", "time"}, rows[0])

	row := rows[1]
	assert.Equal(t, rec.RecordID, row[0])
	assert.Equal(t, "3", row[1])
	assert.Equal(t, "BTC-USDT", row[2])
	assert.Equal(t, "BUY", row[3])
	assert.Equal(t, "0.500000", row[4])
	assert.Equal(t, "42000.500000", row[5])
	assert.Equal(t, "open", row[9])
	assert.Equal(t, "2024-01-01T00:05:00Z", row[10])
}

func TestCSVJournalWritesEquity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	equity := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(filepath.Join(dir, "fills.csv"), equity)
	require.NoError(t, err)

	require.NoError(t, j.RecordEquity(sampleEquity()))
	require.NoError(t, j.RecordEquity(sampleEquity()))
	require.NoError(t, j.Close())

	rows := readCSV(t, equity)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"time", "balance", "equity", "used_margin", "unrealized_pl"}, rows[0])
	assert.Equal(t, "985.300000", rows[1][1])
}

func TestCSVJournalFlushesWithoutClose(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	fills := filepath.Join(dir, "fills.csv")

	j, err := NewCSV(fills, filepath.Join(dir, "equity.csv"))
	require.NoError(t, err)
	require.NoError(t, j.RecordFill(sampleFill()))

	// A crash before Close must not lose already recorded fills.
	rows := readCSV(t, fills)
	assert.Len(t, rows, 2)

	require.NoError(t, j.Close())
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(filepath.Join(dir, "missing", "fills.csv"), filepath.Join(dir, "equity.csv"))
	assert.Error(t, err)
}

func TestNewRecordIDMonotonic(t *testing.T) {
	t.Parallel()

	prev := NewRecordID()
	for i := 0; i < 100; i++ {
		next := NewRecordID()
		assert.Len(t, next, 26)
		assert.Greater(t, next, prev)
		prev = next
	}
}
