package market

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klinesRFC3339 = `timestamp,open,high,low,close,volume
2024-01-01T00:00:00Z,42000,42100,41900,42050,12.5
2024-01-01T00:01:00Z,42050,42200,42000,42150,8.25
`

const klinesUnixMillis = `timestamp,open,high,low,close,volume
1704067200000,2000,2010,1990,2005,100
1704067260000,2005,2020,2000,2015,80
`

func writeKlines(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadFileRFC3339Timestamps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeKlines(t, dir, "BTC-USDT.csv", klinesRFC3339)

	series, err := LoadFile(filepath.Join(dir, "BTC-USDT.csv"), "BTC-USDT")
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.Equal(t, "BTC-USDT", series[0].Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), series[0].Time)
	assert.Equal(t, 42000.0, series[0].Open)
	assert.Equal(t, 42100.0, series[0].High)
	assert.Equal(t, 41900.0, series[0].Low)
	assert.Equal(t, 42050.0, series[0].Close)
	assert.Equal(t, 12.5, series[0].Volume)
}

func TestLoadFileUnixMillisTimestamps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeKlines(t, dir, "ETH-USDT.csv", klinesUnixMillis)

	series, err := LoadFile(filepath.Join(dir, "ETH-USDT.csv"), "ETH-USDT")
	require.NoError(t, err)
	require.Len(t, series, 2)

	// 1704067200000 ms = 2024-01-01T00:00:00Z.
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), series[0].Time)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC), series[1].Time)
}

func TestLoadFileBadTimestamp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeKlines(t, dir, "bad.csv", "timestamp,open,high,low,close,volume\nyesterday,1,1,1,1,1\n")

	_, err := LoadFile(filepath.Join(dir, "bad.csv"), "BAD")
	assert.Error(t, err)
}

func TestLoadDirBuildsStorePerSymbol(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeKlines(t, dir, "BTC-USDT.csv", klinesRFC3339)
	writeKlines(t, dir, "ETH-USDT.csv", klinesUnixMillis)
	writeKlines(t, dir, "README.txt", "not a kline file")

	store, err := LoadDir(dir, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT"}, store.Symbols())

	c, ok := store.Candle("BTC-USDT", time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 42050.0, c.Open)
}

func TestLoadDirEmpty(t *testing.T) {
	t.Parallel()

	_, err := LoadDir(t.TempDir(), time.Minute)
	assert.Error(t, err)
}

func TestLoadDirMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"), time.Minute)
	assert.Error(t, err)
}
