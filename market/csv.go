package market

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// csvKline is the on-disk kline row:
//
//	timestamp,open,high,low,close,volume
//
// where timestamp is RFC3339 or integer milliseconds since epoch.
type csvKline struct {
	Timestamp klineTime `csv:"timestamp"`
	Open      float64   `csv:"open"`
	High      float64   `csv:"high"`
	Low       float64   `csv:"low"`
	Close     float64   `csv:"close"`
	Volume    float64   `csv:"volume"`
}

type klineTime struct {
	time.Time
}

func (kt *klineTime) UnmarshalCSV(field string) error {
	field = strings.TrimSpace(field)
	if field == "" {
		return fmt.Errorf("empty timestamp")
	}

	if ms, err := strconv.ParseInt(field, 10, 64); err == nil {
		kt.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	t, err := time.Parse(time.RFC3339, field)
	if err != nil {
		return fmt.Errorf("bad timestamp %q: %w", field, err)
	}
	kt.Time = t.UTC()
	return nil
}

func (kt klineTime) MarshalCSV() (string, error) {
	return kt.Format(time.RFC3339), nil
}

// LoadFile reads one symbol's kline CSV into a candle series.
func LoadFile(path, symbol string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []csvKline
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse klines %s: %w", path, err)
	}

	series := make([]Candle, 0, len(rows))
	for _, r := range rows {
		series = append(series, Candle{
			Symbol: symbol,
			Time:   r.Timestamp.Time,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return series, nil
}

// LoadDir builds a Store from a directory of per-symbol kline files. The
// symbol is the file name without extension, e.g. BTC-USDT.csv -> BTC-USDT.
func LoadDir(dir string, step time.Duration) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read klines dir: %w", err)
	}

	store := NewStore(step)
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		symbol := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		series, err := LoadFile(filepath.Join(dir, e.Name()), symbol)
		if err != nil {
			return nil, err
		}
		store.AddSeries(symbol, series)
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("no kline files in %s", dir)
	}
	return store, nil
}
