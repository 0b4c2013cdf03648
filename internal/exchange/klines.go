package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"

	"github.com/lamres/pairs-trading-cryptocurrencies-strategy-catalyst/internal/signal"
)

const klinePageLimit = 1000

var binanceIntervals = []struct {
	d    time.Duration
	name string
}{
	{time.Minute, "1m"},
	{3 * time.Minute, "3m"},
	{5 * time.Minute, "5m"},
	{15 * time.Minute, "15m"},
	{30 * time.Minute, "30m"},
	{time.Hour, "1h"},
	{2 * time.Hour, "2h"},
	{4 * time.Hour, "4h"},
	{6 * time.Hour, "6h"},
	{8 * time.Hour, "8h"},
	{12 * time.Hour, "12h"},
	{24 * time.Hour, "1d"},
}

// Interval maps a bar duration onto a Binance kline interval name.
func Interval(d time.Duration) (string, error) {
	for _, iv := range binanceIntervals {
		if iv.d == d {
			return iv.name, nil
		}
	}
	return "", fmt.Errorf("no binance kline interval for %s", d)
}

// KlineClient downloads historical klines from the Binance REST API.
type KlineClient struct {
	client *binance.Client
	log    zerolog.Logger
}

// NewKlineClient builds a client; baseURL overrides the REST endpoint when non-empty.
func NewKlineClient(apiKey, apiSecret, baseURL string, log zerolog.Logger) *KlineClient {
	client := binance.NewClient(apiKey, apiSecret)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &KlineClient{client: client, log: log}
}

// Bars returns closed bars for symbol with open time in [start, end), paging through the API.
func (k *KlineClient) Bars(ctx context.Context, symbol string, interval time.Duration, start, end time.Time) ([]signal.Bar, error) {
	name, err := Interval(interval)
	if err != nil {
		return nil, err
	}

	var bars []signal.Bar
	from := start.UnixMilli()
	until := end.UnixMilli() - 1
	for from <= until {
		klines, err := k.client.NewKlinesService().
			Symbol(symbol).
			Interval(name).
			StartTime(from).
			EndTime(until).
			Limit(klinePageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("klines %s: %w", symbol, err)
		}
		for _, kl := range klines {
			bar, err := klineToBar(symbol, kl)
			if err != nil {
				return nil, err
			}
			if bar.OpenTime.Before(end) {
				bars = append(bars, bar)
			}
		}
		k.log.Debug().Str("symbol", symbol).Int("page", len(klines)).Int("total", len(bars)).Msg("fetched klines")
		if len(klines) < klinePageLimit {
			break
		}
		from = klines[len(klines)-1].OpenTime + interval.Milliseconds()
	}
	return bars, nil
}

func klineToBar(symbol string, kl *binance.Kline) (signal.Bar, error) {
	px, err := strconv.ParseFloat(kl.Close, 64)
	if err != nil {
		return signal.Bar{}, fmt.Errorf("parse close %q: %w", kl.Close, err)
	}
	vol, _ := strconv.ParseFloat(kl.Volume, 64)
	return signal.Bar{
		Symbol:   symbol,
		OpenTime: time.UnixMilli(kl.OpenTime).UTC(),
		Close:    px,
		Volume:   vol,
	}, nil
}
