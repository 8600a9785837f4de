package service

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"kairos/pkg/model"
	"kairos/pkg/restclt"
)

const (
	marketDataPath = "/api/market-data"

	DefaultTickLimit   = 100
	DefaultCandleLimit = 100
)

// OhlcvQuery selects candles either by time range or by count.
// When both Start and End are set the range wins and Limit is not sent.
// Otherwise a Limit <= 0 sends DefaultCandleLimit.
type OhlcvQuery struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

type MarketDataService struct {
	client *restclt.Client
}

func NewMarketDataService(client *restclt.Client) *MarketDataService {
	return &MarketDataService{client: client}
}

// GetRecentTicks returns the latest ticks. A limit <= 0 sends DefaultTickLimit.
func (s *MarketDataService) GetRecentTicks(ctx context.Context, symbol string, limit int) ([]model.MarketTick, error) {
	var ticks []model.MarketTick
	if err := s.client.Do(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   marketDataPath + "/ticks/" + url.PathEscape(symbol),
		Params: limitParams(limit, DefaultTickLimit),
	}, &ticks); err != nil {
		return nil, err
	}

	return ticks, nil
}

func (s *MarketDataService) GetHistoricalTicks(ctx context.Context, symbol string, start, end time.Time) ([]model.MarketTick, error) {
	var ticks []model.MarketTick
	if err := s.client.Do(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   marketDataPath + "/ticks/" + url.PathEscape(symbol) + "/range",
		Params: rangeParams(start, end),
	}, &ticks); err != nil {
		return nil, err
	}

	return ticks, nil
}

func (s *MarketDataService) GetOhlcvCandles(ctx context.Context, symbol string, query OhlcvQuery) ([]model.OhlcvCandle, error) {
	var params url.Values
	if query.Start != nil && query.End != nil {
		params = rangeParams(*query.Start, *query.End)
	} else {
		params = limitParams(query.Limit, DefaultCandleLimit)
	}

	var candles []model.OhlcvCandle
	if err := s.client.Do(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   marketDataPath + "/ohlcv/" + url.PathEscape(symbol),
		Params: params,
	}, &candles); err != nil {
		return nil, err
	}

	return candles, nil
}

// GetLatestPrice returns the real-time price; Price is nil when the backend has none.
func (s *MarketDataService) GetLatestPrice(ctx context.Context, symbol string) (*model.PriceResponse, error) {
	var price model.PriceResponse
	if err := s.client.Do(ctx, &restclt.RequestOption{
		Method: http.MethodGet,
		Path:   marketDataPath + "/latest/" + url.PathEscape(symbol),
	}, &price); err != nil {
		return nil, err
	}

	return &price, nil
}

func limitParams(limit int, fallback int) url.Values {
	if limit <= 0 {
		limit = fallback
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	return params
}

func rangeParams(start, end time.Time) url.Values {
	params := url.Values{}
	params.Set("start", restclt.FormatTime(start))
	params.Set("end", restclt.FormatTime(end))
	return params
}
