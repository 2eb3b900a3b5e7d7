// Copyright 2021-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/dataframe"
	"github.com/penny-vault/pv-allocator/observability/opentelemetry"
)

var (
	YahooHosts = []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"}

	defaultYahooBackoff = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}
)

const yahooUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15"

// errPermanent wraps failures that retrying will not fix
type errPermanent struct {
	err error
}

func (e errPermanent) Error() string {
	return e.err.Error()
}

func (e errPermanent) Unwrap() error {
	return e.err
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Timezone string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Yahoo downloads adjusted closing prices from the Yahoo Finance chart API. Each request
// tries every host in turn and sleeps between rounds according to the backoff schedule.
type Yahoo struct {
	hosts   []string
	backoff []time.Duration
	client  *http.Client
}

// NewYahoo creates a Yahoo provider. When no backoff schedule is given the default of
// 200ms, 500ms and 1s is used.
func NewYahoo(backoff ...time.Duration) *Yahoo {
	if len(backoff) == 0 {
		backoff = defaultYahooBackoff
	}
	return &Yahoo{
		hosts:   YahooHosts,
		backoff: backoff,
		client:  http.DefaultClient,
	}
}

func (y *Yahoo) Name() string {
	return ProviderYahoo
}

// AdjustedClose downloads the daily adjusted close of symbol between begin and end
func (y *Yahoo) AdjustedClose(ctx context.Context, symbol string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.AdjustedClose")
	defer span.End()

	span.SetAttributes(opentelemetry.SpanAttributesFromRange(symbol, begin, end)...)
	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	begin, end = normalizeRange(begin, end)

	var chart *yahooChartResponse
	var lastErr error

retry:
	for attempt := 0; attempt <= len(y.backoff); attempt++ {
		for _, host := range y.hosts {
			chart, lastErr = y.fetch(ctx, host, symbol, begin, end)
			if lastErr == nil {
				break retry
			}

			var permanent errPermanent
			if errors.As(lastErr, &permanent) {
				break retry
			}

			subLog.Warn().Err(lastErr).Str("Host", host).Int("Attempt", attempt).Msg("yahoo request failed")
		}

		if attempt < len(y.backoff) {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retry
			case <-time.After(y.backoff[attempt]):
			}
		}
	}

	if lastErr != nil {
		opentelemetry.RecordError(span, lastErr, "yahoo request failed")
		subLog.Error().Err(lastErr).Msg("could not download prices from yahoo")
		return nil, lastErr
	}

	df, err := chart.adjustedClose(symbol, begin, end)
	if err != nil {
		opentelemetry.RecordError(span, err, "could not parse yahoo chart")
		subLog.Error().Err(err).Msg("could not parse yahoo chart")
		return nil, err
	}

	span.SetAttributes(attribute.Int("NumRows", df.Len()))
	subLog.Debug().Int("NumRows", df.Len()).Msg("downloaded prices from yahoo")

	return df, nil
}

func (y *Yahoo) fetch(ctx context.Context, host, symbol string, begin, end time.Time) (*yahooChartResponse, error) {
	// period2 is exclusive so extend it to the following day
	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=div,splits",
		host, symbol, begin.AddDate(0, 0, -1).Unix(), end.AddDate(0, 0, 1).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errPermanent{err}
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read yahoo response: %w", err)
	}

	chart := &yahooChartResponse{}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: %s returned %d", ErrInvalidStatus, host, resp.StatusCode)
	case resp.StatusCode >= 400:
		// unknown symbols are reported with a 404 and a chart error
		if json.Unmarshal(body, chart) == nil && chart.Chart.Error != nil {
			return nil, errPermanent{fmt.Errorf("%w: %s: %s", ErrNoData, chart.Chart.Error.Code, chart.Chart.Error.Description)}
		}
		return nil, errPermanent{fmt.Errorf("%w: %s returned %d", ErrInvalidStatus, host, resp.StatusCode)}
	case strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:"):
		return nil, fmt.Errorf("yahoo %s returned non-json body", host)
	}

	if err := json.Unmarshal(body, chart); err != nil {
		return nil, fmt.Errorf("failed to parse yahoo json: %w", err)
	}

	return chart, nil
}

func (chart *yahooChartResponse) adjustedClose(symbol string, begin, end time.Time) (*dataframe.DataFrame, error) {
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrNoData, chart.Chart.Error.Code, chart.Chart.Error.Description)
	}

	if len(chart.Chart.Result) == 0 {
		return nil, ErrNoData
	}

	result := chart.Chart.Result[0]

	var prices []*float64
	switch {
	case len(result.Indicators.AdjClose) > 0:
		prices = result.Indicators.AdjClose[0].AdjClose
	case len(result.Indicators.Quote) > 0:
		log.Warn().Str("Symbol", symbol).Msg("yahoo response has no adjusted close; using close")
		prices = result.Indicators.Quote[0].Close
	default:
		return nil, fmt.Errorf("%w: adjclose", ErrMissingColumn)
	}

	if len(prices) != len(result.Timestamp) {
		return nil, fmt.Errorf("%w: %d timestamps and %d prices", dataframe.ErrShapeMismatch, len(result.Timestamp), len(prices))
	}

	obs := make([]observation, 0, len(prices))
	for idx, ts := range result.Timestamp {
		dt := common.MarketClose(time.Unix(ts, 0))
		if !inRange(dt, begin, end) {
			continue
		}
		price := math.NaN()
		if prices[idx] != nil {
			price = *prices[idx]
		}
		obs = append(obs, observation{date: dt, price: price})
	}

	return newSeries(symbol, obs), nil
}
