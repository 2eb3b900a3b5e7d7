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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/dataframe"
	"github.com/penny-vault/pv-allocator/observability/opentelemetry"
)

var TiingoAPI = "https://api.tiingo.com"

// Tiingo downloads adjusted closing prices from the tiingo end-of-day API
type Tiingo struct {
	apikey string
	client *http.Client
}

// NewTiingo creates a tiingo provider authenticated with key
func NewTiingo(key string) *Tiingo {
	return &Tiingo{
		apikey: key,
		client: http.DefaultClient,
	}
}

func (t *Tiingo) Name() string {
	return ProviderTiingo
}

// AdjustedClose downloads the daily adjusted close of symbol between begin and end
func (t *Tiingo) AdjustedClose(ctx context.Context, symbol string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "tiingo.AdjustedClose")
	defer span.End()

	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	begin, end = normalizeRange(begin, end)

	url := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&format=csv&resampleFreq=daily", TiingoAPI, symbol, begin.Format(common.DateFormat), end.Format(common.DateFormat))
	span.SetAttributes(opentelemetry.SpanAttributesFromRange(symbol, begin, end)...)
	span.SetAttributes(attribute.String("Url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s&token=%s", url, t.apikey), nil)
	if err != nil {
		opentelemetry.RecordError(span, err, "could not build tiingo request")
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		msg := "tiingo http request failed"
		opentelemetry.RecordError(span, err, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))
		err := fmt.Errorf("%w: %d", ErrInvalidStatus, resp.StatusCode)
		msg := "tiingo returned invalid response code"
		opentelemetry.RecordError(span, err, msg)
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Msg(msg)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		msg := "could not read tiingo body"
		opentelemetry.RecordError(span, err, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, err
	}

	df, err := loadAdjustedCloseCSV(ctx, bytes.NewReader(body), symbol, begin, end)
	if err != nil {
		msg := "could not parse tiingo csv"
		opentelemetry.RecordError(span, err, msg)
		subLog.Error().Err(err).Bytes("Body", body).Msg(msg)
		return nil, err
	}

	span.SetAttributes(attribute.Int("NumRows", df.Len()))
	subLog.Debug().Int("NumRows", df.Len()).Msg("downloaded prices from tiingo")

	return df, nil
}
