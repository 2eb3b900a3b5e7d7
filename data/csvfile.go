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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	dfgo "github.com/rocketlaunchr/dataframe-go"
	imports "github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/dataframe"
	"github.com/penny-vault/pv-allocator/observability/opentelemetry"
)

const (
	csvDateColumn     = "date"
	csvAdjCloseColumn = "adjClose"
)

var floatConverter = imports.Converter{
	ConcreteType: float64(0),
	ConverterFunc: func(in interface{}) (interface{}, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(in.(string)), 64)
		if err != nil {
			return math.NaN(), nil
		}
		return v, nil
	},
}

var dateConverter = imports.Converter{
	ConcreteType: time.Time{},
	ConverterFunc: func(in interface{}) (interface{}, error) {
		str := strings.TrimSpace(in.(string))
		// tiingo may append a time component
		if idx := strings.IndexAny(str, "T "); idx > 0 {
			str = str[:idx]
		}
		dt, err := time.ParseInLocation(common.DateFormat, str, common.GetTimezone())
		if err != nil {
			return nil, err
		}
		return common.MarketClose(dt), nil
	},
}

// loadAdjustedCloseCSV parses a CSV with a date and adjClose column into a single column
// table named symbol. Rows outside [begin, end] are dropped.
func loadAdjustedCloseCSV(ctx context.Context, r io.ReadSeeker, symbol string, begin, end time.Time) (*dataframe.DataFrame, error) {
	res, err := imports.LoadFromCSV(ctx, r, imports.CSVLoadOptions{
		DictateDataType: map[string]interface{}{
			csvDateColumn:     dateConverter,
			csvAdjCloseColumn: floatConverter,
		},
	})
	if errors.Is(err, dfgo.ErrNoRows) {
		return newSeries(symbol, nil), nil
	}
	if err != nil {
		return nil, err
	}

	dateIdx, err := res.NameToColumn(csvDateColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, csvDateColumn)
	}

	priceIdx, err := res.NameToColumn(csvAdjCloseColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, csvAdjCloseColumn)
	}

	dateSeries := res.Series[dateIdx]
	priceSeries := res.Series[priceIdx]

	nRows := res.NRows()
	obs := make([]observation, 0, nRows)
	for row := 0; row < nRows; row++ {
		dt, ok := dateSeries.Value(row).(time.Time)
		if !ok {
			continue
		}
		if !inRange(dt, begin, end) {
			continue
		}

		price := math.NaN()
		if val, ok := priceSeries.Value(row).(float64); ok {
			price = val
		}
		obs = append(obs, observation{date: dt, price: price})
	}

	return newSeries(symbol, obs), nil
}

// CSVDir reads adjusted closing prices from <dir>/<SYMBOL>.csv files that use the tiingo
// column layout
type CSVDir struct {
	dir string
}

// NewCSVDir creates a provider that reads files from dir
func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{
		dir: dir,
	}
}

func (c *CSVDir) Name() string {
	return ProviderCSV
}

func (c *CSVDir) Path(symbol string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s.csv", strings.ToUpper(symbol)))
}

// AdjustedClose loads the price file for symbol
func (c *CSVDir) AdjustedClose(ctx context.Context, symbol string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "csv.AdjustedClose")
	defer span.End()

	span.SetAttributes(opentelemetry.SpanAttributesFromRange(symbol, begin, end)...)
	subLog := log.With().Str("Symbol", symbol).Str("Path", c.Path(symbol)).Logger()

	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	begin, end = normalizeRange(begin, end)

	fh, err := os.Open(c.Path(symbol))
	if err != nil {
		opentelemetry.RecordError(span, err, "could not open price file")
		subLog.Error().Err(err).Msg("could not open price file")
		return nil, err
	}
	defer fh.Close()

	df, err := loadAdjustedCloseCSV(ctx, fh, symbol, begin, end)
	if err != nil {
		opentelemetry.RecordError(span, err, "could not parse price file")
		subLog.Error().Err(err).Msg("could not parse price file")
		return nil, err
	}

	subLog.Debug().Int("NumRows", df.Len()).Msg("loaded prices from file")
	return df, nil
}
