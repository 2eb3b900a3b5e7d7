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
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/dataframe"
)

// Provider supplies daily split and dividend adjusted closing prices for one symbol
type Provider interface {
	// Name identifies the provider in cache keys and logs
	Name() string

	// AdjustedClose returns a single column table named after symbol with one row per
	// trading day in [begin, end]. Dates are the market close in New York.
	AdjustedClose(ctx context.Context, symbol string, begin, end time.Time) (*dataframe.DataFrame, error)
}

const (
	ProviderYahoo  = "yahoo"
	ProviderTiingo = "tiingo"
	ProviderCSV    = "csv"
	ProviderPvDb   = "pvdb"
)

// Providers lists the names accepted by NewProvider
var Providers = []string{ProviderYahoo, ProviderTiingo, ProviderCSV, ProviderPvDb}

// NewProvider constructs the named provider. Credentials and locations are read from
// viper: tiingo.token, data.csv_dir and database.url.
func NewProvider(ctx context.Context, name string) (Provider, error) {
	switch strings.ToLower(name) {
	case ProviderYahoo:
		return NewYahoo(), nil
	case ProviderTiingo:
		token := viper.GetString("tiingo.token")
		if token == "" {
			return nil, ErrMissingToken
		}
		return NewTiingo(token), nil
	case ProviderCSV:
		dir := viper.GetString("data.csv_dir")
		if dir == "" {
			return nil, ErrMissingDirectory
		}
		return NewCSVDir(dir), nil
	case ProviderPvDb:
		return ConnectPvDb(ctx, viper.GetString("database.url"))
	default:
		log.Error().Str("Provider", name).Strs("Available", Providers).Msg("unknown data provider")
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// normalizeRange converts begin and end to the market close of their calendar dates
func normalizeRange(begin, end time.Time) (time.Time, time.Time) {
	return common.MarketClose(begin), common.MarketClose(end)
}

// inRange reports whether dt falls within [begin, end]; all three must be market closes
func inRange(dt, begin, end time.Time) bool {
	return !dt.Before(begin) && !dt.After(end)
}

type observation struct {
	date  time.Time
	price float64
}

// newSeries builds a single column table from observations. Rows are ordered by date
// and when a date repeats the last observation wins.
func newSeries(symbol string, obs []observation) *dataframe.DataFrame {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].date.Before(obs[j].date)
	})

	dates := make([]time.Time, 0, len(obs))
	vals := make([]float64, 0, len(obs))
	for _, o := range obs {
		if n := len(dates); n > 0 && dates[n-1].Equal(o.date) {
			vals[n-1] = o.price
			continue
		}
		dates = append(dates, o.date)
		vals = append(vals, o.price)
	}

	return &dataframe.DataFrame{
		Dates:    dates,
		ColNames: []string{symbol},
		Vals:     [][]float64{vals},
	}
}
