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
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/dataframe"
	"github.com/penny-vault/pv-allocator/observability/opentelemetry"
)

// Manager downloads prices for many symbols from a single provider and assembles them
// into one price table. Downloaded frames are cached through the common cache.
type Manager struct {
	provider Provider
}

type quoteResult struct {
	Symbol string
	Data   *dataframe.DataFrame
	Err    error
}

// NewManager creates a manager that downloads from provider
func NewManager(provider Provider) *Manager {
	return &Manager{
		provider: provider,
	}
}

// Provider returns the manager's data provider
func (m *Manager) Provider() Provider {
	return m.provider
}

// AdjustedClose returns the adjusted close of every symbol between begin and end. Columns
// are in the order requested; dates are the union of every symbol's trading days and
// prices missing on a date are NaN. Any failed symbol aborts the request.
func (m *Manager) AdjustedClose(ctx context.Context, symbols []string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "manager.AdjustedClose")
	defer span.End()

	subLog := log.With().Str("Provider", m.provider.Name()).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	symbols = uniqueSymbols(symbols)
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	span.SetAttributes(attribute.StringSlice("Symbols", symbols))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan quoteResult, len(symbols))
	for _, symbol := range symbols {
		go m.downloadWorker(ctx, ch, symbol, begin, end)
	}

	res := make(dataframe.Map, len(symbols))
	var firstErr error
	for range symbols {
		v := <-ch
		if v.Err != nil {
			subLog.Error().Err(v.Err).Str("Symbol", v.Symbol).Msg("cannot download symbol data")
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", v.Symbol, v.Err)
				cancel()
			}
			continue
		}
		res[v.Symbol] = v.Data
	}

	if firstErr != nil {
		opentelemetry.RecordError(span, firstErr, "download failed")
		return nil, firstErr
	}

	// providers may pad their request range so only keep rows inside [begin, end]
	df := res.Trim(normalizeRange(begin, end)).Merge(symbols...)
	subLog.Info().Strs("Symbols", symbols).Int("NumRows", df.Len()).Msg("downloaded price table")

	return df, nil
}

func (m *Manager) downloadWorker(ctx context.Context, ch chan<- quoteResult, symbol string, begin, end time.Time) {
	key := m.cacheKey(symbol, begin, end)

	if df, err := m.cached(ctx, key); err == nil {
		log.Debug().Str("Symbol", symbol).Str("CacheKey", key).Msg("price cache hit")
		ch <- quoteResult{Symbol: symbol, Data: df}
		return
	} else if !errors.Is(err, common.ErrCacheMiss) {
		log.Warn().Err(err).Str("CacheKey", key).Msg("could not read price cache")
	}

	df, err := m.provider.AdjustedClose(ctx, symbol, begin, end)
	if err != nil {
		ch <- quoteResult{Symbol: symbol, Err: err}
		return
	}

	if df.Len() == 0 {
		ch <- quoteResult{Symbol: symbol, Err: ErrNoData}
		return
	}

	if err := m.store(ctx, key, df); err != nil {
		log.Warn().Err(err).Str("CacheKey", key).Msg("could not write price cache")
	}

	ch <- quoteResult{Symbol: symbol, Data: df}
}

func (m *Manager) cacheKey(symbol string, begin, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", m.provider.Name(), symbol, begin.Format(common.DateFormat), end.Format(common.DateFormat))
}

func (m *Manager) cached(ctx context.Context, key string) (*dataframe.DataFrame, error) {
	data, err := common.CacheGet(ctx, key)
	if err != nil {
		return nil, err
	}

	df := &dataframe.DataFrame{}
	if err := json.Unmarshal(data, df); err != nil {
		return nil, err
	}

	return df, nil
}

func (m *Manager) store(ctx context.Context, key string, df *dataframe.DataFrame) error {
	data, err := json.Marshal(df)
	if err != nil {
		return err
	}
	return common.CacheSet(ctx, key, data)
}

// uniqueSymbols upper cases symbols and removes blanks and repeats, preserving order
func uniqueSymbols(symbols []string) []string {
	normalized := make([]string, len(symbols))
	copy(normalized, symbols)
	common.ArrToUpper(normalized)

	seen := make(map[string]bool, len(normalized))
	res := make([]string, 0, len(normalized))
	for _, symbol := range normalized {
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		res = append(res, symbol)
	}
	return res
}
