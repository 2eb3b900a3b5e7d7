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
	"math"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/dataframe"
	"github.com/penny-vault/pv-allocator/observability/opentelemetry"
)

const eodAdjustedCloseSQL = "SELECT event_date, ticker, adj_close FROM eod WHERE ticker=$1 AND event_date BETWEEN $2 AND $3 ORDER BY event_date"

// PgxIface is satisfied by pgxpool.Pool and pgxmock connections
type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

// PvDb reads adjusted closing prices from the penny vault eod table
type PvDb struct {
	pool PgxIface
}

// NewPvDb creates a database provider that runs queries on pool
func NewPvDb(pool PgxIface) *PvDb {
	return &PvDb{
		pool: pool,
	}
}

// ConnectPvDb opens a connection pool to url and verifies it with a ping
func ConnectPvDb(ctx context.Context, url string) (*PvDb, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return nil, err
	}
	if err = pool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		pool.Close()
		return nil, err
	}
	return NewPvDb(pool), nil
}

func (p *PvDb) Name() string {
	return ProviderPvDb
}

// Close releases the connection pool when it supports closing
func (p *PvDb) Close() {
	if closer, ok := p.pool.(interface{ Close() }); ok {
		closer.Close()
	}
}

// AdjustedClose queries the daily adjusted close of symbol between begin and end
func (p *PvDb) AdjustedClose(ctx context.Context, symbol string, begin, end time.Time) (*dataframe.DataFrame, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.AdjustedClose")
	defer span.End()

	span.SetAttributes(opentelemetry.SpanAttributesFromRange(symbol, begin, end)...)
	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		subLog.Warn().Stack().Msg("end before begin in call to AdjustedClose")
		return nil, ErrInvalidTimeRange
	}

	begin, end = normalizeRange(begin, end)

	trx, err := p.pool.Begin(ctx)
	if err != nil {
		opentelemetry.RecordError(span, err, "could not begin transaction")
		subLog.Error().Stack().Err(err).Msg("could not begin transaction")
		return nil, err
	}

	rows, err := trx.Query(ctx, eodAdjustedCloseSQL, symbol, begin, end)
	if err != nil {
		opentelemetry.RecordError(span, err, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query eod prices")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	obs := make([]observation, 0, 252)
	for rows.Next() {
		var (
			dt       time.Time
			ticker   string
			adjClose *float64
		)
		if err := rows.Scan(&dt, &ticker, &adjClose); err != nil {
			rows.Close()
			opentelemetry.RecordError(span, err, "could not scan result")
			subLog.Error().Stack().Err(err).Msg("could not scan eod result")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}

		price := math.NaN()
		if adjClose != nil {
			price = *adjClose
		}
		obs = append(obs, observation{date: common.MarketCloseOnDate(dt), price: price})
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		opentelemetry.RecordError(span, err, "row iteration failed")
		subLog.Error().Stack().Err(err).Msg("eod row iteration failed")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return nil, err
	}

	df := newSeries(symbol, obs)
	span.SetAttributes(attribute.Int("NumRows", df.Len()))
	subLog.Debug().Int("NumRows", df.Len()).Msg("loaded prices from database")

	return df, nil
}
