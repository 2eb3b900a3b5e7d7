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

package allocation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-allocator/dataframe"
)

// Engine computes portfolio weights and returns for a fixed price table. Results are
// computed lazily on first use and cached until Invalidate is called. An Engine is not
// safe for concurrent use.
type Engine struct {
	// arguments
	exclude   string
	preferred string
	lookback  int
	gamma     float64
	eps       float64

	// class variables
	prices   *dataframe.DataFrame
	returns  *dataframe.DataFrame
	eligible []string

	state            State
	weights          *dataframe.DataFrame
	portfolioReturns *dataframe.DataFrame
}

// New constructs an Engine over a copy of prices. exclude names the column that is not
// eligible for allocation; it does not need to be present in prices.
func New(prices *dataframe.DataFrame, exclude string, opts ...Option) (*Engine, error) {
	if prices == nil {
		return nil, ErrNilPriceTable
	}

	if err := prices.Validate(); err != nil {
		return nil, fmt.Errorf("invalid price table: %w", err)
	}

	if prices.Len() == 0 {
		return nil, ErrEmptyPriceTable
	}

	if prices.ColIndex(PortfolioColumn) != -1 {
		return nil, fmt.Errorf("%w: %q", ErrReservedColumn, PortfolioColumn)
	}

	engine := &Engine{
		exclude:   exclude,
		preferred: DefaultPreferredAsset,
		lookback:  DefaultLookback,
		gamma:     DefaultGamma,
		eps:       DefaultEpsilon,
		prices:    prices.Copy(),
		state:     Uninitialized,
	}

	for _, opt := range opts {
		opt(engine)
	}

	engine.eligible = make([]string, 0, len(prices.ColNames))
	for _, colName := range engine.prices.ColNames {
		if colName != exclude {
			engine.eligible = append(engine.eligible, colName)
		}
	}

	if engine.prices.ColIndex(exclude) == -1 {
		log.Warn().Str("Exclude", exclude).Strs("Columns", engine.prices.ColNames).Msg("excluded security is not in the price table; every column is eligible")
	}

	if len(engine.eligible) == 0 {
		return nil, fmt.Errorf("%w: price table columns %v, excluded %q", ErrNoEligibleAssets, prices.ColNames, exclude)
	}

	// the first period and periods without a prior price have no return
	engine.returns = engine.prices.PctChange().FillNA(0)

	log.Debug().Str("Exclude", exclude).Strs("Eligible", engine.eligible).Int("NumRows", engine.prices.Len()).
		Int("Lookback", engine.lookback).Float64("Gamma", engine.gamma).Float64("Epsilon", engine.eps).
		Msg("created allocation engine")

	return engine, nil
}

// Target returns the allocation applied on every date for each column of the price table
func (e *Engine) Target() map[string]float64 {
	target := make(map[string]float64, len(e.prices.ColNames))
	for _, colName := range e.prices.ColNames {
		target[colName] = 0.0
	}

	if e.isEligible(e.preferred) {
		target[e.preferred] = 1.0
		return target
	}

	w := 1.0 / float64(len(e.eligible))
	for _, symbol := range e.eligible {
		target[symbol] = w
	}

	return target
}

// CalculateWeights returns the weight of every security on every date. The table is
// computed once and cached.
func (e *Engine) CalculateWeights() *dataframe.DataFrame {
	if e.state == Uninitialized {
		e.weights = e.buildWeights()
		e.state = WeightsComputed
	}

	return e.weights.Copy()
}

func (e *Engine) buildWeights() *dataframe.DataFrame {
	nRows := e.prices.Len()
	weights := &dataframe.DataFrame{
		Dates:    make([]time.Time, nRows),
		ColNames: make([]string, len(e.prices.ColNames)),
		Vals:     make([][]float64, len(e.prices.ColNames)),
	}
	copy(weights.Dates, e.prices.Dates)
	copy(weights.ColNames, e.prices.ColNames)

	target := e.Target()
	for colIdx, colName := range weights.ColNames {
		col := make([]float64, nRows)
		w := target[colName]
		if colName == e.exclude {
			w = 0.0
		}
		for rowIdx := range col {
			col[rowIdx] = w
		}
		weights.Vals[colIdx] = col
	}

	log.Debug().Str("Preferred", e.preferred).Bool("PreferredEligible", e.isEligible(e.preferred)).
		Int("NumEligible", len(e.eligible)).Msg("calculated portfolio weights")

	return weights
}

// CalculatePortfolioReturns returns the per-security return table with an additional
// Portfolio column holding the weighted sum of eligible security returns. Weights are
// computed first if needed. The table is computed once and cached.
func (e *Engine) CalculatePortfolioReturns() (*dataframe.DataFrame, error) {
	if e.state == ReturnsComputed {
		return e.portfolioReturns.Copy(), nil
	}

	if e.state == Uninitialized {
		e.weights = e.buildWeights()
		e.state = WeightsComputed
	}

	portfolio, err := e.returns.RowDot(e.weights, e.eligible)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not compute portfolio returns")
		return nil, err
	}

	e.portfolioReturns = e.returns.Copy().Insert(PortfolioColumn, portfolio)
	e.state = ReturnsComputed

	log.Debug().Int("NumRows", len(portfolio)).Msg("calculated portfolio returns")

	return e.portfolioReturns.Copy(), nil
}

// Results returns the weight table and the return table, computing whichever is missing
func (e *Engine) Results() (*dataframe.DataFrame, *dataframe.DataFrame, error) {
	returns, err := e.CalculatePortfolioReturns()
	if err != nil {
		return nil, nil, err
	}

	return e.weights.Copy(), returns, nil
}

// Invalidate discards cached results so the next call recomputes them
func (e *Engine) Invalidate() {
	e.weights = nil
	e.portfolioReturns = nil
	e.state = Uninitialized
}

// Eligible returns the securities that may receive an allocation, in column order
func (e *Engine) Eligible() []string {
	res := make([]string, len(e.eligible))
	copy(res, e.eligible)
	return res
}

func (e *Engine) isEligible(symbol string) bool {
	for _, s := range e.eligible {
		if s == symbol {
			return true
		}
	}
	return false
}

// Epsilon returns the numerical tolerance the engine was configured with
func (e *Engine) Epsilon() float64 {
	return e.eps
}

// Exclude returns the security excluded from allocation
func (e *Engine) Exclude() string {
	return e.exclude
}

// Gamma returns the regularization weight the engine was configured with
func (e *Engine) Gamma() float64 {
	return e.gamma
}

// Lookback returns the lookback window the engine was configured with
func (e *Engine) Lookback() int {
	return e.lookback
}

// Preferred returns the security that receives the full allocation when eligible
func (e *Engine) Preferred() string {
	return e.preferred
}

// State reports which results are cached
func (e *Engine) State() State {
	return e.state
}

// Prices returns a copy of the price table the engine was constructed with
func (e *Engine) Prices() *dataframe.DataFrame {
	return e.prices.Copy()
}

// AssetReturns returns a copy of the per-security simple return table
func (e *Engine) AssetReturns() *dataframe.DataFrame {
	return e.returns.Copy()
}
