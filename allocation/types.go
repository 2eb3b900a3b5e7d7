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

// Package allocation computes a fixed allocation over a table of security prices and the
// daily returns of the resulting portfolio.
//
// The allocation is fully invested in a preferred security (XLK by default) when it is
// part of the investable universe and equal weight across the universe otherwise. One
// security, typically the benchmark, is excluded from the universe and always receives a
// weight of 0.
package allocation

import (
	"errors"
	"fmt"
)

const (
	// PortfolioColumn is the name of the column appended to the return table
	PortfolioColumn = "Portfolio"

	// DefaultPreferredAsset receives the full allocation when it is eligible
	DefaultPreferredAsset = "XLK"

	DefaultLookback = 90
	DefaultGamma    = 0.0
	DefaultEpsilon  = 1e-6
)

var (
	ErrNilPriceTable    = errors.New("price table is nil")
	ErrEmptyPriceTable  = errors.New("price table has no rows")
	ErrNoEligibleAssets = errors.New("no eligible assets remain after exclusion")
	ErrReservedColumn   = errors.New("price table uses a reserved column name")
)

// State tracks which results an Engine has cached
type State int

const (
	Uninitialized State = iota
	WeightsComputed
	ReturnsComputed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case WeightsComputed:
		return "WeightsComputed"
	case ReturnsComputed:
		return "ReturnsComputed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
