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
	"time"

	"github.com/penny-vault/pv-allocator/common"
)

// DefaultExclude is the benchmark that is downloaded with the sectors but never held
const DefaultExclude = "SPY"

// DefaultAssets is the S&P 500 benchmark and its eleven select sector SPDR funds
var DefaultAssets = []string{
	"SPY",
	"XLB",
	"XLC",
	"XLE",
	"XLF",
	"XLI",
	"XLK",
	"XLP",
	"XLRE",
	"XLU",
	"XLV",
	"XLY",
}

// Assets returns a copy of DefaultAssets
func Assets() []string {
	assets := make([]string, len(DefaultAssets))
	copy(assets, DefaultAssets)
	return assets
}

// DownloadRange is the span of history fetched before trimming to the analysis window
func DownloadRange() (time.Time, time.Time) {
	tz := common.GetTimezone()
	return time.Date(2012, 1, 1, 0, 0, 0, 0, tz), time.Date(2024, 4, 1, 0, 0, 0, 0, tz)
}

// AnalysisWindow is the span over which weights and returns are reported
func AnalysisWindow() (time.Time, time.Time) {
	tz := common.GetTimezone()
	return time.Date(2019, 1, 1, 0, 0, 0, 0, tz), time.Date(2024, 4, 1, 0, 0, 0, 0, tz)
}
