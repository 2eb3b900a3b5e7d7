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

package dataframe

import (
	"math"
	"sort"
	"time"
)

// Map holds a collection of dataframes keyed by name, typically one per security
type Map map[string]*DataFrame

// Merge outer joins every dataframe in the map on the date index. Dates missing from a
// dataframe are filled with NaN. Columns are ordered by the names in order, followed by
// any remaining columns sorted by key then column name.
func (dfMap Map) Merge(order ...string) *DataFrame {
	// collect the union of dates
	dateSet := make(map[int64]time.Time)
	for _, df := range dfMap {
		for _, dt := range df.Dates {
			dateSet[dt.UnixNano()] = dt
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for _, dt := range dateSet {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rowMap := make(map[int64]int, len(dates))
	for idx, dt := range dates {
		rowMap[dt.UnixNano()] = idx
	}

	keys := make([]string, 0, len(dfMap))
	used := make(map[string]bool, len(dfMap))
	for _, k := range order {
		if _, ok := dfMap[k]; ok && !used[k] {
			keys = append(keys, k)
			used[k] = true
		}
	}
	rest := make([]string, 0, len(dfMap))
	for k := range dfMap {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	merged := &DataFrame{
		Dates:    dates,
		ColNames: make([]string, 0, len(keys)),
		Vals:     make([][]float64, 0, len(keys)),
	}

	for _, k := range keys {
		df := dfMap[k]
		for colIdx, colName := range df.ColNames {
			col := make([]float64, len(dates))
			for ii := range col {
				col[ii] = math.NaN()
			}
			for rowIdx, dt := range df.Dates {
				col[rowMap[dt.UnixNano()]] = df.Vals[colIdx][rowIdx]
			}
			merged.ColNames = append(merged.ColNames, colName)
			merged.Vals = append(merged.Vals, col)
		}
	}

	return merged
}

// Trim calls dataframe.Trim on each dataframe in the map
func (dfMap Map) Trim(begin, end time.Time) Map {
	trimmed := make(Map, len(dfMap))
	for k, df := range dfMap {
		trimmed[k] = df.Trim(begin, end)
	}
	return trimmed
}
