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
	"time"

	"github.com/goccy/go-json"

	"github.com/penny-vault/pv-allocator/common"
)

type jsonDataFrame struct {
	Dates   []string     `json:"dates"`
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// MarshalJSON encodes the dataframe with dates as YYYY-MM-DD strings and NaN as null
func (df *DataFrame) MarshalJSON() ([]byte, error) {
	out := jsonDataFrame{
		Dates:   make([]string, len(df.Dates)),
		Columns: df.ColNames,
		Values:  make([][]*float64, len(df.Vals)),
	}

	if out.Columns == nil {
		out.Columns = []string{}
	}

	for idx, dt := range df.Dates {
		out.Dates[idx] = dt.Format(common.DateFormat)
	}

	for colIdx, col := range df.Vals {
		out.Values[colIdx] = make([]*float64, len(col))
		for rowIdx := range col {
			if !math.IsNaN(col[rowIdx]) {
				v := col[rowIdx]
				out.Values[colIdx][rowIdx] = &v
			}
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes the format written by MarshalJSON. Dates are placed at the
// 16:00 market close in the New York timezone.
func (df *DataFrame) UnmarshalJSON(data []byte) error {
	var in jsonDataFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	tz := common.GetTimezone()

	df.Dates = make([]time.Time, len(in.Dates))
	for idx, dtStr := range in.Dates {
		dt, err := time.ParseInLocation(common.DateFormat, dtStr, tz)
		if err != nil {
			return err
		}
		df.Dates[idx] = time.Date(dt.Year(), dt.Month(), dt.Day(), 16, 0, 0, 0, tz)
	}

	df.ColNames = in.Columns
	df.Vals = make([][]float64, len(in.Values))
	for colIdx, col := range in.Values {
		df.Vals[colIdx] = make([]float64, len(col))
		for rowIdx, v := range col {
			if v == nil {
				df.Vals[colIdx][rowIdx] = math.NaN()
			} else {
				df.Vals[colIdx][rowIdx] = *v
			}
		}
	}

	return df.Validate()
}
