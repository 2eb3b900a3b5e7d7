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
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// FillNA replaces every NaN in df with val and returns a new dataframe
func (df *DataFrame) FillNA(val float64) *DataFrame {
	df = df.Copy()

	for colIdx := range df.Vals {
		for rowIdx, v := range df.Vals[colIdx] {
			if math.IsNaN(v) {
				df.Vals[colIdx][rowIdx] = val
			}
		}
	}
	return df
}

// PctChange computes the period-over-period fractional change of every column and returns
// a new dataframe. Missing values are padded forward before the change is computed, so a
// NaN following a valid price yields 0. Rows without a prior valid price, including the
// first row, are NaN.
func (df *DataFrame) PctChange() *DataFrame {
	res := &DataFrame{
		Dates:    make([]time.Time, len(df.Dates)),
		ColNames: make([]string, len(df.ColNames)),
		Vals:     make([][]float64, len(df.Vals)),
	}
	copy(res.Dates, df.Dates)
	copy(res.ColNames, df.ColNames)

	for colIdx, col := range df.Vals {
		out := make([]float64, len(col))
		last := math.NaN()
		for rowIdx, curr := range col {
			switch {
			case math.IsNaN(last):
				out[rowIdx] = math.NaN()
			case math.IsNaN(curr):
				out[rowIdx] = 0
			default:
				out[rowIdx] = curr/last - 1.0
			}

			if !math.IsNaN(curr) {
				last = curr
			}
		}
		res.Vals[colIdx] = out
	}

	return res
}

// RowDot computes, for every row, the dot product of the named columns in df and in other.
// Both dataframes must share the same date index.
func (df *DataFrame) RowDot(other *DataFrame, columns []string) ([]float64, error) {
	if df.Len() != other.Len() {
		return nil, fmt.Errorf("%w: %d rows vs %d rows", ErrDateIndexNotAligned, df.Len(), other.Len())
	}

	for idx := range df.Dates {
		if !df.Dates[idx].Equal(other.Dates[idx]) {
			return nil, fmt.Errorf("%w: row %d", ErrDateIndexNotAligned, idx)
		}
	}

	left := make([][]float64, len(columns))
	right := make([][]float64, len(columns))
	for ii, colName := range columns {
		var err error
		if left[ii], err = df.Column(colName); err != nil {
			return nil, err
		}
		if right[ii], err = other.Column(colName); err != nil {
			return nil, err
		}
	}

	res := make([]float64, df.Len())
	a := make([]float64, len(columns))
	b := make([]float64, len(columns))
	for rowIdx := range df.Dates {
		for ii := range columns {
			a[ii] = left[ii][rowIdx]
			b[ii] = right[ii][rowIdx]
		}
		res[rowIdx] = floats.Dot(a, b)
	}

	return res, nil
}

// RowSum computes the sum of the named columns for every row
func (df *DataFrame) RowSum(columns ...string) ([]float64, error) {
	cols := make([][]float64, len(columns))
	for ii, colName := range columns {
		var err error
		if cols[ii], err = df.Column(colName); err != nil {
			return nil, err
		}
	}

	res := make([]float64, df.Len())
	row := make([]float64, len(columns))
	for rowIdx := range df.Dates {
		for ii := range cols {
			row[ii] = cols[ii][rowIdx]
		}
		res[rowIdx] = floats.Sum(row)
	}

	return res, nil
}
