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
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// ColIndex returns the index of the specified column; returns -1 if column doesn't exist
func (df *DataFrame) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame) ColCount() int {
	return len(df.ColNames)
}

// Column returns the values of the named column; the returned slice is shared with df
func (df *DataFrame) Column(colName string) ([]float64, error) {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, colName)
	}
	return df.Vals[colIdx], nil
}

// Copy creates a deep copy of the dataframe
func (df *DataFrame) Copy() *DataFrame {
	df2 := &DataFrame{
		ColNames: make([]string, len(df.ColNames)),
		Dates:    make([]time.Time, len(df.Dates)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	copy(df2.ColNames, df.ColNames)
	copy(df2.Dates, df.Dates)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// End returns the last time in the DataFrame
func (df *DataFrame) End() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[len(df.Dates)-1]
}

// Insert a new column to the end of the dataframe
func (df *DataFrame) Insert(name string, col []float64) *DataFrame {
	df.ColNames = append(df.ColNames, name)
	df.Vals = append(df.Vals, col)
	return df
}

// Len returns the number of rows in the dataframe
func (df *DataFrame) Len() int {
	return len(df.Dates)
}

// Start returns the first date of the dataframe
func (df *DataFrame) Start() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[0]
}

// Table renders the dataframe as an ASCII table
func (df *DataFrame) Table() string {
	if len(df.Dates) == 0 {
		return "<NO DATA>"
	}

	tableCols := append([]string{"Date"}, df.ColNames...)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	if len(footer) > 1 {
		footer[1] = fmt.Sprintf("%d", df.Len())
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for idx, rowDate := range df.Dates {
		row := make([]string, 0, len(df.Vals)+1)
		row = append(row, rowDate.Format("2006-01-02"))
		for _, col := range df.Vals {
			row = append(row, fmt.Sprintf("%.4f", col[idx]))
		}
		table.Append(row)
	}

	table.Render()
	return s.String()
}

// Trim the dataframe to the specified date range (inclusive) and return a new dataframe
// that shares no memory with df
func (df *DataFrame) Trim(begin, end time.Time) *DataFrame {
	df2 := &DataFrame{
		ColNames: make([]string, len(df.ColNames)),
		Dates:    []time.Time{},
		Vals:     make([][]float64, len(df.ColNames)),
	}
	copy(df2.ColNames, df.ColNames)
	for colIdx := range df2.Vals {
		df2.Vals[colIdx] = []float64{}
	}

	// special case 0: requested range is invalid or data frame is empty
	if end.Before(begin) || df.Len() == 0 {
		return df2
	}

	// Use binary search to find the index corresponding to the start and end times
	beginIdx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(begin)
	})

	endIdx := sort.Search(len(df.Dates), func(i int) bool {
		return df.Dates[i].After(end)
	})

	if beginIdx >= endIdx {
		return df2
	}

	df2.Dates = append(df2.Dates, df.Dates[beginIdx:endIdx]...)
	for colIdx, col := range df.Vals {
		df2.Vals[colIdx] = append(df2.Vals[colIdx], col[beginIdx:endIdx]...)
	}

	return df2
}

// Validate checks the structural invariants of the dataframe: unique column names,
// strictly increasing dates and one value per date in every column
func (df *DataFrame) Validate() error {
	if len(df.Vals) != len(df.ColNames) {
		return fmt.Errorf("%w: %d columns named but %d columns of values", ErrShapeMismatch, len(df.ColNames), len(df.Vals))
	}

	seen := make(map[string]bool, len(df.ColNames))
	for idx, colName := range df.ColNames {
		if seen[colName] {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, colName)
		}
		seen[colName] = true

		if len(df.Vals[idx]) != len(df.Dates) {
			return fmt.Errorf("%w: column %s has %d values for %d dates", ErrShapeMismatch, colName, len(df.Vals[idx]), len(df.Dates))
		}
	}

	for idx := 1; idx < len(df.Dates); idx++ {
		if !df.Dates[idx-1].Before(df.Dates[idx]) {
			return fmt.Errorf("%w: %s follows %s", ErrDatesNotIncreasing, df.Dates[idx].Format("2006-01-02"), df.Dates[idx-1].Format("2006-01-02"))
		}
	}

	return nil
}
