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

package dataframe_test

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pv-allocator/dataframe"
)

func day(tz *time.Location, d int) time.Time {
	return time.Date(2021, 1, d, 16, 0, 0, 0, tz)
}

var _ = Describe("DataFrame", func() {
	var (
		tz *time.Location
	)

	BeforeEach(func() {
		var err error
		tz, err = time.LoadLocation("America/New_York")
		Expect(err).To(BeNil())
	})

	Context("with no values", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
		})

		It("has zero columns", func() {
			Expect(df.ColCount()).To(Equal(0))
		})

		It("has zero start and end", func() {
			Expect(df.Start().IsZero()).To(BeTrue())
			Expect(df.End().IsZero()).To(BeTrue())
		})

		It("does not error on trim", func() {
			df = df.Trim(day(tz, 1), day(tz, 20))
			Expect(df.Len()).To(Equal(0))
		})

		It("renders a placeholder table", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})

		It("is valid", func() {
			Expect(df.Validate()).To(Succeed())
		})
	})

	Context("with 10 days and 2 columns", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{
				ColNames: []string{"XLK", "XLE"},
				Dates:    make([]time.Time, 10),
				Vals:     [][]float64{make([]float64, 10), make([]float64, 10)},
			}
			for ii := 0; ii < 10; ii++ {
				df.Dates[ii] = day(tz, ii+1)
				df.Vals[0][ii] = float64(ii)
				df.Vals[1][ii] = float64(ii * 10)
			}
		})

		It("has length", func() {
			Expect(df.Len()).To(Equal(10))
			Expect(df.ColCount()).To(Equal(2))
		})

		It("finds columns by name", func() {
			Expect(df.ColIndex("XLE")).To(Equal(1))
			Expect(df.ColIndex("XLB")).To(Equal(-1))

			col, err := df.Column("XLE")
			Expect(err).To(BeNil())
			Expect(col[3]).To(Equal(30.0))

			_, err = df.Column("XLB")
			Expect(errors.Is(err, dataframe.ErrColumnNotFound)).To(BeTrue())
		})

		It("copies without sharing memory", func() {
			df2 := df.Copy()
			df2.Vals[0][0] = 100
			df2.ColNames[0] = "XLB"
			Expect(df.Vals[0][0]).To(Equal(0.0))
			Expect(df.ColNames[0]).To(Equal("XLK"))
		})

		It("trims to an inclusive range", func() {
			df2 := df.Trim(day(tz, 3), day(tz, 5))
			Expect(df2.Len()).To(Equal(3))
			Expect(df2.Start()).To(Equal(day(tz, 3)))
			Expect(df2.End()).To(Equal(day(tz, 5)))
			Expect(df2.Vals[1]).To(Equal([]float64{20, 30, 40}))
		})

		It("trims between rows without including the following row", func() {
			df2 := df.Trim(time.Date(2021, 1, 2, 20, 0, 0, 0, tz), time.Date(2021, 1, 4, 12, 0, 0, 0, tz))
			Expect(df2.Len()).To(Equal(1))
			Expect(df2.Start()).To(Equal(day(tz, 3)))
		})

		It("does not modify the source when trimming", func() {
			df2 := df.Trim(day(tz, 3), day(tz, 5))
			df2.Vals[0][0] = -1
			Expect(df.Vals[0][2]).To(Equal(2.0))
			Expect(df.Len()).To(Equal(10))
		})

		It("returns an empty dataframe for an inverted range", func() {
			df2 := df.Trim(day(tz, 5), day(tz, 3))
			Expect(df2.Len()).To(Equal(0))
			Expect(df2.ColNames).To(Equal([]string{"XLK", "XLE"}))
		})

		It("returns an empty dataframe when the range is outside the data", func() {
			Expect(df.Trim(day(tz, 20), day(tz, 25)).Len()).To(Equal(0))
			Expect(df.Trim(time.Date(2020, 1, 1, 0, 0, 0, 0, tz), time.Date(2020, 2, 1, 0, 0, 0, 0, tz)).Len()).To(Equal(0))
		})

		It("inserts a column", func() {
			df.Insert("Portfolio", make([]float64, 10))
			Expect(df.ColNames).To(Equal([]string{"XLK", "XLE", "Portfolio"}))
			Expect(df.Validate()).To(Succeed())
		})

		It("renders a table", func() {
			tbl := df.Table()
			Expect(tbl).To(ContainSubstring("XLK"))
			Expect(tbl).To(ContainSubstring("2021-01-10"))
			Expect(strings.Count(tbl, "\n")).To(BeNumerically(">", 10))
		})

		It("rejects duplicate columns", func() {
			df.ColNames[1] = "XLK"
			Expect(errors.Is(df.Validate(), dataframe.ErrDuplicateColumn)).To(BeTrue())
		})

		It("rejects unordered dates", func() {
			df.Dates[4] = df.Dates[3]
			Expect(errors.Is(df.Validate(), dataframe.ErrDatesNotIncreasing)).To(BeTrue())
		})

		It("rejects ragged columns", func() {
			df.Vals[1] = df.Vals[1][:5]
			Expect(errors.Is(df.Validate(), dataframe.ErrShapeMismatch)).To(BeTrue())
		})

		It("round trips through JSON with NaN as null", func() {
			df.Vals[0][2] = math.NaN()
			data, err := json.Marshal(df)
			Expect(err).To(BeNil())
			Expect(string(data)).To(ContainSubstring("null"))
			Expect(string(data)).To(ContainSubstring(`"2021-01-01"`))

			df2 := &dataframe.DataFrame{}
			Expect(json.Unmarshal(data, df2)).To(Succeed())
			Expect(df2.ColNames).To(Equal(df.ColNames))
			Expect(df2.Dates).To(HaveLen(10))
			Expect(df2.Dates[0].Equal(df.Dates[0])).To(BeTrue())
			Expect(math.IsNaN(df2.Vals[0][2])).To(BeTrue())
			Expect(df2.Vals[1]).To(Equal(df.Vals[1]))
		})
	})

	Context("when merging a map of dataframes", func() {
		var (
			dfMap dataframe.Map
		)

		BeforeEach(func() {
			dfMap = dataframe.Map{
				"XLK": &dataframe.DataFrame{
					Dates:    []time.Time{day(tz, 1), day(tz, 2), day(tz, 3)},
					ColNames: []string{"XLK"},
					Vals:     [][]float64{{1, 2, 3}},
				},
				"XLC": &dataframe.DataFrame{
					Dates:    []time.Time{day(tz, 2), day(tz, 4)},
					ColNames: []string{"XLC"},
					Vals:     [][]float64{{20, 40}},
				},
				"SPY": &dataframe.DataFrame{
					Dates:    []time.Time{day(tz, 1), day(tz, 4)},
					ColNames: []string{"SPY"},
					Vals:     [][]float64{{100, 400}},
				},
			}
		})

		It("outer joins dates", func() {
			merged := dfMap.Merge()
			Expect(merged.Dates).To(Equal([]time.Time{day(tz, 1), day(tz, 2), day(tz, 3), day(tz, 4)}))
			Expect(merged.Validate()).To(Succeed())
		})

		It("orders columns alphabetically by default", func() {
			merged := dfMap.Merge()
			Expect(merged.ColNames).To(Equal([]string{"SPY", "XLC", "XLK"}))
		})

		It("honors the requested column order", func() {
			merged := dfMap.Merge("XLK", "SPY")
			Expect(merged.ColNames).To(Equal([]string{"XLK", "SPY", "XLC"}))
		})

		It("fills missing dates with NaN", func() {
			merged := dfMap.Merge()
			xlc, err := merged.Column("XLC")
			Expect(err).To(BeNil())
			Expect(math.IsNaN(xlc[0])).To(BeTrue())
			Expect(xlc[1]).To(Equal(20.0))
			Expect(math.IsNaN(xlc[2])).To(BeTrue())
			Expect(xlc[3]).To(Equal(40.0))
		})

		It("trims every member", func() {
			trimmed := dfMap.Trim(day(tz, 2), day(tz, 3))
			Expect(trimmed["XLK"].Len()).To(Equal(2))
			Expect(trimmed["XLC"].Len()).To(Equal(1))
			Expect(trimmed["SPY"].Len()).To(Equal(0))
		})
	})
})
