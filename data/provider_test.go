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

package data_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/data"
)

func nyDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, common.GetTimezone())
}

func nyClose(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 16, 0, 0, 0, common.GetTimezone())
}

var _ = Describe("Providers", func() {
	var (
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		httpmock.Activate()
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	Describe("yahoo", func() {
		var (
			chart []byte
		)

		BeforeEach(func() {
			var err error
			chart, err = os.ReadFile("testdata/yahoo_xlk.json")
			Expect(err).To(BeNil())
		})

		It("downloads the adjusted close", func() {
			httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/v8/finance/chart/XLK`,
				httpmock.NewBytesResponder(http.StatusOK, chart))

			df, err := data.NewYahoo(time.Millisecond).AdjustedClose(ctx, "XLK", nyDate(2021, 1, 4), nyDate(2021, 1, 8))
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"XLK"}))
			Expect(df.Dates).To(Equal([]time.Time{
				nyClose(2021, 1, 4), nyClose(2021, 1, 5), nyClose(2021, 1, 6), nyClose(2021, 1, 7), nyClose(2021, 1, 8),
			}))
			Expect(df.Vals[0][0]).To(Equal(124.5))
			Expect(df.Vals[0][1]).To(Equal(125.7))
			Expect(math.IsNaN(df.Vals[0][2])).To(BeTrue())
			Expect(df.Vals[0][4]).To(Equal(130.5))
		})

		It("drops rows outside of the requested range", func() {
			httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/v8/finance/chart/XLK`,
				httpmock.NewBytesResponder(http.StatusOK, chart))

			df, err := data.NewYahoo(time.Millisecond).AdjustedClose(ctx, "XLK", nyDate(2021, 1, 5), nyDate(2021, 1, 7))
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(3))
			Expect(df.Start()).To(Equal(nyClose(2021, 1, 5)))
			Expect(df.End()).To(Equal(nyClose(2021, 1, 7)))
		})

		It("falls back to the close when the adjusted close is missing", func() {
			httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/v8/finance/chart/XLK`,
				httpmock.NewStringResponder(http.StatusOK, `{"chart":{"result":[{"meta":{"symbol":"XLK"},"timestamp":[1609770600,1609857000],"indicators":{"quote":[{"close":[128.21,129.41]}]}}],"error":null}}`))

			df, err := data.NewYahoo(time.Millisecond).AdjustedClose(ctx, "XLK", nyDate(2021, 1, 4), nyDate(2021, 1, 8))
			Expect(err).To(BeNil())
			Expect(df.Vals[0]).To(Equal([]float64{128.21, 129.41}))
		})

		It("fails over to the second host", func() {
			httpmock.RegisterResponder("GET", `=~^https://query1\.finance\.yahoo\.com/`,
				httpmock.NewStringResponder(http.StatusTooManyRequests, "Edge: Too Many Requests"))
			httpmock.RegisterResponder("GET", `=~^https://query2\.finance\.yahoo\.com/v8/finance/chart/XLK`,
				httpmock.NewBytesResponder(http.StatusOK, chart))

			df, err := data.NewYahoo(time.Millisecond).AdjustedClose(ctx, "XLK", nyDate(2021, 1, 4), nyDate(2021, 1, 8))
			Expect(err).To(BeNil())
			Expect(df.Len()).To(Equal(5))
			Expect(httpmock.GetTotalCallCount()).To(Equal(2))
		})

		It("retries every host for each backoff step", func() {
			httpmock.RegisterResponder("GET", `=~^https://query[12]\.finance\.yahoo\.com/`,
				httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"))

			_, err := data.NewYahoo(time.Millisecond, time.Millisecond).AdjustedClose(ctx, "XLK", nyDate(2021, 1, 4), nyDate(2021, 1, 8))
			Expect(errors.Is(err, data.ErrInvalidStatus)).To(BeTrue())
			Expect(httpmock.GetTotalCallCount()).To(Equal(6))
		})

		It("does not retry unknown symbols", func() {
			body, err := os.ReadFile("testdata/yahoo_unknown.json")
			Expect(err).To(BeNil())
			httpmock.RegisterResponder("GET", `=~^https://query[12]\.finance\.yahoo\.com/`,
				httpmock.NewBytesResponder(http.StatusNotFound, body))

			_, err = data.NewYahoo(time.Millisecond).AdjustedClose(ctx, "NOPE", nyDate(2021, 1, 4), nyDate(2021, 1, 8))
			Expect(errors.Is(err, data.ErrNoData)).To(BeTrue())
			Expect(httpmock.GetTotalCallCount()).To(Equal(1))
		})

		It("rejects an inverted range", func() {
			_, err := data.NewYahoo().AdjustedClose(ctx, "XLK", nyDate(2021, 1, 8), nyDate(2021, 1, 4))
			Expect(err).To(MatchError(data.ErrInvalidTimeRange))
			Expect(httpmock.GetTotalCallCount()).To(Equal(0))
		})
	})

	Describe("tiingo", func() {
		It("downloads the adjusted close as csv", func() {
			body, err := os.ReadFile("testdata/tiingo_xle.csv")
			Expect(err).To(BeNil())
			httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/XLE/prices`,
				httpmock.NewBytesResponder(http.StatusOK, body))

			df, err := data.NewTiingo("secret").AdjustedClose(ctx, "XLE", nyDate(2021, 1, 4), nyDate(2021, 1, 7))
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"XLE"}))
			Expect(df.Dates).To(Equal([]time.Time{
				nyClose(2021, 1, 4), nyClose(2021, 1, 5), nyClose(2021, 1, 6), nyClose(2021, 1, 7),
			}))
			Expect(df.Vals[0]).To(Equal([]float64{36.50, 38.08, 39.18, 39.41}))
		})

		It("reports an error status", func() {
			httpmock.RegisterResponder("GET", `=~^https://api\.tiingo\.com/tiingo/daily/XLE/prices`,
				httpmock.NewStringResponder(http.StatusUnauthorized, `{"detail":"Invalid token."}`))

			_, err := data.NewTiingo("bad").AdjustedClose(ctx, "XLE", nyDate(2021, 1, 4), nyDate(2021, 1, 7))
			Expect(errors.Is(err, data.ErrInvalidStatus)).To(BeTrue())
		})
	})

	Describe("csv directory", func() {
		It("sorts rows and keeps the last duplicate", func() {
			df, err := data.NewCSVDir("testdata/csv").AdjustedClose(ctx, "xlb", nyDate(2021, 1, 1), nyDate(2021, 1, 31))
			Expect(err).To(BeNil())
			Expect(df.ColNames).To(Equal([]string{"xlb"}))
			Expect(df.Dates).To(Equal([]time.Time{
				nyClose(2021, 1, 4), nyClose(2021, 1, 5), nyClose(2021, 1, 6), nyClose(2021, 1, 7), nyClose(2021, 1, 8),
			}))
			Expect(df.Vals[0][0]).To(Equal(70.1))
			Expect(math.IsNaN(df.Vals[0][1])).To(BeTrue())
			Expect(df.Vals[0][2]).To(Equal(70.5))
			Expect(df.Vals[0][3]).To(Equal(71.3))
		})

		It("errors when the file does not exist", func() {
			_, err := data.NewCSVDir("testdata/csv").AdjustedClose(ctx, "XLRE", nyDate(2021, 1, 1), nyDate(2021, 1, 31))
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})
	})

	Describe("when constructing providers by name", func() {
		AfterEach(func() {
			viper.Set("tiingo.token", "")
			viper.Set("data.csv_dir", "")
		})

		It("creates yahoo without configuration", func() {
			p, err := data.NewProvider(ctx, "Yahoo")
			Expect(err).To(BeNil())
			Expect(p.Name()).To(Equal(data.ProviderYahoo))
		})

		It("requires a tiingo token", func() {
			_, err := data.NewProvider(ctx, data.ProviderTiingo)
			Expect(err).To(MatchError(data.ErrMissingToken))

			viper.Set("tiingo.token", "secret")
			p, err := data.NewProvider(ctx, data.ProviderTiingo)
			Expect(err).To(BeNil())
			Expect(p.Name()).To(Equal(data.ProviderTiingo))
		})

		It("requires a csv directory", func() {
			_, err := data.NewProvider(ctx, data.ProviderCSV)
			Expect(err).To(MatchError(data.ErrMissingDirectory))

			viper.Set("data.csv_dir", "testdata/csv")
			p, err := data.NewProvider(ctx, data.ProviderCSV)
			Expect(err).To(BeNil())
			Expect(p.Name()).To(Equal(data.ProviderCSV))
		})

		It("rejects unknown providers", func() {
			_, err := data.NewProvider(ctx, "bloomberg")
			Expect(errors.Is(err, data.ErrUnknownProvider)).To(BeTrue())
		})
	})
})

var _ = Describe("Universe", func() {
	It("lists the benchmark first and every sector fund", func() {
		assets := data.Assets()
		Expect(assets).To(HaveLen(12))
		Expect(assets[0]).To(Equal(data.DefaultExclude))
		Expect(assets).To(ContainElements("XLK", "XLRE", "XLC"))
	})

	It("returns a copy of the defaults", func() {
		assets := data.Assets()
		assets[0] = "QQQ"
		Expect(data.DefaultAssets[0]).To(Equal("SPY"))
	})

	It("downloads more history than it analyses", func() {
		begin, end := data.DownloadRange()
		windowBegin, windowEnd := data.AnalysisWindow()
		Expect(begin).To(Equal(nyDate(2012, 1, 1)))
		Expect(windowBegin).To(Equal(nyDate(2019, 1, 1)))
		Expect(windowEnd).To(Equal(end))
		Expect(begin.Before(windowBegin)).To(BeTrue())
	})
})
