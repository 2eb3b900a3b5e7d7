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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/penny-vault/pv-allocator/data"
	"github.com/penny-vault/pv-allocator/pgxmockhelper"
)

var _ = Describe("PVDB", func() {
	var (
		dbPool pgxmock.PgxConnIface
		pvdb   *data.PvDb
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		pvdb = data.NewPvDb(dbPool)
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
	})

	It("loads the adjusted close", func() {
		pgxmockhelper.MockDBEodQuery(dbPool, "testdata/eod_xlf.csv", "XLF", nyDate(2021, 1, 4), nyDate(2021, 1, 8))

		df, err := pvdb.AdjustedClose(ctx, "XLF", nyDate(2021, 1, 4), nyDate(2021, 1, 8))
		Expect(err).To(BeNil())
		Expect(df.ColNames).To(Equal([]string{"XLF"}))
		Expect(df.Dates).To(Equal([]time.Time{
			nyClose(2021, 1, 4), nyClose(2021, 1, 5), nyClose(2021, 1, 6), nyClose(2021, 1, 7), nyClose(2021, 1, 8),
		}))
		Expect(df.Vals[0][0]).To(Equal(28.10))
		Expect(math.IsNaN(df.Vals[0][2])).To(BeTrue())
		Expect(df.Vals[0][4]).To(Equal(30.20))
	})

	It("returns an empty series when no rows match", func() {
		pgxmockhelper.MockDBEodQuery(dbPool, "testdata/eod_xlf.csv", "XLF", nyDate(2020, 1, 4), nyDate(2020, 1, 8))

		df, err := pvdb.AdjustedClose(ctx, "XLF", nyDate(2020, 1, 4), nyDate(2020, 1, 8))
		Expect(err).To(BeNil())
		Expect(df.Len()).To(Equal(0))
	})

	It("rolls back when the query fails", func() {
		queryErr := errors.New("relation \"eod\" does not exist")
		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT event_date, ticker, adj_close FROM eod").WillReturnError(queryErr)
		dbPool.ExpectRollback()

		_, err := pvdb.AdjustedClose(ctx, "XLF", nyDate(2021, 1, 4), nyDate(2021, 1, 8))
		Expect(err).To(MatchError(queryErr))
	})

	It("rejects an inverted range without querying", func() {
		_, err := pvdb.AdjustedClose(ctx, "XLF", nyDate(2021, 1, 8), nyDate(2021, 1, 4))
		Expect(err).To(MatchError(data.ErrInvalidTimeRange))
	})
})
