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

package common_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-allocator/common"
)

var _ = Describe("Cache", func() {
	var (
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		viper.Set("cache.redis", false)
		viper.Set("cache.local_size", 4)
		Expect(common.SetupCache()).To(Succeed())
	})

	It("round trips values through lz4", func() {
		payload := []byte(strings.Repeat("SPY,XLK,XLE;", 100))
		compressed, err := common.Compress(payload)
		Expect(err).To(BeNil())
		Expect(len(compressed)).To(BeNumerically("<", len(payload)))

		out, err := common.Decompress(compressed)
		Expect(err).To(BeNil())
		Expect(out).To(Equal(payload))
	})

	It("returns stored values", func() {
		Expect(common.CacheSet(ctx, "k1", []byte("hello"))).To(Succeed())
		val, err := common.CacheGet(ctx, "k1")
		Expect(err).To(BeNil())
		Expect(string(val)).To(Equal("hello"))
	})

	It("reports a miss for unknown keys", func() {
		_, err := common.CacheGet(ctx, "does-not-exist")
		Expect(err).To(MatchError(common.ErrCacheMiss))
	})

	It("evicts the least recently used entry", func() {
		for _, k := range []string{"a", "b", "c", "d", "e"} {
			Expect(common.CacheSet(ctx, k, []byte(k))).To(Succeed())
		}
		_, err := common.CacheGet(ctx, "a")
		Expect(err).To(MatchError(common.ErrCacheMiss))
		val, err := common.CacheGet(ctx, "e")
		Expect(err).To(BeNil())
		Expect(string(val)).To(Equal("e"))
	})
})

var _ = Describe("Util", func() {
	It("uppercases and trims symbols", func() {
		arr := []string{" spy", "xlk "}
		common.ArrToUpper(arr)
		Expect(arr).To(Equal([]string{"SPY", "XLK"}))
	})

	It("normalizes to the market close", func() {
		tz := common.GetTimezone()
		dt := common.MarketClose(time.Date(2020, 3, 2, 14, 30, 0, 0, time.UTC))
		Expect(dt).To(Equal(time.Date(2020, 3, 2, 16, 0, 0, 0, tz)))
	})
})

var _ = Describe("Version", func() {
	It("formats release versions without a suffix", func() {
		v := common.Version{Major: 1, Minor: 2, Patch: 3}
		Expect(v.String()).To(Equal("1.2.3"))
	})

	It("names the program and version on the first line", func() {
		first := strings.SplitN(common.BuildVersionString(), "\n", 2)[0]
		Expect(first).To(HavePrefix("pvalloc v0.1.0-dev"))
	})
})
