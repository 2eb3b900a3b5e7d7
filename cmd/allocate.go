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

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/penny-vault/pv-allocator/allocation"
	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/data"
	"github.com/penny-vault/pv-allocator/export"
	"github.com/penny-vault/pv-allocator/observability/opentelemetry"
)

type allocateOptions struct {
	assets      []string
	exclude     string
	start       string
	end         string
	windowStart string
	windowEnd   string
	preferred   string
	lookback    int
	gamma       float64
	eps         float64
	format      string
	output      string
	grading     export.GradingRequest
}

var allocateOpts = allocateOptions{}

func init() {
	rootCmd.AddCommand(allocateCmd)

	downloadBegin, downloadEnd := data.DownloadRange()
	windowBegin, windowEnd := data.AnalysisWindow()

	flags := allocateCmd.Flags()
	flags.StringSliceVar(&allocateOpts.assets, "assets", data.Assets(), "Symbols to download")
	flags.StringVar(&allocateOpts.exclude, "exclude", data.DefaultExclude, "Symbol that is never allocated to")
	flags.StringVar(&allocateOpts.start, "start", downloadBegin.Format(common.DateFormat), "First date of price history to download")
	flags.StringVar(&allocateOpts.end, "end", downloadEnd.Format(common.DateFormat), "Last date of price history to download")
	flags.StringVar(&allocateOpts.windowStart, "window-start", windowBegin.Format(common.DateFormat), "First date of the analysis window")
	flags.StringVar(&allocateOpts.windowEnd, "window-end", windowEnd.Format(common.DateFormat), "Last date of the analysis window")
	flags.StringVar(&allocateOpts.preferred, "preferred", allocation.DefaultPreferredAsset, "Asset that receives the full allocation when eligible")
	flags.IntVar(&allocateOpts.lookback, "lookback", allocation.DefaultLookback, "Lookback period in days")
	flags.Float64Var(&allocateOpts.gamma, "gamma", allocation.DefaultGamma, "Risk aversion")
	flags.Float64Var(&allocateOpts.eps, "eps", allocation.DefaultEpsilon, "Numerical tolerance")
	flags.StringVar(&allocateOpts.format, "format", export.FormatTable, fmt.Sprintf("Output format one of: %s", strings.Join(export.Formats, ", ")))
	flags.StringVarP(&allocateOpts.output, "output", "o", "-", "Write results to file; - writes to stdout")

	// grading selections are forwarded to the reporting tool
	flags.StringArrayVar(&allocateOpts.grading.Score, "score", nil, "Score the portfolio (may be repeated)")
	flags.StringArrayVar(&allocateOpts.grading.Allocation, "allocation", nil, "Allocation report (may be repeated)")
	flags.StringArrayVar(&allocateOpts.grading.Performance, "performance", nil, "Performance report (may be repeated)")
	flags.StringArrayVar(&allocateOpts.grading.Report, "report", nil, "Report to render (may be repeated)")
	flags.StringArrayVar(&allocateOpts.grading.Cumulative, "cumulative", nil, "Cumulative return series (may be repeated)")
}

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Compute portfolio weights and returns",
	Long: `Download adjusted closing prices, allocate the portfolio fully to the preferred
asset when it is eligible (otherwise equally across every eligible asset) and
write the daily weights and returns.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithProvider(cmd.Context(), allocateOpts.output, func(ctx context.Context, provider data.Provider, w io.Writer) error {
			return runAllocation(ctx, provider, allocateOpts, w)
		})
	},
}

// runAllocation fetches prices from provider, runs the allocation engine and writes the
// result envelope to w
func runAllocation(ctx context.Context, provider data.Provider, opts allocateOptions, w io.Writer) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "allocate")
	defer span.End()

	begin, err := parseDate("start", opts.start)
	if err != nil {
		return err
	}
	end, err := parseDate("end", opts.end)
	if err != nil {
		return err
	}
	windowBegin, err := parseDate("window-start", opts.windowStart)
	if err != nil {
		return err
	}
	windowEnd, err := parseDate("window-end", opts.windowEnd)
	if err != nil {
		return err
	}

	exclude := strings.ToUpper(strings.TrimSpace(opts.exclude))
	preferred := strings.ToUpper(strings.TrimSpace(opts.preferred))

	span.SetAttributes(
		attribute.StringSlice("Assets", opts.assets),
		attribute.String("Exclude", exclude),
		attribute.String("Provider", provider.Name()),
	)

	prices, err := fetchPrices(ctx, provider, opts.assets, begin, end, windowBegin, windowEnd)
	if err != nil {
		opentelemetry.RecordError(span, err, "could not fetch prices")
		return err
	}

	engine, err := allocation.New(prices, exclude,
		allocation.WithPreferredAsset(preferred),
		allocation.WithLookback(opts.lookback),
		allocation.WithGamma(opts.gamma),
		allocation.WithEpsilon(opts.eps),
	)
	if err != nil {
		opentelemetry.RecordError(span, err, "could not create allocation engine")
		return err
	}

	env, err := export.NewEnvelope(engine, opts.grading)
	if err != nil {
		opentelemetry.RecordError(span, err, "could not compute results")
		return err
	}
	env.Provider = provider.Name()

	log.Info().Str("RunID", env.RunID.String()).Str("Digest", env.Digest).Int("NumRows", prices.Len()).
		Time("Start", prices.Start()).Time("End", prices.End()).Msg("computed allocation")

	return export.Write(w, env, opts.format)
}
