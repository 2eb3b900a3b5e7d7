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

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/data"
	"github.com/penny-vault/pv-allocator/export"
)

type pricesOptions struct {
	assets []string
	start  string
	end    string
	format string
	output string
}

var pricesOpts = pricesOptions{}

func init() {
	rootCmd.AddCommand(pricesCmd)

	windowBegin, windowEnd := data.AnalysisWindow()

	flags := pricesCmd.Flags()
	flags.StringSliceVar(&pricesOpts.assets, "assets", data.Assets(), "Symbols to download")
	flags.StringVar(&pricesOpts.start, "start", windowBegin.Format(common.DateFormat), "First date of price history")
	flags.StringVar(&pricesOpts.end, "end", windowEnd.Format(common.DateFormat), "Last date of price history")
	flags.StringVar(&pricesOpts.format, "format", export.FormatTable, fmt.Sprintf("Output format one of: %s", strings.Join(export.Formats, ", ")))
	flags.StringVarP(&pricesOpts.output, "output", "o", "-", "Write prices to file; - writes to stdout")
}

var pricesCmd = &cobra.Command{
	Use:          "prices",
	Short:        "Download and print the adjusted close price table",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithProvider(cmd.Context(), pricesOpts.output, func(ctx context.Context, provider data.Provider, w io.Writer) error {
			return runPrices(ctx, provider, pricesOpts, w)
		})
	},
}

func runPrices(ctx context.Context, provider data.Provider, opts pricesOptions, w io.Writer) error {
	begin, err := parseDate("start", opts.start)
	if err != nil {
		return err
	}
	end, err := parseDate("end", opts.end)
	if err != nil {
		return err
	}

	prices, err := fetchPrices(ctx, provider, opts.assets, begin, end, begin, end)
	if err != nil {
		return err
	}

	switch strings.ToLower(opts.format) {
	case export.FormatJSON:
		buf, err := json.MarshalIndent(prices, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(buf))
		return err
	case export.FormatTable:
		_, err = fmt.Fprint(w, prices.Table())
		return err
	default:
		return fmt.Errorf("%w: %q", export.ErrUnknownFormat, opts.format)
	}
}
