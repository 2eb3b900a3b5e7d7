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
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/data"
	"github.com/penny-vault/pv-allocator/dataframe"
)

// parseDate reads a YYYY-MM-DD date in the market timezone
func parseDate(name, val string) (time.Time, error) {
	dt, err := time.ParseInLocation(common.DateFormat, val, common.GetTimezone())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD: %w", name, val, err)
	}
	return dt, nil
}

// newProvider constructs the provider selected by --provider
func newProvider(ctx context.Context) (data.Provider, func(), error) {
	name := viper.GetString("data.provider")
	provider, err := data.NewProvider(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	if closer, ok := provider.(interface{ Close() }); ok {
		cleanup = closer.Close
	}

	log.Info().Str("Provider", provider.Name()).Msg("created price provider")
	return provider, cleanup, nil
}

// providerFactory creates the provider used by the data commands
var providerFactory = newProvider

// runWithProvider opens the selected provider and the output, runs fn and releases both
// before returning fn's error
func runWithProvider(ctx context.Context, output string, fn func(context.Context, data.Provider, io.Writer) error) (err error) {
	provider, cleanup, err := providerFactory(ctx)
	if err != nil {
		return fmt.Errorf("could not create price provider: %w", err)
	}
	defer cleanup()

	out, err := openOutput(output)
	if err != nil {
		return fmt.Errorf("could not open output %q: %w", output, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err = fn(ctx, provider, out); err != nil {
		log.Error().Stack().Err(err).Str("Provider", provider.Name()).Msg("command failed")
	}
	return err
}

// fetchPrices downloads assets over [begin, end] and trims the result to the window
func fetchPrices(ctx context.Context, provider data.Provider, assets []string, begin, end, windowBegin, windowEnd time.Time) (*dataframe.DataFrame, error) {
	if windowBegin.Before(begin) || windowEnd.After(end) {
		log.Warn().Time("Begin", begin).Time("End", end).Time("WindowBegin", windowBegin).Time("WindowEnd", windowEnd).
			Msg("analysis window extends beyond the download range; clamping")
		windowBegin = common.MaxTime(windowBegin, begin)
		windowEnd = common.MinTime(windowEnd, end)
	}

	manager := data.NewManager(provider)
	prices, err := manager.AdjustedClose(ctx, assets, begin, end)
	if err != nil {
		return nil, err
	}

	prices = prices.Trim(common.MarketClose(windowBegin), common.MarketClose(windowEnd))
	if prices.Len() == 0 {
		return nil, fmt.Errorf("%w between %s and %s", data.ErrNoData, windowBegin.Format(common.DateFormat), windowEnd.Format(common.DateFormat))
	}

	return prices, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

// openOutput returns stdout for "" and "-", otherwise creates the named file
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}
