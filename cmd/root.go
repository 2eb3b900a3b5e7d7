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
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pv-allocator/common"
	"github.com/penny-vault/pv-allocator/data"
	"github.com/penny-vault/pv-allocator/observability/opentelemetry"
)

var shutdownTracing func(context.Context) error

func init() {
	// Logging configuration
	viper.BindEnv("log.level", "PV_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PV_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PV_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PV_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Format logs for humans instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Cache
	viper.BindEnv("cache.local_size", "PV_CACHE_LOCAL_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", 128, "Number of price series held in the in-process LRU cache")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	viper.BindEnv("cache.redis", "PV_CACHE_REDIS")
	rootCmd.PersistentFlags().Bool("cache-redis", false, "Also cache price series in redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("cache-redis"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("cache-redis-url", "redis://localhost:6379/0", "Redis connection URL")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("cache-redis-url"))

	viper.BindEnv("cache.ttl", "PV_CACHE_TTL")
	rootCmd.PersistentFlags().Int("cache-ttl", 86400, "Seconds a price series stays in redis")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	// Data providers
	viper.BindEnv("data.provider", "PV_DATA_PROVIDER")
	rootCmd.PersistentFlags().String("provider", data.ProviderYahoo, fmt.Sprintf("Price data provider one of: %s", strings.Join(data.Providers, ", ")))
	viper.BindPFlag("data.provider", rootCmd.PersistentFlags().Lookup("provider"))

	viper.BindEnv("data.csv_dir", "PV_CSV_DIR")
	rootCmd.PersistentFlags().String("csv-dir", "", "Directory of <SYMBOL>.csv price files used by the csv provider")
	viper.BindPFlag("data.csv_dir", rootCmd.PersistentFlags().Lookup("csv-dir"))

	viper.BindEnv("tiingo.token", "TIINGO_TOKEN")
	rootCmd.PersistentFlags().String("tiingo-token", "", "Tiingo API token")
	viper.BindPFlag("tiingo.token", rootCmd.PersistentFlags().Lookup("tiingo-token"))

	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string for the pvdb provider")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OpenTelemetry collector endpoint; tracing is disabled when blank")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	viper.BindEnv("otlp.http", "OTLP_HTTP")
	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use HTTP(s) instead of gRPC for the OpenTelemetry exporter")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))
}

var rootCmd = &cobra.Command{
	Use:     common.ProgramName,
	Version: common.CurrentVersion.String(),
	Short:   "Fixed allocation portfolios over the select sector SPDR ETFs",
	Long: `Download adjusted closing prices for a universe of sector ETFs, allocate the
portfolio to a preferred asset (or equally across the eligible assets) and export
the daily weights and returns for grading.`,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		if err := common.SetupCache(); err != nil {
			log.Fatal().Err(err).Msg("could not setup cache")
		}

		var err error
		shutdownTracing, err = opentelemetry.Setup(cmd.Context())
		if err != nil {
			log.Fatal().Err(err).Msg("could not setup tracing")
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdownTracing != nil {
			if err := shutdownTracing(context.Background()); err != nil {
				log.Error().Err(err).Msg("could not flush traces")
			}
		}
		common.ResetCache()
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
