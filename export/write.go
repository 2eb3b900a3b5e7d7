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

package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/olekukonko/tablewriter"

	"github.com/penny-vault/pv-allocator/common"
)

const (
	FormatJSON  = "json"
	FormatTable = "table"
)

// Formats lists the values accepted by Write
var Formats = []string{FormatJSON, FormatTable}

// Write renders env to w in the requested format
func Write(w io.Writer, env *Envelope, format string) error {
	if env == nil || env.Weights == nil || env.Returns == nil {
		return ErrIncompleteEnvelope
	}

	switch strings.ToLower(format) {
	case FormatJSON:
		return writeJSON(w, env)
	case FormatTable:
		return writeTable(w, env)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeJSON(w io.Writer, env *Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func writeTable(w io.Writer, env *Envelope) error {
	summary := tablewriter.NewWriter(w)
	summary.SetBorder(false)
	summary.SetAutoWrapText(false)
	summary.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	summary.AppendBulk([][]string{
		{"Run", env.RunID.String()},
		{"Created", env.Created.Format(time.RFC3339)},
		{"Version", env.Version},
		{"Provider", env.Provider},
		{"Exclude", env.Exclude},
		{"Securities", fmt.Sprintf("%d", env.Weights.ColCount())},
		{"Eligible", strings.Join(env.Eligible, ", ")},
		{"Preferred", env.Parameters.Preferred},
		{"Lookback", fmt.Sprintf("%d", env.Parameters.Lookback)},
		{"Gamma", fmt.Sprintf("%g", env.Parameters.Gamma)},
		{"Epsilon", fmt.Sprintf("%g", env.Parameters.Epsilon)},
		{"Digest", env.Digest},
	})

	grading := []struct {
		name string
		vals []string
	}{
		{"Score", env.Grading.Score},
		{"Allocation", env.Grading.Allocation},
		{"Performance", env.Grading.Performance},
		{"Report", env.Grading.Report},
		{"Cumulative", env.Grading.Cumulative},
	}
	for _, g := range grading {
		if len(g.vals) > 0 {
			summary.Append([]string{g.name, strings.Join(g.vals, ", ")})
		}
	}
	summary.Render()

	period := ""
	if env.Weights.Len() > 0 {
		period = fmt.Sprintf(" %s to %s", env.Weights.Start().Format(common.DateFormat), env.Weights.End().Format(common.DateFormat))
	}

	if _, err := fmt.Fprintf(w, "\nWeights%s\n%s\nReturns%s\n%s", period, env.Weights.Table(), period, env.Returns.Table()); err != nil {
		return err
	}

	return nil
}
