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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/penny-vault/pv-allocator/common"
)

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("deps", false, "also list the module dependencies compiled into the binary")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pvalloc version and build information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, common.BuildVersionString())

		deps, err := cmd.Flags().GetBool("deps")
		if err != nil {
			return err
		}
		if deps {
			fmt.Fprintf(out, "\nDependencies:\n\n%s\n", strings.Join(common.GetDependencyList(), "\n"))
		}
		return nil
	},
}
