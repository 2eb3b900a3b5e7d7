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


package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
)

// set with -ldflags by the magefile
var (
	commitHash string
	buildDate  string
)

const ProgramName = "pvalloc"

// Version is a SemVer 2.0.0 build version
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix == "" {
		return s
	}

	s = fmt.Sprintf("%s-%s", s, v.Suffix)
	if rev := revision(); rev != "" {
		s = fmt.Sprintf("%s+%s", s, strings.ToLower(rev))
	}
	return s
}

// revision prefers the ldflags commit and falls back to the vcs stamp go embeds
func revision() string {
	if commitHash != "" {
		return commitHash
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range bi.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return ""
}

// GetDependencyList returns the sorted module dependencies formatted as path="version".
// Replaced modules are listed with their replacement.
func GetDependencyList() []string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	deps := make([]string, 0, len(bi.Deps))
	for _, dep := range bi.Deps {
		if dep.Replace != nil {
			deps = append(deps, fmt.Sprintf("%s=%q => %s=%q", dep.Path, dep.Version, dep.Replace.Path, dep.Replace.Version))
			continue
		}
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, dep.Version))
	}

	sort.Strings(deps)
	return deps
}

// BuildVersionString is the text printed by "pvalloc version"
func BuildVersionString() string {
	date := buildDate
	if date == "" {
		date = "unknown"
	}

	lines := []string{
		fmt.Sprintf("%s v%s %s/%s", ProgramName, CurrentVersion, runtime.GOOS, runtime.GOARCH),
		"",
		fmt.Sprintf("Build Date: %s", date),
		fmt.Sprintf("Commit: %s", revision()),
		fmt.Sprintf("Built with: %s", runtime.Version()),
	}
	return strings.Join(lines, "\n")
}
