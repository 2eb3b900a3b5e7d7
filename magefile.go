//go:build mage

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


package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "pvalloc"
	modulePath = "github.com/penny-vault/pv-allocator"
)

// GOEXE overrides the go executable
var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

var Default = Build

// Build the pvalloc binary with version information stamped into common
func Build() error {
	fmt.Println("Building", binaryName)
	return goCmd("build", "-o", outputName(), "-trimpath", "-ldflags", ldflags(), ".")
}

// Install pvalloc into GOPATH/bin
func Install() error {
	return goCmd("install", "-trimpath", "-ldflags", ldflags(), ".")
}

// Remove build artifacts
func Clean() error {
	for _, f := range []string{outputName(), "coverage.out"} {
		if err := os.RemoveAll(f); err != nil {
			return err
		}
	}
	return nil
}

// Run the ginkgo suites of every package
func Test() error {
	fmt.Println("Testing")
	return goCmd("test", "./...")
}

// Run the test suites with the race detector and write a coverage profile
func TestRace() error {
	return goCmd("test", "-race", "-coverprofile=coverage.out", "./...")
}

// Run formatting and vet checks before the race tests
func Check() {
	mg.SerialDeps(Fmt, Vet, TestRace)
}

// Report files that are not gofmt'ed
func Fmt() error {
	files, err := sourceFiles()
	if err != nil {
		return err
	}

	out, err := sh.Output("gofmt", append([]string{"-l"}, files...)...)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Println("The following files are not gofmt'ed:")
		fmt.Println(out)
		return errors.New("improperly formatted go files")
	}
	return nil
}

// Run go vet
func Vet() error {
	if err := sh.RunV(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %w", err)
	}
	return nil
}

// Helpers

func goCmd(args ...string) error {
	env := map[string]string{"CGO_ENABLED": "0"}
	if args[0] == "test" && len(args) > 1 && args[1] == "-race" {
		env["CGO_ENABLED"] = "1"
	}
	if mg.Verbose() {
		return sh.RunWith(env, goexe, args...)
	}
	out, err := sh.OutputWith(env, goexe, args...)
	if err != nil {
		fmt.Fprintln(os.Stderr, out)
	}
	return err
}

func ldflags() string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	flags := []string{
		fmt.Sprintf("-X %s/common.buildDate=%s", modulePath, time.Now().UTC().Format(time.RFC3339)),
	}
	if hash != "" {
		flags = append(flags, fmt.Sprintf("-X %s/common.commitHash=%s", modulePath, hash))
	}
	return strings.Join(flags, " ")
}

func outputName() string {
	if runtime.GOOS == "windows" {
		return binaryName + ".exe"
	}
	return binaryName
}

func sourceFiles() ([]string, error) {
	var files []string
	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && strings.HasPrefix(info.Name(), "_") {
			return filepath.SkipDir
		}
		if !info.IsDir() && strings.HasSuffix(path, ".go") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
