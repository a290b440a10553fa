// Copyright 2025 The foobardb Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foobardb/foobardb/common"
)

var buildInfoFlag bool

var rootCmd = &cobra.Command{
	Use:   common.App,
	Short: "RESP in-memory key-value server",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if buildInfoFlag {
			info := common.GetBuildInfo()
			fmt.Printf("Version: %s\nGitHash: %s\nBuildTime: %s\n", info.Version, info.GitHash, info.Time)
			os.Exit(0)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&buildInfoFlag, "build-info", false, "Print build information and exit")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
