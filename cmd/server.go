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
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/foobardb/foobardb/common"
	"github.com/foobardb/foobardb/confengine"
	"github.com/foobardb/foobardb/controller"
	"github.com/foobardb/foobardb/internal/sigs"
)

type serverCmdConfig struct {
	Host           string
	Port           uint16
	MaxConnections int
}

// Yaml 将 CLI 标志渲染为与配置文件同构的内容
func (c serverCmdConfig) Yaml() []byte {
	text := `
server:
  host: {{ .Host }}
  port: {{ .Port }}
  maxConnections: {{ .MaxConnections }}
logger:
  stdout: true
`
	tpl := template.Must(template.New("config").Parse(text))
	buf := &bytes.Buffer{}
	if err := tpl.Execute(buf, c); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var (
	serverConfig serverCmdConfig
	configPath   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the RESP key-value server",
	Run: func(cmd *cobra.Command, args []string) {
		var cfg *confengine.Config
		var err error
		if configPath != "" {
			cfg, err = confengine.LoadConfigPath(configPath)
		} else {
			cfg, err = confengine.LoadContent(serverConfig.Yaml())
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}

		ctr, err := controller.New(cfg, common.GetBuildInfo())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create controller: %v\n", err)
			os.Exit(1)
		}
		if err := ctr.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start controller: %v\n", err)
			os.Exit(1)
		}

		<-sigs.Terminate()
		if err := ctr.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to stop controller: %v\n", err)
			os.Exit(1)
		}
	},
	Example: "# foobardb server --host 127.0.0.1 --port 6379",
}

func init() {
	serverCmd.Flags().StringVar(&serverConfig.Host, "host", "127.0.0.1", "Listen host")
	serverCmd.Flags().Uint16Var(&serverConfig.Port, "port", 6379, "Listen port")
	serverCmd.Flags().IntVar(&serverConfig.MaxConnections, "max-connections", 1000, "Maximum concurrent connections")
	serverCmd.Flags().StringVar(&configPath, "config", "", "Configuration file path (overrides other flags)")
	rootCmd.AddCommand(serverCmd)
}
