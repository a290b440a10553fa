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

package admin

import (
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foobardb/foobardb/common"
	"github.com/foobardb/foobardb/confengine"
	"github.com/foobardb/foobardb/logger"
	"github.com/foobardb/foobardb/storage"
)

type Config struct {
	Enabled bool          `config:"enabled"`
	Address string        `config:"address"`
	Pprof   bool          `config:"pprof"`
	Timeout time.Duration `config:"timeout"`
}

// Server 运维侧 HTTP 服务 暴露指标 统计与可选的 pprof
//
// 与 RESP 数据面完全独立 默认不启用
type Server struct {
	config Config
	store  storage.Storage
	router *mux.Router
	server *http.Server
}

// New 创建并返回 Server 实例
//
// 当 .Enabled 为 false 时会返回空指针 调用方需先判断
func New(conf *confengine.Config, store storage.Storage) (*Server, error) {
	var config Config
	if err := conf.UnpackChild("admin", &config); err != nil {
		return nil, err
	}
	if !config.Enabled {
		return nil, nil
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	router := mux.NewRouter()
	s := &Server{
		config: config,
		store:  store,
		router: router,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
	}

	router.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	router.Methods(http.MethodGet).Path("/stats").HandlerFunc(s.statsRoute)
	if config.Pprof {
		s.registerPprofRoutes()
	}
	return s, nil
}

func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	logger.Infof("admin server listening on %s", s.config.Address)
	return s.server.Serve(l)
}

func (s *Server) Close() error {
	return s.server.Close()
}

type stats struct {
	Keys          int    `json:"keys"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Version       string `json:"version"`
	GitHash       string `json:"gitHash"`
}

func (s *Server) statsRoute(w http.ResponseWriter, _ *http.Request) {
	info := common.GetBuildInfo()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats{
		Keys:          s.store.Len(),
		UptimeSeconds: int64(common.Uptime().Seconds()),
		Version:       info.Version,
		GitHash:       info.GitHash,
	})
}

func (s *Server) registerPprofRoutes() {
	get := func(path string, f http.HandlerFunc) {
		s.router.Methods(http.MethodGet).Path(path).HandlerFunc(f)
	}
	get("/debug/pprof/cmdline", pprof.Cmdline)
	get("/debug/pprof/profile", pprof.Profile)
	get("/debug/pprof/symbol", pprof.Symbol)
	get("/debug/pprof/trace", pprof.Trace)
	get("/debug/pprof/{other}", pprof.Index)
}
