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

package controller

import (
	"github.com/hashicorp/go-multierror"

	"github.com/foobardb/foobardb/admin"
	"github.com/foobardb/foobardb/common"
	"github.com/foobardb/foobardb/confengine"
	"github.com/foobardb/foobardb/logger"
	"github.com/foobardb/foobardb/server"
	"github.com/foobardb/foobardb/storage"
)

// Controller 拼装并管理各组件的生命周期
type Controller struct {
	buildInfo common.BuildInfo

	store storage.Storage
	svr   *server.Server
	adm   *admin.Server
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}
	if opts.Filename == "" {
		opts.Stdout = true
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}

	logger.SetOptions(opts)
	return nil
}

// New 创建并返回 Controller 实例
func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if err := setupLogger(conf); err != nil {
		return nil, err
	}

	store, err := storage.New(conf)
	if err != nil {
		return nil, err
	}

	svr, err := server.New(conf, store)
	if err != nil {
		return nil, err
	}

	adm, err := admin.New(conf, store)
	if err != nil {
		return nil, err
	}

	return &Controller{
		buildInfo: buildInfo,
		store:     store,
		svr:       svr,
		adm:       adm,
	}, nil
}

// Start 启动数据面与运维面服务
func (c *Controller) Start() error {
	uptime.Set(float64(common.Started()))
	buildInfo.WithLabelValues(c.buildInfo.Version, c.buildInfo.GitHash, c.buildInfo.Time).Set(1)

	if err := c.svr.Start(); err != nil {
		return err
	}

	if c.adm != nil {
		go func() {
			if err := c.adm.ListenAndServe(); err != nil {
				logger.Errorf("admin server exited: %v", err)
			}
		}()
	}

	logger.Infof("%s started (version=%s)", common.App, c.buildInfo.Version)
	return nil
}

// Stop 停止全部组件 汇总各自的关闭错误
func (c *Controller) Stop() error {
	var errs error

	if err := c.svr.Stop(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.adm != nil {
		if err := c.adm.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	logger.Infof("%s exit", common.App)
	return errs
}
