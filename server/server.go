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

package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/foobardb/foobardb/common"
	"github.com/foobardb/foobardb/confengine"
	"github.com/foobardb/foobardb/logger"
	"github.com/foobardb/foobardb/storage"
)

type Config struct {
	Host           string `config:"host"`
	Port           uint16 `config:"port"`
	MaxConnections int    `config:"maxConnections"`
	MaxBatchSize   int    `config:"maxBatchSize"`
	NoNoDelay      bool   `config:"noNoDelay"`
	NoKeepAlive    bool   `config:"noKeepAlive"`
}

func (c Config) GetHost() string {
	if c.Host == "" {
		return "127.0.0.1"
	}
	return c.Host
}

func (c Config) GetMaxConnections() int {
	if c.MaxConnections <= 0 {
		return 1000
	}
	return c.MaxConnections
}

func (c Config) GetMaxBatchSize() int {
	if c.MaxBatchSize <= 0 {
		return common.MaxBatchSize
	}
	return c.MaxBatchSize
}

// Address 返回监听地址 port 为 0 时由内核分配临时端口
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// ParserConfig 解析器限额 每条连接独享一个解析器实例
type ParserConfig struct {
	MaxDepth      int   `config:"maxDepth"`
	MaxLength     int64 `config:"maxLength"`
	MaxIterations int   `config:"maxIterations"`
}

func (c ParserConfig) Options() common.Options {
	opts := common.NewOptions()
	opts.Merge("maxDepth", c.MaxDepth)
	opts.Merge("maxLength", c.MaxLength)
	opts.Merge("maxIterations", c.MaxIterations)
	return opts
}

// Server RESP TCP 服务器
//
// 每条接入连接由独立 goroutine 承载 彼此之间只共享 storage
// 关闭时通过 done 广播通知所有连接退出
type Server struct {
	config     Config
	parserOpts common.Options
	store      storage.Storage

	ln        net.Listener
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New 创建并返回 Server 实例
func New(conf *confengine.Config, store storage.Storage) (*Server, error) {
	var config Config
	if err := conf.UnpackChild("server", &config); err != nil {
		return nil, err
	}
	var pc ParserConfig
	if err := conf.UnpackChild("parser", &pc); err != nil {
		return nil, err
	}

	return &Server{
		config:     config,
		parserOpts: pc.Options(),
		store:      store,
		done:       make(chan struct{}),
	}, nil
}

// Start 绑定端口并异步开始接受连接
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return err
	}

	// 超出连接上限后 新连接在内核队列中等待而不被接受
	s.ln = netutil.LimitListener(ln, s.config.GetMaxConnections())
	logger.Infof("server listening on %s", s.ln.Addr())

	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr 返回实际监听地址 端口为 0 时由内核分配
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.config.Address()
	}
	return s.ln.Addr().String()
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		sock, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			logger.Errorf("accept failed: %v", err)
			return
		}

		s.setSockOpts(sock)
		acceptedConns.Inc()
		activeConns.Inc()

		c := newClientConn(uuid.New().String(), sock, s.store, s.parserOpts, s.config.GetMaxBatchSize())
		s.wg.Add(1)
		go s.handleConn(c)
	}
}

func (s *Server) handleConn(c *clientConn) {
	defer s.wg.Done()
	defer activeConns.Dec()

	closed := make(chan struct{})
	defer close(closed)

	// 关闭广播到达时强制断开 socket 让阻塞的 Read 立即返回
	go func() {
		select {
		case <-s.done:
			c.Close()
		case <-closed:
		}
	}()

	logger.Debugf("accepted connection (id=%s) from %s", c.id, c.RemoteAddr())
	if err := c.Handle(); err != nil {
		select {
		case <-s.done:
		default:
			logger.Warnf("connection (id=%s) closed: %v", c.id, err)
		}
	}
	c.Close()
	logger.Debugf("connection (id=%s) finished", c.id)
}

func (s *Server) setSockOpts(sock net.Conn) {
	tc, ok := sock.(*net.TCPConn)
	if !ok {
		return
	}

	if !s.config.NoNoDelay {
		_ = tc.SetNoDelay(true)
	}
	if !s.config.NoKeepAlive {
		_ = tc.SetKeepAliveConfig(net.KeepAliveConfig{
			Enable:   true,
			Idle:     60 * time.Second,
			Interval: 10 * time.Second,
			Count:    3,
		})
	}
}

// Stop 停止接受新连接并广播关闭 等待全部连接退出
func (s *Server) Stop() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.ln != nil {
			err = s.ln.Close()
		}
		s.wg.Wait()
	})
	return err
}
