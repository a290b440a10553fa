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
	"io"
	"net"
	"sync"

	"github.com/valyala/bytebufferpool"

	"github.com/foobardb/foobardb/command"
	"github.com/foobardb/foobardb/common"
	"github.com/foobardb/foobardb/logger"
	"github.com/foobardb/foobardb/protocol/resp"
	"github.com/foobardb/foobardb/storage"
)

// pending 批次中的一个条目
//
// 命令转换失败时 reply 预先定型为错误回复 跳过执行阶段
// 这样回复顺序始终与解析顺序一致
type pending struct {
	cmd   command.Command
	reply resp.Value
	ready bool
}

// clientConn 单条客户端连接的处理管线
//
// 读取 -> 解析 -> 攒批 -> 并发执行 -> 按序回写
// parser 与读写缓冲均为连接私有 不与任何其他连接共享
type clientConn struct {
	id     string
	sock   net.Conn
	store  storage.Storage
	parser *resp.Parser

	maxBatch int
	batch    []pending
	block    []byte

	closeOnce sync.Once
}

func newClientConn(id string, sock net.Conn, store storage.Storage, parserOpts common.Options, maxBatch int) *clientConn {
	return &clientConn{
		id:       id,
		sock:     sock,
		store:    store,
		parser:   resp.NewParser(parserOpts),
		maxBatch: maxBatch,
		batch:    make([]pending, 0, 16),
		block:    make([]byte, common.ReadBlockSize),
	}
}

func (c *clientConn) RemoteAddr() string {
	return c.sock.RemoteAddr().String()
}

// Handle 驱动连接主循环 直至对端关闭或出现不可恢复错误
//
// EOF 视为正常收尾 返回 nil 其余情况返回导致退出的原因
func (c *clientConn) Handle() error {
	for {
		n, err := c.sock.Read(c.block)
		if n > 0 {
			c.parser.Append(c.block[:n])
			if derr := c.drain(); derr != nil {
				return derr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// drain 在一次 Read 后榨干缓冲区内的全部完整报文
//
// 解析在 NeedMoreData 处停下 此时执行并刷写已攒下的批次
// 解析错误意味着帧边界已丢失 只能断开连接
func (c *clientConn) drain() error {
	for {
		value, err := c.parser.TryParse()
		if err != nil {
			parserErrors.Inc()
			logger.Warnf("connection (id=%s) parse failed: %v", c.id, err)
			return err
		}
		if value == nil {
			break
		}

		cmd, cerr := command.FromResp(*value)
		if cerr != nil {
			c.batch = append(c.batch, pending{reply: command.ErrorReply(cerr), ready: true})
		} else {
			c.batch = append(c.batch, pending{cmd: cmd})
		}

		if len(c.batch) >= c.maxBatch {
			if werr := c.execFlush(); werr != nil {
				return werr
			}
		}
	}

	if len(c.batch) > 0 {
		return c.execFlush()
	}
	return nil
}

// execFlush 并发执行当前批次 并按提交顺序序列化回复
//
// 执行顺序不承诺 回复顺序严格等于请求顺序
// 整个批次的回复合并为一次 socket 写出
func (c *clientConn) execFlush() error {
	results := make([]resp.Value, len(c.batch))

	var wg sync.WaitGroup
	for i := range c.batch {
		if c.batch[i].ready {
			results[i] = c.batch[i].reply
			continue
		}

		wg.Add(1)
		go func(i int, cmd command.Command) {
			defer wg.Done()
			commandsTotal.WithLabelValues(string(cmd.Name())).Inc()
			v, err := cmd.Exec(c.store)
			if err != nil {
				v = command.ErrorReply(err)
			}
			results[i] = v
		}(i, c.batch[i].cmd)
	}
	wg.Wait()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	for _, v := range results {
		buf.B = v.Append(buf.B)
	}

	c.batch = c.batch[:0]
	batchFlushes.Inc()

	if _, err := c.sock.Write(buf.B); err != nil {
		return err
	}
	return nil
}

func (c *clientConn) Close() {
	c.closeOnce.Do(func() {
		_ = c.sock.Close()
	})
}
